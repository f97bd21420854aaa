package calendar

import (
	"context"
	"time"

	"github.com/fentz26/cadence/internal/models"
)

// Local keeps the calendar in the store. The store row id doubles as the
// external id.
type Local struct {
	store EventStore
}

// NewLocal creates a store-backed gateway.
func NewLocal(s EventStore) *Local {
	return &Local{store: s}
}

func (l *Local) Name() string { return "local" }

func (l *Local) GetEvents(ctx context.Context, start, end time.Time) ([]models.CalendarEvent, error) {
	return l.store.ListEvents(start, end)
}

func (l *Local) CreateEvent(ctx context.Context, e *models.CalendarEvent) (string, error) {
	if e.ID == "" {
		if err := l.store.SaveEvent(e); err != nil {
			return "", err
		}
	}
	e.ExternalID = e.ID
	if err := l.store.SaveEvent(e); err != nil {
		return "", err
	}
	return e.ID, nil
}

func (l *Local) UpdateEvent(ctx context.Context, e *models.CalendarEvent) error {
	if e.ExternalID == "" {
		return ErrNoExternalID
	}
	return l.store.SaveEvent(e)
}

func (l *Local) DeleteEvent(ctx context.Context, externalID string) error {
	e, err := l.store.GetEventByExternalID(externalID)
	if err != nil {
		return err
	}
	if e == nil {
		return nil
	}
	return l.store.DeleteEvent(e.ID)
}
