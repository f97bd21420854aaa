package audit

import (
	"errors"
	"testing"

	"github.com/fentz26/cadence/internal/models"
	"github.com/rs/zerolog"
)

type fakeRecorder struct {
	entries []models.PDREntry
	err     error
}

func (f *fakeRecorder) WritePDR(action, inputsHash, outcome, taskID, details string) (*models.PDREntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	e := models.PDREntry{Action: action, InputsHash: inputsHash, Outcome: outcome, TaskID: taskID, Details: details}
	f.entries = append(f.entries, e)
	return &e, nil
}

func TestRecordHashesInputs(t *testing.T) {
	rec := &fakeRecorder{}
	w := NewPDRWriter(rec, zerolog.Nop())

	w.Record("task.create", map[string]string{"title": "a"}, "success", "t1", "")
	w.Record("task.create", map[string]string{"title": "a"}, "success", "t2", "")
	w.Record("task.create", map[string]string{"title": "b"}, "success", "t3", "")

	if len(rec.entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(rec.entries))
	}
	if rec.entries[0].InputsHash != rec.entries[1].InputsHash {
		t.Error("Identical inputs produced different hashes")
	}
	if rec.entries[0].InputsHash == rec.entries[2].InputsHash {
		t.Error("Different inputs produced the same hash")
	}
	if len(rec.entries[0].InputsHash) != 64 {
		t.Errorf("Expected hex sha256, got %q", rec.entries[0].InputsHash)
	}
}

func TestRecordSwallowsWriteErrors(t *testing.T) {
	w := NewPDRWriter(&fakeRecorder{err: errors.New("disk full")}, zerolog.Nop())
	if entry := w.Record("task.cancel", nil, "success", "t1", ""); entry != nil {
		t.Errorf("Expected nil entry on failure, got %+v", entry)
	}
	if got := HashInputs(func() {}); got != "hash_error" {
		t.Errorf("Expected hash_error for unmarshalable input, got %s", got)
	}
}
