// Package audit records Process Decision Records for state-changing operations.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/fentz26/cadence/internal/models"
	"github.com/rs/zerolog"
)

// Recorder persists decision records.
type Recorder interface {
	WritePDR(action, inputsHash, outcome, taskID, details string) (*models.PDREntry, error)
}

// PDRWriter writes Process Decision Records for audit trails.
type PDRWriter struct {
	rec Recorder
	log zerolog.Logger
}

// NewPDRWriter creates a new PDR writer.
func NewPDRWriter(rec Recorder, log zerolog.Logger) *PDRWriter {
	return &PDRWriter{rec: rec, log: log.With().Str("component", "audit").Logger()}
}

// Record writes a PDR entry for a state-mutating action. A failed write is
// logged and never fails the action itself.
func (w *PDRWriter) Record(action string, inputs interface{}, outcome, taskID, details string) *models.PDREntry {
	entry, err := w.rec.WritePDR(action, HashInputs(inputs), outcome, taskID, details)
	if err != nil {
		w.log.Warn().Err(err).Str("action", action).Str("task_id", taskID).Msg("write decision record")
		return nil
	}
	return entry
}

// HashInputs creates a SHA256 hash of the inputs for reproducibility.
func HashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
