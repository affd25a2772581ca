package orchestrator

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// ProvenanceRecord is one immutable audit entry describing a single
// invocation: what ran, on which input, with what outcome. Records are
// appended to a size-capped log and never mutated.
type ProvenanceRecord struct {
	ID              string    `json:"id"`
	Operation       string    `json:"operation"`
	OperationID     string    `json:"operation_id"`
	InputHash       string    `json:"input_hash"`
	ResultHash      string    `json:"result_hash,omitempty"`
	Success         bool      `json:"success"`
	Error           string    `json:"error,omitempty"`
	ExecutionTimeMs float64   `json:"execution_time_ms"`
	Cached          bool      `json:"cached"`
	Optimized       bool      `json:"optimized"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// appendProvenance stamps and stores a record, dropping the oldest records
// once the log exceeds its cap.
func (o *Orchestrator) appendProvenance(rec ProvenanceRecord) {
	rec.ID = ulid.Make().String()
	rec.RecordedAt = time.Now().UTC()

	o.mu.Lock()
	defer o.mu.Unlock()

	o.provenance = append(o.provenance, rec)
	if excess := len(o.provenance) - o.config.MaxProvenanceRecords; excess > 0 {
		trimmed := make([]ProvenanceRecord, o.config.MaxProvenanceRecords)
		copy(trimmed, o.provenance[excess:])
		o.provenance = trimmed
	}
}

// ExportAuditTrail returns a copy of the provenance log, oldest first.
func (o *Orchestrator) ExportAuditTrail() []ProvenanceRecord {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]ProvenanceRecord, len(o.provenance))
	copy(out, o.provenance)
	return out
}
