package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonwraymond/artifactops/cache"
	"github.com/jonwraymond/artifactops/telemetry"
)

// State is a value-typed snapshot of an orchestrator's rebuildable state:
// live cache entries, the provenance log, the idempotency digest table,
// and telemetry counters. It holds no external references and re-hydrates
// into a fresh orchestrator via ImportState.
type State struct {
	Entries    []cache.EntrySnapshot `json:"entries"`
	Provenance []ProvenanceRecord    `json:"provenance"`
	Digests    map[string]string     `json:"digests"`
	Telemetry  telemetry.Counters    `json:"telemetry"`
}

// ExportState serializes the current state as JSON.
func (o *Orchestrator) ExportState() ([]byte, error) {
	o.mu.Lock()
	provenance := make([]ProvenanceRecord, len(o.provenance))
	copy(provenance, o.provenance)
	digests := make(map[string]string, len(o.digests))
	for k, v := range o.digests {
		digests[k] = v
	}
	o.mu.Unlock()

	state := State{
		Entries:    o.cache.Export(),
		Provenance: provenance,
		Digests:    digests,
		Telemetry:  o.recorder.Counters(),
	}

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: export state: %w", err)
	}
	return data, nil
}

// ImportState re-hydrates a snapshot produced by ExportState. Cache
// entries keep their original expiry; already-expired entries are skipped.
// Telemetry counters are informational in the snapshot and not restored
// (samples cannot be reconstructed from counts).
func (o *Orchestrator) ImportState(ctx context.Context, data []byte) error {
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	o.cache.Import(ctx, state.Entries)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	o.provenance = append(o.provenance, state.Provenance...)
	if excess := len(o.provenance) - o.config.MaxProvenanceRecords; excess > 0 {
		o.provenance = o.provenance[excess:]
	}
	for k, v := range state.Digests {
		o.digests[k] = v
	}
	return nil
}
