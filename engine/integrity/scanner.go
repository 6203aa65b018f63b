// Package integrity re-derives outstanding work from persisted state:
// it scans the current snapshot against local documents and the record
// store, and merges its findings with snapshot additions into one
// deterministic work list.
package integrity

import (
	"context"
	"fmt"

	"github.com/halcyon-health/devicekb/engine/domain"
	"github.com/halcyon-health/devicekb/engine/snapshot"
)

// DocumentStore answers whether a submission's source document exists
// locally. Satisfied by docs.Dir.
type DocumentStore interface {
	Exists(submissionID string) bool
}

// RecordLookup is the read side of the relational store needed by the
// scanner. Satisfied by store.DeviceStore.
type RecordLookup interface {
	Get(ctx context.Context, submissionID string) (domain.DeviceRecord, bool, error)
}

// Scan walks every id in the current snapshot and flags those whose
// local state is incomplete: document missing on disk, or stored
// extraction absent/too short to be usable. Read-only; findings are
// ordered ascending by submission id.
func Scan(ctx context.Context, snap snapshot.Snapshot, docs DocumentStore, records RecordLookup) ([]domain.WorkItem, error) {
	var found []domain.WorkItem
	for _, id := range snap.IDs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		meta, _ := snap.Get(id)

		if !docs.Exists(id) {
			found = append(found, domain.WorkItem{Meta: meta, Reason: domain.ReasonMissingDocument})
			continue
		}

		rec, ok, err := records.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("integrity: lookup %s: %w", id, err)
		}
		if !ok || !rec.Usable() {
			found = append(found, domain.WorkItem{Meta: meta, Reason: domain.ReasonCorruptedExtraction})
		}
	}
	return found, nil
}
