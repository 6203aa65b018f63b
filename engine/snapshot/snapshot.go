// Package snapshot models one fetch of the FDA device spreadsheet and
// computes presence/absence diffs between two fetches.
package snapshot

import (
	"sort"

	"github.com/halcyon-health/devicekb/engine/domain"
)

// Snapshot is an immutable point-in-time view of the metadata source,
// keyed by submission id. Build one with FromRows; never mutate it.
type Snapshot struct {
	rows map[string]domain.DeviceMeta
}

// FromRows builds a Snapshot from already-parsed spreadsheet rows.
// Later rows win on duplicate submission ids.
func FromRows(rows []domain.DeviceMeta) Snapshot {
	m := make(map[string]domain.DeviceMeta, len(rows))
	for _, r := range rows {
		m[r.SubmissionID] = r
	}
	return Snapshot{rows: m}
}

// Empty returns a snapshot with no rows, for first runs.
func Empty() Snapshot {
	return Snapshot{rows: map[string]domain.DeviceMeta{}}
}

// Len returns the number of submissions in the snapshot.
func (s Snapshot) Len() int { return len(s.rows) }

// Get returns the metadata for a submission id.
func (s Snapshot) Get(id string) (domain.DeviceMeta, bool) {
	m, ok := s.rows[id]
	return m, ok
}

// IDs returns all submission ids in ascending order.
func (s Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Changes is the result of comparing two snapshots. Only identifier
// presence counts: field-level edits on an existing id are not a change.
type Changes struct {
	// Added holds full metadata for ids present only in current,
	// ascending by submission id.
	Added []domain.DeviceMeta
	// Removed holds ids present only in prior, ascending. Removal is
	// reported but never acted on; historical documents stay valid.
	Removed []string
}

// Diff compares a prior snapshot (possibly Empty on first run) against
// the current one. Pure; neither snapshot is modified.
func Diff(prior, current Snapshot) Changes {
	var ch Changes
	for id, meta := range current.rows {
		if _, ok := prior.rows[id]; !ok {
			ch.Added = append(ch.Added, meta)
		}
	}
	for id := range prior.rows {
		if _, ok := current.rows[id]; !ok {
			ch.Removed = append(ch.Removed, id)
		}
	}
	sort.Slice(ch.Added, func(i, j int) bool {
		return ch.Added[i].SubmissionID < ch.Added[j].SubmissionID
	})
	sort.Strings(ch.Removed)
	return ch
}
