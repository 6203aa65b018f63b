package integrity

import (
	"context"
	"strings"
	"testing"

	"github.com/halcyon-health/devicekb/engine/domain"
	"github.com/halcyon-health/devicekb/engine/snapshot"
)

type fakeDocs map[string]bool

func (f fakeDocs) Exists(id string) bool { return f[id] }

type fakeRecords map[string]domain.DeviceRecord

func (f fakeRecords) Get(_ context.Context, id string) (domain.DeviceRecord, bool, error) {
	rec, ok := f[id]
	return rec, ok, nil
}

func record(id string, textLen int) domain.DeviceRecord {
	return domain.DeviceRecord{
		DeviceMeta:    domain.DeviceMeta{SubmissionID: id},
		ExtractedText: strings.Repeat("x", textLen),
	}
}

func TestScan(t *testing.T) {
	snap := snapshot.FromRows([]domain.DeviceMeta{
		{SubmissionID: "K100001"}, // no document on disk
		{SubmissionID: "K100002"}, // document present, no stored record
		{SubmissionID: "K100003"}, // document present, text below threshold
		{SubmissionID: "K100004"}, // fully usable
	})
	docs := fakeDocs{"K100002": true, "K100003": true, "K100004": true}
	records := fakeRecords{
		"K100003": record("K100003", 50),
		"K100004": record("K100004", 400),
	}

	found, err := Scan(context.Background(), snap, docs, records)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	want := map[string]domain.Reason{
		"K100001": domain.ReasonMissingDocument,
		"K100002": domain.ReasonCorruptedExtraction,
		"K100003": domain.ReasonCorruptedExtraction,
	}
	if len(found) != len(want) {
		t.Fatalf("found %d items, want %d: %+v", len(found), len(want), found)
	}
	for _, item := range found {
		if want[item.Meta.SubmissionID] != item.Reason {
			t.Errorf("%s flagged %q, want %q",
				item.Meta.SubmissionID, item.Reason, want[item.Meta.SubmissionID])
		}
	}
}

func TestScan_UsableRecordNotFlagged(t *testing.T) {
	snap := snapshot.FromRows([]domain.DeviceMeta{{SubmissionID: "K100004"}})
	found, err := Scan(context.Background(), snap,
		fakeDocs{"K100004": true},
		fakeRecords{"K100004": record("K100004", domain.MinExtractedText)})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("usable record flagged: %+v", found)
	}
}

func TestPlan_DedupNewWins(t *testing.T) {
	added := []domain.DeviceMeta{{SubmissionID: "K100002"}, {SubmissionID: "K100001"}}
	findings := []domain.WorkItem{
		{Meta: domain.DeviceMeta{SubmissionID: "K100002"}, Reason: domain.ReasonMissingDocument},
		{Meta: domain.DeviceMeta{SubmissionID: "K100003"}, Reason: domain.ReasonCorruptedExtraction},
	}

	plan := Plan(added, findings)
	if len(plan) != 3 {
		t.Fatalf("plan len = %d, want 3", len(plan))
	}
	// Ascending by id.
	for i, wantID := range []string{"K100001", "K100002", "K100003"} {
		if plan[i].Meta.SubmissionID != wantID {
			t.Errorf("plan[%d] = %s, want %s", i, plan[i].Meta.SubmissionID, wantID)
		}
	}
	// K100002 appears in both inputs; "new" wins.
	if plan[1].Reason != domain.ReasonNew {
		t.Errorf("duplicate id reason = %q, want new", plan[1].Reason)
	}
	if plan[2].Reason != domain.ReasonCorruptedExtraction {
		t.Errorf("plan[2] reason = %q", plan[2].Reason)
	}
}

func TestPlan_Empty(t *testing.T) {
	if got := Plan(nil, nil); len(got) != 0 {
		t.Errorf("empty plan = %+v", got)
	}
}

// A converged state (unchanged snapshot, every document on disk, every
// record usable) must plan zero work, so re-running the pipeline is a
// no-op.
func TestPlan_ConvergedStateYieldsNoWork(t *testing.T) {
	rows := []domain.DeviceMeta{
		{SubmissionID: "K100001"},
		{SubmissionID: "K100002"},
		{SubmissionID: "DEN240047"},
	}
	snap := snapshot.FromRows(rows)
	docs := fakeDocs{}
	records := fakeRecords{}
	for _, m := range rows {
		docs[m.SubmissionID] = true
		records[m.SubmissionID] = record(m.SubmissionID, 400)
	}

	changes := snapshot.Diff(snap, snap)
	if len(changes.Added) != 0 || len(changes.Removed) != 0 {
		t.Fatalf("identical snapshots diffed: %+v", changes)
	}
	findings, err := Scan(context.Background(), snap, docs, records)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if plan := Plan(changes.Added, findings); len(plan) != 0 {
		t.Fatalf("converged state planned work: %+v", plan)
	}
}
