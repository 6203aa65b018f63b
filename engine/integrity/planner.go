package integrity

import (
	"sort"

	"github.com/halcyon-health/devicekb/engine/domain"
)

// Plan merges snapshot additions with scanner findings into one work
// list. Deduplicated by submission id with the "new" reason winning
// when an id appears in both inputs, and sorted ascending by id so
// repeated runs process items in the same order.
func Plan(added []domain.DeviceMeta, findings []domain.WorkItem) []domain.WorkItem {
	byID := make(map[string]domain.WorkItem, len(added)+len(findings))
	for _, m := range added {
		byID[m.SubmissionID] = domain.WorkItem{Meta: m, Reason: domain.ReasonNew}
	}
	for _, f := range findings {
		if _, ok := byID[f.Meta.SubmissionID]; !ok {
			byID[f.Meta.SubmissionID] = f
		}
	}

	plan := make([]domain.WorkItem, 0, len(byID))
	for _, item := range byID {
		plan = append(plan, item)
	}
	sort.Slice(plan, func(i, j int) bool {
		return plan[i].Meta.SubmissionID < plan[j].Meta.SubmissionID
	})
	return plan
}
