package core

import (
	"context"
	"fmt"

	"piecework.app/piecework/timesheet/model"
	"piecework.app/piecework/timesheet/repository"
	"piecework.app/piecework/utils"
)

// resolveItems attaches process details to every item in one batched
// lookup. Items whose process cannot be resolved are dropped, and so are
// records left without items. The lookup table lives only for this call.
func resolveItems(ctx context.Context, processes repository.ProcessRepository, policy utils.RetryPolicy, records []model.TimesheetRecord) ([]model.TimesheetRecord, error) {
	var ids []string
	for _, r := range records {
		for _, it := range r.Items {
			ids = append(ids, it.ProcessID)
		}
	}
	ids = utils.Unique(ids)
	if len(ids) == 0 {
		return []model.TimesheetRecord{}, nil
	}

	found, err := utils.Retry(ctx, policy, func(ctx context.Context) ([]model.Process, error) {
		return processes.FindByIDs(ctx, ids)
	})
	if err != nil {
		return nil, fmt.Errorf("resolve processes: %w", err)
	}
	lookup := make(map[string]*model.ProcessInfo, len(found))
	for _, p := range found {
		lookup[p.ID] = p.Info()
	}

	out := make([]model.TimesheetRecord, 0, len(records))
	for _, r := range records {
		items := make([]model.TimesheetLineItem, 0, len(r.Items))
		for _, it := range r.Items {
			info, ok := lookup[it.ProcessID]
			if !ok {
				continue
			}
			it.Process = info
			items = append(items, it)
		}
		if len(items) == 0 {
			continue
		}
		r.Items = items
		out = append(out, r)
	}
	return out, nil
}
