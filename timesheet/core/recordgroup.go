package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"piecework.app/piecework/timesheet/model"
)

// GroupedRecord merges every record of one employee on one work date.
type GroupedRecord struct {
	Key              string                    `json:"key"`
	EmployeeID       string                    `json:"employeeId"`
	EmployeeName     string                    `json:"employeeName"`
	WorkDate         string                    `json:"workDate"`
	ShiftType        model.ShiftType           `json:"shiftType"`
	Status           model.Status              `json:"status"`
	SupervisorID     *string                   `json:"supervisorId,omitempty"`
	SupervisorName   string                    `json:"supervisorName,omitempty"`
	SectionChiefID   *string                   `json:"sectionChiefId,omitempty"`
	SectionChiefName string                    `json:"sectionChiefName,omitempty"`
	RecordIDs        []string                  `json:"recordIds"`
	AllItems         []model.TimesheetLineItem `json:"allItems"`
	TotalAmount      decimal.Decimal           `json:"totalAmount"`
	CreatedAt        time.Time                 `json:"createdAt"`
	UpdatedAt        time.Time                 `json:"updatedAt"`

	// Statuses of the constituents, parallel to RecordIDs.
	RecordStatuses []model.Status `json:"recordStatuses"`
}

func GroupKey(employeeID, workDate string) string {
	return employeeID + "|" + workDate
}

func ParseGroupKey(key string) (employeeID, workDate string, err error) {
	parts := strings.SplitN(key, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: malformed group key %q", ErrValidation, key)
	}
	return parts[0], parts[1], nil
}

// GroupRecords groups records by employee and work date. The first record
// seen for a key supplies the group's header fields and its position: groups
// are ordered by that record's creation time, newest first. Items are
// concatenated in input order. The input is not modified.
func GroupRecords(records []model.TimesheetRecord) []GroupedRecord {
	index := make(map[string]int)
	groups := make([]GroupedRecord, 0)

	for _, r := range records {
		key := GroupKey(r.EmployeeID, r.WorkDate)
		i, ok := index[key]
		if !ok {
			groups = append(groups, GroupedRecord{
				Key:              key,
				EmployeeID:       r.EmployeeID,
				EmployeeName:     r.EmployeeName,
				WorkDate:         r.WorkDate,
				ShiftType:        r.ShiftType,
				Status:           r.Status,
				SupervisorID:     r.SupervisorID,
				SupervisorName:   r.SupervisorName,
				SectionChiefID:   r.SectionChiefID,
				SectionChiefName: r.SectionChiefName,
				RecordIDs:        []string{},
				AllItems:         []model.TimesheetLineItem{},
				TotalAmount:      decimal.Zero,
				CreatedAt:        r.CreatedAt,
				UpdatedAt:        r.UpdatedAt,
			})
			i = len(groups) - 1
			index[key] = i
		}

		g := &groups[i]
		g.RecordIDs = append(g.RecordIDs, r.ID)
		g.RecordStatuses = append(g.RecordStatuses, r.Status)
		for _, item := range r.Items {
			g.AllItems = append(g.AllItems, item)
			g.TotalAmount = g.TotalAmount.Add(item.Amount)
		}
		if r.UpdatedAt.After(g.UpdatedAt) {
			g.UpdatedAt = r.UpdatedAt
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].CreatedAt.After(groups[j].CreatedAt)
	})
	return groups
}
