package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"piecework.app/piecework/timesheet/model"
)

func record(id, employee, date string, created time.Time, status model.Status, items ...string) model.TimesheetRecord {
	r := model.TimesheetRecord{
		ID: id, EmployeeID: employee, EmployeeName: employee + "-name", WorkDate: date,
		ShiftType: model.ShiftDay, Status: status, CreatedAt: created, UpdatedAt: created,
	}
	for _, it := range items {
		r.Items = append(r.Items, model.TimesheetLineItem{ID: it, RecordID: id, Quantity: dec("1"), Amount: dec("2")})
	}
	return r
}

func TestGroupRecords(t *testing.T) {
	r1 := record("R1", "E", "2024-03-01", t0.Add(10*time.Hour), model.StatusPending, "i1", "i2")
	r2 := record("R2", "E", "2024-03-01", t0.Add(9*time.Hour), model.StatusPending, "i3")
	r2.UpdatedAt = t0.Add(11 * time.Hour)

	groups := GroupRecords([]model.TimesheetRecord{r1, r2})

	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, "E|2024-03-01", g.Key)
	assert.Equal(t, []string{"R1", "R2"}, g.RecordIDs)
	ids := []string{}
	for _, it := range g.AllItems {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"i1", "i2", "i3"}, ids)
	assert.Equal(t, r1.CreatedAt, g.CreatedAt)
	assert.Equal(t, t0.Add(11*time.Hour), g.UpdatedAt)
	assert.Equal(t, model.StatusPending, g.Status)
	assert.True(t, dec("6").Equal(g.TotalAmount))
}

func TestGroupRecordsOrderAndPartition(t *testing.T) {
	records := []model.TimesheetRecord{
		record("A1", "A", "2024-03-01", t0.Add(1*time.Hour), model.StatusPending, "a1"),
		record("B1", "B", "2024-03-01", t0.Add(3*time.Hour), model.StatusApproved, "b1"),
		record("A2", "A", "2024-03-02", t0.Add(2*time.Hour), model.StatusPending, "a2"),
		record("B2", "B", "2024-03-01", t0.Add(5*time.Hour), model.StatusPending, "b2"),
		record("C1", "C", "2024-03-01", t0.Add(3*time.Hour), model.StatusPending),
	}

	groups := GroupRecords(records)

	keys := []string{}
	seen := map[string]bool{}
	total := 0
	for _, g := range groups {
		keys = append(keys, g.Key)
		for _, id := range g.RecordIDs {
			assert.False(t, seen[id], "record %s in two groups", id)
			seen[id] = true
			total++
		}
	}
	assert.Equal(t, len(records), total)
	// B|03-01 is keyed on B1 (first seen, 3h); ties with C keep input order
	assert.Equal(t, []string{"B|2024-03-01", "C|2024-03-01", "A|2024-03-02", "A|2024-03-01"}, keys)
	assert.Equal(t, model.StatusApproved, groups[0].Status)
	assert.Empty(t, groups[1].AllItems)
}

func TestGroupRecordsIdempotent(t *testing.T) {
	records := []model.TimesheetRecord{
		record("A1", "A", "2024-03-01", t0.Add(1*time.Hour), model.StatusPending, "a1"),
		record("B1", "B", "2024-03-01", t0.Add(3*time.Hour), model.StatusPending, "b1"),
		record("A2", "A", "2024-03-01", t0.Add(2*time.Hour), model.StatusPending, "a2"),
	}
	byID := map[string]model.TimesheetRecord{}
	for _, r := range records {
		byID[r.ID] = r
	}

	first := GroupRecords(records)
	var flattened []model.TimesheetRecord
	for _, g := range first {
		for _, id := range g.RecordIDs {
			flattened = append(flattened, byID[id])
		}
	}
	second := GroupRecords(flattened)

	assert.Equal(t, first, second)
}

func TestGroupRecordsEmpty(t *testing.T) {
	assert.Empty(t, GroupRecords(nil))
}

func TestParseGroupKey(t *testing.T) {
	emp, date, err := ParseGroupKey(GroupKey("E", "2024-03-01"))
	require.NoError(t, err)
	assert.Equal(t, "E", emp)
	assert.Equal(t, "2024-03-01", date)

	_, _, err = ParseGroupKey("garbage")
	assert.ErrorIs(t, err, ErrValidation)
}
