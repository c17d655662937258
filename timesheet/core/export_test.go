package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"piecework.app/piecework/timesheet/model"
)

func TestExport(t *testing.T) {
	s := newFixture(t)
	seedRecord(s, "r1", "2024-03-02", model.StatusSectionChiefApproved, t0, "4", "6")
	seedRecord(s, "r2", "2024-03-01", model.StatusSectionChiefApproved, t0.Add(1), "2")
	seedRecord(s, "r3", "2024-03-03", model.StatusApproved, t0.Add(2), "100")
	seedRecord(s, "r4", "2024-04-01", model.StatusSectionChiefApproved, t0.Add(3), "100")
	svc := NewExportService(s.Repository(), zap.NewNop())
	ctx := context.Background()

	buf, name, err := svc.Export(ctx, chief, ExportFilter{From: "2024-03-01", To: "2024-03-31"})
	require.NoError(t, err)
	assert.Equal(t, "timesheets_2024-03-01_2024-03-31.xlsx", name)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportDetailSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Work date", rows[0][0])
	assert.Equal(t, []string{"2024-03-01", "Li Na", "day", "Line A", "production", "Widget", "Cut", "2", model.DefaultUnit, "1.5", "3"}, rows[1][:11])
	assert.Equal(t, "2024-03-02", rows[2][0])
	assert.Equal(t, "2024-03-02", rows[3][0])
	assert.Equal(t, []string{"Total", "18"}, rows[4][9:11])

	summary, err := f.GetRows(exportSummarySheet)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, []string{"Li Na", "2", "18"}, summary[1])
}

func TestExportRejects(t *testing.T) {
	s := newFixture(t)
	svc := NewExportService(s.Repository(), zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name   string
		actor  Actor
		filter ExportFilter
		want   error
	}{
		{name: "supervisor", actor: supervisor, filter: ExportFilter{From: "2024-03-01", To: "2024-03-31"}, want: ErrForbidden},
		{name: "missing range", actor: admin, filter: ExportFilter{From: "2024-03-01"}, want: ErrValidation},
		{name: "reversed range", actor: admin, filter: ExportFilter{From: "2024-03-31", To: "2024-03-01"}, want: ErrValidation},
		{name: "other company", actor: admin, filter: ExportFilter{CompanyID: otherCompanyID, From: "2024-03-01", To: "2024-03-31"}, want: ErrForbidden},
		{name: "nothing approved", actor: admin, filter: ExportFilter{From: "2024-03-01", To: "2024-03-31"}, want: ErrExportEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Export(ctx, tt.actor, tt.filter)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
