package core

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"piecework.app/piecework/timesheet/model"
	"piecework.app/piecework/timesheet/repository"
	"piecework.app/piecework/utils"
)

const (
	exportDetailSheet  = "Timesheets"
	exportSummarySheet = "Summary"
)

var ErrExportEmpty = fmt.Errorf("%w: no approved timesheets in this range", ErrValidation)

type ExportFilter struct {
	CompanyID string `form:"companyId"`
	From      string `form:"from" binding:"required"`
	To        string `form:"to" binding:"required"`
}

type ExportService struct {
	repo   *repository.Repository
	logger *zap.Logger
	retry  utils.RetryPolicy
}

func NewExportService(repo *repository.Repository, logger *zap.Logger) *ExportService {
	return &ExportService{repo: repo, logger: logger.Named("export"), retry: utils.DefaultRetryPolicy}
}

var exportHeader = []interface{}{
	"Work date", "Employee", "Shift", "Production line", "Work-time type", "Product", "Process",
	"Quantity", "Unit", "Unit price", "Amount", "Supervisor", "Section chief",
}

// Export writes the fully approved records of a date range to a workbook:
// one row per line item, grouped by employee and work date, and a summary
// sheet with each employee's total.
func (s *ExportService) Export(ctx context.Context, actor Actor, filter ExportFilter) (*bytes.Buffer, string, error) {
	if err := actor.Require(CapExportTimesheets); err != nil {
		return nil, "", err
	}
	if filter.From == "" || filter.To == "" {
		return nil, "", fieldError("from", "a date range is required")
	}
	if err := checkFilterDates(filter.From, filter.To); err != nil {
		return nil, "", err
	}
	companyID := filter.CompanyID
	if companyID == "" {
		companyID = actor.companyScope()
	}
	if companyID != "" && !actor.CanSeeCompany(companyID) {
		return nil, "", ErrForbidden
	}

	q := repository.RecordQuery{
		CompanyID: companyID,
		Statuses:  []model.Status{model.StatusSectionChiefApproved},
		From:      filter.From,
		To:        filter.To,
	}
	records, err := utils.Retry(ctx, s.retry, func(ctx context.Context) ([]model.TimesheetRecord, error) {
		return s.repo.Records.List(ctx, q)
	})
	if err != nil {
		return nil, "", fmt.Errorf("load records: %w", err)
	}
	records, err = resolveItems(ctx, s.repo.Processes, s.retry, records)
	if err != nil {
		return nil, "", err
	}
	groups := GroupRecords(records)
	if len(groups) == 0 {
		return nil, "", ErrExportEmpty
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].WorkDate != groups[j].WorkDate {
			return groups[i].WorkDate < groups[j].WorkDate
		}
		return groups[i].EmployeeName < groups[j].EmployeeName
	})

	buf, err := writeExport(groups)
	if err != nil {
		s.logger.Error("export workbook failed", zap.Error(err))
		return nil, "", fmt.Errorf("generate workbook: %w", err)
	}
	name := fmt.Sprintf("timesheets_%s_%s.xlsx", filter.From, filter.To)
	s.logger.Info("timesheets exported",
		zap.String("actor", actor.UserID), zap.Int("groups", len(groups)), zap.String("file", name))
	return buf, name, nil
}

type employeeTotal struct {
	name  string
	days  int
	total decimal.Decimal
}

func writeExport(groups []GroupedRecord) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportDetailSheet); err != nil {
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(exportDetailSheet, "A1", &exportHeader); err != nil {
		return nil, err
	}
	totals := map[string]*employeeTotal{}
	var order []string
	grand := decimal.Zero
	row := 2
	for _, g := range groups {
		t, ok := totals[g.EmployeeID]
		if !ok {
			t = &employeeTotal{name: g.EmployeeName, total: decimal.Zero}
			totals[g.EmployeeID] = t
			order = append(order, g.EmployeeID)
		}
		t.days++
		t.total = t.total.Add(g.TotalAmount)
		grand = grand.Add(g.TotalAmount)

		for _, it := range g.AllItems {
			cells := []interface{}{
				g.WorkDate, g.EmployeeName, string(g.ShiftType),
				it.Process.ProductionLine, string(it.Process.Category), it.Process.ProductName, it.Process.ProcessName,
				it.Quantity.InexactFloat64(), it.Unit, it.UnitPrice.InexactFloat64(), it.Amount.InexactFloat64(),
				g.SupervisorName, g.SectionChiefName,
			}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(exportDetailSheet, cell, &cells); err != nil {
				return nil, err
			}
			row++
		}
	}
	totalCell, _ := excelize.CoordinatesToCellName(10, row)
	if err := f.SetSheetRow(exportDetailSheet, totalCell, &[]interface{}{"Total", grand.InexactFloat64()}); err != nil {
		return nil, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeader))
	if err := f.SetCellStyle(exportDetailSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(exportDetailSheet, "A", lastCol, 16); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(exportSummarySheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(exportSummarySheet, "A1", &[]interface{}{"Employee", "Work days", "Amount"}); err != nil {
		return nil, err
	}
	for i, id := range order {
		t := totals[id]
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(exportSummarySheet, cell, &[]interface{}{t.name, t.days, t.total.InexactFloat64()}); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(exportSummarySheet, "A1", "C1", headerStyle); err != nil {
		return nil, err
	}

	return f.WriteToBuffer()
}
