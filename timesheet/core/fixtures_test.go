package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"piecework.app/piecework/timesheet/model"
	"piecework.app/piecework/timesheet/repository/repotest"
	"piecework.app/piecework/utils"
)

const (
	companyID      = "company-1"
	otherCompanyID = "company-2"
	employeeID     = "user-employee"
	supervisorID   = "user-supervisor"
	chiefID        = "user-chief"
	adminID        = "user-admin"
	rootID         = "user-root"
	processPriced  = "process-priced"
	processFree    = "process-unpriced"
)

var (
	employee   = Actor{UserID: employeeID, Name: "Li Na", Role: model.RoleEmployee, CompanyID: companyID}
	supervisor = Actor{UserID: supervisorID, Name: "Wang Wei", Role: model.RoleSupervisor, CompanyID: companyID}
	chief      = Actor{UserID: chiefID, Name: "Zhang Min", Role: model.RoleSectionChief, CompanyID: companyID}
	admin      = Actor{UserID: adminID, Name: "Admin", Role: model.RoleAdmin, CompanyID: companyID}
	root       = Actor{UserID: rootID, Name: "Root", Role: model.RoleSuperAdmin, CompanyID: companyID}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newFixture(t *testing.T) *repotest.Store {
	t.Helper()
	s := repotest.New()
	s.SeedCompany(model.Company{ID: companyID, Name: "Acme", Active: true})
	s.SeedCompany(model.Company{ID: otherCompanyID, Name: "Globex", Active: true})
	for _, a := range []Actor{employee, supervisor, chief, admin, root} {
		s.SeedUser(model.User{
			ID: a.UserID, CompanyID: a.CompanyID, Username: a.UserID, Name: a.Name, Role: a.Role, Active: true,
			SupervisorID: utils.Ptr(supervisorID), SectionChiefID: utils.Ptr(chiefID),
		})
	}
	s.SeedProcess(model.Process{
		ID: processPriced, CompanyID: companyID, ProductionLine: "Line A", Category: model.CategoryProduction,
		ProductName: "Widget", ProcessName: "Cut", Unit: model.DefaultUnit,
		UnitPrice: decimal.NewNullDecimal(dec("1.50")), EffectiveMonth: "2024-03", Active: true,
	})
	s.SeedProcess(model.Process{
		ID: processFree, CompanyID: companyID, ProductionLine: "Line A", Category: model.CategoryNonProduction,
		ProductName: "Widget", ProcessName: "Clean", Unit: "h", EffectiveMonth: "2024-03", Active: true,
	})
	return s
}

// seedRecord stores a record for employee with one item per quantity, all on
// the priced process.
func seedRecord(s *repotest.Store, id, workDate string, status model.Status, created time.Time, quantities ...string) model.TimesheetRecord {
	rec := model.TimesheetRecord{
		ID: id, CompanyID: companyID, EmployeeID: employeeID, EmployeeName: employee.Name,
		WorkDate: workDate, ShiftType: model.ShiftDay, Status: status,
		SupervisorID: utils.Ptr(supervisorID), SupervisorName: supervisor.Name,
		SectionChiefID: utils.Ptr(chiefID), SectionChiefName: chief.Name,
		CreatedAt: created, UpdatedAt: created,
	}
	for i, q := range quantities {
		qty := dec(q)
		rec.Items = append(rec.Items, model.TimesheetLineItem{
			ID: id + "-item-" + string(rune('a'+i)), RecordID: id, ProcessID: processPriced,
			Quantity: qty, Unit: model.DefaultUnit, UnitPrice: dec("1.50"), Amount: qty.Mul(dec("1.50")),
			CreatedAt: created.Add(time.Duration(i) * time.Millisecond),
		})
	}
	s.SeedRecord(rec)
	return rec
}

func newApprovalService(s *repotest.Store) *ApprovalService {
	svc := NewApprovalService(s.Repository(), NewMemoryDraftStore(DraftTTL), zap.NewNop())
	svc.retry = utils.RetryPolicy{Attempts: 2, BaseDelay: time.Millisecond}
	return svc
}

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
