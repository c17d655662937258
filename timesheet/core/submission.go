package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"piecework.app/piecework/timesheet/model"
	"piecework.app/piecework/timesheet/repository"
	"piecework.app/piecework/utils"
)

type SubmitItem struct {
	ProcessID string          `json:"processId" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type Submission struct {
	WorkDate  string          `json:"workDate" binding:"required"`
	ShiftType model.ShiftType `json:"shiftType" binding:"required"`
	Items     []SubmitItem    `json:"items" binding:"required,min=1,dive"`
}

// RecordFilter narrows an employee's own history by inclusive work dates.
type RecordFilter struct {
	From string `form:"from"`
	To   string `form:"to"`
}

type TimesheetService struct {
	repo   *repository.Repository
	logger *zap.Logger
	retry  utils.RetryPolicy
}

func NewTimesheetService(repo *repository.Repository, logger *zap.Logger) *TimesheetService {
	return &TimesheetService{
		repo:   repo,
		logger: logger.Named("timesheet"),
		retry:  utils.DefaultRetryPolicy,
	}
}

func (s *TimesheetService) userName(ctx context.Context, id *string) string {
	if id == nil {
		return ""
	}
	u, err := s.repo.Users.FindByID(ctx, *id)
	if err != nil {
		s.logger.Warn("approver not found", zap.String("user", *id), zap.Error(err))
		return ""
	}
	return u.Name
}

func checkFilterDates(from, to string) error {
	if from != "" && !utils.IsDate(from) {
		return fieldError("from", "must be a yyyy-mm-dd date")
	}
	if to != "" && !utils.IsDate(to) {
		return fieldError("to", "must be a yyyy-mm-dd date")
	}
	if from != "" && to != "" && from > to {
		return fieldError("to", "must not be before from")
	}
	return nil
}

// Submit stores one record for the actor. Unit prices are copied from the
// processes as they are now so later price changes leave the record alone.
func (s *TimesheetService) Submit(ctx context.Context, actor Actor, in Submission) (*model.TimesheetRecord, error) {
	if err := actor.Require(CapSubmitTimesheet); err != nil {
		return nil, err
	}
	if !utils.IsDate(in.WorkDate) {
		return nil, fieldError("workDate", "must be a yyyy-mm-dd date")
	}
	if !in.ShiftType.Valid() {
		return nil, fieldError("shiftType", "must be %q or %q", model.ShiftDay, model.ShiftNight)
	}
	if len(in.Items) == 0 {
		return nil, fieldError("items", "at least one item is required")
	}

	user, err := s.repo.Users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("load employee: %w", err)
	}

	ids := utils.Unique(utils.Map(in.Items, func(it SubmitItem) string { return it.ProcessID }))
	found, err := utils.Retry(ctx, s.retry, func(ctx context.Context) ([]model.Process, error) {
		return s.repo.Processes.FindByIDs(ctx, ids)
	})
	if err != nil {
		return nil, fmt.Errorf("load processes: %w", err)
	}
	processes := make(map[string]model.Process, len(found))
	for _, p := range found {
		processes[p.ID] = p
	}

	rec := &model.TimesheetRecord{
		ID:               uuid.NewString(),
		CompanyID:        user.CompanyID,
		EmployeeID:       user.ID,
		EmployeeName:     user.Name,
		WorkDate:         in.WorkDate,
		ShiftType:        in.ShiftType,
		Status:           model.StatusPending,
		SupervisorID:     user.SupervisorID,
		SupervisorName:   s.userName(ctx, user.SupervisorID),
		SectionChiefID:   user.SectionChiefID,
		SectionChiefName: s.userName(ctx, user.SectionChiefID),
	}
	for i, it := range in.Items {
		field := fmt.Sprintf("items[%d]", i)
		p, ok := processes[it.ProcessID]
		if !ok || !p.Active || p.CompanyID != user.CompanyID {
			return nil, fieldError(field+".processId", "process %s is not available", it.ProcessID)
		}
		if err := ValidateQuantity(p.Category, it.Quantity); err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		rec.Items = append(rec.Items, model.TimesheetLineItem{
			ID:        uuid.NewString(),
			RecordID:  rec.ID,
			ProcessID: p.ID,
			Quantity:  it.Quantity,
			Unit:      p.Unit,
			UnitPrice: p.UnitPrice.Decimal,
			Amount:    Amount(it.Quantity, p.UnitPrice),
			Process:   p.Info(),
		})
	}

	if err := s.repo.Records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}
	s.logger.Info("timesheet submitted",
		zap.String("record", rec.ID), zap.String("employee", rec.EmployeeID),
		zap.String("workDate", rec.WorkDate), zap.Int("items", len(rec.Items)))
	return rec, nil
}

// History lists the actor's own records grouped by work date.
func (s *TimesheetService) History(ctx context.Context, actor Actor, filter RecordFilter) ([]GroupedRecord, error) {
	if err := actor.Require(CapViewOwnTimesheets); err != nil {
		return nil, err
	}
	if err := checkFilterDates(filter.From, filter.To); err != nil {
		return nil, err
	}
	records, err := utils.Retry(ctx, s.retry, func(ctx context.Context) ([]model.TimesheetRecord, error) {
		return s.repo.Records.List(ctx, repository.RecordQuery{EmployeeID: actor.UserID, From: filter.From, To: filter.To})
	})
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	records, err = resolveItems(ctx, s.repo.Processes, s.retry, records)
	if err != nil {
		return nil, err
	}
	return GroupRecords(records), nil
}

// canView reports whether actor may read rec: its owner, its assigned
// approvers, and anyone managing timesheets in the same company.
func canView(actor Actor, rec *model.TimesheetRecord) bool {
	if !actor.CanSeeCompany(rec.CompanyID) {
		return false
	}
	switch {
	case rec.EmployeeID == actor.UserID:
		return true
	case utils.Deref(rec.SupervisorID) == actor.UserID, utils.Deref(rec.SectionChiefID) == actor.UserID:
		return true
	}
	return actor.Can(CapDeleteTimesheet) && (actor.Role == model.RoleAdmin || actor.IsSuperAdmin())
}

// Get loads one record with its items resolved.
func (s *TimesheetService) Get(ctx context.Context, actor Actor, recordID string) (*model.TimesheetRecord, error) {
	rec, err := utils.Retry(ctx, s.retry, func(ctx context.Context) (*model.TimesheetRecord, error) {
		return s.repo.Records.FindByID(ctx, recordID)
	})
	if err != nil {
		return nil, err
	}
	if !canView(actor, rec) {
		return nil, ErrForbidden
	}
	resolved, err := resolveItems(ctx, s.repo.Processes, s.retry, []model.TimesheetRecord{*rec})
	if err != nil {
		return nil, err
	}
	if len(resolved) == 0 {
		rec.Items = []model.TimesheetLineItem{}
		return rec, nil
	}
	return &resolved[0], nil
}

