package core

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"piecework.app/piecework/timesheet/model"
	"piecework.app/piecework/timesheet/repository"
	"piecework.app/piecework/utils"
)

const DefaultImportChunkSize = 100

// Archiver keeps a copy of every accepted import file.
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type ImportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type ImportReport struct {
	FileName string     `json:"fileName"`
	Rows     int        `json:"rows"`
	Inserted int        `json:"inserted"`
	Failed   int        `json:"failed"`
	Errors   []RowError `json:"errors"`
	Archive  string     `json:"archive,omitempty"`
}

type ImportService struct {
	repo      *repository.Repository
	archiver  Archiver
	notifier  Notifier
	logger    *zap.Logger
	chunkSize int
	maxBytes  int64
	retry     utils.RetryPolicy
	now       func() time.Time
}

type ImportOption func(*ImportService)

func WithArchiver(a Archiver) ImportOption {
	return func(s *ImportService) { s.archiver = a }
}

func WithImportNotifier(n Notifier) ImportOption {
	return func(s *ImportService) { s.notifier = n }
}

func WithImportLimits(maxBytes int64, chunkSize int) ImportOption {
	return func(s *ImportService) {
		if maxBytes > 0 {
			s.maxBytes = maxBytes
		}
		if chunkSize > 0 {
			s.chunkSize = chunkSize
		}
	}
}

func NewImportService(repo *repository.Repository, logger *zap.Logger, opts ...ImportOption) *ImportService {
	s := &ImportService{
		repo:      repo,
		notifier:  NopNotifier{},
		logger:    logger.Named("import"),
		chunkSize: DefaultImportChunkSize,
		maxBytes:  DefaultImportMaxBytes,
		retry:     utils.DefaultRetryPolicy,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxBytes is the largest file Import accepts.
func (s *ImportService) MaxBytes() int64 {
	return s.maxBytes
}

// importScope caches the companies and live process keys looked up while
// validating one file.
type importScope struct {
	companies map[string]*model.Company
	keys      map[string]map[string]bool
}

func (s *ImportService) company(ctx context.Context, scope *importScope, name string) (*model.Company, error) {
	if c, ok := scope.companies[name]; ok {
		return c, nil
	}
	c, err := utils.Retry(ctx, s.retry, func(ctx context.Context) (*model.Company, error) {
		return s.repo.Companies.FindByName(ctx, name)
	})
	if repository.IsNotFound(err) {
		scope.companies[name] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load company %q: %w", name, err)
	}
	scope.companies[name] = c
	return c, nil
}

func (s *ImportService) existingKeys(ctx context.Context, scope *importScope, companyID string) (map[string]bool, error) {
	if keys, ok := scope.keys[companyID]; ok {
		return keys, nil
	}
	live, err := utils.Retry(ctx, s.retry, func(ctx context.Context) ([]model.Process, error) {
		return s.repo.Processes.List(ctx, repository.ProcessQuery{CompanyID: companyID, ActiveOnly: true})
	})
	if err != nil {
		return nil, fmt.Errorf("load processes: %w", err)
	}
	keys := make(map[string]bool, len(live))
	for _, p := range live {
		keys[p.DuplicateKey()] = true
	}
	scope.keys[companyID] = keys
	return keys, nil
}

// importCandidate is a validated row ready for insertion.
type importCandidate struct {
	row     int
	process model.Process
}

// Validate checks every row and collects all problems. The processes are
// only meaningful when no errors were reported.
func (s *ImportService) Validate(ctx context.Context, actor Actor, rows []ImportRow) ([]model.Process, []RowError, error) {
	candidates, errs, err := s.validate(ctx, actor, rows)
	if err != nil {
		return nil, nil, err
	}
	return utils.Map(candidates, func(c importCandidate) model.Process { return c.process }), errs, nil
}

func (s *ImportService) validate(ctx context.Context, actor Actor, rows []ImportRow) ([]importCandidate, []RowError, error) {
	scope := &importScope{companies: map[string]*model.Company{}, keys: map[string]map[string]bool{}}
	seen := map[string]int{}
	var (
		candidates []importCandidate
		errs       []RowError
	)

	for _, row := range rows {
		rowErrs := len(errs)
		fail := func(field, format string, args ...interface{}) {
			errs = append(errs, RowError{Row: row.Row, Field: field, Message: fmt.Sprintf(format, args...)})
		}

		required := []struct{ field, value string }{
			{"company", row.Company},
			{"productionLine", row.ProductionLine},
			{"category", row.Category},
			{"productName", row.ProductName},
			{"processName", row.ProcessName},
			{"effectiveMonth", row.EffectiveMonth},
		}
		for _, r := range required {
			if r.value == "" {
				fail(r.field, "is required")
			}
		}

		category := model.WorkCategory(strings.ToLower(row.Category))
		if row.Category != "" && !category.Valid() {
			fail("category", "must be %q or %q, got %q", model.CategoryProduction, model.CategoryNonProduction, row.Category)
		}

		var price decimal.NullDecimal
		if row.UnitPrice != "" {
			d, err := decimal.NewFromString(row.UnitPrice)
			switch {
			case err != nil:
				fail("unitPrice", "%q is not a number", row.UnitPrice)
			case d.IsNegative():
				fail("unitPrice", "must not be negative")
			default:
				price = decimal.NewNullDecimal(d)
			}
		}

		var month string
		if row.EffectiveMonth != "" {
			m, err := utils.NormalizeMonth(row.EffectiveMonth)
			if err != nil {
				fail("effectiveMonth", "%v", err)
			}
			month = m
		}

		var company *model.Company
		if row.Company != "" {
			c, err := s.company(ctx, scope, row.Company)
			if err != nil {
				return nil, nil, err
			}
			switch {
			case c == nil:
				fail("company", "company %q does not exist", row.Company)
			case !actor.CanSeeCompany(c.ID):
				fail("company", "you cannot import processes for %q", row.Company)
			default:
				company = c
			}
		}

		if company == nil || len(errs) > rowErrs {
			continue
		}

		unit := row.Unit
		if unit == "" {
			unit = model.DefaultUnit
		}
		p := model.Process{
			ID:             uuid.NewString(),
			CompanyID:      company.ID,
			ProductionLine: row.ProductionLine,
			Category:       category,
			ProductName:    row.ProductName,
			ProcessName:    row.ProcessName,
			Unit:           unit,
			UnitPrice:      price,
			EffectiveMonth: month,
			Active:         true,
		}

		key := p.DuplicateKey()
		if first, dup := seen[key]; dup {
			fail("processName", "duplicates row %d", first)
			continue
		}
		seen[key] = row.Row

		existing, err := s.existingKeys(ctx, scope, company.ID)
		if err != nil {
			return nil, nil, err
		}
		if existing[key] {
			fail("processName", "%s already exists for %s", p.DisplayName(), company.Name)
			continue
		}
		candidates = append(candidates, importCandidate{row: row.Row, process: p})
	}
	return candidates, errs, nil
}

func (s *ImportService) insertChunk(ctx context.Context, chunk []importCandidate, report *ImportReport) {
	batch := utils.Map(chunk, func(c importCandidate) model.Process { return c.process })
	err := s.repo.Processes.CreateBatch(ctx, batch)
	if err == nil {
		report.Inserted += len(batch)
		return
	}
	s.logger.Warn("chunk insert failed, inserting rows one by one", zap.Int("size", len(batch)), zap.Error(err))

	for _, c := range chunk {
		p := c.process
		if err := s.repo.Processes.Create(ctx, &p); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, RowError{Row: c.row, Message: err.Error()})
			continue
		}
		report.Inserted++
	}
}

// Import validates the file as a whole and inserts nothing unless every row
// passes. Insertion goes in chunks; a failed chunk is retried row by row
// and the rows that still fail are reported.
func (s *ImportService) Import(ctx context.Context, actor Actor, file ImportFile) (*ImportReport, error) {
	if err := actor.Require(CapImportProcesses); err != nil {
		return nil, err
	}
	if err := CheckImportFile(file.Name, int64(len(file.Data)), file.ContentType, s.maxBytes); err != nil {
		return nil, err
	}
	rows, err := ParseProcessSheet(file.Name, bytes.NewReader(file.Data))
	if err != nil {
		return nil, err
	}

	report := &ImportReport{FileName: file.Name, Rows: len(rows), Errors: []RowError{}}
	candidates, rowErrs, err := s.validate(ctx, actor, rows)
	if err != nil {
		return nil, err
	}
	if len(rowErrs) > 0 {
		report.Errors = rowErrs
		s.logger.Info("import rejected",
			zap.String("file", file.Name), zap.Int("rows", len(rows)), zap.Int("errors", len(rowErrs)))
		return report, ErrImportRejected
	}

	for _, chunk := range utils.Chunk(candidates, s.chunkSize) {
		s.insertChunk(ctx, chunk, report)
	}

	if s.archiver != nil {
		key := path.Join("imports", s.now().Format("2006/01/02"), uuid.NewString()+"-"+path.Base(file.Name))
		location, err := s.archiver.Archive(ctx, key, file.Data, file.ContentType)
		if err != nil {
			s.logger.Warn("import archive failed", zap.String("file", file.Name), zap.Error(err))
		} else {
			report.Archive = location
		}
	}

	s.logger.Info("import finished",
		zap.String("file", file.Name), zap.String("actor", actor.UserID),
		zap.Int("inserted", report.Inserted), zap.Int("failed", report.Failed))
	msg := fmt.Sprintf("process import %s by %s: %d inserted, %d failed", file.Name, nonEmpty(actor.Name, actor.UserID), report.Inserted, report.Failed)
	if err := s.notifier.Info(msg); err != nil {
		s.logger.Warn("import notification failed", zap.Error(err))
	}
	return report, nil
}
