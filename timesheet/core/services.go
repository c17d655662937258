package core

import (
	"time"

	"go.uber.org/zap"

	"piecework.app/piecework/timesheet/repository"
)

// Dependencies are the collaborators shared by every service.
type Dependencies struct {
	Repo *repository.Repository
	// Privileged removes recycle bin entries the regular connection may not.
	Privileged repository.RecycleBinRepository
	Drafts     DraftStore
	Archiver   Archiver
	Notifier   Notifier
	Auth       AuthSettings
	Retention  time.Duration
	ImportMax  int64
	ChunkSize  int
}

type Services struct {
	Auth       *AuthService
	Timesheets *TimesheetService
	Approvals  *ApprovalService
	RecycleBin *RecycleBinService
	Processes  *ProcessService
	Imports    *ImportService
	Admin      *AdminService
	Exports    *ExportService
}

func NewServices(deps Dependencies, logger *zap.Logger) *Services {
	if deps.Drafts == nil {
		deps.Drafts = NewMemoryDraftStore(DraftTTL)
	}
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	opts := []ImportOption{
		WithImportNotifier(deps.Notifier),
		WithImportLimits(deps.ImportMax, deps.ChunkSize),
	}
	if deps.Archiver != nil {
		opts = append(opts, WithArchiver(deps.Archiver))
	}
	return &Services{
		Auth:       NewAuthService(deps.Repo, deps.Auth, logger),
		Timesheets: NewTimesheetService(deps.Repo, logger),
		Approvals:  NewApprovalService(deps.Repo, deps.Drafts, logger),
		RecycleBin: NewRecycleBinService(deps.Repo, deps.Privileged, deps.Retention, logger),
		Processes:  NewProcessService(deps.Repo, logger),
		Imports:    NewImportService(deps.Repo, logger, opts...),
		Admin:      NewAdminService(deps.Repo, logger),
		Exports:    NewExportService(deps.Repo, logger),
	}
}
