package core

import (
	"sort"

	"piecework.app/piecework/timesheet/model"
)

type Capability string

const (
	CapSubmitTimesheet     Capability = "timesheet.submit"
	CapViewOwnTimesheets   Capability = "timesheet.view_own"
	CapApproveSupervisor   Capability = "approval.supervisor"
	CapApproveSectionChief Capability = "approval.section_chief"
	CapEditQuantity        Capability = "approval.edit_quantity"
	CapDeleteTimesheet     Capability = "timesheet.delete"
	CapExportTimesheets    Capability = "timesheet.export"
	CapManageProcesses     Capability = "process.manage"
	CapImportProcesses     Capability = "process.import"
	CapManageRecycleBin    Capability = "recycle_bin.manage"
	CapManageUsers         Capability = "user.manage"
	CapManageCompanies     Capability = "company.manage"
)

var roleCapabilities = map[model.Role][]Capability{
	model.RoleEmployee: {
		CapSubmitTimesheet,
		CapViewOwnTimesheets,
	},
	model.RoleSupervisor: {
		CapSubmitTimesheet,
		CapViewOwnTimesheets,
		CapApproveSupervisor,
		CapEditQuantity,
		CapDeleteTimesheet,
	},
	model.RoleSectionChief: {
		CapSubmitTimesheet,
		CapViewOwnTimesheets,
		CapApproveSectionChief,
		CapEditQuantity,
		CapDeleteTimesheet,
		CapExportTimesheets,
	},
	model.RoleAdmin: {
		CapViewOwnTimesheets,
		CapDeleteTimesheet,
		CapExportTimesheets,
		CapManageProcesses,
		CapImportProcesses,
		CapManageRecycleBin,
		CapManageUsers,
	},
	model.RoleSuperAdmin: {
		CapViewOwnTimesheets,
		CapApproveSupervisor,
		CapApproveSectionChief,
		CapEditQuantity,
		CapDeleteTimesheet,
		CapExportTimesheets,
		CapManageProcesses,
		CapImportProcesses,
		CapManageRecycleBin,
		CapManageUsers,
		CapManageCompanies,
	},
}

// Capabilities is the single source of what a role may do. Route guards and
// the session payload sent to the UI both read it.
func Capabilities(role model.Role) []Capability {
	caps := append([]Capability(nil), roleCapabilities[role]...)
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

func Can(role model.Role, capability Capability) bool {
	for _, c := range roleCapabilities[role] {
		if c == capability {
			return true
		}
	}
	return false
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID    string
	Name      string
	Role      model.Role
	CompanyID string
}

func (a Actor) Can(capability Capability) bool {
	return Can(a.Role, capability)
}

func (a Actor) IsSuperAdmin() bool {
	return a.Role == model.RoleSuperAdmin
}

// Require returns ErrForbidden unless the actor holds capability.
func (a Actor) Require(capability Capability) error {
	if !a.Can(capability) {
		return ErrForbidden
	}
	return nil
}

// CanSeeCompany reports whether rows of companyID are visible to the actor.
func (a Actor) CanSeeCompany(companyID string) bool {
	return a.IsSuperAdmin() || a.CompanyID == companyID
}

// companyScope is the company filter for list queries; empty means all.
func (a Actor) companyScope() string {
	if a.IsSuperAdmin() {
		return ""
	}
	return a.CompanyID
}
