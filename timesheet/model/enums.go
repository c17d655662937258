package model

type Role string

const (
	RoleSuperAdmin   Role = "super_admin"
	RoleAdmin        Role = "admin"
	RoleSectionChief Role = "section_chief"
	RoleSupervisor   Role = "supervisor"
	RoleEmployee     Role = "employee"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleSectionChief, RoleSupervisor, RoleEmployee:
		return true
	}
	return false
}

type WorkCategory string

const (
	CategoryProduction    WorkCategory = "production"
	CategoryNonProduction WorkCategory = "non-production"
)

func (c WorkCategory) Valid() bool {
	return c == CategoryProduction || c == CategoryNonProduction
}

type ShiftType string

const (
	ShiftDay   ShiftType = "day"
	ShiftNight ShiftType = "night"
)

func (s ShiftType) Valid() bool {
	return s == ShiftDay || s == ShiftNight
}

const DefaultUnit = "件"
