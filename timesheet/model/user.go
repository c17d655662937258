package model

import "time"

type User struct {
	ID           string `gorm:"primaryKey;column:id;type:char(36)" json:"id"`
	CompanyID    string `gorm:"column:company_id;type:char(36);not null;index" json:"companyId"`
	Username     string `gorm:"column:username;type:varchar(100);not null;uniqueIndex" json:"username"`
	Name         string `gorm:"column:name;type:varchar(200);not null" json:"name"`
	PasswordHash string `gorm:"column:password_hash;type:varchar(100);not null" json:"-"`
	Role         Role   `gorm:"column:role;type:varchar(20);not null" json:"role"`
	// Default approvers copied onto the user's submissions.
	SupervisorID   *string    `gorm:"column:supervisor_id;type:char(36)" json:"supervisorId,omitempty"`
	SectionChiefID *string    `gorm:"column:section_chief_id;type:char(36)" json:"sectionChiefId,omitempty"`
	Active         bool       `gorm:"column:active;not null;default:true" json:"active"`
	LastLoginAt    *time.Time `gorm:"column:last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;not null" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}
