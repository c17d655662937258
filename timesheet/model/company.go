package model

import "time"

type Company struct {
	ID        string    `gorm:"primaryKey;column:id;type:char(36)" json:"id"`
	Name      string    `gorm:"column:name;type:varchar(200);not null;uniqueIndex" json:"name"`
	Active    bool      `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updatedAt"`
}

func (Company) TableName() string {
	return "companies"
}
