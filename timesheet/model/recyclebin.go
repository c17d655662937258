package model

import (
	"time"

	"gorm.io/datatypes"
)

type RecycleItemType string

const (
	RecycleTimesheetRecord RecycleItemType = "timesheet_record"
	RecycleProcess         RecycleItemType = "process"
)

func (t RecycleItemType) Valid() bool {
	return t == RecycleTimesheetRecord || t == RecycleProcess
}

type RecycleBinEntry struct {
	ID            string          `gorm:"primaryKey;column:id;type:char(36)" json:"id"`
	CompanyID     string          `gorm:"column:company_id;type:char(36);index" json:"companyId"`
	ItemType      RecycleItemType `gorm:"column:item_type;type:varchar(30);not null;index" json:"itemType"`
	OriginalTable string          `gorm:"column:original_table;type:varchar(64);not null" json:"originalTable"`
	OriginalID    string          `gorm:"column:original_id;type:char(36);not null;index" json:"originalId"`
	DisplayName   string          `gorm:"column:display_name;type:varchar(500)" json:"displayName"`
	Snapshot      datatypes.JSON  `gorm:"column:snapshot;type:json;not null" json:"snapshot"`
	DeletedBy     string          `gorm:"column:deleted_by;type:char(36);not null" json:"deletedBy"`
	DeletedByName string          `gorm:"column:deleted_by_name;type:varchar(200)" json:"deletedByName"`
	DeletedAt     time.Time       `gorm:"column:deleted_at;not null;index" json:"deletedAt"`
	ExpiresAt     time.Time       `gorm:"column:expires_at;not null;index" json:"expiresAt"`
	// Set when the entry could not be removed after a restore or purge.
	IsPermanentlyDeleted bool       `gorm:"column:is_permanently_deleted;not null;default:false" json:"isPermanentlyDeleted"`
	RestoredAt           *time.Time `gorm:"column:restored_at" json:"restoredAt,omitempty"`
	RestoredBy           *string    `gorm:"column:restored_by;type:char(36)" json:"restoredBy,omitempty"`
}

func (RecycleBinEntry) TableName() string {
	return "recycle_bin"
}

type AuditLog struct {
	ID         string         `gorm:"primaryKey;column:id;type:char(36)" json:"id"`
	CompanyID  string         `gorm:"column:company_id;type:char(36);index" json:"companyId"`
	Action     string         `gorm:"column:action;type:varchar(50);not null" json:"action"`
	EntityType string         `gorm:"column:entity_type;type:varchar(64);not null" json:"entityType"`
	EntityID   string         `gorm:"column:entity_id;type:char(36);not null;index" json:"entityId"`
	ActorID    string         `gorm:"column:actor_id;type:char(36);not null" json:"actorId"`
	ActorName  string         `gorm:"column:actor_name;type:varchar(200)" json:"actorName"`
	Details    datatypes.JSON `gorm:"column:details;type:json" json:"details"`
	CreatedAt  time.Time      `gorm:"column:created_at;not null" json:"createdAt"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// All lists every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&Company{},
		&User{},
		&Process{},
		&TimesheetRecord{},
		&TimesheetLineItem{},
		&ApprovalHistoryEntry{},
		&ModificationHistoryEntry{},
		&RecycleBinEntry{},
		&AuditLog{},
	}
}
