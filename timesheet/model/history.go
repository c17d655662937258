package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type HistoryAction string

const (
	ActionApproved HistoryAction = "approved"
	ActionRejected HistoryAction = "rejected"
	ActionRestored HistoryAction = "restored"
)

// ApprovalHistoryEntry is append-only.
type ApprovalHistoryEntry struct {
	ID           string        `gorm:"primaryKey;column:id;type:char(36)" json:"id"`
	RecordID     string        `gorm:"column:record_id;type:char(36);not null;index" json:"recordId"`
	ApproverID   string        `gorm:"column:approver_id;type:char(36);not null" json:"approverId"`
	ApproverName string        `gorm:"column:approver_name;type:varchar(200)" json:"approverName"`
	ApproverType ApproverType  `gorm:"column:approver_type;type:varchar(20);not null" json:"approverType"`
	Action       HistoryAction `gorm:"column:action;type:varchar(20);not null" json:"action"`
	Comment      string        `gorm:"column:comment;type:text" json:"comment"`
	CreatedAt    time.Time     `gorm:"column:created_at;not null" json:"createdAt"`
}

func (ApprovalHistoryEntry) TableName() string {
	return "approval_history"
}

type ModificationHistoryEntry struct {
	ID          string          `gorm:"primaryKey;column:id;type:char(36)" json:"id"`
	ItemID      string          `gorm:"column:item_id;type:char(36);not null;index" json:"itemId"`
	RecordID    string          `gorm:"column:record_id;type:char(36);not null;index" json:"recordId"`
	OldQuantity decimal.Decimal `gorm:"column:old_quantity;type:decimal(12,2)" json:"oldQuantity"`
	NewQuantity decimal.Decimal `gorm:"column:new_quantity;type:decimal(12,2)" json:"newQuantity"`
	OldAmount   decimal.Decimal `gorm:"column:old_amount;type:decimal(14,2)" json:"oldAmount"`
	NewAmount   decimal.Decimal `gorm:"column:new_amount;type:decimal(14,2)" json:"newAmount"`
	ActorID     string          `gorm:"column:actor_id;type:char(36);not null" json:"actorId"`
	ActorName   string          `gorm:"column:actor_name;type:varchar(200)" json:"actorName"`
	CreatedAt   time.Time       `gorm:"column:created_at;not null" json:"createdAt"`
}

func (ModificationHistoryEntry) TableName() string {
	return "modification_history"
}
