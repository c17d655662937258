package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimesheetRecord is one submission by an employee for a work date and
// shift. Several records for the same employee and date form a group.
type TimesheetRecord struct {
	ID               string    `gorm:"primaryKey;column:id;type:char(36)" json:"id"`
	CompanyID        string    `gorm:"column:company_id;type:char(36);not null;index" json:"companyId"`
	EmployeeID       string    `gorm:"column:employee_id;type:char(36);not null;index:idx_record_employee_date" json:"employeeId"`
	EmployeeName     string    `gorm:"column:employee_name;type:varchar(200)" json:"employeeName"`
	WorkDate         string    `gorm:"column:work_date;type:varchar(10);not null;index:idx_record_employee_date" json:"workDate"`
	ShiftType        ShiftType `gorm:"column:shift_type;type:varchar(10);not null" json:"shiftType"`
	Status           Status    `gorm:"column:status;type:varchar(30);not null;index" json:"status"`
	SupervisorID     *string   `gorm:"column:supervisor_id;type:char(36);index" json:"supervisorId,omitempty"`
	SupervisorName   string    `gorm:"column:supervisor_name;type:varchar(200)" json:"supervisorName,omitempty"`
	SectionChiefID   *string   `gorm:"column:section_chief_id;type:char(36);index" json:"sectionChiefId,omitempty"`
	SectionChiefName string    `gorm:"column:section_chief_name;type:varchar(200)" json:"sectionChiefName,omitempty"`
	CreatedAt        time.Time `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"column:updated_at;not null" json:"updatedAt"`

	Items []TimesheetLineItem `gorm:"foreignKey:RecordID" json:"items,omitempty"`
}

func (TimesheetRecord) TableName() string {
	return "timesheet_records"
}

// Header returns a copy without line items.
func (r TimesheetRecord) Header() TimesheetRecord {
	r.Items = nil
	return r
}

type TimesheetLineItem struct {
	ID        string          `gorm:"primaryKey;column:id;type:char(36)" json:"id"`
	RecordID  string          `gorm:"column:record_id;type:char(36);not null;index" json:"recordId"`
	ProcessID string          `gorm:"column:process_id;type:char(36);not null;index" json:"processId"`
	Quantity  decimal.Decimal `gorm:"column:quantity;type:decimal(12,2);not null" json:"quantity"`
	Unit      string          `gorm:"column:unit;type:varchar(20);not null" json:"unit"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:decimal(12,4);not null" json:"unitPrice"`
	Amount    decimal.Decimal `gorm:"column:amount;type:decimal(14,2);not null" json:"amount"`
	CreatedAt time.Time       `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt time.Time       `gorm:"column:updated_at;not null" json:"updatedAt"`

	// Process is resolved per request and never persisted through this field.
	Process *ProcessInfo `gorm:"-" json:"process,omitempty"`
}

func (TimesheetLineItem) TableName() string {
	return "timesheet_record_items"
}

// ProcessInfo is the display view of an item's process.
type ProcessInfo struct {
	ProductionLine string              `json:"productionLine"`
	Category       WorkCategory        `json:"category"`
	ProductName    string              `json:"productName"`
	ProcessName    string              `json:"processName"`
	UnitPrice      decimal.NullDecimal `json:"unitPrice"`
}

func (p Process) Info() *ProcessInfo {
	return &ProcessInfo{
		ProductionLine: p.ProductionLine,
		Category:       p.Category,
		ProductName:    p.ProductName,
		ProcessName:    p.ProcessName,
		UnitPrice:      p.UnitPrice,
	}
}
