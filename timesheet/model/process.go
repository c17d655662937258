package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Process is a priced unit of production work.
type Process struct {
	ID             string              `gorm:"primaryKey;column:id;type:char(36)" json:"id"`
	CompanyID      string              `gorm:"column:company_id;type:char(36);not null;index:idx_process_key" json:"companyId"`
	ProductionLine string              `gorm:"column:production_line;type:varchar(100);not null;index:idx_process_key" json:"productionLine"`
	Category       WorkCategory        `gorm:"column:category;type:varchar(20);not null;index:idx_process_key" json:"category"`
	ProductName    string              `gorm:"column:product_name;type:varchar(200);not null;index:idx_process_key" json:"productName"`
	ProcessName    string              `gorm:"column:process_name;type:varchar(200);not null;index:idx_process_key" json:"processName"`
	Unit           string              `gorm:"column:unit;type:varchar(20);not null" json:"unit"`
	UnitPrice      decimal.NullDecimal `gorm:"column:unit_price;type:decimal(12,4)" json:"unitPrice"`
	EffectiveMonth string              `gorm:"column:effective_month;type:varchar(7);not null" json:"effectiveMonth"`
	Active         bool                `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt      time.Time           `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;not null" json:"updatedAt"`
}

func (Process) TableName() string {
	return "processes"
}

// DuplicateKey identifies a process within its company.
func (p Process) DuplicateKey() string {
	return ProcessKey(p.CompanyID, p.ProductionLine, p.Category, p.ProductName, p.ProcessName)
}

func ProcessKey(companyID, line string, category WorkCategory, product, process string) string {
	return strings.Join([]string{
		companyID,
		strings.TrimSpace(line),
		string(category),
		strings.TrimSpace(product),
		strings.TrimSpace(process),
	}, "\x1f")
}

// DisplayName is the searchable label used in listings.
func (p Process) DisplayName() string {
	return strings.Join([]string{p.ProductionLine, p.ProductName, p.ProcessName}, " / ")
}
