package logs

import (
	"time"

	"gorm.io/datatypes"
)

const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// SystemLog is one durable business event: an insert, import, schema
// evolution, export or aggregate rebuild.
type SystemLog struct {
	ID               uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Level            string         `gorm:"size:20;not null" json:"level"`
	Service          string         `gorm:"size:100;not null" json:"service"`
	Action           string         `gorm:"size:255;not null;index" json:"action"`
	Message          string         `gorm:"type:text;not null" json:"message"`
	TargetTable      *string        `gorm:"column:target_table;size:63;index" json:"target_table,omitempty"`
	OrganizationCode *string        `gorm:"size:64" json:"organization_code,omitempty"`
	Filename         *string        `gorm:"size:512" json:"filename,omitempty"`
	Metadata         datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (SystemLog) TableName() string {
	return "system_logs"
}

type LogFilterInput struct {
	Level       *string `form:"level" json:"level"`
	Service     *string `form:"service" json:"service"`
	Action      *string `form:"action" json:"action"`
	TargetTable *string `form:"table" json:"table"`
	Filename    *string `form:"filename" json:"filename"`

	StartDate *string `form:"start_date" json:"start_date"` // "YYYY-MM-DD"
	EndDate   *string `form:"end_date" json:"end_date"`     // "YYYY-MM-DD"

	Search   *string `form:"search" json:"search"`
	Page     int     `form:"page" json:"page"`
	PageSize int     `form:"page_size" json:"page_size"`
}

type AggItem struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

type LogAggregates struct {
	ByAction []AggItem `json:"by_action"`
	ByTable  []AggItem `json:"by_table"`
}
