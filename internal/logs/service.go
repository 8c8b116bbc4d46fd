package logs

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"hemophilia-registry-api/internal/util"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type LogService struct {
	DB *gorm.DB
}

// Migrate creates the system_logs table.
func (ls *LogService) Migrate() error {
	return ls.DB.AutoMigrate(&SystemLog{})
}

// Log persists one event. A nil service is a no-op so callers can run
// without an audit trail.
func (ls *LogService) Log(log SystemLog, metadata interface{}) error {
	if ls == nil || ls.DB == nil {
		return nil
	}

	var meta datatypes.JSON
	// metadata that does not marshal is dropped, the event is still kept
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			meta = datatypes.JSON(b)
		}
	}

	level := log.Level
	if level == "" {
		level = LevelInfo
	}

	newLog := SystemLog{
		Level:            level,
		Service:          log.Service,
		Action:           log.Action,
		Message:          log.Message,
		TargetTable:      log.TargetTable,
		OrganizationCode: log.OrganizationCode,
		Filename:         log.Filename,
		Metadata:         meta,
		CreatedAt:        time.Now().UTC(),
	}

	return ls.DB.Create(&newLog).Error
}

func (ls *LogService) GetLogs(input LogFilterInput) ([]SystemLog, LogAggregates, int64, int, error) {
	// Defaults
	if input.Page <= 0 {
		input.Page = 1
	}
	if input.PageSize <= 0 || input.PageSize > 100 {
		input.PageSize = 20
	}

	window, err := util.ParseDateRange(input.StartDate, input.EndDate)
	if err != nil {
		return nil, LogAggregates{}, 0, 0, err
	}

	base := ls.DB.Model(&SystemLog{})

	// Default: last 30 days if no dates
	if window.Empty() {
		base = base.Where("created_at >= ?", time.Now().UTC().AddDate(0, 0, -30))
	}
	if window.HasStart {
		base = base.Where("created_at >= ?", window.Start)
	}
	if window.HasEnd {
		base = base.Where("created_at < ?", window.End)
	}

	if v := trimmed(input.Level); v != "" {
		base = base.Where("level = ?", v)
	}
	if v := trimmed(input.Service); v != "" {
		base = base.Where("service = ?", v)
	}
	if v := trimmed(input.Action); v != "" {
		base = base.Where("action = ?", v)
	}
	if v := trimmed(input.TargetTable); v != "" {
		base = base.Where("target_table = ?", v)
	}
	if v := trimmed(input.Filename); v != "" {
		base = base.Where("LOWER(COALESCE(filename,'')) LIKE ?", likePattern(v))
	}

	if v := trimmed(input.Search); v != "" {
		like := likePattern(v)
		base = base.Where(
			`LOWER(level) LIKE ?
			 OR LOWER(service) LIKE ?
			 OR LOWER(action) LIKE ?
			 OR LOWER(message) LIKE ?
			 OR LOWER(COALESCE(target_table,'')) LIKE ?
			 OR LOWER(COALESCE(organization_code,'')) LIKE ?
			 OR LOWER(COALESCE(filename,'')) LIKE ?`,
			like, like, like, like, like, like, like,
		)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, LogAggregates{}, 0, 0, err
	}

	totalPages := int(math.Ceil(float64(total) / float64(input.PageSize)))
	if totalPages == 0 {
		totalPages = 1
	}

	var rows []SystemLog
	if err := base.
		Session(&gorm.Session{}).
		Order("created_at DESC").
		Order("id DESC").
		Limit(input.PageSize).
		Offset((input.Page - 1) * input.PageSize).
		Find(&rows).Error; err != nil {
		return nil, LogAggregates{}, 0, 0, err
	}

	aggs, err := ls.getAggregatesFromBase(base)
	if err != nil {
		return nil, LogAggregates{}, 0, 0, err
	}

	return rows, aggs, total, totalPages, nil
}

func (ls *LogService) getAggregatesFromBase(base *gorm.DB) (LogAggregates, error) {
	limit := 12

	group := func(expr string) ([]AggItem, error) {
		var out []AggItem
		err := base.Session(&gorm.Session{}).
			Select(expr + " AS label, COUNT(*) AS count").
			Group("label").
			Order("count DESC").
			Limit(limit).
			Scan(&out).Error
		return out, err
	}

	byAction, err := group("action")
	if err != nil {
		return LogAggregates{}, err
	}
	byTable, err := group("COALESCE(NULLIF(TRIM(target_table), ''), 'No table')")
	if err != nil {
		return LogAggregates{}, err
	}
	return LogAggregates{ByAction: byAction, ByTable: byTable}, nil
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func likePattern(v string) string {
	return "%" + strings.ToLower(v) + "%"
}
