package hospital

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"hemophilia-registry-api/internal/catalog"
	"hemophilia-registry-api/internal/logs"
	"hemophilia-registry-api/internal/record"
	"hemophilia-registry-api/internal/schema"

	"github.com/spf13/cast"
	"gorm.io/gorm/clause"
)

var upsertColumns = []string{"code", "city", "province", "type", "class", "contact"}

type HospitalServiceAPI interface {
	List(ctx context.Context) ([]Hospital, error)
	Upsert(ctx context.Context, hospitals []Hospital) (int, error)
	Rename(ctx context.Context, oldName, newName string) error
}

type HospitalService struct {
	Store      *record.Store
	LogService *logs.LogService
}

func (s *HospitalService) ensure(ctx context.Context) error {
	return s.Store.Schema.Ensure(ctx, catalog.Hospitals)
}

func (s *HospitalService) List(ctx context.Context) ([]Hospital, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	res, err := s.Store.ReadJoined(ctx, catalog.HospitalsTable, nil, 0)
	if err != nil {
		return nil, err
	}

	out := make([]Hospital, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, fromRow(row))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// Upsert inserts hospitals by name; an existing name gets its other
// fields overwritten.
func (s *HospitalService) Upsert(ctx context.Context, hospitals []Hospital) (int, error) {
	if len(hospitals) == 0 {
		return 0, nil
	}
	if err := s.ensure(ctx); err != nil {
		return 0, err
	}

	now := schema.DialectOf(s.Store.DB).Now()
	rows := make([]map[string]any, 0, len(hospitals))
	seen := make(map[string]int, len(hospitals))
	for i, h := range hospitals {
		h = trim(h)
		if h.Name == "" {
			return 0, &record.ValidationError{Column: "name", Label: catalog.LabelFor(catalog.Hospitals, "name"), Reason: fmt.Sprintf("is required (entry %d)", i+1)}
		}
		row := map[string]any{
			"name":       h.Name,
			"code":       h.Code,
			"city":       h.City,
			"province":   h.Province,
			"type":       h.Type,
			"class":      h.Class,
			"contact":    h.Contact,
			"created_at": now,
		}
		// the last entry for a name wins within one request
		if j, dup := seen[h.Name]; dup {
			rows[j] = row
			continue
		}
		seen[h.Name] = len(rows)
		rows = append(rows, row)
	}

	err := s.Store.DB.WithContext(ctx).
		Table(catalog.HospitalsTable).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(rows).Error
	if err != nil {
		return 0, fmt.Errorf("upsert hospitals: %w", err)
	}

	_ = s.LogService.Log(logs.SystemLog{
		Service:     "hospital",
		Action:      "upsert",
		Message:     fmt.Sprintf("%d hospital(s) saved", len(rows)),
		TargetTable: strPtr(catalog.HospitalsTable),
	}, nil)
	return len(rows), nil
}

// Rename changes a directory entry's name. Records that reference the old
// name are not touched and lose their hospital context on later reads.
func (s *HospitalService) Rename(ctx context.Context, oldName, newName string) error {
	oldName, newName = strings.TrimSpace(oldName), strings.TrimSpace(newName)
	if oldName == "" || newName == "" {
		return &record.ValidationError{Column: "name", Label: catalog.LabelFor(catalog.Hospitals, "name"), Reason: "is required"}
	}
	if err := s.ensure(ctx); err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}

	db := s.Store.DB.WithContext(ctx)
	var taken int64
	if err := db.Table(catalog.HospitalsTable).Where("name = ?", newName).Count(&taken).Error; err != nil {
		return err
	}
	if taken > 0 {
		return &NameTakenError{Name: newName}
	}

	res := db.Table(catalog.HospitalsTable).Where("name = ?", oldName).Update("name", newName)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	_ = s.LogService.Log(logs.SystemLog{
		Service:     "hospital",
		Action:      "rename",
		Message:     fmt.Sprintf("Hospital %s renamed to %s", oldName, newName),
		TargetTable: strPtr(catalog.HospitalsTable),
	}, map[string]any{"old_name": oldName, "new_name": newName})
	return nil
}

// NameIndex resolves hospital names case-insensitively to the stored name.
type NameIndex map[string]string

func (s *HospitalService) NewNameIndex(ctx context.Context) (NameIndex, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(NameIndex, len(list))
	for _, h := range list {
		key := strings.ToLower(h.Name)
		if _, ok := idx[key]; !ok {
			idx[key] = h.Name
		}
	}
	return idx, nil
}

func (idx NameIndex) Resolve(name string) (string, bool) {
	v, ok := idx[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func fromRow(row map[string]any) Hospital {
	str := func(k string) string { return cast.ToString(row[k]) }
	created := str("created_at")
	if t, ok := row["created_at"].(time.Time); ok {
		created = t.UTC().Format(time.RFC3339)
	}
	return Hospital{
		ID:        cast.ToInt64(row["id"]),
		Code:      str("code"),
		Name:      str("name"),
		City:      str("city"),
		Province:  str("province"),
		Type:      str("type"),
		Class:     str("class"),
		Contact:   str("contact"),
		CreatedAt: created,
	}
}

func trim(h Hospital) Hospital {
	h.Code = strings.TrimSpace(h.Code)
	h.Name = strings.TrimSpace(h.Name)
	h.City = strings.TrimSpace(h.City)
	h.Province = strings.TrimSpace(h.Province)
	h.Type = strings.TrimSpace(h.Type)
	h.Class = strings.TrimSpace(h.Class)
	h.Contact = strings.TrimSpace(h.Contact)
	return h
}

func strPtr(s string) *string { return &s }
