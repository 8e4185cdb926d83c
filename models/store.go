package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Flabba2018/elkontroll-alver/config"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrBackendUnavailable means the remote store is not reachable or not yet
// connected. A drain pass short-circuits on it before touching any record.
var ErrBackendUnavailable = errors.New("fjernlager ikkje tilgjengeleg")

// Per-call budgets against the remote store. Photos get the largest window
// because base64 payloads can run to several megabytes on mobile uplinks.
const (
	readTimeout  = 8 * time.Second
	writeTimeout = 12 * time.Second
	photoTimeout = 15 * time.Second
)

const (
	cacheKeyInspections = "inspections"
	cacheKeyUsers       = "users"
)

// blobCache is the slice of local storage the store uses for offline fallback
// copies of remote lists.
type blobCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
}

// Store is the repository over the remote Supabase/Postgres instance. The DB
// handle is bound asynchronously once the background dial succeeds; until then
// every remote call fails with ErrBackendUnavailable.
type Store struct {
	logger *logrus.Logger
	cache  blobCache
	db     atomic.Pointer[gorm.DB]
}

func NewStore(logger *logrus.Logger, cache blobCache) *Store {
	return &Store{logger: logger, cache: cache}
}

// Bind installs the connected DB handle.
func (s *Store) Bind(db *gorm.DB) {
	s.db.Store(db)
}

func (s *Store) Ready() bool {
	return s.db.Load() != nil
}

func (s *Store) handle() (*gorm.DB, error) {
	db := s.db.Load()
	if db == nil {
		return nil, ErrBackendUnavailable
	}
	return db, nil
}

func nullable(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}

// SaveInspection writes one record to the remote store in dependency order:
// header, items, photos, deviations. Header+items must succeed; photo and
// deviation failures are logged and do not fail the record, since those rows
// are additive extras on an already complete report.
func (s *Store) SaveInspection(ctx context.Context, rec *InspectionRecord) (string, error) {
	db, err := s.handle()
	if err != nil {
		return "", err
	}

	checked, corrected := 0, 0
	for i := range rec.Items {
		if rec.Items[i].Checked {
			checked++
		}
		if rec.Items[i].Corrected {
			corrected++
		}
	}

	header := InspectionRow{
		Address:          rec.Address,
		Suffix:           rec.Suffix,
		FullAddress:      rec.FullAddress,
		InspectionDate:   rec.Date,
		WorkOrder:        nullable(rec.WorkOrder),
		IsExternal:       rec.Form.IsExternal,
		ExternalFirma:    nullable(rec.Form.ExternalFirma),
		ExternalContact:  nullable(rec.Form.ExternalContact),
		Voltage:          nullable(rec.Form.Voltage),
		Insulation:       nullable(rec.Form.Insulation),
		Continuity:       nullable(rec.Form.Continuity),
		RCDTest:          nullable(rec.Form.RCD),
		ErrorsFixed:      rec.Form.ErrorsFixed,
		MaintenanceNoted: rec.Form.Maintenance,
		SentInstaller:    rec.Form.SentInstaller,
		Summary:          nullable(rec.Form.Summary),
		TotalItems:       len(rec.Items),
		CheckedItems:     checked,
		DeviationCount:   rec.DeviationCount,
		CorrectedCount:   corrected,
		Progress:         rec.Progress,
	}
	// Only forward inspector ids that are real remote uuids; locally seeded
	// fallback users have plain numeric ids.
	if _, err := uuid.Parse(rec.InspectorID); err == nil {
		id := rec.InspectorID
		header.UserID = &id
	}

	hctx, cancelHeader := context.WithTimeout(ctx, writeTimeout)
	defer cancelHeader()
	if err := db.WithContext(hctx).Create(&header).Error; err != nil {
		return "", fmt.Errorf("insert inspections: %w", err)
	}
	inspectionID := header.ID

	itemRows := make([]InspectionItemRow, len(rec.Items))
	for i, item := range rec.Items {
		itemRows[i] = InspectionItemRow{
			InspectionID:      inspectionID,
			ItemID:            item.ID,
			Category:          item.Category,
			CategoryNum:       item.CategoryNum,
			ItemText:          item.Text,
			Checked:           item.Checked,
			Deviation:         item.Deviation,
			Corrected:         item.Corrected,
			RequiresInstaller: item.RequiresInstaller,
			Comment:           nullable(item.Comment),
		}
	}
	ictx, cancelItems := context.WithTimeout(ctx, writeTimeout)
	defer cancelItems()
	if err := db.WithContext(ictx).Create(&itemRows).Error; err != nil {
		return "", fmt.Errorf("insert inspection_items: %w", err)
	}

	if len(rec.Photos) > 0 {
		photoRows := make([]InspectionPhotoRow, len(rec.Photos))
		for i, photo := range rec.Photos {
			photoRows[i] = InspectionPhotoRow{
				InspectionID: inspectionID,
				PhotoType:    strings.ToLower(photo.Type),
				PhotoData:    photo.Data,
			}
		}
		pctx, cancelPhotos := context.WithTimeout(ctx, photoTimeout)
		if err := db.WithContext(pctx).Create(&photoRows).Error; err != nil {
			config.LogError(s.logger, "models", "SaveInspection", "insert inspection_photos", rec.FullAddress, err)
		}
		cancelPhotos()
	}

	var deviationRows []DeviationRow
	for _, item := range rec.Items {
		if !item.Deviation {
			continue
		}
		deviationRows = append(deviationRows, DeviationRow{
			InspectionID:      inspectionID,
			ItemID:            item.ID,
			ItemText:          item.Text,
			Comment:           nullable(item.Comment),
			Corrected:         item.Corrected,
			RequiresInstaller: item.RequiresInstaller,
		})
	}
	if len(deviationRows) > 0 {
		dctx, cancelDevs := context.WithTimeout(ctx, writeTimeout)
		if err := db.WithContext(dctx).Create(&deviationRows).Error; err != nil {
			config.LogError(s.logger, "models", "SaveInspection", "insert deviations", rec.FullAddress, err)
		}
		cancelDevs()
	}

	return inspectionID, nil
}

// SaveAuditEntry writes one audit event. The entry id is generated locally, so
// an at-least-once redelivery lands on the primary key and is dropped.
func (s *Store) SaveAuditEntry(ctx context.Context, entry *AuditEntry) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	row := AuditLogRow{
		ID:        entry.ID,
		UserID:    entry.UserID,
		UserName:  entry.UserName,
		Action:    entry.Action,
		Details:   entry.Details,
		CreatedAt: entry.Timestamp,
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := db.WithContext(wctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("insert audit_log: %w", err)
	}
	return nil
}

// RefreshInspections fetches the newest inspections from the remote store and
// replaces the local fallback cache.
func (s *Store) RefreshInspections(ctx context.Context) ([]InspectionRow, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	var rows []InspectionRow
	rctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	if err := db.WithContext(rctx).
		Order("inspection_date DESC").
		Limit(100).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	s.cacheList(ctx, cacheKeyInspections, rows)
	return rows, nil
}

// CachedInspections serves the last fetched list when the remote store is out
// of reach.
func (s *Store) CachedInspections(ctx context.Context) []InspectionRow {
	var rows []InspectionRow
	s.loadCachedList(ctx, cacheKeyInspections, &rows)
	return rows
}

func (s *Store) FetchInspection(ctx context.Context, id string) (*InspectionRow, []InspectionItemRow, error) {
	db, err := s.handle()
	if err != nil {
		return nil, nil, err
	}
	rctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var header InspectionRow
	if err := db.WithContext(rctx).Where("id = ?", id).Take(&header).Error; err != nil {
		return nil, nil, err
	}
	var items []InspectionItemRow
	if err := db.WithContext(rctx).Where("inspection_id = ?", id).Order("category_num, item_id").Find(&items).Error; err != nil {
		return &header, nil, err
	}
	return &header, items, nil
}

// DeleteInspection removes one inspection and its child rows, children first
// so the foreign keys never dangle.
func (s *Store) DeleteInspection(ctx context.Context, id string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := db.WithContext(wctx).Where("inspection_id = ?", id).Delete(&DeviationRow{}).Error; err != nil {
		return err
	}
	if err := db.WithContext(wctx).Where("inspection_id = ?", id).Delete(&InspectionPhotoRow{}).Error; err != nil {
		return err
	}
	if err := db.WithContext(wctx).Where("inspection_id = ?", id).Delete(&InspectionItemRow{}).Error; err != nil {
		return err
	}
	return db.WithContext(wctx).Where("id = ?", id).Delete(&InspectionRow{}).Error
}

// DeleteAllInspections wipes every inspection (admin maintenance action).
func (s *Store) DeleteAllInspections(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	for _, model := range []any{&DeviationRow{}, &InspectionPhotoRow{}, &InspectionItemRow{}, &InspectionRow{}} {
		if err := db.WithContext(wctx).Where("id IS NOT NULL").Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

// FetchUsers lists active users by name and refreshes the local fallback copy.
func (s *Store) FetchUsers(ctx context.Context) ([]User, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	rctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var users []User
	if err := db.WithContext(rctx).
		Where("active = ?", true).
		Order("name").
		Find(&users).Error; err != nil {
		return nil, err
	}
	s.cacheList(ctx, cacheKeyUsers, users)
	return users, nil
}

// CachedUsers returns the local user list so the crew can log in offline.
// Seeded defaults cover a box that has never been online.
func (s *Store) CachedUsers(ctx context.Context) []User {
	var users []User
	s.loadCachedList(ctx, cacheKeyUsers, &users)
	if len(users) == 0 {
		users = []User{
			{ID: "1", Name: "Cato", Role: "admin", Active: true},
			{ID: "2", Name: "Kristian", Role: "user", Active: true},
			{ID: "3", Name: "Bjørn Inge", Role: "user", Active: true},
		}
	}
	return users
}

func (s *Store) CreateUser(ctx context.Context, name, role string) (*User, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	user := User{Name: name, Role: role, Active: true}
	if err := db.WithContext(wctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) UpdateUserRole(ctx context.Context, userID, role string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return db.WithContext(wctx).
		Model(&User{}).
		Where("id = ?", userID).
		Update("role", role).Error
}

func (s *Store) cacheList(ctx context.Context, key string, list any) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(list)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(data)); err != nil {
		config.LogError(s.logger, "models", "cacheList", key, nil, err)
	}
}

func (s *Store) loadCachedList(ctx context.Context, key string, dest any) {
	if s.cache == nil {
		return
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil || raw == "" {
		return
	}
	_ = json.Unmarshal([]byte(raw), dest)
}
