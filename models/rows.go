package models

import (
	"time"

	"github.com/Flabba2018/elkontroll-alver/config"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Row types below mirror the remote Supabase schema. The remote store assigns
// uuid primary keys; the service never generates them.

type InspectionRow struct {
	ID               string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Address          string    `json:"address"`
	Suffix           string    `json:"suffix"`
	FullAddress      string    `json:"full_address"`
	UserID           *string   `json:"user_id" gorm:"type:uuid"`
	InspectionDate   string    `json:"inspection_date"`
	WorkOrder        *string   `json:"work_order"`
	IsExternal       bool      `json:"is_external"`
	ExternalFirma    *string   `json:"external_firma"`
	ExternalContact  *string   `json:"external_contact"`
	Voltage          *string   `json:"voltage"`
	Insulation       *string   `json:"insulation"`
	Continuity       *string   `json:"continuity"`
	RCDTest          *string   `json:"rcd_test" gorm:"column:rcd_test"`
	ErrorsFixed      bool      `json:"errors_fixed"`
	MaintenanceNoted bool      `json:"maintenance_noted"`
	SentInstaller    bool      `json:"sent_installer"`
	Summary          *string   `json:"summary"`
	TotalItems       int       `json:"total_items"`
	CheckedItems     int       `json:"checked_items"`
	DeviationCount   int       `json:"deviation_count"`
	CorrectedCount   int       `json:"corrected_count"`
	Progress         int       `json:"progress"`
	CreatedAt        time.Time `json:"created_at"`
}

func (InspectionRow) TableName() string { return "inspections" }

type InspectionItemRow struct {
	ID                string `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	InspectionID      string `json:"inspection_id" gorm:"type:uuid;index"`
	ItemID            string `json:"item_id"`
	Category          string `json:"category"`
	CategoryNum       int    `json:"category_num"`
	ItemText          string `json:"item_text"`
	Checked           bool   `json:"checked"`
	Deviation         bool   `json:"deviation"`
	Corrected         bool   `json:"corrected"`
	RequiresInstaller bool   `json:"requires_installer"`
	Comment           *string `json:"comment"`
}

func (InspectionItemRow) TableName() string { return "inspection_items" }

type InspectionPhotoRow struct {
	ID           string  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	InspectionID string  `json:"inspection_id" gorm:"type:uuid;index"`
	PhotoType    string  `json:"photo_type"`
	PhotoData    string  `json:"photo_data"`
	Description  *string `json:"description"`
}

func (InspectionPhotoRow) TableName() string { return "inspection_photos" }

type DeviationRow struct {
	ID                string  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	InspectionID      string  `json:"inspection_id" gorm:"type:uuid;index"`
	ItemID            string  `json:"item_id"`
	ItemText          string  `json:"item_text"`
	Comment           *string `json:"comment"`
	Corrected         bool    `json:"corrected"`
	RequiresInstaller bool    `json:"requires_installer"`
}

func (DeviationRow) TableName() string { return "deviations" }

type User struct {
	ID     string `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

func (User) TableName() string { return "users" }

type AuditLogRow struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

func (AuditLogRow) TableName() string { return "audit_log" }

// MigrateTable keeps the remote schema current. The schema is normally owned
// by the Supabase project; AutoMigrate only fills gaps on self-hosted setups.
func MigrateTable(db *gorm.DB, logger *logrus.Logger) {
	err := db.AutoMigrate(
		&User{},
		&InspectionRow{},
		&InspectionItemRow{},
		&InspectionPhotoRow{},
		&DeviationRow{},
		&AuditLogRow{},
	)
	if err != nil {
		config.LogError(logger, "models", "MigrateTable", "AutoMigrate", nil, err)
	}
}
