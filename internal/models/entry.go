package models

import (
	"time"

	"gorm.io/datatypes"
)

// Keys of the persisted state.
const (
	KeyProfiles       = "devisflow_profiles"
	KeyCurrentInvoice = "devisflow_current_invoice"
	KeyTemplates      = "devisflow_templates"
	KeyCatalog        = "devisflow_catalog"
	KeyTheme          = "devisflow_theme"
)

// Entry is one key of the persisted state, the value is a JSON document.
type Entry struct {
	Key       string         `gorm:"primaryKey;size:100" json:"key"`
	Value     datatypes.JSON `json:"value"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName overrides the table name used by Entry.
func (Entry) TableName() string {
	return "kv_entries"
}
