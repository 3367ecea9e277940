package dbschema

import (
	"openlend.ai/position-cache/app/domain/position"
	"openlend.ai/position-cache/app/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(PositionEntry{})
}

func NewSchemaPositionEntry(e *position.Entry) *PositionEntry {
	return &PositionEntry{
		BaseModel: BaseModel{
			ID:        e.ID,
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		},
		Subject:       e.Subject,
		Asset:         e.Asset,
		ViewTarget:    e.ViewTarget,
		Collateral:    e.Collateral,
		Debt:          e.Debt,
		Version:       e.Version,
		LastRequestID: e.LastRequestID,
		LastSequence:  e.LastSequence,
	}
}

type PositionEntry struct {
	BaseModel
	Subject       string `gorm:"type:varchar(128);not null;uniqueIndex:idx_position_key,priority:1"`
	Asset         string `gorm:"type:varchar(128);not null;uniqueIndex:idx_position_key,priority:2"`
	ViewTarget    string `gorm:"type:varchar(128);not null;uniqueIndex:idx_position_key,priority:3"`
	Collateral    string `gorm:"type:varchar(80);not null"`
	Debt          string `gorm:"type:varchar(80);not null"`
	Version       uint64 `gorm:"not null;default:0"`
	LastRequestID string `gorm:"type:varchar(128);not null"`
	LastSequence  uint64 `gorm:"not null;default:0"`
}

func (e *PositionEntry) EtoD() *position.Entry {
	return &position.Entry{
		ID:            e.ID,
		Subject:       e.Subject,
		Asset:         e.Asset,
		ViewTarget:    e.ViewTarget,
		Collateral:    e.Collateral,
		Debt:          e.Debt,
		Version:       e.Version,
		LastRequestID: e.LastRequestID,
		LastSequence:  e.LastSequence,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
