package dbschema

import (
	"time"

	"openlend.ai/position-cache/app/domain/audit"
	"openlend.ai/position-cache/app/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(AuditRecord{})
}

func NewSchemaAuditRecord(r *audit.Record) *AuditRecord {
	return &AuditRecord{
		JobPublicID:   r.JobPublicID,
		Subject:       r.Subject,
		Asset:         r.Asset,
		ViewTarget:    r.ViewTarget,
		Action:        r.Action,
		Actor:         r.Actor,
		BeforeVersion: r.BeforeVersion,
		AfterVersion:  r.AfterVersion,
		Detail:        r.Detail,
		CreatedAt:     r.CreatedAt,
	}
}

// AuditRecord rows are append-only: created once, never updated or deleted.
type AuditRecord struct {
	ID            uint      `gorm:"primarykey"`
	JobPublicID   *string   `gorm:"type:varchar(50);index"`
	Subject       string    `gorm:"type:varchar(128);not null;index:idx_audit_key,priority:1"`
	Asset         string    `gorm:"type:varchar(128);not null;index:idx_audit_key,priority:2"`
	ViewTarget    string    `gorm:"type:varchar(128);not null"`
	Action        string    `gorm:"type:varchar(40);not null;index"`
	Actor         string    `gorm:"type:varchar(128);not null"`
	BeforeVersion uint64    `gorm:"not null;default:0"`
	AfterVersion  uint64    `gorm:"not null;default:0"`
	Detail        string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"not null;index:idx_audit_key,priority:3"`
}

func (r *AuditRecord) EtoD() *audit.Record {
	return &audit.Record{
		ID:            r.ID,
		JobPublicID:   r.JobPublicID,
		Subject:       r.Subject,
		Asset:         r.Asset,
		ViewTarget:    r.ViewTarget,
		Action:        r.Action,
		Actor:         r.Actor,
		BeforeVersion: r.BeforeVersion,
		AfterVersion:  r.AfterVersion,
		Detail:        r.Detail,
		CreatedAt:     r.CreatedAt,
	}
}
