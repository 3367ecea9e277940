package auditrepo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	domain "openlend.ai/position-cache/app/domain/audit"
	"openlend.ai/position-cache/app/domain/query"
	"openlend.ai/position-cache/app/infrastructure/database/dbschema"
	"openlend.ai/position-cache/app/utils/functional"
)

// AuditGormRepository only ever inserts and selects; the trail is immutable.
type AuditGormRepository struct {
	db *gorm.DB
}

func NewAuditGormRepository(db *gorm.DB) domain.Repository {
	return &AuditGormRepository{db: db}
}

// Append implements audit.Repository.
func (r *AuditGormRepository) Append(ctx context.Context, record *domain.Record) error {
	model := dbschema.NewSchemaAuditRecord(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	record.ID = model.ID
	return nil
}

// FindByFilter implements audit.Repository, newest first.
func (r *AuditGormRepository) FindByFilter(ctx context.Context, filter domain.Filter, p *query.Pagination) ([]*domain.Record, error) {
	q := r.applyFilter(r.db.WithContext(ctx).Model(&dbschema.AuditRecord{}), filter)
	if p != nil {
		if p.After != nil {
			q = q.Where("id > ?", *p.After)
		}
		if p.Order == "asc" {
			q = q.Order("id asc")
		} else {
			q = q.Order("id desc")
		}
		if p.Limit != nil {
			q = q.Limit(*p.Limit)
		}
	} else {
		q = q.Order("id desc")
	}
	var models []*dbschema.AuditRecord
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	return functional.Map(models, func(item *dbschema.AuditRecord) *domain.Record {
		return item.EtoD()
	}), nil
}

// Count implements audit.Repository.
func (r *AuditGormRepository) Count(ctx context.Context, filter domain.Filter) (int64, error) {
	var n int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&dbschema.AuditRecord{}), filter).Count(&n).Error
	return n, err
}

// CountByAction implements audit.Repository over records since from.
func (r *AuditGormRepository) CountByAction(ctx context.Context, from time.Time) (map[string]int64, error) {
	var rows []struct {
		Action string
		N      int64
	}
	err := r.db.WithContext(ctx).
		Model(&dbschema.AuditRecord{}).
		Select("action, count(*) as n").
		Where("created_at >= ?", from).
		Group("action").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Action] = row.N
	}
	return counts, nil
}

func (r *AuditGormRepository) applyFilter(q *gorm.DB, filter domain.Filter) *gorm.DB {
	if filter.Subject != nil {
		q = q.Where("subject = ?", *filter.Subject)
	}
	if filter.Asset != nil {
		q = q.Where("asset = ?", *filter.Asset)
	}
	if filter.ViewTarget != nil {
		q = q.Where("view_target = ?", *filter.ViewTarget)
	}
	if filter.Action != nil {
		q = q.Where("action = ?", *filter.Action)
	}
	if filter.JobPublicID != nil {
		q = q.Where("job_public_id = ?", *filter.JobPublicID)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", *filter.To)
	}
	return q
}
