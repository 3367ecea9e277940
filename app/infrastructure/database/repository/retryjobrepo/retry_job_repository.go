package retryjobrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"openlend.ai/position-cache/app/domain/query"
	domain "openlend.ai/position-cache/app/domain/retryjob"
	"openlend.ai/position-cache/app/infrastructure/database/dbschema"
	"openlend.ai/position-cache/app/utils/functional"
)

type RetryJobGormRepository struct {
	db *gorm.DB
}

func NewRetryJobGormRepository(db *gorm.DB) domain.Repository {
	return &RetryJobGormRepository{db: db}
}

// Create implements retryjob.Repository. The unique PublicID index turns a
// concurrent-signal race into domain.ErrConflict so the caller can fold the
// signal into the winner's job.
func (r *RetryJobGormRepository) Create(ctx context.Context, job *domain.Job) error {
	model := dbschema.NewSchemaRetryJob(job)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return fmt.Errorf("failed to create retry job: %w", err)
	}
	job.ID = model.ID
	return nil
}

// Update implements retryjob.Repository as a compare-and-set on the revision
// column: zero affected rows means another actor moved the job first.
func (r *RetryJobGormRepository) Update(ctx context.Context, job *domain.Job) error {
	model := dbschema.NewSchemaRetryJob(job)
	result := r.db.WithContext(ctx).
		Model(&dbschema.RetryJob{}).
		Where("id = ? AND revision = ?", job.ID, job.Revision).
		Updates(map[string]interface{}{
			"status":            model.Status,
			"attempts":          model.Attempts,
			"duplicate_signals": model.DuplicateSignals,
			"last_attempt_at":   model.LastAttemptAt,
			"next_available_at": model.NextAvailableAt,
			"note":              model.Note,
			"revision":          job.Revision + 1,
			"updated_at":        model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update retry job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	job.Revision++
	return nil
}

// FindByPublicID implements retryjob.Repository.
func (r *RetryJobGormRepository) FindByPublicID(ctx context.Context, publicID string) (*domain.Job, error) {
	var model dbschema.RetryJob
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find retry job: %w", err)
	}
	return model.EtoD(), nil
}

// FindByFilter implements retryjob.Repository.
func (r *RetryJobGormRepository) FindByFilter(ctx context.Context, filter domain.Filter, p *query.Pagination) ([]*domain.Job, error) {
	q := r.applyFilter(r.db.WithContext(ctx).Model(&dbschema.RetryJob{}), filter)
	if p != nil {
		if p.After != nil {
			q = q.Where("id > ?", *p.After)
		}
		if p.Order == "desc" {
			q = q.Order("id desc")
		} else {
			q = q.Order("id asc")
		}
		if p.Limit != nil {
			q = q.Limit(*p.Limit)
		}
	} else {
		q = q.Order("id asc")
	}
	var models []*dbschema.RetryJob
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	return functional.Map(models, func(item *dbschema.RetryJob) *domain.Job {
		return item.EtoD()
	}), nil
}

// Count implements retryjob.Repository.
func (r *RetryJobGormRepository) Count(ctx context.Context, filter domain.Filter) (int64, error) {
	var n int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&dbschema.RetryJob{}), filter).Count(&n).Error
	return n, err
}

// FindDue implements retryjob.Repository, oldest cooldown first.
func (r *RetryJobGormRepository) FindDue(ctx context.Context, status domain.Status, now time.Time, limit int) ([]*domain.Job, error) {
	var models []*dbschema.RetryJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_available_at <= ?", string(status), now).
		Order("next_available_at asc").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return functional.Map(models, func(item *dbschema.RetryJob) *domain.Job {
		return item.EtoD()
	}), nil
}

// CountOpenForKey implements retryjob.Repository.
func (r *RetryJobGormRepository) CountOpenForKey(ctx context.Context, subject, asset, viewTarget string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&dbschema.RetryJob{}).
		Where("subject = ? AND asset = ? AND view_target = ?", subject, asset, viewTarget).
		Where("status IN ?", []string{
			string(domain.StatusPending),
			string(domain.StatusLeased),
			string(domain.StatusRetrying),
		}).
		Count(&n).Error
	return n, err
}

// CountByStatus implements retryjob.Repository.
func (r *RetryJobGormRepository) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := r.db.WithContext(ctx).
		Model(&dbschema.RetryJob{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.Status]int64, len(rows))
	for _, row := range rows {
		counts[domain.Status(row.Status)] = row.N
	}
	return counts, nil
}

// OldestPendingCreatedAt implements retryjob.Repository.
func (r *RetryJobGormRepository) OldestPendingCreatedAt(ctx context.Context) (*time.Time, error) {
	var model dbschema.RetryJob
	err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.StatusPending)).
		Order("created_at asc").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &model.CreatedAt, nil
}

// FindStaleInFlight implements retryjob.Repository, oldest first. In-flight
// jobs whose row stopped moving past the lease TTL have lost their worker.
func (r *RetryJobGormRepository) FindStaleInFlight(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Job, error) {
	var models []*dbschema.RetryJob
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{
			string(domain.StatusLeased),
			string(domain.StatusRetrying),
		}).
		Where("updated_at <= ?", olderThan).
		Order("updated_at asc").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return functional.Map(models, func(item *dbschema.RetryJob) *domain.Job {
		return item.EtoD()
	}), nil
}

// AverageRepairSeconds implements retryjob.Repository.
func (r *RetryJobGormRepository) AverageRepairSeconds(ctx context.Context) (float64, error) {
	var avg *float64
	err := r.db.WithContext(ctx).
		Model(&dbschema.RetryJob{}).
		Where("status = ?", string(domain.StatusSucceeded)).
		Select("avg(extract(epoch from (updated_at - created_at)))").
		Scan(&avg).Error
	if err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

func (r *RetryJobGormRepository) applyFilter(q *gorm.DB, filter domain.Filter) *gorm.DB {
	if filter.Status != nil {
		q = q.Where("status = ?", string(*filter.Status))
	}
	if filter.Subject != nil {
		q = q.Where("subject = ?", *filter.Subject)
	}
	if filter.Asset != nil {
		q = q.Where("asset = ?", *filter.Asset)
	}
	if filter.ViewTarget != nil {
		q = q.Where("view_target = ?", *filter.ViewTarget)
	}
	return q
}
