package positionrepo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	domain "openlend.ai/position-cache/app/domain/position"
	"openlend.ai/position-cache/app/infrastructure/database/dbschema"
)

type PositionGormRepository struct {
	db *gorm.DB
}

func NewPositionGormRepository(db *gorm.DB) domain.Repository {
	return &PositionGormRepository{db: db}
}

// FindByKey implements position.Repository. Returns (nil, nil) for unseen keys.
func (r *PositionGormRepository) FindByKey(ctx context.Context, subject, asset, viewTarget string) (*domain.Entry, error) {
	var model dbschema.PositionEntry
	err := r.db.WithContext(ctx).
		Where("subject = ? AND asset = ? AND view_target = ?", subject, asset, viewTarget).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find cache entry: %w", err)
	}
	return model.EtoD(), nil
}

// Create implements position.Repository. The unique key index turns a
// first-write race into domain.ErrConflict.
func (r *PositionGormRepository) Create(ctx context.Context, entry *domain.Entry) error {
	model := dbschema.NewSchemaPositionEntry(entry)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return fmt.Errorf("failed to create cache entry: %w", err)
	}
	entry.ID = model.ID
	return nil
}

// UpdateVersioned implements position.Repository as a compare-and-set on the
// stored version: zero affected rows means a concurrent writer advanced the
// entry first.
func (r *PositionGormRepository) UpdateVersioned(ctx context.Context, entry *domain.Entry, expectedVersion uint64) error {
	model := dbschema.NewSchemaPositionEntry(entry)
	result := r.db.WithContext(ctx).
		Model(&dbschema.PositionEntry{}).
		Where("id = ? AND version = ?", entry.ID, expectedVersion).
		Updates(map[string]interface{}{
			"collateral":      model.Collateral,
			"debt":            model.Debt,
			"version":         model.Version,
			"last_request_id": model.LastRequestID,
			"last_sequence":   model.LastSequence,
			"updated_at":      model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update cache entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}
