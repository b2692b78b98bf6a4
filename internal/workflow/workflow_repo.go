package workflow

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

//go:generate mockgen -source=workflow_repo.go -destination=mock/workflow_repo_mock.go -package=mock
type Repository interface {
	HasOpen(ctx context.Context, wfType, entityType string, entityID uuid.UUID) (bool, error)
	CountOpenForEntity(ctx context.Context, entityType string, entityID uuid.UUID) (int64, error)
	Create(ctx context.Context, wf *AdminWorkflow) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) HasOpen(ctx context.Context, wfType, entityType string, entityID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&AdminWorkflow{}).
		Where("type = ?", wfType).
		Where("related_entity_type = ? AND related_entity_id = ?", entityType, entityID).
		Where("status IN ?", OpenStatuses).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) CountOpenForEntity(ctx context.Context, entityType string, entityID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&AdminWorkflow{}).
		Where("related_entity_type = ? AND related_entity_id = ?", entityType, entityID).
		Where("status IN ?", OpenStatuses).
		Count(&count).Error
	return count, err
}

func (r *repository) Create(ctx context.Context, wf *AdminWorkflow) error {
	return r.db.WithContext(ctx).Create(wf).Error
}
