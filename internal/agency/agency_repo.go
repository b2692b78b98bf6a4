package agency

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	FindAll(ctx context.Context) ([]Agency, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Agency, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindAll(ctx context.Context) ([]Agency, error) {
	var agencies []Agency
	err := r.db.WithContext(ctx).Order("name ASC").Find(&agencies).Error
	return agencies, err
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*Agency, error) {
	var a Agency
	err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}
