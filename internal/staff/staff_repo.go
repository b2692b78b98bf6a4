package staff

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Staff, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Staff, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*Staff, error) {
	var s Staff
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Staff, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var members []Staff
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&members).Error
	return members, err
}

// Index maps staff by id for lookups inside a job run.
func Index(members []Staff) map[uuid.UUID]Staff {
	m := make(map[uuid.UUID]Staff, len(members))
	for _, s := range members {
		m[s.ID] = s
	}
	return m
}
