package client

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Client, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Client, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	var c Client
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Client, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var clients []Client
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&clients).Error
	return clients, err
}

func Index(clients []Client) map[uuid.UUID]Client {
	m := make(map[uuid.UUID]Client, len(clients))
	for _, c := range clients {
		m[c.ID] = c
	}
	return m
}
