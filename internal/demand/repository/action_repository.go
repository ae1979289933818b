package repository

import (
	"context"

	"github.com/eduardopventura/demandflow/internal/demand/entity"
	"gorm.io/gorm"
)

// ActionRepository action definition store
type ActionRepository struct {
	db *gorm.DB
}

// NewActionRepository creates an action repository.
func NewActionRepository(db *gorm.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// FindByID loads an action definition.
func (r *ActionRepository) FindByID(ctx context.Context, id string) (*entity.Action, error) {
	var action entity.Action
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&action).Error
	if err != nil {
		return nil, translate(err)
	}
	return &action, nil
}

// List returns all actions ordered by name.
func (r *ActionRepository) List(ctx context.Context) ([]entity.Action, error) {
	var actions []entity.Action
	err := r.db.WithContext(ctx).Order("name").Find(&actions).Error
	return actions, err
}

// Create persists an action.
func (r *ActionRepository) Create(ctx context.Context, action *entity.Action) error {
	return r.db.WithContext(ctx).Create(action).Error
}

// Update saves an action.
func (r *ActionRepository) Update(ctx context.Context, action *entity.Action) error {
	return r.db.WithContext(ctx).Save(action).Error
}

// Delete removes an action.
func (r *ActionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Action{}).Error
}
