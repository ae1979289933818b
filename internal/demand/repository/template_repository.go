package repository

import (
	"context"
	"fmt"

	"github.com/eduardopventura/demandflow/internal/demand/entity"
	"gorm.io/gorm"
)

// TemplateRepository template definition store
type TemplateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository creates a template repository.
func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// FindByID loads a template with tabs, fields and tasks.
func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*entity.Template, error) {
	var tpl entity.Template
	err := r.db.WithContext(ctx).
		Preload("Tabs").
		Preload("Fields").
		Preload("Tasks").
		Where("id = ?", id).
		First(&tpl).Error
	if err != nil {
		return nil, translate(err)
	}
	return &tpl, nil
}

// List returns all templates without children, newest first.
func (r *TemplateRepository) List(ctx context.Context) ([]entity.Template, error) {
	var templates []entity.Template
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&templates).Error
	return templates, err
}

// Create persists a template and its children.
func (r *TemplateRepository) Create(ctx context.Context, tpl *entity.Template) error {
	return r.db.WithContext(ctx).Create(tpl).Error
}

// Save replaces the template definition: the parent row is updated and the
// tab/field/task sets are swapped wholesale in one transaction. Historical
// demand field values are never touched here; values for removed fields stay
// orphaned in demand_field_values by design.
func (r *TemplateRepository) Save(ctx context.Context, tpl *entity.Template) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tabs", "Fields", "Tasks").Save(tpl).Error; err != nil {
			return fmt.Errorf("save template: %w", err)
		}
		for _, model := range []interface{}{&entity.TemplateTab{}, &entity.TemplateField{}, &entity.TemplateTask{}} {
			if err := tx.Where("template_id = ?", tpl.ID).Delete(model).Error; err != nil {
				return fmt.Errorf("clear template children: %w", err)
			}
		}
		if len(tpl.Tabs) > 0 {
			if err := tx.Create(&tpl.Tabs).Error; err != nil {
				return fmt.Errorf("save tabs: %w", err)
			}
		}
		if len(tpl.Fields) > 0 {
			if err := tx.Create(&tpl.Fields).Error; err != nil {
				return fmt.Errorf("save fields: %w", err)
			}
		}
		if len(tpl.Tasks) > 0 {
			if err := tx.Create(&tpl.Tasks).Error; err != nil {
				return fmt.Errorf("save tasks: %w", err)
			}
		}
		return nil
	})
}

// Delete removes a template and its children.
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&entity.TemplateTab{}, &entity.TemplateField{}, &entity.TemplateTask{}} {
			if err := tx.Where("template_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).Delete(&entity.Template{}).Error
	})
}

// FindTask loads a single template task.
func (r *TemplateRepository) FindTask(ctx context.Context, taskID string) (*entity.TemplateTask, error) {
	var task entity.TemplateTask
	err := r.db.WithContext(ctx).Where("id = ?", taskID).First(&task).Error
	if err != nil {
		return nil, translate(err)
	}
	return &task, nil
}
