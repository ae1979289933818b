package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/eduardopventura/demandflow/internal/demand/entity"
	"gorm.io/gorm"
)

// DemandRepository demand aggregate store
type DemandRepository struct {
	db *gorm.DB
}

// NewDemandRepository creates a demand repository.
func NewDemandRepository(db *gorm.DB) *DemandRepository {
	return &DemandRepository{db: db}
}

// FindByID loads a demand with its field values and task statuses.
func (r *DemandRepository) FindByID(ctx context.Context, id string) (*entity.Demand, error) {
	var d entity.Demand
	err := r.db.WithContext(ctx).
		Preload("FieldValues").
		Preload("TaskStatuses").
		Where("id = ?", id).
		First(&d).Error
	if err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

// Create persists a demand with its children in one transaction.
func (r *DemandRepository) Create(ctx context.Context, d *entity.Demand) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func applyDemandFilters(query *gorm.DB, filters map[string]interface{}) *gorm.DB {
	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if templateID, ok := filters["template_id"].(string); ok && templateID != "" {
		query = query.Where("template_id = ?", templateID)
	}
	if userID, ok := filters["responsible_user_id"].(string); ok && userID != "" {
		query = query.Where("responsible_user_id = ?", userID)
	}
	if roleID, ok := filters["responsible_role_id"].(string); ok && roleID != "" {
		query = query.Where("responsible_role_id = ?", roleID)
	}
	if name, ok := filters["name"].(string); ok && name != "" {
		query = query.Where("name ILIKE ?", "%"+name+"%")
	}
	return query
}

// List returns demands matching the optional filters, newest first.
func (r *DemandRepository) List(ctx context.Context, filters map[string]interface{}, page, pageSize int) ([]entity.Demand, int64, error) {
	var demands []entity.Demand
	var total int64

	query := applyDemandFilters(r.db.WithContext(ctx).Model(&entity.Demand{}), filters)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	err := query.Order("created_at DESC").Find(&demands).Error
	return demands, total, err
}

// ListForExport returns all matching demands with their task statuses
// preloaded in one pass, for report rendering.
func (r *DemandRepository) ListForExport(ctx context.Context, filters map[string]interface{}) ([]entity.Demand, error) {
	var demands []entity.Demand
	err := applyDemandFilters(r.db.WithContext(ctx).Model(&entity.Demand{}), filters).
		Preload("TaskStatuses").
		Order("created_at DESC").
		Find(&demands).Error
	return demands, err
}

// SaveWithChildren applies a demand update and the full replacement of its
// changed child collections as one atomic unit. Nil slices mean "leave that
// collection untouched"; non-nil slices replace the stored set entirely.
// deadline_notified is owned by ClaimDeadlineNotification alone and is never
// written here: the in-memory copy may predate a concurrent sweep claim.
func (r *DemandRepository) SaveWithChildren(ctx context.Context, d *entity.Demand, fieldValues []entity.DemandFieldValue, taskStatuses []entity.DemandTaskStatus) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("FieldValues", "TaskStatuses", "deadline_notified").Save(d).Error; err != nil {
			return fmt.Errorf("save demand: %w", err)
		}
		if fieldValues != nil {
			if err := tx.Where("demand_id = ?", d.ID).Delete(&entity.DemandFieldValue{}).Error; err != nil {
				return fmt.Errorf("clear field values: %w", err)
			}
			if len(fieldValues) > 0 {
				if err := tx.Create(&fieldValues).Error; err != nil {
					return fmt.Errorf("replace field values: %w", err)
				}
			}
		}
		if taskStatuses != nil {
			if err := tx.Where("demand_id = ?", d.ID).Delete(&entity.DemandTaskStatus{}).Error; err != nil {
				return fmt.Errorf("clear task statuses: %w", err)
			}
			if len(taskStatuses) > 0 {
				if err := tx.Create(&taskStatuses).Error; err != nil {
					return fmt.Errorf("replace task statuses: %w", err)
				}
			}
		}
		return nil
	})
}

// CompleteTask marks one task complete and applies the resulting demand
// status change in the same transaction. Returns ErrNotFound when the task
// row is absent.
func (r *DemandRepository) CompleteTask(ctx context.Context, d *entity.Demand, taskID, actorID string, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.DemandTaskStatus{}).
			Where("demand_id = ? AND task_id = ? AND completed = false", d.ID, taskID).
			Updates(map[string]interface{}{
				"completed":    true,
				"completed_at": now,
				"completed_by": actorID,
			})
		if res.Error != nil {
			return fmt.Errorf("complete task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Omit("FieldValues", "TaskStatuses", "deadline_notified").Save(d).Error
	})
}

// ClaimDeadlineNotification flips deadline_notified false→true. The WHERE
// clause makes the check-then-set a single atomic read-modify-write, so a
// racing sweep or interactive update can win at most once.
func (r *DemandRepository) ClaimDeadlineNotification(ctx context.Context, demandID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.Demand{}).
		Where("id = ? AND deadline_notified = false", demandID).
		Update("deadline_notified", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListApproachingDeadline returns non-finalized, not-yet-notified demands
// expected within the given date window.
func (r *DemandRepository) ListApproachingDeadline(ctx context.Context, from, to time.Time) ([]entity.Demand, error) {
	var demands []entity.Demand
	err := r.db.WithContext(ctx).
		Where("status <> ?", entity.DemandStatusFinalized).
		Where("deadline_notified = false").
		Where("expected_at >= ? AND expected_at < ?", from, to).
		Find(&demands).Error
	return demands, err
}

// CountByTemplate reports how many demands reference a template.
func (r *DemandRepository) CountByTemplate(ctx context.Context, templateID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.Demand{}).
		Where("template_id = ?", templateID).Count(&n).Error
	return n, err
}
