package entity

import (
	"time"
)

// Demand tracked unit of work instantiated from a template. Task statuses
// are copied from the template's task list at creation time; field values
// accumulate as the demand is filled in.
type Demand struct {
	ID                   string     `json:"id" gorm:"primaryKey;size:36"`
	TemplateID           string     `json:"template_id" gorm:"size:36;not null;index"`
	Name                 string     `json:"name" gorm:"size:255;not null"`
	Status               string     `json:"status" gorm:"size:16;not null;default:'created';index"`
	ResponsibleUserID    *string    `json:"responsible_user_id,omitempty" gorm:"size:36"`
	ResponsibleRoleID    *string    `json:"responsible_role_id,omitempty" gorm:"size:36"`
	ExpectedDurationDays int        `json:"expected_duration_days" gorm:"not null;default:0"`
	CreatedAt            time.Time  `json:"created_at"`
	ExpectedAt           time.Time  `json:"expected_at" gorm:"not null;index"`
	FinalizedAt          *time.Time `json:"finalized_at,omitempty"`
	OnTime               bool       `json:"on_time" gorm:"not null;default:true"`
	Notes                string     `json:"notes" gorm:"type:text"`
	DeadlineNotified     bool       `json:"deadline_notified" gorm:"not null;default:false"`
	LastModifiedBy       string     `json:"last_modified_by" gorm:"size:36"`
	UpdatedAt            time.Time  `json:"updated_at"`

	FieldValues  []DemandFieldValue `json:"field_values,omitempty" gorm:"foreignKey:DemandID"`
	TaskStatuses []DemandTaskStatus `json:"task_statuses,omitempty" gorm:"foreignKey:DemandID"`
}

func (Demand) TableName() string {
	return "demands"
}

// Responsible returns the demand's responsible entity.
func (d *Demand) Responsible() Responsible {
	if d.ResponsibleUserID != nil && *d.ResponsibleUserID != "" {
		return ResponsibleUser(*d.ResponsibleUserID)
	}
	if d.ResponsibleRoleID != nil && *d.ResponsibleRoleID != "" {
		return ResponsibleRole(*d.ResponsibleRoleID)
	}
	return Responsible{}
}

// Field value kinds. A file value holds a stored-file reference instead of
// literal text; everything else is a scalar string.
const (
	ValueKindScalar = "scalar"
	ValueKindFile   = "file"
)

// DemandFieldValue one stored field value. Replicated group values carry a
// 0-based ReplicaIndex; plain fields leave it null. The external wire format
// `{fieldId}__{n}` exists only at the serialization boundary (see the
// fieldvalue package).
type DemandFieldValue struct {
	ID           string `json:"id" gorm:"primaryKey;size:36"`
	DemandID     string `json:"demand_id" gorm:"size:36;not null;index:idx_demand_field,priority:1"`
	FieldID      string `json:"field_id" gorm:"size:36;not null;index:idx_demand_field,priority:2"`
	ReplicaIndex *int   `json:"replica_index,omitempty"`
	Kind         string `json:"kind" gorm:"size:8;not null;default:'scalar'"`
	Value        string `json:"value" gorm:"type:text"`
}

func (DemandFieldValue) TableName() string {
	return "demand_field_values"
}

// DemandTaskStatus per-demand status row for one template task.
type DemandTaskStatus struct {
	ID                string     `json:"id" gorm:"primaryKey;size:36"`
	DemandID          string     `json:"demand_id" gorm:"size:36;not null;index:idx_demand_task,priority:1"`
	TaskID            string     `json:"task_id" gorm:"size:36;not null;index:idx_demand_task,priority:2"`
	Completed         bool       `json:"completed" gorm:"not null;default:false"`
	ResponsibleUserID *string    `json:"responsible_user_id,omitempty" gorm:"size:36"`
	ResponsibleRoleID *string    `json:"responsible_role_id,omitempty" gorm:"size:36"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CompletedBy       string     `json:"completed_by" gorm:"size:36"`
}

func (DemandTaskStatus) TableName() string {
	return "demand_task_statuses"
}

// Responsible resolves the task's responsible with the demand as fallback:
// task user, then task role, then the demand's own responsible.
func (t *DemandTaskStatus) Responsible(d *Demand) Responsible {
	if t.ResponsibleUserID != nil && *t.ResponsibleUserID != "" {
		return ResponsibleUser(*t.ResponsibleUserID)
	}
	if t.ResponsibleRoleID != nil && *t.ResponsibleRoleID != "" {
		return ResponsibleRole(*t.ResponsibleRoleID)
	}
	return d.Responsible()
}
