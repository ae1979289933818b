package entity

import (
	"time"
)

// Template reusable demand definition: tabs, fields and tasks.
// Demands reference templates by id (no deep copy); editing a template only
// affects demands created afterwards. Removing a field orphans historical
// values, which are retained but no longer rendered.
type Template struct {
	ID                   string    `json:"id" gorm:"primaryKey;size:36"`
	Name                 string    `json:"name" gorm:"size:200;not null;uniqueIndex"`
	Description          string    `json:"description" gorm:"type:text"`
	ExpectedDurationDays int       `json:"expected_duration_days" gorm:"not null;default:0"`
	CreatedBy            string    `json:"created_by" gorm:"size:36;not null"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`

	Tabs   []TemplateTab   `json:"tabs,omitempty" gorm:"foreignKey:TemplateID"`
	Fields []TemplateField `json:"fields,omitempty" gorm:"foreignKey:TemplateID"`
	Tasks  []TemplateTask  `json:"tasks,omitempty" gorm:"foreignKey:TemplateID"`
}

func (Template) TableName() string {
	return "templates"
}

// TemplateTab form tab grouping fields in the UI
type TemplateTab struct {
	ID         string `json:"id" gorm:"primaryKey;size:36"`
	TemplateID string `json:"template_id" gorm:"size:36;not null;index"`
	Name       string `json:"name" gorm:"size:100;not null"`
	SortOrder  int    `json:"sort_order" gorm:"default:0"`
}

func (TemplateTab) TableName() string {
	return "template_tabs"
}

// VisibilityCondition conditional display rule for a field, evaluated against
// the demand's current field values. Absent condition means always visible.
type VisibilityCondition struct {
	FieldID  string `json:"field_id"`
	Operator string `json:"operator"` // equals/not_equals/filled/empty
	Value    string `json:"value,omitempty"`
}

// TemplateField dynamic form field. Group fields repeat their children N
// times per demand; children rows point back via ParentFieldID.
type TemplateField struct {
	ID                  string               `json:"id" gorm:"primaryKey;size:36"`
	TemplateID          string               `json:"template_id" gorm:"size:36;not null;index"`
	ParentFieldID       *string              `json:"parent_field_id,omitempty" gorm:"size:36;index"`
	Label               string               `json:"label" gorm:"size:200;not null"`
	Kind                string               `json:"kind" gorm:"size:16;not null;default:'text'"`
	Options             []string             `json:"options,omitempty" gorm:"type:jsonb;serializer:json"`
	RequiredOnCreate    bool                 `json:"required_on_create" gorm:"default:false"`
	ComplementsName     bool                 `json:"complements_name" gorm:"default:false"`
	TabIDs              []string             `json:"tab_ids,omitempty" gorm:"type:jsonb;serializer:json"`
	DefaultReplicaCount int                  `json:"default_replica_count" gorm:"default:1"`
	Visibility          *VisibilityCondition `json:"visibility,omitempty" gorm:"type:jsonb;serializer:json"`
	SortOrder           int                  `json:"sort_order" gorm:"default:0"`

	Children []TemplateField `json:"children,omitempty" gorm:"foreignKey:ParentFieldID"`
}

func (TemplateField) TableName() string {
	return "template_fields"
}

// TemplateTask unit of work a demand instantiates. ParentTaskID forms a
// forest: a task is only actionable once its parent is complete. ActionID
// plus FieldMapping bind the task to an external automation.
type TemplateTask struct {
	ID                       string            `json:"id" gorm:"primaryKey;size:36"`
	TemplateID               string            `json:"template_id" gorm:"size:36;not null;index"`
	Name                     string            `json:"name" gorm:"size:200;not null"`
	ParentTaskID             *string           `json:"parent_task_id,omitempty" gorm:"size:36"`
	DefaultResponsibleUserID *string           `json:"default_responsible_user_id,omitempty" gorm:"size:36"`
	DefaultResponsibleRoleID *string           `json:"default_responsible_role_id,omitempty" gorm:"size:36"`
	ActionID                 *string           `json:"action_id,omitempty" gorm:"size:36"`
	FieldMapping             map[string]string `json:"field_mapping,omitempty" gorm:"type:jsonb;serializer:json"`
	SortOrder                int               `json:"sort_order" gorm:"default:0"`
}

func (TemplateTask) TableName() string {
	return "template_tasks"
}
