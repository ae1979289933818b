package entity

import (
	"time"
)

// ActionInput input field declared by an external action. Kind reuses the
// template field kinds; "file" inputs switch the callback to multipart.
type ActionInput struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Kind     string `json:"kind"`
	Required bool   `json:"required"`
}

// Action reusable external automation invoked over an HTTP callback.
type Action struct {
	ID          string        `json:"id" gorm:"primaryKey;size:36"`
	Name        string        `json:"name" gorm:"size:200;not null;uniqueIndex"`
	CallbackURL string        `json:"callback_url" gorm:"size:512;not null"`
	InputFields []ActionInput `json:"input_fields" gorm:"type:jsonb;serializer:json"`
	CreatedBy   string        `json:"created_by" gorm:"size:36;not null"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (Action) TableName() string {
	return "actions"
}
