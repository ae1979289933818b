package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONB generic jsonb column
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// Demand status values. Once a demand leaves "created" it can never be
// derived back into it; only an explicit reopen moves it between
// "in_progress" and "finalized".
const (
	DemandStatusCreated    = "created"
	DemandStatusInProgress = "in_progress"
	DemandStatusFinalized  = "finalized"
)

// Field kinds supported by template fields and action inputs.
const (
	FieldKindText     = "text"
	FieldKindNumber   = "number"
	FieldKindDecimal  = "decimal"
	FieldKindDate     = "date"
	FieldKindFile     = "file"
	FieldKindDropdown = "dropdown"
	FieldKindGroup    = "group"
)

// Responsible identifies who answers for a demand or task: a user or a role.
type Responsible struct {
	UserID string `json:"user_id,omitempty"`
	RoleID string `json:"role_id,omitempty"`
}

// IsUser reports whether the responsible is an individual user.
func (r Responsible) IsUser() bool {
	return r.UserID != ""
}

// IsZero reports whether no responsible is set.
func (r Responsible) IsZero() bool {
	return r.UserID == "" && r.RoleID == ""
}

// ResponsibleUser builds a user-tagged responsible.
func ResponsibleUser(id string) Responsible {
	return Responsible{UserID: id}
}

// ResponsibleRole builds a role-tagged responsible.
func ResponsibleRole(id string) Responsible {
	return Responsible{RoleID: id}
}
