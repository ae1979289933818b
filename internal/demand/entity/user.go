package entity

import (
	"time"
)

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// User account with notification channel preferences.
type User struct {
	ID            string     `json:"id" gorm:"primaryKey;size:36"`
	Username      string     `json:"username" gorm:"size:64;not null;uniqueIndex"`
	Name          string     `json:"name" gorm:"size:128;not null"`
	Email         string     `json:"email" gorm:"size:128;uniqueIndex"`
	Phone         string     `json:"phone" gorm:"size:20"`
	PasswordHash  string     `json:"-" gorm:"size:128;not null"`
	NotifyByEmail bool       `json:"notify_by_email" gorm:"not null;default:true"`
	NotifyByPhone bool       `json:"notify_by_phone" gorm:"not null;default:false"`
	Status        string     `json:"status" gorm:"size:16;not null;default:'active'"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Roles []Role `json:"roles,omitempty" gorm:"many2many:user_roles;"`
}

func (User) TableName() string {
	return "users"
}

// HasChannel reports whether the user has at least one notification channel
// enabled. Users with none are skipped by the orchestrator without error.
func (u *User) HasChannel() bool {
	return u.NotifyByEmail || u.NotifyByPhone
}

// Role named group of users; demands and tasks may be assigned to a role
// instead of an individual.
type Role struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Name      string    `json:"name" gorm:"size:100;not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Users []User `json:"users,omitempty" gorm:"many2many:user_roles;"`
}

func (Role) TableName() string {
	return "roles"
}

// UserRole join table
type UserRole struct {
	UserID string `json:"user_id" gorm:"primaryKey;size:36"`
	RoleID string `json:"role_id" gorm:"primaryKey;size:36"`
}

func (UserRole) TableName() string {
	return "user_roles"
}
