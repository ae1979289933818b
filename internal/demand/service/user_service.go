package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/eduardopventura/demandflow/internal/demand/entity"
	"github.com/eduardopventura/demandflow/internal/demand/repository"
)

// UserService manages users, roles and role membership. Batch role edits are
// all-or-nothing: one invalid entry rejects the whole batch.
type UserService struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

func NewUserService(repos *repository.Repositories, logger *zap.Logger) *UserService {
	return &UserService{repos: repos, logger: logger}
}

func (s *UserService) GetUser(ctx context.Context, id string) (*entity.User, error) {
	return s.repos.User.FindUser(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context) ([]entity.User, error) {
	return s.repos.User.ListUsers(ctx)
}

func (s *UserService) ListRoles(ctx context.Context) ([]entity.Role, error) {
	return s.repos.User.ListRoles(ctx)
}

// CreateUserInput new user request.
type CreateUserInput struct {
	Username      string   `json:"username" binding:"required"`
	Name          string   `json:"name" binding:"required"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	Password      string   `json:"password" binding:"required,min=8"`
	NotifyByEmail bool     `json:"notify_by_email"`
	NotifyByPhone bool     `json:"notify_by_phone"`
	RoleIDs       []string `json:"role_ids"`
}

func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*entity.User, error) {
	if _, err := s.repos.User.FindUserByUsername(ctx, in.Username); err == nil {
		return nil, Validationf("username %q is already taken", in.Username)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &entity.User{
		ID:            uuid.NewString(),
		Username:      in.Username,
		Name:          in.Name,
		Email:         in.Email,
		Phone:         in.Phone,
		PasswordHash:  string(hash),
		NotifyByEmail: in.NotifyByEmail,
		NotifyByPhone: in.NotifyByPhone,
		Status:        entity.UserStatusActive,
	}
	for _, roleID := range in.RoleIDs {
		role, err := s.repos.User.FindRole(ctx, roleID)
		if err != nil {
			return nil, err
		}
		user.Roles = append(user.Roles, *role)
	}
	if err := s.repos.User.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// UpdateUserInput partial user update. Nil fields are left untouched.
type UpdateUserInput struct {
	Name          *string  `json:"name"`
	Email         *string  `json:"email"`
	Phone         *string  `json:"phone"`
	NotifyByEmail *bool    `json:"notify_by_email"`
	NotifyByPhone *bool    `json:"notify_by_phone"`
	Status        *string  `json:"status"`
	RoleIDs       []string `json:"role_ids"`
}

func (s *UserService) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (*entity.User, error) {
	user, err := s.repos.User.FindUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.Phone != nil {
		user.Phone = *in.Phone
	}
	if in.NotifyByEmail != nil {
		user.NotifyByEmail = *in.NotifyByEmail
	}
	if in.NotifyByPhone != nil {
		user.NotifyByPhone = *in.NotifyByPhone
	}
	if in.Status != nil {
		if *in.Status != entity.UserStatusActive && *in.Status != entity.UserStatusDisabled {
			return nil, Validationf("unknown user status %q", *in.Status)
		}
		user.Status = *in.Status
	}

	db := s.repos.User.DB().WithContext(ctx)
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Roles").Save(user).Error; err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		if in.RoleIDs == nil {
			return nil
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&entity.UserRole{}).Error; err != nil {
			return fmt.Errorf("clear roles: %w", err)
		}
		for _, roleID := range in.RoleIDs {
			var role entity.Role
			if err := tx.Where("id = ?", roleID).First(&role).Error; err != nil {
				return translateTx(err)
			}
			if err := tx.Create(&entity.UserRole{UserID: user.ID, RoleID: roleID}).Error; err != nil {
				return fmt.Errorf("assign role: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repos.User.FindUser(ctx, id)
}

// RoleEdit one entry of a batch role edit.
type RoleEdit struct {
	Op               string  `json:"op" binding:"required,oneof=create rename delete"`
	RoleID           string  `json:"role_id"`
	Name             string  `json:"name"`
	ReassignToRoleID *string `json:"reassign_to_role_id"`
}

// ApplyRoleEdits applies a batch of role creations, renames and deletions in
// one transaction. Deleting a role that still has members requires a
// reassignment target; a duplicate name anywhere in the batch rejects
// everything. No partial application ever happens.
func (s *UserService) ApplyRoleEdits(ctx context.Context, edits []RoleEdit) error {
	if len(edits) == 0 {
		return nil
	}
	db := s.repos.User.DB().WithContext(ctx)
	return db.Transaction(func(tx *gorm.DB) error {
		for i, edit := range edits {
			if err := s.applyRoleEdit(tx, edit); err != nil {
				return fmt.Errorf("role edit %d (%s): %w", i, edit.Op, err)
			}
		}
		return nil
	})
}

func (s *UserService) applyRoleEdit(tx *gorm.DB, edit RoleEdit) error {
	switch edit.Op {
	case "create":
		name := strings.TrimSpace(edit.Name)
		if name == "" {
			return Validationf("role name is required")
		}
		var n int64
		if err := tx.Model(&entity.Role{}).Where("name = ?", name).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return Validationf("role name %q is already in use", name)
		}
		return tx.Create(&entity.Role{ID: uuid.NewString(), Name: name}).Error

	case "rename":
		name := strings.TrimSpace(edit.Name)
		if name == "" {
			return Validationf("role name is required")
		}
		var role entity.Role
		if err := tx.Where("id = ?", edit.RoleID).First(&role).Error; err != nil {
			return translateTx(err)
		}
		var n int64
		if err := tx.Model(&entity.Role{}).Where("name = ? AND id <> ?", name, role.ID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return Validationf("role name %q is already in use", name)
		}
		role.Name = name
		return tx.Save(&role).Error

	case "delete":
		var role entity.Role
		if err := tx.Where("id = ?", edit.RoleID).First(&role).Error; err != nil {
			return translateTx(err)
		}
		var members int64
		if err := tx.Model(&entity.UserRole{}).Where("role_id = ?", role.ID).Count(&members).Error; err != nil {
			return err
		}
		if members > 0 {
			if edit.ReassignToRoleID == nil || *edit.ReassignToRoleID == "" {
				return Validationf("role %q still has %d member(s); a reassignment target is required", role.Name, members)
			}
			if *edit.ReassignToRoleID == role.ID {
				return Validationf("role %q cannot be reassigned to itself", role.Name)
			}
			var target entity.Role
			if err := tx.Where("id = ?", *edit.ReassignToRoleID).First(&target).Error; err != nil {
				return translateTx(err)
			}
			// Move memberships, skipping users already in the target role.
			err := tx.Exec(`
				INSERT INTO user_roles (user_id, role_id)
				SELECT user_id, ? FROM user_roles WHERE role_id = ?
				ON CONFLICT DO NOTHING`, target.ID, role.ID).Error
			if err != nil {
				return fmt.Errorf("reassign members: %w", err)
			}
			if err := tx.Where("role_id = ?", role.ID).Delete(&entity.UserRole{}).Error; err != nil {
				return fmt.Errorf("clear memberships: %w", err)
			}
		}
		return tx.Delete(&role).Error

	default:
		return Validationf("unknown role edit op %q", edit.Op)
	}
}

func translateTx(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.ErrNotFound
	}
	return err
}
