package repository

import (
	"context"

	"github.com/eduardopventura/demandflow/internal/demand/entity"
	"gorm.io/gorm"
)

// UserRepository user and role store
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a user repository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindUser loads a user with roles.
func (r *UserRepository) FindUser(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).Preload("Roles").Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindUserByUsername loads a user by login name.
func (r *UserRepository) FindUserByUsername(ctx context.Context, username string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).Preload("Roles").Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// ListUsers returns all active users.
func (r *UserRepository) ListUsers(ctx context.Context) ([]entity.User, error) {
	var users []entity.User
	err := r.db.WithContext(ctx).Where("status = ?", "active").Order("name").Find(&users).Error
	return users, err
}

// ListUsersByRole expands a role to its active members.
func (r *UserRepository) ListUsersByRole(ctx context.Context, roleID string) ([]entity.User, error) {
	var users []entity.User
	err := r.db.WithContext(ctx).
		Joins("JOIN user_roles ON user_roles.user_id = users.id").
		Where("user_roles.role_id = ? AND users.status = ?", roleID, "active").
		Find(&users).Error
	return users, err
}

// UserHoldsRole reports whether a user is a member of a role.
func (r *UserRepository) UserHoldsRole(ctx context.Context, userID, roleID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.UserRole{}).
		Where("user_id = ? AND role_id = ?", userID, roleID).Count(&n).Error
	return n > 0, err
}

// CreateUser persists a user.
func (r *UserRepository) CreateUser(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// UpdateUser saves a user.
func (r *UserRepository) UpdateUser(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// FindRole loads a role.
func (r *UserRepository) FindRole(ctx context.Context, id string) (*entity.Role, error) {
	var role entity.Role
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&role).Error
	if err != nil {
		return nil, translate(err)
	}
	return &role, nil
}

// ListRoles returns all roles.
func (r *UserRepository) ListRoles(ctx context.Context) ([]entity.Role, error) {
	var roles []entity.Role
	err := r.db.WithContext(ctx).Order("name").Find(&roles).Error
	return roles, err
}

// DB exposes the underlying handle for multi-aggregate transactions.
func (r *UserRepository) DB() *gorm.DB {
	return r.db
}
