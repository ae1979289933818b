package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/eduardopventura/demandflow/internal/demand/entity"
	"github.com/eduardopventura/demandflow/internal/shared/notify"
)

// UserDirectory resolves recipients. Satisfied by repository.UserRepository.
type UserDirectory interface {
	FindUser(ctx context.Context, id string) (*entity.User, error)
	ListUsersByRole(ctx context.Context, roleID string) ([]entity.User, error)
	UserHoldsRole(ctx context.Context, userID, roleID string) (bool, error)
}

// NotificationService fans domain events out to the configured channels.
// Delivery failures are logged and never propagated: notifications run after
// the triggering transaction has committed and must not fail it.
type NotificationService struct {
	directory UserDirectory
	email     notify.Sender
	messenger notify.Sender
	logger    *zap.Logger
}

func NewNotificationService(directory UserDirectory, logger *zap.Logger) *NotificationService {
	return &NotificationService{directory: directory, logger: logger}
}

func (s *NotificationService) SetEmailSender(sender notify.Sender)     { s.email = sender }
func (s *NotificationService) SetMessengerSender(sender notify.Sender) { s.messenger = sender }

// Notify resolves the responsible target to concrete users and dispatches the
// event on every channel each user opted into. A role target expands to all
// of its members.
func (s *NotificationService) Notify(ctx context.Context, target entity.Responsible, event Event) {
	for _, user := range s.resolve(ctx, target) {
		s.dispatch(ctx, user, event)
	}
}

// NotifyAll dispatches one event to several targets, sending each user at most
// once even when targets overlap (a user plus a role they hold, or two roles
// sharing members).
func (s *NotificationService) NotifyAll(ctx context.Context, targets []entity.Responsible, event Event) {
	seen := make(map[string]bool)
	for _, target := range targets {
		for _, user := range s.resolve(ctx, target) {
			if seen[user.ID] {
				continue
			}
			seen[user.ID] = true
			s.dispatch(ctx, user, event)
		}
	}
}

func (s *NotificationService) resolve(ctx context.Context, target entity.Responsible) []entity.User {
	switch {
	case target.IsUser():
		user, err := s.directory.FindUser(ctx, target.UserID)
		if err != nil {
			s.logger.Warn("notification target user not found",
				zap.String("user_id", target.UserID), zap.Error(err))
			return nil
		}
		return []entity.User{*user}
	case target.RoleID != "":
		users, err := s.directory.ListUsersByRole(ctx, target.RoleID)
		if err != nil {
			s.logger.Warn("notification role expansion failed",
				zap.String("role_id", target.RoleID), zap.Error(err))
			return nil
		}
		return users
	default:
		return nil
	}
}

func (s *NotificationService) dispatch(ctx context.Context, user entity.User, event Event) {
	if user.Status != entity.UserStatusActive {
		return
	}
	if user.NotifyByEmail && user.Email != "" && s.email != nil {
		if err := s.email.Send(ctx, user.Email, renderEmail(event)); err != nil {
			s.logger.Warn("email notification failed",
				zap.String("user_id", user.ID),
				zap.String("event", string(event.Kind)),
				zap.Error(err))
		}
	}
	if user.NotifyByPhone && user.Phone != "" && s.messenger != nil {
		if err := s.messenger.Send(ctx, user.Phone, renderMessage(event)); err != nil {
			s.logger.Warn("messenger notification failed",
				zap.String("user_id", user.ID),
				zap.String("event", string(event.Kind)),
				zap.Error(err))
		}
	}
}

// isEffectiveResponsible reports whether the given user is covered by the
// target, either directly or through role membership.
func (s *NotificationService) isEffectiveResponsible(ctx context.Context, userID string, target entity.Responsible) bool {
	switch {
	case target.IsUser():
		return target.UserID == userID
	case target.RoleID != "":
		holds, err := s.directory.UserHoldsRole(ctx, userID, target.RoleID)
		if err != nil {
			s.logger.Warn("role membership check failed",
				zap.String("user_id", userID), zap.String("role_id", target.RoleID), zap.Error(err))
			return false
		}
		return holds
	default:
		return false
	}
}
