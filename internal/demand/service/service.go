package service

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eduardopventura/demandflow/internal/config"
	"github.com/eduardopventura/demandflow/internal/demand/repository"
	"github.com/eduardopventura/demandflow/internal/shared/callback"
	"github.com/eduardopventura/demandflow/internal/shared/notify"
	"github.com/eduardopventura/demandflow/internal/shared/storage"
)

// Services service collection
type Services struct {
	Auth         *AuthService
	User         *UserService
	Template     *TemplateService
	Demand       *DemandService
	Action       *ActionService
	Notification *NotificationService
	Sweep        *SweepService
	Files        *storage.MinioStore
}

// NewServices wires the whole service layer. Object storage and the
// notification channels are optional: missing configuration leaves those
// collaborators nil and the dependent features degrade (no file uploads, a
// channel silently disabled).
func NewServices(repos *repository.Repositories, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) (*Services, error) {
	notification := NewNotificationService(repos.User, logger)
	if cfg.SMTP.Host != "" {
		notification.SetEmailSender(notify.NewEmailSender(
			cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password))
	}
	if cfg.Messenger.WebhookURL != "" {
		notification.SetMessengerSender(notify.NewMessengerSender(
			cfg.Messenger.WebhookURL, cfg.Messenger.Token))
	}

	var files *storage.MinioStore
	if cfg.MinIO.Endpoint != "" {
		var err error
		files, err = storage.NewMinioStore(
			cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.Bucket, cfg.MinIO.UseSSL)
		if err != nil {
			logger.Warn("object storage unavailable, file features disabled", zap.Error(err))
			files = nil
		}
	}
	var fileStore storage.FileStore
	if files != nil {
		fileStore = files
	}

	sweep := NewSweepService(repos, notification, rdb, logger)
	if cfg.Sweep.Interval > 0 {
		sweep.interval = cfg.Sweep.Interval
	}

	return &Services{
		Auth:         NewAuthService(repos, rdb, cfg.JWT.Secret, cfg.JWT.AccessTokenExpire, logger),
		User:         NewUserService(repos, logger),
		Template:     NewTemplateService(repos, logger),
		Demand:       NewDemandService(repos, notification, logger),
		Action:       NewActionService(repos, callback.NewClient(), fileStore, notification, logger),
		Notification: notification,
		Sweep:        sweep,
		Files:        files,
	}, nil
}
