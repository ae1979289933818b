package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eduardopventura/demandflow/internal/config"
	"github.com/eduardopventura/demandflow/internal/demand/entity"
	"github.com/eduardopventura/demandflow/internal/demand/handler"
	"github.com/eduardopventura/demandflow/internal/demand/repository"
	"github.com/eduardopventura/demandflow/internal/demand/service"
	"github.com/eduardopventura/demandflow/internal/middleware"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting demandflow service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Role{},
		&entity.UserRole{},
		&entity.Template{},
		&entity.TemplateTab{},
		&entity.TemplateField{},
		&entity.TemplateTask{},
		&entity.Action{},
		&entity.Demand{},
		&entity.DemandFieldValue{},
		&entity.DemandTaskStatus{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}

	rdb := initRedis(cfg.Redis)

	repos := repository.NewRepositories(db)
	services, err := service.NewServices(repos, rdb, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to init services", zap.Error(err))
	}
	handlers := handler.NewHandlers(services, cfg)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, services, cfg)

	// the deadline sweep runs for the lifetime of the process
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go services.Sweep.Start(sweepCtx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, svc *service.Services, cfg *config.Config) {
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
		}

		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret, svc.Auth.IsRevoked))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)

			users := authorized.Group("/users")
			{
				users.GET("", h.User.List)
				users.POST("", middleware.RequireRole("admin"), h.User.Create)
				users.GET("/:id", h.User.Get)
				users.PATCH("/:id", middleware.RequireRole("admin"), h.User.Update)
			}

			authorized.GET("/roles", h.User.ListRoles)
			authorized.POST("/roles/batch", middleware.RequireRole("admin"), h.User.BatchEditRoles)

			templates := authorized.Group("/templates")
			{
				templates.GET("", h.Template.List)
				templates.POST("", h.Template.Create)
				templates.GET("/:id", h.Template.Get)
				templates.PUT("/:id", h.Template.Update)
				templates.DELETE("/:id", h.Template.Delete)
			}

			actions := authorized.Group("/actions")
			{
				actions.GET("", h.Action.List)
				actions.POST("", h.Action.Create)
				actions.GET("/:id", h.Action.Get)
				actions.PUT("/:id", h.Action.Update)
				actions.DELETE("/:id", h.Action.Delete)
			}

			demands := authorized.Group("/demands")
			{
				demands.GET("", h.Demand.List)
				demands.POST("", h.Demand.Create)
				demands.GET("/export", h.Demand.Export)
				demands.GET("/:id", h.Demand.Get)
				demands.PATCH("/:id", h.Demand.Update)
				demands.POST("/:id/start", h.Demand.StartProgress)
				demands.POST("/:id/finish", h.Demand.Finish)
				demands.POST("/:id/reopen", h.Demand.Reopen)
				demands.POST("/:id/tasks/:taskId/execute", h.Demand.ExecuteAction)
			}

			files := authorized.Group("/files")
			{
				files.POST("", h.Upload.Upload)
				files.GET("/*ref", h.Upload.Download)
			}
		}
	}
}
