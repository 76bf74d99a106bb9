package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/porsino-app/porsino-server/internal/chatjob"
	"github.com/porsino-app/porsino-server/internal/config"
	"github.com/porsino-app/porsino-server/internal/db"
	"github.com/porsino-app/porsino-server/internal/http/api/front"
	"github.com/porsino-app/porsino-server/internal/logging"
	"github.com/porsino-app/porsino-server/internal/otp"
	"github.com/porsino-app/porsino-server/internal/payment"
	"github.com/porsino-app/porsino-server/internal/settings"
	"github.com/porsino-app/porsino-server/internal/sms"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// settingsRefreshInterval controls how often the DB settings snapshot reloads.
const settingsRefreshInterval = time.Minute

// shutdownGrace bounds graceful HTTP shutdown.
const shutdownGrace = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the API server with database-backed components.
func RunServer(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(cfg.Logging)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		log.WithError(errRefresh).Warn("load settings snapshot failed, using defaults")
	}
	go refreshSettingsLoop(ctx, conn)

	sweeper := otp.NewRetentionSweeper(conn)
	sweeper.Start(ctx)

	guard := otp.NewGuard(conn, buildSMSSender(cfg.SMS))
	runner := chatjob.NewRunner(conn, buildJobStore(ctx, cfg.Redis), chatjob.NewClient(cfg.AI), cfg.AI.MaxJobRuntime)
	payments := payment.NewService(conn, payment.NewGateway(cfg.Payment))

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	front.RegisterFrontRoutes(engine, conn, cfg.JWT, front.Services{
		Guard:    guard,
		Runner:   runner,
		Payments: payments,
	})

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Server.Address)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// buildSMSSender selects the real gateway or console echo for development.
func buildSMSSender(cfg config.SMSConfig) sms.Sender {
	if cfg.Console || cfg.APIKey == "" {
		log.Warn("sms gateway not configured, codes are logged to console")
		return sms.ConsoleSender{}
	}
	return sms.NewClient(cfg)
}

// buildJobStore selects Redis when configured, in-memory otherwise.
func buildJobStore(ctx context.Context, cfg config.RedisConfig) chatjob.Store {
	if cfg.Addr == "" {
		log.Warn("redis not configured, chat jobs use the in-memory store")
		return chatjob.NewMemoryStore()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if errPing := rdb.Ping(pingCtx).Err(); errPing != nil {
		log.WithError(errPing).Warn("redis unreachable, chat jobs use the in-memory store")
		return chatjob.NewMemoryStore()
	}
	return chatjob.NewRedisStore(rdb)
}

// refreshSettingsLoop reloads the DB settings snapshot until ctx ends.
func refreshSettingsLoop(ctx context.Context, conn *gorm.DB) {
	ticker := time.NewTicker(settingsRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
				log.WithError(errRefresh).Warn("refresh settings snapshot failed")
			}
		}
	}
}
