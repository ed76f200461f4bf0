package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lifeplanner-backend/config"
	"lifeplanner-backend/controllers"
	"lifeplanner-backend/models"
	"lifeplanner-backend/routes"
	"lifeplanner-backend/services"
	"lifeplanner-backend/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg.Log.Level, cfg.Log.Format, "lifeplanner-reminders")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, err := config.ConnectDB(cfg, logger)
	if err != nil {
		return err
	}
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(&models.ReminderSendRecord{}, &models.DailyReminder{}); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	var fallback services.ReadSource
	if cfg.FallbackEnabled() {
		fallback = services.NewPostgRESTSource(cfg.Supabase.URL, cfg.Supabase.ServiceKey, cfg.Notifier.Timeout, logger)
	}
	repo := services.NewGormRepository(db, fallback, logger)
	ledger := services.NewGormLedger(db)

	guard, closeGuard, err := buildGuard(cfg, logger)
	if err != nil {
		return err
	}
	defer closeGuard()

	policy, err := services.NewEventPolicy(cfg.Reminders.Policy, services.PolicySettings{
		Window:      cfg.Reminders.Window,
		MorningSend: cfg.Reminders.MorningSend,
		EarlyCutoff: cfg.Reminders.EarlyCutoff,
		HoursBefore: cfg.Reminders.HoursBefore,
		DaysAhead:   cfg.Reminders.DaysAhead,
	})
	if err != nil {
		return &config.ConfigurationError{Key: "REMINDER_POLICY", Reason: err.Error()}
	}

	clock := utils.NewClock(cfg.Reminders.Location)
	service := services.NewReminderService(services.ReminderServiceDeps{
		Source:   repo,
		Ledger:   ledger,
		Guard:    guard,
		Notifier: buildNotifier(cfg),
		Policy:   policy,
		Clock:    clock,
		Logger:   logger.Named("reminders"),
	})

	scheduler := services.NewScheduler(service, cfg.Reminders.PollInterval, cfg.Reminders.Location, logger.Named("scheduler"))
	retention := time.Duration(cfg.Reminders.RetentionDays) * 24 * time.Hour
	if err := scheduler.AddFunc("@daily", "ledger-prune", func(ctx context.Context) error {
		_, err := service.PruneLedger(ctx, retention)
		return err
	}); err != nil {
		return err
	}

	logger.Info("starting reminder engine",
		zap.String("policy", policy.Name()),
		zap.String("timezone", cfg.Reminders.TimezoneName),
		zap.Duration("poll_interval", cfg.Reminders.PollInterval),
		zap.Duration("window", cfg.Reminders.Window),
		zap.String("notifier", cfg.Notifier.Provider),
		zap.String("guard", cfg.Reminders.GuardBackend),
		zap.Bool("rest_fallback", fallback != nil),
	)
	stopScheduler := scheduler.Start()

	gin.SetMode(gin.ReleaseMode)
	router := routes.SetupRouter(routes.Deps{
		Config: cfg,
		Logger: logger.Named("http"),
		Reminders: &controllers.ReminderController{
			Scheduler: scheduler,
			Ledger:    ledger,
			Clock:     clock,
		},
		DailyReminders: &controllers.DailyReminderController{Store: repo},
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("HTTP server failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := stopScheduler(ctx); err != nil {
		logger.Error("scheduler did not stop cleanly", zap.Error(err))
	}
	closeDB(db, logger)
	return nil
}

func buildGuard(cfg *config.Config, logger *zap.Logger) (services.Guard, func(), error) {
	if cfg.Reminders.GuardBackend != config.GuardRedis {
		return services.NewMemoryGuard(cfg.Reminders.GuardTTL, cfg.Reminders.GuardMaxEntries), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis guard: %w", err)
	}
	logger.Info("using redis send guard", zap.String("addr", cfg.Redis.Addr))
	return services.NewRedisGuard(client, "lifeplanner:reminders:guard:", cfg.Reminders.GuardTTL), func() { client.Close() }, nil
}

func buildNotifier(cfg *config.Config) services.Notifier {
	var n services.Notifier
	switch cfg.Notifier.Provider {
	case config.NotifierTwilio:
		n = services.NewTwilioNotifier(cfg.Notifier.TwilioAccountSID, cfg.Notifier.TwilioAuthToken, cfg.Notifier.TwilioFrom)
	default:
		n = services.NewZAPINotifier(cfg.Notifier.ZAPIURL, cfg.Notifier.ZAPIToken, cfg.Notifier.Timeout)
	}
	return services.NewRateLimitedNotifier(n, cfg.Notifier.RatePerSecond, cfg.Notifier.Burst)
}

func closeDB(db *gorm.DB, logger *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("closing database", zap.Error(err))
	}
}
