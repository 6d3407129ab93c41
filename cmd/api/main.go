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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-enrollment-api/api/swagger"
	"github.com/noah-isme/course-enrollment-api/internal/handler"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	"github.com/noah-isme/course-enrollment-api/internal/service"
	"github.com/noah-isme/course-enrollment-api/pkg/cache"
	"github.com/noah-isme/course-enrollment-api/pkg/config"
	"github.com/noah-isme/course-enrollment-api/pkg/database"
	"github.com/noah-isme/course-enrollment-api/pkg/gateway"
	"github.com/noah-isme/course-enrollment-api/pkg/logger"
	"github.com/noah-isme/course-enrollment-api/pkg/notify"
	"github.com/noah-isme/course-enrollment-api/pkg/signature"
)

// @title Course Enrollment API
// @version 1.0.0
// @description Payment capture, verification and course enrollment with admission review.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	if cfg.Database.RunMigrations {
		if err := database.Migrate(cfg.Database, logr); err != nil {
			return err
		}
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	var redisClient *redis.Client
	if cfg.Admissions.StatsCacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, admission stats cache disabled", zap.Error(err))
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, cfg.Redis.KeyPrefix, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Admissions.StatsCacheTTL, logr, redisClient != nil)

	orders, err := newOrderGateway(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sender notify.Sender = notify.Nop{}
	if cfg.Notify.Enabled {
		publisher := notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic, logr)
		defer publisher.Close() //nolint:errcheck
		dispatcher := service.NewNotificationDispatcher(publisher, service.NotificationConfig{
			Workers:    cfg.Notify.Workers,
			MaxRetries: cfg.Notify.Retries,
		}, metrics, logr)
		dispatcher.Start(context.Background())
		defer func() {
			drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Notify.DrainTimeout)
			defer cancel()
			dispatcher.Shutdown(drainCtx)
		}()
		sender = dispatcher
	}

	validate := validator.New()
	clock := service.SystemClock{}
	students := repository.NewStudentRepository(db)
	courses := repository.NewCourseRepository(db)

	admissionSvc := service.NewAdmissionService(
		repository.NewAdmissionConfirmationRepository(db),
		students,
		courses,
		cacheSvc,
		metrics,
		clock,
		validate,
		logr,
		service.AdmissionConfig{StatsCacheTTL: cfg.Admissions.StatsCacheTTL},
	)
	enrollmentSvc := service.NewEnrollmentService(students, repository.NewEnrollmentRepository(db), admissionSvc, sender, metrics, logr)
	paymentSvc := service.NewPaymentService(
		students,
		service.NewAmountCalculator(courses),
		orders,
		signature.NewVerifier(cfg.Payment.SigningSecret),
		repository.NewPaymentOrderRepository(db),
		enrollmentSvc,
		clock,
		metrics,
		validate,
		logr,
		service.PaymentConfig{
			Currency:       cfg.Payment.Currency,
			ReceiptPrefix:  cfg.Payment.ReceiptPrefix,
			GatewayTimeout: cfg.Payment.GatewayTimeout,
		},
	)
	authSvc := service.NewAuthService(service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret})

	deps := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		deps["redis"] = cacheRepo
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(cfg, logr, routes{
		auth:       authSvc,
		metrics:    metrics,
		payments:   handler.NewPaymentHandler(paymentSvc),
		admissions: handler.NewAdmissionHandler(admissionSvc),
		health:     handler.NewMetricsHandler(metrics, deps),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env), zap.String("gateway", cfg.Payment.Gateway))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newOrderGateway(cfg *config.Config) (service.OrderGateway, error) {
	switch cfg.Payment.Gateway {
	case config.GatewayMidtrans:
		if cfg.Midtrans.ServerKey == "" {
			return nil, errors.New("MIDTRANS_SERVER_KEY is required for the midtrans gateway")
		}
		return gateway.NewMidtrans(cfg.Midtrans.ServerKey, cfg.Midtrans.Production), nil
	case config.GatewaySandbox, "":
		if cfg.Env == config.EnvProduction {
			return nil, errors.New("sandbox gateway is not allowed in production")
		}
		return gateway.NewSandbox(), nil
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", cfg.Payment.Gateway)
	}
}
