package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/studio-booking-api/api/swagger"
	"github.com/noah-isme/studio-booking-api/internal/handler"
	"github.com/noah-isme/studio-booking-api/internal/middleware"
	"github.com/noah-isme/studio-booking-api/internal/models"
	"github.com/noah-isme/studio-booking-api/internal/repository"
	"github.com/noah-isme/studio-booking-api/internal/service"
	"github.com/noah-isme/studio-booking-api/pkg/cache"
	"github.com/noah-isme/studio-booking-api/pkg/config"
	"github.com/noah-isme/studio-booking-api/pkg/database"
	"github.com/noah-isme/studio-booking-api/pkg/export"
	"github.com/noah-isme/studio-booking-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/studio-booking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/studio-booking-api/pkg/middleware/requestid"
)

// @title Studio Booking API
// @version 1.0.0
// @description Slot booking, waitlist and billing engine
// @BasePath /api/v1
// @schemes http

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
	sugar := logr.Sugar()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	validate := validator.New()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		sugar.Warnw("redis unavailable, catalog cache disabled", "error", err)
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Catalog.CacheTTL, logr, false)
	} else {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, true)
	}

	userRepo := repository.NewUserRepository(db)
	ownerRepo := repository.NewOwnerRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	planRepo := repository.NewPlanRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	slotRepo := repository.NewSlotRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "studio-booking-api",
	})

	dispatcher := service.NewDispatcherService(service.DispatcherConfig{
		NotificationsEnabled: cfg.Notifications.Enabled,
		NotificationWorkers:  cfg.Notifications.WorkerConcurrency,
		NotificationRetries:  cfg.Notifications.WorkerRetries,
		CalendarEnabled:      cfg.Calendar.Enabled,
		CalendarWorkers:      cfg.Calendar.WorkerConcurrency,
		CalendarRetries:      cfg.Calendar.WorkerRetries,
	}, service.LogNotificationSink{Logger: logr}, service.NoopCalendarSink{}, slotRepo, logr)

	waitlistSvc := service.NewWaitlistService(waitlistRepo, studentRepo, dispatcher, cfg.Waitlist.Enabled, cfg.Waitlist.HoldTTL, validate, logr)

	policy := service.NewSchedulePolicy(service.ScheduleWindows{
		MorningStartHour:   cfg.Booking.MorningStartHour,
		MorningEndHour:     cfg.Booking.MorningEndHour,
		AfternoonStartHour: cfg.Booking.AfternoonStartHour,
		AfternoonEndHour:   cfg.Booking.AfternoonEndHour,
		LeadTimeHours:      cfg.Booking.LeadTimeHours,
	})

	bookingSvc := service.NewBookingService(
		slotRepo,
		studentRepo,
		ownerRepo,
		availabilityRepo,
		waitlistSvc,
		dispatcher,
		policy,
		service.BookingConfig{
			MaxPerSlot:         cfg.Booking.MaxPerSlot,
			SerializableRetry:  cfg.Booking.SerializableRetry,
			SeriesHorizonWeeks: cfg.Booking.SeriesHorizonWeeks,
			RecurringEnabled:   cfg.Booking.RecurringEnabled,
		},
		service.RoleAccessPolicy{},
		metricsSvc,
		validate,
		logr,
	)

	billingSvc := service.NewBillingService(studentRepo, planRepo, paymentRepo, slotRepo, cfg.Billing.CustomCycleDayEnabled, cfg.Billing.DefaultCycleStartDay, validate, logr)
	catalogSvc := service.NewCatalogService(planRepo, availabilityRepo, cacheSvc, validate, logr)
	exportSvc := service.NewExportService(slotRepo, export.NewPDFExporter(), logr)

	authHandler := handler.NewAuthHandler(authSvc)
	slotHandler := handler.NewSlotHandler(bookingSvc, exportSvc)
	waitlistHandler := handler.NewWaitlistHandler(waitlistSvc)
	billingHandler := handler.NewBillingHandler(billingSvc)
	catalogHandler := handler.NewCatalogHandler(catalogSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/slots", slotHandler.List)
	authed.POST("/slots", slotHandler.Create)
	authed.GET("/slots/export", slotHandler.ExportWeek)
	authed.POST("/slots/bulk-cancel", slotHandler.BulkCancel)
	authed.GET("/slots/:id", slotHandler.Get)
	authed.PATCH("/slots/:id", slotHandler.Update)
	authed.DELETE("/slots/:id", slotHandler.Cancel)
	authed.PUT("/slots/:id/status", slotHandler.ChangeStatus)
	authed.PUT("/slots/:id/attendance", slotHandler.SetAttendance)
	authed.PATCH("/series/:id", slotHandler.UpdateSeries)

	authed.POST("/waitlist", waitlistHandler.Join)
	authed.DELETE("/waitlist/:id", waitlistHandler.Leave)
	authed.POST("/waitlist/:id/confirm", waitlistHandler.Confirm)

	authed.GET("/plans", catalogHandler.ListPlans)
	authed.GET("/plans/:id", catalogHandler.GetPlan)
	authed.GET("/availability", catalogHandler.ListAvailability)

	ownerOnly := authed.Group("")
	ownerOnly.Use(middleware.RequireRoles(models.RoleOwner))
	ownerOnly.PUT("/availability", catalogHandler.UpsertAvailability)
	ownerOnly.POST("/students/:id/change-plan", billingHandler.ChangePlan)
	ownerOnly.GET("/payments", billingHandler.ListPayments)
	ownerOnly.POST("/payments", billingHandler.CreatePayment)
	ownerOnly.POST("/payments/:id/mark-paid", billingHandler.MarkPaid)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sugar.Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("graceful shutdown failed", "error", err)
	}
}
