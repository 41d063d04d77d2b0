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
	"go.uber.org/zap"

	_ "github.com/pahal-edu/pahal-api/api/swagger"
	"github.com/pahal-edu/pahal-api/internal/handler"
	"github.com/pahal-edu/pahal-api/internal/ledger"
	"github.com/pahal-edu/pahal-api/internal/middleware"
	"github.com/pahal-edu/pahal-api/internal/models"
	"github.com/pahal-edu/pahal-api/internal/repository"
	"github.com/pahal-edu/pahal-api/internal/scheduler"
	"github.com/pahal-edu/pahal-api/internal/service"
	"github.com/pahal-edu/pahal-api/pkg/cache"
	"github.com/pahal-edu/pahal-api/pkg/config"
	"github.com/pahal-edu/pahal-api/pkg/database"
	"github.com/pahal-edu/pahal-api/pkg/logger"
	corsmiddleware "github.com/pahal-edu/pahal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/pahal-edu/pahal-api/pkg/middleware/requestid"
	"github.com/pahal-edu/pahal-api/pkg/sms"
	"github.com/pahal-edu/pahal-api/pkg/storage"
)

// @title Pahal School Fee Ledger API
// @version 1.0.0
// @description Fee generation, payment reconciliation and reporting for Pahal School
// @BasePath /api/v1
// @schemes http
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	// The summary cache is an optimization; a missing Redis only costs
	// recomputation, so the server still starts without it.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, summary caching disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	userRepo := repository.NewUserRepository(db)
	parentRepo := repository.NewParentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	statementRepo := repository.NewStatementRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	performanceRepo := repository.NewPerformanceRepository(db)
	reconciliationRepo := repository.NewReconciliationRepository(db, parentRepo, feeRepo, paymentRepo)

	validate := validator.New()
	metricsService := service.NewMetricsService()

	var cacheService *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Summary.CacheTTL, logr, true)
	}

	authService := service.NewAuthService(userRepo, parentRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "pahal-api",
	})

	rates := ledger.BillingRates{
		Base:          cfg.Fees.BaseAmount,
		Transport:     cfg.Fees.TransportSurcharge,
		Accommodation: cfg.Fees.AccommodationSurcharge,
	}
	feeService := service.NewFeeService(feeRepo, studentRepo, paymentRepo, cacheService, metricsService, rates, cfg.Fees.Timezone, cfg.Summary.CacheTTL, validate, logr)
	paymentService := service.NewPaymentService(reconciliationRepo, paymentRepo, parentRepo, studentRepo, feeService, metricsService, validate, logr)
	parentService := service.NewParentService(parentRepo, studentRepo, feeRepo, paymentRepo, feeService, validate, logr)
	studentService := service.NewStudentService(studentRepo, parentRepo, feeService, validate, logr)
	attendanceService := service.NewAttendanceService(attendanceRepo, studentRepo, validate, logr)
	performanceService := service.NewPerformanceService(performanceRepo, studentRepo, validate, logr)

	var sender sms.Sender
	if cfg.Reminders.TwilioAccountSID != "" {
		twilio, err := sms.NewTwilioSender(sms.TwilioConfig{
			AccountSID: cfg.Reminders.TwilioAccountSID,
			AuthToken:  cfg.Reminders.TwilioAuthToken,
			FromNumber: cfg.Reminders.TwilioFromNumber,
		})
		if err != nil {
			logr.Warn("twilio misconfigured, reminders disabled", zap.Error(err))
		} else {
			sender = twilio
		}
	}
	reminderService := service.NewReminderService(feeRepo, paymentRepo, parentRepo, sender, metricsService, service.ReminderConfig{
		MinDueAmount:  cfg.Reminders.MinDueAmount,
		CountryPrefix: cfg.Reminders.CountryPrefix,
	}, logr)

	store, err := storage.NewLocalStorage(cfg.Statements.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare statement storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Statements.SignedURLSecret, cfg.Statements.SignedURLTTL)
	statementService := service.NewStatementService(statementRepo, feeRepo, parentRepo, store, signer, metricsService, service.StatementServiceConfig{
		Workers:    cfg.Statements.WorkerConcurrency,
		MaxRetries: cfg.Statements.WorkerRetries,
		ResultTTL:  cfg.Statements.ResultTTL,
	}, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	metricsHandler := handler.NewMetricsHandler(metricsService)
	r.GET("/metrics", metricsHandler.Scrape)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authService)
	parentHandler := handler.NewParentHandler(parentService)
	studentHandler := handler.NewStudentHandler(studentService)
	feeHandler := handler.NewFeeHandler(feeService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService)
	performanceHandler := handler.NewPerformanceHandler(performanceService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	reminderHandler := handler.NewReminderHandler(reminderService)
	statementHandler := handler.NewStatementHandler(statementService)

	adminOnly := middleware.RBAC(string(models.RoleAdmin))
	adminOrSelf := middleware.RBAC(string(models.RoleAdmin), middleware.SelfParam)

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		auth.POST("/login", authHandler.Login)
		auth.POST("/parent-login", authHandler.ParentLogin)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)

		// Download links carry their own HMAC token, no session needed.
		api.GET("/statements/download", statementHandler.Download)

		protected := api.Group("", middleware.JWT(authService))
		{
			parents := protected.Group("/parents")
			parents.GET("", adminOnly, parentHandler.List)
			parents.POST("", adminOnly, parentHandler.Create)
			parents.GET("/:parentId", adminOrSelf, parentHandler.Get)
			parents.GET("/:parentId/balance", adminOrSelf, parentHandler.Balance)
			parents.PUT("/:parentId", adminOnly, parentHandler.Update)
			parents.DELETE("/:parentId", adminOnly, parentHandler.Delete)

			students := protected.Group("/students", adminOnly)
			students.GET("", studentHandler.List)
			students.POST("", studentHandler.Create)
			students.GET("/:id", studentHandler.Get)
			students.PUT("/:id", studentHandler.Update)
			students.DELETE("/:id", studentHandler.Delete)

			fees := protected.Group("/fees")
			fees.GET("", adminOnly, feeHandler.List)
			fees.POST("", adminOnly, feeHandler.Add)
			fees.POST("/generate", adminOnly, feeHandler.Generate)
			fees.GET("/pending", adminOnly, feeHandler.ListPending)
			fees.GET("/summary", adminOnly, feeHandler.Summary)
			fees.GET("/parent/:parentId", adminOrSelf, feeHandler.ListByParent)
			fees.GET("/:id", adminOnly, feeHandler.Get)
			fees.PATCH("/:id/status", adminOnly, feeHandler.UpdateStatus)
			fees.DELETE("/:id", adminOnly, feeHandler.Delete)

			attendance := protected.Group("/attendance", adminOnly)
			attendance.POST("", attendanceHandler.Mark)
			attendance.GET("/date/:date", attendanceHandler.ByDate)
			attendance.GET("/student/:studentId", attendanceHandler.ByStudent)
			attendance.DELETE("/:id", attendanceHandler.Delete)

			performance := protected.Group("/performance", adminOnly)
			performance.POST("", performanceHandler.Record)
			performance.GET("", performanceHandler.List)
			performance.GET("/student/:studentId", performanceHandler.ByStudent)
			performance.PATCH("/:id", performanceHandler.Update)
			performance.DELETE("/:id", performanceHandler.Delete)

			payments := protected.Group("/payments")
			payments.GET("", adminOnly, paymentHandler.List)
			payments.POST("", adminOnly, paymentHandler.Record)
			payments.GET("/parent/:parentId", adminOrSelf, paymentHandler.ListByParent)
			payments.GET("/:id", adminOnly, paymentHandler.Get)
			// Receipt ownership is checked in the handler so parents can
			// pull their own receipts.
			payments.GET("/:id/receipt", paymentHandler.Receipt)
			payments.DELETE("/:id", adminOnly, paymentHandler.Delete)

			reminders := protected.Group("/reminders", adminOnly)
			reminders.POST("/run", reminderHandler.Run)
			reminders.POST("/parents/:parentId", reminderHandler.SendToParent)

			statements := protected.Group("/statements", adminOnly)
			statements.POST("", statementHandler.Request)
			statements.GET("/:id", statementHandler.Get)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	statementService.Start(ctx)

	sched := scheduler.New(feeService, reminderService, statementService, cfg.Generation, cfg.Reminders, cfg.Statements.CleanupInterval, logr)
	if err := sched.Start(); err != nil {
		logr.Fatal("failed to start scheduler", zap.Error(err))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	sched.Stop()
	statementService.Stop()
	logr.Info("goodbye")
}
