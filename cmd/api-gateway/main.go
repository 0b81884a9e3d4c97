package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/vidya-labs/school-console-api/api/swagger"
	"github.com/vidya-labs/school-console-api/internal/handler"
	"github.com/vidya-labs/school-console-api/internal/middleware"
	"github.com/vidya-labs/school-console-api/internal/models"
	"github.com/vidya-labs/school-console-api/internal/repository"
	"github.com/vidya-labs/school-console-api/internal/service"
	"github.com/vidya-labs/school-console-api/pkg/cache"
	"github.com/vidya-labs/school-console-api/pkg/config"
	"github.com/vidya-labs/school-console-api/pkg/database"
	"github.com/vidya-labs/school-console-api/pkg/export"
	"github.com/vidya-labs/school-console-api/pkg/logger"
	corsmiddleware "github.com/vidya-labs/school-console-api/pkg/middleware/cors"
	reqidmiddleware "github.com/vidya-labs/school-console-api/pkg/middleware/requestid"
	"github.com/vidya-labs/school-console-api/pkg/storage"
)

// @title School Console API
// @version 1.0.0
// @description School administration console: student directory, attendance and the fee ledger
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	var cacheRepo *repository.CacheRepository
	if cfg.Fees.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, cacheRepo != nil, metricsSvc, logr)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	wardRepo := repository.NewWardRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	catalogRepo := repository.NewFeeCatalogRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db, cfg.Fees.ReceiptPrefix)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "school-console-api",
	})
	classSvc := service.NewClassService(classRepo, validate, logr)
	wardSvc := service.NewWardService(wardRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, classRepo, wardRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, validate, logr)

	catalogSvc := service.NewFeeCatalogService(catalogRepo, catalogRepo, validate, logr)
	structureSvc := service.NewFeeStructureService(catalogRepo, validate, logr)
	ledgerSvc := service.NewLedgerService(ledgerRepo, ledgerRepo, catalogRepo, studentRepo, structureSvc, cacheSvc, service.LedgerOptions{
		DueDay:         cfg.Fees.DueDay,
		YearStartMonth: cfg.School.AcademicYearStartMonth,
		CacheTTL:       cfg.Fees.StatusCacheTTL,
	}, logr)
	paymentSvc := service.NewPaymentService(ledgerRepo, ledgerSvc, cacheSvc, metricsSvc, cfg.School.AcademicYearStartMonth, validate, logr)

	var receiptArchive *storage.ReceiptArchive
	if cfg.Fees.ReceiptArchiveDir != "" {
		receiptArchive, err = storage.NewReceiptArchive(cfg.Fees.ReceiptArchiveDir)
		if err != nil {
			logr.Sugar().Warnw("receipt archive unavailable", "error", err)
		}
	}
	exportSvc := service.NewExportService(ledgerSvc, export.NewCSVExporter(), export.NewReceiptRenderer(cfg.School.Name, cfg.School.Address), receiptArchive, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	classHandler := handler.NewClassHandler(classSvc)
	wardHandler := handler.NewWardHandler(wardSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	feeHandler := handler.NewFeeHandler(ledgerSvc, paymentSvc, exportSvc)
	feeAdminHandler := handler.NewFeeAdminHandler(catalogSvc, structureSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	students := protected.Group("/students")
	students.GET("", studentHandler.List)
	students.GET("/:id", studentHandler.Get)
	students.POST("", adminOnly, studentHandler.Admit)
	students.PUT("/:id", adminOnly, studentHandler.Update)
	students.PATCH("/:id/status", adminOnly, studentHandler.SetStatus)

	classes := protected.Group("/classes")
	classes.GET("", classHandler.List)
	classes.GET("/:id", classHandler.Get)
	classes.POST("", adminOnly, classHandler.Create)
	classes.PUT("/:id", adminOnly, classHandler.Update)
	classes.DELETE("/:id", adminOnly, classHandler.Deactivate)

	wards := protected.Group("/wards")
	wards.GET("", wardHandler.List)
	wards.GET("/:id", wardHandler.Get)
	wards.POST("", adminOnly, wardHandler.Create)
	wards.PUT("/:id", adminOnly, wardHandler.Update)

	attendance := protected.Group("/attendance")
	attendance.POST("", attendanceHandler.Mark)
	attendance.GET("/:classId", attendanceHandler.Sheet)
	attendance.GET("/summary/:studentId", attendanceHandler.Summary)

	fees := protected.Group("/fees")
	fees.GET("/status/:studentId", feeHandler.PeriodStatus)
	fees.GET("/details/:studentId", feeHandler.OutstandingDetail)
	fees.POST("/payments", feeHandler.ProcessPayment)
	fees.GET("/ledger/:studentId", feeHandler.History)
	fees.GET("/ledger/:studentId/export", feeHandler.ExportLedger)
	fees.GET("/receipts/:receiptNumber", feeHandler.Receipt)
	fees.GET("/receipts/:receiptNumber/pdf", feeHandler.ReceiptPDF)

	fees.GET("/heads", feeAdminHandler.ListFeeHeads)
	fees.GET("/heads/:id", feeAdminHandler.GetFeeHead)
	fees.POST("/heads", adminOnly, feeAdminHandler.CreateFeeHead)
	fees.PUT("/heads/:id", adminOnly, feeAdminHandler.UpdateFeeHead)
	fees.DELETE("/heads/:id", adminOnly, feeAdminHandler.DeactivateFeeHead)
	fees.GET("/structures", feeAdminHandler.ListStructures)
	fees.PUT("/structures", adminOnly, feeAdminHandler.UpsertStructure)
	fees.GET("/fine-rules", feeAdminHandler.ListFineRules)
	fees.POST("/fine-rules", adminOnly, feeAdminHandler.CreateFineRule)
	fees.DELETE("/fine-rules/:id", adminOnly, feeAdminHandler.DeactivateFineRule)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	logr.Info("server stopped", zap.String("addr", addr))
}
