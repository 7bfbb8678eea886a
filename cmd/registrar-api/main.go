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

	_ "github.com/campusregistry/registrar-api/api/swagger"
	"github.com/campusregistry/registrar-api/internal/handler"
	"github.com/campusregistry/registrar-api/internal/middleware"
	"github.com/campusregistry/registrar-api/internal/repository"
	"github.com/campusregistry/registrar-api/internal/service"
	"github.com/campusregistry/registrar-api/pkg/cache"
	"github.com/campusregistry/registrar-api/pkg/config"
	"github.com/campusregistry/registrar-api/pkg/database"
	"github.com/campusregistry/registrar-api/pkg/jobs"
	"github.com/campusregistry/registrar-api/pkg/logger"
	corsmiddleware "github.com/campusregistry/registrar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusregistry/registrar-api/pkg/middleware/requestid"
	"github.com/campusregistry/registrar-api/pkg/storage"
)

// @title Campus Registry Registrar API
// @version 1.0.0
// @description Academic records backend: calendar, catalog, enrollment, grading and registrar services
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	documentStore, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	documentSigner := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	calendarRepo := repository.NewCalendarRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	offeringRepo := repository.NewOfferingRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db, offeringRepo)
	gradeRepo := repository.NewGradeRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	eventRepo := repository.NewEventRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	documentRepo := repository.NewDocumentRequestRepository(db)

	// Services.
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "registrar-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	calendarSvc := service.NewCalendarService(calendarRepo, validate, logr)
	departmentSvc := service.NewDepartmentService(departmentRepo, facultyRepo, validate, logr)
	facultySvc := service.NewFacultyService(facultyRepo, userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, userRepo, uploadStore, validate, logr)

	courseSvc := service.NewCourseService(courseRepo, nil, cfg.Catalog.CacheTTL, validate, logr)
	if cfg.Catalog.CacheEnabled {
		courseSvc = service.NewCourseService(courseRepo, cacheRepo, cfg.Catalog.CacheTTL, validate, logr)
	}

	offeringSvc := service.NewOfferingService(offeringRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, offeringRepo, calendarRepo, userRepo, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, enrollmentRepo, validate, logr)
	evaluationSvc := service.NewEvaluationService(evaluationRepo, enrollmentRepo, validate, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, logr)
	eventSvc := service.NewEventService(eventRepo, studentRepo, validate, logr)
	feedbackSvc := service.NewFeedbackService(feedbackRepo, studentRepo, validate, logr)
	documentSvc := service.NewDocumentService(documentRepo, studentRepo, documentStore, documentSigner, notificationSvc, validate, logr)
	metricsSvc := service.NewMetricsService()

	// Announcement fan-out runs on an in-process queue so posting never
	// blocks on recipient resolution.
	announcementSvc := service.NewAnnouncementService(announcementRepo, userRepo, notificationRepo, nil, validate, logr)
	notifyQueue := jobs.NewQueue("notifications", announcementSvc.HandleFanoutJob, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	announcementSvc = service.NewAnnouncementService(announcementRepo, userRepo, notificationRepo, notifyQueue, validate, logr)
	notifyQueue.Start(ctx)
	defer notifyQueue.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	handlers := handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Users:         handler.NewUserHandler(userSvc),
		Calendar:      handler.NewCalendarHandler(calendarSvc),
		Departments:   handler.NewDepartmentHandler(departmentSvc),
		Faculty:       handler.NewFacultyHandler(facultySvc),
		Students:      handler.NewStudentHandler(studentSvc),
		Courses:       handler.NewCourseHandler(courseSvc),
		Offerings:     handler.NewOfferingHandler(offeringSvc),
		Enrollments:   handler.NewEnrollmentHandler(enrollmentSvc, metricsSvc),
		Grades:        handler.NewGradeHandler(gradeSvc),
		Evaluations:   handler.NewEvaluationHandler(evaluationSvc),
		Announcements: handler.NewAnnouncementHandler(announcementSvc),
		Events:        handler.NewEventHandler(eventSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Feedback:      handler.NewFeedbackHandler(feedbackSvc),
		Documents:     handler.NewDocumentHandler(documentSvc),
		Metrics:       handler.NewMetricsHandler(metricsSvc),
	}

	auditTrail := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(userRepo, action, resource)
	}
	handler.RegisterRoutes(r, cfg.APIPrefix, handlers, authSvc, auditTrail)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
