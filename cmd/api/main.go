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

	_ "github.com/boardinghub/boardinghub-api/api/swagger"
	"github.com/boardinghub/boardinghub-api/internal/handler"
	"github.com/boardinghub/boardinghub-api/internal/middleware"
	"github.com/boardinghub/boardinghub-api/internal/models"
	"github.com/boardinghub/boardinghub-api/internal/repository"
	"github.com/boardinghub/boardinghub-api/internal/service"
	"github.com/boardinghub/boardinghub-api/pkg/cache"
	"github.com/boardinghub/boardinghub-api/pkg/config"
	"github.com/boardinghub/boardinghub-api/pkg/database"
	"github.com/boardinghub/boardinghub-api/pkg/jobs"
	"github.com/boardinghub/boardinghub-api/pkg/logger"
	"github.com/boardinghub/boardinghub-api/pkg/mailer"
	corsmiddleware "github.com/boardinghub/boardinghub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/boardinghub/boardinghub-api/pkg/middleware/requestid"
	"github.com/boardinghub/boardinghub-api/pkg/storage"
)

// @title Boarding Hub API
// @version 1.0.0
// @description Multi-tenant boarding house management backend
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

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

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	surveyRepo := repository.NewSurveyRepository(db)
	propertyRepo := repository.NewPropertyRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	trashRepo := repository.NewTrashRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	postRepo := repository.NewPostRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	smtpMailer := mailer.NewSMTP(cfg.Mail, logr)
	mailSvc := mailer.NewQueued(smtpMailer, jobs.QueueConfig{
		Workers: cfg.Mail.Workers,
		Logger:  logr,
	})
	mailSvc.Start(ctx)
	defer mailSvc.Stop()

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, studentRepo, propertyRepo, mailSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		ResetCodeTTL:       cfg.Reset.CodeTTL,
		ResetMaxAttempts:   cfg.Reset.MaxAttempts,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, propertyRepo, validate, logr)
	schoolSvc := service.NewSchoolService(schoolRepo, validate, logr)
	surveySvc := service.NewSurveyService(surveyRepo, schoolRepo, validate, logr)
	registrationSvc := service.NewRegistrationService(userRepo, studentRepo, surveyRepo, schoolRepo, propertyRepo, mailSvc, logr)
	propertySvc := service.NewPropertyService(propertyRepo, userRepo, validate, logr)
	roomSvc := service.NewRoomService(roomRepo, propertyRepo, validate, logr)
	trashSvc := service.NewTrashService(trashRepo, userRepo, studentRepo, propertyRepo, surveyRepo, cfg.Trash.RetentionDays, logr)
	messagingSvc := service.NewMessagingService(conversationRepo, userRepo, validate, logr)
	feedSvc := service.NewFeedService(postRepo, cacheRepo, validate, logr, service.FeedConfig{
		CacheTTL:        cfg.Feed.CacheTTL,
		FreshWindow:     time.Duration(cfg.Feed.FreshWindowHrs) * time.Hour,
		DefaultPageSize: cfg.Feed.DefaultPageSize,
	})

	var exportSvc *service.ExportService
	var exportFiles *storage.LocalStorage
	var exportSigner *storage.SignedURLSigner
	if cfg.Exports.Enabled {
		exportFiles, err = storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		exportSigner = storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

		exportQueue := jobs.NewQueue("survey_export", func(ctx context.Context, job jobs.Job) error {
			return exportSvc.Handle(ctx, job)
		}, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportSvc = service.NewExportService(surveyRepo, exportQueue, exportFiles, exportSigner, logr)
		exportQueue.Start(ctx)
		defer exportQueue.Stop()

		go exportCleanupLoop(ctx, logr, exportFiles, cfg.Exports.CleanupInterval, cfg.Exports.SignedURLTTL)
	}

	go trashPurgeLoop(ctx, logr, trashSvc, metricsSvc, cfg.Trash.PurgeInterval)

	deps := routerDeps{
		cfg:          cfg,
		logger:       logr,
		auth:         authSvc,
		users:        userSvc,
		students:     studentSvc,
		schools:      schoolSvc,
		surveys:      surveySvc,
		registration: registrationSvc,
		properties:   propertySvc,
		rooms:        roomSvc,
		trash:        trashSvc,
		messaging:    messagingSvc,
		feed:         feedSvc,
		exports:      exportSvc,
		exportFiles:  exportFiles,
		exportSigner: exportSigner,
		metrics:      metricsSvc,
		userRepo:     userRepo,
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           buildRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// trashPurgeLoop hard-deletes trash entries past their retention deadline.
func trashPurgeLoop(ctx context.Context, logr *zap.Logger, trashSvc *service.TrashService, metricsSvc *service.MetricsService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := trashSvc.PurgeExpired(ctx)
			if err != nil {
				logr.Warn("trash purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				metricsSvc.CountPurged(n)
				logr.Info("trash purged", zap.Int("entries", n))
			}
		}
	}
}

func exportCleanupLoop(ctx context.Context, logr *zap.Logger, files *storage.LocalStorage, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := files.CleanupOlderThan(maxAge); err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
			}
		}
	}
}

type routerDeps struct {
	cfg          *config.Config
	logger       *zap.Logger
	auth         *service.AuthService
	users        *service.UserService
	students     *service.StudentService
	schools      *service.SchoolService
	surveys      *service.SurveyService
	registration *service.RegistrationService
	properties   *service.PropertyService
	rooms        *service.RoomService
	trash        *service.TrashService
	messaging    *service.MessagingService
	feed         *service.FeedService
	exports      *service.ExportService
	exportFiles  *storage.LocalStorage
	exportSigner *storage.SignedURLSigner
	metrics      *service.MetricsService
	userRepo     *repository.UserRepository
}

// countOnSuccess bumps a domain counter after a 2xx/3xx response.
func countOnSuccess(fn func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Writer.Status() < 400 {
			fn()
		}
	}
}

func buildRouter(deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.logger))
	r.Use(corsmiddleware.New(deps.cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))
	r.Use(middleware.WithResponseMeta())

	authHandler := handler.NewAuthHandler(deps.auth)
	userHandler := handler.NewUserHandler(deps.users, deps.trash)
	studentHandler := handler.NewStudentHandler(deps.students, deps.trash)
	schoolHandler := handler.NewSchoolHandler(deps.schools)
	surveyHandler := handler.NewSurveyHandler(deps.surveys, deps.trash)
	registrationHandler := handler.NewRegistrationHandler(deps.surveys, deps.registration, deps.trash)
	propertyHandler := handler.NewPropertyHandler(deps.properties, deps.trash)
	roomHandler := handler.NewRoomHandler(deps.rooms)
	trashHandler := handler.NewTrashHandler(deps.trash)
	conversationHandler := handler.NewConversationHandler(deps.messaging)
	feedHandler := handler.NewFeedHandler(deps.feed)
	metricsHandler := handler.NewMetricsHandler(deps.metrics)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if deps.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(deps.cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/verify-reset-code", authHandler.VerifyResetCode)
		auth.POST("/reset-password", authHandler.CompleteReset)

		auth.POST("/logout", middleware.JWT(deps.auth), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(deps.auth), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(deps.auth), authHandler.Me)
	}

	// The survey take flow needs no account.
	api.GET("/survey/:code", middleware.OptionalJWT(deps.auth), surveyHandler.GetPublic)
	api.POST("/survey/:code/submit", middleware.OptionalJWT(deps.auth), countOnSuccess(deps.metrics.CountResponse), surveyHandler.Submit)
	api.GET("/feed", feedHandler.Get)

	secured := api.Group("", middleware.JWT(deps.auth))

	users := secured.Group("/users")
	{
		users.GET("", middleware.RequireRoles(models.RoleSchoolAdmin), userHandler.List)
		users.PUT("/me", userHandler.UpdateProfile)
		users.GET("/:id", middleware.RBAC(string(models.RoleSchoolAdmin), "SELF"), userHandler.Get)
		users.POST("/:id/deactivate", middleware.RequireRoles(models.RoleSchoolAdmin), userHandler.Deactivate)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleSchoolAdmin), userHandler.Delete)
	}

	students := secured.Group("/students")
	{
		students.GET("", middleware.RequireRoles(models.RoleSchoolAdmin), studentHandler.List)
		students.GET("/me", middleware.RequireRoles(models.RoleStudent), studentHandler.Me)
		students.GET("/:id", middleware.RequireRoles(models.RoleSchoolAdmin), studentHandler.Get)
		students.PUT("/:id", middleware.RequireRoles(models.RoleSchoolAdmin), studentHandler.Update)
		students.DELETE("/:id", middleware.RequireRoles(models.RoleSchoolAdmin), studentHandler.Delete)
		students.GET("/:id/assignments", middleware.RequireRoles(models.RoleSchoolAdmin), studentHandler.ListAssignments)
		students.DELETE("/:id/assignments/:propertyId", middleware.RequireRoles(models.RoleSchoolAdmin), studentHandler.EndAssignment)
	}

	schools := secured.Group("/schools")
	{
		schools.GET("", schoolHandler.List)
		schools.GET("/:id", schoolHandler.Get)
		schools.POST("", middleware.RequireRoles(models.RoleSchoolAdmin), schoolHandler.Create)
		schools.PUT("/:id", middleware.RequireRoles(models.RoleSchoolAdmin), schoolHandler.Update)
		schools.GET("/:id/departments", schoolHandler.ListDepartments)
		schools.POST("/:id/departments", middleware.RequireRoles(models.RoleSchoolAdmin), schoolHandler.CreateDepartment)
	}
	secured.PUT("/departments/:id", middleware.RequireRoles(models.RoleSchoolAdmin), schoolHandler.UpdateDepartment)
	secured.GET("/departments/:id/programs", schoolHandler.ListPrograms)
	secured.POST("/departments/:id/programs", middleware.RequireRoles(models.RoleSchoolAdmin), schoolHandler.CreateProgram)
	secured.PUT("/programs/:id", middleware.RequireRoles(models.RoleSchoolAdmin), schoolHandler.UpdateProgram)

	surveys := secured.Group("/surveys", middleware.RequireRoles(models.RoleSchoolAdmin))
	{
		surveys.GET("", surveyHandler.List)
		surveys.POST("", surveyHandler.Create)
		surveys.GET("/:id", surveyHandler.Get)
		surveys.PUT("/:id", surveyHandler.Update)
		surveys.POST("/:id/activate", surveyHandler.Activate)
		surveys.POST("/:id/close", surveyHandler.Close)
		surveys.DELETE("/:id", middleware.Audit(deps.userRepo, models.AuditActionTrashDelete, "survey"), surveyHandler.Delete)
		surveys.POST("/:id/sections", surveyHandler.AddSection)
		surveys.GET("/:id/responses", registrationHandler.ListResponses)
		if deps.exports != nil {
			exportHandler := handler.NewExportHandler(deps.exports, deps.exportFiles, deps.exportSigner)
			surveys.POST("/:id/export", exportHandler.Request)
			secured.GET("/exports/:id", middleware.RequireRoles(models.RoleSchoolAdmin), exportHandler.Status)
			secured.GET("/exports/:id/link", middleware.RequireRoles(models.RoleSchoolAdmin), exportHandler.Link)
			api.GET("/exports/download", exportHandler.Download)
		}
	}
	secured.PUT("/sections/:id", middleware.RequireRoles(models.RoleSchoolAdmin), surveyHandler.UpdateSection)
	secured.DELETE("/sections/:id", middleware.RequireRoles(models.RoleSchoolAdmin), surveyHandler.RemoveSection)
	secured.POST("/sections/:id/questions", middleware.RequireRoles(models.RoleSchoolAdmin), surveyHandler.AddQuestion)
	secured.PUT("/questions/:id", middleware.RequireRoles(models.RoleSchoolAdmin), surveyHandler.UpdateQuestion)
	secured.DELETE("/questions/:id", middleware.RequireRoles(models.RoleSchoolAdmin), surveyHandler.RemoveQuestion)

	responses := secured.Group("/responses", middleware.RequireRoles(models.RoleSchoolAdmin))
	{
		responses.GET("/:id", registrationHandler.GetResponse)
		responses.POST("/:id/approve",
			middleware.Audit(deps.userRepo, models.AuditActionStudentRegister, "survey_response"),
			countOnSuccess(deps.metrics.CountRegistration),
			registrationHandler.Approve)
		responses.POST("/:id/reject", registrationHandler.Reject)
		responses.DELETE("/:id", registrationHandler.DeleteResponse)
	}

	properties := secured.Group("/properties")
	{
		properties.GET("", propertyHandler.List)
		properties.GET("/:id", propertyHandler.Get)
		properties.POST("", middleware.RequireRoles(models.RolePropertyOwner), propertyHandler.Create)
		properties.PUT("/:id", middleware.RequireRoles(models.RolePropertyOwner, models.RoleSchoolAdmin), propertyHandler.Update)
		properties.POST("/:id/verify", middleware.RequireRoles(models.RoleSchoolAdmin), middleware.Audit(deps.userRepo, models.AuditActionPropertyVerify, "property"), propertyHandler.Verify)
		properties.POST("/:id/reject", middleware.RequireRoles(models.RoleSchoolAdmin), propertyHandler.Reject)
		properties.POST("/:id/suspend", middleware.RequireRoles(models.RoleSchoolAdmin), propertyHandler.Suspend)
		properties.DELETE("/:id", middleware.RequireRoles(models.RoleSchoolAdmin), propertyHandler.Delete)
		properties.GET("/:id/rooms", roomHandler.List)
		properties.POST("/:id/rooms", middleware.RequireRoles(models.RolePropertyOwner, models.RoleSchoolAdmin), roomHandler.Create)
	}

	rooms := secured.Group("/rooms", middleware.RequireRoles(models.RolePropertyOwner, models.RoleSchoolAdmin))
	{
		rooms.PUT("/:id", roomHandler.Update)
		rooms.DELETE("/:id", roomHandler.Trash)
		rooms.POST("/:id/restore", roomHandler.Restore)
		rooms.POST("/:id/images", roomHandler.AddImage)
		rooms.DELETE("/:id/images/:imageId", roomHandler.RemoveImage)
	}

	trash := secured.Group("/trash", middleware.RequireRoles(models.RoleSchoolAdmin))
	{
		trash.GET("", trashHandler.List)
		trash.POST("/:id/restore", middleware.Audit(deps.userRepo, models.AuditActionTrashRestore, "trash"), trashHandler.Restore)
		trash.POST("/restore-all", trashHandler.RestoreAll)
		trash.DELETE("/:id", middleware.Audit(deps.userRepo, models.AuditActionTrashPurge, "trash"), trashHandler.Purge)
		trash.DELETE("", trashHandler.PurgeAll)
	}

	secured.GET("/boarding-key/:key", roomHandler.LookupBoardingKey)

	secured.POST("/messages", countOnSuccess(deps.metrics.CountMessage), conversationHandler.Send)
	secured.GET("/messages/unread-count", conversationHandler.UnreadCount)
	secured.DELETE("/messages/:id", conversationHandler.DeleteMessage)
	secured.GET("/conversations", conversationHandler.List)
	secured.GET("/conversations/:id/messages", conversationHandler.Messages)

	secured.POST("/feed/posts", feedHandler.Create)
	secured.PUT("/feed/posts/:id", feedHandler.Update)
	secured.DELETE("/feed/posts/:id", feedHandler.Delete)
	secured.GET("/feed/posts/:id/comments", feedHandler.ListComments)
	secured.POST("/feed/posts/:id/comments", feedHandler.AddComment)
	secured.POST("/feed/posts/:id/like", feedHandler.ToggleLike)

	secured.GET("/metrics/snapshot", middleware.RequireRoles(models.RoleSchoolAdmin), metricsHandler.Snapshot)

	return r
}
