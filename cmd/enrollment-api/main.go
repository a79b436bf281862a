package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/uniplan/enrollment-api/api/swagger"
	"github.com/uniplan/enrollment-api/internal/handler"
	"github.com/uniplan/enrollment-api/internal/middleware"
	"github.com/uniplan/enrollment-api/internal/models"
	"github.com/uniplan/enrollment-api/internal/repository"
	"github.com/uniplan/enrollment-api/internal/service"
	"github.com/uniplan/enrollment-api/pkg/cache"
	"github.com/uniplan/enrollment-api/pkg/config"
	"github.com/uniplan/enrollment-api/pkg/database"
	"github.com/uniplan/enrollment-api/pkg/logger"
	corsmiddleware "github.com/uniplan/enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/uniplan/enrollment-api/pkg/middleware/requestid"
)

// @title Enrollment API
// @version 1.0.0
// @description Course catalog, eligibility and enrollment service
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

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled)
	notifierSvc := service.NewNotifierService(cacheRepo, cfg.Notifications, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "enrollment-api",
	})
	subjectSvc := service.NewSubjectService(subjectRepo, notifierSvc, cacheSvc, validate, logr)
	catalogSvc := service.NewCatalogService(subjectRepo, historyRepo, cacheSvc, metricsSvc, logr)
	historySvc := service.NewHistoryService(historyRepo, subjectRepo, cacheSvc, validate, logr)
	selectionSvc := service.NewSelectionService(historyRepo, subjectRepo, cacheSvc, logr)

	notifierCtx, stopNotifier := context.WithCancel(context.Background())
	notifierSvc.Start(notifierCtx)
	defer func() {
		stopNotifier()
		notifierSvc.Stop()
	}()

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	catalogHandler := handler.NewCatalogHandler(catalogSvc)
	historyHandler := handler.NewHistoryHandler(historySvc)
	selectionHandler := handler.NewSelectionHandler(selectionSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	subjects := api.Group("/subjects", middleware.JWT(authSvc))
	{
		subjects.GET("", subjectHandler.List)
		subjects.GET("/plan", subjectHandler.Plan)
		subjects.GET("/plan/export", subjectHandler.ExportPlan)
		subjects.GET("/:id", subjectHandler.Get)

		admin := subjects.Group("", middleware.RequireRoles(models.RoleAdmin))
		{
			admin.POST("", subjectHandler.Create)
			admin.PUT("/:id", subjectHandler.Update)
			admin.DELETE("/:id", subjectHandler.Delete)
		}
	}

	catalog := api.Group("/catalog", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleStudent))
	{
		catalog.GET("", catalogHandler.Annotated)
		catalog.GET("/eligibility", catalogHandler.Eligibility)
		catalog.GET("/:id/check", catalogHandler.Check)
	}

	history := api.Group("/history", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleStudent))
	{
		history.GET("", historyHandler.View)
		history.POST("", historyHandler.Add)
		history.PATCH("/:id", historyHandler.UpdateStatus)
	}

	selection := api.Group("/selection", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleStudent))
	{
		selection.POST("/propose", selectionHandler.Propose)
		selection.POST("/confirm", selectionHandler.Confirm)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
