package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "schoolhub/api/swagger" // swagger docs
	"schoolhub/internal/cache"
	"schoolhub/internal/config"
	"schoolhub/internal/database"
	"schoolhub/internal/handler"
	"schoolhub/internal/logger"
	"schoolhub/internal/middleware"
	"schoolhub/internal/model"
	"schoolhub/internal/repository"
	"schoolhub/internal/service"
	"schoolhub/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           SchoolHub API
// @version         1.0
// @description     School management backend: roles, permissions, module visibility, exams, fees, recruitment and chat.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, dotenvLoaded := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "schoolhub-api")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	if !dotenvLoaded {
		log.Info("no configs/.env file found, using process environment")
	}

	secret, err := cfg.JWTKey()
	if err != nil {
		log.Fatal("invalid auth configuration", zap.Error(err))
	}

	db, err := database.NewConnection(cfg.DSN(), !cfg.IsRelease(), log)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	log.Info("connected to PostgreSQL")

	// Role grants cache: Redis when configured so every replica sees invalidations
	var grantsCache cache.Store = cache.NewMemory()
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis unreachable, falling back to in-memory grants cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			_ = redisClient.Close()
			redisClient = nil
		} else {
			grantsCache = cache.NewRedis(redisClient)
		}
		cancel()
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	wsHub := websocket.NewHub(log)
	go wsHub.Run(ctx)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	chatRepo := repository.NewChatRepository(db)
	statisticsRepo := repository.NewStatisticsRepository(db)
	revenueRepo := repository.NewRevenueRepository(db)

	examStore := repository.NewStore[model.Exam](db)
	questionStore := repository.NewStore[model.Question](db)
	categoryStore := repository.NewStore[model.FeeCategory](db)
	recruitmentStores := service.RecruitmentStores{
		Jobs:       repository.NewStore[model.JobOpening](db),
		Candidates: repository.NewStore[model.Candidate](db),
		Interviews: repository.NewStore[model.Interview](db),
		Feedback:   repository.NewStore[model.Feedback](db),
		Offers:     repository.NewStore[model.Offer](db),
	}

	accessService := service.NewAccessService(roleRepo, grantsCache, cfg.PermissionCacheTTL, log)
	roleService := service.NewRoleService(roleRepo, auditRepo, txManager, accessService, log)
	moduleService := service.NewModuleService(roleRepo, auditRepo, txManager, accessService, log)
	userService := service.NewUserService(userRepo, roleRepo, txManager, accessService, service.AuthConfig{
		Secret:     secret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	auditService := service.NewAuditService(auditRepo)
	examService := service.NewExamService(examStore)
	questionService := service.NewQuestionService(questionStore, examStore)
	feeService := service.NewFeeService(categoryStore, invoiceRepo, auditRepo, txManager, log)
	recruitmentService := service.NewRecruitmentService(recruitmentStores, auditRepo, txManager, log)
	chatService := service.NewChatService(chatRepo, userRepo, txManager, wsHub, log)
	statisticsService := service.NewStatisticsService(statisticsRepo)
	revenueService := service.NewRevenueService(revenueRepo)

	seedCtx, cancelSeed := context.WithTimeout(ctx, 30*time.Second)
	if err := roleService.SeedDefaultRoles(seedCtx); err != nil {
		log.Error("failed to seed default roles", zap.Error(err))
	}
	cancelSeed()

	auth := middleware.NewAuth(secret, accessService, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.IsRelease(), log)

	// Initialize Handlers
	handlers := []interface {
		RegisterRoutes(router *gin.RouterGroup)
	}{
		handler.NewUserHandler(userService, auth),
		handler.NewRoleHandler(roleService, moduleService, auth),
		handler.NewAuditHandler(auditService, auth),
		handler.NewExamHandler(examService, questionService, auth),
		handler.NewFeeHandler(feeService, auth),
		handler.NewRecruitmentHandler(recruitmentService, auth),
		handler.NewChatHandler(chatService, wsHub, secret, auth),
		handler.NewStatisticsHandler(statisticsService, revenueService, auth),
	}

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware(log))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	root := router.Group("")
	for _, h := range handlers {
		h.RegisterRoutes(root)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
	stop()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
