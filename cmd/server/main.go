// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docuchat-go/internal/config"
	"docuchat-go/internal/handler"
	"docuchat-go/internal/jobs"
	"docuchat-go/internal/middleware"
	"docuchat-go/internal/model"
	"docuchat-go/internal/pipeline"
	"docuchat-go/internal/repository"
	"docuchat-go/internal/service"
	"docuchat-go/pkg/database"
	"docuchat-go/pkg/embedding"
	"docuchat-go/pkg/es"
	"docuchat-go/pkg/kafka"
	"docuchat-go/pkg/log"
	"docuchat-go/pkg/parser"
	"docuchat-go/pkg/reranker"
	"docuchat-go/pkg/storage"
	"docuchat-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := &config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、对象存储与索引
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := database.DB.AutoMigrate(
		&model.User{},
		&model.Document{},
		&model.Chunk{},
		&model.ProcessingJob{},
	); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Fatalf("es 初始化失败: %v", err)
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	docRepo := repository.NewDocumentRepository(database.DB)
	chunkRepo := repository.NewChunkRepository(database.DB)
	jobRepo := repository.NewJobRepository(database.DB)

	// 5. 初始化外部服务客户端与作业跟踪器
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	parserClient := parser.NewClient(cfg.Parser)
	rerankerClient := reranker.NewClient(cfg.Reranker)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	tracker := jobs.NewTracker(jobRepo, jobs.NewEventBus())

	// 6. 初始化 Service (依赖注入)
	userService := service.NewUserService(userRepo)
	quotaService := service.NewQuotaService(userRepo, docRepo)
	documentService := service.NewDocumentService(docRepo, quotaService, tracker, cfg)
	searchService := service.NewSearchService(embeddingClient, rerankerClient, docRepo, cfg)

	// 7. 初始化文档处理管道并启动后台 Kafka 消费者
	processor := pipeline.NewProcessor(
		parserClient,
		embeddingClient,
		pipeline.NewChunker(cfg.Chunking),
		tracker,
		docRepo,
		chunkRepo,
		cfg,
	)
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	authHandler := handler.NewAuthHandler(userService, jwtManager)
	quotaHandler := handler.NewQuotaHandler(quotaService)
	documentHandler := handler.NewDocumentHandler(documentService)
	searchHandler := handler.NewSearchHandler(searchService)
	jobHandler := handler.NewJobHandler(tracker, jobRepo)
	systemHandler := handler.NewSystemHandler(parserClient, rerankerClient)
	adminHandler := handler.NewAdminHandler(userService)

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
		}

		// Quota 路由组，需要认证
		quota := apiV1.Group("/quota")
		quota.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			quota.GET("/me", quotaHandler.Usage)
			quota.POST("/validate", quotaHandler.Validate)
			quota.GET("/statistics", middleware.AdminAuthMiddleware(), quotaHandler.Statistics)
		}

		// Document 路由组，需要认证
		documents := apiV1.Group("/documents")
		documents.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			documents.POST("", documentHandler.Upload)
			documents.GET("", documentHandler.List)
			documents.GET("/:id", documentHandler.Get)
			documents.DELETE("/:id", documentHandler.Delete)
			documents.GET("/:id/jobs", jobHandler.History)
		}

		// Job 路由组，需要认证；事件流为 WebSocket
		jobGroup := apiV1.Group("/jobs")
		jobGroup.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			jobGroup.GET("/events", jobHandler.Events)
			jobGroup.GET("/:id", jobHandler.Get)
		}

		// Search 路由组，需要认证
		search := apiV1.Group("/search")
		search.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			search.POST("/hybrid", searchHandler.Search)
		}

		// 依赖服务健康探测
		system := apiV1.Group("/system")
		{
			system.GET("/parser/health", systemHandler.ParserHealth)
			system.GET("/reranker/health", systemHandler.RerankerHealth)
		}

		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin := apiV1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtManager, userService), middleware.AdminAuthMiddleware())
		{
			admin.POST("/users", adminHandler.CreateUser)
			admin.GET("/users", adminHandler.ListUsers)
			admin.PUT("/users/:id/active", adminHandler.SetActive)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
