package server

import (
	"context"
	"net/http"

	"catalog-hub/app/config"
	"catalog-hub/app/database"
	"catalog-hub/app/handler"
	"catalog-hub/app/logger"
	"catalog-hub/app/middleware"
	"catalog-hub/app/service"
	"catalog-hub/app/storage"

	"github.com/gin-gonic/gin"
)

// Server 表示 HTTP 服务器
type Server struct {
	Config         *config.Config
	Logger         *logger.Logger
	gin            *gin.Engine
	http           *http.Server
	productService *service.ProductService
}

// New 创建一个新的 Server 实例
func New(cfg *config.Config, log *logger.Logger) *Server {
	router := gin.Default()

	// 按配置选择对象存储实现
	var store storage.BlobStore
	if cfg.Storage.Mode == "http" {
		store = storage.NewHTTPBlobStore(cfg, log)
	} else {
		store = storage.NewLocalBlobStore(cfg, log)
	}

	s := &Server{
		gin: router,
		http: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
		Config:         cfg,
		Logger:         log,
		productService: service.NewProductService(database.GetDB(), store, log),
	}

	// 设置路由
	s.setupRoutes()

	return s
}

// Start 启动服务器
func (s *Server) Start() error {
	s.Logger.Infof("在端口 %s 启动服务器", s.http.Addr)
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// 停止商品服务的后台任务
	s.productService.Stop()

	// 关闭数据库连接
	if err := database.Close(); err != nil {
		s.Logger.Errorf("关闭数据库连接失败: %v", err)
	}
	return s.http.Shutdown(ctx)
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes() {
	// 创建处理器实例
	authHandler := handler.NewAuthHandler(s.Config)
	productHandler := handler.NewProductHandler(s.productService, s.Logger)
	uploadHandler := handler.NewUploadHandler(s.productService, s.Logger)
	categoryHandler := handler.NewCategoryHandler(s.Logger)

	// 本地存储模式下直接托管资源文件
	if s.Config.Storage.Mode == "local" {
		s.gin.Static(s.Config.Storage.PublicURL, s.Config.Storage.LocalDir)
	}

	// API路由组
	api := s.gin.Group("/api")

	// 认证相关路由（不需要JWT验证）
	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)
	}

	// 买家侧只读路由
	api.GET("/products", productHandler.List)
	api.GET("/products/:id", productHandler.Get)
	api.GET("/categories", categoryHandler.List)

	// 需要JWT验证的管理路由
	protected := api.Group("/")
	protected.Use(middleware.JWTAuth(s.Config))
	{
		// 用户相关
		protected.GET("/me", authHandler.Me)

		// 商品管理
		protected.POST("/products", productHandler.Create)
		protected.PUT("/products/:id", productHandler.Update)
		protected.DELETE("/products/:id", productHandler.Delete)

		// 表单上传会话
		uploads := protected.Group("/uploads")
		{
			uploads.POST("/", uploadHandler.Admit)
			uploads.GET("/status", uploadHandler.Status)
			uploads.DELETE("/session", uploadHandler.Discard)
			uploads.DELETE("/:taskId", uploadHandler.Remove)
		}

		// 分类管理
		protected.POST("/categories", categoryHandler.Create)
	}
}
