package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/imagine3d/api/handlers"
	"github.com/BaSui01/imagine3d/config"
	"github.com/BaSui01/imagine3d/internal/idempotency"
	"github.com/BaSui01/imagine3d/internal/metrics"
	"github.com/BaSui01/imagine3d/internal/server"
	"github.com/BaSui01/imagine3d/internal/telemetry"
	"github.com/BaSui01/imagine3d/pipeline"
)

// dbStatsInterval 连接池指标采集间隔
const dbStatsInterval = 15 * time.Second

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 imagine3d 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	app       *app
	telemetry *telemetry.Providers

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// Handlers
	healthHandler     *handlers.HealthHandler
	generationHandler *handlers.GenerationHandler
	userHandler       *handlers.UserConfigHandler

	metricsCollector *metrics.Collector
	idempotency      idempotency.Manager
	closeIdempotency func() error

	// 后台任务生命周期（限流清理、连接池指标）
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otel *telemetry.Providers) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		telemetry: otel,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 装配组件并启动 HTTP 与 Metrics 服务器
func (s *Server) Start(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// 1. 指标收集器，同时作为流水线的观察者
	s.metricsCollector = metrics.NewCollector("imagine3d", s.logger)

	// 2. 组件
	a, err := newApp(ctx, s.cfg, s.logger, pipeline.WithObserver(s.metricsCollector))
	if err != nil {
		return err
	}
	s.app = a

	// 3. 幂等缓存
	s.idempotency, s.closeIdempotency, err = newIdempotencyManager(ctx, s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("failed to init idempotency store: %w", err)
	}

	// 4. Handlers
	s.initHandlers()

	// 5. HTTP 服务器
	if err := s.startHTTPServer(bgCtx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 6. Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.wg.Add(1)
	go s.collectDBStats(bgCtx)

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("output_dir", s.cfg.Pipeline.OutputDir),
		zap.Bool("expander_available", s.app.expander != nil),
		zap.Bool("telemetry_enabled", s.telemetry.Enabled()),
	)
	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

func (s *Server) initHandlers() {
	s.healthHandler = s.app.health
	s.generationHandler = handlers.NewGenerationHandler(
		s.app.pipeline,
		s.app.store,
		s.app.registry,
		handlers.GenerationOptions{
			DefaultCaller:  s.cfg.Pipeline.DefaultCaller,
			Idempotency:    s.idempotency,
			IdempotencyTTL: s.cfg.Idempotency.TTL,
			Recorder:       s.metricsCollector,
		},
		s.logger,
	)
	s.userHandler = handlers.NewUserConfigHandler(s.app.registry, s.logger)
	s.logger.Info("Handlers initialized")
}

// routes 注册全部路由
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// 健康检查与版本
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// 生成与历史
	mux.HandleFunc("POST /api/v1/generations", s.generationHandler.HandleCreate)
	mux.HandleFunc("GET /api/v1/generations", s.generationHandler.HandleList)
	mux.HandleFunc("GET /api/v1/generations/{id}", s.generationHandler.HandleGet)

	// 调用方配置
	mux.HandleFunc("GET /api/v1/users/{id}/config", s.userHandler.HandleGet)
	mux.HandleFunc("PUT /api/v1/users/{id}/config", s.userHandler.HandlePut)

	// 产物下载（只读）
	mux.Handle("GET /outputs/", http.StripPrefix("/outputs/",
		http.FileServer(http.Dir(s.cfg.Pipeline.OutputDir))))

	return mux
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

func (s *Server) startHTTPServer(ctx context.Context) error {
	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version"}
	handler := Chain(s.routes(),
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
		APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.cfg.Server.AllowQueryAPIKey, s.logger),
		JWTAuth(s.cfg.Server.JWT, skipAuthPaths, s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
	)

	s.httpManager = server.NewManager("http", handler, server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)

	return s.httpManager.Start()
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.metricsManager = server.NewManager("metrics", mux, server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.ReadTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)

	return s.metricsManager.Start()
}

// collectDBStats 定期把连接池状态写入指标
func (s *Server) collectDBStats(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()

	driver := s.app.db.Driver()
	for {
		s.metricsCollector.RecordDBStats(driver, s.app.db.Stats())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// Run 阻塞直到收到信号或服务器出错，然后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	err := server.WaitForShutdown(ctx, s.logger, s.httpManager, s.metricsManager)
	return errors.Join(err, s.Shutdown())
}

// Shutdown 释放后台任务与组件
func (s *Server) Shutdown() error {
	s.logger.Info("Starting graceful shutdown...")

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	var errs []error
	if s.closeIdempotency != nil {
		if err := s.closeIdempotency(); err != nil {
			errs = append(errs, fmt.Errorf("idempotency store: %w", err))
		}
	}
	if s.app != nil {
		if err := s.app.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if s.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := s.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
	return errors.Join(errs...)
}
