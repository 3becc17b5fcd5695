package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/imagine3d/api/handlers"
	"github.com/BaSui01/imagine3d/audit"
	"github.com/BaSui01/imagine3d/config"
	"github.com/BaSui01/imagine3d/expander"
	"github.com/BaSui01/imagine3d/gateway"
	"github.com/BaSui01/imagine3d/internal/database"
	"github.com/BaSui01/imagine3d/internal/idempotency"
	"github.com/BaSui01/imagine3d/internal/tlsutil"
	"github.com/BaSui01/imagine3d/llm/image"
	"github.com/BaSui01/imagine3d/llm/threed"
	"github.com/BaSui01/imagine3d/pipeline"
)

// =============================================================================
// 🧩 组件装配
// =============================================================================

// app 持有一次进程生命周期内的全部组件，serve、generate、history、health 共用
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	db        *database.PoolManager
	store     *audit.GormStore
	expander  pipeline.Expander
	connector *gateway.Connector
	registry  *config.UserRegistry
	pipeline  *pipeline.Pipeline
	health    *handlers.HealthHandler
}

// newApp 按配置装配组件。数据库不可用视为致命错误；
// 扩写模型不可用时流水线降级为使用原始提示词。
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...pipeline.Option) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: config.NewUserRegistry(cfg.Pipeline.Users),
	}

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN(), poolConfig(cfg.Database), logger)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	a.db = db
	a.store = audit.NewGormStore(db.DB(), logger)
	if err := a.store.EnsureSchema(ctx); err != nil {
		logger.Warn("failed to ensure audit schema at startup", zap.Error(err))
	}

	// 保持接口值为 nil，避免带类型的 nil 被当作可用
	if exp, err := expander.Load(ctx, cfg.Expander, logger); err == nil {
		a.expander = exp
	} else if errors.Is(err, expander.ErrDisabled) {
		logger.Info("prompt expander disabled")
	} else {
		logger.Error("prompt expander failed to initialize, original prompts will be used", zap.Error(err))
	}

	a.connector = newConnector(cfg.Gateway, logger)

	a.pipeline = pipeline.New(pipeline.Config{
		OutputDir:            cfg.Pipeline.OutputDir,
		ImageCapability:      cfg.Pipeline.ImageCapability,
		ModelCapability:      cfg.Pipeline.ModelCapability,
		DefaultModelFilename: cfg.Pipeline.DefaultModelFilename,
	}, a.expander, a.connector, a.store, logger, opts...)

	a.health = newHealthHandler(a, logger)
	return a, nil
}

// runConfig 返回调用方本次运行的配置快照
func (a *app) runConfig(caller string) pipeline.RunConfig {
	if caller == "" {
		caller = a.cfg.Pipeline.DefaultCaller
	}
	return pipeline.RunConfig{Caller: caller, AppIDs: a.registry.Resolve(caller)}
}

// Close 释放数据库连接
func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func poolConfig(cfg config.DatabaseConfig) database.PoolConfig {
	pc := database.DefaultPoolConfig()
	if cfg.MaxOpenConns > 0 {
		pc.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		pc.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pc.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	return pc
}

// newConnector 创建能力网关。配置了 API Key 的托管厂商以
// provider://flux 与 provider://meshy 形式暴露。
func newConnector(cfg config.GatewayConfig, logger *zap.Logger) *gateway.Connector {
	connector := gateway.NewConnector(gateway.Config{
		URLTemplate:  cfg.URLTemplate,
		Endpoints:    cfg.Endpoints,
		CallTimeout:  cfg.CallTimeout,
		ProbeTimeout: cfg.ProbeTimeout,
	}, logger)

	providers := gateway.NewProviderDialer(tlsutil.SecureHTTPClient(cfg.CallTimeout), "obj")
	if cfg.Flux.APIKey != "" {
		providers.RegisterImageProvider("flux", image.NewFluxProvider(image.FluxConfig{
			APIKey:       cfg.Flux.APIKey,
			BaseURL:      cfg.Flux.BaseURL,
			Model:        cfg.Flux.Model,
			Timeout:      cfg.Flux.Timeout,
			PollInterval: cfg.Flux.PollInterval,
		}))
		logger.Info("hosted image provider registered", zap.String("provider", "flux"))
	}
	if cfg.Meshy.APIKey != "" {
		providers.RegisterModelProvider("meshy", threed.NewMeshyProvider(threed.MeshyConfig{
			APIKey:       cfg.Meshy.APIKey,
			BaseURL:      cfg.Meshy.BaseURL,
			Model:        cfg.Meshy.Model,
			Timeout:      cfg.Meshy.Timeout,
			PollInterval: cfg.Meshy.PollInterval,
		}))
		logger.Info("hosted 3D provider registered", zap.String("provider", "meshy"))
	}
	connector.RegisterDialer(gateway.ProviderScheme, providers)
	return connector
}

// newHealthHandler 注册健康检查。数据库为关键依赖；
// 扩写模型与能力连接缺失时流水线仍可降级运行，只标记 degraded。
func newHealthHandler(a *app, logger *zap.Logger) *handlers.HealthHandler {
	h := handlers.NewHealthHandler(logger)
	h.RegisterCheck(handlers.NewCheckFunc("database", a.db.Ping))
	h.RegisterOptionalCheck(handlers.NewCheckFunc("expander", func(context.Context) error {
		if a.expander == nil {
			return errors.New("prompt expander unavailable")
		}
		return nil
	}))
	h.RegisterOptionalCheck(handlers.NewCheckFunc("capabilities", func(ctx context.Context) error {
		p := a.cfg.Pipeline
		gw := a.connector.Connect(ctx, []string{p.ImageCapability, p.ModelCapability})
		var missing []string
		for _, id := range []string{p.ImageCapability, p.ModelCapability} {
			if !gw.HasConnection(id) {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("capabilities not connected: %v", missing)
		}
		return nil
	}))
	return h
}

// newIdempotencyManager 启用 Redis 时使用 Redis，否则使用进程内存
func newIdempotencyManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (idempotency.Manager, func() error, error) {
	if !cfg.Redis.Enabled {
		m := idempotency.NewMemoryManager(logger)
		return m, m.Close, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
	}
	m := idempotency.NewRedisManager(client, cfg.Idempotency.KeyPrefix, logger)
	return m, func() error {
		return errors.Join(m.Close(), client.Close())
	}, nil
}
