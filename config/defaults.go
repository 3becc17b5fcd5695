// =============================================================================
// 📦 imagine3d 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"path/filepath"
	"time"
)

// 默认的能力 ID 与调用方身份
const (
	DefaultImageCapability = "f0997a01-d6d3-a5fe-53d8-561300318557"
	DefaultModelCapability = "69543f29-4d41-4afc-7f29-3d51591f11eb"
	DefaultCaller          = "super-user"
	DefaultOutputDir       = "generated_outputs"
)

// DefaultSystemPrompt 扩写使用的系统指令
const DefaultSystemPrompt = "You are an expert creative assistant. Expand the following user idea into a vivid and detailed description suitable for an image generation model. Focus on visual details, artistic style, and composition. Make it about 2-3 sentences long."

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:      DefaultServerConfig(),
		Pipeline:    DefaultPipelineConfig(),
		Expander:    DefaultExpanderConfig(),
		Gateway:     DefaultGatewayConfig(),
		Database:    DefaultDatabaseConfig(),
		Redis:       DefaultRedisConfig(),
		Idempotency: DefaultIdempotencyConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    10 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
	}
}

// DefaultPipelineConfig 返回默认流水线配置，super-user 默认连接两个能力
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		OutputDir:            DefaultOutputDir,
		DefaultCaller:        DefaultCaller,
		ImageCapability:      DefaultImageCapability,
		ModelCapability:      DefaultModelCapability,
		DefaultModelFilename: "generated_model.obj",
		Users: map[string]UserConfig{
			DefaultCaller: {AppIDs: []string{DefaultImageCapability, DefaultModelCapability}},
		},
	}
}

// DefaultExpanderConfig 返回默认扩写配置（TinyLlama-Chat 经 TGI 提供）
func DefaultExpanderConfig() ExpanderConfig {
	return ExpanderConfig{
		Enabled:            true,
		Provider:           "tgi",
		BaseURL:            "http://localhost:8081",
		Model:              "TinyLlama/TinyLlama-1.1B-Chat-v1.0",
		Template:           "zephyr",
		SystemPrompt:       DefaultSystemPrompt,
		MaxNewTokens:       150,
		Temperature:        0.7,
		TopK:               50,
		TopP:               0.95,
		DoSample:           true,
		Timeout:            2 * time.Minute,
		HealthCheckOnStart: true,
	}
}

// DefaultGatewayConfig 返回默认能力网关配置
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		URLTemplate:  "https://{id}.node3.openfabric.network",
		Endpoints:    map[string]string{},
		CallTimeout:  5 * time.Minute,
		ProbeTimeout: 10 * time.Second,
		Flux: ProviderCapabilityConfig{
			BaseURL:      "https://api.bfl.ml",
			Model:        "flux-1.1-pro",
			Timeout:      120 * time.Second,
			PollInterval: 2 * time.Second,
		},
		Meshy: ProviderCapabilityConfig{
			BaseURL:      "https://api.meshy.ai/openapi/v1",
			Model:        "meshy-4",
			Timeout:      10 * time.Minute,
			PollInterval: 5 * time.Second,
		},
	}
}

// DefaultDatabaseConfig 返回默认数据库配置，审计库与产物放在同一目录
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "imagine3d",
		Name:            filepath.Join(DefaultOutputDir, "generation_memory.db"),
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:  false,
		Addr:     "localhost:6379",
		DB:       0,
		PoolSize: 10,
	}
}

// DefaultIdempotencyConfig 返回默认幂等配置
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:       24 * time.Hour,
		KeyPrefix: "imagine3d:idempotency:",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "imagine3d",
		SampleRate:   0.1,
	}
}
