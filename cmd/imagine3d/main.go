// =============================================================================
// imagine3d 主入口
// =============================================================================
// 提示词 → 扩写 → 文生图 → 图生 3D → 审计记录
//
// 使用方法:
//
//	imagine3d                                  # 等同于 serve
//	imagine3d serve --config config.yaml       # 启动服务
//	imagine3d generate --prompt "a red cat"    # 单次运行并输出 JSON
//	imagine3d history --limit 20               # 查看最近的生成记录
//	imagine3d migrate up                       # 运行数据库迁移
//	imagine3d health                           # 健康检查
//	imagine3d version                          # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/imagine3d/config"
	"github.com/BaSui01/imagine3d/internal/telemetry"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	cmd, args := "serve", []string{}
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}
	// 直接以 flag 开头时视为 serve
	if len(cmd) > 0 && cmd[0] == '-' && cmd != "-h" && cmd != "--help" {
		cmd, args = "serve", os.Args[1:]
	}

	switch cmd {
	case "serve":
		runServe(args)
	case "generate":
		runGenerate(args)
	case "history":
		runHistory(args)
	case "migrate":
		runMigrate(args)
	case "health":
		runHealthCheck(args)
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	_ = fs.Parse(args)

	cfg := mustLoadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting imagine3d",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	ctx := context.Background()
	otelProviders, err := telemetry.Init(ctx, cfg.Telemetry, logger, telemetry.WithVersion(Version))
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	srv := NewServer(cfg, logger, otelProviders)
	if err := srv.Start(ctx); err != nil {
		logger.Error("Failed to start server", zap.Error(err))
		_ = srv.Shutdown()
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("imagine3d stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("imagine3d stopped")
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

// runHealthCheck 在进程内装配组件并执行与 /ready 相同的检查，
// 仅关键依赖失败时返回非零退出码
func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	_ = fs.Parse(args)

	cfg := mustLoadConfig(*configPath)
	logger := initLogger(config.LogConfig{Level: "error", Format: "json", OutputPaths: []string{"stderr"}})

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	status := a.health.Evaluate(ctx)
	for name, res := range status.Checks {
		line := fmt.Sprintf("  %-14s %s", name, res.Status)
		if res.Message != "" {
			line += " (" + res.Message + ")"
		}
		fmt.Println(line)
	}
	fmt.Println(status.Status)
	if status.Status == "unhealthy" {
		os.Exit(1)
	}
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("imagine3d %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`imagine3d - prompt to image to 3D model pipeline

Usage:
  imagine3d [command] [options]

Commands:
  serve     Start the HTTP server (default)
  generate  Run the pipeline once and print the response
  history   List recent generation records
  migrate   Database migration commands
  health    Check component health
  version   Show version information
  help      Show this help message

Common options:
  --config <path>   Path to configuration file (YAML)

Options for 'generate':
  --prompt <text>   Prompt to expand and generate from
  --caller <id>     Caller identity (default: pipeline.default_caller)

Options for 'history':
  --limit <n>       Number of records (default 20)
  --offset <n>      Records to skip

Examples:
  imagine3d serve --config /etc/imagine3d/config.yaml
  imagine3d generate --prompt "a small wooden boat"
  imagine3d history --limit 5
  imagine3d migrate up
  imagine3d health`)
}

// =============================================================================
// 🔧 配置与日志
// =============================================================================

func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func mustLoadConfig(path string) *config.Config {
	cfg, err := loadConfig(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	console := cfg.Format == "console"
	var encoderConfig zapcore.EncoderConfig
	if console {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      console,
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}
	if console {
		zapConfig.Encoding = "console"
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
