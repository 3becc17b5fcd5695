package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/BaSui01/imagine3d/internal/migration"
)

// =============================================================================
// Database Migration Commands
// =============================================================================

// migrateAliases 命令行别名到 migration.CLI 动作
var migrateAliases = map[string]string{
	"reset": "down-all",
}

// actionsWithValue 需要一个位置参数的动作
var actionsWithValue = map[string]bool{
	"goto":  true,
	"force": true,
	"steps": true,
}

// runMigrate handles the migrate command and its subcommands
func runMigrate(args []string) {
	if len(args) < 1 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printMigrateUsage()
		if len(args) < 1 {
			os.Exit(1)
		}
		return
	}

	cliArgs, flagArgs, err := splitMigrateArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		printMigrateUsage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet("migrate "+cliArgs[0], flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (sqlite, postgres, mysql)")
	dbURL := fs.String("db-url", "", "Database connection URL")
	_ = fs.Parse(flagArgs)

	migrator, err := createMigrator(*configPath, *dbType, *dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	if err := migration.NewCLI(migrator).Run(context.Background(), cliArgs); err != nil {
		fmt.Fprintf(os.Stderr, "Migration %s failed: %v\n", cliArgs[0], err)
		os.Exit(1)
	}
}

// splitMigrateArgs 拆分出动作（含位置参数）与其余 flag
func splitMigrateArgs(args []string) (cliArgs, flagArgs []string, err error) {
	action := strings.ToLower(args[0])
	if alias, ok := migrateAliases[action]; ok {
		action = alias
	}
	cliArgs = []string{action}
	rest := args[1:]

	if actionsWithValue[action] {
		if len(rest) == 0 || strings.HasPrefix(rest[0], "-") {
			return nil, nil, fmt.Errorf("usage: imagine3d migrate %s <version>", args[0])
		}
		cliArgs = append(cliArgs, rest[0])
		rest = rest[1:]
	}
	return cliArgs, rest, nil
}

// createMigrator 优先使用显式的 --db-type/--db-url，否则读取配置文件
func createMigrator(configPath, dbType, dbURL string) (*migration.DefaultMigrator, error) {
	if dbType != "" && dbURL != "" {
		return migration.NewMigratorFromDSN(dbType, dbURL)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if dbType != "" {
		cfg.Database.Driver = dbType
	}
	return migration.NewMigratorFromDatabaseConfig(cfg.Database)
}

func printMigrateUsage() {
	fmt.Println(`Database Migration Commands

Usage:
  imagine3d migrate <subcommand> [options]

Subcommands:
  up          Apply all pending migrations
  down        Rollback the last migration
  status      Show migration status
  version     Show current migration version
  info        Show migration summary
  goto <v>    Migrate to a specific version
  steps <n>   Apply (n > 0) or rollback (n < 0) n migrations
  force <v>   Force set migration version (use with caution)
  reset       Rollback all migrations
  help        Show this help message

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: sqlite, postgres, mysql (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  imagine3d migrate up
  imagine3d migrate status --config /etc/imagine3d/config.yaml
  imagine3d migrate goto 1
  imagine3d migrate reset --db-type sqlite --db-url generated_outputs/generation_memory.db`)
}
