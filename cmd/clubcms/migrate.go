package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/BaSui01/clubcms/config"
	"github.com/BaSui01/clubcms/internal/migration"
)

// =============================================================================
// 🗃️ 数据库迁移命令
// =============================================================================

// migrateAction 迁移子命令的执行体
type migrateAction func(ctx context.Context, cli *migration.CLI, args []string) error

// runMigrate 分发 migrate 子命令
func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(1)
	}

	actions := map[string]migrateAction{
		"up": func(ctx context.Context, cli *migration.CLI, _ []string) error {
			return cli.RunUp(ctx)
		},
		"down": func(ctx context.Context, cli *migration.CLI, _ []string) error {
			return cli.RunDown(ctx)
		},
		"status": func(ctx context.Context, cli *migration.CLI, _ []string) error {
			return cli.RunStatus(ctx)
		},
		"version": func(ctx context.Context, cli *migration.CLI, _ []string) error {
			return cli.RunVersion(ctx)
		},
		"goto": func(ctx context.Context, cli *migration.CLI, rest []string) error {
			v, err := versionArg(rest)
			if err != nil {
				return err
			}
			return cli.RunGoto(ctx, uint(v))
		},
		"force": func(ctx context.Context, cli *migration.CLI, rest []string) error {
			v, err := versionArg(rest)
			if err != nil {
				return err
			}
			return cli.RunForce(ctx, int(v))
		},
		"reset": func(ctx context.Context, cli *migration.CLI, _ []string) error {
			return cli.RunReset(ctx)
		},
	}

	subcommand := args[0]
	if subcommand == "help" || subcommand == "-h" || subcommand == "--help" {
		printMigrateUsage()
		return
	}
	action, ok := actions[subcommand]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown migrate subcommand: %s\n", subcommand)
		printMigrateUsage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet("migrate "+subcommand, flag.ExitOnError)
	migrator, err := createMigrator(fs, args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	if err := action(context.Background(), migration.NewCLI(migrator), fs.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s failed: %v\n", subcommand, err)
		migrator.Close()
		os.Exit(1)
	}
}

// versionArg 读取 goto/force 的版本号参数
func versionArg(args []string) (uint64, error) {
	if len(args) < 1 {
		return 0, errors.New("version argument is required")
	}
	v, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid version number: %s", args[0])
	}
	return v, nil
}

// createMigrator 根据命令行参数创建迁移器；--db-url 优先于配置文件
func createMigrator(fs *flag.FlagSet, args []string) (*migration.DefaultMigrator, error) {
	configPath := fs.String("config", "", "Path to config file")
	dbURL := fs.String("db-url", "", "PostgreSQL connection URL")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *dbURL != "" {
		return migration.NewMigratorFromURL(*dbURL)
	}

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return migration.NewMigratorFromConfig(cfg)
}

// printMigrateUsage 打印 migrate 命令帮助
func printMigrateUsage() {
	fmt.Println(`Database Migration Commands (PostgreSQL only; SQLite uses init-db)

Usage:
  clubcms migrate <subcommand> [options] [version]

Subcommands:
  up        Apply all pending migrations
  down      Rollback the last migration
  status    Show migration status
  version   Show current migration version
  goto      Migrate to a specific version
  force     Force set migration version (use with caution)
  reset     Rollback all migrations
  help      Show this help message

Options:
  --config <path>   Path to configuration file (YAML)
  --db-url <url>    PostgreSQL connection URL (default: DATABASE_URL / config)

Examples:
  clubcms migrate up
  clubcms migrate status --config /etc/clubcms/config.yaml
  clubcms migrate goto --db-url postgresql://localhost/clubcms 1
  clubcms migrate force 0`)
}
