// =============================================================================
// 🗄️ migrate 命令
// =============================================================================
// 数据库迁移子命令: up / down / status / version / reset
// =============================================================================
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/satdecisions/satrag/config"
	"github.com/satdecisions/satrag/internal/migration"
)

func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(1)
	}

	sub := args[0]
	fs := flag.NewFlagSet("migrate "+sub, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	databaseURL := fs.String("database-url", "", "Override the database connection string")
	fs.Parse(args[1:])

	migrator, err := newMigrator(*configPath, *databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	switch sub {
	case "up":
		if err := migrator.Up(); err != nil {
			fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Migrations applied.")
	case "down":
		if err := migrator.Down(); err != nil {
			fmt.Fprintf(os.Stderr, "Rollback failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Rolled back one migration.")
	case "reset":
		fmt.Print("This will roll back ALL migrations. Type 'yes' to continue: ")
		var answer string
		fmt.Scanln(&answer)
		if answer != "yes" {
			fmt.Println("Aborted.")
			return
		}
		if err := migrator.DownAll(); err != nil {
			fmt.Fprintf(os.Stderr, "Reset failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("All migrations rolled back.")
	case "version":
		version, dirty, err := migrator.Version()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read version: %v\n", err)
			os.Exit(1)
		}
		state := "clean"
		if dirty {
			state = "dirty"
		}
		fmt.Printf("Schema version: %d (%s)\n", version, state)
	case "status":
		info, err := migrator.Status()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read status: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Current version: %d\n", info.CurrentVersion)
		fmt.Printf("Dirty:           %v\n", info.Dirty)
		fmt.Printf("Pending:         %d of %d\n", info.Pending, info.Total)
	default:
		fmt.Fprintf(os.Stderr, "Unknown migrate subcommand: %s\n", sub)
		printMigrateUsage()
		os.Exit(1)
	}
}

// newMigrator 优先使用命令行给出的连接串，否则从配置推导。
func newMigrator(configPath, databaseURL string) (*migration.Migrator, error) {
	if databaseURL == "" {
		loader := config.NewLoader()
		if configPath != "" {
			loader = loader.WithConfigPath(configPath)
		}
		cfg, err := loader.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		databaseURL = cfg.Database.DSN()
	}

	return migration.NewMigrator(&migration.Config{DatabaseURL: databaseURL})
}

func printMigrateUsage() {
	fmt.Println(`Usage: satrag migrate <subcommand> [options]

Subcommands:
  up       Apply all pending migrations
  down     Roll back the most recent migration
  reset    Roll back all migrations (asks for confirmation)
  version  Show the current schema version
  status   Show applied and pending migrations

Options:
  --config <path>        Path to configuration file (YAML)
  --database-url <dsn>   Override the database connection string`)
}
