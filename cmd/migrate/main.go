// Command migrate manages the maintenance gate schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"spekulus/internal/config"
	"spekulus/internal/database"

	"gorm.io/gorm"
)

type command struct {
	args string
	help string
	run  func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error
}

var commands = map[string]command{
	"up": {
		help: "apply pending SQL migrations",
		run: func(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
			if err := database.RunMigrations(ctx, db); err != nil {
				return fmt.Errorf("sql migrations failed: %w", err)
			}
			log.Println("sql migrations applied")
			return nil
		},
	},
	"auto": {
		help: "create gate tables with GORM AutoMigrate (non-production only)",
		run: func(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
			cfg.DBSchemaMode = database.SchemaModeAuto
			if err := database.ApplySchema(ctx, db, cfg); err != nil {
				return fmt.Errorf("auto schema apply failed: %w", err)
			}
			log.Println("gate tables migrated")
			return nil
		},
	},
	"status": {
		help: "report whether the gate schema is ready",
		run:  status,
	},
	"down": {
		args: "<version>",
		help: "roll back one applied migration",
		run: func(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: migrate down <version>")
			}
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			if err := database.RollbackMigration(ctx, db, version); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			log.Printf("rolled back migration %d", version)
			return nil
		},
	},
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if err := run(flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(os.Stderr, "usage: migrate <command> [args]")
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(os.Stderr, "  %-18s %s\n", strings.TrimSpace(name+" "+c.args), c.help)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		usage()
		return fmt.Errorf("missing command")
	}
	name := strings.ToLower(strings.TrimSpace(args[0]))
	cmd, ok := commands[name]
	if !ok {
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	return cmd.run(ctx, db, cfg, args[1:])
}

func status(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	report, err := database.InspectSchema(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("schema status failed: %w", err)
	}

	log.Printf("mode=%s env=%s", report.Mode, cfg.Env)
	for _, table := range report.MissingTables {
		log.Printf("missing table: %s", table)
	}
	for _, m := range report.Pending {
		log.Printf("pending: %s", m.String())
	}
	if !report.SettingsRow {
		log.Println("maintenance settings row absent (created on server start)")
	}
	if report.Ready() {
		log.Println("gate schema ready")
	}
	return nil
}
