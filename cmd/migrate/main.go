package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"github.com/pressly/goose/v3"

	"github.com/Temutjin2k/ride-match/config"
	"github.com/Temutjin2k/ride-match/migrations"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
)

var (
	configPath = flag.String("config-path", "config.yaml", "Path to the config yaml file")
)

const usage = `Usage: migrate [-config-path=config.yaml] <up|down|status>`

func main() {
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		fmt.Println(usage)
		os.Exit(2)
	}

	log := logger.InitLogger("migrate", logger.LevelInfo)
	ctx := wrap.WithAction(context.Background(), "migrate_"+command)

	if err := run(ctx, command, log); err != nil {
		log.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, log logger.Logger) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	db, err := sql.Open("pgx", cfg.Database.GetDSN())
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		for _, r := range results {
			log.Info(ctx, "applied migration", "migration", r.String())
		}
		if err != nil {
			return err
		}
		if len(results) == 0 {
			log.Info(ctx, "no pending migrations")
		}
	case "down":
		result, err := provider.Down(ctx)
		if err != nil {
			return err
		}
		log.Info(ctx, "rolled back migration", "migration", result.String())
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return err
		}
		for _, st := range statuses {
			log.Info(ctx, "migration status",
				"version", st.Source.Version,
				"path", st.Source.Path,
				"state", string(st.State),
				"applied_at", st.AppliedAt,
			)
		}
	default:
		return fmt.Errorf("unknown command %q, %s", command, usage)
	}
	return nil
}
