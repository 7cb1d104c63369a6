package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/migrate"
)

type command func(ctx context.Context, r *migrate.Runner) error

func main() {
	cmd := flag.String("cmd", "up", "up|down|redo|reset|status|to|create|validate")
	dir := flag.String("dir", "", "migrations directory (default: migrations compiled into the binary)")
	name := flag.String("name", "", "migration name for -cmd=create")
	target := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=to")
	flag.Parse()

	_ = godotenv.Load()

	switch *cmd {
	case "create":
		out := *dir
		if out == "" {
			out = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(out, *name)
		exitOn(err, "create migration")
		fmt.Println(path)
		return
	case "validate":
		fsys, err := migrate.Source(*dir)
		exitOn(err, "open migrations")
		exitOn(migrate.Validate(fsys), "validate migrations")
		fmt.Println("migrations ok")
		return
	}

	commands := map[string]command{
		"up": func(ctx context.Context, r *migrate.Runner) error {
			applied, err := r.Up(ctx)
			fmt.Printf("applied %d migration(s) %v\n", len(applied), applied)
			return err
		},
		"down":   func(ctx context.Context, r *migrate.Runner) error { return r.Down(ctx) },
		"redo":   func(ctx context.Context, r *migrate.Runner) error { return r.Redo(ctx) },
		"reset":  func(ctx context.Context, r *migrate.Runner) error { return r.Reset(ctx) },
		"status": printStatus,
		"to": func(ctx context.Context, r *migrate.Runner) error {
			v, err := strconv.ParseInt(*target, 10, 64)
			if err != nil {
				return fmt.Errorf("-version %q: %w", *target, err)
			}
			return r.MigrateTo(ctx, v)
		},
	}
	run, ok := commands[*cmd]
	if !ok {
		exitOn(fmt.Errorf("unknown -cmd %q", *cmd), "parse flags")
	}

	cfg, err := config.Load()
	exitOn(err, "load config")
	if *cmd == "reset" && cfg.App.IsProd() {
		exitOn(fmt.Errorf("reset is disabled in %s", cfg.App.Env), "reset")
	}

	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	if err := execute(ctx, cfg, logg, *dir, run); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration finished")
}

func execute(ctx context.Context, cfg *config.Config, logg *logger.Logger, dir string, run command) error {
	fsys, err := migrate.Source(dir)
	if err != nil {
		return err
	}
	if err := migrate.Validate(fsys); err != nil {
		return err
	}

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		_ = client.Close()
		return err
	}
	runner, err := migrate.NewRunner(sqlDB, fsys)
	if err != nil {
		_ = client.Close()
		return err
	}
	// Closing the runner closes the shared pool.
	defer runner.Close()
	return run(ctx, runner)
}

func printStatus(ctx context.Context, r *migrate.Runner) error {
	rows, err := r.Status(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tAPPLIED\tFILE")
	for _, row := range rows {
		fmt.Fprintf(tw, "%d\t%t\t%s\n", row.Version, row.Applied, row.Path)
	}
	return tw.Flush()
}

func exitOn(err error, action string) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", action, err)
	os.Exit(1)
}
