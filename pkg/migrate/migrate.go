// Package migrate applies the goose SQL migrations that define the Postgres schema.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are written, relative to the repo root.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Source returns the migration files to run. An empty dir selects the set
// compiled into the binary.
func Source(dir string) (fs.FS, error) {
	if dir == "" {
		return fs.Sub(embedded, "migrations")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("migrations dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migrations dir %q is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

// Runner drives goose against one database. The schema relies on Postgres
// features (partial unique indexes, jsonb) so the dialect is fixed.
type Runner struct {
	provider *goose.Provider
}

func NewRunner(db *sql.DB, fsys fs.FS) (*Runner, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

// Up applies every pending migration and returns the versions it ran.
func (r *Runner) Up(ctx context.Context) ([]int64, error) {
	results, err := r.provider.Up(ctx)
	return versions(results), wrap("up", err)
}

func (r *Runner) Down(ctx context.Context) error {
	_, err := r.provider.Down(ctx)
	return wrap("down", err)
}

// Redo rolls back the newest migration and applies it again.
func (r *Runner) Redo(ctx context.Context) error {
	if _, err := r.provider.Down(ctx); err != nil {
		return wrap("redo down", err)
	}
	_, err := r.provider.UpByOne(ctx)
	return wrap("redo up", err)
}

// Reset rolls every migration back.
func (r *Runner) Reset(ctx context.Context) error {
	_, err := r.provider.DownTo(ctx, 0)
	return wrap("reset", err)
}

// MigrateTo moves the schema up or down until target is the newest applied version.
func (r *Runner) MigrateTo(ctx context.Context, target int64) error {
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return wrap("version", err)
	}
	switch {
	case target > current:
		_, err = r.provider.UpTo(ctx, target)
		return wrap(fmt.Sprintf("up-to %d", target), err)
	case target < current:
		_, err = r.provider.DownTo(ctx, target)
		return wrap(fmt.Sprintf("down-to %d", target), err)
	}
	return nil
}

// MigrationState is one row of Status.
type MigrationState struct {
	Version int64
	Path    string
	Applied bool
}

func (r *Runner) Status(ctx context.Context) ([]MigrationState, error) {
	rows, err := r.provider.Status(ctx)
	if err != nil {
		return nil, wrap("status", err)
	}
	out := make([]MigrationState, 0, len(rows))
	for _, row := range rows {
		out = append(out, MigrationState{
			Version: row.Source.Version,
			Path:    row.Source.Path,
			Applied: row.State == goose.StateApplied,
		})
	}
	return out, nil
}

func (r *Runner) Close() error {
	return r.provider.Close()
}

func versions(results []*goose.MigrationResult) []int64 {
	out := make([]int64, 0, len(results))
	for _, res := range results {
		if res != nil && res.Source != nil {
			out = append(out, res.Source.Version)
		}
	}
	return out
}

func wrap(op string, err error) error {
	if err == nil || errors.Is(err, goose.ErrNoNextVersion) {
		return nil
	}
	return fmt.Errorf("goose %s: %w", op, err)
}
