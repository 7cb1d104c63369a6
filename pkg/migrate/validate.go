package migrate

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
)

var migrationName = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// Validate checks every .sql file in fsys: the timestamped file name, a
// unique version, both goose sections and balanced statement blocks.
func Validate(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	byVersion := make(map[string]string, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		match := migrationName.FindStringSubmatch(name)
		if match == nil {
			return fmt.Errorf("%s: file name must look like %s_name.sql", name, versionLayout)
		}
		if other, dup := byVersion[match[1]]; dup {
			return fmt.Errorf("%s: version %s already used by %s", name, match[1], other)
		}
		byVersion[match[1]] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		if err := checkAnnotations(string(body)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func checkAnnotations(sql string) error {
	for _, section := range []string{"-- +goose Up", "-- +goose Down"} {
		if !strings.Contains(sql, section) {
			return fmt.Errorf("missing %q", section)
		}
	}
	if begins, ends := strings.Count(sql, "+goose StatementBegin"), strings.Count(sql, "+goose StatementEnd"); begins != ends {
		return fmt.Errorf("%d StatementBegin vs %d StatementEnd", begins, ends)
	}
	return nil
}
