package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations
var migrationFS embed.FS

// Migration is one embedded schema file.
type Migration struct {
	Version int64
	Name    string
	SQL     string
}

// Migrations returns the embedded migrations for driver in version order.
func Migrations(driver string) ([]Migration, error) {
	dir := path.Join("migrations", driver)
	entries, err := fs.ReadDir(migrationFS, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations for %s: %w", driver, err)
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		ver, err := versionFromFile(e.Name())
		if err != nil {
			return nil, fmt.Errorf("parse version from %s: %w", e.Name(), err)
		}
		body, err := fs.ReadFile(migrationFS, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Version: ver, Name: e.Name(), SQL: string(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Migrate applies every pending migration and returns the names applied.
// Progress is tracked in schema_migrations (version + dirty flag); a version
// is marked dirty before it runs so a crash mid-migration stays visible.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	if _, err := s.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version BIGINT  NOT NULL,
			dirty   BOOLEAN NOT NULL,
			PRIMARY KEY (version)
		)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	migrations, err := Migrations(s.Driver)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, m := range migrations {
		var n int
		if err := s.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM schema_migrations WHERE version = $1 AND dirty = $2`,
			m.Version, false,
		).Scan(&n); err != nil {
			return applied, fmt.Errorf("check %s: %w", m.Name, err)
		}
		if n > 0 {
			continue
		}

		if _, err := s.DB.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, dirty) VALUES ($1, $2)
			 ON CONFLICT (version) DO UPDATE SET dirty = $3`,
			m.Version, true, true,
		); err != nil {
			return applied, fmt.Errorf("mark dirty %s: %w", m.Name, err)
		}

		if _, err := s.DB.ExecContext(ctx, m.SQL); err != nil {
			return applied, fmt.Errorf("apply %s: %w", m.Name, err)
		}

		if _, err := s.DB.ExecContext(ctx,
			`UPDATE schema_migrations SET dirty = $1 WHERE version = $2`, false, m.Version,
		); err != nil {
			return applied, fmt.Errorf("mark clean %s: %w", m.Name, err)
		}
		applied = append(applied, m.Name)
	}
	return applied, nil
}

// versionFromFile extracts the leading integer from a migration filename.
// "001_audit_tables.up.sql" → 1
func versionFromFile(filename string) (int64, error) {
	prefix, _, ok := strings.Cut(filename, "_")
	if !ok {
		return 0, fmt.Errorf("unexpected filename format")
	}
	return strconv.ParseInt(prefix, 10, 64)
}
