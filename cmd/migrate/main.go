// cmd/migrate: applies the embedded audit-table migrations to the configured
// database. Uses the same schema_migrations table format as golang-migrate
// (bigint version + dirty flag) so the two tools are interchangeable.
//
// Usage:
//
//	go run ./cmd/migrate
//	DATABASE_DRIVER=sqlite DATABASE_URL=gateguard.db go run ./cmd/migrate
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gateguard/gateguard-api/internal/config"
	"github.com/gateguard/gateguard-api/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.DefaultOptions())
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer st.Close()
	fmt.Printf("connected to %s database\n", st.Driver)

	applied, err := st.Migrate(ctx)
	for _, name := range applied {
		fmt.Printf("  apply %s\n", name)
	}
	if err != nil {
		return err
	}

	if len(applied) == 0 {
		fmt.Println("nothing to migrate, already up to date")
	} else {
		fmt.Printf("applied %d migration(s)\n", len(applied))
	}
	return nil
}
