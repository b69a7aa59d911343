// Package database provides SQLite connection management for Gatherly Core.
//
// It handles connection lifecycle, WAL-mode configuration, health checks,
// and schema migrations embedded into the binary via go:embed.
//
// SQLite is configured with a single-writer connection pool; concurrent
// reads are served through WAL mode. All repositories in the domain
// packages share the one *DB handle.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "data/gatherly.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
