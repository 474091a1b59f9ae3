// Package database provides the SQLite connection the bridge persists slots in.
//
// It opens the file with WAL mode and a busy timeout, limits the pool to one
// writer, and applies embedded SQL migrations tracked in schema_migrations.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
