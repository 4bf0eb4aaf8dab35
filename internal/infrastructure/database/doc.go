// Package database provides SQLite connectivity for Gray Logic Lights.
//
// It opens the database with WAL mode and foreign keys enabled, and
// applies the embedded schema migrations (YYYYMMDD_HHMMSS_name.up.sql)
// in version order, each inside its own transaction.
//
// Usage:
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
