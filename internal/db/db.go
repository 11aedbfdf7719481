package db

import (
	"os"
	"path/filepath"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite://"

// Open picks the driver from the DSN: "sqlite://<path>" (or ":memory:")
// uses the pure-go SQLite driver, anything else is handed to MySQL.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	if strings.HasPrefix(dsn, sqlitePrefix) {
		path := strings.TrimPrefix(dsn, sqlitePrefix)
		if path != ":memory:" && !strings.HasPrefix(path, "file:") {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, err
			}
		}
		return gorm.Open(gormsqlite.Open(path), cfg)
	}
	return gorm.Open(mysql.Open(dsn), cfg)
}
