package rdb

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenFromURL opens a GORM DB based on a simple store-url string.
// Supported:
//   - sqlite:<dsn>   e.g., sqlite:/var/lib/grafana-operator/peers.db
//   - sqlite3:<dsn>  alias of sqlite
func OpenFromURL(storeURL string) (*gorm.DB, error) {
	var dsn string
	switch {
	case strings.HasPrefix(storeURL, "sqlite:"):
		dsn = strings.TrimPrefix(storeURL, "sqlite:")
	case strings.HasPrefix(storeURL, "sqlite3:"):
		dsn = strings.TrimPrefix(storeURL, "sqlite3:")
	default:
		return nil, fmt.Errorf("unsupported peer store scheme: %s", storeURL)
	}
	if dsn == "" {
		dsn = "./grafana-operator-peers.db"
	}
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
}

// AutoMigrate applies schema migrations for all RDB models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&PeerEntryRecord{})
}
