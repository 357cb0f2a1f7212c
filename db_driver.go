package main

import (
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ParseDatabaseDriver gets the gorm driver for the database string. The
// scheme prefix selects the driver; sqlite takes a bare file path.
func ParseDatabaseDriver(dbURL string) gorm.Dialector {
	switch {
	case strings.HasPrefix(dbURL, "mysql://"):
		return mysql.Open(strings.TrimPrefix(dbURL, "mysql://"))
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		return postgres.Open(dbURL)
	case strings.HasPrefix(dbURL, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(dbURL, "sqlite://"))
	case strings.HasSuffix(dbURL, ".db"):
		return sqlite.Open(dbURL)
	}
	return nil
}
