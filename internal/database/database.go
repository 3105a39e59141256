// Package database resolves a database URL into a GORM connection and prepares the parking schema.
package database

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/parking/internal/store/gormstore"
	"github.com/glebarez/sqlite"
	"github.com/go-sql-driver/mysql"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

const (
	defaultSQLiteFile   = "parking.db"
	sqliteBusyTimeoutMS = 5000
	sqliteMemoryPath    = ":memory:"
)

// Target is a resolved database URL.
type Target struct {
	Driver string
	// DSN is the driver-native connection string.
	DSN string
}

// Connection is an open GORM handle plus its closer.
type Connection struct {
	DB     *gorm.DB
	Driver string
	close  func() error
}

// Close releases the underlying pool.
func (connection *Connection) Close() error {
	if connection == nil || connection.close == nil {
		return nil
	}
	return connection.close()
}

// Open connects to the database behind rawURL and migrates the schema.
func Open(ctx context.Context, rawURL string) (*Connection, error) {
	target, err := Resolve(rawURL)
	if err != nil {
		return nil, err
	}
	config := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
	var db *gorm.DB
	switch target.Driver {
	case DriverPostgres:
		db, err = gorm.Open(postgres.Open(target.DSN), config)
	case DriverMySQL:
		db, err = gorm.Open(mysqldriver.Open(target.DSN), config)
	case DriverSQLite:
		db, err = gorm.Open(sqlite.Open(target.DSN), config)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", target.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", target.Driver, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if target.Driver == DriverSQLite {
		// SQLite serializes writers; one connection avoids SQLITE_BUSY between pooled handles.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", target.Driver, err)
	}
	if err := Migrate(db.WithContext(ctx)); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &Connection{DB: db, Driver: target.Driver, close: sqlDB.Close}, nil
}

// Migrate creates or updates the parking tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(gormstore.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Resolve maps postgres://, mysql://, sqlite:// URLs or a bare file path to a driver and DSN.
func Resolve(rawURL string) (Target, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return Target{}, fmt.Errorf("database url is required")
	}
	switch {
	case strings.HasPrefix(trimmed, "postgres://"), strings.HasPrefix(trimmed, "postgresql://"):
		return Target{Driver: DriverPostgres, DSN: trimmed}, nil
	case strings.HasPrefix(trimmed, "mysql://"):
		dsn, err := mysqlDSN(trimmed)
		if err != nil {
			return Target{}, err
		}
		return Target{Driver: DriverMySQL, DSN: dsn}, nil
	case strings.HasPrefix(trimmed, "sqlite://"):
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return Target{}, fmt.Errorf("parse sqlite url: %w", err)
		}
		path := parsed.Host + parsed.Path
		if path == "" || path == "/" {
			path = defaultSQLiteFile
		}
		sqlitePath, err := normalizeSQLitePath(path)
		if err != nil {
			return Target{}, err
		}
		return Target{Driver: DriverSQLite, DSN: sqliteDSN(sqlitePath)}, nil
	}
	if strings.Contains(trimmed, "://") {
		return Target{}, fmt.Errorf("unsupported database scheme in %q", trimmed)
	}
	sqlitePath, err := normalizeSQLitePath(trimmed)
	if err != nil {
		return Target{}, err
	}
	return Target{Driver: DriverSQLite, DSN: sqliteDSN(sqlitePath)}, nil
}

func mysqlDSN(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse mysql url: %w", err)
	}
	config := mysql.NewConfig()
	config.Net = "tcp"
	config.Addr = parsed.Host
	config.DBName = strings.TrimPrefix(parsed.Path, "/")
	config.ParseTime = true
	config.Loc = time.UTC
	if parsed.User != nil {
		config.User = parsed.User.Username()
		config.Passwd, _ = parsed.User.Password()
	}
	if config.DBName == "" {
		return "", fmt.Errorf("mysql url %q has no database name", rawURL)
	}
	return config.FormatDSN(), nil
}

func sqliteDSN(path string) string {
	if path == sqliteMemoryPath {
		return path
	}
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, sqliteBusyTimeoutMS)
}

func normalizeSQLitePath(path string) (string, error) {
	if path == sqliteMemoryPath {
		return path, nil
	}
	if filepath.IsAbs(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	relative := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(relative), 0o755); err != nil {
		return "", err
	}
	return relative, nil
}
