package core

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"piecework.app/piecework/logging"
)

type LogLevel int

const (
	LogLevelSilent LogLevel = iota + 1
	LogLevelError
	LogLevelWarn
	LogLevelInfo
)

func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent":
		return LogLevelSilent
	case "error":
		return LogLevelError
	case "warn", "warning":
		return LogLevelWarn
	default:
		return LogLevelInfo
	}
}

// Gorm maps the local level to gorm's.
func (l LogLevel) Gorm() logger.LogLevel {
	switch l {
	case LogLevelError:
		return logger.Error
	case LogLevelWarn:
		return logger.Warn
	case LogLevelSilent:
		return logger.Silent
	default:
		return logger.Info
	}
}

type DatabaseManager struct {
	SqlDB    *sql.DB
	LogLevel LogLevel
	db       *gorm.DB
}

// New opens the pool and a gorm session on top of it.
// dsn must carry the schema and parseTime=true.
func New(dsn string, maxConnection int, level LogLevel, log *zap.Logger) (*DatabaseManager, error) {
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxConnection)
	sqlDB.SetMaxIdleConns(maxConnection)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping pool: %w", err)
	}

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logging.NewGormLogger(log, level.Gorm()),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	return &DatabaseManager{SqlDB: sqlDB, LogLevel: level, db: db}, nil
}

// DB returns a session bound to ctx.
func (dm *DatabaseManager) DB(ctx context.Context) *gorm.DB {
	return dm.db.WithContext(ctx)
}

func (dm *DatabaseManager) Exec(ctx context.Context, fn func(db *gorm.DB) error) error {
	return fn(dm.DB(ctx))
}

// Transaction runs fn in a transaction; a returned error rolls it back.
func (dm *DatabaseManager) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return dm.DB(ctx).Transaction(fn)
}

func (dm *DatabaseManager) Ping(ctx context.Context) error {
	return dm.SqlDB.PingContext(ctx)
}

// Close closes the global pool
func (dm *DatabaseManager) Close() error {
	return dm.SqlDB.Close()
}
