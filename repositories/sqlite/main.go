package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pvv/api/models"
	"pvv/api/utils/logger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrBatchFinalized  = errors.New("load batch is already finalized")
	ErrDatabaseMissing = errors.New("database has not been initialized")
)

type (
	// Store is the single shared handle over the relational database
	Store struct {
		DB  *gorm.DB
		log *logger.Logger
	}

	gormWriter struct {
		log *logger.Logger
	}
)

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Open connects to the sqlite database at dsn; plain paths get their
// parent directory created, `file:` URIs are passed through untouched
func Open(dsn string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNop()
	}

	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(withPragmas(dsn)), &gorm.Config{
		Logger: gormLogger.New(gormWriter{log: log}, gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", dsn, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// one pooled connection serializes every statement
	sqlDB.SetMaxOpenConns(1)

	return &Store{DB: db, log: log}, nil
}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=1&_busy_timeout=5000"
}

func allModels() []interface{} {
	return []interface{}{&models.LoadBatch{}, &models.Variant{}, &models.Annotation{}, &models.ParseError{}}
}

// Migrate creates any missing tables and indexes
func (s *Store) Migrate(ctx context.Context) error {
	return s.DB.WithContext(ctx).AutoMigrate(allModels()...)
}

// Reset drops every table and recreates the schema
func (s *Store) Reset(ctx context.Context) error {
	m := s.DB.WithContext(ctx).Migrator()
	if err := m.DropTable(&models.ParseError{}, &models.Annotation{}, &models.Variant{}, &models.LoadBatch{}); err != nil {
		return fmt.Errorf("dropping tables: %w", err)
	}
	return s.Migrate(ctx)
}

// Ready reports whether the schema has been created
func (s *Store) Ready(ctx context.Context) error {
	m := s.DB.WithContext(ctx).Migrator()
	for _, model := range allModels() {
		if !m.HasTable(model) {
			return ErrDatabaseMissing
		}
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
