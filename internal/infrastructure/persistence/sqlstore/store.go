// Package sqlstore implements the token registry storage on a relational
// database through GORM. SQLite suits a single edge device; PostgreSQL is
// available for gateways that already run one.
package sqlstore

import (
	"context"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/turtacn/pushgate/internal/domain/repository"
	"github.com/turtacn/pushgate/pkg/errors"
	"github.com/turtacn/pushgate/pkg/logger"
)

var _ repository.KVBackend = (*Store)(nil)

// TokenEntry is one row of the token_entries table.
type TokenEntry struct {
	Namespace string `gorm:"primaryKey;size:32"`
	EntryKey  string `gorm:"primaryKey;size:15"`
	Value     string `gorm:"size:99;not null"`
	UpdatedAt time.Time
}

// TableName overrides the GORM default.
func (TokenEntry) TableName() string { return "token_entries" }

// Store is a GORM-backed repository.KVBackend.
type Store struct {
	db *gorm.DB
}

// OpenSQLite opens the SQLite database at path.
func OpenSQLite(ctx context.Context, path string, log logger.Logger) (*Store, error) {
	return open(ctx, sqlite.Open(path), "sqlite", log)
}

// OpenPostgres opens a PostgreSQL database using dsn.
func OpenPostgres(ctx context.Context, dsn string, log logger.Logger) (*Store, error) {
	return open(ctx, postgres.Open(dsn), "postgres", log)
}

// NewStore wraps an existing connection and migrates the schema.
func NewStore(ctx context.Context, db *gorm.DB) (*Store, error) {
	if err := db.WithContext(ctx).AutoMigrate(&TokenEntry{}); err != nil {
		return nil, errors.Wrap(errors.ErrRegistryIO, err, "migrate token_entries")
	}
	return &Store{db: db}, nil
}

func open(ctx context.Context, dialector gorm.Dialector, driver string, log logger.Logger) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, errors.Wrap(errors.ErrRegistryIO, err, "open database").WithMetadata("driver", driver)
	}
	s, err := NewStore(ctx, db)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "sql registry opened", logger.String("driver", driver))
	return s, nil
}

func (s *Store) Get(ctx context.Context, namespace, key string) (string, error) {
	var entry TokenEntry
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND entry_key = ?", namespace, key).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", errors.ErrRegistryNotFound.WithMetadata("key", key)
	}
	if err != nil {
		return "", errors.Wrap(errors.ErrRegistryIO, err, "select entry")
	}
	return entry.Value, nil
}

func (s *Store) Put(ctx context.Context, namespace, key, value string) error {
	entry := TokenEntry{Namespace: namespace, EntryKey: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return errors.Wrap(errors.ErrRegistryIO, err, "upsert entry")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	res := s.db.WithContext(ctx).
		Where("namespace = ? AND entry_key = ?", namespace, key).
		Delete(&TokenEntry{})
	if res.Error != nil {
		return errors.Wrap(errors.ErrRegistryIO, res.Error, "delete entry")
	}
	if res.RowsAffected == 0 {
		return errors.ErrRegistryNotFound.WithMetadata("key", key)
	}
	return nil
}

// Scan fetches one row past the limit to detect truncation.
func (s *Store) Scan(ctx context.Context, namespace string, limit int, fn func(key, value string) bool) (bool, error) {
	q := s.db.WithContext(ctx).Where("namespace = ?", namespace).Order("entry_key")
	if limit > 0 {
		q = q.Limit(limit + 1)
	}

	var entries []TokenEntry
	if err := q.Find(&entries).Error; err != nil {
		return false, errors.Wrap(errors.ErrRegistryIO, err, "scan namespace")
	}

	for i, e := range entries {
		if limit > 0 && i == limit {
			return true, nil
		}
		if !fn(e.EntryKey, e.Value) {
			return false, nil
		}
	}
	return false, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
