// Package boltdb implements the token registry storage on an embedded bbolt
// file, one bucket per namespace.
package boltdb

import (
	"context"
	"time"

	"go.etcd.io/bbolt"

	"github.com/turtacn/pushgate/internal/domain/models"
	"github.com/turtacn/pushgate/internal/domain/repository"
	"github.com/turtacn/pushgate/pkg/errors"
	"github.com/turtacn/pushgate/pkg/logger"
)

var _ repository.KVBackend = (*Store)(nil)

// Store is a bbolt-backed repository.KVBackend.
type Store struct {
	db     *bbolt.DB
	logger logger.Logger
}

// Open opens (or creates) the database at path and ensures a bucket exists
// for every registry namespace.
func Open(ctx context.Context, path string, log logger.Logger) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(errors.ErrRegistryIO, err, "open bbolt database").WithMetadata("path", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, list := range []models.ListKind{models.ListAllow, models.ListDeny} {
			for _, env := range models.Environments {
				if _, err := tx.CreateBucketIfNotExists([]byte(models.Namespace(list, env))); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrRegistryIO, err, "create registry buckets")
	}

	log.Info(ctx, "bbolt registry opened", logger.String("path", path))
	return &Store{db: db, logger: log}, nil
}

func (s *Store) Get(ctx context.Context, namespace, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return errors.ErrRegistryNotFound.WithMetadata("key", key)
		}
		v := b.Get([]byte(key))
		if v == nil {
			return errors.ErrRegistryNotFound.WithMetadata("key", key)
		}
		value = string(v)
		return nil
	})
	if err != nil {
		return "", s.mapErr(err, "read entry")
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, namespace, key, value string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), []byte(value))
	})
	return s.mapErr(err, "write entry")
}

func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil || b.Get([]byte(key)) == nil {
			return errors.ErrRegistryNotFound.WithMetadata("key", key)
		}
		return b.Delete([]byte(key))
	})
	return s.mapErr(err, "delete entry")
}

// Scan visits entries in key byte order inside a single read transaction.
func (s *Store) Scan(ctx context.Context, namespace string, limit int, fn func(key, value string) bool) (bool, error) {
	truncated := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		visited := 0
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if limit > 0 && visited == limit {
				truncated = true
				return nil
			}
			visited++
			if !fn(string(k), string(v)) {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return false, s.mapErr(err, "scan namespace")
	}
	return truncated, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) mapErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errors.ErrRegistryNotFound) {
		return err
	}
	return errors.Wrap(errors.ErrRegistryIO, err, op)
}
