// Package boltstore keeps the session token in a bbolt file.
package boltstore

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var (
	bucket   = []byte("auth-storage")
	tokenKey = []byte("token")
)

// Store is a durable session token record.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the token file at `path`.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "creating token dir")
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating bucket")
	}
	return &Store{db: db}, nil
}

func (s *Store) Load() (string, error) {
	var token string
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucket).Get(tokenKey); v != nil {
			token = string(v)
		}
		return nil
	})
	return token, errors.Wrap(err, "loading token")
}

func (s *Store) Save(token string) error {
	return errors.Wrap(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put(tokenKey, []byte(token))
	}), "saving token")
}

func (s *Store) Clear() error {
	return errors.Wrap(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Delete(tokenKey)
	}), "clearing token")
}

func (s *Store) Close() error {
	return s.db.Close()
}
