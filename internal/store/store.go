// Package store persists the per-provider sync selection in a bbolt file.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Ning0612/Comicshelf/internal/domain"
)

var bucketSelections = []byte("selections")

// SelectionStore maps a provider type to its SyncSelection
type SelectionStore struct {
	db *bolt.DB
}

// Open opens (or creates) the store at path
func Open(path string) (*SelectionStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSelections)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SelectionStore{db: db}, nil
}

// Close releases the database file
func (s *SelectionStore) Close() error {
	return s.db.Close()
}

// Get returns the selection for provider. The boolean is false when
// nothing was saved yet.
func (s *SelectionStore) Get(provider domain.ProviderType) (domain.SyncSelection, bool, error) {
	var sel domain.SyncSelection
	var data []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketSelections).Get([]byte(provider)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil || data == nil {
		return sel, false, err
	}

	if err := json.Unmarshal(data, &sel); err != nil {
		return sel, false, fmt.Errorf("corrupt selection for %s: %w", provider, err)
	}
	return sel, true, nil
}

// Put saves the selection for provider, replacing any previous one
func (s *SelectionStore) Put(provider domain.ProviderType, sel domain.SyncSelection) error {
	data, err := json.Marshal(sel)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSelections).Put([]byte(provider), data)
	})
}

// Delete forgets the selection for provider
func (s *SelectionStore) Delete(provider domain.ProviderType) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSelections).Delete([]byte(provider))
	})
}

// All returns every saved selection keyed by provider
func (s *SelectionStore) All() (map[domain.ProviderType]domain.SyncSelection, error) {
	out := make(map[domain.ProviderType]domain.SyncSelection)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSelections).ForEach(func(k, v []byte) error {
			var sel domain.SyncSelection
			if err := json.Unmarshal(v, &sel); err != nil {
				return fmt.Errorf("corrupt selection for %s: %w", k, err)
			}
			out[domain.ProviderType(k)] = sel
			return nil
		})
	})
	return out, err
}
