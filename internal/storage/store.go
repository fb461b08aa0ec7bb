// Package storage keeps a history of completed runs so past sweeps can
// be compared without digging through output directories.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"envbench/internal/stats"
)

const BucketRuns = "runs"

// RunRecord is one completed invocation: the config echo plus every
// batch summary it produced.
type RunRecord struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Target    string          `json:"target"`
	Modes     []string        `json:"modes"`
	Summaries []stats.Summary `json:"summaries"`
}

type Store struct {
	db *bbolt.DB
}

// Open opens the default history database under $HOME/.envbench.
func Open() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(home, ".envbench")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return OpenAt(filepath.Join(dir, "history.db"))
}

func OpenAt(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save appends one run. Keys are timestamp-prefixed so the bucket
// iterates in chronological order.
func (s *Store) Save(rec RunRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))

		key := []byte(rec.Timestamp.UTC().Format(time.RFC3339Nano) + "_" + rec.ID)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (s *Store) List(limit int) []RunRecord {
	var records []RunRecord

	s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))
		c := b.Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err == nil {
				records = append(records, rec)
			}
		}
		return nil
	})

	return records
}

func (s *Store) Get(id string) (*RunRecord, error) {
	var rec RunRecord
	found := false

	s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))
		return b.ForEach(func(k, v []byte) error {
			if found {
				return nil
			}
			var r RunRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return nil
			}
			if r.ID == id {
				rec = r
				found = true
			}
			return nil
		})
	})

	if !found {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return &rec, nil
}
