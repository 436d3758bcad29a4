// Package resource persists a point-in-time snapshot of which resources
// and MIME pairs were registered with a demux.Demultiplexer, purely for
// restart diagnostics. It is never consulted on the request hot path.
package resource

import (
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"
)

var bucketName = []byte("resource_snapshots")

// Entry describes one registered resource at snapshot time.
type Entry struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	ContentType string `json:"content_type"`
	AcceptType  string `json:"accept_type"`
}

// Store persists snapshots keyed by the time they were taken.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) a bbolt database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Save writes entries under key taken (an RFC3339 timestamp string
// supplied by the caller, since this package never calls time.Now()
// itself to stay deterministic for tests).
func (s *Store) Save(taken string, entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(taken), data)
	})
}

// Latest returns the snapshot stored under the greatest key (for the
// RFC3339 UTC keys Save takes, the newest timestamp), or ok=false if the
// store is empty.
func (s *Store) Latest() (entries []Entry, ok bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		k, v := c.Last()
		if k == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(v, &entries)
	})
	return entries, ok, err
}
