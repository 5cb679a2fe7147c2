// Package queue persists pending report submissions in a local bbolt
// database so nothing is lost between app sessions or across crashes.
package queue

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"roadsync/internal/report"
)

const (
	// storeDirPerm is the permission mode for the state directory (~/.roadsync/).
	storeDirPerm = fs.FileMode(0o700)

	// storeFilePerm is the permission mode for the queue database file.
	storeFilePerm = fs.FileMode(0o600)

	// storeOpenTimeout is the maximum time to wait for the bolt database lock.
	storeOpenTimeout = 5 * time.Second
)

var (
	queueBucket = []byte("queue")

	// pendingKey holds the whole queue as one JSON array. Reads and
	// writes are whole-collection: a drain rewrites the queue exactly
	// once, atomically, so a crash mid-drain leaves the pre-drain
	// queue intact.
	pendingKey = []byte("pending_submissions_v1")
)

// Store is the durable on-device queue of submissions awaiting
// delivery. It is owned by a single process; the orchestrator
// serializes access around its read-modify-write cycles.
type Store struct {
	db     *bolt.DB
	logger *slog.Logger
}

func defaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return filepath.Join(home, ".roadsync", "queue.db")
}

// Open opens the queue database at ~/.roadsync/queue.db, creating it
// if it does not exist.
func Open(logger *slog.Logger) (*Store, error) {
	return OpenAt(defaultPath(), logger)
}

// OpenAt opens a queue database at the given path, creating it if it
// does not exist. Useful for tests that need an isolated database.
func OpenAt(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), storeDirPerm); err != nil {
		return nil, fmt.Errorf("creating queue directory: %w", err)
	}

	db, err := bolt.Open(path, storeFilePerm, &bolt.Options{Timeout: storeOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening queue db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(queueBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing queue db: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PeekAll returns the queued submissions in enqueue order without
// removing them. Unparsable stored data is treated as an empty queue:
// corruption must not block new submissions.
func (s *Store) PeekAll() ([]report.QueuedSubmission, error) {
	var subs []report.QueuedSubmission

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(queueBucket).Get(pendingKey)
		if v == nil {
			return nil
		}

		if err := json.Unmarshal(v, &subs); err != nil {
			s.logger.Warn("queue data unparsable, treating as empty",
				slog.String("error", err.Error()),
			)
			subs = nil
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading queue: %w", err)
	}

	return subs, nil
}

// Enqueue appends a submission to the end of the queue.
func (s *Store) Enqueue(sub report.QueuedSubmission) error {
	subs, err := s.PeekAll()
	if err != nil {
		return err
	}

	return s.ReplaceAll(append(subs, sub))
}

// ReplaceAll atomically overwrites the whole queue. The drain path uses
// it to remove delivered entries in a single commit.
func (s *Store) ReplaceAll(subs []report.QueuedSubmission) error {
	if subs == nil {
		subs = []report.QueuedSubmission{}
	}

	data, err := json.Marshal(subs)
	if err != nil {
		return fmt.Errorf("encoding queue: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(queueBucket).Put(pendingKey, data)
	})
	if err != nil {
		return fmt.Errorf("writing queue: %w", err)
	}

	return nil
}

// Len returns the number of queued submissions.
func (s *Store) Len() (int, error) {
	subs, err := s.PeekAll()
	if err != nil {
		return 0, err
	}

	return len(subs), nil
}
