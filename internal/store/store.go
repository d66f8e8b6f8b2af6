// Package store implements the backing-store interface spec §6
// depends on: keyed row reads, per-type CRUD, the monotonic state
// vector, blob I/O, and full-text search, all on top of
// modernc.org/sqlite (the teacher's own driver choice).
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Store owns the single SQLite connection and the per-type superlocks
// every /set call acquires (spec §5).
type Store struct {
	db  *sql.DB
	log *logrus.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Open creates (or reuses) the SQLite database at path and applies the
// schema, mirroring the teacher's cache.NewCache.
func Open(path string, log *logrus.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &Store{
		db:    db,
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}
	log.WithField("path", path).Info("store initialized")
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the raw connection for components that need it directly
// (full-text search, blob bookkeeping).
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) lockFor(typeName string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[typeName]
	if !ok {
		l = &sync.Mutex{}
		s.locks[typeName] = l
	}
	return l
}

// Type returns a generic Capability backed by the shared objects table
// for one data type. Domain packages embed *TypeStore and override
// FilterPredicate, SortKey, and (when the type needs it) Create,
// Update, or Sync.
func (s *Store) Type(typeName string) *TypeStore {
	return &TypeStore{store: s, typeName: typeName}
}

// bumpState increments and returns the new state token for typeName
// and accountId. Must be called inside the type's superlock.
func (s *Store) bumpState(accountId, typeName string) (int64, error) {
	_, err := s.db.Exec(`
		INSERT INTO state (type, account_id, state) VALUES (?, ?, 1)
		ON CONFLICT(type, account_id) DO UPDATE SET state = state + 1
	`, typeName, accountId)
	if err != nil {
		return 0, fmt.Errorf("failed to bump state: %w", err)
	}
	var state int64
	err = s.db.QueryRow(`SELECT state FROM state WHERE type = ? AND account_id = ?`, typeName, accountId).Scan(&state)
	if err != nil {
		return 0, fmt.Errorf("failed to read bumped state: %w", err)
	}
	return state, nil
}

// currentState returns typeName's current state token for accountId
// without bumping it, defaulting to 0 if never written.
func (s *Store) currentState(accountId, typeName string) (int64, error) {
	var state int64
	err := s.db.QueryRow(`SELECT state FROM state WHERE type = ? AND account_id = ?`, typeName, accountId).Scan(&state)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read state: %w", err)
	}
	return state, nil
}

// markDeleted raises typeName's deleted-state horizon to at least
// state — called when a row is destroyed, since a client whose
// sinceState predates this can never reconstruct the destroy as a
// delta once the row is gone for good.
func (s *Store) markDeleted(accountId, typeName string, state int64) error {
	_, err := s.db.Exec(`
		INSERT INTO state (type, account_id, state, deleted_modseq) VALUES (?, ?, ?, ?)
		ON CONFLICT(type, account_id) DO UPDATE SET deleted_modseq = MAX(deleted_modseq, excluded.deleted_modseq)
	`, typeName, accountId, state, state)
	return err
}

func (s *Store) deletedModSeq(accountId, typeName string) (int64, error) {
	var v int64
	err := s.db.QueryRow(`SELECT deleted_modseq FROM state WHERE type = ? AND account_id = ?`, typeName, accountId).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted_modseq: %w", err)
	}
	return v, nil
}

func newObjectId() string {
	return uuid.NewString()
}

func marshalFields(fields map[string]interface{}) (string, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalFields(raw string) (map[string]interface{}, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
