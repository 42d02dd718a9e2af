package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/okian/vigil/pkg/metrics"
)

// Key prefix for calibration records in BadgerDB.
const recordKeyPrefix = "calibration:"

// BadgerStore implements Store on BadgerDB. Suitable for production use:
// records survive process restarts, so a candidate reloading the test page
// does not have to recalibrate.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a BadgerDB at dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

// Save persists the record for token.
func (s *BadgerStore) Save(_ context.Context, token string, rec Record) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreSaveLatency(float64(time.Since(start).Milliseconds()))
	}()

	data, err := json.Marshal(rec)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("marshal record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(recordKeyPrefix+token), data)
	})
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("set record: %w", err)
	}
	return nil
}

// Load returns the record for token, validating the feature schema. A
// record whose arrays no longer match the schema came from an older build
// and is reported as not found so the caller falls back to recalibration.
func (s *BadgerStore) Load(_ context.Context, token string) (Record, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLoadLatency(float64(time.Since(start).Milliseconds()))
	}()

	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordKeyPrefix + token))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get record: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			metrics.RecordStoreError()
		}
		return Record{}, err
	}
	if !rec.Baseline.Valid() {
		return Record{}, fmt.Errorf("%w: %w", ErrNotFound, ErrCorrupt)
	}
	return rec, nil
}

// Delete removes the record for token.
func (s *BadgerStore) Delete(_ context.Context, token string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(recordKeyPrefix + token))
	})
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return nil
}
