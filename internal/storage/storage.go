// Package storage keeps a history of completed predictions in BoltDB.
//
// Records are keyed by zero-padded Unix-nano timestamp plus a random ID, so
// cursor order is time order and range queries are a single seek.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bird-conservation/internal/common"
	"bird-conservation/internal/traits"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const tsWidth = 20

// PredictionRecord is one completed prediction.
type PredictionRecord struct {
	ID           string       `json:"id"`
	Timestamp    time.Time    `json:"timestamp"`
	Input        traits.Input `json:"input"`
	Label        string       `json:"label"`
	ClassIndex   int          `json:"class_index"`
	ModelVersion string       `json:"model_version"`
	Source       string       `json:"source,omitempty"` // predict, batch or interactive
}

// Store provides persistent storage for prediction history using BoltDB.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

// New opens predictions.db under dataPath, creating the directory and the
// bucket when missing.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, common.PredictionsDBFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: common.StorageLockTimeoutSecs * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(common.PredictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// StorePrediction persists rec, filling ID and Timestamp when empty, and
// returns the stored record.
func (s *Store) StorePrediction(rec PredictionRecord) (PredictionRecord, error) {
	if s.db == nil {
		return PredictionRecord{}, fmt.Errorf("store is closed")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	rec.Timestamp = rec.Timestamp.UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return PredictionRecord{}, fmt.Errorf("marshal prediction: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(common.PredictionsBucket))
		return b.Put(recordKey(rec.Timestamp, rec.ID), data)
	})
	if err != nil {
		return PredictionRecord{}, fmt.Errorf("store prediction: %w", err)
	}
	return rec, nil
}

// GetPredictionsInRange returns records with start <= timestamp <= end,
// oldest first.
func (s *Store) GetPredictionsInRange(start, end time.Time) ([]PredictionRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store is closed")
	}

	var records []PredictionRecord
	startKey := tsPrefix(start)
	endKey := tsPrefix(end)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(common.PredictionsBucket)).Cursor()
		for k, v := c.Seek(startKey); k != nil && bytes.Compare(keyTS(k), endKey) <= 0; k, v = c.Next() {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) ([]PredictionRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store is closed")
	}
	if n <= 0 {
		return nil, nil
	}

	var records []PredictionRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(common.PredictionsBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(records) < n; k, v = c.Prev() {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("store is closed")
	}
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(common.PredictionsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

func tsPrefix(ts time.Time) []byte {
	nanos := ts.UnixNano()
	if nanos < 0 {
		nanos = 0
	}
	return []byte(fmt.Sprintf("%0*d", tsWidth, nanos))
}

func recordKey(ts time.Time, id string) []byte {
	return append(tsPrefix(ts), []byte("_"+id)...)
}

func keyTS(k []byte) []byte {
	if len(k) < tsWidth {
		return k
	}
	return k[:tsWidth]
}
