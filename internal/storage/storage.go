// Package storage keeps a local history of served predictions and training
// runs. It uses BoltDB as the underlying storage engine; records are JSON
// values under time-ordered keys so range scans come back chronologically.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"placement-predictor/internal/features"
)

const (
	predictionsBucket = "predictions" // Bucket name for served predictions
	runsBucket        = "training_runs"

	// DBFile is the database file name inside the data directory.
	DBFile = "placement-history.db"
)

// Store provides persistent storage for prediction history using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// PredictionRecord is one served prediction.
type PredictionRecord struct {
	ID           string          `json:"id"`
	RequestID    string          `json:"request_id,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	ModelVersion string          `json:"model_version"`
	Label        string          `json:"label"`
	Confidence   *float64        `json:"confidence,omitempty"`
	Record       features.Record `json:"record"`
}

// New opens (or creates) the history database in dataPath and makes sure
// every bucket exists.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, DBFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create training runs bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// timeKey orders keys by timestamp; the suffix keeps keys unique.
func timeKey(ts time.Time, suffix string) []byte {
	return []byte(fmt.Sprintf("%020d_%s", ts.UnixNano(), suffix))
}

func boundKey(ts time.Time) []byte {
	return []byte(fmt.Sprintf("%020d", ts.UnixNano()))
}

// StorePrediction appends rec to the history. A missing ID or timestamp is
// filled in and the stored record is returned.
func (s *Store) StorePrediction(rec PredictionRecord) (PredictionRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}
		return b.Put(timeKey(rec.Timestamp, rec.ID), data)
	})
	return rec, err
}

// GetPredictions returns the predictions stored between start and end,
// inclusive, oldest first.
func (s *Store) GetPredictions(start, end time.Time) ([]PredictionRecord, error) {
	var out []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()

		endKey := boundKey(end)
		for k, v := c.Seek(boundKey(start)); k != nil && bytes.Compare(k[:len(endKey)], endKey) <= 0; k, v = c.Next() {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			out = append(out, rec)
		}
		return nil
	})

	return out, err
}

// RecentPredictions returns up to n predictions, newest first.
func (s *Store) RecentPredictions(n int) ([]PredictionRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	out := make([]PredictionRecord, 0, n)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			out = append(out, rec)
		}
		return nil
	})

	return out, err
}

// CountPredictions returns the number of stored predictions.
func (s *Store) CountPredictions() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(predictionsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}
