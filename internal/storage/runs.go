package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// TrainingRun records the outcome of one training command.
type TrainingRun struct {
	Version      string    `json:"version"`
	TrainedAt    time.Time `json:"trained_at"`
	DataPath     string    `json:"data_path"`
	BundlePath   string    `json:"bundle_path"`
	Rows         int       `json:"rows"`
	Classifier   string    `json:"classifier"`
	Accuracy     float64   `json:"accuracy"`
	F1           float64   `json:"f1"`
	TopFeatures  []string  `json:"top_features,omitempty"`
	DurationSecs float64   `json:"duration_seconds"`
}

// StoreTrainingRun appends run to the training log.
func (s *Store) StoreTrainingRun(run TrainingRun) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))

		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal training run: %w", err)
		}
		return b.Put(timeKey(run.TrainedAt, run.Version), data)
	})
}

// TrainingRuns returns every recorded run, oldest first.
func (s *Store) TrainingRuns() ([]TrainingRun, error) {
	var runs []TrainingRun

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(_, v []byte) error {
			var run TrainingRun
			if err := json.Unmarshal(v, &run); err != nil {
				return nil
			}
			runs = append(runs, run)
			return nil
		})
	})

	return runs, err
}
