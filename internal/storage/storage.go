// Package storage provides an optional audit log for served predictions,
// backed by BoltDB. Records are keyed by timestamp so time-range queries walk
// a contiguous key span. The store is enabled only when a data path is
// configured; the API never blocks on it.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"loanrisk-api/internal/decision"
)

const predictionsBucket = "predictions"

// PredictionRecord is one audited prediction outcome.
type PredictionRecord struct {
	ID                 string    `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	DefaultProbability float64   `json:"default_probability"`
	BinaryPrediction   int       `json:"binary_prediction"`
	RiskLevel          string    `json:"risk_level"`
	Decision           string    `json:"decision"`
	RiskScore          int       `json:"risk_score"`
	LoanAmount         float64   `json:"loan_amount"`
	Purpose            string    `json:"purpose"`
	Fallback           bool      `json:"fallback"`
}

// RecordFromResult builds an audit record from an assembled result.
func RecordFromResult(id string, ts time.Time, r decision.PredictionResult, loanAmount float64, purpose string, fallback bool) PredictionRecord {
	return PredictionRecord{
		ID:                 id,
		Timestamp:          ts,
		DefaultProbability: r.Prediction.DefaultProbability,
		BinaryPrediction:   r.Prediction.BinaryPrediction,
		RiskLevel:          string(r.RiskAssessment.RiskLevel),
		Decision:           r.Recommendation.Decision,
		RiskScore:          r.FeatureAnalysis.RiskScore,
		LoanAmount:         loanAmount,
		Purpose:            purpose,
		Fallback:           fallback,
	}
}

// Store persists prediction records in BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the database under dataPath and ensures the
// predictions bucket exists.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "loanrisk-audit.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create predictions bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s != nil && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StorePrediction appends one record. The key is "unixnano_id" so records
// sort chronologically and identical timestamps cannot collide.
func (s *Store) StorePrediction(rec PredictionRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal prediction record: %w", err)
		}

		key := fmt.Sprintf("%020d_%s", rec.Timestamp.UnixNano(), rec.ID)
		return b.Put([]byte(key), data)
	})
}

// GetPredictions returns records whose timestamps fall within [start, end],
// in chronological order.
func (s *Store) GetPredictions(start, end time.Time) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()

		startKey := []byte(fmt.Sprintf("%020d", start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%020d", end.UnixNano()+1))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) < 0; k, v = c.Next() {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // skip malformed records
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}

// GetRecent returns up to n of the most recent records, newest first.
func (s *Store) GetRecent(n int) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()

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
