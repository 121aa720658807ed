// Package storage persists payment attempt records so the gateway
// never resubmits a proof set whose outcome is unconfirmed and so
// unknown-outcome settlements can be resolved by an operator.
package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// attempt states
const (
	// proofs submitted for redemption, outcome of the melt call unconfirmed
	Redeeming = "redeeming"
	// redemption rejected by the mint, no value was consumed
	Rejected = "rejected"
	// proofs consumed, settlement in flight
	Settling = "settling"
	// settlement confirmed and change issued
	Succeeded = "succeeded"
	// settlement confirmed failed, consumed value refunded as change
	Failed = "failed"
	// settlement confirmed failed but the refund could not be issued,
	// requires out of band resolution
	FailedUnrefunded = "failed_unrefunded"
	// settlement outcome unknown, requires out of band resolution
	Unknown = "unknown"
)

// Attempt records one redemption attempt against a melt quote.
// Fingerprint identifies the submitted proof set and ProofsAmount is
// the total value of those proofs.
type Attempt struct {
	QuoteId      string `json:"quote_id"`
	MintURL      string `json:"mint_url"`
	Fingerprint  string `json:"fingerprint"`
	Amount       uint64 `json:"amount"`
	FeeReserve   uint64 `json:"fee_reserve"`
	ProofsAmount uint64 `json:"proofs_amount"`
	State        string `json:"state"`
	Receipt      string `json:"receipt,omitempty"`
	Preimage     string `json:"preimage,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

// Consumed reports whether the attempt consumed the proofs or may
// still consume them.
func (a *Attempt) Consumed() bool {
	return a.State != Rejected
}

const (
	attemptsBucket     = "attempts"
	fingerprintsBucket = "fingerprints"
)

type BoltDB struct {
	bolt *bolt.DB
}

func InitBolt(path string) (*BoltDB, error) {
	db, err := bolt.Open(filepath.Join(path, "gateway.db"), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("error setting up bolt db: %v", err)
	}

	boltdb := &BoltDB{bolt: db}
	if err := boltdb.initBuckets(); err != nil {
		return nil, fmt.Errorf("error setting up bolt db: %v", err)
	}

	return boltdb, nil
}

func (db *BoltDB) initBuckets() error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(attemptsBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(fingerprintsBucket))
		return err
	})
}

func (db *BoltDB) Close() error {
	return db.bolt.Close()
}

func (db *BoltDB) SaveAttempt(attempt Attempt) error {
	attempt.UpdatedAt = time.Now().Unix()

	jsonBytes, err := json.Marshal(attempt)
	if err != nil {
		return err
	}

	return db.bolt.Update(func(tx *bolt.Tx) error {
		attemptsb := tx.Bucket([]byte(attemptsBucket))
		if err := attemptsb.Put([]byte(attempt.QuoteId), jsonBytes); err != nil {
			return err
		}

		fingerprintsb := tx.Bucket([]byte(fingerprintsBucket))
		return fingerprintsb.Put([]byte(attempt.Fingerprint), []byte(attempt.QuoteId))
	})
}

func (db *BoltDB) GetAttempt(quoteId string) *Attempt {
	var attempt *Attempt

	db.bolt.View(func(tx *bolt.Tx) error {
		attemptsb := tx.Bucket([]byte(attemptsBucket))
		attemptBytes := attemptsb.Get([]byte(quoteId))
		if attemptBytes != nil {
			var a Attempt
			if err := json.Unmarshal(attemptBytes, &a); err == nil {
				attempt = &a
			}
		}
		return nil
	})

	return attempt
}

// GetAttemptByFingerprint returns the latest attempt that submitted
// the proof set with the given fingerprint, if any.
func (db *BoltDB) GetAttemptByFingerprint(fingerprint string) *Attempt {
	var quoteId string

	db.bolt.View(func(tx *bolt.Tx) error {
		fingerprintsb := tx.Bucket([]byte(fingerprintsBucket))
		idBytes := fingerprintsb.Get([]byte(fingerprint))
		if idBytes != nil {
			quoteId = string(idBytes)
		}
		return nil
	})

	if len(quoteId) == 0 {
		return nil
	}
	return db.GetAttempt(quoteId)
}

// GetAttemptsByState returns all attempts in the given state.
func (db *BoltDB) GetAttemptsByState(state string) []Attempt {
	attempts := make([]Attempt, 0)

	db.bolt.View(func(tx *bolt.Tx) error {
		attemptsb := tx.Bucket([]byte(attemptsBucket))
		return attemptsb.ForEach(func(k, v []byte) error {
			var attempt Attempt
			if err := json.Unmarshal(v, &attempt); err != nil {
				return nil
			}
			if attempt.State == state {
				attempts = append(attempts, attempt)
			}
			return nil
		})
	})

	return attempts
}
