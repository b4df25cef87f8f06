package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"threadmail/models"
	"threadmail/utils"
)

var (
	batchBucket  = []byte("batches")
	threadBucket = []byte("threads")
)

// BatchStore persists completed batch analyses so the ticket-creation stage
// can cross-reference replies against their thread later.
type BatchStore struct {
	db *bolt.DB
}

// NewBatchStore opens (creating if needed) the analysis database under
// dataDir.
func NewBatchStore(dataDir string) (*BatchStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, utils.StorageError("cannot create data directory", err).WithContext("dir", dataDir)
	}

	dbPath := filepath.Join(dataDir, "threadmail.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, utils.StorageError("failed to open database", err).WithContext("path", dbPath)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(batchBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(threadBucket); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, utils.StorageError("failed to create buckets", err)
	}

	return &BatchStore{db: db}, nil
}

// Close closes the database
func (s *BatchStore) Close() error {
	return s.db.Close()
}

// SaveAnalysis stores a batch analysis under its batch id and indexes each
// retained thread group under batchID/threadID.
func (s *BatchStore) SaveAnalysis(analysis *models.BatchAnalysis) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		encoded, err := json.Marshal(analysis)
		if err != nil {
			return fmt.Errorf("failed to encode analysis: %v", err)
		}
		if err := tx.Bucket(batchBucket).Put([]byte(analysis.BatchID), encoded); err != nil {
			return err
		}

		threads := tx.Bucket(threadBucket)
		for _, group := range analysis.Threads {
			data, err := json.Marshal(group)
			if err != nil {
				return fmt.Errorf("failed to encode thread %s: %v", group.ThreadID, err)
			}
			key := threadKey(analysis.BatchID, group.ThreadID)
			if err := threads.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetAnalysis loads a batch analysis by id.
func (s *BatchStore) GetAnalysis(batchID string) (*models.BatchAnalysis, error) {
	var analysis models.BatchAnalysis
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(batchBucket).Get([]byte(batchID))
		if data == nil {
			return fmt.Errorf("batch %s not found", batchID)
		}
		return json.Unmarshal(data, &analysis)
	})
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// GetThreadGroup loads one thread group of a stored batch.
func (s *BatchStore) GetThreadGroup(batchID, threadID string) (*models.ThreadGroup, error) {
	var group models.ThreadGroup
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(threadBucket).Get(threadKey(batchID, threadID))
		if data == nil {
			return fmt.Errorf("thread %s not found in batch %s", threadID, batchID)
		}
		return json.Unmarshal(data, &group)
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// ListBatches returns the ids of all stored batches.
func (s *BatchStore) ListBatches() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(batchBucket).ForEach(func(k, v []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func threadKey(batchID, threadID string) []byte {
	return []byte(batchID + "/" + threadID)
}
