package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"threadmail/models"
)

// cacheEntry holds one cached folder fetch with its expiration.
type cacheEntry struct {
	Records    []*models.MessageRecord `json:"records"`
	Expiration time.Time               `json:"expiration"`
}

// RecordCache keeps recently fetched message records in memory with
// expiration, optionally persisted to disk so a restarted run can reuse a
// fetch that is still fresh.
type RecordCache struct {
	entries  map[string]*cacheEntry
	mu       sync.RWMutex
	diskPath string
}

// NewRecordCache creates a record cache. diskPath may be empty to keep the
// cache memory-only.
func NewRecordCache(diskPath string) *RecordCache {
	if diskPath != "" {
		os.MkdirAll(diskPath, 0755)
	}
	return &RecordCache{
		entries:  make(map[string]*cacheEntry),
		diskPath: diskPath,
	}
}

// Set stores records under the key with the given time to live.
func (c *RecordCache) Set(key string, records []*models.MessageRecord, ttl time.Duration) {
	entry := &cacheEntry{
		Records:    records,
		Expiration: time.Now().Add(ttl),
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()

	if c.diskPath != "" {
		c.saveToDisk(key, entry)
	}
}

// Get returns the cached records for the key, falling back to disk, or
// (nil, false) when absent or expired. Expired entries are evicted.
func (c *RecordCache) Get(key string) ([]*models.MessageRecord, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if exists {
		if time.Now().After(entry.Expiration) {
			c.Delete(key)
			return nil, false
		}
		return entry.Records, true
	}

	if c.diskPath != "" {
		if diskEntry, found := c.loadFromDisk(key); found {
			if time.Now().After(diskEntry.Expiration) {
				c.deleteFromDisk(key)
				return nil, false
			}
			c.mu.Lock()
			c.entries[key] = diskEntry
			c.mu.Unlock()
			return diskEntry.Records, true
		}
	}

	return nil, false
}

// Delete removes an entry from memory and disk.
func (c *RecordCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	if c.diskPath != "" {
		c.deleteFromDisk(key)
	}
}

// Size returns the number of entries currently held in memory.
func (c *RecordCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Persistence helpers. Keys contain folder names, so path separators are
// flattened before use as a file name.

func (c *RecordCache) cacheFile(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(key)
	return filepath.Join(c.diskPath, safe+".cache")
}

func (c *RecordCache) saveToDisk(key string, entry *cacheEntry) {
	file, err := os.Create(c.cacheFile(key))
	if err == nil {
		defer file.Close()
		json.NewEncoder(file).Encode(entry)
	}
}

func (c *RecordCache) loadFromDisk(key string) (*cacheEntry, bool) {
	file, err := os.Open(c.cacheFile(key))
	if err != nil {
		return nil, false
	}
	defer file.Close()

	var entry cacheEntry
	if err := json.NewDecoder(file).Decode(&entry); err != nil {
		return nil, false
	}
	return &entry, true
}

func (c *RecordCache) deleteFromDisk(key string) {
	os.Remove(c.cacheFile(key))
}
