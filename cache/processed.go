package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creativeprojects/mailstrip/lib"
	bolt "go.etcd.io/bbolt"
)

const (
	metadataBucket   = "metadata"
	processedBucket  = "processed"
	versionKey       = "version"
	cacheFileVersion = 1
)

// Entry records that a message has been fully handled. The subject is
// only kept for display on later runs, the fingerprint identifies the
// rewritten message content.
type Entry struct {
	Subject     string
	Date        time.Time
	Fingerprint []byte
}

// Cache is the persistent set of already processed messages, keyed by
// (folder, message identifier).
//
// It is strictly an optimization: a missing entry means the message
// will be processed again, and Reset can be called at any time without
// affecting correctness of the next run.
type Cache struct {
	dbFile string
	db     *bolt.DB
	log    lib.Logger
}

func Open(filename string) (*Cache, error) {
	return OpenWithLogger(filename, nil)
}

func OpenWithLogger(filename string, logger lib.Logger) (*Cache, error) {
	if logger == nil {
		logger = &lib.NoLog{}
	}
	options := bolt.DefaultOptions
	options.Timeout = 10 * time.Second

	err := os.MkdirAll(filepath.Dir(filename), 0700)
	if err != nil {
		return nil, fmt.Errorf("cannot open %q: %w", filename, err)
	}

	db, err := bolt.Open(filename, 0600, options)
	if err != nil {
		return nil, err
	}

	cache := &Cache{
		dbFile: filename,
		db:     db,
		log:    logger,
	}
	err = cache.init()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return cache, nil
}

func (c *Cache) init() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		version, err := SerializeInt(cacheFileVersion)
		if err != nil {
			return err
		}
		err = bucket.Put([]byte(versionKey), version)
		if err != nil {
			return err
		}
		_, err = tx.CreateBucketIfNotExists([]byte(processedBucket))
		return err
	})
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// IsProcessed indicates the message was fully handled by a previous
// run. A miss is never an error: it only means "must process".
func (c *Cache) IsProcessed(folder string, id string) bool {
	found := false
	_ = c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(processedBucket))
		if bucket == nil {
			return nil
		}
		found = bucket.Get(entryKey(folder, id)) != nil
		return nil
	})
	return found
}

// Get returns the cached entry, if any.
func (c *Cache) Get(folder string, id string) (*Entry, bool) {
	var entry *Entry
	_ = c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(processedBucket))
		if bucket == nil {
			return nil
		}
		data := bucket.Get(entryKey(folder, id))
		if data == nil {
			return nil
		}
		decoded, err := DeserializeObject[Entry](data)
		if err != nil {
			// unreadable entry is the same as no entry
			c.log.Printf("discarding cache entry %q: %s", id, err)
			return nil
		}
		entry = decoded
		return nil
	})
	return entry, entry != nil
}

func (c *Cache) MarkProcessed(folder string, id string, entry Entry) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(processedBucket))
		if bucket == nil {
			return fmt.Errorf("missing bucket %q", processedBucket)
		}
		data, err := SerializeObject(&entry)
		if err != nil {
			return err
		}
		return bucket.Put(entryKey(folder, id), data)
	})
}

// Reset drops all entries: the next run will process everything again.
func (c *Cache) Reset() error {
	c.log.Printf("resetting cache %q", c.dbFile)
	return c.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(processedBucket))
		if err != nil {
			return err
		}
		_, err = tx.CreateBucket([]byte(processedBucket))
		return err
	})
}

// Count returns the number of processed entries.
func (c *Cache) Count() int {
	count := 0
	_ = c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(processedBucket))
		if bucket == nil {
			return nil
		}
		count = bucket.Stats().KeyN
		return nil
	})
	return count
}

func entryKey(folder string, id string) []byte {
	return []byte(folder + "\x00" + id)
}
