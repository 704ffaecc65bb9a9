package launchcache

import (
	"context"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/openlms/lticore/pkg/lti1p3"
)

var launchBucket = []byte("launches")

type boltEntry struct {
	Data     lti1p3.LaunchData `json:"data"`
	Deadline int64             `json:"deadline"`
}

// Bolt is a file-backed LaunchDataStore. Launches survive process
// restarts, which matters because the browser redirect between preflight
// and callback can outlive a deploy.
type Bolt struct {
	db *bolt.DB

	// Now overrides the clock (tests).
	Now func() time.Time
}

// OpenBolt opens (or creates) the cache file and its bucket.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(launchBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Close() error { return b.db.Close() }

func (b *Bolt) Put(_ context.Context, key string, data lti1p3.LaunchData, ttl time.Duration) error {
	raw, err := json.Marshal(boltEntry{Data: data, Deadline: b.now().Add(ttl).Unix()})
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(launchBucket).Put([]byte(key), raw)
	})
}

// Get resolves a staged launch. Expired entries are deleted lazily on
// read; there is no background sweeper.
func (b *Bolt) Get(_ context.Context, key string) (lti1p3.LaunchData, error) {
	var entry boltEntry
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(launchBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return lti1p3.LaunchData{}, err
	}
	if !found {
		return lti1p3.LaunchData{}, lti1p3.ErrLaunchDataNotFound
	}
	if b.now().Unix() > entry.Deadline {
		_ = b.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(launchBucket).Delete([]byte(key))
		})
		return lti1p3.LaunchData{}, lti1p3.ErrLaunchDataNotFound
	}
	return entry.Data, nil
}

func (b *Bolt) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now().UTC()
}
