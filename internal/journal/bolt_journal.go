package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const taskBucket = "tasks"

// boltJournal implements a Journal backed by BoltDB.
type boltJournal struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	recordTTL       time.Duration
	cleanupInterval time.Duration
}

// openBolt initializes a BoltDB-backed Journal.
func openBolt(path string, opts Options) (Journal, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(taskBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	j := &boltJournal{
		db:              db,
		recordTTL:       opts.RecordTTL,
		cleanupInterval: opts.CleanupInterval,
	}
	j.lastCleanup.Store(time.Now().Unix())
	return j, nil
}

// Close closes the BoltDB journal.
func (b *boltJournal) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Track stores or replaces the record keyed by its task id.
func (b *boltJournal) Track(rec TaskRecord) error {
	rec.TaskID = strings.TrimSpace(rec.TaskID)
	if rec.TaskID == "" {
		return fmt.Errorf("task id is required")
	}
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now().UTC()
	}

	if err := b.maybeCleanupExpired(time.Now()); err != nil {
		return err
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode task record: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(taskBucket))
		if bucket == nil {
			return fmt.Errorf("task bucket missing")
		}
		return bucket.Put([]byte(rec.TaskID), value)
	})
}

// Pending returns unexpired records, oldest first.
func (b *boltJournal) Pending() ([]TaskRecord, error) {
	now := time.Now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return nil, err
	}

	var out []TaskRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(taskBucket))
		if bucket == nil {
			return fmt.Errorf("task bucket missing")
		}
		return bucket.ForEach(func(_, v []byte) error {
			rec, ok := decodeRecord(v)
			if !ok || b.expired(rec, now) {
				return nil
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

// Done forgets a task. Unknown ids are ignored.
func (b *boltJournal) Done(taskID string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(taskBucket))
		if bucket == nil {
			return fmt.Errorf("task bucket missing")
		}
		return bucket.Delete([]byte(strings.TrimSpace(taskID)))
	})
}

func (b *boltJournal) expired(rec TaskRecord, now time.Time) bool {
	return !rec.SubmittedAt.Add(b.recordTTL).After(now)
}

// maybeCleanupExpired removes stale records on a fixed cadence.
func (b *boltJournal) maybeCleanupExpired(now time.Time) error {
	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(taskBucket))
		if bucket == nil {
			return fmt.Errorf("task bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			rec, ok := decodeRecord(v)
			if !ok || b.expired(rec, now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func decodeRecord(value []byte) (TaskRecord, bool) {
	var rec TaskRecord
	if err := json.Unmarshal(value, &rec); err != nil || rec.TaskID == "" {
		return TaskRecord{}, false
	}
	return rec, true
}
