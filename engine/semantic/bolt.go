package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"
)

var chunksBucket = []byte("chunks")

// BoltStore is an embedded single-file Store for development and small
// deployments. Keys are videoID|recordID so a video's records occupy one
// contiguous key range.
type BoltStore struct {
	db  *bolt.DB
	log *slog.Logger
}

// OpenBolt opens (or creates) the database file and ensures the bucket.
func OpenBolt(path string, log *slog.Logger) (*BoltStore, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("semantic: open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(chunksBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("semantic: create bucket: %w", err)
	}
	return &BoltStore{db: db, log: log}, nil
}

// Close closes the underlying database file.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

func boltKey(videoID, id string) []byte {
	return []byte(videoID + "|" + id)
}

// Insert writes records in one transaction. Content-addressed IDs make a
// repeated insert of the same record a harmless overwrite.
func (b *BoltStore) Insert(ctx context.Context, records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(chunksBucket)
		for _, r := range records {
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("semantic: marshal record %s: %w", r.ID, err)
			}
			if err := bkt.Put(boltKey(r.VideoID, r.ID), data); err != nil {
				return fmt.Errorf("semantic: put record %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

// HasVideo reports whether any key carries the video's prefix.
func (b *BoltStore) HasVideo(ctx context.Context, videoID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	prefix := []byte(videoID + "|")
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(chunksBucket).Cursor()
		k, _ := c.Seek(prefix)
		found = k != nil && bytes.HasPrefix(k, prefix)
		return nil
	})
	return found, err
}

// StoredTexts returns (chunk_index, text) for every record of the video.
// Records that fail to decode are skipped, not fatal: one corrupted row
// must not block dedup for the rest of the video.
func (b *BoltStore) StoredTexts(ctx context.Context, videoID string) ([]StoredText, error) {
	var out []StoredText
	err := b.scan(ctx, videoID, func(r ChunkRecord) {
		out = append(out, StoredText{Index: r.ChunkIndex, Text: r.Text})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Records fetches all records, optionally scoped to one video.
func (b *BoltStore) Records(ctx context.Context, videoID string) ([]ChunkRecord, error) {
	var out []ChunkRecord
	err := b.scan(ctx, videoID, func(r ChunkRecord) {
		out = append(out, r)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of decodable records in scope.
func (b *BoltStore) Count(ctx context.Context, videoID string) (int, error) {
	n := 0
	err := b.scan(ctx, videoID, func(ChunkRecord) { n++ })
	return n, err
}

// DeleteVideo removes every record for the video.
func (b *BoltStore) DeleteVideo(ctx context.Context, videoID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prefix := []byte(videoID + "|")
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(chunksBucket)
		c := bkt.Cursor()
		var keys [][]byte
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := bkt.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BoltStore) scan(ctx context.Context, videoID string, visit func(ChunkRecord)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(chunksBucket).Cursor()
		decode := func(k, v []byte) {
			var r ChunkRecord
			if err := json.Unmarshal(v, &r); err != nil {
				b.log.Warn("skipping corrupted record", "key", string(k), "error", err)
				return
			}
			visit(r)
		}
		if videoID == "" {
			for k, v := c.First(); k != nil; k, v = c.Next() {
				decode(k, v)
			}
			return nil
		}
		prefix := []byte(videoID + "|")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			decode(k, v)
		}
		return nil
	})
}
