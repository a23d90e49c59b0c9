package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/relay/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketContent = []byte("content")

	// how long to wait for the file lock held by another process
	openTimeout = 5 * time.Second
)

// BoltStore implements Store using BoltDB. Bolt serializes write
// transactions, so a read-modify-write inside one Update is atomic with
// respect to every other writer.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store in dataDir. bbolt locks the
// file exclusively, so a second process opening the same dataDir fails with
// ErrLocked.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "relay.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: openTimeout})
	if errors.Is(err, bolt.ErrTimeout) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dbPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketContent); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketContent, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database can serve a read transaction
func (s *BoltStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketContent) == nil {
			return fmt.Errorf("bucket %s missing", bucketContent)
		}
		return nil
	})
}

func (s *BoltStore) CreateContent(ctx context.Context, in types.NewContent) (*types.Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var content *types.Content
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContent)
		id, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate id: %w", err)
		}
		content = &types.Content{
			ID:        id,
			OwnerID:   in.OwnerID,
			MediaURL:  in.MediaURL,
			Caption:   in.Caption,
			Likes:     0,
			CreatedAt: time.Now().UTC(),
		}
		return putContent(b, content)
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (s *BoltStore) GetContent(ctx context.Context, id uint64) (*types.Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var content types.Content
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketContent).Get(idKey(id))
		if data == nil {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return json.Unmarshal(data, &content)
	})
	if err != nil {
		return nil, err
	}
	return &content, nil
}

// ListLatest walks the bucket backwards; keys are big-endian ids so the last
// key is the newest record.
func (s *BoltStore) ListLatest(ctx context.Context, limit int) ([]*types.Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contents := make([]*types.Content, 0, limit)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketContent).Cursor()
		for k, v := c.Last(); k != nil && len(contents) < limit; k, v = c.Prev() {
			var content types.Content
			if err := json.Unmarshal(v, &content); err != nil {
				return err
			}
			contents = append(contents, &content)
		}
		return nil
	})
	return contents, err
}

func (s *BoltStore) IncrementLikes(ctx context.Context, id uint64) (*types.Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var content types.Content
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContent)
		data := b.Get(idKey(id))
		if data == nil {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		if err := json.Unmarshal(data, &content); err != nil {
			return err
		}
		content.Likes++
		return putContent(b, &content)
	})
	if err != nil {
		return nil, err
	}
	return &content, nil
}

func putContent(b *bolt.Bucket, content *types.Content) error {
	data, err := json.Marshal(content)
	if err != nil {
		return err
	}
	return b.Put(idKey(content.ID), data)
}

func idKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}
