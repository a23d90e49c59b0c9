package storage

import (
	"context"
	"errors"

	"github.com/cuemby/relay/pkg/types"
)

// ErrNotFound is returned when a content record does not exist
var ErrNotFound = errors.New("content not found")

// ErrLocked is returned when another process holds the content store open.
// A store file has a single writer process.
var ErrLocked = errors.New("content store is in use by another process")

// Store defines the interface for the content source of truth.
type Store interface {
	// CreateContent inserts a record, assigning its id, with zero likes
	CreateContent(ctx context.Context, in types.NewContent) (*types.Content, error)
	GetContent(ctx context.Context, id uint64) (*types.Content, error)
	// ListLatest returns up to limit records, newest first
	ListLatest(ctx context.Context, limit int) ([]*types.Content, error)
	// IncrementLikes atomically adds one like and returns the updated record
	IncrementLikes(ctx context.Context, id uint64) (*types.Content, error)

	// Utility
	Ping(ctx context.Context) error
	Close() error
}
