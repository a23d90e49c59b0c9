package cache

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"time"
)

// Cache is a key/value store with per-entry expiry. It is never the source of
// truth: callers treat every error as a miss.
type Cache interface {
	// Get returns the value stored at key, or false when absent or expired
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// SetIfAbsent stores value only when key is absent and reports whether it did
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Delete removes keys; missing keys are ignored
	Delete(ctx context.Context, keys ...string) error
	// DeleteMatching removes every key matching a glob pattern and returns the count
	DeleteMatching(ctx context.Context, pattern string) (int, error)
}

const (
	itemPrefix = "content:item:"
	listPrefix = "content:list:"

	// ListLatestKey caches the newest-first content listing
	ListLatestKey = listPrefix + "latest"
)

// ItemKey returns the key caching the single-item read of content id
func ItemKey(id uint64) string {
	return itemPrefix + strconv.FormatUint(id, 10)
}

// Namespaces maps purge namespace names to their key prefixes
var Namespaces = map[string]string{
	"item": itemPrefix,
	"list": listPrefix,
}

var (
	// ErrUnknownNamespace is returned for purge requests outside Namespaces
	ErrUnknownNamespace = errors.New("unknown cache namespace")
	// ErrBadPattern is returned for malformed purge patterns
	ErrBadPattern = errors.New("malformed cache pattern")
)

// PurgePattern builds the glob used to purge keys in namespace. An empty
// suffix matches the whole namespace. Patterns are always anchored at the
// namespace prefix so a purge never scans outside it.
func PurgePattern(namespace, suffix string) (string, error) {
	prefix, ok := Namespaces[namespace]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownNamespace, namespace)
	}
	if suffix == "" {
		suffix = "*"
	}
	if _, err := path.Match(suffix, ""); err != nil {
		return "", fmt.Errorf("%w: %q", ErrBadPattern, suffix)
	}
	return prefix + suffix, nil
}
