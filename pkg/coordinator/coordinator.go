package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/relay/pkg/cache"
	"github.com/cuemby/relay/pkg/events"
	"github.com/cuemby/relay/pkg/metrics"
	"github.com/cuemby/relay/pkg/storage"
	"github.com/cuemby/relay/pkg/types"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when the requested content does not exist
	ErrNotFound = errors.New("content not found")
	// ErrInvalid is returned when a create request fails validation
	ErrInvalid = errors.New("invalid content")
)

// MediaPrefix is the path every MediaURL must live under
const MediaPrefix = "/cdn/"

// Config holds the cache lifetimes and listing size used by a Coordinator
type Config struct {
	ItemTTL   time.Duration
	ListTTL   time.Duration
	ListLimit int
}

// DefaultConfig returns the lifetimes used when none are configured
func DefaultConfig() Config {
	return Config{
		ItemTTL:   15 * time.Minute,
		ListTTL:   5 * time.Minute,
		ListLimit: 20,
	}
}

// Coordinator sequences every mutation as store commit, then cache
// invalidation, then event publication. Reads go through the cache.
type Coordinator struct {
	store  storage.Store
	cache  cache.Cache
	bus    events.Bus
	cfg    Config
	logger zerolog.Logger
}

// New creates a Coordinator. Zero fields of cfg fall back to DefaultConfig.
func New(store storage.Store, c cache.Cache, bus events.Bus, cfg Config, logger zerolog.Logger) *Coordinator {
	def := DefaultConfig()
	if cfg.ItemTTL <= 0 {
		cfg.ItemTTL = def.ItemTTL
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = def.ListTTL
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = def.ListLimit
	}
	return &Coordinator{
		store:  store,
		cache:  c,
		bus:    bus,
		cfg:    cfg,
		logger: logger,
	}
}

// Validate checks the caller-supplied fields of a create request
func Validate(in types.NewContent) error {
	if strings.TrimSpace(in.OwnerID) == "" {
		return fmt.Errorf("%w: ownerId is required", ErrInvalid)
	}
	if strings.TrimSpace(in.MediaURL) == "" {
		return fmt.Errorf("%w: mediaUrl is required", ErrInvalid)
	}
	if !strings.HasPrefix(in.MediaURL, MediaPrefix) {
		return fmt.Errorf("%w: mediaUrl must start with %s", ErrInvalid, MediaPrefix)
	}
	return nil
}

// Create stores a new content record, drops the cached listing and announces
// the record on content:created.
func (c *Coordinator) Create(ctx context.Context, in types.NewContent) (*types.Content, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.WriteDuration, "create")

	content, err := c.store.CreateContent(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("creating content: %w", err)
	}

	// The commit has happened; finish the sequence even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	c.invalidate(ctx, "create", cache.ListLatestKey)
	c.publish(ctx, events.TopicContentCreated, content)

	c.logger.Info().
		Uint64("content_id", content.ID).
		Str("owner_id", content.OwnerID).
		Msg("Content created")
	return content, nil
}

// Like adds one like to id and announces the new counter on content:liked.
func (c *Coordinator) Like(ctx context.Context, id uint64) (*types.Content, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.WriteDuration, "like")

	content, err := c.store.IncrementLikes(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("liking content %d: %w", id, err)
	}

	ctx = context.WithoutCancel(ctx)
	c.invalidate(ctx, "like", cache.ItemKey(id), cache.ListLatestKey)
	c.publish(ctx, events.TopicContentLiked, types.LikeUpdate{ID: content.ID, Likes: content.Likes})

	return content, nil
}

// Get returns a single record, served from the cache when present
func (c *Coordinator) Get(ctx context.Context, id uint64) (*types.Content, error) {
	var content types.Content
	err := c.readThrough(ctx, cache.ItemKey(id), c.cfg.ItemTTL, &content, func() (any, error) {
		loaded, err := c.store.GetContent(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return loaded, err
	})
	if err != nil {
		return nil, err
	}
	return &content, nil
}

// ListLatest returns the newest records, served from the cache when present
func (c *Coordinator) ListLatest(ctx context.Context) ([]*types.Content, error) {
	var contents []*types.Content
	err := c.readThrough(ctx, cache.ListLatestKey, c.cfg.ListTTL, &contents, func() (any, error) {
		return c.store.ListLatest(ctx, c.cfg.ListLimit)
	})
	if err != nil {
		return nil, err
	}
	if contents == nil {
		contents = []*types.Content{}
	}
	return contents, nil
}

// readThrough decodes key into dst on a hit. On a miss, or any cache
// failure, it loads from the store and populates key only if no concurrent
// reader already has.
func (c *Coordinator) readThrough(ctx context.Context, key string, ttl time.Duration, dst any, load func() (any, error)) error {
	data, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheRequests.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed, falling back to store")
	case ok:
		if jerr := json.Unmarshal(data, dst); jerr == nil {
			metrics.CacheRequests.WithLabelValues("hit").Inc()
			return nil
		}
		metrics.CacheRequests.WithLabelValues("error").Inc()
		c.logger.Warn().Str("key", key).Msg("Discarding undecodable cache entry")
	default:
		metrics.CacheRequests.WithLabelValues("miss").Inc()
	}

	value, err := load()
	if err != nil {
		return err
	}
	data, err = json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if _, err := c.cache.SetIfAbsent(ctx, key, data, ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache populate failed")
	}
	return json.Unmarshal(data, dst)
}

func (c *Coordinator) invalidate(ctx context.Context, op string, keys ...string) {
	if err := c.cache.Delete(ctx, keys...); err != nil {
		metrics.CacheInvalidations.WithLabelValues("error").Inc()
		c.logger.Warn().
			Err(err).
			Str("op", op).
			Strs("keys", keys).
			Msg("Cache invalidation failed, entries expire by TTL")
		return
	}
	metrics.CacheInvalidations.WithLabelValues("ok").Inc()
}

func (c *Coordinator) publish(ctx context.Context, topic string, payload any) {
	if err := c.bus.Publish(ctx, topic, payload); err != nil {
		metrics.BusErrors.WithLabelValues("publish").Inc()
		c.logger.Warn().Err(err).Str("topic", topic).Msg("Event publish failed")
	}
}
