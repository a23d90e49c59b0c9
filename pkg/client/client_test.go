package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/relay/pkg/api"
	"github.com/cuemby/relay/pkg/cache"
	"github.com/cuemby/relay/pkg/coordinator"
	"github.com/cuemby/relay/pkg/events"
	"github.com/cuemby/relay/pkg/gateway"
	"github.com/cuemby/relay/pkg/storage"
	"github.com/cuemby/relay/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStack runs a write API and one gateway shard over a shared broker
func newStack(t *testing.T) (apiURL, gatewayURL string) {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	broker := events.NewBroker(events.Options{Logger: zerolog.Nop()})
	t.Cleanup(func() { _ = broker.Close() })

	mem := cache.NewMemory()
	coord := coordinator.New(store, mem, broker, coordinator.Config{}, zerolog.Nop())
	apiSrv := httptest.NewServer(api.NewServer(api.Config{}, coord, mem, zerolog.Nop()).Handler())
	t.Cleanup(apiSrv.Close)

	shard := gateway.NewShard(gateway.Config{ShardID: "s1"}, broker, zerolog.Nop())
	require.NoError(t, shard.Subscribe(context.Background()))
	gwSrv := httptest.NewServer(shard.Handler())
	t.Cleanup(gwSrv.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shard.Stop(ctx)
	})

	return apiSrv.URL, gwSrv.URL
}

func TestClientContentLifecycle(t *testing.T) {
	apiURL, _ := newStack(t)
	c := NewClient(apiURL)
	defer c.Close()

	created, err := c.CreateContent("u1", "/cdn/2024/a.mp4", "first")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), created.ID)

	liked, err := c.LikeContent(created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), liked.Likes)

	got, err := c.GetContent(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Caption)

	list, err := c.ListContent()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	purged, err := c.PurgeCache("item", "")
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
}

func TestClientErrors(t *testing.T) {
	apiURL, _ := newStack(t)
	c := NewClient(apiURL)

	_, err := c.LikeContent(404)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.CreateContent("u1", "elsewhere.mp4", "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "/cdn/")
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = c.PurgeCache("unknown", "")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
}

func TestGatewayConnReceivesWrites(t *testing.T) {
	apiURL, gatewayURL := newStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, err := DialGateway(ctx, gatewayURL, "")
	require.NoError(t, err)
	defer g.Close()
	assert.Equal(t, "s1", g.Greeting.ShardID)

	require.NoError(t, g.SubscribeUser(ctx, "u1"))
	msg, err := g.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.MessageSubscribed, msg.Type)

	require.NoError(t, g.Ping(ctx))
	msg, err = g.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.MessagePong, msg.Type)

	_, err = NewClient(apiURL).CreateContent("u1", "/cdn/b.mp4", "")
	require.NoError(t, err)

	msg, err = g.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.MessageNewContent, msg.Type)
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:3000", baseURL(":3000", "http"))
	assert.Equal(t, "http://api:3000", baseURL("api:3000/", "http"))
	assert.Equal(t, "https://api.example.com", baseURL("https://api.example.com", "http"))
	assert.Equal(t, "ws://gw:4000", baseURL("gw:4000", "ws"))
}

func TestAPIErrorIs(t *testing.T) {
	assert.True(t, errors.Is(&APIError{StatusCode: 404}, ErrNotFound))
	assert.False(t, errors.Is(&APIError{StatusCode: 500}, ErrNotFound))
}
