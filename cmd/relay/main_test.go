package main

import (
	"bytes"
	"testing"

	"github.com/cuemby/relay/pkg/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestHealthURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":4000", "http://localhost:4000/health"},
		{"gw-1:4000", "http://gw-1:4000/health"},
		{"https://gw.example.com/", "https://gw.example.com/health"},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, healthURL(tt.addr))
		})
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	for _, bad := range []string{"", "abc", "-1", "1.5"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestContentFileParses(t *testing.T) {
	data := []byte(`
items:
  - ownerId: u1
    mediaUrl: /cdn/2024/a.mp4
    caption: first
  - ownerId: u2
    mediaUrl: /cdn/2024/b.mp4
`)

	var file ContentFile
	require.NoError(t, yaml.Unmarshal(data, &file))
	require.Len(t, file.Items, 2)
	assert.Equal(t, "u1", file.Items[0].OwnerID)
	assert.Equal(t, "/cdn/2024/a.mp4", file.Items[0].MediaURL)
	assert.Equal(t, "first", file.Items[0].Caption)
	assert.Empty(t, file.Items[1].Caption)
}

func TestWarnLocalBus(t *testing.T) {
	tests := []struct {
		driver string
		warn   bool
	}{
		{"", true},
		{events.DriverMemory, true},
		{events.DriverRedis, false},
		{events.DriverNATS, false},
	}

	for _, tt := range tests {
		t.Run("driver="+tt.driver, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)

			assert.Equal(t, tt.warn, warnLocalBus(logger, events.Config{Driver: tt.driver}))
			if tt.warn {
				assert.Contains(t, buf.String(), `"level":"warn"`)
				assert.Contains(t, buf.String(), "In-process event bus")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}
