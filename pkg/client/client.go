package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cuemby/relay/pkg/types"
)

// ErrNotFound matches API errors with status 404
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the write API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client wraps the relay write API for CLI usage
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the API at addr ("host:port" or a URL)
func NewClient(addr string) *Client {
	return &Client{
		baseURL: baseURL(addr, "http"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Close releases idle connections
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// CreateContent publishes a new content record
func (c *Client) CreateContent(ownerID, mediaURL, caption string) (*types.Content, error) {
	req := types.NewContent{
		OwnerID:  ownerID,
		MediaURL: mediaURL,
		Caption:  caption,
	}

	var content types.Content
	if err := c.do(http.MethodPost, "/content", req, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

// LikeContent adds one like to a content record
func (c *Client) LikeContent(id uint64) (*types.Content, error) {
	var content types.Content
	if err := c.do(http.MethodPost, fmt.Sprintf("/content/%d/like", id), nil, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

// GetContent gets a content record by id
func (c *Client) GetContent(id uint64) (*types.Content, error) {
	var content types.Content
	if err := c.do(http.MethodGet, fmt.Sprintf("/content/%d", id), nil, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

// ListContent lists the newest content records
func (c *Client) ListContent() ([]*types.Content, error) {
	var contents []*types.Content
	if err := c.do(http.MethodGet, "/content", nil, &contents); err != nil {
		return nil, err
	}
	return contents, nil
}

// PurgeCache removes cached keys in namespace matching pattern and returns
// how many were removed. An empty pattern purges the whole namespace.
func (c *Client) PurgeCache(namespace, pattern string) (int, error) {
	path := "/cache/" + url.PathEscape(namespace)
	if pattern != "" {
		path += "/" + url.PathEscape(pattern)
	}

	var resp struct {
		Purged int `json:"purged"`
	}
	if err := c.do(http.MethodDelete, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Purged, nil
}

func (c *Client) do(method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
		var errBody struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&errBody) == nil && errBody.Error != "" {
			apiErr.Message = errBody.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// baseURL turns "host:port" into scheme://host:port, leaving full URLs alone
func baseURL(addr, scheme string) string {
	addr = strings.TrimRight(addr, "/")
	if strings.Contains(addr, "://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return scheme + "://" + addr
}
