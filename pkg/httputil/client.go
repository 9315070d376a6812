package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gelm-lang/gelm/pkg/cache"
	"github.com/gelm-lang/gelm/pkg/observability"
)

const httpTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when a package or resource doesn't exist in the registry.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// Client performs GET requests with response caching and automatic retry.
// One Client serves one namespace of the response cache (e.g. "registry:");
// responses are cached under their URL within that namespace, so repeat
// verifies do not hammer the package website.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	prefix  string
	ttl     time.Duration
	headers map[string]string
}

// NewClient creates a Client caching responses through backend under the
// given key prefix for ttl. Headers are applied to every request; pass nil
// if no default headers are needed.
func NewClient(backend cache.Cache, prefix string, ttl time.Duration, headers map[string]string) *Client {
	return &Client{
		http:    &http.Client{Timeout: httpTimeout},
		cache:   backend,
		prefix:  prefix,
		ttl:     ttl,
		headers: headers,
	}
}

// Get performs a cached HTTP GET request and JSON-decodes the response
// into v.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	body, err := c.GetBytes(ctx, url)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// GetBytes performs a cached HTTP GET request and returns the response
// body. A fresh cache entry short-circuits the network entirely; misses
// fetch with retry and populate the cache.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	key := c.prefix + url
	if data, ok, _ := c.cache.Get(ctx, key); ok {
		observability.Cache().OnCacheHit(ctx, c.prefix)
		return data, nil
	}
	observability.Cache().OnCacheMiss(ctx, c.prefix)

	data, err := c.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	_ = c.cache.Set(ctx, key, data, c.ttl)
	observability.Cache().OnCacheSet(ctx, c.prefix, len(data))
	return data, nil
}

// Download performs an uncached HTTP GET request with retry and returns
// the raw response body. Used for large one-shot payloads (package
// archives) that the content-addressed package cache already deduplicates.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := RetryWithBackoff(ctx, func() error {
		body, err := c.doRequest(ctx, url)
		if err != nil {
			return err
		}
		defer body.Close()
		data, err = io.ReadAll(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) doRequest(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return &RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
