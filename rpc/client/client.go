package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/wbKV/lib/savesvc"
	"github.com/ValentinKolb/wbKV/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

var (
	Logger = logger.GetLogger("rpc")
)

// Client is a http client of the save service api
type Client struct {
	serverURLs []*url.URL
	client     *http.Client
	counter    atomic.Uint32
	retryCount int
}

// NewRPCClient creates a new client for the given endpoints
func NewRPCClient(config common.ClientConfig) (*Client, error) {
	if len(config.Endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints configured")
	}

	// Parse each server URL
	parsedURLs := make([]*url.URL, len(config.Endpoints))
	for i, server := range config.Endpoints {
		if !strings.Contains(server, "://") {
			server = "http://" + server
		}
		parsedURL, err := url.Parse(strings.TrimSuffix(server, "/"))
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint %q: %w", server, err)
		}
		parsedURLs[i] = parsedURL
	}

	timeout := time.Duration(config.TimeoutSecond) * time.Second

	// Create client with default transport
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     timeout,
		},
	}

	retries := config.RetryCount
	if retries < 1 {
		retries = 1
	}

	return &Client{
		serverURLs: parsedURLs,
		client:     client,
		retryCount: retries,
	}, nil
}

// --------------------------------------------------------------------------
// Key/Value Operations
// --------------------------------------------------------------------------

// Save stores the value under the key
func (c *Client) Save(ctx context.Context, key, value string) (savesvc.RetCode, error) {
	resp, err := c.invoke(ctx, http.MethodPut, keyPath(key), []byte(value))
	if err != nil {
		return savesvc.RetCOffline, err
	}
	return resp.RetCode()
}

// Load returns the value of the key. The value is only valid if the code is RetCSuccess.
func (c *Client) Load(ctx context.Context, key string) (string, savesvc.RetCode, error) {
	resp, err := c.invoke(ctx, http.MethodGet, keyPath(key), nil)
	if err != nil {
		return "", savesvc.RetCOffline, err
	}
	code, err := resp.RetCode()
	return resp.Data, code, err
}

// Delete removes the value of the key
func (c *Client) Delete(ctx context.Context, key string) (savesvc.RetCode, error) {
	resp, err := c.invoke(ctx, http.MethodDelete, keyPath(key), nil)
	if err != nil {
		return savesvc.RetCOffline, err
	}
	return resp.RetCode()
}

// Exists checks whether a value for the key exists
func (c *Client) Exists(ctx context.Context, key string) (savesvc.RetCode, error) {
	resp, err := c.invoke(ctx, http.MethodGet, keyPath(key)+"/exists", nil)
	if err != nil {
		return savesvc.RetCOffline, err
	}
	return resp.RetCode()
}

// --------------------------------------------------------------------------
// Control Operations
// --------------------------------------------------------------------------

// Flush makes the server write all pending values to its store
func (c *Client) Flush(ctx context.Context) error {
	resp, err := c.invoke(ctx, http.MethodPost, "/flush", nil)
	if err != nil {
		return err
	}
	code, err := resp.RetCode()
	if err != nil {
		return err
	}
	if code != savesvc.RetCSuccess {
		return fmt.Errorf("flush failed (%s): %s", code, resp.Err)
	}
	return nil
}

// Stats returns the statistics of the server
func (c *Client) Stats(ctx context.Context) (savesvc.Stats, error) {
	var stats savesvc.Stats
	raw, _, err := c.send(ctx, http.MethodGet, "/stats", nil)
	if err != nil {
		return stats, err
	}
	if err := json.Unmarshal(raw, &stats); err != nil {
		return stats, fmt.Errorf("decode stats: %w", err)
	}
	return stats, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func keyPath(key string) string {
	return "/kv/" + url.PathEscape(key)
}

// invoke sends a request and decodes the key/value api response
func (c *Client) invoke(ctx context.Context, method, path string, body []byte) (*common.Response, error) {
	raw, header, err := c.send(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	resp := &common.Response{}
	if err := json.Unmarshal(raw, resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Code == "" {
		resp.Code = header.Get(common.HeaderResultCode)
	}
	return resp, nil
}

// send performs the request round-robin over the endpoints, retrying transport errors
func (c *Client) send(ctx context.Context, method, path string, body []byte) ([]byte, http.Header, error) {
	var lastErr error
	for i := 0; i < c.retryCount; i++ {
		// Select the next server via round-robin
		idx := c.counter.Add(1) % uint32(len(c.serverURLs))
		serverURL := c.serverURLs[idx]

		req, err := http.NewRequestWithContext(ctx, method, serverURL.String()+path, bytes.NewReader(body))
		if err != nil {
			return nil, nil, err
		}

		httpResponse, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			Logger.Debugf("request to %s failed (attempt %d/%d): %v", serverURL, i+1, c.retryCount, err)
			continue
		}

		raw, err := io.ReadAll(httpResponse.Body)
		if closeErr := httpResponse.Body.Close(); closeErr != nil {
			Logger.Errorf("Failed to close response body: %v", closeErr)
		}
		if err != nil {
			lastErr = err
			continue
		}
		return raw, httpResponse.Header, nil
	}
	return nil, nil, fmt.Errorf("request %s %s failed after %d attempts: %w", method, path, c.retryCount, lastErr)
}
