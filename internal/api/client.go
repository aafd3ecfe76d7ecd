package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hostwatch/internal/addrutil"
	"hostwatch/internal/model"
)

const (
	opHealth = "health"
	opStatus = "system status"
)

// Client is a thin HTTP client for the status endpoints of monitored hosts.
type Client struct {
	http *http.Client
}

// NewClient creates a client whose requests time out after timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// Health probes http://{hostname}/health. Any 2xx means healthy; everything
// else is a *FetchError.
func (c *Client) Health(ctx context.Context, hostname string) (bool, error) {
	url := addrutil.HTTPURL(hostname, addrutil.HealthPath)
	res, err := c.get(ctx, url)
	if err != nil {
		return false, &FetchError{Op: opHealth, URL: url, Kind: ErrNetwork, Err: err}
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
	return true, nil
}

// Status fetches http://{hostname}/api/status.
func (c *Client) Status(ctx context.Context, hostname string) (model.HostRecord, error) {
	var rec model.HostRecord
	url := addrutil.HTTPURL(hostname, addrutil.StatusPath)
	res, err := c.get(ctx, url)
	if err != nil {
		return rec, &FetchError{Op: opStatus, URL: url, Kind: ErrNetwork, Err: err}
	}
	defer res.Body.Close()

	if err := json.NewDecoder(res.Body).Decode(&rec); err != nil {
		return model.HostRecord{}, &FetchError{Op: opStatus, URL: url, Kind: ErrDecode, Err: err}
	}
	return rec, nil
}

// get performs the request and turns non-2xx responses into errors. On
// success the caller owns the body.
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer res.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			return nil, fmt.Errorf("%s: %s", res.Status, msg)
		}
		return nil, fmt.Errorf("%s", res.Status)
	}
	return res, nil
}
