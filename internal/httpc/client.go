// Package httpc provides the HTTP client used to talk to a running vision
// service, with timeouts suited to the field network.
package httpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/frc-vision/internal/errors"
)

// Default timeouts. The field network is small and either answers quickly
// or not at all.
const (
	DefaultTimeout        = 5 * time.Second
	DefaultConnectTimeout = 2 * time.Second
	DefaultKeepAlive      = 30 * time.Second
)

// NewClient creates an HTTP client with the given overall timeout.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
		},
	}
}

// GetJSON fetches url and decodes the JSON body into v.
// Non-2xx responses are errors carrying the status and the start of the body.
func GetJSON(ctx context.Context, c *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "request %s", url)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return errors.WithHint(errors.Wrapf(err, "GET %s", url),
			"is the vision service running and reachable?")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return errors.Newf("GET %s: %s: %s", url, resp.Status, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrapf(err, "decode %s", url)
	}
	return nil
}

// BaseURL turns "host", "host:port" or a full URL into an http base URL,
// using defaultPort when none is given.
func BaseURL(addr, defaultPort string) string {
	if addr == "" {
		addr = "localhost"
	}
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, defaultPort)
	}
	return fmt.Sprintf("http://%s", addr)
}
