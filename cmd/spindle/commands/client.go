// Package commands implements the spindle CLI: a thin cobra client that
// dials the spindled daemon over its unix domain socket, grounded on the
// ancestor CLI's internal/cli/daemon_client.go DaemonClient pattern
// (generalized from an HTTP-over-TCP web daemon client to an HTTP-over-
// unix-socket tool-surface client).
package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spiritengine/spindle/internal/config"
)

// Client talks to spindled over its unix domain socket.
type Client struct {
	http *http.Client
}

func NewClient() *Client {
	socketPath := filepath.Join(config.BaseDir(), "spindle.sock")
	return &Client{
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

type daemonError struct {
	Error string `json:"error"`
}

func (c *Client) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, "http://unix"+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("spindled not reachable (is it running?): %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var derr daemonError
		if json.Unmarshal(data, &derr) == nil && derr.Error != "" {
			return fmt.Errorf("%s", derr.Error)
		}
		return fmt.Errorf("daemon request failed with status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func (c *Client) Get(path string, out any) error  { return c.do(http.MethodGet, path, nil, out) }
func (c *Client) Post(path string, body, out any) error {
	return c.do(http.MethodPost, path, body, out)
}
