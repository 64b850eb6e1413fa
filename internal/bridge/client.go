package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rescuemate/alertsync/internal/pkg/logger"
)

// Registrar is the foreground-facing capability of the platform scheduler:
// run a deferred task when connectivity allows, even if the foreground
// closes. Implementations that cannot reach a background scheduler return
// an error and the caller falls back to running the work in-process.
type Registrar interface {
	RequestSync(ctx context.Context, tag string) error
}

// Client connects a foreground context to the daemon's bridge endpoints.
type Client struct {
	daemonURL string
	http      *http.Client
	logger    *logger.Logger
}

// NewClient creates a bridge client against a daemon base URL
func NewClient(daemonURL string, log *logger.Logger) *Client {
	return &Client{
		daemonURL: strings.TrimRight(daemonURL, "/"),
		// No timeout: the events stream is long-lived. Request-scoped
		// deadlines come from the context.
		http:   &http.Client{},
		logger: log,
	}
}

// RequestSync asks the daemon to run a deferred sync for the given tag.
func (c *Client) RequestSync(ctx context.Context, tag string) error {
	body, err := json.Marshal(map[string]string{"tag": tag})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.daemonURL+"/sync", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sync registration rejected: status %d", resp.StatusCode)
	}
	return nil
}

// Healthy reports whether the daemon answers its health endpoint. Unlike
// RequestSync it has no side effects, so read-only callers can probe with it.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.daemonURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Listen subscribes to the daemon's event stream and invokes onMessage for
// every received message until the stream ends or ctx is cancelled.
func (c *Client) Listen(ctx context.Context, onMessage func(Message)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.daemonURL+"/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream rejected: status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			c.logger.WithError(err).Warn("dropping malformed bridge message")
			continue
		}
		onMessage(msg)
	}
	return scanner.Err()
}
