// Package notifyclient implements the client half of the notification
// protocol: a websocket subscription for low-latency pushes, plus the
// backfill fetch of the durable notification list on every connect and
// reconnect. The push stream is a supplement, never a substitute; the
// client converges on the durable list regardless of which pushes it missed.
package notifyclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	envelopeNotification = "new_notification"

	defaultReconnectAttempts = 10
	defaultReconnectInterval = 3 * time.Second
	defaultPageLimit         = 10
)

var (
	// ErrMissingBaseURL indicates the server address was not configured.
	ErrMissingBaseURL = errors.New("notifyclient: base url required")
	// ErrMissingToken indicates no access token was configured.
	ErrMissingToken = errors.New("notifyclient: access token required")
	// ErrRetriesExhausted indicates the bounded reconnect budget ran out.
	ErrRetriesExhausted = errors.New("notifyclient: reconnect attempts exhausted")
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Config describes a client connection to one backend.
type Config struct {
	BaseURL           string
	AccessToken       string
	ReconnectAttempts int
	ReconnectInterval time.Duration
	PageLimit         int
	HTTPClient        *http.Client
	Logger            *zap.Logger
}

// Client maintains the local notification state for one user session.
type Client struct {
	baseURL           string
	accessToken       string
	reconnectAttempts int
	reconnectInterval time.Duration
	pageLimit         int
	httpClient        *http.Client
	logger            *zap.Logger
	store             *store
}

// New constructs a client. Run must be called to start the connection loop.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, ErrMissingToken
	}
	attempts := cfg.ReconnectAttempts
	if attempts <= 0 {
		attempts = defaultReconnectAttempts
	}
	interval := cfg.ReconnectInterval
	if interval <= 0 {
		interval = defaultReconnectInterval
	}
	pageLimit := cfg.PageLimit
	if pageLimit <= 0 {
		pageLimit = defaultPageLimit
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:           baseURL,
		accessToken:       cfg.AccessToken,
		reconnectAttempts: attempts,
		reconnectInterval: interval,
		pageLimit:         pageLimit,
		httpClient:        httpClient,
		logger:            logger,
		store:             newStore(),
	}, nil
}

// Notifications returns the locally known notifications, newest first.
func (c *Client) Notifications() []Notification {
	return c.store.Snapshot()
}

// Backfill fetches the durable notification list and merges it into the
// local store. It is invoked automatically on every connect inside Run and
// may also be called directly by clients that only poll.
func (c *Client) Backfill(ctx context.Context) error {
	page := 1
	for {
		listing, err := c.fetchPage(ctx, page)
		if err != nil {
			return err
		}
		for _, notification := range listing.Notifications {
			c.store.Merge(notification)
		}
		if page >= listing.TotalPages || len(listing.Notifications) == 0 {
			return nil
		}
		page++
	}
}

// Run dials the push endpoint and keeps the local store converged until the
// context is cancelled. Connection drops trigger a bounded number of redial
// attempts with a fixed backoff; each successful handshake is followed by a
// fresh backfill since the server keeps no memory of the prior connection.
func (c *Client) Run(ctx context.Context) error {
	failures := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := c.dial(ctx)
		if err != nil {
			failures++
			c.logger.Warn("websocket dial failed",
				zap.Int("attempt", failures),
				zap.Error(err))
			if failures >= c.reconnectAttempts {
				return fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
			}
			if err := sleepContext(ctx, c.reconnectInterval); err != nil {
				return err
			}
			continue
		}
		failures = 0

		if err := c.Backfill(ctx); err != nil {
			c.logger.Warn("backfill failed", zap.Error(err))
		}

		c.readLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := sleepContext(ctx, c.reconnectInterval); err != nil {
			return err
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	switch endpoint.Scheme {
	case "https":
		endpoint.Scheme = "wss"
	default:
		endpoint.Scheme = "ws"
	}
	endpoint.Path = "/ws"
	endpoint.RawQuery = url.Values{"token": []string{c.accessToken}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var received envelope
		if err := json.Unmarshal(frame, &received); err != nil {
			c.logger.Warn("discarding malformed frame", zap.Error(err))
			continue
		}
		// Unrecognized envelope types are ignored for forward compatibility.
		if received.Type != envelopeNotification {
			continue
		}
		var notification Notification
		if err := json.Unmarshal(received.Payload, &notification); err != nil {
			c.logger.Warn("discarding malformed push payload", zap.Error(err))
			continue
		}
		c.store.Merge(notification)
	}
}

type listResponse struct {
	Notifications []Notification `json:"notifications"`
	CurrentPage   int            `json:"currentPage"`
	TotalPages    int            `json:"totalPages"`
	Total         int64          `json:"totalNotifications"`
}

func (c *Client) fetchPage(ctx context.Context, page int) (listResponse, error) {
	endpoint := c.baseURL + "/api/notifications?page=" + strconv.Itoa(page) +
		"&limit=" + strconv.Itoa(c.pageLimit)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return listResponse{}, err
	}
	request.Header.Set("Authorization", "Bearer "+c.accessToken)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return listResponse{}, err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return listResponse{}, fmt.Errorf("notifyclient: list returned status %d", response.StatusCode)
	}

	var listing listResponse
	if err := json.NewDecoder(response.Body).Decode(&listing); err != nil {
		return listResponse{}, err
	}
	return listing, nil
}

func sleepContext(ctx context.Context, interval time.Duration) error {
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
