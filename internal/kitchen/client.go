package kitchen

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dinehub/order-platform/internal/order/domain"
)

const (
	// reconnectBackoff paces redial attempts after a dropped socket.
	reconnectBackoff = 2 * time.Second
	// DefaultReloadInterval paces the periodic full reloads that reconcile
	// anything push delivery missed.
	DefaultReloadInterval = 30 * time.Second
)

// Client hosts a Projector on a kitchen display: it joins the kitchen room
// over websocket, reloads the full list on connect and on an interval, and
// feeds both into the projector.
type Client struct {
	log       *slog.Logger
	projector *Projector
	serverURL string
	wsURL     string
	token     string
	reload    time.Duration
	httpc     *http.Client
}

func NewClient(log *slog.Logger, projector *Projector, serverURL, wsURL, token string, reload time.Duration) *Client {
	if reload <= 0 {
		reload = DefaultReloadInterval
	}
	return &Client{
		log:       log,
		projector: projector,
		serverURL: serverURL,
		wsURL:     wsURL,
		token:     token,
		reload:    reload,
		httpc:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Run blocks until the context is cancelled, maintaining the subscription and
// the reload schedule.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Reload(ctx); err != nil {
		c.log.Warn("initial reload failed", "err", err)
	}

	ticker := time.NewTicker(c.reload)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.Reload(ctx); err != nil {
					c.log.Warn("periodic reload failed", "err", err)
				}
			}
		}
	}()

	for {
		if err := c.subscribe(ctx); err != nil {
			c.log.Warn("kitchen subscription lost", "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectBackoff):
		}
	}
}

// subscribe dials the event channel, joins the kitchen room, and pumps events
// into the projector until the connection drops. A reload runs right after
// joining to cover the disconnection gap.
func (c *Client) subscribe(ctx context.Context) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	join := map[string]string{"action": "join-kitchen", "token": c.token}
	if err := conn.WriteJSON(join); err != nil {
		return fmt.Errorf("join kitchen room: %w", err)
	}

	if err := c.Reload(ctx); err != nil {
		c.log.Warn("post-connect reload failed", "err", err)
	}

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
		var ev domain.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if ev.Type == "" {
			// Control message (join rejection etc.), not an event envelope.
			continue
		}
		c.projector.ApplyEvent(ev)
	}
}

// Reload fetches the full order list and hands it to the projector as a
// snapshot.
func (c *Client) Reload(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/orders", nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("list orders: %s: %s", resp.Status, body)
	}

	var orders []domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return fmt.Errorf("decode order list: %w", err)
	}
	c.projector.ApplySnapshot(orders)
	return nil
}
