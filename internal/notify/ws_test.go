package notify

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinehub/order-platform/internal/order/domain"
)

type stubVerifier struct {
	accept string
}

func (s *stubVerifier) Verify(token string) error {
	if token == s.accept {
		return nil
	}
	return errors.New("bad token")
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(payload, &out))
	return out
}

func TestWebsocketKitchenRoundTrip(t *testing.T) {
	hub := testHub(t)
	srv := httptest.NewServer(NewWSHandler(slog.New(slog.DiscardHandler), hub, nil))
	defer srv.Close()

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "join-kitchen"}))

	// The join is processed asynchronously; publish until the subscriber is
	// in the room.
	o := domain.Order{ID: uuid.New(), OrderNumber: "ORD-20260831-BBBB", Status: domain.StatusPending}
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(20 * time.Millisecond):
				hub.Publish(domain.NewOrderEvent(o))
			}
		}
	}()

	msg := readEvent(t, conn)
	assert.Equal(t, string(domain.EventNewOrder), msg["event"])
	assert.Equal(t, o.ID.String(), msg["order_id"])
}

func TestWebsocketCustomerJoin(t *testing.T) {
	hub := testHub(t)
	srv := httptest.NewServer(NewWSHandler(slog.New(slog.DiscardHandler), hub, nil))
	defer srv.Close()

	orderID := uuid.New()
	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "join-customer", "order_id": orderID.String()}))

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(20 * time.Millisecond):
				hub.Publish(domain.Event{Type: domain.EventStatusUpdate, OrderID: orderID, Status: domain.StatusReady, Timestamp: time.Now().UTC()})
			}
		}
	}()

	msg := readEvent(t, conn)
	assert.Equal(t, string(domain.EventStatusUpdate), msg["event"])
	assert.Equal(t, "ready", msg["status"])
}

func TestWebsocketStaffRoomRejectsBadToken(t *testing.T) {
	hub := testHub(t)
	srv := httptest.NewServer(NewWSHandler(slog.New(slog.DiscardHandler), hub, &stubVerifier{accept: "good"}))
	defer srv.Close()

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "join-kitchen", "token": "bad"}))

	msg := readEvent(t, conn)
	assert.Contains(t, msg["error"], "token")
}

func TestWebsocketUnknownAction(t *testing.T) {
	hub := testHub(t)
	srv := httptest.NewServer(NewWSHandler(slog.New(slog.DiscardHandler), hub, nil))
	defer srv.Close()

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "join-bar"}))

	msg := readEvent(t, conn)
	assert.Equal(t, "unknown action", msg["error"])
}
