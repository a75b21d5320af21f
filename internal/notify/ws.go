package notify

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
)

const (
	actionJoinAdmin    = "join-admin"
	actionJoinKitchen  = "join-kitchen"
	actionJoinCustomer = "join-customer"
)

// TokenVerifier guards the staff rooms. A nil verifier leaves them open.
type TokenVerifier interface {
	Verify(token string) error
}

type joinMessage struct {
	Action  string `json:"action"`
	OrderID string `json:"order_id,omitempty"`
	Token   string `json:"token,omitempty"`
}

type wsError struct {
	Error string `json:"error"`
}

// WSHandler upgrades connections and drives one subscription per socket.
// Clients pick rooms by sending join messages; everything the server sends is
// an event envelope.
type WSHandler struct {
	log      *slog.Logger
	hub      *Hub
	verifier TokenVerifier
	upgrader websocket.Upgrader
}

func NewWSHandler(log *slog.Logger, hub *Hub, verifier TokenVerifier) *WSHandler {
	return &WSHandler{
		log:      log,
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Kitchen displays and the QR tracking page are served from other
			// origins than the API.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	sub := h.hub.Subscribe()
	go h.writePump(conn, sub)
	h.readPump(conn, sub)
}

// readPump consumes join messages until the peer goes away, then tears the
// subscription down.
func (h *WSHandler) readPump(conn *websocket.Conn, sub *Subscription) {
	defer func() {
		h.hub.Unsubscribe(sub)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read error", "err", err)
			}
			return
		}
		var msg joinMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.reject(sub, "malformed message")
			continue
		}
		h.handleJoin(sub, msg)
	}
}

func (h *WSHandler) handleJoin(sub *Subscription, msg joinMessage) {
	switch msg.Action {
	case actionJoinAdmin, actionJoinKitchen:
		if h.verifier != nil {
			if err := h.verifier.Verify(msg.Token); err != nil {
				h.reject(sub, "staff rooms require a valid token")
				return
			}
		}
		room := RoomAdmin
		if msg.Action == actionJoinKitchen {
			room = RoomKitchen
		}
		h.hub.Join(sub, room)
	case actionJoinCustomer:
		orderID, err := uuid.Parse(msg.OrderID)
		if err != nil {
			h.reject(sub, "join-customer needs a valid order_id")
			return
		}
		h.hub.Join(sub, CustomerRoom(orderID))
	default:
		h.reject(sub, "unknown action")
	}
}

// reject goes through the hub so control messages share the single writer
// with room fan-out.
func (h *WSHandler) reject(sub *Subscription, reason string) {
	payload, _ := json.Marshal(wsError{Error: reason})
	h.hub.send(sub, payload)
}

// writePump pushes hub events to the peer and keeps the connection alive with
// pings. It exits when the subscription channel closes.
func (h *WSHandler) writePump(conn *websocket.Conn, sub *Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case payload, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
