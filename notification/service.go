package main

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"mentorlounge/shared/auth"
	"mentorlounge/shared/message"
)

type WebSocketClient struct {
	conn      *websocket.Conn
	sessionID string
	clientID  string
	writeMu   sync.Mutex
}

func (c *WebSocketClient) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// NotificationService fans plan-build events out to websocket clients.
type NotificationService struct {
	clients      map[string]*WebSocketClient
	clientsMutex sync.RWMutex
	upgrader     websocket.Upgrader
	logger       *slog.Logger
}

func NewNotificationService(logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{
		clients: make(map[string]*WebSocketClient),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// Router serves /ws and /health. A nil signer disables authentication.
func (ns *NotificationService) Router(signer *auth.Signer) *mux.Router {
	r := mux.NewRouter()
	if signer != nil {
		r.Use(signer.Middleware)
	}
	r.HandleFunc("/ws", ns.HandleWebSocket)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (ns *NotificationService) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ns.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ns.logger.Warn("failed to upgrade connection", "error", err)
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	client := &WebSocketClient{
		conn:      conn,
		sessionID: sessionID, // empty receives every session
		clientID:  clientID,
	}

	ns.clientsMutex.Lock()
	if prev, ok := ns.clients[clientID]; ok {
		prev.conn.Close()
	}
	ns.clients[clientID] = client
	ns.clientsMutex.Unlock()
	ns.logger.Info("client connected", "client_id", clientID, "session_id", sessionID)

	defer func() {
		ns.clientsMutex.Lock()
		if ns.clients[clientID] == client {
			delete(ns.clients, clientID)
		}
		ns.clientsMutex.Unlock()
		conn.Close()
		ns.logger.Info("client disconnected", "client_id", clientID)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				ns.logger.Warn("websocket error", "client_id", clientID, "error", err)
			}
			return
		}
	}
}

// Broadcast sends payload to every client watching sessionID and returns how
// many received it.
func (ns *NotificationService) Broadcast(sessionID string, payload []byte) int {
	ns.clientsMutex.RLock()
	defer ns.clientsMutex.RUnlock()

	sent := 0
	for clientID, client := range ns.clients {
		if client.sessionID != "" && client.sessionID != sessionID {
			continue
		}
		if err := client.write(payload); err != nil {
			// the connection handler cleans the client up
			ns.logger.Warn("failed to send message to client", "client_id", clientID, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// HandleEvent relays one plan event from the brokers. Payloads are forwarded
// unchanged so clients see the type tag the producer set.
func (ns *NotificationService) HandleEvent(payload []byte) {
	ev, err := message.Decode(payload)
	if err != nil {
		ns.logger.Warn("dropping malformed event", "error", err)
		return
	}
	if u, ok := ev.(message.Unrecognized); ok {
		ns.logger.Debug("dropping unrecognized event", "type", u.Type)
		return
	}

	sent := ns.Broadcast(ev.Session(), payload)
	if _, ok := ev.(message.PlanCompletionMessage); ok {
		ns.logger.Info("broadcasted completion", "session_id", ev.Session(), "clients", sent)
	}
}

func (ns *NotificationService) ClientCount() int {
	ns.clientsMutex.RLock()
	defer ns.clientsMutex.RUnlock()
	return len(ns.clients)
}
