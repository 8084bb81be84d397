package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketSource reads events from the notification service's /ws endpoint.
type WebSocketSource struct {
	URL       string
	SessionID string
	Token     string
	ClientID  string
	Dialer    *websocket.Dialer

	MinRetryDelay time.Duration
	MaxRetryDelay time.Duration

	logger *slog.Logger
}

func NewWebSocketSource(feedURL, sessionID, token string, logger *slog.Logger) *WebSocketSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketSource{
		URL:           feedURL,
		SessionID:     sessionID,
		Token:         token,
		ClientID:      uuid.NewString(),
		Dialer:        websocket.DefaultDialer,
		MinRetryDelay: 2 * time.Second,
		MaxRetryDelay: 30 * time.Second,
		logger:        logger,
	}
}

func (s *WebSocketSource) endpoint() (string, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	if s.SessionID != "" {
		q.Set("sessionId", s.SessionID)
	}
	q.Set("clientId", s.ClientID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Listen redials after every disconnect, waiting 1.5x longer each time, until
// ctx ends. Disconnects are logged and never surface as status changes.
func (s *WebSocketSource) Listen(ctx context.Context, handle Handler) error {
	target, err := s.endpoint()
	if err != nil {
		return err
	}

	delay := s.MinRetryDelay
	for {
		connected, err := s.listenOnce(ctx, target, handle)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			delay = s.MinRetryDelay
		}

		s.logger.Warn("realtime feed disconnected, redialing", "error", err, "retry_in", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * 1.5)
		if delay > s.MaxRetryDelay {
			delay = s.MaxRetryDelay
		}
	}
}

func (s *WebSocketSource) listenOnce(ctx context.Context, target string, handle Handler) (bool, error) {
	header := http.Header{}
	if s.Token != "" {
		header.Set("Authorization", "Bearer "+s.Token)
	}

	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial feed: %w (status %d)", err, resp.StatusCode)
		}
		return false, fmt.Errorf("dial feed: %w", err)
	}
	s.logger.Info("connected to realtime feed", "client_id", s.ClientID, "session_id", s.SessionID)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
			conn.Close()
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			handle(data)
		}
	}
}
