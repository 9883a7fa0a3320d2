package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/billparse/internal/bill"
	"github.com/MeKo-Tech/billparse/internal/billpipe"
)

const (
	wsReadTimeout = 60 * time.Second
	wsPingPeriod  = 30 * time.Second
)

// WebSocket message types.
const (
	MessageStarted  = "started"
	MessageProgress = "progress"
	MessageResult   = "result"
	MessageError    = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketMessage is sent from server to client.
type WebSocketMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// StartedPayload announces the page count of a document.
type StartedPayload struct {
	Document string `json:"document"`
	Pages    int    `json:"pages"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// extractWebSocketHandler streams per-page progress for extraction requests.
func (s *Server) extractWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	header := http.Header{}
	header.Set(RequestIDHeader, RequestIDFromContext(r.Context()))
	conn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr,
		"request_id", RequestIDFromContext(r.Context()))

	s.handleWebSocketConnection(r.Context(), conn)
}

func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
		}
		// Processing may outlast the read deadline.
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	}
}

func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	requestID := RequestIDFromContext(ctx)

	var req ExtractRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, requestID, fmt.Sprintf("invalid request body: %v", err), "")
		return
	}
	if req.Document == "" {
		s.sendWebSocketError(conn, requestID, "invalid request body: document url is required", "")
		return
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	obs := &wsObserver{server: s, conn: conn, requestID: requestID, document: req.Document}
	res, err := s.processor.ProcessURL(ctx, req.Document, obs)
	if err != nil {
		kind := billpipe.KindOf(err)
		extractRequestsTotal.WithLabelValues("websocket", outcomeLabel(kind)).Inc()
		s.sendWebSocketError(conn, requestID, err.Error(), string(kind))
		return
	}
	extractRequestsTotal.WithLabelValues("websocket", resultOutcome(res)).Inc()
	s.sendWebSocketMessage(conn, WebSocketMessage{
		Type:      MessageResult,
		RequestID: requestID,
		Payload:   responseFromResult(res),
	})
}

// wsObserver forwards pipeline progress to the client.
type wsObserver struct {
	server    *Server
	conn      WebSocketConnWriter
	requestID string
	document  string
}

func (o *wsObserver) OnStart(pages int) {
	o.server.sendWebSocketMessage(o.conn, WebSocketMessage{
		Type:      MessageStarted,
		RequestID: o.requestID,
		Payload:   StartedPayload{Document: o.document, Pages: pages},
	})
}

func (o *wsObserver) OnPage(ev billpipe.PageEvent) {
	o.server.sendWebSocketMessage(o.conn, WebSocketMessage{
		Type:      MessageProgress,
		RequestID: o.requestID,
		Payload:   ev,
	})
}

// OnComplete is a no-op; the result message follows once ProcessURL returns.
func (o *wsObserver) OnComplete(bill.Document, bill.TokenUsage) {}

func (s *Server) sendWebSocketMessage(conn WebSocketConnWriter, msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to marshal WebSocket message", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("Failed to send WebSocket message", "error", err, "type", msg.Type)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, message, kind string) {
	s.logger.Warn("WebSocket request failed", slog.String("request_id", requestID), slog.String("error", message))
	s.sendWebSocketMessage(conn, WebSocketMessage{
		Type:      MessageError,
		RequestID: requestID,
		Payload:   ErrorResponse{IsSuccess: false, Message: message, Kind: kind, RequestID: requestID},
	})
}
