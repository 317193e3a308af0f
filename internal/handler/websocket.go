package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"transitcat/internal/domain"
	"transitcat/internal/query"
)

const (
	wsSendBuffer   = 64
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

// WSHandler answers stat requests over a websocket. Each connection gets a
// session id; answers are written in request order.
type WSHandler struct {
	processor *query.Processor
	logger    *slog.Logger
}

func NewWSHandler(p *query.Processor, logger *slog.Logger) *WSHandler {
	return &WSHandler{processor: p, logger: logger.With("handler", "websocket")}
}

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsOutgoing struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type WelcomePayload struct {
	SessionID string `json:"session_id"`
}

type wsSession struct {
	id   string
	send chan []byte
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	session := &wsSession{id: uuid.New().String(), send: make(chan []byte, wsSendBuffer)}
	ServerStats.IncWSConnections()
	defer ServerStats.DecWSConnections()
	h.logger.Debug("websocket connected", "session_id", session.id)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.enqueue(session, wsOutgoing{Type: "welcome", Payload: WelcomePayload{SessionID: session.id}})

	go h.writeLoop(ctx, conn, session)

	h.readLoop(ctx, conn, session)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *wsSession) {
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "session_id", session.id, "error", err)
			}
			return
		}
		ServerStats.IncWSMessagesIn()

		if msgType != websocket.MessageText {
			continue
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid message format", "session_id", session.id, "error", err)
			h.enqueue(session, wsOutgoing{Type: "error", Payload: errorResponse{Error: "invalid message format"}})
			continue
		}

		switch msg.Type {
		case "request":
			var req domain.StatRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				h.enqueue(session, wsOutgoing{Type: "error", Payload: errorResponse{Error: "invalid request payload"}})
				continue
			}
			h.enqueue(session, wsOutgoing{Type: "answer", Payload: h.processor.Answer(ctx, req)})

		case "batch":
			var reqs []domain.StatRequest
			if err := json.Unmarshal(msg.Payload, &reqs); err != nil {
				h.enqueue(session, wsOutgoing{Type: "error", Payload: errorResponse{Error: "invalid batch payload"}})
				continue
			}
			h.enqueue(session, wsOutgoing{Type: "answers", Payload: h.processor.AnswerAll(ctx, reqs)})

		case "ping":
			h.enqueue(session, wsOutgoing{Type: "pong"})

		default:
			h.enqueue(session, wsOutgoing{Type: "error", Payload: errorResponse{Error: "unknown message type"}})
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *wsSession) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-session.send:
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
			ServerStats.IncWSMessagesOut()

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// enqueue drops the message when the client is not reading fast enough.
func (h *WSHandler) enqueue(session *wsSession, msg wsOutgoing) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode websocket message", "session_id", session.id, "error", err)
		return
	}

	select {
	case session.send <- data:
	default:
		h.logger.Debug("send buffer full, dropping message", "session_id", session.id, "type", msg.Type)
	}
}
