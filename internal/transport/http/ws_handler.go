package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"counseling-intake/internal/app"
	"counseling-intake/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler drives assessment sessions and the admin completion feed over websockets.
type WSHandler struct {
	service  *app.IntakeService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.IntakeService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Index int    `json:"index"`
	Value string `json:"value"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// ServeSession answers and completes the instruments of one session.
// Client messages: answer {index, value}, complete. Replies: session, progress, scored, finished, error.
func (h *WSHandler) ServeSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	snap, err := h.service.Session(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err.Error()))
		return
	}

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// single writer; gorilla connections do not allow concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Warn("ws write error", "session_id", sessionID, "error", err)
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "session", Payload: snap}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalid answer payload")
				continue
			}
			progress, err := h.service.Answer(r.Context(), sessionID, payload.Index, payload.Value)
			if err != nil {
				send <- errorMessage(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "progress", Payload: progress}
		case "complete":
			result, err := h.service.Complete(r.Context(), sessionID)
			if err != nil {
				send <- errorMessage(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "scored", Payload: result}
			if result.Session.Finished {
				summary, err := h.service.Summary(r.Context(), result.Session.RespondentID)
				if err != nil {
					send <- errorMessage(err.Error())
					continue
				}
				send <- outboundMessage[any]{Type: "finished", Payload: summary}
			}
		default:
			send <- errorMessage("unsupported message type")
		}
	}

	close(send)
	<-writerDone
}

// ServeAdmin streams every completion to an authenticated dashboard after a subscribed ack.
func (h *WSHandler) ServeAdmin(w http.ResponseWriter, r *http.Request) {
	if err := h.service.VerifyAdminPassword(r.URL.Query().Get("password")); err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, domain.ErrAdminNotConfigured) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := h.service.Subscribe()
	defer cancel()

	if err := conn.WriteJSON(outboundMessage[any]{Type: "subscribed", Payload: struct{}{}}); err != nil {
		return
	}

	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := conn.WriteJSON(outboundMessage[domain.ScoreEvent]{Type: "scored", Payload: ev}); err != nil {
					h.logger.Warn("ws write error", "error", err)
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// the dashboard only listens; reading detects the close
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}

	close(closeSignals)
	<-writerDone
}
