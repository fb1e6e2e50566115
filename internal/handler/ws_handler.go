package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/oesys/oes-backend/internal/config"
	"github.com/oesys/oes-backend/internal/middleware"
	"github.com/oesys/oes-backend/internal/service"
	ws "github.com/oesys/oes-backend/internal/websocket"
	"github.com/oesys/oes-backend/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// tickInterval is how often the live channel pushes remaining time.
const tickInterval = 15 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler is the live channel of an open attempt: remaining-time pushes
// to the client, proctoring signals from it.
type WSHandler struct {
	rdb             *redis.Client
	takeExamService *service.TakeExamService
	log             zerolog.Logger
	upgrader        websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, takeExamService *service.TakeExamService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:             rdb,
		takeExamService: takeExamService,
		log:             log.With().Str("component", "ws_handler").Logger(),
		upgrader:        buildUpgrader(allowedOrigins),
	}
}

// ExamLiveChannel godoc
// WS /ws/v1/take-exam/live
// Upgrades to WebSocket for the duration of an open attempt.
func (h *WSHandler) ExamLiveChannel(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	rollNumber := claims.RollNumber

	_, exam, err := h.takeExamService.ActiveAttempt(c.Request.Context(), rollNumber)
	if err != nil {
		conn.WriteError("no active attempt")
		return
	}

	wsLog := h.log.With().
		Int("roll_number", rollNumber).
		Str("exam_id", exam.ID.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	done := make(chan struct{})
	defer close(done)
	go h.pushTicks(conn, exam.ClosesAt, done)

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		case ws.ActionProctor:
			h.handleProctorEvent(conn, wsLog, rollNumber, exam.ID.String(), exam.Security.AntiCopy, &msg)
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

// pushTicks sends the remaining time until closes_at every tickInterval,
// then a finished event once the deadline passes.
func (h *WSHandler) pushTicks(conn *ws.Conn, closesAt time.Time, done <-chan struct{}) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			remaining := time.Until(closesAt)
			if remaining <= 0 {
				conn.WriteTyped(ws.FinishedResponse{Event: ws.EventFinished})
				return
			}
			conn.WriteTyped(ws.TickResponse{
				Event:            ws.EventTick,
				RemainingSeconds: int64(remaining.Seconds()),
			})
		}
	}
}

// handleProctorEvent queues a proctoring signal for batch persistence.
// Events are only accepted when the exam's anti-copy policy is on.
func (h *WSHandler) handleProctorEvent(conn *ws.Conn, wsLog zerolog.Logger, rollNumber int, examID string, antiCopy bool, msg *ws.RequestPayload) {
	if !antiCopy {
		conn.WriteError("proctoring is not enabled for this exam")
		return
	}
	if msg.EventType == "" {
		conn.WriteError("event_type is required")
		return
	}

	payload, _ := json.Marshal(worker.ProctorEventPayload{
		RollNumber: rollNumber,
		ExamID:     examID,
		EventType:  msg.EventType,
		Detail:     msg.Detail,
		Timestamp:  time.Now().Unix(),
	})
	if err := h.rdb.RPush(context.Background(), config.WorkerKey.ProctorEventsQueue, payload).Err(); err != nil {
		wsLog.Error().Err(err).Msg("Proctor event enqueue failed")
		conn.WriteError("event not recorded")
		return
	}

	conn.WriteTyped(ws.AckResponse{Event: ws.EventAck})
}
