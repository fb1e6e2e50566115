package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing    Action = "ping"
	ActionProctor Action = "proctor"
)

// RequestPayload carries every client message; unused fields stay empty.
type RequestPayload struct {
	Action Action `json:"action"`
	// Proctor event fields.
	EventType string `json:"event_type,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventAck      Event = "ack"
	EventPong     Event = "pong"
	EventTick     Event = "tick"
	EventFinished Event = "finished"
)

// TickResponse is the periodic remaining-time push. RemainingSeconds hits
// zero at closes_at; the attempt may stay writable for the grace period.
type TickResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// FinishedResponse tells the client the attempt reached a terminal state.
type FinishedResponse struct {
	Event Event `json:"event"`
}

type AckResponse struct {
	Event Event `json:"event"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}
