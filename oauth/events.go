package oauth

import "time"

// EventType classifies flow lifecycle events.
type EventType string

const (
	// EventFlowCompleted fires once per successful callback.
	EventFlowCompleted EventType = "flow_completed"

	// EventFlowFailed fires for every failed callback, including
	// provider-reported errors.
	EventFlowFailed EventType = "flow_failed"

	// EventTokenRefreshed fires after a stored token is replaced by a
	// refresh grant.
	EventTokenRefreshed EventType = "token_refreshed"

	// EventTokenExpiring is informational: a stored token is within
	// five minutes of expiry. No state change accompanies it.
	EventTokenExpiring EventType = "token_expiring"
)

// Event is one flow lifecycle notification.
type Event struct {
	Type      EventType
	Provider  string
	UserID    string
	SessionID string
	Time      time.Time

	// Details carries event-specific context (error codes, expiry
	// timestamps). Never contains token material.
	Details map[string]any
}

// EventHandler receives flow events. Handlers are invoked synchronously
// from flow and sweep paths and must return quickly; a panicking
// handler is contained and logged, never propagated.
type EventHandler interface {
	HandleEvent(Event)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(Event)

// HandleEvent calls the function.
func (f EventHandlerFunc) HandleEvent(e Event) {
	f(e)
}
