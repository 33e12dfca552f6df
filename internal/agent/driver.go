// Package agent defines the LLM driver boundary. The queue engine talks to
// a Driver and never to a vendor SDK directly, so tests substitute a
// scripted driver and the engine cannot tell the difference.
package agent

import "context"

// EventKind discriminates driver events
type EventKind string

const (
	// EventStream carries an incremental chunk of agent output
	EventStream EventKind = "stream"
	// EventComplete carries the final accumulated output for a session
	EventComplete EventKind = "complete"
	// EventError reports a failed session
	EventError EventKind = "error"
)

// Event is one message from the driver about an active session
type Event struct {
	SessionID string
	Kind      EventKind
	Content   string
	Err       error
}

// Request describes one unit of work handed to the agent
type Request struct {
	SessionID   string
	Prompt      string
	ProjectPath string
	Persona     string
}

// Driver is the execution backend for agent sessions. Send dispatches work
// asynchronously; progress and completion arrive on the subscription
// channel tagged with the request's session ID. Implementations run one
// session at a time.
type Driver interface {
	// Send starts a session. It returns once the work is accepted; results
	// arrive as events.
	Send(ctx context.Context, req Request) error

	// Subscribe returns a channel of driver events and a cancel function.
	// Events for all sessions are delivered on every subscription.
	Subscribe() (<-chan Event, func())

	// CancelCurrent aborts the in-flight session, if any. The aborted
	// session emits no further events.
	CancelCurrent()
}
