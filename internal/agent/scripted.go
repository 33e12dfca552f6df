package agent

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ScriptedResult is one pre-programmed session outcome for the scripted
// driver. Results are consumed in Send order.
type ScriptedResult struct {
	// Chunks are emitted as stream events before the terminal event
	Chunks []string
	// Output is the complete event's content when Err is nil
	Output string
	// Err produces an error event instead of a complete event
	Err error
	// Delay postpones the terminal event
	Delay time.Duration
	// Hang keeps the session open until CancelCurrent is called
	Hang bool
}

// ScriptedDriver is a Driver whose sessions play back pre-programmed
// results. It exists for tests; nothing else should construct one.
type ScriptedDriver struct {
	mu        sync.Mutex
	script    []ScriptedResult
	requests  []Request
	subs      map[int]chan Event
	nextSubID int
	cancelCh  chan struct{}
}

// NewScriptedDriver creates a driver that plays back the given results
func NewScriptedDriver(script ...ScriptedResult) *ScriptedDriver {
	return &ScriptedDriver{
		script: script,
		subs:   make(map[int]chan Event),
	}
}

// Append adds further results to the end of the script
func (d *ScriptedDriver) Append(results ...ScriptedResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.script = append(d.script, results...)
}

// Requests returns a copy of every request received so far
func (d *ScriptedDriver) Requests() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Request, len(d.requests))
	copy(out, d.requests)
	return out
}

// Send records the request and plays back the next scripted result
func (d *ScriptedDriver) Send(ctx context.Context, req Request) error {
	if req.SessionID == "" {
		return fmt.Errorf("session id is required")
	}

	d.mu.Lock()
	d.requests = append(d.requests, req)
	var result ScriptedResult
	if len(d.script) > 0 {
		result = d.script[0]
		d.script = d.script[1:]
	} else {
		result = ScriptedResult{Output: "done"}
	}
	cancelCh := make(chan struct{})
	d.cancelCh = cancelCh
	d.mu.Unlock()

	go d.play(req.SessionID, result, cancelCh)
	return nil
}

func (d *ScriptedDriver) play(sessionID string, result ScriptedResult, cancelCh chan struct{}) {
	for _, chunk := range result.Chunks {
		d.publish(Event{SessionID: sessionID, Kind: EventStream, Content: chunk})
	}

	if result.Hang {
		<-cancelCh
		return
	}
	if result.Delay > 0 {
		select {
		case <-time.After(result.Delay):
		case <-cancelCh:
			return
		}
	}

	select {
	case <-cancelCh:
		return
	default:
	}

	if result.Err != nil {
		d.publish(Event{SessionID: sessionID, Kind: EventError, Err: result.Err})
		return
	}
	d.publish(Event{SessionID: sessionID, Kind: EventComplete, Content: result.Output})
}

// Subscribe returns a channel of driver events and a cancel function
func (d *ScriptedDriver) Subscribe() (<-chan Event, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextSubID
	d.nextSubID++
	ch := make(chan Event, 64)
	d.subs[id] = ch

	return ch, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if sub, ok := d.subs[id]; ok {
			delete(d.subs, id)
			close(sub)
		}
	}
}

// CancelCurrent aborts the in-flight scripted session
func (d *ScriptedDriver) CancelCurrent() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancelCh != nil {
		select {
		case <-d.cancelCh:
		default:
			close(d.cancelCh)
		}
		d.cancelCh = nil
	}
}

func (d *ScriptedDriver) publish(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range d.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
