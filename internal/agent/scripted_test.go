package agent

import (
	"context"
	"errors"
	"testing"
	"time"
)

func collect(t *testing.T, ch <-chan Event, n int) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case ev := <-ch:
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(events), n)
		}
	}
	return events
}

func TestScriptedDriverPlaysBackResults(t *testing.T) {
	d := NewScriptedDriver(
		ScriptedResult{Chunks: []string{"thinking", "writing"}, Output: "final answer"},
	)
	ch, cancel := d.Subscribe()
	defer cancel()

	if err := d.Send(context.Background(), Request{SessionID: "s1", Prompt: "do it"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	events := collect(t, ch, 3)
	if events[0].Kind != EventStream || events[0].Content != "thinking" {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Kind != EventStream || events[1].Content != "writing" {
		t.Errorf("event 1 = %+v", events[1])
	}
	if events[2].Kind != EventComplete || events[2].Content != "final answer" {
		t.Errorf("event 2 = %+v", events[2])
	}
	if events[2].SessionID != "s1" {
		t.Errorf("session id = %s", events[2].SessionID)
	}
}

func TestScriptedDriverErrorResult(t *testing.T) {
	d := NewScriptedDriver(ScriptedResult{Err: errors.New("model refused")})
	ch, cancel := d.Subscribe()
	defer cancel()

	if err := d.Send(context.Background(), Request{SessionID: "s1", Prompt: "p"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	events := collect(t, ch, 1)
	if events[0].Kind != EventError {
		t.Fatalf("kind = %s, want error", events[0].Kind)
	}
	if events[0].Err == nil || events[0].Err.Error() != "model refused" {
		t.Errorf("err = %v", events[0].Err)
	}
}

func TestScriptedDriverCancelSuppressesEvents(t *testing.T) {
	d := NewScriptedDriver(ScriptedResult{Hang: true})
	ch, cancel := d.Subscribe()
	defer cancel()

	if err := d.Send(context.Background(), Request{SessionID: "s1", Prompt: "p"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	d.CancelCurrent()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event after cancel: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScriptedDriverRecordsRequests(t *testing.T) {
	d := NewScriptedDriver()
	if err := d.Send(context.Background(), Request{SessionID: "s1", Prompt: "first", Persona: "developer"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	reqs := d.Requests()
	if len(reqs) != 1 {
		t.Fatalf("got %d requests", len(reqs))
	}
	if reqs[0].Prompt != "first" || reqs[0].Persona != "developer" {
		t.Errorf("request = %+v", reqs[0])
	}
}

func TestScriptedDriverRejectsEmptySession(t *testing.T) {
	d := NewScriptedDriver()
	if err := d.Send(context.Background(), Request{Prompt: "p"}); err == nil {
		t.Fatal("expected an error for empty session id")
	}
}
