package log

import (
	"testing"
	"time"
)

func TestNoopLoggerDoesNotPanic(t *testing.T) {
	logger := NoopLogger{}

	event := Event{
		Timestamp: time.Now(),
		Direction: DirectionIn,
		Layer:     LayerTransport,
		Category:  CategoryFrame,
		Transport: TransportContact,
	}
	logger.Log(event)

	event.Frame = &FrameEvent{Size: 5, Data: []byte{0, 0xA4, 4, 0, 0}}
	logger.Log(event)

	event.Frame = nil
	event.Command = &CommandEvent{App: "provisioner", Command: "GetUuid"}
	logger.Log(event)

	event.Command = nil
	event.StateChange = &StateChangeEvent{Entity: StateEntitySelection, NewState: "provisioner"}
	logger.Log(event)

	event.StateChange = nil
	event.Error = &ErrorEventData{Message: "test error"}
	logger.Log(event)
}

func TestNoopLoggerIsZeroValue(t *testing.T) {
	var logger NoopLogger
	logger.Log(Event{})
}

func TestRecorder(t *testing.T) {
	var r Recorder

	r.Log(Event{Category: CategoryFrame})
	r.Log(Event{Category: CategoryCommand})

	events := r.Events()
	if len(events) != 2 {
		t.Fatalf("Events() returned %d events, want 2", len(events))
	}
	if events[1].Category != CategoryCommand {
		t.Errorf("events[1].Category = %v, want COMMAND", events[1].Category)
	}

	r.Reset()
	if n := len(r.Events()); n != 0 {
		t.Errorf("Events() after Reset returned %d events", n)
	}
}
