package log

import (
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.plog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func readAll(t *testing.T, path string, filter Filter) []Event {
	t.Helper()
	reader, err := NewFilteredReader(path, filter)
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	events, err := reader.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	return events
}

func TestReaderIteratesEvents(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), ConnectionID: "conn-1", Layer: LayerLink, Category: CategoryFrame},
		{Timestamp: time.Now(), ConnectionID: "conn-2", Layer: LayerTransport, Category: CategoryFrame},
		{Timestamp: time.Now(), ConnectionID: "conn-3", Layer: LayerApp, Category: CategoryCommand},
	}
	path := createTestLogFile(t, events)

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	var read []Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		read = append(read, event)
	}

	if len(read) != 3 {
		t.Fatalf("got %d events, want 3", len(read))
	}
	if read[0].ConnectionID != "conn-1" {
		t.Errorf("first event ConnectionID = %q, want %q", read[0].ConnectionID, "conn-1")
	}
	if read[2].ConnectionID != "conn-3" {
		t.Errorf("last event ConnectionID = %q, want %q", read[2].ConnectionID, "conn-3")
	}
}

func TestReaderHandlesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.plog")

	logger, _ := NewFileLogger(path)
	logger.Close()

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	event, err := reader.Next()
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got err=%v, event=%+v", err, event)
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "nope.plog")); err == nil {
		t.Error("NewReader succeeded on missing file")
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	contact := TransportContact
	hid := TransportCTAPHID
	out := DirectionOut
	app := LayerApp
	state := CategoryState

	events := []Event{
		{Timestamp: base, ConnectionID: "conn-A", Direction: DirectionIn, Layer: LayerTransport, Category: CategoryFrame, Transport: TransportContact},
		{Timestamp: base.Add(time.Second), ConnectionID: "conn-B", Direction: DirectionOut, Layer: LayerTransport, Category: CategoryFrame, Transport: TransportCTAPHID},
		{Timestamp: base.Add(2 * time.Second), ConnectionID: "conn-A", Direction: DirectionIn, Layer: LayerApp, Category: CategoryCommand, Transport: TransportContact,
			DeviceUUID: "uuid-1", Command: &CommandEvent{App: "provisioner", Command: "GenerateP256Key"}},
		{Timestamp: base.Add(3 * time.Second), ConnectionID: "conn-C", Direction: DirectionOut, Layer: LayerTransport, Category: CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntitySelection, NewState: "provisioner"}},
	}
	path := createTestLogFile(t, events)

	start := base.Add(time.Second)
	end := base.Add(3 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"connection", Filter{ConnectionID: "conn-A"}, 2},
		{"direction", Filter{Direction: &out}, 2},
		{"layer", Filter{Layer: &app}, 1},
		{"category", Filter{Category: &state}, 1},
		{"transport contact", Filter{Transport: &contact}, 2},
		{"transport hid", Filter{Transport: &hid}, 1},
		{"time window", Filter{TimeStart: &start, TimeEnd: &end}, 2},
		{"device", Filter{DeviceUUID: "uuid-1"}, 1},
		{"command", Filter{Command: "GenerateP256Key"}, 1},
		{"command no match", Filter{Command: "GetUuid"}, 0},
		{"combined", Filter{ConnectionID: "conn-A", Layer: &app}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := readAll(t, path, tt.filter)
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}
