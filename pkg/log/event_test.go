package log

import (
	"bytes"
	"testing"
)

func TestDirectionString(t *testing.T) {
	tests := []struct {
		dir  Direction
		want string
	}{
		{DirectionIn, "IN"},
		{DirectionOut, "OUT"},
		{Direction(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.dir.String()
		if got != tt.want {
			t.Errorf("Direction(%d).String() = %q, want %q", tt.dir, got, tt.want)
		}
	}
}

func TestLayerString(t *testing.T) {
	tests := []struct {
		layer Layer
		want  string
	}{
		{LayerLink, "LINK"},
		{LayerTransport, "TRANSPORT"},
		{LayerApp, "APP"},
		{Layer(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.layer.String()
		if got != tt.want {
			t.Errorf("Layer(%d).String() = %q, want %q", tt.layer, got, tt.want)
		}
	}
}

func TestCategoryString(t *testing.T) {
	tests := []struct {
		cat  Category
		want string
	}{
		{CategoryFrame, "FRAME"},
		{CategoryCommand, "COMMAND"},
		{CategoryState, "STATE"},
		{CategoryError, "ERROR"},
		{Category(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.cat.String()
		if got != tt.want {
			t.Errorf("Category(%d).String() = %q, want %q", tt.cat, got, tt.want)
		}
	}
}

func TestTransportString(t *testing.T) {
	tests := []struct {
		tr   Transport
		want string
	}{
		{TransportContact, "CONTACT"},
		{TransportContactless, "CONTACTLESS"},
		{TransportCTAPHID, "CTAPHID"},
		{TransportUnknown, "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.tr.String(); got != tt.want {
			t.Errorf("Transport(%d).String() = %q, want %q", tt.tr, got, tt.want)
		}
	}
}

func TestStateEntityString(t *testing.T) {
	tests := []struct {
		entity StateEntity
		want   string
	}{
		{StateEntityConnection, "CONNECTION"},
		{StateEntitySelection, "SELECTION"},
		{StateEntityBuffer, "BUFFER"},
		{StateEntity(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.entity.String(); got != tt.want {
			t.Errorf("StateEntity(%d).String() = %q, want %q", tt.entity, got, tt.want)
		}
	}
}

func TestNewFrameEvent(t *testing.T) {
	small := []byte{0x00, 0xA4, 0x04, 0x00}
	ev := NewFrameEvent(small, 0xA4)
	if ev.Size != 4 || ev.Truncated || !bytes.Equal(ev.Data, small) || ev.Code != 0xA4 {
		t.Errorf("NewFrameEvent(small) = %+v", ev)
	}

	// The event must not alias the caller's buffer.
	small[0] = 0xFF
	if ev.Data[0] != 0x00 {
		t.Error("NewFrameEvent() aliases input")
	}

	large := make([]byte, MaxFrameData+10)
	ev = NewFrameEvent(large, 0)
	if ev.Size != MaxFrameData+10 {
		t.Errorf("Size = %d, want %d", ev.Size, MaxFrameData+10)
	}
	if !ev.Truncated || len(ev.Data) != MaxFrameData {
		t.Errorf("large frame: Truncated = %v, len(Data) = %d", ev.Truncated, len(ev.Data))
	}
}
