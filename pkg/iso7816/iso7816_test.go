package iso7816

import (
	"bytes"
	"errors"
	"testing"
)

func TestStatusBytes(t *testing.T) {
	s := NewStatus(0x6A, 0x82)
	if s != StatusNotFound {
		t.Fatalf("NewStatus = %04X, want 6A82", uint16(s))
	}
	if s.SW1() != 0x6A || s.SW2() != 0x82 {
		t.Errorf("SW1/SW2 = %02X %02X", s.SW1(), s.SW2())
	}
	if s.IsSuccess() {
		t.Error("6A82 reported as success")
	}
	if !BytesRemaining(12).IsSuccess() {
		t.Error("61xx should be success")
	}
}

func TestBytesRemaining(t *testing.T) {
	tests := []struct {
		n    int
		want Status
	}{
		{1, 0x6101},
		{255, 0x61FF},
		{256, 0x6100},
		{4000, 0x6100},
	}
	for _, tt := range tests {
		if got := BytesRemaining(tt.n); got != tt.want {
			t.Errorf("BytesRemaining(%d) = %04X, want %04X", tt.n, uint16(got), uint16(tt.want))
		}
	}
}

func TestStatusAsError(t *testing.T) {
	var err error = StatusIncorrectDataParameter
	var s Status
	if !errors.As(err, &s) || s != StatusIncorrectDataParameter {
		t.Fatalf("errors.As failed for %v", err)
	}
	if err.Error() != "status 6A80 (INCORRECT_DATA_PARAMETER)" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestAIDMatches(t *testing.T) {
	aid := MustAID(0xA0, 0x00, 0x00, 0x08, 0x47, 0x01, 0x00, 0x00, 0x01)

	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"exact", []byte{0xA0, 0x00, 0x00, 0x08, 0x47, 0x01, 0x00, 0x00, 0x01}, true},
		{"truncated", []byte{0xA0, 0x00, 0x00, 0x08, 0x47, 0x01}, true},
		{"rid only", []byte{0xA0, 0x00, 0x00, 0x08, 0x47}, true},
		{"with suffix", []byte{0xA0, 0x00, 0x00, 0x08, 0x47, 0x01, 0x00, 0x00, 0x01, 0x02}, true},
		{"shorter than rid", []byte{0xA0, 0x00, 0x00}, false},
		{"other", []byte{0xA0, 0x00, 0x00, 0x05, 0x27, 0x21, 0x01}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := aid.Matches(tt.data); got != tt.want {
				t.Errorf("Matches(%X) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}

func TestNewAIDLength(t *testing.T) {
	if _, err := NewAID([]byte{1, 2, 3, 4}); !errors.Is(err, ErrInvalidAID) {
		t.Errorf("4-byte AID: err = %v, want ErrInvalidAID", err)
	}
	if _, err := NewAID(make([]byte, 17)); !errors.Is(err, ErrInvalidAID) {
		t.Errorf("17-byte AID: err = %v, want ErrInvalidAID", err)
	}
	aid, err := ParseAID("A00000084701000001")
	if err != nil {
		t.Fatalf("ParseAID: %v", err)
	}
	if aid.String() != "A00000084701000001" {
		t.Errorf("String() = %s", aid)
	}
}

func TestParseCommand(t *testing.T) {
	frame := []byte{0x00, 0xA4, 0x04, 0x00, 0x03, 0xE1, 0x01, 0x02}
	cmd, err := ParseCommand(frame)
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd.Instruction != InsSelect || cmd.P1 != 0x04 || !bytes.Equal(cmd.Data, []byte{0xE1, 0x01, 0x02}) {
		t.Errorf("unexpected command: %s data=%X", cmd, cmd.Data)
	}
	if !cmd.IsSelectByName() {
		t.Error("IsSelectByName = false")
	}
	if cmd.IsChained() || cmd.Extended {
		t.Error("short unchained command flagged as chained/extended")
	}

	encoded, err := cmd.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Equal(encoded, frame) {
		t.Errorf("Bytes = %X, want %X", encoded, frame)
	}
}

func TestParseCommandHeaderOnly(t *testing.T) {
	cmd, err := ParseCommand([]byte{0x00, 0x62, 0x00, 0x00})
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd.Instruction != 0x62 || len(cmd.Data) != 0 {
		t.Errorf("unexpected command: %s", cmd)
	}
}

func TestParseCommandMalformed(t *testing.T) {
	for _, frame := range [][]byte{nil, {0x00}, {0x00, 0xA4, 0x04}} {
		if _, err := ParseCommand(frame); !errors.Is(err, ErrMalformedCommand) {
			t.Errorf("ParseCommand(%X) err = %v, want ErrMalformedCommand", frame, err)
		}
	}
}

func TestCommandChain(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 600)
	parts := NewCommand(0xBA, 0, 0, data).Chain()
	if len(parts) != 3 {
		t.Fatalf("Chain() = %d parts, want 3", len(parts))
	}
	var joined []byte
	for i, p := range parts {
		last := i == len(parts)-1
		if p.IsChained() == last {
			t.Errorf("part %d chained = %v", i, p.IsChained())
		}
		if p.Instruction != 0xBA {
			t.Errorf("part %d INS = %s", i, p.Instruction)
		}
		joined = append(joined, p.Data...)
	}
	if !bytes.Equal(joined, data) {
		t.Error("chained data does not reassemble")
	}
}

func TestResponseRoundTrip(t *testing.T) {
	resp := Response{Data: []byte{1, 2, 3}, Status: StatusSuccess}
	b, err := resp.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Equal(b, []byte{1, 2, 3, 0x90, 0x00}) {
		t.Fatalf("Bytes = %X", b)
	}
	got, err := ParseResponse(b)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if got.Status != StatusSuccess || !bytes.Equal(got.Data, resp.Data) {
		t.Errorf("ParseResponse = %+v", got)
	}
	if got.Err() != nil {
		t.Errorf("Err() = %v", got.Err())
	}

	bare, err := ParseResponse(StatusOnly(StatusNotFound))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if !errors.Is(bare.Err(), StatusNotFound) {
		t.Errorf("Err() = %v, want NotFound", bare.Err())
	}
}

func TestInterfaceString(t *testing.T) {
	if Contact.String() != "contact" || Contactless.String() != "contactless" || Interface(7).String() != "unknown" {
		t.Errorf("unexpected interface names")
	}
	if len(Interfaces) != 2 {
		t.Errorf("len(Interfaces) = %d, want 2", len(Interfaces))
	}
}
