package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/attn-provisioner/provisioner-go/pkg/log"
)

func TestFrameWriterReader(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"single byte", []byte{0x42}},
		{"select apdu", []byte{0x00, 0xA4, 0x04, 0x00, 0x05, 0xA0, 0x00, 0x00, 0x08, 0x47}},
		{"ctaphid max message", bytes.Repeat([]byte{0x5A}, 7609)},
		{"max size message", bytes.Repeat([]byte("y"), DefaultMaxMessageSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)

			if err := NewFrameWriter(buf).WriteFrame(tt.payload); err != nil {
				t.Fatalf("WriteFrame failed: %v", err)
			}
			if buf.Len() != FrameSize(len(tt.payload)) {
				t.Errorf("frame size = %d, want %d", buf.Len(), FrameSize(len(tt.payload)))
			}
			if got := binary.BigEndian.Uint32(buf.Bytes()); got != uint32(len(tt.payload)) {
				t.Errorf("length prefix = %d, want %d", got, len(tt.payload))
			}

			got, err := NewFrameReader(buf).ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame failed: %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Errorf("payload mismatch: got %d bytes, want %d bytes", len(got), len(tt.payload))
			}
		})
	}
}

func TestFrameWriterErrors(t *testing.T) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriterWithMaxSize(buf, 16)

	if err := writer.WriteFrame(nil); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("empty: expected ErrMessageEmpty, got %v", err)
	}
	if err := writer.WriteFrame(make([]byte, 17)); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("oversize: expected ErrMessageTooLarge, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("rejected frames wrote %d bytes", buf.Len())
	}
}

func TestFrameReaderErrors(t *testing.T) {
	prefix := func(n uint32) []byte {
		b := make([]byte, LengthPrefixSize)
		binary.BigEndian.PutUint32(b, n)
		return b
	}

	tests := []struct {
		name    string
		input   []byte
		wantErr error
	}{
		{"eof", nil, io.EOF},
		{"zero length", prefix(0), ErrMessageEmpty},
		{"too large", prefix(DefaultMaxMessageSize + 1), ErrMessageTooLarge},
		{"truncated prefix", []byte{0x00, 0x00}, ErrFrameTruncated},
		{"truncated payload", append(prefix(8), 0x01, 0x02), ErrFrameTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrameReader(bytes.NewReader(tt.input)).ReadFrame()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFramerBidirectional(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	client := NewFramer(clientConn)
	server := NewFramer(serverConn)

	errCh := make(chan error, 1)
	go func() {
		frame, err := server.ReadFrame()
		if err != nil {
			errCh <- err
			return
		}
		errCh <- server.WriteFrame(append(frame, 0x90, 0x00))
	}()

	if err := client.WriteFrame([]byte{0x01, 0x02}); err != nil {
		t.Fatalf("client WriteFrame failed: %v", err)
	}
	got, err := client.ReadFrame()
	if err != nil {
		t.Fatalf("client ReadFrame failed: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("server side failed: %v", err)
	}
	if !bytes.Equal(got, []byte{0x01, 0x02, 0x90, 0x00}) {
		t.Errorf("echo = %X", got)
	}
}

func TestMultipleFrames(t *testing.T) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriter(buf)
	frames := [][]byte{{0x01}, {0x02, 0x03}, bytes.Repeat([]byte{0x04}, 300)}

	for _, f := range frames {
		if err := writer.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}

	reader := NewFrameReader(buf)
	for i, want := range frames {
		got, err := reader.ReadFrame()
		if err != nil {
			t.Fatalf("frame %d: ReadFrame failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d mismatch", i)
		}
	}
	if _, err := reader.ReadFrame(); err != io.EOF {
		t.Errorf("expected io.EOF after last frame, got %v", err)
	}
}

func TestFramerLogsFrames(t *testing.T) {
	buf := new(bytes.Buffer)
	rec := &log.Recorder{}

	writer := NewFrameWriter(buf)
	writer.SetLogger(rec, "conn-123", "127.0.0.1:5000")
	if err := writer.WriteFrame([]byte("hello")); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	reader := NewFrameReader(buf)
	reader.SetLogger(rec, "conn-123", "127.0.0.1:5000")
	if _, err := reader.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	events := rec.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	wantDir := []log.Direction{log.DirectionOut, log.DirectionIn}
	for i, e := range events {
		if e.ConnectionID != "conn-123" {
			t.Errorf("event %d: ConnectionID = %q", i, e.ConnectionID)
		}
		if e.RemoteAddr != "127.0.0.1:5000" {
			t.Errorf("event %d: RemoteAddr = %q", i, e.RemoteAddr)
		}
		if e.Direction != wantDir[i] {
			t.Errorf("event %d: Direction = %v, want %v", i, e.Direction, wantDir[i])
		}
		if e.Layer != log.LayerLink || e.Category != log.CategoryFrame {
			t.Errorf("event %d: layer/category = %v/%v", i, e.Layer, e.Category)
		}
		if e.Frame == nil {
			t.Fatalf("event %d: Frame is nil", i)
		}
		if e.Frame.Size != FrameSize(5) {
			t.Errorf("event %d: Frame.Size = %d, want %d", i, e.Frame.Size, FrameSize(5))
		}
		if !bytes.Equal(e.Frame.Data, []byte("hello")) {
			t.Errorf("event %d: Frame.Data = %q", i, e.Frame.Data)
		}
	}
}

func TestFramerLogsTruncatedData(t *testing.T) {
	rec := &log.Recorder{}
	writer := NewFrameWriter(io.Discard)
	writer.SetLogger(rec, "conn-trunc", "")

	large := bytes.Repeat([]byte("x"), log.MaxFrameData+100)
	if err := writer.WriteFrame(large); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	events := rec.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	frame := events[0].Frame
	if frame.Size != FrameSize(len(large)) {
		t.Errorf("Frame.Size = %d, want %d", frame.Size, FrameSize(len(large)))
	}
	if len(frame.Data) != log.MaxFrameData || !frame.Truncated {
		t.Errorf("Frame.Data length = %d truncated=%v", len(frame.Data), frame.Truncated)
	}
}

func TestFramerNoLoggerNoPanic(t *testing.T) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriter(buf)
	writer.SetLogger(nil, "conn-id", "")
	if err := writer.WriteFrame([]byte("hello")); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	if _, err := NewFrameReader(buf).ReadFrame(); err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
}
