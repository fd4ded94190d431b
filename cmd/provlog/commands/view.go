// Package commands implements the provlog CLI commands.
package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/attn-provisioner/provisioner-go/pkg/log"
)

const timestampFormat = "2006-01-02T15:04:05.000000Z"

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [conn:id] DIRECTION LAYER/TRANSPORT Type
	ts := event.Timestamp.UTC().Format(timestampFormat)
	connID := shortenID(event.ConnectionID)
	if connID == "" {
		connID = "local"
	}

	where := event.Layer.String()
	if event.Transport != log.TransportUnknown {
		where += "/" + event.Transport.String()
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n", ts, connID, event.Direction.String(), where, eventLabel(event))

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Command != nil:
		formatCommandDetails(w, event.Command)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}
	if event.DeviceUUID != "" {
		fmt.Fprintf(w, "  Device: %s\n", event.DeviceUUID)
	}

	fmt.Fprintln(w)
}

// eventLabel names the payload carried by the event.
func eventLabel(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.Command != nil:
		return event.Command.Command
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenID returns the first 8 characters of an ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes", frame.Size)
	if frame.Code != 0 {
		fmt.Fprintf(w, "  Code: 0x%02X", frame.Code)
	}
	fmt.Fprintln(w)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprint(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatCommandDetails(w io.Writer, cmd *log.CommandEvent) {
	fmt.Fprintf(w, "  App: %s\n", cmd.App)
	status := cmd.Status
	if status == "" {
		status = "OK"
	}
	fmt.Fprintf(w, "  Status: %s\n", status)
	fmt.Fprintf(w, "  Data: %d bytes in, %d bytes out\n", cmd.DataLen, cmd.ResponseLen)
	if cmd.ProcessingTime != nil {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(*cmd.ProcessingTime))
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: 0x%X\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// forEach calls fn for every event of path that matches sel.
func forEach(path string, sel Selection, fn func(log.Event) error) error {
	filter, err := sel.Filter()
	if err != nil {
		return err
	}
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// RunView prints the matching events of a log file.
func RunView(path string, sel Selection, output io.Writer) error {
	return forEach(path, sel, func(event log.Event) error {
		formatEvent(output, event)
		return nil
	})
}
