package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/attn-provisioner/provisioner-go/pkg/log"
)

// Selection restricts the events a command looks at. Empty fields match all.
type Selection struct {
	ConnID     string
	DeviceUUID string
	Command    string
	TimeStart  string
	TimeEnd    string
	Layer      string
	Direction  string
	Category   string
	Transport  string
}

// Filter converts the flag values into a log.Filter.
func (s Selection) Filter() (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: s.ConnID,
		DeviceUUID:   s.DeviceUUID,
		Command:      s.Command,
	}

	if s.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, s.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start: %w", err)
		}
		filter.TimeStart = &t
	}
	if s.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, s.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end: %w", err)
		}
		filter.TimeEnd = &t
	}
	if s.Layer != "" {
		l, err := ParseLayer(s.Layer)
		if err != nil {
			return filter, err
		}
		filter.Layer = &l
	}
	if s.Direction != "" {
		d, err := ParseDirection(s.Direction)
		if err != nil {
			return filter, err
		}
		filter.Direction = &d
	}
	if s.Category != "" {
		c, err := ParseCategory(s.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}
	if s.Transport != "" {
		tr, err := ParseTransport(s.Transport)
		if err != nil {
			return filter, err
		}
		filter.Transport = &tr
	}
	return filter, nil
}

// ParseLayer parses a layer name (case-insensitive).
func ParseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "link":
		return log.LayerLink, nil
	case "transport":
		return log.LayerTransport, nil
	case "app":
		return log.LayerApp, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be link, transport or app)", s)
	}
}

// ParseDirection parses a direction name (case-insensitive).
func ParseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategory parses a category name (case-insensitive).
func ParseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "frame":
		return log.CategoryFrame, nil
	case "command":
		return log.CategoryCommand, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be frame, command, state or error)", s)
	}
}

// ParseTransport parses a token interface name (case-insensitive).
func ParseTransport(s string) (log.Transport, error) {
	switch strings.ToLower(s) {
	case "contact":
		return log.TransportContact, nil
	case "contactless", "nfc":
		return log.TransportContactless, nil
	case "ctaphid", "hid":
		return log.TransportCTAPHID, nil
	default:
		return 0, fmt.Errorf("invalid transport: %s (must be contact, contactless or ctaphid)", s)
	}
}
