package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/attn-provisioner/provisioner-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents        int
	EventsByLayer      map[log.Layer]int
	EventsByCategory   map[log.Category]int
	EventsByTransport  map[log.Transport]int
	Commands           map[string]*CommandStats
	Connections        map[string]*ConnectionStats
	Errors             int
	TimeStart, TimeEnd time.Time
}

// CommandStats counts one application command.
type CommandStats struct {
	Calls    int
	Failures int
	Total    time.Duration
}

// ConnectionStats holds statistics for a single simulator link.
type ConnectionStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	RemoteAddr string
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByTransport: make(map[log.Transport]int),
		Commands:          make(map[string]*CommandStats),
		Connections:       make(map[string]*ConnectionStats),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	if event.Transport != log.TransportUnknown {
		s.EventsByTransport[event.Transport]++
	}

	if s.TimeStart.IsZero() || event.Timestamp.Before(s.TimeStart) {
		s.TimeStart = event.Timestamp
	}
	if event.Timestamp.After(s.TimeEnd) {
		s.TimeEnd = event.Timestamp
	}

	if event.ConnectionID != "" {
		conn, ok := s.Connections[event.ConnectionID]
		if !ok {
			conn = &ConnectionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
			s.Connections[event.ConnectionID] = conn
		}
		conn.Events++
		if event.Timestamp.After(conn.LastSeen) {
			conn.LastSeen = event.Timestamp
		}
		if conn.RemoteAddr == "" {
			conn.RemoteAddr = event.RemoteAddr
		}
	}

	if c := event.Command; c != nil {
		cs, ok := s.Commands[c.Command]
		if !ok {
			cs = &CommandStats{}
			s.Commands[c.Command] = cs
		}
		cs.Calls++
		if c.Status != "" {
			cs.Failures++
		}
		if c.ProcessingTime != nil {
			cs.Total += *c.ProcessingTime
		}
	}

	if event.Error != nil {
		s.Errors++
	}
}

// CollectStats reads the matching events of a log file into Stats.
func CollectStats(path string, sel Selection) (*Stats, error) {
	stats := newStats()
	err := forEach(path, sel, func(event log.Event) error {
		stats.add(event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, sel Selection, w io.Writer) error {
	stats, err := CollectStats(path, sel)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Token Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeStart.Format(time.RFC3339),
			stats.TimeEnd.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeEnd.Sub(stats.TimeStart).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerLink, log.LayerTransport, log.LayerApp} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryFrame, log.CategoryCommand, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}

	if len(stats.EventsByTransport) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Events by Transport:")
		for _, tr := range []log.Transport{log.TransportContact, log.TransportContactless, log.TransportCTAPHID} {
			if count := stats.EventsByTransport[tr]; count > 0 {
				fmt.Fprintf(w, "  %-14s %d\n", tr.String()+":", count)
			}
		}
	}

	if len(stats.Commands) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Commands:")
		names := make([]string, 0, len(stats.Commands))
		for name := range stats.Commands {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			cs := stats.Commands[name]
			fmt.Fprintf(w, "  %-34s %d calls, %d failed, %s total\n",
				name, cs.Calls, cs.Failures, formatDuration(cs.Total))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenID(c.id), c.stats.Events, duration)
			if c.stats.RemoteAddr != "" {
				fmt.Fprintf(w, "             Remote: %s\n", c.stats.RemoteAddr)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
