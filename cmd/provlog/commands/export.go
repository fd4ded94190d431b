package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/attn-provisioner/provisioner-go/pkg/log"
)

// RunExport writes the matching events of a log file as jsonl or csv.
func RunExport(path string, sel Selection, format string, w io.Writer) error {
	switch format {
	case "jsonl":
		encoder := json.NewEncoder(w)
		return forEach(path, sel, func(event log.Event) error {
			if err := encoder.Encode(event); err != nil {
				return fmt.Errorf("failed to encode event: %w", err)
			}
			return nil
		})
	case "csv":
		return exportCSV(path, sel, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

var csvHeader = []string{
	"timestamp", "connection_id", "direction", "layer", "category",
	"transport", "device_uuid", "type", "code", "status",
}

func exportCSV(path string, sel Selection, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	err := forEach(path, sel, func(event log.Event) error {
		code, status := "", ""
		switch {
		case event.Frame != nil:
			code = "0x" + strconv.FormatUint(uint64(event.Frame.Code), 16)
		case event.Command != nil:
			status = event.Command.Status
		case event.Error != nil:
			status = event.Error.Message
		}
		row := []string{
			event.Timestamp.UTC().Format(timestampFormat),
			event.ConnectionID,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			event.Transport.String(),
			event.DeviceUUID,
			eventLabel(event),
			code,
			status,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		return nil
	})
	cw.Flush()
	if err != nil {
		return err
	}
	return cw.Error()
}
