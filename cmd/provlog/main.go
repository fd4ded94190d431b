// Command provlog views and analyzes token protocol log files.
//
// Log files are written by provisioner-sim and provctl when run with
// --protocol-log.
//
// Usage:
//
//	provlog <command> [flags] <file.plog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSONL or CSV
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View application commands only
//	provlog view --category command token.plog
//
//	# View CTAPHID traffic
//	provlog view --transport ctaphid token.plog
//
//	# Export to CSV
//	provlog export --format csv token.plog > token.csv
//
//	# Keep one connection
//	provlog filter --conn-id abc12345-... -o conn.plog token.plog
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/attn-provisioner/provisioner-go/cmd/provlog/commands"
)

const usage = `provlog - token protocol log analyzer

Usage:
  provlog <command> [flags] <file.plog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSONL or CSV
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "provlog <command> --help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	err := run(os.Args[1], os.Args[2:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	switch cmd {
	case "view":
		return runView(args)
	case "export":
		return runExport(args)
	case "filter":
		return runFilter(args)
	case "stats":
		return runStats(args)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// selectionFlags registers the event selection flags shared by all commands.
func selectionFlags(fs *pflag.FlagSet, sel *commands.Selection) {
	fs.StringVar(&sel.ConnID, "conn-id", "", "connection ID")
	fs.StringVar(&sel.DeviceUUID, "device", "", "device UUID")
	fs.StringVar(&sel.Command, "command", "", "application command name (e.g. WriteFile)")
	fs.StringVar(&sel.TimeStart, "time-start", "", "events at or after this RFC 3339 time")
	fs.StringVar(&sel.TimeEnd, "time-end", "", "events before this RFC 3339 time")
	fs.StringVar(&sel.Layer, "layer", "", "layer: link, transport, app")
	fs.StringVar(&sel.Direction, "direction", "", "direction: in, out")
	fs.StringVar(&sel.Category, "category", "", "category: frame, command, state, error")
	fs.StringVar(&sel.Transport, "transport", "", "transport: contact, contactless, ctaphid")
}

// parse parses args and returns the single log file argument.
func parse(fs *pflag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", errors.New("exactly one log file path is required")
	}
	return fs.Arg(0), nil
}

func runView(args []string) error {
	var sel commands.Selection
	fs := pflag.NewFlagSet("view", pflag.ContinueOnError)
	selectionFlags(fs, &sel)
	path, err := parse(fs, args)
	if err != nil {
		return err
	}
	return commands.RunView(path, sel, os.Stdout)
}

func runExport(args []string) error {
	var sel commands.Selection
	fs := pflag.NewFlagSet("export", pflag.ContinueOnError)
	selectionFlags(fs, &sel)
	format := fs.String("format", "jsonl", "output format: jsonl, csv")
	output := fs.StringP("output", "o", "", "output file (default: stdout)")
	path, err := parse(fs, args)
	if err != nil {
		return err
	}

	if *output == "" {
		return commands.RunExport(path, sel, *format, os.Stdout)
	}
	f, err := os.Create(*output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := commands.RunExport(path, sel, *format, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runFilter(args []string) error {
	var sel commands.Selection
	fs := pflag.NewFlagSet("filter", pflag.ContinueOnError)
	selectionFlags(fs, &sel)
	output := fs.StringP("output", "o", "", "output log file (required)")
	path, err := parse(fs, args)
	if err != nil {
		return err
	}
	n, err := commands.RunFilter(path, *output, sel)
	if err != nil {
		return err
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
	return nil
}

func runStats(args []string) error {
	var sel commands.Selection
	fs := pflag.NewFlagSet("stats", pflag.ContinueOnError)
	selectionFlags(fs, &sel)
	path, err := parse(fs, args)
	if err != nil {
		return err
	}
	return commands.RunStats(path, sel, os.Stdout)
}
