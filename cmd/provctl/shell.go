package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/pflag"
)

// shell runs provctl commands interactively against one connection.
type shell struct {
	s  *session
	rl *readline.Instance
}

func runShell(ctx context.Context, s *session, fs *pflag.FlagSet) error {
	if err := requireArgs(fs, 0); err != nil {
		return err
	}

	var items []readline.PrefixCompleterInterface
	for _, c := range commands() {
		if c.name != "shell" {
			items = append(items, readline.PcItem(c.name))
		}
	}
	items = append(items, readline.PcItem("help"), readline.PcItem("reset"), readline.PcItem("exit"))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "token> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    readline.NewPrefixCompleter(items...),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	sh := &shell{s: s, rl: rl}
	return sh.run(ctx)
}

func (sh *shell) run(ctx context.Context) error {
	// Command output goes through readline so it does not garble the prompt.
	stdout := sh.s.stdout
	sh.s.stdout = sh.rl.Stdout()
	defer func() { sh.s.stdout = stdout }()

	sh.printHelp()
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := sh.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if done := sh.execute(ctx, line); done {
			return nil
		}
	}
}

// execute runs one input line and reports whether the shell should exit.
func (sh *shell) execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	name, args := strings.ToLower(parts[0]), parts[1:]

	switch name {
	case "exit", "quit", "q":
		return true
	case "help", "?":
		sh.printHelp()
		return false
	case "reset":
		if err := sh.s.link.Reset(ctx); err != nil {
			sh.errorf("%v", err)
		}
		return false
	case "shell":
		sh.errorf("already in the shell")
		return false
	}

	cmd, ok := lookupCommand(name)
	if !ok {
		sh.errorf("unknown command %q (try help)", name)
		return false
	}
	if err := sh.s.exec(ctx, cmd, args); err != nil && !errors.Is(err, pflag.ErrHelp) {
		sh.errorf("%v", err)
	}
	return false
}

func (sh *shell) errorf(format string, args ...any) {
	fmt.Fprintf(sh.rl.Stderr(), "error: "+format+"\n", args...)
}

func (sh *shell) printHelp() {
	w := sh.rl.Stdout()
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands() {
		if c.name == "shell" {
			continue
		}
		fmt.Fprintf(w, "  %-12s %-40s %s\n", c.name, c.args, c.summary)
	}
	fmt.Fprintf(w, "  %-12s %-40s %s\n", "reset", "", "Deselect all applications")
	fmt.Fprintf(w, "  %-12s %-40s %s\n", "exit", "", "Leave the shell")
}
