// Command provctl provisions attestation material onto a token.
//
// It talks to the token's provisioner application over the simulator link,
// either at a fixed address or by looking the token up via mDNS.
//
// Usage:
//
//	provctl [global flags] <command> [flags] [args]
//
// Commands:
//
//	uuid         Print the device UUID
//	info         Print the token description
//	generate     Generate an attestation key and print its public key
//	store-cert   Store an attestation certificate
//	store-t1     Store the T1 intermediate public key
//	write-file   Write a file to the token filesystem
//	reformat     Wipe the token filesystem
//	bootrom      Reboot the token into its bootloader
//	selftest     Run an attestation self-test
//	discover     List tokens advertised on the network
//	shell        Interactive provisioning console
//	log          View a protocol log file
//
// Examples:
//
//	# Provision a P256 attestation key and certificate
//	provctl generate p256 -o p256.pub
//	provctl store-cert p256 p256.der
//
//	# Find a token by UUID and read it back
//	provctl --uuid 0f1e2d3c4b5a69788796a5b4c3d2e1f0 uuid
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/attn-provisioner/provisioner-go/pkg/discovery"
	"github.com/attn-provisioner/provisioner-go/pkg/iso7816"
	"github.com/attn-provisioner/provisioner-go/pkg/log"
	"github.com/attn-provisioner/provisioner-go/pkg/transport"
)

// options are the global flags.
type options struct {
	addr        string
	uuid        string
	contactless bool
	timeout     time.Duration
	retries     int
	protocolLog string
	verbose     bool
}

// command is one provctl subcommand.
type command struct {
	name    string
	args    string
	summary string

	// flags registers command specific flags (optional).
	flags func(fs *pflag.FlagSet)

	// offline commands run without a token connection.
	offline bool

	run func(ctx context.Context, s *session, fs *pflag.FlagSet) error
}

// session is the state shared by a command run.
type session struct {
	opts   options
	logger *slog.Logger
	stdout io.Writer

	link  transport.TokenLink
	token *token

	closers []func() error
}

func main() {
	err := run(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	global := pflag.NewFlagSet("provctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.StringVarP(&opts.addr, "addr", "a", fmt.Sprintf("127.0.0.1:%d", transport.DefaultPort), "token address")
	global.StringVarP(&opts.uuid, "uuid", "u", "", "find the token by UUID via mDNS instead of --addr")
	global.BoolVar(&opts.contactless, "contactless", false, "send APDUs on the contactless interface")
	global.DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-command timeout")
	global.IntVar(&opts.retries, "retries", 0, "re-dial a refused connection this many times")
	global.StringVar(&opts.protocolLog, "protocol-log", "", "write a CBOR protocol log to this file")
	global.BoolVarP(&opts.verbose, "verbose", "v", false, "log every APDU")
	global.Usage = func() { printUsage(global) }

	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		printUsage(global)
		return errors.New("no command given")
	}

	name := global.Arg(0)
	cmd, ok := lookupCommand(name)
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	s := &session{
		opts:   opts,
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
		stdout: os.Stdout,
	}
	defer s.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	return s.exec(ctx, cmd, global.Args()[1:])
}

// exec parses the command's flags, connects if needed, and runs it.
func (s *session) exec(ctx context.Context, cmd command, args []string) error {
	fs := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: provctl %s [flags] %s\n\n%s\n", cmd.name, cmd.args, cmd.summary)
		if fs.HasFlags() {
			fmt.Fprintf(os.Stderr, "\nFlags:\n%s", fs.FlagUsages())
		}
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !cmd.offline {
		if err := s.connect(ctx); err != nil {
			return err
		}
	}
	return cmd.run(ctx, s, fs)
}

// connect opens the link to the token once per session.
func (s *session) connect(ctx context.Context) error {
	if s.token != nil {
		return nil
	}

	addr := s.opts.addr
	if s.opts.uuid != "" {
		svc, err := discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig()).FindByUUID(ctx, s.opts.uuid)
		if err != nil {
			return fmt.Errorf("find token %s: %w", s.opts.uuid, err)
		}
		addr = svc.Address()
		s.logger.Info("found token", "instance", svc.InstanceName, "address", addr)
	}

	var protocolLogger log.Logger = log.NoopLogger{}
	if s.opts.protocolLog != "" {
		fl, err := log.NewFileLogger(s.opts.protocolLog)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		s.closers = append(s.closers, fl.Close)
		protocolLogger = fl
	}

	dialCtx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()
	client := transport.NewClient(transport.ClientConfig{
		Retry:          transport.RetryConfig{Attempts: s.opts.retries + 1},
		Logger:         s.logger,
		ProtocolLogger: protocolLogger,
	})
	conn, err := client.Connect(dialCtx, addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	s.closers = append([]func() error{conn.Close}, s.closers...)
	s.attach(conn)
	return nil
}

// attach binds the session to an open link.
func (s *session) attach(link transport.TokenLink) {
	iface := iso7816.Contact
	if s.opts.contactless {
		iface = iso7816.Contactless
	}
	s.link = link
	s.token = newToken(link, iface, s.logger)
}

// selected selects the provisioner and returns the token, bounded by the
// per-command timeout.
func (s *session) selected(ctx context.Context) (context.Context, context.CancelFunc, *token, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	if _, err := s.token.selectApp(ctx); err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, cancel, s.token, nil
}

func (s *session) close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			s.logger.Warn("close", "error", err)
		}
	}
	s.closers = nil
}

func (s *session) printf(format string, args ...any) {
	fmt.Fprintf(s.stdout, format, args...)
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands() {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage(global *pflag.FlagSet) {
	var b strings.Builder
	b.WriteString("provctl - token provisioning tool\n\nUsage:\n  provctl [global flags] <command> [flags] [args]\n\nCommands:\n")
	cmds := commands()
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].name < cmds[j].name })
	for _, c := range cmds {
		fmt.Fprintf(&b, "  %-12s %s\n", c.name, c.summary)
	}
	b.WriteString("\nGlobal flags:\n")
	b.WriteString(global.FlagUsages())
	fmt.Fprint(os.Stderr, b.String())
}
