// Command provisioner-sim runs a simulated security token on the host.
//
// The token carries the provisioner application behind an APDU/CTAPHID
// router and is reachable over the simulator link. Its filesystem and
// bootloader flash live in a host directory so provisioned keys and
// certificates survive restarts.
//
// Usage:
//
//	provisioner-sim [flags]
//
// Flags:
//
//	--config string        YAML configuration file
//	--uuid string          Device UUID (default: random)
//	--listen string        Simulator link address (default ":8469")
//	--store-dir string     Directory for the emulated filesystem
//	--advertise            Advertise the token via mDNS
//	--protocol-log string  Write a CBOR protocol log to this file
//	--log-level string     Log level: debug, info, warn, error
//	--nfc-powered          Report the token as NFC powered
//
// Examples:
//
//	# Start a token with a fixed UUID and advertise it
//	provisioner-sim --uuid 0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0 --advertise
//
//	# Start from a config file with debug logging
//	provisioner-sim --config sim.yaml --log-level debug
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/attn-provisioner/provisioner-go/pkg/apps"
	"github.com/attn-provisioner/provisioner-go/pkg/device"
	"github.com/attn-provisioner/provisioner-go/pkg/discovery"
	"github.com/attn-provisioner/provisioner-go/pkg/engine"
	"github.com/attn-provisioner/provisioner-go/pkg/log"
	"github.com/attn-provisioner/provisioner-go/pkg/store"
	"github.com/attn-provisioner/provisioner-go/pkg/transport"
	"github.com/attn-provisioner/provisioner-go/pkg/version"
)

// flashImage is the bootloader flash file inside the store directory.
const flashImage = "flash.img"

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := parseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	sim, err := newSimulator(cfg, logger)
	if err != nil {
		return err
	}
	defer sim.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sim.start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	return sim.stop()
}

// parseFlags loads the config file named by --config and applies the
// flags that were set explicitly on top of it.
func parseFlags(args []string) (Config, error) {
	flagSet := pflag.NewFlagSet("provisioner-sim", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "YAML configuration file")
	id := flagSet.String("uuid", "", "device UUID (default: random)")
	listen := flagSet.String("listen", "", "simulator link address")
	storeDir := flagSet.String("store-dir", "", "directory for the emulated filesystem")
	advertise := flagSet.Bool("advertise", false, "advertise the token via mDNS")
	protocolLog := flagSet.String("protocol-log", "", "write a CBOR protocol log to this file")
	logLevel := flagSet.String("log-level", "", "log level: debug, info, warn, error")
	nfcPowered := flagSet.Bool("nfc-powered", false, "report the token as NFC powered")

	if err := flagSet.Parse(args); err != nil {
		return Config{}, err
	}
	if flagSet.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfig(*configPath)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}

	if flagSet.Changed("uuid") {
		cfg.UUID = *id
	}
	if flagSet.Changed("listen") {
		cfg.Listen = *listen
	}
	if flagSet.Changed("store-dir") {
		cfg.StoreDir = *storeDir
	}
	if flagSet.Changed("advertise") {
		cfg.Advertise = *advertise
	}
	if flagSet.Changed("protocol-log") {
		cfg.ProtocolLog = *protocolLog
	}
	if flagSet.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}
	if flagSet.Changed("nfc-powered") {
		cfg.NFCPowered = *nfcPowered
	}
	return cfg, nil
}

// simulator owns the token and the services exposing it.
type simulator struct {
	cfg    Config
	logger *slog.Logger

	protocolLog *log.FileLogger
	apps        *apps.Apps
	device      *device.Device
	server      *transport.Server
	advertiser  discovery.Advertiser
}

func newSimulator(cfg Config, logger *slog.Logger) (*simulator, error) {
	id, err := cfg.DeviceUUID()
	if err != nil {
		return nil, err
	}
	ver, err := version.Parse(cfg.Version)
	if err != nil {
		return nil, err
	}

	s := &simulator{cfg: cfg, logger: logger}

	var protocolLogger log.Logger = log.NoopLogger{}
	if cfg.ProtocolLog != "" {
		s.protocolLog, err = log.NewRotatingFileLogger(cfg.ProtocolLog, cfg.ProtocolLogMaxSize)
		if err != nil {
			return nil, fmt.Errorf("open protocol log: %w", err)
		}
		protocolLogger = s.protocolLog
	}

	if err := os.MkdirAll(cfg.StoreDir, 0o700); err != nil {
		s.close()
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	fs, err := store.NewFileStore(filepath.Join(cfg.StoreDir, "fs"), cfg.StoreCapacity)
	if err != nil {
		s.close()
		return nil, err
	}
	flash, err := device.NewFileFlash(filepath.Join(cfg.StoreDir, flashImage))
	if err != nil {
		s.close()
		return nil, err
	}

	s.apps, err = apps.New(apps.Config{
		Runner: runner{id: id, version: ver},
		Engine: engine.NewSoftware(fs),
		NonPortable: apps.NonPortable{
			Store:      fs,
			Flash:      flash,
			Rebooter:   device.Rebooter{},
			NFCPowered: cfg.NFCPowered,
		},
		Logger:         logger,
		ProtocolLogger: protocolLogger,
	})
	if err != nil {
		s.close()
		return nil, err
	}

	s.device, err = device.New(device.Config{
		Apps: s.apps,
		OnReboot: func() {
			logger.Warn("token rebooted to bootrom")
		},
		Logger:         logger,
		ProtocolLogger: protocolLogger,
	})
	if err != nil {
		s.close()
		return nil, err
	}

	s.server, err = transport.NewServer(transport.ServerConfig{
		Address:        cfg.Listen,
		Handler:        s.device,
		Logger:         logger,
		ProtocolLogger: protocolLogger,
		OnConnect: func(conn *transport.ServerConn) {
			logger.Info("host connected", "remote", conn.RemoteAddr().String())
		},
		OnDisconnect: func(conn *transport.ServerConn) {
			logger.Info("host disconnected", "remote", conn.RemoteAddr().String())
		},
	})
	if err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *simulator) start(ctx context.Context) error {
	if err := s.server.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info("token ready",
		"uuid", s.apps.UUIDString(),
		"version", s.apps.Version().String(),
		"address", s.server.Addr().String(),
		"store", s.cfg.StoreDir)

	if !s.cfg.Advertise {
		return nil
	}
	port, err := listenPort(s.server.Addr())
	if err != nil {
		return err
	}
	adv := discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
	info := &discovery.TokenInfo{
		UUID:       s.apps.UUIDHex(),
		Version:    s.apps.Version().String(),
		Port:       port,
		NFCPowered: s.apps.NFCPowered(),
	}
	if err := adv.Advertise(ctx, info); err != nil {
		return fmt.Errorf("advertise: %w", err)
	}
	s.advertiser = adv
	s.logger.Info("advertising token", "instance", discovery.InstanceName(info.UUID))
	return nil
}

func (s *simulator) stop() error {
	if s.advertiser != nil {
		if err := s.advertiser.Stop(); err != nil {
			s.logger.Warn("stop advertiser", "error", err)
		}
	}
	return s.server.Stop()
}

func (s *simulator) close() {
	if s.protocolLog != nil {
		if n := s.protocolLog.Dropped(); n > 0 {
			s.logger.Warn("protocol log dropped events", "count", n, "error", s.protocolLog.Err())
		}
		if err := s.protocolLog.Close(); err != nil {
			s.logger.Warn("close protocol log", "error", err)
		}
		s.protocolLog = nil
	}
}

func listenPort(addr net.Addr) (uint16, error) {
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("parse port %q: %w", portStr, err)
	}
	return uint16(port), nil
}
