package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/attn-provisioner/provisioner-go/pkg/transport"
	"github.com/attn-provisioner/provisioner-go/pkg/version"
)

// DefaultStoreCapacity is the emulated filesystem size in bytes.
const DefaultStoreCapacity = 256 * 1024

// Config holds the simulator configuration.
type Config struct {
	// UUID is the device UUID. Empty generates a random one at startup.
	UUID string `yaml:"uuid"`

	// Version is the firmware version reported by the token.
	Version string `yaml:"version"`

	// StoreDir holds the emulated filesystem and flash image.
	StoreDir string `yaml:"store_dir"`

	// StoreCapacity bounds the bytes stored in StoreDir.
	StoreCapacity int `yaml:"store_capacity"`

	// Listen is the simulator link address.
	Listen string `yaml:"listen"`

	// Advertise enables mDNS advertisement of the token.
	Advertise bool `yaml:"advertise"`

	// ProtocolLog is the path of a CBOR protocol log. Empty disables it.
	ProtocolLog string `yaml:"protocol_log"`

	// ProtocolLogMaxSize rotates the protocol log at this many bytes.
	// Zero keeps a single growing file.
	ProtocolLogMaxSize int64 `yaml:"protocol_log_max_size"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// NFCPowered marks the token as running from the NFC field.
	NFCPowered bool `yaml:"nfc_powered"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Version:       version.Current,
		StoreDir:      "provisioner-sim-data",
		StoreCapacity: DefaultStoreCapacity,
		Listen:        fmt.Sprintf(":%d", transport.DefaultPort),
		LogLevel:      "info",
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.UUID != "" {
		if _, err := uuid.Parse(c.UUID); err != nil {
			return fmt.Errorf("invalid uuid %q: %w", c.UUID, err)
		}
	}
	if _, err := version.Parse(c.Version); err != nil {
		return fmt.Errorf("invalid version %q: %w", c.Version, err)
	}
	if c.StoreDir == "" {
		return errors.New("store_dir is required")
	}
	if c.StoreCapacity <= 0 {
		return fmt.Errorf("store_capacity must be positive, got %d", c.StoreCapacity)
	}
	if c.ProtocolLogMaxSize < 0 {
		return fmt.Errorf("protocol_log_max_size must not be negative, got %d", c.ProtocolLogMaxSize)
	}
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// DeviceUUID returns the configured UUID or a fresh random one.
func (c Config) DeviceUUID() (uuid.UUID, error) {
	if c.UUID == "" {
		return uuid.New(), nil
	}
	return uuid.Parse(c.UUID)
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}
