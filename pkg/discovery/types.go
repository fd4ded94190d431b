package discovery

import (
	"errors"
	"time"
)

// Service constants for mDNS.
const (
	// ServiceType is the service type advertised by simulated tokens.
	ServiceType = "_attnprov._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default simulator link port.
	DefaultPort = 8469

	// InstancePrefix starts every advertised instance name.
	InstancePrefix = "attn-"
)

// TXT record keys.
const (
	TXTKeyUUID       = "UU"
	TXTKeyVersion    = "VR"
	TXTKeyNFCPowered = "NF"
	TXTKeyTransports = "TP"
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 5 * time.Second

	// DefaultTTL is the default DNS record TTL.
	DefaultTTL = 120 * time.Second
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// UUIDHexLength is the length of a hex-encoded device UUID.
	UUIDHexLength = 32
)

// Errors.
var (
	ErrNotFound            = errors.New("token not found")
	ErrMissingRequired     = errors.New("missing required TXT field")
	ErrInvalidTXTRecord    = errors.New("invalid TXT record")
	ErrInvalidUUID         = errors.New("invalid device UUID")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotAdvertising      = errors.New("not advertising")
)

// Transport names carried in the TP record.
const (
	TransportAPDU    = "apdu"
	TransportCTAPHID = "ctaphid"
)

// TokenInfo is what a simulator advertises about itself.
type TokenInfo struct {
	// UUID is the device UUID as 32 lowercase hex digits.
	UUID string

	// Version is the firmware version string (optional).
	Version string

	// Port is the simulator link port. Zero means DefaultPort.
	Port uint16

	// NFCPowered mirrors the token's passive-power flag.
	NFCPowered bool

	// Transports lists the exposed transports. Empty means both.
	Transports []string
}

// TokenService is a token found while browsing.
type TokenService struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string

	UUID       string
	Version    string
	NFCPowered bool
	Transports []string
}

// InstanceName returns the advertised instance name for a device UUID.
func InstanceName(uuid string) string {
	if len(uuid) > 8 {
		uuid = uuid[:8]
	}
	return InstancePrefix + uuid
}
