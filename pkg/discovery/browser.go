package discovery

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Browser finds simulated tokens on the local network.
type Browser interface {
	// Browse streams tokens as they are found. The channel is closed when
	// ctx is done.
	Browse(ctx context.Context) (<-chan *TokenService, error)

	// FindByUUID returns the token with the given UUID.
	FindByUUID(ctx context.Context, uuid string) (*TokenService, error)
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout bounds FindByUUID when ctx has no deadline.
	// Default: 5 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{BrowseTimeout: BrowseTimeout}
}

// MDNSBrowser implements Browser using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	return &MDNSBrowser{config: config}
}

// Browse searches for tokens. Services are aggregated by instance name;
// addresses seen on several interfaces are merged into one entry.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *TokenService, error) {
	out := make(chan *TokenService)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go aggregate(ctx, entries, removed, out)
	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.options()...)
	}()

	return out, nil
}

// FindByUUID browses until the token with the given UUID shows up.
func (b *MDNSBrowser) FindByUUID(ctx context.Context, uuid string) (*TokenService, error) {
	if err := ValidateUUID(uuid); err != nil {
		return nil, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.BrowseTimeout)
		defer cancel()
	}

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	return findUUID(ctx, results, uuid)
}

func findUUID(ctx context.Context, results <-chan *TokenService, uuid string) (*TokenService, error) {
	for {
		select {
		case svc, ok := <-results:
			if !ok {
				return nil, ErrNotFound
			}
			if strings.EqualFold(svc.UUID, uuid) {
				return svc, nil
			}
		case <-ctx.Done():
			return nil, ErrNotFound
		}
	}
}

func (b *MDNSBrowser) options() []zeroconf.ClientOption {
	if b.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(b.config.Interface)
	if err != nil {
		return nil
	}
	return []zeroconf.ClientOption{zeroconf.SelectIfaces([]net.Interface{*iface})}
}

// aggregate turns zeroconf entries into TokenServices, emitting each
// instance once and merging the addresses of later sightings into it.
func aggregate(ctx context.Context, entries, removed <-chan *zeroconf.ServiceEntry, out chan<- *TokenService) {
	defer close(out)

	services := make(map[string]*TokenService)
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			svc := entryToToken(entry)
			if svc == nil {
				continue
			}
			if existing, found := services[svc.InstanceName]; found {
				existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				continue
			}
			services[svc.InstanceName] = svc
			select {
			case out <- svc:
			case <-ctx.Done():
				return
			}

		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			if existing, found := services[entry.Instance]; found {
				existing.Addresses = removeAddresses(existing.Addresses, entry)
				if len(existing.Addresses) == 0 {
					delete(services, entry.Instance)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

// entryToToken converts a zeroconf entry, or returns nil when its TXT
// records do not describe a token.
func entryToToken(entry *zeroconf.ServiceEntry) *TokenService {
	info, err := DecodeTokenTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		return nil
	}
	return &TokenService{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addresses:    entryAddresses(entry),
		UUID:         info.UUID,
		Version:      info.Version,
		NFCPowered:   info.NFCPowered,
		Transports:   info.Transports,
	}
}

func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

// mergeAddresses appends the addresses not yet in existing.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops the entry's addresses from the list.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	gone := make(map[string]bool)
	for _, addr := range entryAddresses(entry) {
		gone[addr] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !gone[addr] {
			result = append(result, addr)
		}
	}
	return result
}

// Address returns host:port for dialing the token. Resolved IPv4
// addresses come first.
func (s *TokenService) Address() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return net.JoinHostPort(strings.TrimSuffix(host, "."), strconv.Itoa(int(s.Port)))
}

var _ Browser = (*MDNSBrowser)(nil)
