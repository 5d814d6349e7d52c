package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// registration is an active advertisement.
type registration interface {
	Shutdown()
}

// registerFunc publishes one service instance.
type registerFunc func(instance string, port int, txt []string, ifaces []net.Interface, ttl uint32) (registration, error)

// sourceFunc feeds browse results until ctx ends.
type sourceFunc func(ctx context.Context, entries, removed chan<- *ServiceEntry) error

// MDNSAdvertiser implements the Advertiser interface using zeroconf.
type MDNSAdvertiser struct {
	config   AdvertiserConfig
	register registerFunc

	mu sync.Mutex

	// Active services, keyed by server id
	servers map[uint32]registration
	members map[uint32]Member
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) (*MDNSAdvertiser, error) {
	return &MDNSAdvertiser{
		config:   config,
		register: zeroconfRegister,
		servers:  make(map[uint32]registration),
		members:  make(map[uint32]Member),
	}, nil
}

func zeroconfRegister(instance string, port int, txt []string, ifaces []net.Interface, ttl uint32) (registration, error) {
	var opts []zeroconf.ServerOption
	if ttl > 0 {
		opts = append(opts, zeroconf.TTL(ttl))
	}
	return zeroconf.Register(instance, ServiceType, Domain, port, txt, ifaces, opts...)
}

// getInterfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *MDNSAdvertiser) getInterfaces() []net.Interface {
	return selectInterface(a.config.Interface)
}

// Advertise starts advertising an ensemble member.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, m *Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.advertiseLocked(m)
}

// Update replaces the TXT records of an advertised member.
func (a *MDNSAdvertiser) Update(m *Member) error {
	if err := m.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.servers[m.ServerID]; !exists {
		return fmt.Errorf("no advertisement for server %d", m.ServerID)
	}
	return a.advertiseLocked(m)
}

func (a *MDNSAdvertiser) advertiseLocked(m *Member) error {
	// Stop existing for this server if any
	if server, exists := a.servers[m.ServerID]; exists {
		server.Shutdown()
		delete(a.servers, m.ServerID)
		delete(a.members, m.ServerID)
	}

	txtStrings := TXTRecordsToStrings(EncodeMemberTXT(m))

	port := int(m.Port)
	if port == 0 {
		port = DefaultPort
	}

	server, err := a.register(m.InstanceName(), port, txtStrings, a.getInterfaces(), uint32(a.config.TTL.Seconds()))
	if err != nil {
		return fmt.Errorf("failed to register member service: %w", err)
	}

	a.servers[m.ServerID] = server
	a.members[m.ServerID] = *m
	return nil
}

// Stop stops advertising the member with the given server id.
func (a *MDNSAdvertiser) Stop(serverID uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if server, exists := a.servers[serverID]; exists {
		server.Shutdown()
		delete(a.servers, serverID)
		delete(a.members, serverID)
	}
	return nil
}

// StopAll stops all advertisements.
func (a *MDNSAdvertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, server := range a.servers {
		server.Shutdown()
		delete(a.servers, id)
	}
	clear(a.members)
}

// Members returns the currently advertised members ordered by server id.
func (a *MDNSAdvertiser) Members() []Member {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Member, 0, len(a.members))
	for _, m := range a.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServerID < out[j].ServerID })
	return out
}

// MDNSBrowser implements the Browser interface using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
	source sourceFunc

	mu      sync.Mutex
	stopped bool
	nextID  int
	cancels map[int]context.CancelFunc
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) (*MDNSBrowser, error) {
	b := &MDNSBrowser{
		config:  config,
		cancels: make(map[int]context.CancelFunc),
	}
	b.source = b.zeroconfSource
	return b, nil
}

// Browse searches for members of the named ensemble.
// Services are aggregated by instance name - addresses from multiple interfaces
// are combined into a single entry. Removals are handled when interfaces disappear.
func (b *MDNSBrowser) Browse(ctx context.Context, ensemble string, filters ...FilterFunc) (<-chan *MemberService, error) {
	ctx, release, err := b.track(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan *MemberService)
	entries := make(chan *ServiceEntry)
	removed := make(chan *ServiceEntry)

	filters = append([]FilterFunc{FilterByEnsemble(ensemble)}, filters...)

	// Process entries with aggregation
	go func() {
		defer close(out)
		defer release()
		aggregate(ctx, entries, removed, out, filters)
	}()

	// Start browsing in background
	go func() {
		_ = b.source(ctx, entries, removed)
	}()

	return out, nil
}

// Resolve browses for BrowseTimeout and returns the endpoints of every
// member found, ordered by server id.
func (b *MDNSBrowser) Resolve(ctx context.Context, ensemble string) ([]string, error) {
	timeout := b.config.BrowseTimeout
	if timeout <= 0 {
		timeout = BrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	found, err := b.Browse(ctx, ensemble)
	if err != nil {
		return nil, err
	}

	var members []*MemberService
	for svc := range found {
		members = append(members, svc)
	}

	// The aggregator has exited once found is closed.
	return Endpoints(members, ensemble)
}

// Endpoints orders members by server id and returns one endpoint per id.
func Endpoints(members []*MemberService, ensemble string) ([]string, error) {
	sort.SliceStable(members, func(i, j int) bool { return members[i].ServerID < members[j].ServerID })

	var servers []string
	seen := make(map[uint32]bool, len(members))
	for _, svc := range members {
		if seen[svc.ServerID] || (len(svc.Addresses) == 0 && svc.Host == "") {
			continue
		}
		seen[svc.ServerID] = true
		servers = append(servers, svc.Endpoint())
	}

	if len(servers) == 0 {
		if ensemble == "" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: ensemble %q", ErrNotFound, ensemble)
	}
	return servers, nil
}

// Stop stops all active browsing operations. Later calls to Browse fail
// with ErrStopped.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	for id, cancel := range b.cancels {
		cancel()
		delete(b.cancels, id)
	}
}

// track derives a browse context that Stop cancels.
func (b *MDNSBrowser) track(ctx context.Context) (context.Context, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return nil, nil, ErrStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	id := b.nextID
	b.nextID++
	b.cancels[id] = cancel

	release := func() {
		cancel()
		b.mu.Lock()
		delete(b.cancels, id)
		b.mu.Unlock()
	}
	return ctx, release, nil
}

// aggregate merges browse results by instance name and emits each member
// the first time it is seen. It returns when ctx ends or entries closes.
func aggregate(ctx context.Context, entries, removed <-chan *ServiceEntry, out chan<- *MemberService, filters []FilterFunc) {
	// Track services by instance name, aggregating addresses
	services := make(map[string]*MemberService)

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			svc, err := entry.ToMemberService()
			if err != nil || !ApplyFilters(svc, filters...) {
				continue
			}

			existing, found := services[svc.InstanceName]
			if found {
				// Merge addresses into existing entry
				existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				continue
			}

			// New service - store and emit
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
			// Remove addresses that came from this interface
			if existing, found := services[entry.Instance]; found {
				existing.Addresses = removeAddresses(existing.Addresses, entry.Addrs)
				// If no addresses remain, remove the service
				if len(existing.Addresses) == 0 {
					delete(services, entry.Instance)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

// zeroconfSource browses the network and converts zeroconf entries.
func (b *MDNSBrowser) zeroconfSource(ctx context.Context, entries, removed chan<- *ServiceEntry) error {
	zEntries := make(chan *zeroconf.ServiceEntry)
	zRemoved := make(chan *zeroconf.ServiceEntry)

	go func() {
		in, gone := zEntries, zRemoved
		for in != nil || gone != nil {
			var (
				entry *zeroconf.ServiceEntry
				ok    bool
				dst   chan<- *ServiceEntry
			)
			select {
			case entry, ok = <-in:
				if !ok {
					in = nil
					continue
				}
				dst = entries
			case entry, ok = <-gone:
				if !ok {
					gone = nil
					continue
				}
				dst = removed
			case <-ctx.Done():
				return
			}

			select {
			case dst <- fromZeroconf(entry):
			case <-ctx.Done():
				return
			}
		}
	}()

	return zeroconf.Browse(ctx, ServiceType, Domain, zEntries, zRemoved, b.browserOptions()...)
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	// Select specific interface if configured
	if ifaces := selectInterface(b.config.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}

	return opts
}

// fromZeroconf converts a zeroconf entry to a ServiceEntry.
func fromZeroconf(entry *zeroconf.ServiceEntry) *ServiceEntry {
	// Collect addresses
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	return &ServiceEntry{
		Instance: entry.Instance,
		Service:  entry.Service,
		Domain:   entry.Domain,
		Host:     entry.HostName,
		Port:     uint16(entry.Port),
		Text:     entry.Text,
		Addrs:    addrs,
	}
}

// selectInterface returns the named interface, or nil for all interfaces.
func selectInterface(name string) []net.Interface {
	if name == "" {
		return nil
	}

	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, new []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range new {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses removes the given addresses from the list.
func removeAddresses(addresses, gone []string) []string {
	// Build set of addresses to remove
	toRemove := make(map[string]bool, len(gone))
	for _, addr := range gone {
		toRemove[addr] = true
	}

	// Filter out removed addresses
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}

// Ensure MDNSAdvertiser implements Advertiser interface.
var _ Advertiser = (*MDNSAdvertiser)(nil)

// Ensure MDNSBrowser implements Browser interface.
var _ Browser = (*MDNSBrowser)(nil)
