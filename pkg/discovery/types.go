package discovery

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceType is the service type advertised by ensemble members.
	ServiceType = "_keeper._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default client port of an ensemble member.
	DefaultPort = 2181
)

// TXT record key constants.
const (
	TXTKeyEnsemble = "ens" // Ensemble name
	TXTKeyServerID = "sid" // Server id within the ensemble
	TXTKeyReadOnly = "ro"  // Present if the member only serves reads (optional)
	TXTKeyVersion  = "ver" // Server version (optional)
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 3 * time.Second

	// DefaultTTL is the default DNS record TTL for advertisements.
	DefaultTTL = 120 * time.Second
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxEnsembleNameLen leaves room for "-<server-id>" in the instance name.
	MaxEnsembleNameLen = 48
)

// Errors.
var (
	ErrMissingRequired     = errors.New("missing required TXT record")
	ErrInvalidServerID     = errors.New("invalid server id")
	ErrInvalidEnsemble     = errors.New("invalid ensemble name")
	ErrInstanceNameTooLong = errors.New("instance name too long")
	ErrNotFound            = errors.New("no ensemble members found")
	ErrStopped             = errors.New("browser stopped")
)

// Member describes an ensemble server to advertise.
type Member struct {
	// Ensemble is the name shared by all members of one ensemble.
	Ensemble string

	// ServerID identifies the member within its ensemble.
	ServerID uint32

	// Port is the client port. Zero means DefaultPort.
	Port uint16

	// ReadOnly marks members that only serve reads.
	ReadOnly bool

	// Version is the server version (optional).
	Version string
}

// InstanceName returns the DNS-SD instance name "<ensemble>-<server-id>".
func (m *Member) InstanceName() string {
	return fmt.Sprintf("%s-%d", m.Ensemble, m.ServerID)
}

// Validate checks that m can be advertised.
func (m *Member) Validate() error {
	if m.Ensemble == "" || len(m.Ensemble) > MaxEnsembleNameLen {
		return fmt.Errorf("%w: %q", ErrInvalidEnsemble, m.Ensemble)
	}
	return ValidateInstanceName(m.InstanceName())
}

// MemberService is a discovered ensemble member.
type MemberService struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string

	Ensemble string
	ServerID uint32
	ReadOnly bool
	Version  string
}

// Endpoint returns the "host:port" clients should dial. IPv4 addresses are
// preferred; the advertised host name is used when no address is known.
func (s *MemberService) Endpoint() string {
	host := s.Host
	var v6 string
	for _, addr := range s.Addresses {
		ip := net.ParseIP(addr)
		switch {
		case ip == nil:
		case ip.To4() != nil:
			return net.JoinHostPort(addr, strconv.Itoa(int(s.Port)))
		case v6 == "":
			v6 = addr
		}
	}
	if v6 != "" {
		host = v6
	}
	return net.JoinHostPort(host, strconv.Itoa(int(s.Port)))
}

// ServiceEntry is a browse result independent of the mDNS library.
type ServiceEntry struct {
	Instance string
	Service  string
	Domain   string
	Host     string
	Port     uint16
	Text     []string
	Addrs    []string
}

// ToMemberService converts a ServiceEntry to MemberService.
func (e *ServiceEntry) ToMemberService() (*MemberService, error) {
	txt := StringsToTXTRecords(e.Text)
	m, err := DecodeMemberTXT(txt)
	if err != nil {
		return nil, err
	}

	return &MemberService{
		InstanceName: e.Instance,
		Host:         e.Host,
		Port:         e.Port,
		Addresses:    append([]string(nil), e.Addrs...),
		Ensemble:     m.Ensemble,
		ServerID:     m.ServerID,
		ReadOnly:     m.ReadOnly,
		Version:      m.Version,
	}, nil
}
