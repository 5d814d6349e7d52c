// Package ensemble describes the set of servers a client connects to and the
// optional namespace prefix that scopes all of its operations.
package ensemble

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is used for server endpoints given without a port.
const DefaultPort = 2181

// Ensemble errors.
var (
	ErrNoServers     = errors.New("ensemble: at least one server is required")
	ErrInvalidServer = errors.New("ensemble: invalid server endpoint")
	ErrInvalidPath   = errors.New("ensemble: invalid namespace path")
)

// Ensemble is an immutable, validated set of server endpoints plus an
// optional namespace prefix.
type Ensemble struct {
	servers   []string
	namespace string
}

// New validates servers and namespace and returns the descriptor.
// Duplicate endpoints are dropped, keeping the first occurrence.
// An empty namespace means the global namespace.
func New(servers []string, namespace string) (*Ensemble, error) {
	if len(servers) == 0 {
		return nil, ErrNoServers
	}

	seen := make(map[string]bool, len(servers))
	normalized := make([]string, 0, len(servers))
	for _, s := range servers {
		ep, err := NormalizeEndpoint(s)
		if err != nil {
			return nil, err
		}
		if seen[ep] {
			continue
		}
		seen[ep] = true
		normalized = append(normalized, ep)
	}

	if namespace != "" {
		if err := ValidatePath(namespace); err != nil {
			return nil, err
		}
	}

	return &Ensemble{servers: normalized, namespace: namespace}, nil
}

// Servers returns a copy of the endpoints in their configured order.
func (e *Ensemble) Servers() []string {
	out := make([]string, len(e.servers))
	copy(out, e.servers)
	return out
}

// Namespace returns the namespace prefix, or "" for the global namespace.
func (e *Ensemble) Namespace() string {
	return e.namespace
}

// ConnectString renders the endpoints and namespace in the form accepted by
// coordination-service clients: "host1:2181,host2:2181/prefix".
func (e *Ensemble) ConnectString() string {
	return strings.Join(e.servers, ",") + e.namespace
}

// String implements fmt.Stringer.
func (e *Ensemble) String() string {
	return e.ConnectString()
}

// NormalizeEndpoint validates a host[:port] endpoint and fills in DefaultPort.
func NormalizeEndpoint(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty endpoint", ErrInvalidServer)
	}

	host, port, err := net.SplitHostPort(s)
	if err != nil {
		// No port given; accept bare hosts and bare IPv6 literals.
		host = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		if strings.ContainsAny(host, "[]/") {
			return "", fmt.Errorf("%w: %q", ErrInvalidServer, s)
		}
		return net.JoinHostPort(host, strconv.Itoa(DefaultPort)), nil
	}
	if host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidServer, s)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return "", fmt.Errorf("%w: %q has invalid port", ErrInvalidServer, s)
	}
	return net.JoinHostPort(host, port), nil
}
