package discovery

import (
	"context"
	"time"
)

// Browser provides mDNS service browsing capabilities.
type Browser interface {
	// Browse searches for members of the named ensemble that pass all
	// filters. An empty name matches every ensemble. The channel is closed
	// when the context is cancelled or the browser is stopped.
	Browse(ctx context.Context, ensemble string, filters ...FilterFunc) (<-chan *MemberService, error)

	// Resolve browses for the configured timeout and returns the endpoints
	// of every member found, ordered by server id.
	Resolve(ctx context.Context, ensemble string) ([]string, error)

	// Stop stops all active browsing operations.
	Stop()
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout bounds Resolve.
	// Default: 3 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
		Interface:     "",
	}
}

// FilterFunc is a function that filters browse results.
type FilterFunc func(*MemberService) bool

// FilterByEnsemble returns a filter that matches members of the named
// ensemble. An empty name matches everything.
func FilterByEnsemble(name string) FilterFunc {
	return func(svc *MemberService) bool {
		return name == "" || svc.Ensemble == name
	}
}

// FilterWritable returns a filter that drops read-only members.
func FilterWritable() FilterFunc {
	return func(svc *MemberService) bool {
		return !svc.ReadOnly
	}
}

// ApplyFilters returns true if svc passes all filters.
func ApplyFilters(svc *MemberService, filters ...FilterFunc) bool {
	for _, f := range filters {
		if !f(svc) {
			return false
		}
	}
	return true
}
