// Package discovery implements mDNS/DNS-SD discovery of ensemble members.
//
// Every ensemble server can advertise a single service type:
//
// # Member Discovery (_keeper._tcp)
//
// Instance name format: <ensemble>-<server-id>
// TXT records include: ens (ensemble name), sid (server id), and
// optionally ro (read-only member) and ver (server version).
//
// Clients browse for members of one ensemble and turn the aggregated
// results into "host:port" endpoints suitable for client.Config.Servers:
//
//	browser, _ := discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig())
//	servers, err := browser.Resolve(ctx, "prod")
//	if err != nil {
//	    return err
//	}
//	cfg.Servers = servers
//
// A member reachable on several interfaces is reported once; its addresses
// are merged as further announcements arrive and pruned as they are
// withdrawn.
package discovery
