// Package zkconn adapts github.com/go-zookeeper/zk to connection.Dialer.
//
// The library reconnects and resumes its own session transparently across
// transport failures, but does not expose the session password or accept a
// session to resume. Handles therefore report an empty password, ignore
// DialRequest.Resume, and cannot be detached: dropping a handle ends its
// session.
//
// Library events are translated before they reach the manager:
//
//	zk.StateConnecting, zk.StateConnected  -> event.StateConnecting
//	zk.StateHasSession                     -> event.StateConnected
//	zk.StateConnectedReadOnly              -> event.StateConnectedReadOnly
//	zk.StateDisconnected                   -> event.StateDisconnected
//	zk.StateExpired                        -> event.StateExpired
//	zk.StateAuthFailed                     -> event.StateAuthFailed
//
// zk.StateConnected only means the transport is up; the session exists once
// zk.StateHasSession is reported.
package zkconn
