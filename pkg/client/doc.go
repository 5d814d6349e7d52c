// Package client is the public entry point of keeper-go.
//
// A Client wraps a lower-level coordination-service library (a
// connection.Dialer) and smooths over what that library leaves to its
// caller: reconnecting after transient disconnects, resuming the previous
// session instead of starting over, delivering notifications off the
// library's callback goroutine and deciding which failures are worth
// retrying.
//
//	cfg, err := client.LoadConfig("keeper.yaml")
//	...
//	c, err := client.New(zkconn.NewDialer(zkconn.Config{Logger: logger}), cfg)
//	...
//	defer c.Shutdown()
//
//	c.RegisterExpirationHandler(func() { rebuildEphemeralState() })
//
//	err = c.Do(ctx, retry.Policy{}, func(ctx context.Context, conn connection.Conn) error {
//	    return doWork(conn)
//	})
//
// Connect is lazy. It returns the live handle when one exists and otherwise
// opens a session, waiting for the ensemble to establish it. Close ends the
// session; Detach drops the handle but keeps the session resumable.
package client
