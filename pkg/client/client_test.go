package client_test

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeper-client/keeper-go/pkg/client"
	"github.com/keeper-client/keeper-go/pkg/connection"
	"github.com/keeper-client/keeper-go/pkg/dispatch"
	"github.com/keeper-client/keeper-go/pkg/event"
	"github.com/keeper-client/keeper-go/pkg/fault"
	"github.com/keeper-client/keeper-go/pkg/keepertest"
	"github.com/keeper-client/keeper-go/pkg/log"
	"github.com/keeper-client/keeper-go/pkg/metrics"
	"github.com/keeper-client/keeper-go/pkg/retry"
	"github.com/keeper-client/keeper-go/pkg/watch"
)

type traceRecorder struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *traceRecorder) Log(e log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *traceRecorder) byCategory(c log.Category) []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []log.Event
	for _, e := range r.events {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

type collector struct {
	mu   sync.Mutex
	seen []event.Notification
}

func (c *collector) Process(n event.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, n)
}

func (c *collector) nodes() []event.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []event.Notification
	for _, n := range c.seen {
		if !n.IsSession() {
			out = append(out, n)
		}
	}
	return out
}

func testConfig() client.Config {
	cfg := client.DefaultConfig()
	cfg.Servers = []string{"zk1", "zk2:2182"}
	cfg.Namespace = "/svc"
	return cfg
}

func newClient(t *testing.T, cfg client.Config) (*client.Client, *keepertest.Ensemble) {
	t.Helper()
	ens := keepertest.NewEnsemble()
	c, err := client.New(ens, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown() })
	return c, ens
}

func flush(t *testing.T, c *client.Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Flush(ctx))
}

func node(typ event.Type, path string) event.Notification {
	return event.Notification{Type: typ, State: event.StateConnected, Path: path}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Namespace = "/trailing/"

	_, err := client.New(keepertest.NewEnsemble(), cfg)
	assert.ErrorIs(t, err, client.ErrInvalidConfig)
}

func TestClientIdentity(t *testing.T) {
	c, _ := newClient(t, testConfig())

	assert.Len(t, c.ID(), 36)
	assert.Equal(t, "zk1:2181,zk2:2182/svc", c.Ensemble().ConnectString())
	assert.Equal(t, connection.StateDisconnected, c.State())
	assert.True(t, c.IsClosed())
}

func TestConnectLazilyAndReuse(t *testing.T) {
	c, ens := newClient(t, testConfig())

	first, err := c.Connect(context.Background())
	require.NoError(t, err)
	second, err := c.Connect(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, ens.DialCount())
	assert.Equal(t, connection.StateConnected, c.State())

	req, _ := ens.LastRequest()
	assert.Equal(t, []string{"zk1:2181", "zk2:2182"}, req.Servers)
	assert.Equal(t, "/svc", req.Namespace)
	assert.Equal(t, 10*time.Second, req.SessionTimeout)
}

func TestDeliveryIsOrderedExactlyOnce(t *testing.T) {
	c, ens := newClient(t, testConfig())
	w := &collector{}
	require.NoError(t, c.Register(w))
	require.NoError(t, c.Register(w))

	_, err := c.Connect(context.Background())
	require.NoError(t, err)

	e1 := node(event.TypeNodeCreated, "/svc/a")
	e2 := node(event.TypeNodeDataChanged, "/svc/a")
	e3 := node(event.TypeNodeDeleted, "/svc/a")
	conn := ens.Current()
	conn.Emit(e1)
	conn.Emit(e2)
	conn.Emit(e3)
	flush(t, c)

	assert.Equal(t, []event.Notification{e1, e2, e3}, w.nodes())
}

func TestUnregisterStopsDelivery(t *testing.T) {
	c, ens := newClient(t, testConfig())
	w := &collector{}
	require.NoError(t, c.Register(w))

	_, err := c.Connect(context.Background())
	require.NoError(t, err)

	e1 := node(event.TypeNodeCreated, "/x")
	ens.Current().Emit(e1)
	flush(t, c)

	assert.True(t, c.Unregister(w))
	assert.False(t, c.Unregister(w))

	ens.Current().Emit(node(event.TypeNodeDeleted, "/x"))
	flush(t, c)

	assert.Equal(t, []event.Notification{e1}, w.nodes())
}

func TestWatchersSurviveReconnect(t *testing.T) {
	c, ens := newClient(t, testConfig())
	w := &collector{}
	require.NoError(t, c.Register(w))

	_, err := c.Connect(context.Background())
	require.NoError(t, err)
	c.Close()
	_, err = c.Connect(context.Background())
	require.NoError(t, err)

	e := node(event.TypeNodeChildrenChanged, "/svc")
	ens.Current().Emit(e)
	flush(t, c)

	assert.Equal(t, []event.Notification{e}, w.nodes())
}

func TestExpirationHandler(t *testing.T) {
	c, ens := newClient(t, testConfig())

	var mu sync.Mutex
	fired := 0
	h, err := c.RegisterExpirationHandler(func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	require.NoError(t, err)

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return fired
	}

	_, err = c.Connect(context.Background())
	require.NoError(t, err)
	conn := ens.Current()
	conn.Emit(node(event.TypeNodeDeleted, "/svc/a"))
	conn.Emit(event.Session(event.StateDisconnected))
	flush(t, c)
	assert.Equal(t, 0, count())

	ens.Expire(conn)
	flush(t, c)
	assert.Equal(t, 1, count())
	assert.Eventually(t, c.IsClosed, time.Second, time.Millisecond)

	_, err = c.Connect(context.Background())
	require.NoError(t, err)
	ens.Expire(ens.Current())
	flush(t, c)
	assert.Equal(t, 2, count())

	assert.True(t, c.Unregister(h))
}

func TestShouldRetrySessionExpiredClosesSession(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := testConfig()
	cfg.Metrics = metrics.NewCollectorWithRegistry(reg)
	c, ens := newClient(t, cfg)

	conn, err := c.Connect(context.Background())
	require.NoError(t, err)
	require.False(t, c.IsClosed())

	assert.True(t, c.ShouldRetry(fault.Wrap(fault.CodeSessionExpired, "/svc/a", io.EOF)))
	assert.True(t, c.IsClosed())
	assert.False(t, ens.HasSession(conn.SessionID()))

	assert.False(t, c.ShouldRetry(fault.New(fault.CodeNoNode, "/svc/a")))

	expected := `
# HELP keeper_retry_decisions_total Total number of retry classifications
# TYPE keeper_retry_decisions_total counter
keeper_retry_decisions_total{code="NO_NODE",verdict="give_up"} 1
keeper_retry_decisions_total{code="SESSION_EXPIRED",verdict="retry"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "keeper_retry_decisions_total"))
}

func TestConnectTimeoutNeverConnected(t *testing.T) {
	c, ens := newClient(t, testConfig())
	ens.SetNeverConnect(true)

	const timeout = 40 * time.Millisecond
	start := time.Now()
	_, err := c.ConnectTimeout(context.Background(), timeout)

	assert.ErrorIs(t, err, connection.ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), timeout)
	assert.True(t, c.IsClosed())
}

func TestConfiguredConnectTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.ConnectTimeout = 20 * time.Millisecond
	c, ens := newClient(t, cfg)
	ens.SetNeverConnect(true)

	_, err := c.Connect(context.Background())
	assert.ErrorIs(t, err, connection.ErrTimeout)
}

func TestDetachResumesSession(t *testing.T) {
	c, ens := newClient(t, testConfig())

	first, err := c.Connect(context.Background())
	require.NoError(t, err)
	c.Detach()
	assert.True(t, c.IsClosed())

	second, err := c.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.SessionID(), second.SessionID())

	req, _ := ens.LastRequest()
	require.NotNil(t, req.Resume)
	assert.Equal(t, first.SessionID(), req.Resume.ID)
}

func TestCredentialsAttached(t *testing.T) {
	cfg := testConfig()
	cfg.Credentials = &client.Credentials{Scheme: "digest", Token: "app:secret"}
	c, _ := newClient(t, cfg)

	conn, err := c.Connect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []keepertest.Auth{{Scheme: "digest", Token: []byte("app:secret")}},
		conn.(*keepertest.Conn).Auths())
}

func TestDoRetriesOnNewSession(t *testing.T) {
	c, _ := newClient(t, testConfig())

	var sessions []int64
	policy := retry.Policy{MaxAttempts: 3, Backoff: retry.BackoffConfig{Initial: time.Millisecond}}
	err := c.Do(context.Background(), policy, func(_ context.Context, conn connection.Conn) error {
		sessions = append(sessions, conn.SessionID())
		if len(sessions) == 1 {
			return fault.ErrSessionExpired
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.NotEqual(t, sessions[0], sessions[1])
}

func TestDoUsesConfiguredPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Retry = retry.Policy{MaxAttempts: 2, Backoff: retry.BackoffConfig{Initial: time.Millisecond}}
	c, _ := newClient(t, cfg)

	calls := 0
	err := c.Do(context.Background(), retry.Policy{}, func(context.Context, connection.Conn) error {
		calls++
		return fault.ErrConnectionLoss
	})

	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, 2, calls)
}

func TestWatcherPanicIsIsolated(t *testing.T) {
	reg := prometheus.NewRegistry()
	trace := &traceRecorder{}
	cfg := testConfig()
	cfg.Metrics = metrics.NewCollectorWithRegistry(reg)
	cfg.Trace = trace
	c, ens := newClient(t, cfg)

	require.NoError(t, c.Register(watch.NewFunc(func(n event.Notification) {
		if !n.IsSession() {
			panic("watcher bug")
		}
	})))
	after := &collector{}
	require.NoError(t, c.Register(after))

	_, err := c.Connect(context.Background())
	require.NoError(t, err)
	e := node(event.TypeNodeCreated, "/svc/p")
	ens.Current().Emit(e)
	flush(t, c)

	assert.Equal(t, []event.Notification{e}, after.nodes())

	errs := trace.byCategory(log.CategoryError)
	require.Len(t, errs, 1)
	assert.Equal(t, log.ErrorSourceWatcher, errs[0].Error.Source)
	assert.Equal(t, "watcher bug", errs[0].Error.Message)

	expected := `
# HELP keeper_watcher_panics_total Total number of watcher invocations that panicked
# TYPE keeper_watcher_panics_total counter
keeper_watcher_panics_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "keeper_watcher_panics_total"))
}

func TestTraceEvents(t *testing.T) {
	trace := &traceRecorder{}
	cfg := testConfig()
	cfg.Trace = trace
	c, ens := newClient(t, cfg)

	conn, err := c.Connect(context.Background())
	require.NoError(t, err)
	ens.Current().Emit(node(event.TypeNodeCreated, "/svc/n"))
	c.Close()

	states := trace.byCategory(log.CategoryState)
	require.Len(t, states, 4)
	assert.Equal(t, "CONNECTING", states[0].StateChange.NewState)
	assert.Equal(t, "CONNECTED", states[1].StateChange.NewState)
	assert.Equal(t, log.StateEntitySession, states[2].StateChange.Entity)
	assert.Equal(t, "ESTABLISHED", states[2].StateChange.NewState)
	assert.Equal(t, conn.SessionID(), states[2].SessionID)
	assert.Equal(t, "DISCONNECTED", states[3].StateChange.NewState)

	notes := trace.byCategory(log.CategoryNotification)
	require.Len(t, notes, 2)
	assert.Equal(t, "/svc/n", notes[1].Notification.Path)
	assert.Equal(t, conn.SessionID(), notes[1].SessionID)

	trace.mu.Lock()
	defer trace.mu.Unlock()
	for _, e := range trace.events {
		assert.Equal(t, c.ID(), e.ClientID)
		assert.Equal(t, "zk1:2181,zk2:2182/svc", e.Servers)
	}
}

func TestTraceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.ktrace")
	cfg := testConfig()
	cfg.TraceFile = path

	ens := keepertest.NewEnsemble()
	ens.SetDialError(io.ErrUnexpectedEOF)
	c, err := client.New(ens, cfg)
	require.NoError(t, err)

	_, err = c.Connect(context.Background())
	require.ErrorIs(t, err, connection.ErrConnectionFailed)
	require.NoError(t, c.Shutdown())
	require.NoError(t, c.Shutdown())

	cat := log.CategoryError
	reader, err := log.NewFilteredReader(path, log.Filter{ClientID: c.ID(), Category: &cat})
	require.NoError(t, err)
	defer reader.Close()

	e, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, log.ErrorSourceConnect, e.Error.Source)
	assert.Contains(t, e.Error.Message, io.ErrUnexpectedEOF.Error())

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestShutdownStopsDelivery(t *testing.T) {
	c, ens := newClient(t, testConfig())
	_, err := c.Connect(context.Background())
	require.NoError(t, err)
	conn := ens.Current()

	require.NoError(t, c.Shutdown())
	assert.True(t, c.IsClosed())
	assert.True(t, conn.Closed())
	assert.ErrorIs(t, c.Flush(context.Background()), dispatch.ErrStopped)
}
