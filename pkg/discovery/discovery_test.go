package discovery

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	mu   sync.Mutex
	down bool
}

func (s *fakeServer) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = true
}

func (s *fakeServer) isDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.down
}

type registered struct {
	instance string
	port     int
	txt      []string
	ttl      uint32
	server   *fakeServer
}

func newTestAdvertiser(t *testing.T, fail error) (*MDNSAdvertiser, *[]registered) {
	t.Helper()
	a, err := NewMDNSAdvertiser(DefaultAdvertiserConfig())
	require.NoError(t, err)

	var calls []registered
	a.register = func(instance string, port int, txt []string, _ []net.Interface, ttl uint32) (registration, error) {
		if fail != nil {
			return nil, fail
		}
		s := &fakeServer{}
		calls = append(calls, registered{instance: instance, port: port, txt: txt, ttl: ttl, server: s})
		return s, nil
	}
	return a, &calls
}

func TestAdvertiseRegistersMember(t *testing.T) {
	a, calls := newTestAdvertiser(t, nil)

	err := a.Advertise(context.Background(), &Member{Ensemble: "prod", ServerID: 2, Version: "3.9.2"})
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	c := (*calls)[0]
	assert.Equal(t, "prod-2", c.instance)
	assert.Equal(t, DefaultPort, c.port)
	assert.Equal(t, uint32(120), c.ttl)
	assert.Equal(t, []string{"ens=prod", "sid=2", "ver=3.9.2"}, c.txt)
	assert.Equal(t, []Member{{Ensemble: "prod", ServerID: 2, Version: "3.9.2"}}, a.Members())
}

func TestAdvertiseReplacesSameServer(t *testing.T) {
	a, calls := newTestAdvertiser(t, nil)
	ctx := context.Background()

	require.NoError(t, a.Advertise(ctx, &Member{Ensemble: "prod", ServerID: 1, Port: 2182}))
	require.NoError(t, a.Advertise(ctx, &Member{Ensemble: "prod", ServerID: 1, Port: 2183, ReadOnly: true}))

	require.Len(t, *calls, 2)
	assert.True(t, (*calls)[0].server.isDown())
	assert.False(t, (*calls)[1].server.isDown())
	assert.Equal(t, 2183, (*calls)[1].port)
	assert.Contains(t, (*calls)[1].txt, "ro")
	assert.Len(t, a.Members(), 1)
}

func TestAdvertiseRejectsInvalidMember(t *testing.T) {
	a, calls := newTestAdvertiser(t, nil)

	err := a.Advertise(context.Background(), &Member{ServerID: 1})
	assert.ErrorIs(t, err, ErrInvalidEnsemble)

	long := make([]byte, MaxEnsembleNameLen+1)
	for i := range long {
		long[i] = 'a'
	}
	err = a.Advertise(context.Background(), &Member{Ensemble: string(long), ServerID: 1})
	assert.ErrorIs(t, err, ErrInvalidEnsemble)
	assert.Empty(t, *calls)
}

func TestAdvertiseRegisterError(t *testing.T) {
	boom := errors.New("no multicast")
	a, _ := newTestAdvertiser(t, boom)

	err := a.Advertise(context.Background(), &Member{Ensemble: "prod", ServerID: 1})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, a.Members())
}

func TestAdvertiseCancelledContext(t *testing.T) {
	a, calls := newTestAdvertiser(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.Advertise(ctx, &Member{Ensemble: "prod", ServerID: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, *calls)
}

func TestUpdateAndStop(t *testing.T) {
	a, calls := newTestAdvertiser(t, nil)
	ctx := context.Background()

	err := a.Update(&Member{Ensemble: "prod", ServerID: 9})
	assert.Error(t, err)

	require.NoError(t, a.Advertise(ctx, &Member{Ensemble: "prod", ServerID: 1}))
	require.NoError(t, a.Advertise(ctx, &Member{Ensemble: "prod", ServerID: 2}))
	require.NoError(t, a.Update(&Member{Ensemble: "prod", ServerID: 2, Version: "3.9.3"}))
	require.Len(t, *calls, 3)
	assert.True(t, (*calls)[1].server.isDown())

	require.NoError(t, a.Stop(1))
	assert.True(t, (*calls)[0].server.isDown())
	assert.Equal(t, []Member{{Ensemble: "prod", ServerID: 2, Version: "3.9.3"}}, a.Members())

	// Stopping an unknown member is a no-op.
	require.NoError(t, a.Stop(42))

	a.StopAll()
	assert.True(t, (*calls)[2].server.isDown())
	assert.Empty(t, a.Members())
}

// feed is a browse source driven by the test.
type feed struct {
	entries chan *ServiceEntry
	removed chan *ServiceEntry
}

func newTestBrowser(t *testing.T) (*MDNSBrowser, *feed) {
	t.Helper()
	b, err := NewMDNSBrowser(BrowserConfig{BrowseTimeout: 200 * time.Millisecond})
	require.NoError(t, err)

	f := &feed{
		entries: make(chan *ServiceEntry),
		removed: make(chan *ServiceEntry),
	}
	b.source = func(ctx context.Context, entries, removed chan<- *ServiceEntry) error {
		for {
			select {
			case e := <-f.entries:
				select {
				case entries <- e:
				case <-ctx.Done():
					return ctx.Err()
				}
			case e := <-f.removed:
				select {
				case removed <- e:
				case <-ctx.Done():
					return ctx.Err()
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return b, f
}

func member(instance, ensemble, sid string, addrs ...string) *ServiceEntry {
	return &ServiceEntry{
		Instance: instance,
		Service:  ServiceType,
		Domain:   Domain,
		Host:     instance + ".local.",
		Port:     2181,
		Text:     []string{"ens=" + ensemble, "sid=" + sid},
		Addrs:    addrs,
	}
}

func TestBrowseAggregatesByInstance(t *testing.T) {
	b, f := newTestBrowser(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	found, err := b.Browse(ctx, "prod")
	require.NoError(t, err)

	f.entries <- member("prod-1", "prod", "1", "192.168.1.10")
	first := <-found
	assert.Equal(t, "prod-1", first.InstanceName)
	assert.Equal(t, uint32(1), first.ServerID)

	// Same member on another interface is merged, not re-emitted.
	f.entries <- member("prod-1", "prod", "1", "fe80::1")
	// Members of other ensembles and malformed records are dropped.
	f.entries <- member("test-1", "test", "1", "192.168.1.20")
	f.entries <- &ServiceEntry{Instance: "junk", Text: []string{"sid=x"}}
	f.entries <- member("prod-2", "prod", "2", "192.168.1.11")

	second := <-found
	assert.Equal(t, "prod-2", second.InstanceName)

	cancel()
	for range found {
		t.Fatal("unexpected member after cancel")
	}
	assert.Equal(t, []string{"192.168.1.10", "fe80::1"}, first.Addresses)
}

func TestBrowseFilters(t *testing.T) {
	b, f := newTestBrowser(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	found, err := b.Browse(ctx, "", FilterWritable())
	require.NoError(t, err)

	ro := member("prod-3", "prod", "3", "192.168.1.12")
	ro.Text = append(ro.Text, "ro")
	f.entries <- ro
	f.entries <- member("test-1", "test", "1", "192.168.1.20")

	svc := <-found
	assert.Equal(t, "test", svc.Ensemble)
}

func TestBrowseRemovalPrunesAddresses(t *testing.T) {
	b, f := newTestBrowser(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	found, err := b.Browse(ctx, "prod")
	require.NoError(t, err)

	f.entries <- member("prod-1", "prod", "1", "192.168.1.10")
	<-found

	// Fully withdrawn: the next announcement is a new member again.
	f.removed <- member("prod-1", "prod", "1", "192.168.1.10")
	f.entries <- member("prod-1", "prod", "1", "10.0.0.10")

	again := <-found
	assert.Equal(t, []string{"10.0.0.10"}, again.Addresses)
}

func TestResolveOrdersByServerID(t *testing.T) {
	b, f := newTestBrowser(t)

	go func() {
		f.entries <- member("prod-3", "prod", "3", "192.168.1.13")
		f.entries <- member("prod-1", "prod", "1", "fe80::1", "192.168.1.11")
		f.entries <- member("prod-2", "prod", "2", "fe80::2")
	}()

	servers, err := b.Resolve(context.Background(), "prod")
	require.NoError(t, err)
	assert.Equal(t, []string{"192.168.1.11:2181", "[fe80::2]:2181", "192.168.1.13:2181"}, servers)
}

func TestResolveNotFound(t *testing.T) {
	b, _ := newTestBrowser(t)

	_, err := b.Resolve(context.Background(), "prod")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStopCancelsBrowse(t *testing.T) {
	b, _ := newTestBrowser(t)

	found, err := b.Browse(context.Background(), "prod")
	require.NoError(t, err)

	b.Stop()
	select {
	case _, ok := <-found:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("browse not stopped")
	}

	_, err = b.Browse(context.Background(), "prod")
	assert.ErrorIs(t, err, ErrStopped)
}
