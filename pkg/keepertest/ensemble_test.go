package keepertest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeper-client/keeper-go/pkg/connection"
	"github.com/keeper-client/keeper-go/pkg/event"
	"github.com/keeper-client/keeper-go/pkg/session"
)

type recorder struct {
	mu   sync.Mutex
	seen []event.Notification
}

func (r *recorder) callback(n event.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
}

func (r *recorder) all() []event.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Notification(nil), r.seen...)
}

func request(cb event.Callback) connection.DialRequest {
	return connection.DialRequest{Servers: []string{"127.0.0.1:2181"}, Callback: cb}
}

func TestDialEstablishesSession(t *testing.T) {
	ens := NewEnsemble()
	rec := &recorder{}

	conn, err := ens.Dial(context.Background(), request(rec.callback))
	require.NoError(t, err)

	assert.NotZero(t, conn.SessionID())
	assert.Len(t, conn.SessionPassword(), PasswordLen)
	assert.Equal(t, []event.Notification{event.Session(event.StateConnected)}, rec.all())
	assert.Equal(t, 1, ens.DialCount())
	assert.Equal(t, 1, ens.OpenCount())
	assert.True(t, ens.HasSession(conn.SessionID()))
}

func TestDialRejectsEmptyServers(t *testing.T) {
	ens := NewEnsemble()
	_, err := ens.Dial(context.Background(), connection.DialRequest{})
	assert.ErrorIs(t, err, ErrNoEnsemble)
}

func TestDialError(t *testing.T) {
	ens := NewEnsemble()
	boom := errors.New("refused")
	ens.SetDialError(boom)

	_, err := ens.Dial(context.Background(), request(nil))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, ens.OpenCount())
	assert.Equal(t, 1, ens.DialCount())
}

func TestResume(t *testing.T) {
	ens := NewEnsemble()

	first, err := ens.Dial(context.Background(), request(nil))
	require.NoError(t, err)
	state := session.State{ID: first.SessionID(), Password: first.SessionPassword()}
	require.NoError(t, first.(*Conn).Detach())

	t.Run("valid", func(t *testing.T) {
		rec := &recorder{}
		req := request(rec.callback)
		req.Resume = &state

		conn, err := ens.Dial(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, state.ID, conn.SessionID())
		assert.Equal(t, state.Password, conn.SessionPassword())
		assert.Equal(t, []event.Notification{event.Session(event.StateConnected)}, rec.all())
		require.NoError(t, conn.(*Conn).Detach())
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := &recorder{}
		req := request(rec.callback)
		req.Resume = &session.State{ID: state.ID, Password: []byte("nope")}

		_, err := ens.Dial(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, []event.Notification{event.Session(event.StateExpired)}, rec.all())
	})

	t.Run("ended session", func(t *testing.T) {
		conn, err := ens.Dial(context.Background(), request(nil))
		require.NoError(t, err)
		ended := session.State{ID: conn.SessionID(), Password: conn.SessionPassword()}
		require.NoError(t, conn.Close())
		assert.False(t, ens.HasSession(ended.ID))

		rec := &recorder{}
		req := request(rec.callback)
		req.Resume = &ended
		_, err = ens.Dial(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, []event.Notification{event.Session(event.StateExpired)}, rec.all())
	})
}

func TestNeverConnect(t *testing.T) {
	ens := NewEnsemble()
	ens.SetNeverConnect(true)
	rec := &recorder{}

	_, err := ens.Dial(context.Background(), request(rec.callback))
	require.NoError(t, err)
	assert.Empty(t, rec.all())
}

func TestExpireAndDrop(t *testing.T) {
	ens := NewEnsemble()
	rec := &recorder{}

	conn, err := ens.Dial(context.Background(), request(rec.callback))
	require.NoError(t, err)
	c := conn.(*Conn)
	require.Same(t, c, ens.Current())

	ens.Drop(c)
	assert.True(t, ens.HasSession(c.SessionID()))

	ens.Expire(c)
	assert.False(t, ens.HasSession(c.SessionID()))

	assert.Equal(t, []event.Notification{
		event.Session(event.StateConnected),
		event.Session(event.StateClosed),
		event.Session(event.StateExpired),
	}, rec.all())
}

func TestReleasedConnIsSilent(t *testing.T) {
	ens := NewEnsemble()
	rec := &recorder{}

	conn, err := ens.Dial(context.Background(), request(rec.callback))
	require.NoError(t, err)
	c := conn.(*Conn)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	c.Emit(event.Notification{Type: event.TypeNodeCreated, State: event.StateConnected, Path: "/a"})
	assert.Len(t, rec.all(), 1)
	assert.Equal(t, 0, ens.OpenCount())
	assert.Nil(t, ens.Current())
	assert.True(t, c.Closed())
	assert.False(t, c.Detached())
}

func TestMaxOpen(t *testing.T) {
	ens := NewEnsemble()

	a, err := ens.Dial(context.Background(), request(nil))
	require.NoError(t, err)
	b, err := ens.Dial(context.Background(), request(nil))
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())

	assert.Equal(t, 2, ens.MaxOpen())
	assert.Equal(t, 0, ens.OpenCount())
}

func TestAuthAndCloseErrors(t *testing.T) {
	ens := NewEnsemble()
	authErr := errors.New("bad scheme")
	closeErr := errors.New("socket")
	ens.SetAuthError(authErr)
	ens.SetCloseError(closeErr)

	conn, err := ens.Dial(context.Background(), request(nil))
	require.NoError(t, err)

	assert.ErrorIs(t, conn.AddAuth("digest", []byte("u:p")), authErr)
	assert.ErrorIs(t, conn.Close(), closeErr)
	assert.Equal(t, 0, ens.OpenCount())
}
