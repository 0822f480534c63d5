package libevents

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPingServer(t *testing.T, pings []string, pongs chan<- string) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		c.SetPongHandler(func(appData string) error {
			pongs <- appData
			return nil
		})
		for _, p := range pings {
			_ = c.WriteControl(websocket.PingMessage, []byte(p), time.Now().Add(time.Second))
		}
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newCloseServer(t *testing.T, code int, text string, got chan<- int) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		msg := websocket.FormatCloseMessage(code, text)
		_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) {
					got <- closeErr.Code
				} else {
					got <- -1
				}
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestConnection(rawURL string, recv chan<- Message) *WsConnection {
	u, _ := url.Parse(rawURL)
	repo := NewOpenConnectionParamsRepo(NewNopLogger(), func(context.Context) (OpenConnectionParams, error) {
		return OpenConnectionParams{URL: *u}, nil
	})
	return NewWebsocketConnection(websocket.DefaultDialer, repo, NewNopLogger(), recv, ErrorAdapters{})
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWsConnectionPingListenersVetoPong(t *testing.T) {
	pongs := make(chan string, 4)
	srv := newPingServer(t, []string{"first", "second"}, pongs)
	recv := make(chan Message, 8)
	conn := newTestConnection(wsURL(srv), recv)
	defer conn.Close()

	var seen int32
	conn.Events().On(EventPing, NewListener(func(_ any, args []any) (bool, error) {
		// Veto the automatic reply to the first ping only.
		return atomic.AddInt32(&seen, 1) > 1, nil
	}))

	require.NoError(t, conn.Open(context.Background()))

	for _, want := range []string{"first", "second"} {
		select {
		case m := <-recv:
			assert.Equal(t, EventPing, m.Type().Event())
			assert.Equal(t, want, string(m.Data()))
		case <-time.After(2 * time.Second):
			t.Fatalf("ping %q never forwarded", want)
		}
	}

	select {
	case p := <-pongs:
		assert.Equal(t, "second", p)
	case <-time.After(2 * time.Second):
		t.Fatal("no pong reached the server")
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&seen))
}

func TestWsConnectionDefaultPong(t *testing.T) {
	pongs := make(chan string, 4)
	srv := newPingServer(t, []string{"hello"}, pongs)
	recv := make(chan Message, 8)
	conn := newTestConnection(wsURL(srv), recv)
	defer conn.Close()

	require.NoError(t, conn.Open(context.Background()))

	select {
	case p := <-pongs:
		assert.Equal(t, "hello", p)
	case <-time.After(2 * time.Second):
		t.Fatal("no pong reached the server")
	}
	m := <-recv
	assert.True(t, m.Type().IsPing())
}

func TestWsConnectionUnsupportedEvent(t *testing.T) {
	conn := newTestConnection("ws://127.0.0.1:1", make(chan Message, 1))

	err := conn.Events().AddListener("message", Handler(func(any, []any) {}))

	assert.True(t, errors.Is(err, ErrUnsupportedEvent))
	assert.Equal(t, []string{EventClose, EventPing, EventPong}, conn.Events().EventNames())
}

func TestWsConnectionDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	rawURL := wsURL(srv)
	srv.Close()

	conn := newTestConnection(rawURL, make(chan Message, 1))
	err := conn.Open(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCannotConnect))
	var unrecoverable *ErrUnrecoverableConnection
	assert.True(t, errors.As(err, &unrecoverable))
}

func TestWsConnectionCloseEcho(t *testing.T) {
	codes := make(chan int, 1)
	srv := newCloseServer(t, 4000, "bye", codes)
	recv := make(chan Message, 8)
	conn := newTestConnection(wsURL(srv), recv)
	defer conn.Close()

	seen := make(chan []any, 1)
	conn.Events().On(EventClose, Handler(func(_ any, args []any) {
		seen <- args
	}))

	require.NoError(t, conn.Open(context.Background()))

	select {
	case args := <-seen:
		assert.Equal(t, []any{4000, "bye"}, args)
	case <-time.After(2 * time.Second):
		t.Fatal("close listener never ran")
	}
	select {
	case code := <-codes:
		assert.Equal(t, 4000, code)
	case <-time.After(2 * time.Second):
		t.Fatal("no close frame reached the server")
	}

	m := <-recv
	assert.True(t, m.Type().IsClose())
	assert.Equal(t, EventClose, m.Type().Event())
}

func TestWsConnectionCloseEchoVetoed(t *testing.T) {
	codes := make(chan int, 1)
	srv := newCloseServer(t, 4000, "bye", codes)
	conn := newTestConnection(wsURL(srv), make(chan Message, 8))
	defer conn.Close()

	conn.Events().On(EventClose, NewListener(func(any, []any) (bool, error) {
		return false, nil
	}))

	require.NoError(t, conn.Open(context.Background()))

	select {
	case code := <-codes:
		assert.NotEqual(t, 4000, code)
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the connection end")
	}
	select {
	case <-conn.CloseChan():
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not close")
	}
	assert.True(t, errors.Is(conn.CloseErr(), ErrConnectionClosed))
}

func TestWsConnectionDropEventRestoresDefaultPong(t *testing.T) {
	pongs := make(chan string, 4)
	srv := newPingServer(t, []string{"hello"}, pongs)
	recv := make(chan Message, 8)
	conn := newTestConnection(wsURL(srv), recv)
	defer conn.Close()

	conn.Events().On(EventPing, NewListener(func(any, []any) (bool, error) {
		return false, nil
	}))
	conn.Events().DropEvent(EventPing)

	require.NoError(t, conn.Open(context.Background()))

	select {
	case p := <-pongs:
		assert.Equal(t, "hello", p)
	case <-time.After(2 * time.Second):
		t.Fatal("no pong reached the server")
	}
	assert.False(t, conn.Events().HasEventListener(EventPing))
	assert.Len(t, recv, 0)
}

func TestWebsocketHostRemoveRestoresDefaultPong(t *testing.T) {
	pongs := make(chan string, 4)
	srv := newPingServer(t, []string{"hello"}, pongs)
	c, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer c.Close()

	target := NewTarget(nil, nil, NewWebsocketHost(c))
	target.On(EventPing, NewListener(func(any, []any) (bool, error) {
		return false, nil
	}))
	target.DropEvent(EventPing)

	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case p := <-pongs:
		assert.Equal(t, "hello", p)
	case <-time.After(2 * time.Second):
		t.Fatal("no pong reached the server")
	}
}

func TestWebsocketFactory(t *testing.T) {
	pongs := make(chan string, 4)
	srv := newPingServer(t, []string{"factory"}, pongs)
	u, err := url.Parse(wsURL(srv))
	require.NoError(t, err)

	repo := NewOpenConnectionParamsRepo(NewNopLogger(), func(context.Context) (OpenConnectionParams, error) {
		return OpenConnectionParams{URL: *u}, nil
	})
	factory := NewWebsocketFactory(NewNopLogger(), websocket.DefaultDialer, repo, ErrorAdapters{})

	recv := make(chan Message, 8)
	var conn Connection = factory(context.Background(), recv)
	defer conn.Close()

	require.NoError(t, conn.Open(context.Background()))
	require.NoError(t, conn.Write(NewDataMessage([]byte("hi"))))

	select {
	case m := <-recv:
		assert.True(t, m.Type().IsPing())
		assert.False(t, m.Type().IsData())
		assert.False(t, m.Type().IsPong())
		assert.Equal(t, "factory", string(m.Data()))
	case <-time.After(2 * time.Second):
		t.Fatal("ping never forwarded")
	}
	select {
	case p := <-pongs:
		assert.Equal(t, "factory", p)
	case <-time.After(2 * time.Second):
		t.Fatal("no pong reached the server")
	}
}
