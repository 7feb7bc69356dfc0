package agent_channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsServer accepts one upgrade at a time, records every frame the
// client writes and lets tests push events back down the wire.
type wsServer struct {
	*httptest.Server

	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []json.RawMessage
	frames   chan json.RawMessage
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{frames: make(chan json.RawMessage, 16)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.received = append(s.received, data)
			s.mu.Unlock()
			s.frames <- data
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *wsServer) send(t *testing.T, event Event) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.conns)
	require.NoError(t, s.conns[len(s.conns)-1].WriteJSON(event))
}

func (s *wsServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func TestConnect(t *testing.T) {
	t.Run("dials once", func(t *testing.T) {
		server := newWSServer(t)
		ch := New(server.wsURL())
		defer ch.Close()

		require.NoError(t, ch.Connect(context.Background()))
		assert.True(t, ch.Connected())

		// second Connect on a live channel must not open another
		// connection
		require.NoError(t, ch.Connect(context.Background()))
		assert.Equal(t, 1, server.connCount())
	})

	t.Run("dial failure", func(t *testing.T) {
		ch := New("ws://127.0.0.1:1/ws")
		defer ch.Close()

		assert.Error(t, ch.Connect(context.Background()))
		assert.False(t, ch.Connected())
	})

	t.Run("after close", func(t *testing.T) {
		server := newWSServer(t)
		ch := New(server.wsURL())
		require.NoError(t, ch.Close())

		assert.ErrorIs(t, ch.Connect(context.Background()), ErrClosed)
	})
}

func TestJoinRoom(t *testing.T) {
	t.Run("sends the join frame", func(t *testing.T) {
		server := newWSServer(t)
		ch := New(server.wsURL())
		defer ch.Close()

		require.NoError(t, ch.Connect(context.Background()))
		require.NoError(t, ch.JoinRoom("user_42"))

		select {
		case frame := <-server.frames:
			var msg joinRoomMessage
			require.NoError(t, json.Unmarshal(frame, &msg))
			assert.Equal(t, "joinRoom", msg.Type)
			assert.Equal(t, "user_42", msg.Payload.Room)
		case <-time.After(2 * time.Second):
			t.Fatal("join frame never reached the server")
		}
	})

	t.Run("requires a connection", func(t *testing.T) {
		ch := New("ws://example.invalid/ws")
		defer ch.Close()

		assert.ErrorIs(t, ch.JoinRoom("user_42"), ErrNotConnected)
	})
}

func TestOn(t *testing.T) {
	server := newWSServer(t)
	ch := New(server.wsURL())
	defer ch.Close()

	got := make(chan string, 4)
	ch.On("winnerDecided", func(payload json.RawMessage) {
		got <- "first:" + string(payload)
	})
	// same slot: replaces, never stacks
	ch.On("winnerDecided", func(payload json.RawMessage) {
		got <- "second:" + string(payload)
	})

	require.NoError(t, ch.Connect(context.Background()))
	server.send(t, Event{Type: "winnerDecided", Payload: json.RawMessage(`"m1"`)})

	select {
	case v := <-got:
		assert.Equal(t, `second:"m1"`, v)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never fired")
	}
	select {
	case v := <-got:
		t.Fatalf("replaced handler fired: %s", v)
	case <-time.After(100 * time.Millisecond):
	}

	t.Run("nil unregisters", func(t *testing.T) {
		ch.On("winnerDecided", nil)
		server.send(t, Event{Type: "winnerDecided", Payload: json.RawMessage(`"m2"`)})

		select {
		case v := <-got:
			t.Fatalf("unregistered handler fired: %s", v)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("unknown event is ignored", func(t *testing.T) {
		server.send(t, Event{Type: "somethingElse", Payload: json.RawMessage(`{}`)})

		select {
		case v := <-got:
			t.Fatalf("unexpected handler call: %s", v)
		case <-time.After(100 * time.Millisecond):
		}
	})
}

func TestDone(t *testing.T) {
	server := newWSServer(t)
	ch := New(server.wsURL())
	defer ch.Close()

	assert.Nil(t, ch.Done())

	require.NoError(t, ch.Connect(context.Background()))
	done := ch.Done()
	require.NotNil(t, done)

	// server-side drop must surface through Done
	server.mu.Lock()
	conn := server.conns[0]
	server.mu.Unlock()
	require.NoError(t, conn.Close())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("done never closed after server drop")
	}
	assert.False(t, ch.Connected())

	// reconnect is the owner's call, and works
	require.NoError(t, ch.Connect(context.Background()))
	assert.True(t, ch.Connected())
	assert.Equal(t, 2, server.connCount())
}

func TestClose(t *testing.T) {
	server := newWSServer(t)
	ch := New(server.wsURL())

	fired := make(chan struct{}, 1)
	ch.On("winnerDecided", func(json.RawMessage) { fired <- struct{}{} })

	require.NoError(t, ch.Connect(context.Background()))
	done := ch.Done()

	require.NoError(t, ch.Close())
	assert.False(t, ch.Connected())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not stop on close")
	}

	assert.ErrorIs(t, ch.Connect(context.Background()), ErrClosed)
	assert.ErrorIs(t, ch.JoinRoom("user_42"), ErrNotConnected)
}
