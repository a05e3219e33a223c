//go:build integration

// Package integration exercises the public API end to end against an
// in-process tunnel endpoint: real WebSocket connections, real handshake
// and replay, real request dispatch.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/mcp-tunnel-go/internal/wire"
)

// controlPlane is an in-process tunnel endpoint. It records every frame a
// client sends and lets tests push requests back down the wire.
type controlPlane struct {
	srv   *httptest.Server
	conns chan *planeConn
}

type planeConn struct {
	ws *websocket.Conn

	mu     sync.Mutex
	frames []*wire.Envelope
}

func newControlPlane(t *testing.T) *controlPlane {
	t.Helper()

	cp := &controlPlane{conns: make(chan *planeConn, 4)}

	cp.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}

		pc := &planeConn{ws: ws}

		select {
		case cp.conns <- pc:
		default:
		}

		for {
			_, data, err := ws.Read(r.Context())
			if err != nil {
				return
			}

			env, perr := wire.Parse(data)
			if perr != nil {
				continue
			}

			pc.mu.Lock()
			pc.frames = append(pc.frames, env)
			pc.mu.Unlock()
		}
	}))
	t.Cleanup(cp.srv.Close)

	return cp
}

// url converts the http:// test server URL to ws://.
func (cp *controlPlane) url() string {
	return "ws" + strings.TrimPrefix(cp.srv.URL, "http")
}

// waitConn blocks until the plane accepts the next connection.
func (cp *controlPlane) waitConn(t *testing.T) *planeConn {
	t.Helper()

	select {
	case pc := <-cp.conns:
		return pc
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a tunnel connection")

		return nil
	}
}

// expectNoConn asserts no further connection arrives within d.
func (cp *controlPlane) expectNoConn(t *testing.T, d time.Duration) {
	t.Helper()

	select {
	case <-cp.conns:
		t.Fatal("unexpected tunnel connection")
	case <-time.After(d):
	}
}

// await blocks until the client has sent at least n frames.
func (pc *planeConn) await(t *testing.T, n int) []*wire.Envelope {
	t.Helper()

	var out []*wire.Envelope

	require.Eventually(t, func() bool {
		pc.mu.Lock()
		defer pc.mu.Unlock()

		if len(pc.frames) < n {
			return false
		}

		out = append([]*wire.Envelope(nil), pc.frames...)

		return true
	}, 2*time.Second, 10*time.Millisecond, "expected %d frames", n)

	return out
}

// request sends a JSON-RPC request and returns the matching response.
func (pc *planeConn) request(t *testing.T, id int64, method string, params any) *wire.Envelope {
	t.Helper()

	rawID, err := json.Marshal(id)
	require.NoError(t, err)

	env, err := wire.NewRequest(rawID, method, params)
	require.NoError(t, err)

	data, err := json.Marshal(env)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, pc.ws.Write(ctx, websocket.MessageText, data))

	var resp *wire.Envelope

	require.Eventually(t, func() bool {
		pc.mu.Lock()
		defer pc.mu.Unlock()

		for _, f := range pc.frames {
			if f.IsResponse() && string(f.ID) == string(rawID) {
				resp = f

				return true
			}
		}

		return false
	}, 2*time.Second, 10*time.Millisecond, "no response for id %d", id)

	return resp
}

// close ends the connection from the server side with the given code.
func (pc *planeConn) close(code wire.CloseCode, reason string) {
	_ = pc.ws.Close(websocket.StatusCode(code), reason)
}

func methods(frames []*wire.Envelope) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Method
	}

	return out
}
