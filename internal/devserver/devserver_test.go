package devserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/mcp-tunnel-go/internal/errors"
)

func TestNew_BaseURLNormalization(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, New("", nil).BaseURL())
	assert.Equal(t, "http://localhost:9090", New("http://localhost:9090/", nil).BaseURL())
	assert.Equal(t, "http://localhost:9090", New("http://localhost:9090", nil).BaseURL())
}

func TestClient_Status(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/status", r.URL.Path)
			_, _ = w.Write([]byte("packager-status:running"))
		}))
		defer srv.Close()

		require.NoError(t, New(srv.URL, nil).Status(context.Background()))
	})

	t.Run("unexpected body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("packager-status:stopped"))
		}))
		defer srv.Close()

		err := New(srv.URL, nil).Status(context.Background())

		var devErr *errors.DevServerError
		require.ErrorAs(t, err, &devErr)
		assert.Contains(t, devErr.Error(), "packager-status:stopped")
	})

	t.Run("http error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		err := New(srv.URL, nil).Status(context.Background())

		var devErr *errors.DevServerError
		require.ErrorAs(t, err, &devErr)
		assert.Equal(t, http.StatusServiceUnavailable, devErr.StatusCode)
	})

	t.Run("server unreachable", func(t *testing.T) {
		err := New("http://127.0.0.1:1", nil).Status(context.Background())

		var devErr *errors.DevServerError
		require.ErrorAs(t, err, &devErr)
	})
}

func TestClient_Targets(t *testing.T) {
	t.Run("decodes target list", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/json/list", r.URL.Path)
			_, _ = w.Write([]byte(`[
				{"id":"0","title":"App","description":"","type":"node","webSocketDebuggerUrl":"ws://localhost:8081/inspector/debug?device=0","deviceName":"iPhone 16"},
				{"id":"1","title":"App (experimental)","type":"node","deviceName":"Pixel 9"}
			]`))
		}))
		defer srv.Close()

		targets, err := New(srv.URL, nil).Targets(context.Background())
		require.NoError(t, err)
		require.Len(t, targets, 2)

		assert.Equal(t, "0", targets[0].ID)
		assert.Equal(t, "App", targets[0].Title)
		assert.Equal(t, "ws://localhost:8081/inspector/debug?device=0", targets[0].WebSocketDebuggerURL)
		assert.Equal(t, "iPhone 16", targets[0].DeviceName)
		assert.Equal(t, "Pixel 9", targets[1].DeviceName)
	})

	t.Run("empty list", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		targets, err := New(srv.URL, nil).Targets(context.Background())
		require.NoError(t, err)
		assert.Empty(t, targets)
	})

	t.Run("malformed payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"not":"a list"}`))
		}))
		defer srv.Close()

		_, err := New(srv.URL, nil).Targets(context.Background())

		var devErr *errors.DevServerError
		require.ErrorAs(t, err, &devErr)
	})
}

func TestClient_Reload(t *testing.T) {
	var reloads atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/reload", r.URL.Path)
		reloads.Add(1)
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL, nil).Reload(context.Background()))
	assert.Equal(t, int32(1), reloads.Load())
}
