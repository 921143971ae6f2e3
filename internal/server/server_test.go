package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/joacominatel/sqlzen/internal/app"
	"github.com/joacominatel/sqlzen/internal/database"
	"github.com/joacominatel/sqlzen/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.Service) {
	t.Helper()
	svc := app.NewService(app.WithLogger(testutil.NewTestLogger(t)))
	t.Cleanup(func() { _ = svc.Close() })

	srv := New(Config{Registry: svc, Logger: testutil.NewTestLogger(t)})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, svc
}

func post(t *testing.T, ts *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestConnectAndQuery(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := post(t, ts, "/connect", map[string]string{"key": "mem", "driver": "sqlite", "url": ":memory:"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = post(t, ts, "/query", map[string]string{"key": "mem", "sql": "SELECT NULL AS n, 1 AS i, 1.5 AS f, 'x' AS s, x'0001' AS b"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body := decodeBody[map[string]any](t, resp)
	columns := body["columns"].([]any)
	require.Len(t, columns, 5)
	first := columns[0].(map[string]any)
	assert.Equal(t, "n", first["name"])
	assert.Contains(t, first, "dataTypeID")
	assert.Nil(t, first["dataTypeID"])

	rows := body["rows"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, []any{nil, float64(1), 1.5, "x", []any{float64(0), float64(1)}}, rows[0])
}

func TestQueryErrors(t *testing.T) {
	ts, _ := newTestServer(t)
	require.Equal(t, http.StatusNoContent,
		post(t, ts, "/connect", map[string]string{"key": "mem", "driver": "sqlite", "url": ":memory:"}).StatusCode)

	tests := []struct {
		name    string
		path    string
		body    any
		status  int
		message string
	}{
		{
			name:    "unknown key",
			path:    "/query",
			body:    map[string]string{"key": "nope", "sql": "SELECT 1"},
			status:  http.StatusNotFound,
			message: `client not found: "nope"`,
		},
		{
			name:    "engine failure",
			path:    "/query",
			body:    map[string]string{"key": "mem", "sql": "SELEC 1"},
			status:  http.StatusUnprocessableEntity,
			message: "syntax error",
		},
		{
			name:    "unknown driver",
			path:    "/connect",
			body:    map[string]string{"key": "x", "driver": "oracle", "url": ""},
			status:  http.StatusBadRequest,
			message: `unknown driver "oracle"`,
		},
		{
			name:    "missing key",
			path:    "/query",
			body:    map[string]string{"sql": "SELECT 1"},
			status:  http.StatusBadRequest,
			message: "key is required",
		},
		{
			name:    "unknown field",
			path:    "/query",
			body:    map[string]string{"key": "mem", "query": "SELECT 1"},
			status:  http.StatusBadRequest,
			message: "invalid request body",
		},
		{
			name:    "embedded file in missing directory",
			path:    "/connect",
			body:    map[string]string{"key": "f", "driver": "sqlite", "url": filepath.Join(t.TempDir(), "missing", "x.db")},
			status:  http.StatusInternalServerError,
			message: "no such file or directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decodeBody[errorResponse](t, resp)
			assert.Contains(t, body.Error, tt.message)
		})
	}
}

func TestScript(t *testing.T) {
	ts, _ := newTestServer(t)
	require.Equal(t, http.StatusNoContent,
		post(t, ts, "/connect", map[string]string{"key": "mem", "driver": "sqlite", "url": ":memory:"}).StatusCode)

	resp := post(t, ts, "/script", map[string]string{"key": "mem", "sql": "SELECT 1;\nSELEC 2;\nSELECT 3"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody[[]map[string]any](t, resp)
	require.Len(t, out, 3)
	assert.Equal(t, "success", out[0]["state"])
	assert.NotNil(t, out[0]["result"])
	assert.Equal(t, "error", out[1]["state"])
	assert.Equal(t, float64(2), out[1]["line"])
	assert.Contains(t, out[1]["error"], "syntax error")
	assert.Equal(t, "cancelled", out[2]["state"])

	notFound := post(t, ts, "/script", map[string]string{"key": "nope", "sql": "SELECT 1"})
	assert.Equal(t, http.StatusNotFound, notFound.StatusCode)
}

func TestConnectionsAndPing(t *testing.T) {
	ts, _ := newTestServer(t)
	for _, key := range []string{"b", "a"} {
		require.Equal(t, http.StatusNoContent,
			post(t, ts, "/connect", map[string]string{"key": key, "driver": "sqlite3", "url": ":memory:"}).StatusCode)
	}

	resp, err := http.Get(ts.URL + "/connections")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conns := decodeBody[[]map[string]any](t, resp)
	require.Len(t, conns, 2)
	assert.Equal(t, "a", conns[0]["key"])
	assert.Equal(t, "sqlite", conns[0]["driver"])

	ping, err := http.Get(ts.URL + "/connections/a/ping")
	require.NoError(t, err)
	defer func() { _ = ping.Body.Close() }()
	require.Equal(t, http.StatusOK, ping.StatusCode)
	assert.NotEmpty(t, decodeBody[map[string]string](t, ping)["version"])

	missing, err := http.Get(ts.URL + "/connections/zzz/ping")
	require.NoError(t, err)
	defer func() { _ = missing.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", &app.ErrQuery{Cause: &database.NotFoundError{Key: "k"}}, http.StatusNotFound},
		{"engine", &app.ErrConnection{Cause: database.Engine(database.MySQL, errors.New("denied"))}, http.StatusUnprocessableEntity},
		{"io", &database.IoError{Op: "open", Err: errors.New("boom")}, http.StatusInternalServerError},
		{"unknown driver", &app.ErrConnection{Cause: &database.UnknownDriverError{Driver: "x"}}, http.StatusBadRequest},
		{"other", errors.New("unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestServeListener_Shutdown(t *testing.T) {
	svc := app.NewService()
	defer func() { _ = svc.Close() }()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- New(Config{Registry: svc}).ServeListener(ctx, ln)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
