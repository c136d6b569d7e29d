package app

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simguard/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		HTTP: config.HTTPConfig{Addr: "127.0.0.1:0", ReadHeaderTimeout: time.Second, IdleTimeout: time.Second},
		Log:  config.LogConfig{Level: "info", Format: "text"},
		Generator: config.GeneratorConfig{
			MinInterval: time.Hour,
			MaxInterval: time.Hour,
			Seed:        3,
		},
		Bus: config.BusConfig{QueueSize: 8},
		WS:  config.WSConfig{WriteTimeout: time.Second},
	}
}

func TestNew_ServesAPIAndMetrics(t *testing.T) {
	a, err := New(testConfig(), nil, WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	res, err := http.Post(srv.URL+"/action", "application/json", strings.NewReader(`{"sim_id":"sim-0825550101","action":"unlock"}`))
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `simguard_commands_total{command="unlock",result="ok"} 1`)
	assert.Contains(t, string(raw), `simguard_bus_events_total{type="alert"} 1`)
}

func TestNew_AllowsCrossOrigin(t *testing.T) {
	a, err := New(testConfig(), nil, WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/sims", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://dashboard.example")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestNew_GeneratorDisabled(t *testing.T) {
	a, err := New(testConfig(), nil, WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	assert.Nil(t, a.generator)

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()
	res, err := http.Post(srv.URL+"/simulate", "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestNew_BadSeedFile(t *testing.T) {
	cfg := testConfig()
	cfg.SeedFile = filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(cfg.SeedFile, []byte("sims: [{id: ''}]"), 0o600))

	_, err := New(cfg, nil, WithRegistry(prometheus.NewRegistry()))
	require.Error(t, err)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Generator.Enabled = true
	a, err := New(cfg, nil, WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	base := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		res, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	res, err := http.Post(base+"/simulate?kind=registration", "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
