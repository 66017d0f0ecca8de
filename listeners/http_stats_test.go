// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package listeners

import (
	"crypto/tls"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/mochi-mqtt/stompws/system"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var (
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	basicConfig = Config{ID: "stats", Address: "127.0.0.1:0"}
	tlsConfig   = Config{ID: "stats", Address: "127.0.0.1:0", TLSConfig: &tls.Config{}}
)

func infoFn(info *system.Info) InfoFn {
	return func() *system.Info {
		return info.Clone()
	}
}

func get(t *testing.T, l *HTTPStats, method, path string) *http.Response {
	t.Helper()
	w := httptest.NewRecorder()
	l.listen.Handler.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w.Result()
}

func TestNewHTTPStats(t *testing.T) {
	l := NewHTTPStats(basicConfig, nil, nil, nil)
	require.Equal(t, "stats", l.ID())
	require.Equal(t, "127.0.0.1:0", l.Address())
	require.Equal(t, "http", l.Protocol())
}

func TestHTTPStatsTLSProtocol(t *testing.T) {
	l := NewHTTPStats(tlsConfig, nil, nil, nil)
	require.NoError(t, l.Init(logger))
	require.Equal(t, "https", l.Protocol())
}

func TestHTTPStatsInit(t *testing.T) {
	l := NewHTTPStats(basicConfig, infoFn(new(system.Info)), nil, nil)
	require.NoError(t, l.Init(logger))
	require.NotNil(t, l.sysInfo)
	require.NotNil(t, l.listen)
	require.Equal(t, basicConfig.Address, l.listen.Addr)
}

func TestHTTPStatsInfo(t *testing.T) {
	l := NewHTTPStats(basicConfig, infoFn(&system.Info{Version: "1.2", FramesReceived: 4}), nil, nil)
	require.NoError(t, l.Init(logger))

	resp := get(t, l, http.MethodGet, "/info")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	v := new(system.Info)
	require.NoError(t, json.Unmarshal(body, v))
	require.Equal(t, "1.2", v.Version)
	require.Equal(t, int64(4), v.FramesReceived)
}

func TestHTTPStatsMetrics(t *testing.T) {
	sysInfo := &system.Info{HeartbeatsSent: 3}
	reg := prometheus.NewRegistry()
	sysInfo.RegisterPrometheusMetrics(reg, "stompws")

	l := NewHTTPStats(basicConfig, infoFn(sysInfo), reg, nil)
	require.NoError(t, l.Init(logger))

	resp := get(t, l, http.MethodGet, "/metrics")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "stompws_heartbeats_sent 3")
}

func TestHTTPStatsNoMetrics(t *testing.T) {
	l := NewHTTPStats(basicConfig, infoFn(new(system.Info)), nil, nil)
	require.NoError(t, l.Init(logger))

	resp := get(t, l, http.MethodGet, "/metrics")
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTPStatsHealthcheck(t *testing.T) {
	healthy := true
	l := NewHTTPStats(basicConfig, infoFn(new(system.Info)), nil, func() bool { return healthy })
	require.NoError(t, l.Init(logger))

	resp := get(t, l, http.MethodGet, "/healthcheck")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	healthy = false
	resp = get(t, l, http.MethodGet, "/healthcheck")
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = get(t, l, http.MethodPost, "/healthcheck")
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHTTPStatsServeAndClose(t *testing.T) {
	l := NewHTTPStats(basicConfig, infoFn(new(system.Info)), nil, nil)
	require.NoError(t, l.Init(logger))

	o := make(chan error)
	go func() {
		o <- l.Serve()
	}()

	l.Close()
	l.Close()
	require.NoError(t, <-o)
}

func TestHTTPStatsFailedToServe(t *testing.T) {
	l := NewHTTPStats(Config{ID: "stats", Address: "wrong_addr"}, infoFn(new(system.Info)), nil, nil)
	require.NoError(t, l.Init(logger))
	require.Error(t, l.Serve())
	l.Close()
}

func TestHTTPStatsCloseBeforeInit(t *testing.T) {
	l := NewHTTPStats(basicConfig, nil, nil, nil)
	l.Close()
}
