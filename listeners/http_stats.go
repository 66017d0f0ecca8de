// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

// Package listeners provides the http endpoints a running client exposes for
// inspection.
package listeners

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mochi-mqtt/stompws/system"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config contains configuration values for a listener.
type Config struct {
	ID        string      `yaml:"id" json:"id"`           // the id of the listener
	Address   string      `yaml:"address" json:"address"` // the network address to bind to
	TLSConfig *tls.Config `yaml:"-" json:"-"`
}

// InfoFn returns a snapshot of the client statistics.
type InfoFn func() *system.Info

// HealthFn reports whether the client is healthy.
type HealthFn func() bool

// HTTPStats is a listener presenting the client statistics as JSON on /info, as
// prometheus metrics on /metrics, and the client health on /healthcheck.
type HTTPStats struct {
	sync.RWMutex
	id       string              // the internal id of the listener
	address  string              // the network address to bind to
	config   Config              // configuration values for the listener
	listen   *http.Server        // the http server
	log      *slog.Logger        // client logger
	sysInfo  InfoFn              // returns the client statistics
	gatherer prometheus.Gatherer // the metrics served on /metrics, if any
	healthy  HealthFn            // reports the health served on /healthcheck, if any
	end      uint32              // ensure the close methods are only called once
}

// NewHTTPStats initialises and returns a new HTTP listener, listening on an address.
// The gatherer and healthy function may be nil.
func NewHTTPStats(config Config, sysInfo InfoFn, gatherer prometheus.Gatherer, healthy HealthFn) *HTTPStats {
	return &HTTPStats{
		id:       config.ID,
		address:  config.Address,
		config:   config,
		sysInfo:  sysInfo,
		gatherer: gatherer,
		healthy:  healthy,
	}
}

// ID returns the id of the listener.
func (l *HTTPStats) ID() string {
	return l.id
}

// Address returns the address of the listener.
func (l *HTTPStats) Address() string {
	return l.address
}

// Protocol returns the protocol of the listener.
func (l *HTTPStats) Protocol() string {
	if l.listen != nil && l.listen.TLSConfig != nil {
		return "https"
	}

	return "http"
}

// Init initializes the listener.
func (l *HTTPStats) Init(log *slog.Logger) error {
	l.log = log

	mux := http.NewServeMux()
	mux.HandleFunc("/info", l.jsonHandler)
	mux.HandleFunc("/healthcheck", l.healthHandler)
	if l.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(l.gatherer, promhttp.HandlerOpts{}))
	}

	l.listen = &http.Server{
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		Addr:         l.address,
		Handler:      mux,
	}

	if l.config.TLSConfig != nil {
		l.listen.TLSConfig = l.config.TLSConfig
	}

	return nil
}

// Serve starts listening for new connections and serving responses. It returns
// once the listener is closed, or if it could not listen.
func (l *HTTPStats) Serve() error {
	var err error
	if l.listen.TLSConfig != nil {
		err = l.listen.ListenAndServeTLS("", "")
	} else {
		err = l.listen.ListenAndServe()
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Close stops the http server.
func (l *HTTPStats) Close() {
	l.Lock()
	defer l.Unlock()

	if atomic.CompareAndSwapUint32(&l.end, 0, 1) && l.listen != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.listen.Shutdown(ctx)
	}
}

// jsonHandler is an HTTP handler which outputs the client statistics as JSON.
func (l *HTTPStats) jsonHandler(w http.ResponseWriter, req *http.Request) {
	info := l.sysInfo()

	out, err := json.MarshalIndent(info, "", "\t")
	if err != nil {
		_, _ = io.WriteString(w, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(out)
}

// healthHandler responds 200 while the client is healthy and 503 otherwise.
func (l *HTTPStats) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if l.healthy != nil && !l.healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
}
