// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

// Command stompws connects to a STOMP broker over a websocket and runs the session
// described by a YAML or JSON config file.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	stomp "github.com/mochi-mqtt/stompws"
	"github.com/mochi-mqtt/stompws/config"
	"github.com/mochi-mqtt/stompws/frames"
	"github.com/mochi-mqtt/stompws/listeners"
)

func main() {
	configFile := flag.String("config", "config.yaml", "path to a YAML or JSON config file")
	url := flag.String("url", "", "broker websocket url, overriding the config file")
	metricsAddr := flag.String("metrics", "", "address to serve /metrics, /info and /healthcheck on, disabled if empty")
	debug := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	sigs := make(chan os.Signal, 1)
	done := make(chan bool, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		done <- true
	}()

	b, err := os.ReadFile(*configFile)
	if err != nil && !os.IsNotExist(err) {
		log.Fatal(err)
	}

	c, err := config.Parse(b)
	if err != nil {
		log.Fatal(err)
	}

	if *url != "" {
		c.Options.Transport.URL = *url
	}

	if c.Options.Transport.URL == "" {
		log.Fatal("no broker url: set transport.url in the config file or use -url")
	}

	level := new(slog.LevelVar)
	if *debug {
		level.Set(slog.LevelDebug)
	}
	c.Options.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	client := stomp.New(&c.Options)
	if err := client.AddHook(newSessionHook(c.Session), nil); err != nil {
		log.Fatal(err)
	}

	var stats *listeners.HTTPStats
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		client.Info.RegisterPrometheusMetrics(reg, "stompws")
		stats = listeners.NewHTTPStats(listeners.Config{
			ID:      "stats",
			Address: *metricsAddr,
		}, client.SysInfo, reg, client.Connected)

		if err := stats.Init(client.Log); err != nil {
			log.Fatal(err)
		}

		go func() {
			if err := stats.Serve(); err != nil {
				client.Log.Error("stats listener stopped", "error", err, "address", *metricsAddr)
			}
		}()
	}

	if err := client.Open(nil, frames.Header{}); err != nil && c.Session.Reconnect == nil {
		client.Close()
		log.Fatal(err)
	}

	<-done
	client.Log.Warn("caught signal, stopping...")
	client.StopReconnect()
	if client.Connected() {
		receipt := make(chan struct{})
		err := client.Disconnect(stomp.WithReceipt(func(id string) {
			close(receipt)
		}))
		if err == nil {
			select {
			case <-receipt:
			case <-time.After(client.Options.DisconnectTimeout):
			}
		}
	}

	client.Close()
	if stats != nil {
		stats.Close()
	}
	client.Log.Info("main.go finished")
}
