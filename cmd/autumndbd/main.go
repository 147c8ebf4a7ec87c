// Package main is the AutumnDB node executable: it wires the storage
// registry, operation engine, client endpoint, and AAE replicator together
// and runs until signalled, the same minimal shape as
// cmd/aisnodeprofile/main.go plays for the AIS node binary.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autumndb/autumndb/aae"
	"github.com/autumndb/autumndb/cmn"
	"github.com/autumndb/autumndb/engine"
	"github.com/autumndb/autumndb/server"
	"github.com/autumndb/autumndb/store"
)

var (
	configFile  = flag.String("config", "", "path to the node's JSON config file")
	metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()
	defer glog.Flush()

	cfg, err := cmn.LoadConfig(*configFile)
	if err != nil {
		glog.Errorf("failed to load config: %v", err)
		return 1
	}
	cmn.SetGCO(cfg)

	reg := store.NewRegistry(cfg.DataDir)
	reg.Reopen()

	registry := prometheus.NewRegistry()
	met := cmn.NewMetrics(registry)
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				glog.Errorf("metrics server stopped: %v", err)
			}
		}()
	}

	bus := engine.NewEventBus()
	worker := engine.NewWorker(reg, bus, met)

	clientAddr := cmn.Addr{Addr: "0.0.0.0", Port: cfg.ClientPort}
	ln, err := server.New(worker, clientAddr)
	if err != nil {
		glog.Errorf("failed to bind client endpoint on %s: %v", clientAddr, err)
		return 1
	}

	repl := aae.New(reg, bus, met, cfg.Current, cfg.Neighbors)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx)
	go func() {
		if err := ln.Serve(ctx); err != nil {
			glog.Errorf("client endpoint stopped: %v", err)
		}
	}()
	go func() {
		if err := repl.Run(ctx); err != nil {
			glog.Errorf("aae replicator stopped: %v", err)
		}
	}()

	glog.Infof("autumndbd: listening for clients on %s", clientAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	glog.Infof("autumndbd: shutting down")
	cancel()
	<-worker.Stopped()
	return 0
}
