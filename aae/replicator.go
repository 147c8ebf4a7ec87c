// Package aae implements the Active Anti-Entropy replicator: the UDP
// snapshot-exchange state machine (originator.go), the TCP document-push
// answerer (answerer.go), and the shared Replicator that owns both roles
// plus the configuration each needs (this file).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package aae

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/autumndb/autumndb/aae/sbf"
	"github.com/autumndb/autumndb/cmn"
	"github.com/autumndb/autumndb/engine"
	"github.com/autumndb/autumndb/store"
)

const (
	snapshotExchangeTimeout = 3 * time.Second
	answererPollTimeout     = 200 * time.Millisecond
)

// Replicator runs both AAE sub-roles concurrently on a node: the Originator
// reacts to local write events and pushes to neighbors, the Answerer serves
// the UDP snapshot-receiver and TCP document-receiver sockets. Each role
// runs on its own goroutine, one per suspension point, so a slow TCP accept
// never delays a UDP reply or stalls event draining.
type Replicator struct {
	reg   *store.Registry
	bus   *engine.EventBus
	met   *cmn.Metrics
	sbfM  int
	sbfK  int
	self  cmn.Endpoints
	peers []cmn.Neighbor

	udpConn *net.UDPConn
	tcpLn   net.Listener

	wg sync.WaitGroup
}

// New returns a Replicator for the given registry, event bus, and
// configuration. met may be nil.
func New(reg *store.Registry, bus *engine.EventBus, met *cmn.Metrics, self cmn.Endpoints, peers []cmn.Neighbor) *Replicator {
	return &Replicator{
		reg:   reg,
		bus:   bus,
		met:   met,
		sbfM:  sbf.DefaultM,
		sbfK:  sbf.DefaultK,
		self:  self,
		peers: peers,
	}
}

// Listen opens the snapshot-receiver UDP socket and the document-receiver
// TCP socket. Separating it from Run lets callers (notably tests that use
// port 0 for an ephemeral port) discover the bound addresses before peers
// start sending traffic.
func (r *Replicator) Listen() error {
	udpConn, err := newSnapshotListener(r.self.SnapshotReceiver)
	if err != nil {
		return err
	}
	tcpLn, err := newDocumentListener(r.self.DocumentReceiver)
	if err != nil {
		_ = udpConn.Close()
		return err
	}
	r.udpConn = udpConn
	r.tcpLn = tcpLn
	return nil
}

// SnapshotAddr returns the bound snapshot-receiver address. Valid after Listen.
func (r *Replicator) SnapshotAddr() net.Addr { return r.udpConn.LocalAddr() }

// DocumentAddr returns the bound document-receiver address. Valid after Listen.
func (r *Replicator) DocumentAddr() net.Addr { return r.tcpLn.Addr() }

// SetPeers replaces the neighbor list - used by tests once every node's
// Listen-assigned port is known.
func (r *Replicator) SetPeers(peers []cmn.Neighbor) { r.peers = peers }

// Run starts the originator and both answerer listeners (calling Listen
// first if the caller has not already), blocking until ctx is cancelled and
// every goroutine has returned.
func (r *Replicator) Run(ctx context.Context) error {
	if r.udpConn == nil || r.tcpLn == nil {
		if err := r.Listen(); err != nil {
			return err
		}
	}
	sub := r.bus.Subscribe()

	r.wg.Add(3)
	go func() {
		defer r.wg.Done()
		r.runOriginator(ctx, sub)
	}()
	go func() {
		defer r.wg.Done()
		r.runSnapshotAnswerer(ctx, r.udpConn)
	}()
	go func() {
		defer r.wg.Done()
		r.runDocumentAnswerer(ctx, r.tcpLn)
	}()

	<-ctx.Done()
	_ = r.udpConn.Close()
	_ = r.tcpLn.Close()
	r.wg.Wait()
	glog.Infof("aae: replicator stopped")
	return nil
}
