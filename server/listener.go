// Package server implements the client-facing TCP endpoint: a plain
// net.Listener accept loop, one goroutine per connection, that turns
// client frames into engine.Operation values and writes back the response
// defined for each op code.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package server

import (
	"context"
	"net"
	"time"

	"github.com/golang/glog"

	"github.com/autumndb/autumndb/cmn"
	"github.com/autumndb/autumndb/engine"
	"github.com/autumndb/autumndb/wire"
)

// acceptPollTimeout bounds how long Accept blocks before re-checking ctx,
// mirroring the answerer's poll loop in aae/answerer.go.
const acceptPollTimeout = 200 * time.Millisecond

// Listener is the client endpoint. It owns no storage state directly;
// every request is translated into an engine.Operation and handed to the
// worker, which is the sole writer against the registry.
type Listener struct {
	worker *engine.Worker
	ln     net.Listener
}

// New binds addr and returns a Listener ready to Serve.
func New(worker *engine.Worker, addr cmn.Addr) (*Listener, error) {
	ln, err := net.Listen("tcp", addr.String())
	if err != nil {
		return nil, err
	}
	return &Listener{worker: worker, ln: ln}, nil
}

// Addr returns the bound address (useful when addr.Port was 0).
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve accepts connections until ctx is cancelled, handling each on its own
// goroutine. It returns once the listener is closed and every in-flight
// handler (started before cancellation) may still be running in the
// background - the client protocol is one-shot-per-connection, so handlers
// never outlive their single request/response round trip.
func (l *Listener) Serve(ctx context.Context) error {
	type deadliner interface {
		SetDeadline(time.Time) error
	}
	dl, _ := l.ln.(deadliner)

	for {
		select {
		case <-ctx.Done():
			_ = l.ln.Close()
			return nil
		default:
		}
		if dl != nil {
			_ = dl.SetDeadline(time.Now().Add(acceptPollTimeout))
		}
		conn, err := l.ln.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			glog.Warningf("client endpoint: accept failed: %v", err)
			continue
		}
		go l.handle(conn)
	}
}

// handle services exactly one client frame per connection: reads until the
// 0x00 terminator or EOF, parses the client frame, enqueues it, then writes the response defined
// for the op code and closes.
func (l *Listener) handle(conn net.Conn) {
	defer conn.Close()

	frame, err := wire.DecodeClientFrame(conn)
	if err != nil {
		// A malformed frame closes the connection without a response.
		glog.Warningf("client endpoint: malformed frame from %s: %v", conn.RemoteAddr(), err)
		return
	}

	op, err := toOperation(frame)
	if err != nil {
		glog.Warningf("client endpoint: %v", err)
		return
	}

	res := make(chan engine.Result, 1)
	op.Result = res
	l.worker.Enqueue(op)
	result := <-res
	if result.Err != nil {
		// Failures are dropped with a logged error and no client-visible
		// ack beyond connection close.
		return
	}

	l.respond(conn, frame, result)
}

// toOperation constructs the Operation each frame produces.
func toOperation(f wire.ClientFrame) (engine.Operation, error) {
	switch f.Op {
	case wire.OpCreateCollection:
		return engine.NewCreateCollection(f.Collection), nil
	case wire.OpDeleteCollection:
		return engine.NewDeleteCollection(f.Collection), nil
	case wire.OpCreateDoc:
		return engine.NewCreateDocument(f.Collection, f.DocumentJSON), nil
	case wire.OpUpdateDoc:
		return engine.NewUpdateDocument(f.Collection, f.DocID, f.DocumentJSON, ""), nil
	case wire.OpDeleteDoc:
		return engine.NewDeleteDocument(f.Collection, f.DocID), nil
	case wire.OpReadDoc:
		return engine.NewReadDocument(f.Collection, f.DocID), nil
	default:
		return engine.Operation{}, &cmn.ProtocolError{Msg: "unknown client opcode"}
	}
}

// respond writes the response body for op and closes the connection (the
// caller's deferred conn.Close):
//
//	CREATE_DOC -> doc_id (26 bytes); READ_DOC -> document bytes;
//	UPDATE_DOC/DELETE_DOC -> empty body.
func (l *Listener) respond(conn net.Conn, frame wire.ClientFrame, result engine.Result) {
	switch frame.Op {
	case wire.OpCreateDoc:
		_, _ = conn.Write([]byte(result.DocID))
	case wire.OpReadDoc:
		_, _ = conn.Write(result.Payload)
	case wire.OpUpdateDoc, wire.OpDeleteDoc, wire.OpCreateCollection, wire.OpDeleteCollection:
		// empty body, close only.
	}
}

func isTimeout(err error) bool {
	type timeoutErr interface{ Timeout() bool }
	te, ok := err.(timeoutErr)
	return ok && te.Timeout()
}
