package server_test

import (
	"context"
	"encoding/binary"
	"net"
	"os"
	"testing"
	"time"

	"github.com/autumndb/autumndb/cmn"
	"github.com/autumndb/autumndb/engine"
	"github.com/autumndb/autumndb/server"
	"github.com/autumndb/autumndb/store"
	"github.com/autumndb/autumndb/wire"
)

func newTestListener(t *testing.T) (*server.Listener, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "autumndb-server-")
	if err != nil {
		t.Fatalf("tempdir: %v", err)
	}
	reg := store.NewRegistry(dir)
	bus := engine.NewEventBus()
	worker := engine.NewWorker(reg, bus, nil)

	ln, err := server.New(worker, cmn.Addr{Addr: "127.0.0.1", Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go worker.Run(ctx)
	go ln.Serve(ctx)

	return ln, func() {
		cancel()
		<-worker.Stopped()
		os.RemoveAll(dir)
	}
}

// sendRawFrame hand-encodes a request without going through the client
// package, exercising the listener against the wire format directly.
func sendRawFrame(t *testing.T, addr string, op byte, collection string, body []byte) []byte {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

	collBytes := []byte(collection)
	buf := make([]byte, 0, 1+4+len(collBytes)+len(body)+1)
	buf = append(buf, op)
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(collBytes)))
	buf = append(buf, lenBuf...)
	buf = append(buf, collBytes...)
	buf = append(buf, body...)
	buf = append(buf, 0x00)

	if _, err := conn.Write(buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	resp := make([]byte, 0, 256)
	chunk := make([]byte, 256)
	for {
		n, err := conn.Read(chunk)
		resp = append(resp, chunk[:n]...)
		if err != nil {
			break
		}
	}
	return resp
}

func TestListenerCreateCollectionAndDocument(t *testing.T) {
	ln, cleanup := newTestListener(t)
	defer cleanup()
	addr := ln.Addr().String()

	sendRawFrame(t, addr, wire.OpCreateCollection, "widgets", nil)

	resp := sendRawFrame(t, addr, wire.OpCreateDoc, "widgets", []byte(`{"a":1}`))
	if len(resp) != cmn.DocIDLength {
		t.Fatalf("expected %d-byte doc id response, got %q", cmn.DocIDLength, resp)
	}

	readResp := sendRawFrame(t, addr, wire.OpReadDoc, "widgets", []byte(string(resp)))
	if string(readResp) != `{"a":1}` {
		t.Fatalf("unexpected read response: %q", readResp)
	}
}

func TestListenerDroppedOperationClosesWithoutResponse(t *testing.T) {
	ln, cleanup := newTestListener(t)
	defer cleanup()
	addr := ln.Addr().String()

	// Unknown collection: the operation engine drops it and the spec's
	// failure-is-silence contract applies (no response body).
	resp := sendRawFrame(t, addr, wire.OpCreateDoc, "missing", []byte(`{}`))
	if len(resp) != 0 {
		t.Fatalf("expected empty response for a dropped operation, got %q", resp)
	}
}
