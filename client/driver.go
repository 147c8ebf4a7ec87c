// Package client is a thin Go driver for the client wire protocol: one TCP
// round trip per call, matching the one-shot-per-connection shape the
// protocol itself defines.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package client

import (
	"io"
	"net"
	"time"

	"github.com/autumndb/autumndb/wire"
)

// Driver sends client-protocol requests to a single AutumnDB node.
type Driver struct {
	addr    string
	timeout time.Duration
}

// New returns a Driver targeting addr ("host:port"). A zero timeout means
// no deadline is set on the underlying connection.
func New(addr string, timeout time.Duration) *Driver {
	return &Driver{addr: addr, timeout: timeout}
}

// CreateCollection issues CREATE_COLLECTION and waits for the connection to
// close. The response body is empty.
func (d *Driver) CreateCollection(name string) error {
	_, err := d.roundTrip(wire.ClientFrame{Op: wire.OpCreateCollection, Collection: name})
	return err
}

// DeleteCollection issues DELETE_COLLECTION.
func (d *Driver) DeleteCollection(name string) error {
	_, err := d.roundTrip(wire.ClientFrame{Op: wire.OpDeleteCollection, Collection: name})
	return err
}

// CreateDocument issues CREATE_DOC and returns the assigned document ID, a
// 26-byte UTF-8 string.
func (d *Driver) CreateDocument(collection string, documentJSON []byte) (string, error) {
	resp, err := d.roundTrip(wire.ClientFrame{
		Op:           wire.OpCreateDoc,
		Collection:   collection,
		DocumentJSON: documentJSON,
	})
	if err != nil {
		return "", err
	}
	return string(resp), nil
}

// ReadDocument issues READ_DOC and returns the document bytes.
func (d *Driver) ReadDocument(collection, docID string) ([]byte, error) {
	return d.roundTrip(wire.ClientFrame{Op: wire.OpReadDoc, Collection: collection, DocID: docID})
}

// UpdateDocument issues UPDATE_DOC.
func (d *Driver) UpdateDocument(collection, docID string, documentJSON []byte) error {
	_, err := d.roundTrip(wire.ClientFrame{
		Op:           wire.OpUpdateDoc,
		Collection:   collection,
		DocID:        docID,
		DocumentJSON: documentJSON,
	})
	return err
}

// DeleteDocument issues DELETE_DOC.
func (d *Driver) DeleteDocument(collection, docID string) error {
	_, err := d.roundTrip(wire.ClientFrame{Op: wire.OpDeleteDoc, Collection: collection, DocID: docID})
	return err
}

// roundTrip dials, sends one encoded frame, reads the response to EOF, and
// closes - the driver never reuses a connection, mirroring the server's
// one-request-per-connection handling in server/listener.go.
func (d *Driver) roundTrip(f wire.ClientFrame) ([]byte, error) {
	conn, err := net.Dial("tcp", d.addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if d.timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(d.timeout)); err != nil {
			return nil, err
		}
	}

	payload, err := wire.EncodeClientFrame(f)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(payload); err != nil {
		return nil, err
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}

	return io.ReadAll(conn)
}
