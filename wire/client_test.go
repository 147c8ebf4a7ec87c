package wire_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/autumndb/autumndb/cmn"
	"github.com/autumndb/autumndb/wire"
)

func TestClientFrameCreateDocRoundTrip(t *testing.T) {
	f := wire.ClientFrame{
		Op:           wire.OpCreateDoc,
		Collection:   "users",
		DocumentJSON: []byte(`{"a":1}`),
	}
	encoded, err := wire.EncodeClientFrame(f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := wire.DecodeClientFrame(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Op != f.Op || decoded.Collection != f.Collection {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
	if string(decoded.DocumentJSON) != string(f.DocumentJSON) {
		t.Fatalf("document mismatch: %q", decoded.DocumentJSON)
	}
}

func TestClientFrameUpdateDocRoundTrip(t *testing.T) {
	id := "2024-01-01T00:00:00.000000"
	f := wire.ClientFrame{
		Op:           wire.OpUpdateDoc,
		Collection:   "users",
		DocID:        id,
		DocumentJSON: []byte(`{"a":2}`),
	}
	encoded, err := wire.EncodeClientFrame(f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := wire.DecodeClientFrame(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.DocID != id {
		t.Fatalf("doc id mismatch: %q", decoded.DocID)
	}
	if string(decoded.DocumentJSON) != `{"a":2}` {
		t.Fatalf("document mismatch: %q", decoded.DocumentJSON)
	}
}

func TestClientFrameNameLengthBoundaries(t *testing.T) {
	name255 := strings.Repeat("a", 255)
	_, err := wire.EncodeClientFrame(wire.ClientFrame{
		Op: wire.OpCreateCollection, Collection: name255,
	})
	if err != nil {
		t.Fatalf("255-byte collection name should be accepted: %v", err)
	}

	name256 := strings.Repeat("a", 256)
	_, err = wire.EncodeClientFrame(wire.ClientFrame{
		Op: wire.OpCreateCollection, Collection: name256,
	})
	var pe *cmn.ProtocolError
	if err == nil {
		t.Fatalf("256-byte collection name should be rejected")
	}
	if !isProtocolError(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}

	_, err = wire.EncodeClientFrame(wire.ClientFrame{Op: wire.OpCreateCollection, Collection: ""})
	if err == nil {
		t.Fatalf("empty collection name should be rejected")
	}
}

func TestDocIDMustBeExactLength(t *testing.T) {
	_, err := wire.EncodeClientFrame(wire.ClientFrame{
		Op: wire.OpReadDoc, Collection: "users", DocID: "too-short",
	})
	if err == nil {
		t.Fatalf("expected error for short doc id")
	}
}

func isProtocolError(err error, target **cmn.ProtocolError) bool {
	pe, ok := err.(*cmn.ProtocolError)
	if ok {
		*target = pe
	}
	return ok
}
