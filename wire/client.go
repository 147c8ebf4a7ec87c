// Package wire implements the binary framing codec shared by client, driver,
// and peer traffic. Two flavors are defined: ClientFrame (4-byte
// collection-name length, used on the client TCP protocol) and the peer
// frames (1-byte length, used on AAE UDP/TCP traffic) - see client.go and
// peer.go respectively.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/autumndb/autumndb/cmn"
)

// Client op codes.
const (
	OpCreateDoc          byte = 1
	OpUpdateDoc          byte = 2
	OpDeleteDoc          byte = 3
	OpReadDoc            byte = 4
	OpCreateCollection   byte = 11
	OpDeleteCollection   byte = 12
	clientFrameTerminator byte = 0x00
)

// ClientFrame is a decoded client-protocol request:
//
//	opcode(1) | coll_name_len(4, BE) | coll_name(UTF-8, <=255 bytes) | body | 0x00
//
// Body layout depends on Op: CREATE_DOC carries DocumentJSON only;
// READ/UPDATE/DELETE carry DocID (26 bytes) then, for UPDATE, DocumentJSON.
type ClientFrame struct {
	Op           byte
	Collection   string
	DocID        string
	DocumentJSON []byte
}

// EncodeClientFrame serializes f, appending the single 0x00 terminator the
// client driver uses to mark end-of-request.
func EncodeClientFrame(f ClientFrame) ([]byte, error) {
	if len(f.Collection) == 0 || len(f.Collection) > cmn.MaxCollectionNameBytes {
		return nil, &cmn.ProtocolError{Msg: "collection name length out of range"}
	}

	var body []byte
	switch f.Op {
	case OpCreateDoc:
		body = f.DocumentJSON
	case OpReadDoc, OpDeleteDoc:
		if len(f.DocID) != cmn.DocIDLength {
			return nil, &cmn.ProtocolError{Msg: "doc id must be exactly 26 bytes"}
		}
		body = []byte(f.DocID)
	case OpUpdateDoc:
		if len(f.DocID) != cmn.DocIDLength {
			return nil, &cmn.ProtocolError{Msg: "doc id must be exactly 26 bytes"}
		}
		body = append([]byte(f.DocID), f.DocumentJSON...)
	case OpCreateCollection, OpDeleteCollection:
		body = nil
	default:
		return nil, &cmn.ProtocolError{Msg: "unknown opcode"}
	}

	collBytes := []byte(f.Collection)
	out := make([]byte, 0, 1+4+len(collBytes)+len(body)+1)
	out = append(out, f.Op)
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(collBytes)))
	out = append(out, lenBuf...)
	out = append(out, collBytes...)
	out = append(out, body...)
	out = append(out, clientFrameTerminator)
	return out, nil
}

// DecodeClientFrame parses a client-protocol request, reading r until the
// 0x00 terminator or EOF, whichever comes first.
func DecodeClientFrame(r io.Reader) (ClientFrame, error) {
	var f ClientFrame

	header := make([]byte, 1+4)
	if _, err := io.ReadFull(r, header); err != nil {
		return f, &cmn.ProtocolError{Msg: "truncated frame header: " + err.Error()}
	}
	f.Op = header[0]

	collLen := binary.BigEndian.Uint32(header[1:5])
	if collLen == 0 || collLen > cmn.MaxCollectionNameBytes {
		return f, &cmn.ProtocolError{Msg: "collection name length out of range"}
	}

	collBuf := make([]byte, collLen)
	if _, err := io.ReadFull(r, collBuf); err != nil {
		return f, &cmn.ProtocolError{Msg: "truncated collection name: " + err.Error()}
	}
	f.Collection = string(collBuf)

	rest, err := bufio.NewReader(r).ReadBytes(clientFrameTerminator)
	if err != nil && err != io.EOF {
		return f, &cmn.ProtocolError{Msg: "truncated body: " + err.Error()}
	}
	// Trailing 0x00 terminator, if present, is stripped; connection-close
	// termination leaves rest untouched. Either one ends the request.
	if n := len(rest); n > 0 && rest[n-1] == clientFrameTerminator {
		rest = rest[:n-1]
	}

	switch f.Op {
	case OpCreateDoc:
		f.DocumentJSON = rest
	case OpReadDoc, OpDeleteDoc:
		if len(rest) != cmn.DocIDLength {
			return f, &cmn.ProtocolError{Msg: "doc id must be exactly 26 bytes"}
		}
		f.DocID = string(rest)
	case OpUpdateDoc:
		if len(rest) < cmn.DocIDLength {
			return f, &cmn.ProtocolError{Msg: "doc id must be exactly 26 bytes"}
		}
		f.DocID = string(rest[:cmn.DocIDLength])
		f.DocumentJSON = rest[cmn.DocIDLength:]
	case OpCreateCollection, OpDeleteCollection:
		// no body
	default:
		return f, &cmn.ProtocolError{Msg: "unknown opcode"}
	}
	return f, nil
}
