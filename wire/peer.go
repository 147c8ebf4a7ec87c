package wire

import (
	"io"

	"github.com/autumndb/autumndb/cmn"
)

// Snapshot op codes.
const (
	OpTerminateSession byte = 0
	OpSendingSnapshot  byte = 1
	OpSendingTimestamp byte = 2
)

// CheckSnapshot is the originator->answerer UDP payload:
//
//	opcode=1(1) | coll_name_len(1) | coll_name | doc_id(26) | snapshot_bytes
type CheckSnapshot struct {
	Collection string
	DocID      string
	Snapshot   []byte
}

// EncodeCheckSnapshot serializes a CheckSnapshot datagram.
func EncodeCheckSnapshot(cs CheckSnapshot) ([]byte, error) {
	if len(cs.Collection) == 0 || len(cs.Collection) > 255 {
		return nil, &cmn.ProtocolError{Msg: "peer collection name length out of range"}
	}
	if len(cs.DocID) != cmn.DocIDLength {
		return nil, &cmn.ProtocolError{Msg: "doc id must be exactly 26 bytes"}
	}
	collBytes := []byte(cs.Collection)
	out := make([]byte, 0, 1+1+len(collBytes)+cmn.DocIDLength+len(cs.Snapshot))
	out = append(out, OpSendingSnapshot)
	out = append(out, byte(len(collBytes)))
	out = append(out, collBytes...)
	out = append(out, []byte(cs.DocID)...)
	out = append(out, cs.Snapshot...)
	return out, nil
}

// DecodeCheckSnapshot parses a CheckSnapshot datagram, rejecting one whose
// leading opcode byte is not OpSendingSnapshot.
func DecodeCheckSnapshot(b []byte) (CheckSnapshot, error) {
	var cs CheckSnapshot
	if len(b) < 2 {
		return cs, &cmn.ProtocolError{Msg: "truncated CheckSnapshot header"}
	}
	if b[0] != OpSendingSnapshot {
		return cs, &cmn.ProtocolError{Msg: "not a CheckSnapshot datagram"}
	}
	collLen := int(b[1])
	if collLen == 0 || collLen > 255 {
		return cs, &cmn.ProtocolError{Msg: "peer collection name length out of range"}
	}
	rest := b[2:]
	if len(rest) < collLen+cmn.DocIDLength {
		return cs, &cmn.ProtocolError{Msg: "truncated CheckSnapshot body"}
	}
	cs.Collection = string(rest[:collLen])
	rest = rest[collLen:]
	cs.DocID = string(rest[:cmn.DocIDLength])
	cs.Snapshot = append([]byte(nil), rest[cmn.DocIDLength:]...)
	return cs, nil
}

// SnapshotReply is the answerer's one-byte TERMINATE_SESSION or
// opcode+timestamp SENDING_TIMESTAMP reply.
type SnapshotReply struct {
	Op        byte
	Timestamp string // only set when Op == OpSendingTimestamp
}

// EncodeSnapshotReply serializes a SnapshotReply.
func EncodeSnapshotReply(r SnapshotReply) ([]byte, error) {
	switch r.Op {
	case OpTerminateSession:
		return []byte{OpTerminateSession}, nil
	case OpSendingTimestamp:
		if len(r.Timestamp) != cmn.DocIDLength {
			return nil, &cmn.ProtocolError{Msg: "timestamp must be exactly 26 bytes"}
		}
		out := make([]byte, 0, 1+cmn.DocIDLength)
		out = append(out, OpSendingTimestamp)
		out = append(out, []byte(r.Timestamp)...)
		return out, nil
	default:
		return nil, &cmn.ProtocolError{Msg: "unknown snapshot reply opcode"}
	}
}

// DecodeSnapshotReply parses a SnapshotReply datagram.
func DecodeSnapshotReply(b []byte) (SnapshotReply, error) {
	var r SnapshotReply
	if len(b) == 0 {
		return r, &cmn.ProtocolError{Msg: "empty snapshot reply"}
	}
	r.Op = b[0]
	switch r.Op {
	case OpTerminateSession:
		return r, nil
	case OpSendingTimestamp:
		if len(b) != 1+cmn.DocIDLength {
			return r, &cmn.ProtocolError{Msg: "truncated SENDING_TIMESTAMP reply"}
		}
		r.Timestamp = string(b[1:])
		return r, nil
	default:
		return r, &cmn.ProtocolError{Msg: "unknown snapshot reply opcode"}
	}
}

// DocumentPush is the originator->answerer TCP payload:
//
//	coll_name_len(1) | coll_name | doc_id(26) | updated_at(26) | document_json
type DocumentPush struct {
	Collection   string
	DocID        string
	UpdatedAt    string
	DocumentJSON []byte
}

// EncodeDocumentPush serializes a DocumentPush frame and writes it to w.
func EncodeDocumentPush(w io.Writer, dp DocumentPush) error {
	if len(dp.Collection) == 0 || len(dp.Collection) > 255 {
		return &cmn.ProtocolError{Msg: "peer collection name length out of range"}
	}
	if len(dp.DocID) != cmn.DocIDLength || len(dp.UpdatedAt) != cmn.DocIDLength {
		return &cmn.ProtocolError{Msg: "doc id / updated_at must be exactly 26 bytes"}
	}
	collBytes := []byte(dp.Collection)
	buf := make([]byte, 0, 1+len(collBytes)+cmn.DocIDLength*2+len(dp.DocumentJSON))
	buf = append(buf, byte(len(collBytes)))
	buf = append(buf, collBytes...)
	buf = append(buf, []byte(dp.DocID)...)
	buf = append(buf, []byte(dp.UpdatedAt)...)
	buf = append(buf, dp.DocumentJSON...)
	_, err := w.Write(buf)
	return err
}

// DecodeDocumentPush parses a DocumentPush frame, reading r to EOF (the
// answerer passes the peer TCP connection directly).
func DecodeDocumentPush(r io.Reader) (DocumentPush, error) {
	var dp DocumentPush

	lenByte := make([]byte, 1)
	if _, err := io.ReadFull(r, lenByte); err != nil {
		return dp, &cmn.ProtocolError{Msg: "truncated DocumentPush header: " + err.Error()}
	}
	collLen := int(lenByte[0])
	if collLen == 0 || collLen > 255 {
		return dp, &cmn.ProtocolError{Msg: "peer collection name length out of range"}
	}

	rest, err := io.ReadAll(r)
	if err != nil {
		return dp, &cmn.ProtocolError{Msg: "truncated DocumentPush body: " + err.Error()}
	}
	if len(rest) < collLen+cmn.DocIDLength*2 {
		return dp, &cmn.ProtocolError{Msg: "truncated DocumentPush body"}
	}
	dp.Collection = string(rest[:collLen])
	rest = rest[collLen:]
	dp.DocID = string(rest[:cmn.DocIDLength])
	rest = rest[cmn.DocIDLength:]
	dp.UpdatedAt = string(rest[:cmn.DocIDLength])
	dp.DocumentJSON = rest[cmn.DocIDLength:]
	return dp, nil
}
