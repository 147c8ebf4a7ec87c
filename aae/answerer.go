package aae

import (
	"context"
	"net"
	"time"

	"github.com/golang/glog"

	"github.com/autumndb/autumndb/aae/sbf"
	"github.com/autumndb/autumndb/cmn"
	"github.com/autumndb/autumndb/store"
	"github.com/autumndb/autumndb/wire"
)

func newSnapshotListener(addr cmn.Addr) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr.String())
	if err != nil {
		return nil, err
	}
	return net.ListenUDP("udp", udpAddr)
}

func newDocumentListener(addr cmn.Addr) (net.Listener, error) {
	return net.Listen("tcp", addr.String())
}

// runSnapshotAnswerer serves CheckSnapshot datagrams on conn, polling with a
// short read deadline so ctx cancellation is observed promptly.
func (r *Replicator) runSnapshotAnswerer(ctx context.Context, conn *net.UDPConn) {
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := conn.SetReadDeadline(deadline(answererPollTimeout)); err != nil {
			glog.Errorf("aae answerer: failed to set read deadline: %v", err)
			return
		}
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			glog.Warningf("aae answerer: udp read failed: %v", err)
			continue
		}
		r.answerSnapshot(conn, from, append([]byte(nil), buf[:n]...))
	}
}

// answerSnapshot recomputes the local snapshot for the requested document
// and replies TERMINATE_SESSION or SENDING_TIMESTAMP.
func (r *Replicator) answerSnapshot(conn *net.UDPConn, from *net.UDPAddr, datagram []byte) {
	cs, err := wire.DecodeCheckSnapshot(datagram)
	if err != nil {
		glog.Warningf("aae answerer: malformed CheckSnapshot from %s: %v", from, err)
		return
	}

	col, err := r.reg.Get(cs.Collection)
	if err != nil {
		glog.Warningf("aae answerer: unknown collection %s requested by %s", cs.Collection, from)
		return
	}
	payload, tsLocal, err := col.ReadDocumentWithUpdatedAt(cs.DocID)
	if err != nil {
		glog.Warningf("aae answerer: document %s/%s requested by %s not found locally: %v", cs.Collection, cs.DocID, from, err)
		return
	}
	snapLocal, err := sbf.Compute(payload, r.sbfM, r.sbfK)
	if err != nil {
		glog.Errorf("aae answerer: failed to compute local snapshot for %s/%s: %v", cs.Collection, cs.DocID, err)
		return
	}

	var reply wire.SnapshotReply
	if string(snapLocal.Encode()) == string(cs.Snapshot) {
		reply = wire.SnapshotReply{Op: wire.OpTerminateSession}
	} else {
		reply = wire.SnapshotReply{Op: wire.OpSendingTimestamp, Timestamp: tsLocal}
	}
	encoded, err := wire.EncodeSnapshotReply(reply)
	if err != nil {
		glog.Errorf("aae answerer: failed to encode reply: %v", err)
		return
	}
	if _, err := conn.WriteToUDP(encoded, from); err != nil {
		glog.Warningf("aae answerer: failed to reply to %s: %v", from, err)
	}
}

// runDocumentAnswerer accepts DocumentPush connections on ln, polling with a
// short accept deadline when ln supports one.
func (r *Replicator) runDocumentAnswerer(ctx context.Context, ln net.Listener) {
	type deadliner interface {
		SetDeadline(time.Time) error
	}
	tl, _ := ln.(deadliner)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if tl != nil {
			_ = tl.SetDeadline(deadline(answererPollTimeout))
		}
		conn, err := ln.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			glog.Warningf("aae answerer: tcp accept failed: %v", err)
			continue
		}
		go r.handleDocumentPush(conn)
	}
}

// handleDocumentPush decodes one DocumentPush connection and applies it via
// writeDoc. No explicit per-connection timeout is imposed beyond OS
// defaults.
func (r *Replicator) handleDocumentPush(conn net.Conn) {
	defer conn.Close()
	dp, err := wire.DecodeDocumentPush(conn)
	if err != nil {
		glog.Warningf("aae answerer: malformed DocumentPush from %s: %v", conn.RemoteAddr(), err)
		return
	}
	if r.met != nil {
		r.met.AAEPushRecv.Inc()
	}
	col, err := r.reg.GetOrOpen(dp.Collection)
	if err != nil {
		glog.Errorf("aae answerer: failed to open collection %s: %v", dp.Collection, err)
		return
	}
	if err := col.Create(); err != nil {
		glog.Errorf("aae answerer: failed to ensure collection %s exists: %v", dp.Collection, err)
		return
	}
	if err := writeDoc(col, r.met, dp); err != nil {
		glog.Errorf("aae answerer: failed to apply push for %s/%s: %v", dp.Collection, dp.DocID, err)
	}
}

// writeDoc applies one received DocumentPush:
//
//  1. If the document is absent locally, create it with the received
//     payload and updated_at.
//  2. Otherwise set is_frozen = true, then re-read the local updated_at.
//     If the local write is already at least as new, clear the freeze flag
//     and return without touching the payload. Otherwise overwrite the
//     payload, set updated_at to the remote timestamp, and clear the
//     freeze flag.
func writeDoc(col *store.Collection, met *cmn.Metrics, dp wire.DocumentPush) error {
	if !col.DocExists(dp.DocID) {
		return col.CreateDocument(dp.DocID, dp.DocumentJSON, dp.UpdatedAt)
	}

	if err := col.SetFrozen(dp.DocID, true); err != nil {
		return err
	}
	if met != nil {
		met.AAEFrozenSet.Inc()
	}
	tsLocal, err := col.GetUpdatedAt(dp.DocID)
	if err != nil {
		return err
	}
	if tsLocal >= dp.UpdatedAt {
		// Local write already wins; clear the freeze flag so it does not
		// permanently block future local writes.
		return col.SetFrozen(dp.DocID, false)
	}

	if err := overwrite(col, dp.DocID, dp.DocumentJSON); err != nil {
		return err
	}
	if err := col.SetUpdatedAt(dp.DocID, dp.UpdatedAt); err != nil {
		return err
	}
	return col.SetFrozen(dp.DocID, false)
}

// overwrite bypasses Collection.UpdateDocument's frozen check: writeDoc has
// itself just set is_frozen=true as a write guard against a concurrent
// local client write, and must be able to write through its own guard.
func overwrite(col *store.Collection, id string, payload []byte) error {
	return col.OverwritePayload(id, payload)
}

func isTimeout(err error) bool {
	type timeoutErr interface{ Timeout() bool }
	te, ok := err.(timeoutErr)
	return ok && te.Timeout()
}
