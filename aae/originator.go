package aae

import (
	"context"
	"net"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/autumndb/autumndb/aae/sbf"
	"github.com/autumndb/autumndb/cmn"
	"github.com/autumndb/autumndb/engine"
	"github.com/autumndb/autumndb/wire"
)

// runOriginator drains the event bus and, for every local CREATE_DOC or
// UPDATE_DOC, runs the push-on-change algorithm against every configured
// neighbor.
func (r *Replicator) runOriginator(ctx context.Context, sub *engine.Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub.Events():
			if ev.Code != engine.OpCreateDocument && ev.Code != engine.OpUpdateDocument {
				continue
			}
			r.propagate(ctx, ev)
		}
	}
}

// propagate runs the originator algorithm for one document change, fanning
// the per-neighbor exchange out concurrently.
func (r *Replicator) propagate(ctx context.Context, ev engine.Event) {
	col, err := r.reg.Get(ev.Collection)
	if err != nil {
		glog.Errorf("aae originator: collection %s vanished before propagation: %v", ev.Collection, err)
		return
	}
	payload, tsLocal, err := col.ReadDocumentWithUpdatedAt(ev.DocID)
	if err != nil {
		glog.Errorf("aae originator: failed to read %s/%s: %v", ev.Collection, ev.DocID, err)
		return
	}

	var snapLocal sbf.Snapshot
	if ev.Code == engine.OpUpdateDocument {
		snapLocal, err = sbf.Compute(payload, r.sbfM, r.sbfK)
		if err != nil {
			glog.Errorf("aae originator: failed to compute snapshot for %s/%s: %v", ev.Collection, ev.DocID, err)
			return
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range r.peers {
		n := n
		g.Go(func() error {
			r.exchangeWithNeighbor(gctx, n, ev, payload, tsLocal, snapLocal)
			return nil
		})
	}
	_ = g.Wait()
}

// exchangeWithNeighbor runs one originator-neighbor exchange. CREATE_DOC
// skips the snapshot handshake and pushes directly, since there is nothing
// for the neighbor to compare against yet.
func (r *Replicator) exchangeWithNeighbor(ctx context.Context, n cmn.Neighbor, ev engine.Event, payload []byte, tsLocal string, snapLocal sbf.Snapshot) {
	if ev.Code == engine.OpCreateDocument {
		r.pushDocument(ctx, n, ev.Collection, ev.DocID, tsLocal, payload)
		return
	}

	tsRemote, ok, err := r.checkSnapshot(n, ev.Collection, ev.DocID, snapLocal)
	if err != nil {
		glog.Warningf("aae originator: neighbor %s unavailable for %s/%s: %v", n.Name, ev.Collection, ev.DocID, err)
		if r.met != nil {
			r.met.AAETimeouts.Inc()
		}
		return
	}
	if !ok {
		// TERMINATE_SESSION: snapshots matched, nothing to push.
		if r.met != nil {
			r.met.AAESkipped.Inc()
		}
		return
	}
	if tsLocal <= tsRemote {
		// Remote is at least as new - nothing to push.
		if r.met != nil {
			r.met.AAESkipped.Inc()
		}
		return
	}
	r.pushDocument(ctx, n, ev.Collection, ev.DocID, tsLocal, payload)
}

// checkSnapshot sends CheckSnapshot to n over UDP with the originator
// timeout and returns (remoteTimestamp, shouldConsiderPush, err).
func (r *Replicator) checkSnapshot(n cmn.Neighbor, collection, docID string, snapLocal sbf.Snapshot) (string, bool, error) {
	payload, err := wire.EncodeCheckSnapshot(wire.CheckSnapshot{
		Collection: collection,
		DocID:      docID,
		Snapshot:   snapLocal.Encode(),
	})
	if err != nil {
		return "", false, err
	}

	conn, err := net.Dial("udp", n.SnapshotReceiver.String())
	if err != nil {
		return "", false, &cmn.PeerUnavailableError{Neighbor: n.Name, Err: err}
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline(snapshotExchangeTimeout)); err != nil {
		return "", false, err
	}
	if _, err := conn.Write(payload); err != nil {
		return "", false, &cmn.PeerUnavailableError{Neighbor: n.Name, Err: err}
	}

	buf := make([]byte, 64*1024)
	nRead, err := conn.Read(buf)
	if err != nil {
		return "", false, &cmn.PeerUnavailableError{Neighbor: n.Name, Err: err}
	}
	reply, err := wire.DecodeSnapshotReply(buf[:nRead])
	if err != nil {
		return "", false, err
	}
	if reply.Op == wire.OpTerminateSession {
		return "", false, nil
	}
	return reply.Timestamp, true, nil
}

// pushDocument opens a TCP connection to n's document_receiver and sends a
// DocumentPush frame.
func (r *Replicator) pushDocument(ctx context.Context, n cmn.Neighbor, collection, docID, updatedAt string, payload []byte) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", n.DocumentReceiver.String())
	if err != nil {
		glog.Warningf("aae originator: failed to dial neighbor %s document receiver: %v", n.Name, err)
		if r.met != nil {
			r.met.AAETimeouts.Inc()
		}
		return
	}
	defer conn.Close()

	if err := wire.EncodeDocumentPush(conn, wire.DocumentPush{
		Collection:   collection,
		DocID:        docID,
		UpdatedAt:    updatedAt,
		DocumentJSON: payload,
	}); err != nil {
		glog.Errorf("aae originator: failed to push %s/%s to %s: %v", collection, docID, n.Name, err)
		return
	}
	if r.met != nil {
		r.met.AAEPushSent.Inc()
	}
}
