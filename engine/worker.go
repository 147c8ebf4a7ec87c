package engine

import (
	"context"
	"strconv"

	"github.com/golang/glog"

	"github.com/autumndb/autumndb/cmn"
	"github.com/autumndb/autumndb/store"
)

// queueDepth bounds the operation engine's FIFO so producers can push
// without blocking on each other.
const queueDepth = 1024

// Worker is the single consumer that drains a FIFO queue of Operation
// values, applies each to the Registry, and publishes a matching Event on
// the bus after every successful mutation. Exactly one worker goroutine
// ever calls into the Registry, which is why the Registry itself does not
// need to be thread-safe.
type Worker struct {
	reg  *store.Registry
	bus  *EventBus
	ops  chan Operation
	met  *cmn.Metrics
	done chan struct{}
}

// NewWorker returns a Worker bound to reg and bus. met may be nil, in which
// case metrics are simply not recorded.
func NewWorker(reg *store.Registry, bus *EventBus, met *cmn.Metrics) *Worker {
	return &Worker{
		reg:  reg,
		bus:  bus,
		ops:  make(chan Operation, queueDepth),
		met:  met,
		done: make(chan struct{}),
	}
}

// Enqueue pushes op onto the FIFO queue without blocking other producers.
// It blocks only if the queue itself is full, which bounds memory rather
// than indicating a design violation.
func (w *Worker) Enqueue(op Operation) {
	if w.met != nil {
		w.met.OpsEnqueued.WithLabelValues(opLabel(op.Code)).Inc()
		w.met.QueueDepth.Set(float64(len(w.ops)))
	}
	w.ops <- op
}

// Run drains the queue until ctx is cancelled. Operations against the same
// collection are applied in enqueue order because a single goroutine
// processes the channel strictly in FIFO order.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-w.ops:
			w.apply(op)
			if w.met != nil {
				w.met.QueueDepth.Set(float64(len(w.ops)))
			}
		}
	}
}

// Stopped is closed once Run has returned.
func (w *Worker) Stopped() <-chan struct{} { return w.done }

func (w *Worker) apply(op Operation) {
	docID, payload, err := w.applyLocked(op)
	if err != nil {
		// A failed operation is dropped with a logged error; no event is
		// emitted and callers only see it if they're waiting on Result.
		glog.Errorf("operation engine: dropping %v on %s: %v", op.Code, op.Collection, err)
		if w.met != nil {
			w.met.OpsFailed.WithLabelValues(opLabel(op.Code)).Inc()
		}
		if op.Result != nil {
			op.Result <- Result{Err: err}
		}
		return
	}

	if w.met != nil {
		w.met.OpsApplied.WithLabelValues(opLabel(op.Code)).Inc()
	}
	w.bus.Publish(Event{Code: op.Code, Collection: op.Collection, DocID: docID})
	if op.Result != nil {
		op.Result <- Result{DocID: docID, Payload: payload}
	}
}

// applyLocked dispatches op by code, exhaustively, over the tagged union.
// It returns the document id relevant to the event (empty for
// collection-oriented ops) and, for reads, the document payload.
func (w *Worker) applyLocked(op Operation) (string, []byte, error) {
	switch op.Code {
	case OpCreateCollection:
		_, err := w.reg.CreateCollection(op.Collection)
		return "", nil, err

	case OpDeleteCollection:
		return "", nil, w.reg.DeleteCollection(op.Collection)

	case OpCreateDocument:
		col, err := w.reg.Get(op.Collection)
		if err != nil {
			return "", nil, err
		}
		id := cmn.NewDocumentID()
		if err := col.CreateDocument(id, op.Payload, op.UpdatedAt); err != nil {
			return "", nil, err
		}
		return id, nil, nil

	case OpUpdateDocument:
		col, err := w.reg.Get(op.Collection)
		if err != nil {
			return "", nil, err
		}
		if op.DocID == "" {
			return "", nil, &cmn.ProtocolError{Msg: "update requires a document id"}
		}
		if err := col.UpdateDocument(op.DocID, op.Payload, op.UpdatedAt); err != nil {
			return "", nil, err
		}
		return op.DocID, nil, nil

	case OpDeleteDocument:
		col, err := w.reg.Get(op.Collection)
		if err != nil {
			return "", nil, err
		}
		if op.DocID == "" {
			return "", nil, &cmn.ProtocolError{Msg: "delete requires a document id"}
		}
		if err := col.DeleteDocument(op.DocID); err != nil {
			return "", nil, err
		}
		return op.DocID, nil, nil

	case OpReadDocument:
		col, err := w.reg.Get(op.Collection)
		if err != nil {
			return "", nil, err
		}
		if op.DocID == "" {
			return "", nil, &cmn.ProtocolError{Msg: "read requires a document id"}
		}
		payload, err := col.ReadDocument(op.DocID)
		if err != nil {
			return "", nil, err
		}
		return op.DocID, payload, nil

	default:
		// Every Operation reaching the worker was built by one of the
		// NewXxx constructors in operation.go, so op.Code is always one of
		// the cases above.
		cmn.Assert(false, "unreachable operation code "+strconv.Itoa(int(op.Code)))
		return "", nil, nil
	}
}

func opLabel(c OpCode) string { return strconv.Itoa(int(c)) }
