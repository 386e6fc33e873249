package lro

import (
	"context"
	"time"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"k8s.io/utils/clock"
)

// State is the server-reported state of an operation as last observed by a handle.
type State string

const (
	// The operation has not been observed done.
	StatePending State = "pending"
	// The operation completed with a success payload.
	StateSucceeded State = "succeeded"
	// The operation completed with a failure status.
	StateFailed State = "failed"
)

// An OperationHandle references a server-side operation by name and holds the last fetched snapshot of its status.
//
// A handle is owned by its caller and must not be polled from multiple goroutines at the same time. Once a handle
// has been observed done it never changes again.
type OperationHandle[M, R proto.Message] struct {
	// Server assigned operation name.
	Name string
	// Full gRPC method that created the operation. Empty for untyped handles.
	Method string

	tracker  *Tracker
	done     bool
	metadata M
	result   *Result[R]
	raw      *longrunningpb.Operation
}

// UntypedHandle is a handle whose metadata and result are kept as opaque Any messages.
type UntypedHandle = OperationHandle[*anypb.Any, *anypb.Any]

// NewUntypedHandle gets a handle to an existing operation by name without knowing which method created it.
// Does not incur a trip to the server.
func NewUntypedHandle(t *Tracker, name string) (*UntypedHandle, error) {
	if name == "" {
		return nil, errEmptyOperationName
	}
	return &UntypedHandle{Name: name, tracker: t}, nil
}

// Done reports whether the operation has been observed complete.
func (h *OperationHandle[M, R]) Done() bool {
	return h.done
}

// Metadata returns the progress metadata from the latest snapshot. It is the zero M if the server did not send any.
func (h *OperationHandle[M, R]) Metadata() M {
	return h.metadata
}

// Result returns the final result, or nil while the operation is pending.
func (h *OperationHandle[M, R]) Result() *Result[R] {
	return h.result
}

// State derives the operation state from the latest snapshot.
func (h *OperationHandle[M, R]) State() State {
	switch {
	case !h.done:
		return StatePending
	case h.result.Succeeded():
		return StateSucceeded
	default:
		return StateFailed
	}
}

// Raw returns a copy of the latest fetched operation, or nil if the handle was never fetched.
func (h *OperationHandle[M, R]) Raw() *longrunningpb.Operation {
	if h.raw == nil {
		return nil
	}
	return proto.Clone(h.raw).(*longrunningpb.Operation)
}

// record stores s as the latest snapshot. Snapshots arriving after the handle is done are ignored.
func (h *OperationHandle[M, R]) record(s *snapshot[M, R]) {
	if h.done {
		return
	}
	h.done = s.done
	h.metadata = s.metadata
	h.result = s.result
	h.raw = s.raw
}

// Poll fetches the latest status of the operation and records it on the handle, returning the handle.
//
// Polling a handle that is already done returns it unchanged without a network call. A failed status call yields a
// [PollError]; the handle keeps its previous snapshot and the caller decides whether to poll again.
func (h *OperationHandle[M, R]) Poll(ctx context.Context) (*OperationHandle[M, R], error) {
	if h.done {
		return h, nil
	}
	t := h.tracker
	start := t.clock.Now()
	op, err := t.transport.GetOperation(ctx, h.Name)
	var s *snapshot[M, R]
	if err == nil {
		s, err = decodeOperation[M, R](op)
	}
	t.observer.ObservePoll(h.Method, t.clock.Since(start), err)
	if err != nil {
		return nil, &PollError{Name: h.Name, Cause: err}
	}
	t.observer.ObserveSnapshot(ctx, h.Method, s.raw)
	h.record(s)
	return h, nil
}

// Await polls the operation until it completes, the local timeout elapses or ctx ends.
//
// This method has the following possible outcomes:
//
//  1. The operation succeeds. Its payload is returned.
//
//  2. The operation fails. The error is an [OperationError] carrying the server status.
//
//  3. options.Timeout elapses. The error is a [TimeoutError]; the operation is left running and Await may be
//     called again on the same handle.
//
//  4. ctx is canceled or its deadline passes. A cancel request is sent to the server on a best effort basis and the
//     error is a [CanceledError]. No polls are issued after the cancel request.
//
//  5. A poll fails. The error is a [PollError].
//
// Invalid options yield an [InvalidConfigurationError] before any poll.
func (h *OperationHandle[M, R]) Await(ctx context.Context, options AwaitOptions) (R, error) {
	var zero R
	if err := options.validate(); err != nil {
		return zero, err
	}
	return h.await(ctx, options)
}

func (h *OperationHandle[M, R]) await(ctx context.Context, options AwaitOptions) (R, error) {
	var zero R
	t := h.tracker
	if h.done {
		return h.resolve()
	}
	logger := t.logger.With(zap.String("operation", h.Name))

	var deadline time.Time
	if options.Timeout > 0 {
		deadline = t.clock.Now().Add(options.Timeout)
	}
	pacer := options.pacer()
	polls := 0
	for {
		if ctx.Err() != nil {
			return zero, h.abort(ctx, logger)
		}
		_, err := h.Poll(ctx)
		polls++
		if err != nil {
			if ctx.Err() != nil {
				return zero, h.abort(ctx, logger)
			}
			t.observer.ObserveOutcome(h.Method, OutcomePollError)
			return zero, err
		}
		if h.done {
			return h.resolve()
		}

		pause := pacer.Pause()
		expires := false
		if !deadline.IsZero() {
			if remaining := deadline.Sub(t.clock.Now()); remaining <= pause {
				pause = remaining
				expires = true
			}
		}
		logger.Debug("operation still running", zap.Int("polls", polls), zap.Duration("pause", pause))
		if err := sleep(ctx, t.clock, pause); err != nil {
			return zero, h.abort(ctx, logger)
		}
		if expires {
			t.observer.ObserveOutcome(h.Method, OutcomeTimedOut)
			return zero, &TimeoutError{Name: h.Name, Timeout: options.Timeout, Polls: polls}
		}
	}
}

func (h *OperationHandle[M, R]) resolve() (R, error) {
	value, err := h.result.Get()
	if err != nil {
		h.tracker.observer.ObserveOutcome(h.Method, OutcomeFailed)
	} else {
		h.tracker.observer.ObserveOutcome(h.Method, OutcomeSucceeded)
	}
	return value, err
}

// abort sends a best effort cancel request on a context detached from the canceled ctx.
func (h *OperationHandle[M, R]) abort(ctx context.Context, logger *zap.Logger) error {
	t := h.tracker
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cancelTimeout)
	defer cancel()
	cancelErr := t.transport.CancelOperation(cancelCtx, h.Name)
	if cancelErr != nil {
		logger.Warn("best effort cancel failed", zap.Error(cancelErr))
	}
	t.observer.ObserveOutcome(h.Method, OutcomeCanceled)
	return &CanceledError{Name: h.Name, Cause: ctx.Err(), CancelErr: cancelErr}
}

// Cancel requests cancellation of the operation without waiting for it.
//
// Cancelation is asynchronous and may not be respected by the server; poll the handle to observe the final state.
func (h *OperationHandle[M, R]) Cancel(ctx context.Context) error {
	if err := h.tracker.transport.CancelOperation(ctx, h.Name); err != nil {
		return &TransportError{Op: "cancel", Name: h.Name, Cause: err}
	}
	return nil
}

// Delete tells the server the client is no longer interested in the operation, reclaiming its bookkeeping.
// It does not cancel the operation.
func (h *OperationHandle[M, R]) Delete(ctx context.Context) error {
	if err := h.tracker.transport.DeleteOperation(ctx, h.Name); err != nil {
		return &TransportError{Op: "delete", Name: h.Name, Cause: err}
	}
	return nil
}

// sleep waits for d on clk, returning early with ctx's error if ctx ends first.
func sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := clk.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}
