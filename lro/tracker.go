package lro

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"k8s.io/utils/clock"
)

// DefaultCancelTimeout bounds the best effort cancel request sent after a wait is interrupted.
const DefaultCancelTimeout = 10 * time.Second

// Method names a full gRPC method that returns a long-running operation. I is the request type, M the operation
// metadata type and R the success payload type.
//
// Definitions are meant to be declared once per call kind:
//
//	var CreateInstance = lro.Method[*adminpb.CreateInstanceRequest, *adminpb.CreateInstanceMetadata, *adminpb.Instance](
//		"/google.bigtable.admin.v2.BigtableInstanceAdmin/CreateInstance")
type Method[I, M, R proto.Message] string

// FullName returns the full gRPC method name.
func (m Method[I, M, R]) FullName() string {
	return string(m)
}

// TrackerOptions are options for creating a [Tracker].
type TrackerOptions struct {
	// Transport used for all network calls. Required.
	Transport Transport
	// Defaults to a no-op logger.
	Logger *zap.Logger
	// Clock used to pace polls and measure timeouts. Defaults to the system clock.
	Clock clock.Clock
	// Optional observer notified of submissions, polls, snapshots and outcomes.
	Observer Observer
	// Timeout of the best effort cancel request sent when a wait is interrupted by its context.
	// Defaults to [DefaultCancelTimeout].
	CancelTimeout time.Duration
}

// A Tracker submits long-running operations and follows them to completion.
//
// A Tracker holds no per-operation state and is safe for concurrent use; any number of handles can be tracked at
// the same time.
type Tracker struct {
	transport     Transport
	logger        *zap.Logger
	clock         clock.Clock
	observer      Observer
	cancelTimeout time.Duration
}

// NewTracker creates a new [Tracker] from the provided [TrackerOptions].
// Transport is required.
func NewTracker(options TrackerOptions) (*Tracker, error) {
	if options.Transport == nil {
		return nil, errors.New("nil Transport")
	}
	if options.CancelTimeout < 0 {
		return nil, invalidConfigf("CancelTimeout", "must not be negative, got %s", options.CancelTimeout)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Clock == nil {
		options.Clock = clock.RealClock{}
	}
	if options.Observer == nil {
		options.Observer = nopObserver{}
	}
	if options.CancelTimeout == 0 {
		options.CancelTimeout = DefaultCancelTimeout
	}
	return &Tracker{
		transport:     options.Transport,
		logger:        options.Logger,
		clock:         options.Clock,
		observer:      options.Observer,
		cancelTimeout: options.CancelTimeout,
	}, nil
}

// Close closes the underlying transport.
func (t *Tracker) Close() error {
	return t.transport.Close()
}

// Submit sends request to method and returns a handle to the operation the server created.
//
// If the call fails the returned error is a [SubmissionError]. If the server returns an operation that cannot be
// decoded the error is a [StartedOperationError] carrying the operation name, which must not be resubmitted blindly.
// The server may resolve the operation synchronously, in which case the returned handle is already done and needs no
// polling.
func Submit[I, M, R proto.Message](ctx context.Context, t *Tracker, method Method[I, M, R], request I) (*OperationHandle[M, R], error) {
	name := method.FullName()
	if name == "" {
		return nil, &SubmissionError{Method: name, Cause: errEmptyMethod}
	}
	op, err := t.transport.StartOperation(ctx, name, request)
	if err != nil {
		t.observer.ObserveSubmit(name, err)
		t.logger.Debug("operation submission failed", zap.String("method", name), zap.Error(err))
		return nil, &SubmissionError{Method: name, Cause: err}
	}
	s, err := decodeOperation[M, R](op)
	t.observer.ObserveSubmit(name, err)
	if err != nil {
		t.logger.Warn("started operation could not be decoded", zap.String("method", name),
			zap.String("operation", op.GetName()), zap.Error(err))
		return nil, &StartedOperationError{Method: name, Name: op.GetName(), Cause: err}
	}
	t.observer.ObserveSnapshot(ctx, name, s.raw)
	t.logger.Debug("operation submitted", zap.String("method", name), zap.String("operation", s.raw.GetName()), zap.Bool("done", s.done))

	handle := &OperationHandle[M, R]{
		Name:    s.raw.GetName(),
		Method:  name,
		tracker: t,
	}
	handle.record(s)
	return handle, nil
}

// SubmitAndAwait is a helper for submitting an operation and waiting for its completion.
//
// options are validated before any network activity. See [OperationHandle.Await] for the possible outcomes.
func SubmitAndAwait[I, M, R proto.Message](ctx context.Context, t *Tracker, method Method[I, M, R], request I, options AwaitOptions) (R, error) {
	var zero R
	if err := options.validate(); err != nil {
		return zero, err
	}
	handle, err := Submit(ctx, t, method, request)
	if err != nil {
		return zero, err
	}
	return handle.await(ctx, options)
}

// NewHandle gets a handle to an existing operation by name, typed after the method that created it.
// Does not incur a trip to the server; the handle starts out pending.
func NewHandle[I, M, R proto.Message](t *Tracker, method Method[I, M, R], name string) (*OperationHandle[M, R], error) {
	if name == "" {
		return nil, errEmptyOperationName
	}
	return &OperationHandle[M, R]{
		Name:    name,
		Method:  method.FullName(),
		tracker: t,
	}, nil
}
