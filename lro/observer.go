package lro

import (
	"context"
	"time"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
)

// Outcome is how a single [OperationHandle.Await] call ended.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeCanceled  Outcome = "canceled"
	// The wait was abandoned because a poll failed.
	OutcomePollError Outcome = "poll_error"
)

// Observer receives notifications about tracked operations. Observers must not block and cannot influence the
// tracker; errors they encounter are theirs to handle.
//
// method is the full gRPC method that created the operation, or empty for handles resumed by name.
type Observer interface {
	ObserveSubmit(method string, err error)
	ObservePoll(method string, latency time.Duration, err error)
	// ObserveSnapshot is called with every operation state fetched from the server, including the one returned on
	// submission.
	ObserveSnapshot(ctx context.Context, method string, op *longrunningpb.Operation)
	ObserveOutcome(method string, outcome Outcome)
}

// Observers fans notifications out to each of the given observers in order.
func Observers(observers ...Observer) Observer {
	return multiObserver(observers)
}

type multiObserver []Observer

func (m multiObserver) ObserveSubmit(method string, err error) {
	for _, o := range m {
		o.ObserveSubmit(method, err)
	}
}

func (m multiObserver) ObservePoll(method string, latency time.Duration, err error) {
	for _, o := range m {
		o.ObservePoll(method, latency, err)
	}
}

func (m multiObserver) ObserveSnapshot(ctx context.Context, method string, op *longrunningpb.Operation) {
	for _, o := range m {
		o.ObserveSnapshot(ctx, method, op)
	}
}

func (m multiObserver) ObserveOutcome(method string, outcome Outcome) {
	for _, o := range m {
		o.ObserveOutcome(method, outcome)
	}
}

type nopObserver struct{}

func (nopObserver) ObserveSubmit(string, error)                                      {}
func (nopObserver) ObservePoll(string, time.Duration, error)                         {}
func (nopObserver) ObserveSnapshot(context.Context, string, *longrunningpb.Operation) {}
func (nopObserver) ObserveOutcome(string, Outcome)                                   {}
