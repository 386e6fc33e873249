package opstore

import (
	"context"
	"time"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"github.com/bigtable-lro/sdk-go/lro"
	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// A Recorder is an [lro.Observer] that saves every fetched operation snapshot to a [Store].
// Store failures are logged and never affect the tracker.
type Recorder struct {
	store  *Store
	clock  clock.PassiveClock
	logger *zap.Logger
}

var _ lro.Observer = (*Recorder)(nil)

// NewRecorder creates a [Recorder] writing to store. clk defaults to the system clock.
func NewRecorder(store *Store, clk clock.PassiveClock) *Recorder {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Recorder{store: store, clock: clk, logger: store.options.Logger}
}

func (r *Recorder) ObserveSnapshot(ctx context.Context, method string, op *longrunningpb.Operation) {
	record, err := NewRecord(method, op, r.clock.Now())
	if err == nil {
		// Saved even when the wait this snapshot belongs to is being canceled.
		err = r.store.Save(context.WithoutCancel(ctx), record)
	}
	if err != nil {
		r.logger.Warn("failed to record operation", zap.String("operation", op.GetName()), zap.Error(err))
	}
}

func (*Recorder) ObserveSubmit(string, error)              {}
func (*Recorder) ObservePoll(string, time.Duration, error) {}
func (*Recorder) ObserveOutcome(string, lro.Outcome)       {}
