package lro

import (
	"time"

	"github.com/googleapis/gax-go/v2"
)

const (
	// DefaultMaxPollInterval caps the pause between polls when AwaitOptions.MaxPollInterval is unset.
	DefaultMaxPollInterval = 30 * time.Second
	// DefaultMultiplier is the backoff growth factor used when AwaitOptions.Multiplier is unset.
	DefaultMultiplier = 1.5
)

// AwaitOptions control how [OperationHandle.Await] paces its polls.
type AwaitOptions struct {
	// Pause after the first poll that reports the operation still running. Required, must be positive.
	PollInterval time.Duration
	// Upper bound on the pause between polls. Defaults to the larger of [DefaultMaxPollInterval] and PollInterval.
	MaxPollInterval time.Duration
	// Growth factor of the pause between consecutive polls. Zero means [DefaultMultiplier], 1 polls at a fixed
	// PollInterval and values above 1 grow the pause exponentially with jitter up to MaxPollInterval. A pause is
	// never shorter than PollInterval.
	Multiplier float64
	// Local waiting budget measured from the start of Await. Zero waits until the operation completes or the
	// context ends.
	Timeout time.Duration
}

func (o AwaitOptions) validate() error {
	if o.PollInterval <= 0 {
		return invalidConfigf("PollInterval", "must be positive, got %s", o.PollInterval)
	}
	if o.MaxPollInterval < 0 {
		return invalidConfigf("MaxPollInterval", "must not be negative, got %s", o.MaxPollInterval)
	}
	if o.MaxPollInterval > 0 && o.MaxPollInterval < o.PollInterval {
		return invalidConfigf("MaxPollInterval", "%s is less than PollInterval %s", o.MaxPollInterval, o.PollInterval)
	}
	if o.Multiplier != 0 && o.Multiplier < 1 {
		return invalidConfigf("Multiplier", "must be 0 or at least 1, got %v", o.Multiplier)
	}
	if o.Timeout < 0 {
		return invalidConfigf("Timeout", "must not be negative, got %s", o.Timeout)
	}
	return nil
}

// pacer yields successive pauses between polls.
type pacer interface {
	Pause() time.Duration
}

type fixedPacer time.Duration

func (p fixedPacer) Pause() time.Duration {
	return time.Duration(p)
}

// pacer assumes o has been validated.
func (o AwaitOptions) pacer() pacer {
	multiplier := o.Multiplier
	if multiplier == 0 {
		multiplier = DefaultMultiplier
	}
	if multiplier == 1 {
		return fixedPacer(o.PollInterval)
	}
	maxInterval := o.MaxPollInterval
	if maxInterval == 0 {
		maxInterval = max(DefaultMaxPollInterval, o.PollInterval)
	}
	return &backoffPacer{
		floor: o.PollInterval,
		backoff: gax.Backoff{
			Initial:    o.PollInterval,
			Max:        maxInterval,
			Multiplier: multiplier,
		},
	}
}

// backoffPacer grows the pause with jitter but never pauses for less than floor.
type backoffPacer struct {
	floor   time.Duration
	backoff gax.Backoff
}

func (p *backoffPacer) Pause() time.Duration {
	return max(p.floor, p.backoff.Pause())
}
