package cartsync

import (
	"context"
	"time"
)

// Signal asks for a reconciliation. Key is the storage key that changed, or
// empty when the trigger does not know which key moved.
type Signal struct {
	Key string
}

// ChangeSource produces reconciliation triggers until ctx is done.
type ChangeSource interface {
	Run(ctx context.Context, trigger func(Signal)) error
}

// IntervalSource triggers on a fixed period. It covers writes that emit no
// notification and acts as a fallback when notifications are unavailable.
type IntervalSource struct {
	Period time.Duration
}

func (s IntervalSource) Run(ctx context.Context, trigger func(Signal)) error {
	period := s.Period
	if period <= 0 {
		period = time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			trigger(Signal{})
		}
	}
}

// ChannelSource forwards signals delivered on C, typically by a Hub.
type ChannelSource struct {
	C <-chan Signal
}

func (s ChannelSource) Run(ctx context.Context, trigger func(Signal)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-s.C:
			if !ok {
				return nil
			}
			trigger(sig)
		}
	}
}
