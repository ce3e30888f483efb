// Package retry implements the retry-pacing strategies a Proposer
// uses when a round fails to reach quorum (spec §4.4). Grounded on
// the teacher's jittered-retry idiom in paxos/proposer.go
// (`r := rand.Float64() * 5; time.Sleep(time.Duration(r) * time.Second)`,
// run after every failed SendPrepare/SendAccept round) and its
// periodic-trigger loop in main.go's seek4ever
// (`time.Sleep(config.CONF.SEEK_TIMEOUT * time.Second)` between
// rounds). Coordinator generalizes both shapes behind one interface so
// Proposer doesn't need to know which pacing policy it's driving.
package retry

import (
	"context"
	"time"
)

// Coordinator paces a sequence of retry attempts. Coordinate consumes
// a trigger channel (one value per attempt a caller wants to make) and
// returns a channel that emits once per trigger, delayed according to
// the coordinator's policy. The first emission is never delayed: a
// caller's initial attempt always fires immediately, mirroring the
// teacher's proposer sending its first prepare/accept round with no
// preceding sleep.
//
// The returned channel is closed once trigger is closed and any
// pending delay has fired, or once ctx is done.
type Coordinator interface {
	Coordinate(ctx context.Context, trigger <-chan struct{}) <-chan struct{}
}

// run is the shared pump: read from trigger, delay by delayFor(n) for
// the nth (1-indexed) attempt, emit, repeat.
func run(ctx context.Context, trigger <-chan struct{}, delayFor func(attempt int) time.Duration) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		defer close(out)
		attempt := 0
		for {
			select {
			case _, ok := <-trigger:
				if !ok {
					return
				}
				attempt++
				if d := delayFor(attempt); d > 0 {
					timer := time.NewTimer(d)
					select {
					case <-timer.C:
					case <-ctx.Done():
						timer.Stop()
						return
					}
				}
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Noop coordinates every attempt with zero delay.
type Noop struct{}

func (Noop) Coordinate(ctx context.Context, trigger <-chan struct{}) <-chan struct{} {
	return run(ctx, trigger, func(int) time.Duration { return 0 })
}

// IncrementalBackoff delays the nth retry (n >= 2; the first attempt
// is never delayed) by T0 * K^(n-2), i.e. the 2nd attempt waits T0,
// the 3rd waits T0*K, the 4th T0*K^2, and so on. Modeled on the
// teacher's flat jittered sleep between rounds, generalized from a
// constant delay to a growing one.
type IncrementalBackoff struct {
	T0 time.Duration
	K  float64
}

func (b IncrementalBackoff) Coordinate(ctx context.Context, trigger <-chan struct{}) <-chan struct{} {
	return run(ctx, trigger, func(attempt int) time.Duration {
		if attempt <= 1 {
			return 0
		}
		k := b.K
		if k <= 0 {
			k = 1
		}
		factor := 1.0
		for i := 0; i < attempt-2; i++ {
			factor *= k
		}
		return time.Duration(float64(b.T0) * factor)
	})
}

// ExponentialBackoff delays the nth retry (n >= 2) by 2^(n-2) * 100ms:
// the 2nd attempt waits 100ms, the 3rd 200ms, the 4th 400ms, etc.
type ExponentialBackoff struct{}

func (ExponentialBackoff) Coordinate(ctx context.Context, trigger <-chan struct{}) <-chan struct{} {
	const base = 100 * time.Millisecond
	return run(ctx, trigger, func(attempt int) time.Duration {
		if attempt <= 1 {
			return 0
		}
		factor := int64(1)
		for i := 0; i < attempt-2; i++ {
			factor *= 2
		}
		return time.Duration(factor) * base
	})
}
