// Package inmemory implements transport.Transport with a per-uid
// registry of buffered Go channels, entirely in-process. It is the
// transport used by the end-to-end test scenarios in spec §8 and by
// single-binary demos.
//
// Built as a registration-only uid -> channel map (append-only,
// guarded by a mutex) over the generic Message[V] envelope and, for
// the destabilization scenario (spec §8 scenario 7), given an optional
// drop/delay fault injector modeled on the teacher's
// paxos/seeker.go:extractRandomNodes probability-gate idiom.
package inmemory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/esaraci/paxoscore/message"
	"github.com/esaraci/paxoscore/transport"
)

// Faults configures the optional message-delivery fault injection
// used by destabilization scenarios (spec §8 scenario 7). The zero
// value disables fault injection entirely (every message delivered
// with no extra delay).
type Faults struct {
	// DropProbability in [0,1]: a broadcast/send to a given
	// participant is silently dropped with this probability; 1 drops
	// every delivery.
	DropProbability float64

	// MinDelay/MaxDelay: when not dropped, delivery is delayed by a
	// uniform random duration in [MinDelay, MaxDelay).
	MinDelay time.Duration
	MaxDelay time.Duration

	// Rand, when nil, defaults to the package-level math/rand source.
	Rand *rand.Rand
}

func (f Faults) roll() float64 {
	if f.Rand != nil {
		return f.Rand.Float64()
	}
	return rand.Float64()
}

func (f Faults) delay() time.Duration {
	if f.MaxDelay <= f.MinDelay {
		return f.MinDelay
	}
	span := f.MaxDelay - f.MinDelay
	var frac float64
	if f.Rand != nil {
		frac = f.Rand.Float64()
	} else {
		frac = rand.Float64()
	}
	return f.MinDelay + time.Duration(frac*float64(span))
}

const inboundBuffer = 256

// Transport is a channel-registry implementation of transport.Transport[V].
type Transport[V any] struct {
	mu       sync.RWMutex
	inboxes  map[string]chan message.Message[V]
	errs     map[string]chan error
	closed   bool
	faults   Faults
}

// New returns a Transport with no fault injection.
func New[V any]() *Transport[V] {
	return NewWithFaults[V](Faults{})
}

// NewWithFaults returns a Transport that drops/delays deliveries
// according to f.
func NewWithFaults[V any](f Faults) *Transport[V] {
	return &Transport[V]{
		inboxes: make(map[string]chan message.Message[V]),
		errs:    make(map[string]chan error),
		faults:  f,
	}
}

func (t *Transport[V]) Register(uid string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrClosed
	}
	if _, ok := t.inboxes[uid]; ok {
		return nil
	}
	t.inboxes[uid] = make(chan message.Message[V], inboundBuffer)
	t.errs[uid] = make(chan error, inboundBuffer)
	return nil
}

func (t *Transport[V]) ReceiveMessage(uid string) (<-chan message.Message[V], error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ch, ok := t.inboxes[uid]
	if !ok {
		return nil, errUnknownParticipant(uid)
	}
	return ch, nil
}

func (t *Transport[V]) Errors(uid string) (<-chan error, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ch, ok := t.errs[uid]
	if !ok {
		return nil, errUnknownParticipant(uid)
	}
	return ch, nil
}

func (t *Transport[V]) SendMessage(ctx context.Context, targetUid string, msg message.Message[V]) error {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return transport.ErrClosed
	}
	ch, ok := t.inboxes[targetUid]
	t.mu.RUnlock()
	if !ok {
		return errUnknownParticipant(targetUid)
	}
	return t.deliver(ctx, ch, msg)
}

func (t *Transport[V]) BroadcastMessage(ctx context.Context, msg message.Message[V]) error {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return transport.ErrClosed
	}
	targets := make([]chan message.Message[V], 0, len(t.inboxes))
	for _, ch := range t.inboxes {
		targets = append(targets, ch)
	}
	t.mu.RUnlock()

	var firstErr error
	for _, ch := range targets {
		if err := t.deliver(ctx, ch, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *Transport[V]) deliver(ctx context.Context, ch chan message.Message[V], msg message.Message[V]) error {
	if t.faults.DropProbability > 0 && t.faults.roll() < t.faults.DropProbability {
		return nil
	}
	send := func() error {
		select {
		case ch <- msg:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if d := t.faults.delay(); d > 0 {
		go func() {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				_ = send()
			case <-ctx.Done():
			}
		}()
		return nil
	}
	return send()
}

func (t *Transport[V]) SendErrorStack(ctx context.Context, uid string, err error) error {
	t.mu.RLock()
	ch, ok := t.errs[uid]
	t.mu.RUnlock()
	if !ok {
		return errUnknownParticipant(uid)
	}
	select {
	case ch <- err:
	case <-ctx.Done():
		return ctx.Err()
	default:
		// error stream full: drop the oldest report rather than block
		// the reporting pipeline (spec §7: error reporting must never
		// wedge the originating stage).
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- err:
		default:
		}
	}
	return nil
}

func (t *Transport[V]) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	for _, ch := range t.inboxes {
		close(ch)
	}
	for _, ch := range t.errs {
		close(ch)
	}
	return nil
}

type unknownParticipantError struct{ uid string }

func (e *unknownParticipantError) Error() string {
	return "transport: unknown participant " + e.uid
}

func errUnknownParticipant(uid string) error {
	return &unknownParticipantError{uid: uid}
}
