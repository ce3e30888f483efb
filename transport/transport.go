// Package transport declares the collaborator contract a concrete
// wire implementation must satisfy (spec §6): per-uid inbound
// streams, unicast send, fan-out broadcast, and an error-reporting
// channel. paxoscore ships two implementations — transport/inmemory
// (channel registry, for tests and single-process demos) and
// transport/httptransport (net/http + JSON, adapted from the
// teacher's HTTP handlers) — but any type satisfying Transport works.
package transport

import (
	"context"
	"errors"

	"github.com/esaraci/paxoscore/message"
)

// ErrTimeout is returned by implementations that support a bounded
// receive when no message arrived within the deadline.
var ErrTimeout = errors.New("transport: receive timed out")

// ErrClosed is returned by a Transport method called after Close.
var ErrClosed = errors.New("transport: closed")

// Transport is the network collaborator a Node depends on. V is the
// application value type carried by Message.
type Transport[V any] interface {
	// ReceiveMessage returns a hot (multicast-safe only in the sense
	// that each registered uid has its own channel), per-uid inbound
	// stream of messages addressed or broadcast to uid. The channel
	// is closed when the transport is closed.
	ReceiveMessage(uid string) (<-chan message.Message[V], error)

	// SendMessage unicasts msg to targetUid. Fire-and-forget from the
	// caller's perspective but may fail (e.g. unknown/unreachable
	// target); per spec §7 such failures are transient I/O and should
	// be surfaced via SendErrorStack by the caller, not treated as
	// protocol violations.
	SendMessage(ctx context.Context, targetUid string, msg message.Message[V]) error

	// BroadcastMessage fans msg out to every registered participant.
	BroadcastMessage(ctx context.Context, msg message.Message[V]) error

	// SendErrorStack reports an error against uid's error stream. Used
	// by Node/Proposer/Acceptor/Learner to surface transient failures
	// without tearing down their own pipeline (spec §7).
	SendErrorStack(ctx context.Context, uid string, err error) error

	// Errors returns uid's error stream, as populated by
	// SendErrorStack calls (including ones this process itself made).
	Errors(uid string) (<-chan error, error)

	// Register adds uid as a known participant, allocating its
	// inbound channel. Registration is append-only for the lifetime of
	// the transport (spec §9's "registration-only lifetime"):
	// participants are never removed mid-run, only at Close.
	Register(uid string) error

	// Close tears down every registered participant's channels. Close
	// is idempotent.
	Close() error
}
