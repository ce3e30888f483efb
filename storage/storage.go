// Package storage declares the durable collaborator contract an
// Acceptor depends on (spec §6): the two key/value slots,
// lastGranted and lastAccepted, that must survive a restart. Three
// implementations ship here: storage/memory (sync.RWMutex map, for
// tests), storage/sqlite and storage/redisstore (adapted from the
// teacher's paxos/queries backends).
package storage

import (
	"context"

	"github.com/esaraci/paxoscore/message"
	"github.com/esaraci/paxoscore/sid"
)

// Storage is the per-uid durable store an Acceptor reads and writes.
// Every acceptor owns exactly one uid's slots exclusively (spec §5);
// implementations need not synchronize across uids beyond whatever
// their backend already does.
type Storage[V any] interface {
	// GetLastGrantedSuggestionId returns the highest SID uid has
	// promised, and false if uid has never granted permission.
	GetLastGrantedSuggestionId(ctx context.Context, uid string) (sid.SID, bool, error)

	// StoreLastGrantedSuggestionId persists s as uid's new lastGranted.
	// Callers must never call this with a lower SID than the current
	// value (spec invariant I1); implementations may choose to detect
	// and panic on such a call per spec §7's "safety violation" policy
	// but are not required to.
	StoreLastGrantedSuggestionId(ctx context.Context, uid string, s sid.SID) error

	// GetLastAcceptedData returns the (sid, value) uid most recently
	// accepted, and false if uid has never accepted anything.
	GetLastAcceptedData(ctx context.Context, uid string) (message.LastAccepted[V], bool, error)

	// StoreLastAcceptedData persists data as uid's new lastAccepted.
	StoreLastAcceptedData(ctx context.Context, uid string, data message.LastAccepted[V]) error

	// Reset clears uid's stored state. Not part of the Paxos protocol
	// surface; exists for test harnesses (spec's debug-route
	// analogue, see SPEC_FULL.md's Seeker/debug-endpoint supplement).
	Reset(ctx context.Context, uid string) error
}
