package paxos

import (
	"context"
	"log"

	"github.com/esaraci/paxoscore/message"
	"github.com/esaraci/paxoscore/storage"
	"github.com/esaraci/paxoscore/transport"
)

// Acceptor implements the voter role (spec §4.2), generalized from
// the teacher's ReceivePrepare/ReceiveAccept pair in
// paxos/acceptor.go: same persist-before-respond ordering and the
// same strict-greater-than-for-permit, greater-or-equal-for-suggestion
// split (there renamed prepare/accept), now driven off a Message[V]
// stream instead of one HTTP route per request type.
type Acceptor[V any] struct {
	uid       string
	store     storage.Storage[V]
	transport transport.Transport[V]
}

// NewAcceptor builds an Acceptor for uid, backed by store and
// transport.
func NewAcceptor[V any](uid string, store storage.Storage[V], tr transport.Transport[V]) *Acceptor[V] {
	return &Acceptor[V]{uid: uid, store: store, transport: tr}
}

// Run consumes inbound messages and dispatches PermitRequest and
// Suggestion cases to their handlers, one at a time, preserving
// receipt order per spec §5 ("every handler for one uid runs
// non-overlapping"). It returns when inbound is closed or ctx is
// done.
func (a *Acceptor[V]) Run(ctx context.Context, inbound <-chan message.Message[V]) {
	for {
		select {
		case m, ok := <-inbound:
			if !ok {
				return
			}
			switch m.Case {
			case message.CasePermitRequest:
				a.receivePermitRequest(ctx, m)
			case message.CaseSuggestion:
				a.receiveSuggestion(ctx, m)
			}
		case <-ctx.Done():
			return
		}
	}
}

// receivePermitRequest implements the spec §4.2 PermitRequest rule:
// if absent or sid > lastGranted, persist lastGranted <- sid and
// reply PermitGranted{sid, lastAccepted}; else reply Nack.
func (a *Acceptor[V]) receivePermitRequest(ctx context.Context, m message.Message[V]) {
	payload, err := message.ExtractPermitRequest[V](m)
	if err != nil {
		log.Printf("[acceptor %s] dropping malformed PermitRequest: %v", a.uid, err)
		_ = a.transport.SendErrorStack(ctx, a.uid, err)
		return
	}

	lastGranted, hasGranted, err := a.store.GetLastGrantedSuggestionId(ctx, a.uid)
	if err != nil {
		log.Printf("[acceptor %s] could not read lastGranted: %v", a.uid, err)
		_ = a.transport.SendErrorStack(ctx, a.uid, err)
		return
	}

	if hasGranted && !payload.SID.GreaterThan(lastGranted) {
		log.Printf("[acceptor %s] sid %s not strictly higher than lastGranted %s; sending Nack", a.uid, payload.SID, lastGranted)
		reply := message.NewNack[V](payload.SID, lastGranted)
		if err := a.transport.SendMessage(ctx, payload.From, reply); err != nil {
			_ = a.transport.SendErrorStack(ctx, a.uid, err)
		}
		return
	}

	if err := a.store.StoreLastGrantedSuggestionId(ctx, a.uid, payload.SID); err != nil {
		log.Printf("[acceptor %s] could not store lastGranted %s: %v", a.uid, payload.SID, err)
		_ = a.transport.SendErrorStack(ctx, a.uid, err)
		return
	}

	lastAccepted, hasAccepted, err := a.store.GetLastAcceptedData(ctx, a.uid)
	if err != nil {
		log.Printf("[acceptor %s] could not read lastAccepted: %v", a.uid, err)
		_ = a.transport.SendErrorStack(ctx, a.uid, err)
		return
	}
	var lastAcceptedPtr *message.LastAccepted[V]
	if hasAccepted {
		lastAcceptedPtr = &lastAccepted
	}

	log.Printf("[acceptor %s] granting permission for sid %s", a.uid, payload.SID)
	reply := message.NewPermitGranted[V](payload.SID, lastAcceptedPtr)
	if err := a.transport.SendMessage(ctx, payload.From, reply); err != nil {
		_ = a.transport.SendErrorStack(ctx, a.uid, err)
	}
}

// receiveSuggestion implements the spec §4.2 Suggestion rule: if
// absent or sid >= lastGranted, persist lastAccepted <- (sid, value)
// and broadcast Acceptance; else reply Nack.
func (a *Acceptor[V]) receiveSuggestion(ctx context.Context, m message.Message[V]) {
	payload, err := message.ExtractSuggestion[V](m)
	if err != nil {
		log.Printf("[acceptor %s] dropping malformed Suggestion: %v", a.uid, err)
		_ = a.transport.SendErrorStack(ctx, a.uid, err)
		return
	}

	lastGranted, hasGranted, err := a.store.GetLastGrantedSuggestionId(ctx, a.uid)
	if err != nil {
		log.Printf("[acceptor %s] could not read lastGranted: %v", a.uid, err)
		_ = a.transport.SendErrorStack(ctx, a.uid, err)
		return
	}

	if hasGranted && !payload.SID.GreaterOrEqual(lastGranted) {
		log.Printf("[acceptor %s] sid %s lower than lastGranted %s; sending Nack", a.uid, payload.SID, lastGranted)
		reply := message.NewNack[V](payload.SID, lastGranted)
		if err := a.transport.SendMessage(ctx, payload.From, reply); err != nil {
			_ = a.transport.SendErrorStack(ctx, a.uid, err)
		}
		return
	}

	if err := a.store.StoreLastAcceptedData(ctx, a.uid, message.LastAccepted[V]{SID: payload.SID, Value: payload.Value}); err != nil {
		log.Printf("[acceptor %s] could not store lastAccepted for sid %s: %v", a.uid, payload.SID, err)
		_ = a.transport.SendErrorStack(ctx, a.uid, err)
		return
	}

	log.Printf("[acceptor %s] accepted sid %s", a.uid, payload.SID)
	acceptance := message.NewAcceptance[V](payload.SID, payload.Value)
	if err := a.transport.BroadcastMessage(ctx, acceptance); err != nil {
		_ = a.transport.SendErrorStack(ctx, a.uid, err)
	}
}
