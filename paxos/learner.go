package paxos

import (
	"context"
	"log"

	"github.com/esaraci/paxoscore/message"
	"github.com/esaraci/paxoscore/transport"
)

// Learner implements the arbiter role (spec §4.3), generalized from
// the teacher's ReceiveLearn in paxos/learner.go: there, a single
// sqlite row per turn_id made "already learnt" a lookup; here, since
// there is no durable store backing the learner and Acceptance
// carries no sender id, the quorum is counted in memory by grouping
// on (sid, stringify(value)) until a majority of messages agree.
type Learner[V any] struct {
	uid       string
	majority  int
	stringify func(V) string
	declare   func(V) error
	transport transport.Transport[V]

	counts   map[string]int
	declared bool
}

// NewLearner builds a Learner. stringify must satisfy a == b =>
// stringify(a) == stringify(b) (spec §4.3); declare is invoked at
// most once, the first time a group reaches majority.
func NewLearner[V any](uid string, majority int, stringify func(V) string, declare func(V) error, tr transport.Transport[V]) *Learner[V] {
	return &Learner[V]{
		uid:       uid,
		majority:  majority,
		stringify: stringify,
		declare:   declare,
		transport: tr,
		counts:    make(map[string]int),
	}
}

// Run consumes inbound Acceptance messages and declares the final
// value the first time a (sid, value) group reaches majority.
func (l *Learner[V]) Run(ctx context.Context, inbound <-chan message.Message[V]) {
	for {
		select {
		case m, ok := <-inbound:
			if !ok {
				return
			}
			if m.Case == message.CaseAcceptance {
				l.receiveAcceptance(ctx, m)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (l *Learner[V]) receiveAcceptance(ctx context.Context, m message.Message[V]) {
	if l.declared {
		return
	}

	payload, err := message.ExtractAcceptance[V](m)
	if err != nil {
		log.Printf("[learner %s] dropping malformed Acceptance: %v", l.uid, err)
		_ = l.transport.SendErrorStack(ctx, l.uid, err)
		return
	}

	key := payload.SID.String() + "|" + l.stringify(payload.Value)
	l.counts[key]++

	if l.counts[key] < l.majority {
		return
	}

	l.declared = true
	log.Printf("[learner %s] majority reached for sid %s; declaring final value", l.uid, payload.SID)

	if err := l.declare(payload.Value); err != nil {
		// per spec §7: declareFinalValue failure is logged, not retried;
		// idempotence of the external API is its own responsibility.
		log.Printf("[learner %s] declareFinalValue failed: %v", l.uid, err)
	}

	success := message.NewSuccess[V](payload.Value)
	if err := l.transport.BroadcastMessage(ctx, success); err != nil {
		_ = l.transport.SendErrorStack(ctx, l.uid, err)
	}
}
