package paxos

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/esaraci/paxoscore/message"
	"github.com/esaraci/paxoscore/retry"
	"github.com/esaraci/paxoscore/storage"
	"github.com/esaraci/paxoscore/transport"
)

const inboundBuffer = 256

// Node aggregates a Proposer, Acceptor, and Learner under one uid
// (spec §4.5), grounded on the teacher's main.go wiring (one set of
// HTTP routes per role, sharing one sqlite connection and one NODES
// list) and on paxos/seeker.go's seek4ever periodic nudge, kept here
// as Nudge rather than a cross-instance gossip loop (see the repo's
// design notes for why the gossip half was dropped).
type Node[V any] struct {
	uid       string
	transport transport.Transport[V]
	store     storage.Storage[V]

	proposer *Proposer[V]
	acceptor *Acceptor[V]
	learner  *Learner[V]

	delayBeforeClaimingLeadership time.Duration

	cancel      context.CancelFunc
	disposeOnce sync.Once
	resetTimer  chan struct{}
}

// NewNode builds a Node. getFirstValue and stringify/declare plug in
// the proposer-facing and learner-facing external API the spec
// leaves to the implementer (§6).
func NewNode[V any](
	cfg Config,
	tr transport.Transport[V],
	store storage.Storage[V],
	coordinator retry.Coordinator,
	getFirstValue func(uid string) V,
	stringify func(V) string,
	declare func(V) error,
) *Node[V] {
	majority := CalculateMajority(cfg.QuorumSize)
	return &Node[V]{
		uid:                           cfg.UID,
		transport:                     tr,
		store:                         store,
		proposer:                      NewProposer[V](cfg.UID, majority, cfg.TakeCutoff, getFirstValue, tr, coordinator),
		acceptor:                      NewAcceptor[V](cfg.UID, store, tr),
		learner:                       NewLearner[V](cfg.UID, majority, stringify, declare, tr),
		delayBeforeClaimingLeadership: cfg.DelayBeforeClaimingLeadership,
		resetTimer:                    make(chan struct{}, 1),
	}
}

// SetupBindings wires every sub-role to the transport's inbound
// stream for uid and starts the leadership self-election timer. It
// may be called only once per Node.
func (n *Node[V]) SetupBindings(ctx context.Context) error {
	if err := n.transport.Register(n.uid); err != nil {
		return fmt.Errorf("paxos: register %s: %w", n.uid, err)
	}
	inbound, err := n.transport.ReceiveMessage(n.uid)
	if err != nil {
		return fmt.Errorf("paxos: subscribe %s: %w", n.uid, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	acceptorCh := make(chan message.Message[V], inboundBuffer)
	proposerCh := make(chan message.Message[V], inboundBuffer)
	learnerCh := make(chan message.Message[V], inboundBuffer)

	go n.dispatch(runCtx, inbound, acceptorCh, proposerCh, learnerCh)
	go n.acceptor.Run(runCtx, acceptorCh)
	go n.proposer.Run(runCtx, proposerCh)
	go n.learner.Run(runCtx, learnerCh)
	go n.runLeadershipTimer(runCtx)

	return nil
}

// dispatch routes each inbound message to the sub-role it addresses.
// Only acceptor- and learner-directed messages reset the leadership
// silence timer (spec §4.5: "no inbound arbiter- or voter-directed
// message"); proposer-directed traffic does not, since a flurry of
// PermitGranted/Nack/Success replies to our own round is not evidence
// that the cluster has an active leader we should defer to.
func (n *Node[V]) dispatch(ctx context.Context, inbound <-chan message.Message[V], acceptorCh, proposerCh, learnerCh chan message.Message[V]) {
	defer close(acceptorCh)
	defer close(proposerCh)
	defer close(learnerCh)
	for {
		select {
		case m, ok := <-inbound:
			if !ok {
				return
			}
			switch m.Case {
			case message.CasePermitRequest, message.CaseSuggestion:
				n.signalReset()
				send(ctx, acceptorCh, m)
			case message.CaseAcceptance:
				n.signalReset()
				send(ctx, learnerCh, m)
			case message.CasePermitGranted, message.CaseNack, message.CaseSuccess:
				send(ctx, proposerCh, m)
			}
		case <-ctx.Done():
			return
		}
	}
}

func send[V any](ctx context.Context, ch chan message.Message[V], m message.Message[V]) {
	select {
	case ch <- m:
	case <-ctx.Done():
	}
}

func (n *Node[V]) signalReset() {
	select {
	case n.resetTimer <- struct{}{}:
	default:
	}
}

// runLeadershipTimer implements the self-election rule (spec §4.5):
// if delayBeforeClaimingLeadership elapses with no qualifying inbound
// message, fire the try-permission trigger once; the timer then
// rearms, so silence resuming later fires it again.
func (n *Node[V]) runLeadershipTimer(ctx context.Context) {
	timer := time.NewTimer(n.delayBeforeClaimingLeadership)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			log.Printf("[node %s] claiming leadership after %s of silence", n.uid, n.delayBeforeClaimingLeadership)
			n.proposer.SendFirstPermissionRequest()
			timer.Reset(n.delayBeforeClaimingLeadership)
		case <-n.resetTimer:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(n.delayBeforeClaimingLeadership)
		case <-ctx.Done():
			return
		}
	}
}

// Nudge triggers one proposer round immediately (the spec's
// explicit commenceDecisionProcess call), additive with the
// leadership timer per the repo's Open Question resolution: the
// silence timer still rearms afterward. Exposed for callers that
// want to kick off agreement without waiting out the leadership
// delay, and for periodic anti-entropy nudges.
func (n *Node[V]) Nudge() {
	n.proposer.SendFirstPermissionRequest()
	n.signalReset()
}

// Dispose tears down every subscription this Node started. Idempotent.
func (n *Node[V]) Dispose() {
	n.disposeOnce.Do(func() {
		if n.cancel != nil {
			n.cancel()
		}
	})
}
