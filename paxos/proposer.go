package paxos

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/esaraci/paxoscore/message"
	"github.com/esaraci/paxoscore/retry"
	"github.com/esaraci/paxoscore/sid"
	"github.com/esaraci/paxoscore/transport"
)

// Proposer implements the suggester role (spec §4.1): batches
// PermitGranted responses per round under a takeCutoff window,
// applies the highest-accepted-value rule, and advances its SID
// monotonically in reaction to under-quorum rounds and NACK storms.
//
// Grounded on the teacher's SendPrepare/countAgreements/SendAccept/
// countApprovals quartet in paxos/proposer.go: the teacher collects a
// fixed-size response buffer per HTTP fan-out and counts "promise" vs
// "retry" strings; this port replaces the buffer-of-size-N with a
// time-bounded group (the spec's windowed batch-collector, since
// acceptors may never respond at all) and replaces the teacher's
// `incrementedSeq := highest.Seq + 1` ad hoc retry with the spec's
// explicit monotone SID gate.
type Proposer[V any] struct {
	uid           string
	majority      int
	takeCutoff    time.Duration
	getFirstValue func(uid string) V
	transport     transport.Transport[V]
	coordinator   retry.Coordinator

	triggerCh chan struct{}

	mu           sync.Mutex
	nextSID      sid.SID
	haveNextSID  bool
	gateLast     sid.SID
	haveGateLast bool
	success      bool

	windowMu sync.Mutex
	pgWindows  map[string]*permitGrantedWindow[V]
	nackWindows map[string]*nackWindow
}

type permitGrantedWindow[V any] struct {
	items []message.PermitGrantedPayload[V]
}

type nackWindow struct {
	items []message.NackPayload
}

// NewProposer builds a Proposer for uid. getFirstValue supplies a
// free value when no acceptor reports a prior accepted value
// (spec's getFirstSuggestionValue).
func NewProposer[V any](uid string, majority int, takeCutoff time.Duration, getFirstValue func(string) V, tr transport.Transport[V], coordinator retry.Coordinator) *Proposer[V] {
	return &Proposer[V]{
		uid:           uid,
		majority:      majority,
		takeCutoff:    takeCutoff,
		getFirstValue: getFirstValue,
		transport:     tr,
		coordinator:   coordinator,
		triggerCh:     make(chan struct{}, 1),
		pgWindows:     make(map[string]*permitGrantedWindow[V]),
		nackWindows:   make(map[string]*nackWindow),
	}
}

// SendFirstPermissionRequest signals the try-permission trigger,
// kicking the first round. Idempotent; a no-op once Success has been
// observed.
func (p *Proposer[V]) SendFirstPermissionRequest() {
	p.mu.Lock()
	done := p.success
	p.mu.Unlock()
	if done {
		return
	}
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// TryPermissionTrigger exposes the internal control channel so a
// Node's leadership timer can feed it directly (spec §4.1).
func (p *Proposer[V]) TryPermissionTrigger() chan<- struct{} {
	return p.triggerCh
}

// Run wires the proposer's inbound message stream (PermitGranted,
// Nack, Success — the spec's suggesterMessageStream) and starts the
// try-permission pump. It returns when ctx is done.
func (p *Proposer[V]) Run(ctx context.Context, inbound <-chan message.Message[V]) {
	go p.consumeInbound(ctx, inbound)
	p.runTriggerPump(ctx)
}

func (p *Proposer[V]) consumeInbound(ctx context.Context, inbound <-chan message.Message[V]) {
	for {
		select {
		case m, ok := <-inbound:
			if !ok {
				return
			}
			switch m.Case {
			case message.CasePermitGranted:
				p.receivePermitGranted(ctx, m)
			case message.CaseNack:
				p.receiveNack(ctx, m)
			case message.CaseSuccess:
				p.receiveSuccess(m)
			}
		case <-ctx.Done():
			return
		}
	}
}

// runTriggerPump feeds trigger signals through the retry coordinator
// and, for each delayed emission, broadcasts a PermitRequest for the
// current round's SID.
func (p *Proposer[V]) runTriggerPump(ctx context.Context) {
	coordinated := p.coordinator.Coordinate(ctx, p.triggerCh)
	for {
		select {
		case _, ok := <-coordinated:
			if !ok {
				return
			}
			p.startRound(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Proposer[V]) startRound(ctx context.Context) {
	p.mu.Lock()
	if p.success {
		p.mu.Unlock()
		return
	}
	s := sid.Zero(p.uid)
	if p.haveNextSID {
		s = p.nextSID
	}
	p.mu.Unlock()

	log.Printf("[proposer %s] broadcasting PermitRequest for sid %s", p.uid, s)
	req := message.NewPermitRequest[V](p.uid, s)
	if err := p.transport.BroadcastMessage(ctx, req); err != nil {
		_ = p.transport.SendErrorStack(ctx, p.uid, err)
	}

	p.windowMu.Lock()
	key := s.String()
	if _, ok := p.pgWindows[key]; !ok {
		p.pgWindows[key] = &permitGrantedWindow[V]{}
		time.AfterFunc(p.takeCutoff, func() { p.closePermitGrantedWindow(ctx, s) })
	}
	if _, ok := p.nackWindows[key]; !ok {
		p.nackWindows[key] = &nackWindow{}
		time.AfterFunc(p.takeCutoff, func() { p.closeNackWindow(ctx, s) })
	}
	p.windowMu.Unlock()
}

func (p *Proposer[V]) receivePermitGranted(ctx context.Context, m message.Message[V]) {
	payload, err := message.ExtractPermitGranted[V](m)
	if err != nil {
		_ = p.transport.SendErrorStack(ctx, p.uid, err)
		return
	}
	key := payload.SID.String()

	p.windowMu.Lock()
	w, ok := p.pgWindows[key]
	if !ok {
		w = &permitGrantedWindow[V]{}
		p.pgWindows[key] = w
		s := payload.SID
		time.AfterFunc(p.takeCutoff, func() { p.closePermitGrantedWindow(ctx, s) })
	}
	w.items = append(w.items, payload)
	p.windowMu.Unlock()
}

func (p *Proposer[V]) receiveNack(ctx context.Context, m message.Message[V]) {
	payload, err := message.ExtractNack[V](m)
	if err != nil {
		_ = p.transport.SendErrorStack(ctx, p.uid, err)
		return
	}
	key := payload.CurrentSID.String()

	p.windowMu.Lock()
	w, ok := p.nackWindows[key]
	if !ok {
		w = &nackWindow{}
		p.nackWindows[key] = w
		s := payload.CurrentSID
		time.AfterFunc(p.takeCutoff, func() { p.closeNackWindow(ctx, s) })
	}
	w.items = append(w.items, payload)
	p.windowMu.Unlock()
}

func (p *Proposer[V]) receiveSuccess(m message.Message[V]) {
	value, err := message.ExtractSuccess[V](m)
	if err != nil {
		return
	}
	p.mu.Lock()
	p.success = true
	p.mu.Unlock()
	log.Printf("[proposer %s] observed Success{%v}; ceasing try-permission loop", p.uid, value)
}

// closePermitGrantedWindow implements spec §4.1 step 4-5 for the
// PermitGranted side: majority picks a value and broadcasts
// Suggestion; under-quorum feeds the round's own sid back into the
// monotone gate.
func (p *Proposer[V]) closePermitGrantedWindow(ctx context.Context, s sid.SID) {
	key := s.String()
	p.windowMu.Lock()
	w, ok := p.pgWindows[key]
	delete(p.pgWindows, key)
	p.windowMu.Unlock()
	if !ok {
		return
	}

	if len(w.items) < p.majority {
		log.Printf("[proposer %s] sid %s: only %d/%d PermitGranted, under quorum", p.uid, s, len(w.items), p.majority)
		p.advance(ctx, s)
		return
	}

	var highest *message.LastAccepted[V]
	nonEmpty := 0
	for _, item := range w.items {
		if item.LastAccepted == nil {
			continue
		}
		nonEmpty++
		if highest == nil || item.LastAccepted.SID.GreaterThan(highest.SID) {
			highest = item.LastAccepted
		}
	}

	var value V
	if nonEmpty >= p.majority && highest != nil {
		value = highest.Value
		log.Printf("[proposer %s] sid %s: adopting highest-accepted value from a prior round", p.uid, s)
	} else {
		value = p.getFirstValue(p.uid)
		log.Printf("[proposer %s] sid %s: no majority-carried prior value, proposing own value", p.uid, s)
	}

	suggestion := message.NewSuggestion[V](p.uid, s, value)
	if err := p.transport.BroadcastMessage(ctx, suggestion); err != nil {
		_ = p.transport.SendErrorStack(ctx, p.uid, err)
	}
}

// closeNackWindow implements spec §4.1 step 5's NACK-storm pathway:
// when a majority of acceptors NACK the same sid, extract the
// highest lastGrantedSID they reported and feed it into the gate.
func (p *Proposer[V]) closeNackWindow(ctx context.Context, s sid.SID) {
	key := s.String()
	p.windowMu.Lock()
	w, ok := p.nackWindows[key]
	delete(p.nackWindows, key)
	p.windowMu.Unlock()
	if !ok || len(w.items) < p.majority {
		return
	}

	highest := w.items[0].LastGrantedSID
	for _, item := range w.items[1:] {
		if item.LastGrantedSID.GreaterThan(highest) {
			highest = item.LastGrantedSID
		}
	}
	log.Printf("[proposer %s] sid %s: NACK storm, max lastGrantedSID %s", p.uid, s, highest)
	p.advance(ctx, highest)
}

// advance feeds candidate through the monotone SID gate (spec §9):
// only a candidate strictly higher than the last one that passed the
// gate is accepted; it becomes, incremented, the next round's SID,
// and a new try-permission signal is raised.
func (p *Proposer[V]) advance(ctx context.Context, candidate sid.SID) {
	p.mu.Lock()
	if p.success {
		p.mu.Unlock()
		return
	}
	if p.haveGateLast && !candidate.GreaterThan(p.gateLast) {
		p.mu.Unlock()
		return
	}
	p.gateLast = candidate
	p.haveGateLast = true
	p.nextSID = candidate.Increment()
	p.haveNextSID = true
	p.mu.Unlock()

	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}
