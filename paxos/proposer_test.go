package paxos

import (
	"context"
	"testing"
	"time"

	"github.com/esaraci/paxoscore/message"
	"github.com/esaraci/paxoscore/retry"
	"github.com/esaraci/paxoscore/sid"
	"github.com/esaraci/paxoscore/transport/inmemory"
)

const testTakeCutoff = 30 * time.Millisecond

func getFirstValueFixed(value string) func(string) string {
	return func(string) string { return value }
}

// waitForMatch drains ch until a message satisfying pred arrives or
// the deadline passes; intermediate non-matching messages (e.g. an
// earlier, not-yet-final round's PermitRequest) are discarded.
func waitForMatch(t *testing.T, ch <-chan message.Message[string], pred func(message.Message[string]) bool) message.Message[string] {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-ch:
			if pred(m) {
				return m
			}
		case <-deadline:
			t.Fatal("timed out waiting for a matching message")
			return message.Message[string]{}
		}
	}
}

func newTestProposer(t *testing.T, majority int, getFirstValue func(string) string) (*Proposer[string], *inmemory.Transport[string], <-chan message.Message[string]) {
	t.Helper()
	tr := inmemory.New[string]()
	_ = tr.Register("p")
	_ = tr.Register("observer")
	observerInbox, _ := tr.ReceiveMessage("observer")

	p := NewProposer[string]("p", majority, testTakeCutoff, getFirstValue, tr, retry.Noop{})
	inbound, err := tr.ReceiveMessage("p")
	if err != nil {
		t.Fatalf("ReceiveMessage(p): %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go p.Run(ctx, inbound)

	return p, tr, observerInbox
}

func isPermitRequest(m message.Message[string]) bool { return m.Case == message.CasePermitRequest }

func TestProposerBroadcastsPermitRequestOnTrigger(t *testing.T) {
	p, _, observerInbox := newTestProposer(t, 1, getFirstValueFixed("v0"))
	p.SendFirstPermissionRequest()

	got := waitForMatch(t, observerInbox, isPermitRequest)
	payload, err := message.ExtractPermitRequest[string](got)
	if err != nil {
		t.Fatalf("ExtractPermitRequest: %v", err)
	}
	want := sid.Zero("p")
	if !payload.SID.Equal(want) {
		t.Fatalf("first round sid = %v, want %v", payload.SID, want)
	}
}

func TestProposerProposesOwnValueWhenNoMajorityPriorAccepted(t *testing.T) {
	p, tr, observerInbox := newTestProposer(t, 3, getFirstValueFixed("own-value"))
	p.SendFirstPermissionRequest()

	first := waitForMatch(t, observerInbox, isPermitRequest)
	round, _ := message.ExtractPermitRequest[string](first)
	s := round.SID

	ctx := context.Background()
	_ = tr.SendMessage(ctx, "p", message.NewPermitGranted[string](s, nil))
	_ = tr.SendMessage(ctx, "p", message.NewPermitGranted[string](s, &message.LastAccepted[string]{SID: sid.SID{Integer: 1, ID: "other"}, Value: "stale"}))
	_ = tr.SendMessage(ctx, "p", message.NewPermitGranted[string](s, nil))

	suggestion := waitForMatch(t, observerInbox, func(m message.Message[string]) bool { return m.Case == message.CaseSuggestion })
	sg, err := message.ExtractSuggestion[string](suggestion)
	if err != nil || sg.Value != "own-value" {
		t.Fatalf("ExtractSuggestion = %+v, %v, want own-value (nonEmpty 1 < majority 3)", sg, err)
	}
}

func TestProposerProposesHighestAcceptedValueWhenMajorityPriorAccepted(t *testing.T) {
	p, tr, observerInbox := newTestProposer(t, 3, getFirstValueFixed("own-value"))
	p.SendFirstPermissionRequest()

	first := waitForMatch(t, observerInbox, isPermitRequest)
	round, _ := message.ExtractPermitRequest[string](first)
	s := round.SID

	ctx := context.Background()
	_ = tr.SendMessage(ctx, "p", message.NewPermitGranted[string](s, &message.LastAccepted[string]{SID: sid.SID{Integer: 1, ID: "a"}, Value: "v1"}))
	_ = tr.SendMessage(ctx, "p", message.NewPermitGranted[string](s, &message.LastAccepted[string]{SID: sid.SID{Integer: 3, ID: "b"}, Value: "v3-highest"}))
	_ = tr.SendMessage(ctx, "p", message.NewPermitGranted[string](s, &message.LastAccepted[string]{SID: sid.SID{Integer: 2, ID: "c"}, Value: "v2"}))

	suggestion := waitForMatch(t, observerInbox, func(m message.Message[string]) bool { return m.Case == message.CaseSuggestion })
	sg, err := message.ExtractSuggestion[string](suggestion)
	if err != nil || sg.Value != "v3-highest" {
		t.Fatalf("ExtractSuggestion = %+v, %v, want v3-highest (majority prior accepted)", sg, err)
	}
}

func TestProposerUnderQuorumAdvancesSIDWithOwnID(t *testing.T) {
	p, tr, observerInbox := newTestProposer(t, 2, getFirstValueFixed("v"))
	p.SendFirstPermissionRequest()

	first := waitForMatch(t, observerInbox, isPermitRequest)
	round, _ := message.ExtractPermitRequest[string](first)
	s := round.SID

	ctx := context.Background()
	_ = tr.SendMessage(ctx, "p", message.NewPermitGranted[string](s, nil)) // 1 of 2: under quorum

	next := waitForMatch(t, observerInbox, func(m message.Message[string]) bool {
		if m.Case != message.CasePermitRequest {
			return false
		}
		payload, _ := message.ExtractPermitRequest[string](m)
		return payload.SID.GreaterThan(s)
	})
	payload, _ := message.ExtractPermitRequest[string](next)
	if payload.SID.ID != "p" {
		t.Fatalf("retry sid = %v, want ID preserved as proposer's own uid \"p\"", payload.SID)
	}
	if payload.SID.Integer != s.Integer+1 {
		t.Fatalf("retry sid.Integer = %d, want %d", payload.SID.Integer, s.Integer+1)
	}
}

func TestProposerNackStormAdvancesSIDWithForeignID(t *testing.T) {
	p, tr, observerInbox := newTestProposer(t, 2, getFirstValueFixed("v"))
	p.SendFirstPermissionRequest()

	first := waitForMatch(t, observerInbox, isPermitRequest)
	round, _ := message.ExtractPermitRequest[string](first)
	s := round.SID

	// Make the foreign candidate's Integer comfortably larger than the
	// round's own sid so the outcome is deterministic regardless of
	// which of the PermitGranted/Nack window closers fires first.
	foreign := sid.SID{Integer: s.Integer + 5, ID: "other-node"}

	ctx := context.Background()
	_ = tr.SendMessage(ctx, "p", message.NewNack[string](s, sid.SID{Integer: s.Integer, ID: "voter-a"}))
	_ = tr.SendMessage(ctx, "p", message.NewNack[string](s, foreign))

	next := waitForMatch(t, observerInbox, func(m message.Message[string]) bool {
		if m.Case != message.CasePermitRequest {
			return false
		}
		payload, _ := message.ExtractPermitRequest[string](m)
		return payload.SID.ID == "other-node"
	})
	payload, _ := message.ExtractPermitRequest[string](next)
	if payload.SID.Integer != foreign.Integer+1 {
		t.Fatalf("retry sid.Integer = %d, want %d", payload.SID.Integer, foreign.Integer+1)
	}
}

func TestProposerStopsAfterSuccess(t *testing.T) {
	p, tr, observerInbox := newTestProposer(t, 1, getFirstValueFixed("v"))
	p.SendFirstPermissionRequest()
	waitForMatch(t, observerInbox, isPermitRequest)

	ctx := context.Background()
	_ = tr.SendMessage(ctx, "p", message.NewSuccess[string]("decided"))
	time.Sleep(50 * time.Millisecond) // let receiveSuccess land

	p.SendFirstPermissionRequest()
	select {
	case m := <-observerInbox:
		t.Fatalf("unexpected message after Success: %+v", m)
	case <-time.After(150 * time.Millisecond):
	}
}
