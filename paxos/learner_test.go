package paxos

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/esaraci/paxoscore/message"
	"github.com/esaraci/paxoscore/sid"
	"github.com/esaraci/paxoscore/transport/inmemory"
)

func stringifyString(v string) string { return v }

func TestLearnerDeclaresOnceMajorityReached(t *testing.T) {
	tr := inmemory.New[string]()
	_ = tr.Register("learner")
	_ = tr.Register("observer")
	observerInbox, _ := tr.ReceiveMessage("observer")
	inbound, _ := tr.ReceiveMessage("learner")

	var declared []string
	declare := func(v string) error {
		declared = append(declared, v)
		return nil
	}

	l := NewLearner[string]("learner", 2, stringifyString, declare, tr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx, inbound)

	s := sid.SID{Integer: 1, ID: "p"}
	_ = tr.SendMessage(ctx, "learner", message.NewAcceptance[string](s, "v1"))
	_ = tr.SendMessage(ctx, "learner", message.NewAcceptance[string](s, "v1"))

	got := recvWithin(t, observerInbox)
	if got.Case != message.CaseSuccess {
		t.Fatalf("got case %v, want Success", got.Case)
	}
	value, err := message.ExtractSuccess[string](got)
	if err != nil || value != "v1" {
		t.Fatalf("ExtractSuccess = %q, %v, want v1", value, err)
	}
	if len(declared) != 1 || declared[0] != "v1" {
		t.Fatalf("declare called with %v, want exactly one call with v1", declared)
	}
}

func TestLearnerIgnoresFurtherAcceptanceAfterDeclaring(t *testing.T) {
	tr := inmemory.New[string]()
	_ = tr.Register("learner")
	_ = tr.Register("observer")
	observerInbox, _ := tr.ReceiveMessage("observer")
	inbound, _ := tr.ReceiveMessage("learner")

	declareCount := 0
	declare := func(v string) error {
		declareCount++
		return nil
	}

	l := NewLearner[string]("learner", 2, stringifyString, declare, tr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx, inbound)

	s := sid.SID{Integer: 1, ID: "p"}
	_ = tr.SendMessage(ctx, "learner", message.NewAcceptance[string](s, "v1"))
	_ = tr.SendMessage(ctx, "learner", message.NewAcceptance[string](s, "v1"))
	recvWithin(t, observerInbox)

	// Further Acceptances (even for a different value) must not
	// trigger a second declare or a second Success broadcast.
	_ = tr.SendMessage(ctx, "learner", message.NewAcceptance[string](s, "v2"))
	_ = tr.SendMessage(ctx, "learner", message.NewAcceptance[string](s, "v2"))

	select {
	case got := <-observerInbox:
		t.Fatalf("unexpected second broadcast: %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
	if declareCount != 1 {
		t.Fatalf("declare called %d times, want exactly 1", declareCount)
	}
}

func TestLearnerKeepsSeparateCountsPerSIDAndValue(t *testing.T) {
	tr := inmemory.New[string]()
	_ = tr.Register("learner")
	_ = tr.Register("observer")
	observerInbox, _ := tr.ReceiveMessage("observer")
	inbound, _ := tr.ReceiveMessage("learner")

	l := NewLearner[string]("learner", 3, stringifyString, func(string) error { return nil }, tr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx, inbound)

	s := sid.SID{Integer: 1, ID: "p"}
	// Two votes for v1, one for v2: neither reaches majority 3.
	_ = tr.SendMessage(ctx, "learner", message.NewAcceptance[string](s, "v1"))
	_ = tr.SendMessage(ctx, "learner", message.NewAcceptance[string](s, "v1"))
	_ = tr.SendMessage(ctx, "learner", message.NewAcceptance[string](s, "v2"))

	select {
	case got := <-observerInbox:
		t.Fatalf("unexpected premature broadcast: %+v", got)
	case <-time.After(100 * time.Millisecond):
	}

	// A third v1 vote pushes it over majority.
	_ = tr.SendMessage(ctx, "learner", message.NewAcceptance[string](s, "v1"))
	got := recvWithin(t, observerInbox)
	value, err := message.ExtractSuccess[string](got)
	if err != nil || value != "v1" {
		t.Fatalf("ExtractSuccess = %q, %v, want v1", value, err)
	}
}

func TestLearnerSurvivesDeclareError(t *testing.T) {
	tr := inmemory.New[string]()
	_ = tr.Register("learner")
	_ = tr.Register("observer")
	observerInbox, _ := tr.ReceiveMessage("observer")
	inbound, _ := tr.ReceiveMessage("learner")

	declare := func(v string) error { return fmt.Errorf("downstream unavailable") }

	l := NewLearner[string]("learner", 1, stringifyString, declare, tr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx, inbound)

	s := sid.SID{Integer: 1, ID: "p"}
	_ = tr.SendMessage(ctx, "learner", message.NewAcceptance[string](s, "v1"))

	// A failed declare still broadcasts Success per spec §7.
	got := recvWithin(t, observerInbox)
	if got.Case != message.CaseSuccess {
		t.Fatalf("got case %v, want Success even though declare failed", got.Case)
	}
}
