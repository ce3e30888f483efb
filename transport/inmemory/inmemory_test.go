package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/esaraci/paxoscore/message"
	"github.com/esaraci/paxoscore/sid"
	"github.com/esaraci/paxoscore/transport"
)

func TestSendMessageUnknownParticipant(t *testing.T) {
	tr := New[string]()
	err := tr.SendMessage(context.Background(), "ghost", message.NewSuccess[string]("v"))
	if err == nil {
		t.Fatal("expected error sending to an unregistered participant")
	}
}

func TestSendAndReceive(t *testing.T) {
	tr := New[string]()
	if err := tr.Register("a"); err != nil {
		t.Fatalf("register: %v", err)
	}
	inbox, err := tr.ReceiveMessage("a")
	if err != nil {
		t.Fatalf("receive: %v", err)
	}

	msg := message.NewPermitRequest[string]("b", sid.SID{Integer: 1, ID: "b"})
	if err := tr.SendMessage(context.Background(), "a", msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case got := <-inbox:
		if got.Case != message.CasePermitRequest {
			t.Fatalf("got case %v, want PermitRequest", got.Case)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestBroadcastReachesEveryRegisteredParticipant(t *testing.T) {
	tr := New[string]()
	var inboxes []<-chan message.Message[string]
	for _, uid := range []string{"a", "b", "c"} {
		_ = tr.Register(uid)
		inbox, _ := tr.ReceiveMessage(uid)
		inboxes = append(inboxes, inbox)
	}

	if err := tr.BroadcastMessage(context.Background(), message.NewSuccess[string]("v")); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	for i, inbox := range inboxes {
		select {
		case got := <-inbox:
			if got.Case != message.CaseSuccess {
				t.Fatalf("participant %d: got case %v, want Success", i, got.Case)
			}
		case <-time.After(time.Second):
			t.Fatalf("participant %d: timed out waiting for broadcast", i)
		}
	}
}

func TestFaultsDropProbabilityOneDropsEverything(t *testing.T) {
	tr := NewWithFaults[string](Faults{DropProbability: 1})
	_ = tr.Register("a")
	inbox, _ := tr.ReceiveMessage("a")

	if err := tr.SendMessage(context.Background(), "a", message.NewSuccess[string]("v")); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case <-inbox:
		t.Fatal("expected the message to be dropped")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseIsIdempotentAndClosesInboxes(t *testing.T) {
	tr := New[string]()
	_ = tr.Register("a")
	inbox, _ := tr.ReceiveMessage("a")

	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	select {
	case _, ok := <-inbox:
		if ok {
			t.Fatal("expected inbox to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for inbox to close")
	}

	if err := tr.SendMessage(context.Background(), "a", message.NewSuccess[string]("v")); err != transport.ErrClosed {
		t.Fatalf("SendMessage after Close = %v, want %v", err, transport.ErrClosed)
	}
}
