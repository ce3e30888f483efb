// Package message implements the tagged union of messages exchanged
// between Paxos participants.
//
// This generalizes the teacher's single message.GenericMessage{TurnID,
// Type, Body} envelope (one "Type" string, one Body shape that held
// fields for every case) into one explicit Case per spec, each with
// its own payload shape, since this port's Message carries a generic
// value V rather than the teacher's fixed string.
package message

import (
	"fmt"

	"github.com/esaraci/paxoscore/sid"
)

// Case tags the payload a Message carries.
type Case string

const (
	CasePermitRequest Case = "PermitRequest"
	CasePermitGranted Case = "PermitGranted"
	CaseSuggestion    Case = "Suggestion"
	CaseAcceptance    Case = "Acceptance"
	CaseSuccess       Case = "Success"
	CaseNack          Case = "Nack"
)

// LastAccepted records the proposal an acceptor most recently
// accepted: the (sid, value) pair.
type LastAccepted[V any] struct {
	SID   sid.SID
	Value V
}

// Message is the tagged union over the six Paxos message cases. Only
// the fields relevant to Case are meaningful; the rest are zero.
// Keeping one struct (rather than six types behind an interface) is
// carried from the teacher's GenericMessage shape and keeps wire
// encoding (json) trivial.
type Message[V any] struct {
	Case Case

	// From is the originating uid, used by PermitRequest and
	// Suggestion so acceptors know where to reply.
	From string

	// SID is the proposal number, used by PermitRequest,
	// PermitGranted, Suggestion, Acceptance.
	SID sid.SID

	// LastAccepted is set on PermitGranted when the responding
	// acceptor had previously accepted something; nil otherwise.
	LastAccepted *LastAccepted[V]

	// Value carries the proposed/accepted/chosen value on
	// Suggestion, Acceptance, Success.
	Value V

	// CurrentSID/LastGrantedSID are set on Nack: the SID that was
	// rejected, and the SID the acceptor had already promised.
	CurrentSID     sid.SID
	LastGrantedSID sid.SID
}

// NewPermitRequest builds a PermitRequest{senderId, sid} message.
func NewPermitRequest[V any](from string, s sid.SID) Message[V] {
	return Message[V]{Case: CasePermitRequest, From: from, SID: s}
}

// NewPermitGranted builds a PermitGranted{sid, lastAccepted?} message.
func NewPermitGranted[V any](s sid.SID, last *LastAccepted[V]) Message[V] {
	return Message[V]{Case: CasePermitGranted, SID: s, LastAccepted: last}
}

// NewSuggestion builds a Suggestion{senderId, sid, value} message.
func NewSuggestion[V any](from string, s sid.SID, value V) Message[V] {
	return Message[V]{Case: CaseSuggestion, From: from, SID: s, Value: value}
}

// NewAcceptance builds an Acceptance{sid, value} message.
func NewAcceptance[V any](s sid.SID, value V) Message[V] {
	return Message[V]{Case: CaseAcceptance, SID: s, Value: value}
}

// NewSuccess builds a Success{value} message.
func NewSuccess[V any](value V) Message[V] {
	return Message[V]{Case: CaseSuccess, Value: value}
}

// NewNack builds a Nack{currentSID, lastGrantedSID} message.
func NewNack[V any](currentSID, lastGrantedSID sid.SID) Message[V] {
	return Message[V]{Case: CaseNack, CurrentSID: currentSID, LastGrantedSID: lastGrantedSID}
}

// ErrWrongCase is returned by the Extract* helpers when the message's
// Case does not match the payload being asked for.
type ErrWrongCase struct {
	Want, Got Case
}

func (e *ErrWrongCase) Error() string {
	return fmt.Sprintf("message: expected case %s, got %s", e.Want, e.Got)
}

// PermitGrantedPayload is the shape carried by a PermitGranted message.
type PermitGrantedPayload[V any] struct {
	SID          sid.SID
	LastAccepted *LastAccepted[V]
}

// ExtractPermitGranted returns the message's payload iff its Case is
// PermitGranted.
func ExtractPermitGranted[V any](m Message[V]) (PermitGrantedPayload[V], error) {
	if m.Case != CasePermitGranted {
		return PermitGrantedPayload[V]{}, &ErrWrongCase{Want: CasePermitGranted, Got: m.Case}
	}
	return PermitGrantedPayload[V]{SID: m.SID, LastAccepted: m.LastAccepted}, nil
}

// NackPayload is the shape carried by a Nack message.
type NackPayload struct {
	CurrentSID     sid.SID
	LastGrantedSID sid.SID
}

// ExtractNack returns the message's payload iff its Case is Nack.
func ExtractNack[V any](m Message[V]) (NackPayload, error) {
	if m.Case != CaseNack {
		return NackPayload{}, &ErrWrongCase{Want: CaseNack, Got: m.Case}
	}
	return NackPayload{CurrentSID: m.CurrentSID, LastGrantedSID: m.LastGrantedSID}, nil
}

// SuggestionPayload is the shape carried by a Suggestion message.
type SuggestionPayload[V any] struct {
	From  string
	SID   sid.SID
	Value V
}

// ExtractSuggestion returns the message's payload iff its Case is
// Suggestion.
func ExtractSuggestion[V any](m Message[V]) (SuggestionPayload[V], error) {
	if m.Case != CaseSuggestion {
		return SuggestionPayload[V]{}, &ErrWrongCase{Want: CaseSuggestion, Got: m.Case}
	}
	return SuggestionPayload[V]{From: m.From, SID: m.SID, Value: m.Value}, nil
}

// AcceptancePayload is the shape carried by an Acceptance message.
type AcceptancePayload[V any] struct {
	SID   sid.SID
	Value V
}

// ExtractAcceptance returns the message's payload iff its Case is
// Acceptance.
func ExtractAcceptance[V any](m Message[V]) (AcceptancePayload[V], error) {
	if m.Case != CaseAcceptance {
		return AcceptancePayload[V]{}, &ErrWrongCase{Want: CaseAcceptance, Got: m.Case}
	}
	return AcceptancePayload[V]{SID: m.SID, Value: m.Value}, nil
}

// ExtractSuccess returns the message's value iff its Case is Success.
func ExtractSuccess[V any](m Message[V]) (V, error) {
	var zero V
	if m.Case != CaseSuccess {
		return zero, &ErrWrongCase{Want: CaseSuccess, Got: m.Case}
	}
	return m.Value, nil
}

// PermitRequestPayload is the shape carried by a PermitRequest message.
type PermitRequestPayload struct {
	From string
	SID  sid.SID
}

// ExtractPermitRequest returns the message's payload iff its Case is
// PermitRequest. Generic over V only so callers don't need a second
// envelope type; PermitRequest never carries a value.
func ExtractPermitRequest[V any](m Message[V]) (PermitRequestPayload, error) {
	if m.Case != CasePermitRequest {
		return PermitRequestPayload{}, &ErrWrongCase{Want: CasePermitRequest, Got: m.Case}
	}
	return PermitRequestPayload{From: m.From, SID: m.SID}, nil
}
