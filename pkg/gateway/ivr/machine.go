package ivr

import "fmt"

// State is where a phone call sits in its lifecycle. The webhook
// handlers only move a call through Transition, so every reachable
// path is in the table below.
type State string

const (
	// StateCollecting waits for caller input (PIN digits or speech).
	StateCollecting State = "collecting"
	// StateProcessing runs the caller's utterance through a turn.
	StateProcessing State = "processing"
	// StateResponding is playing the reply, with barge-in open.
	StateResponding State = "responding"
	// StateEnded is terminal: hangup, transfer, or exit phrase.
	StateEnded State = "ended"
)

// Event is a call-progress trigger.
type Event string

const (
	EventUtterance Event = "utterance" // caller spoke or keyed input
	EventSilence   Event = "silence"   // gather timed out with nothing
	EventReply     Event = "reply"     // turn produced spoken text
	EventTransfer  Event = "transfer"  // turn requested a hand-off
	EventExit      Event = "exit"      // caller said an exit phrase
	EventBargeIn   Event = "barge_in"  // caller interrupted the reply
	EventHangup    Event = "hangup"    // carrier ended the call
)

var transitions = map[State]map[Event]State{
	StateCollecting: {
		EventUtterance: StateProcessing,
		EventSilence:   StateEnded,
		EventExit:      StateEnded,
		EventHangup:    StateEnded,
	},
	StateProcessing: {
		EventReply:    StateResponding,
		EventTransfer: StateEnded,
		EventHangup:   StateEnded,
	},
	StateResponding: {
		EventBargeIn:   StateProcessing,
		EventUtterance: StateProcessing,
		EventSilence:   StateCollecting,
		EventExit:      StateEnded,
		EventHangup:    StateEnded,
	},
}

// Transition applies event to state. Unknown pairs are rejected so an
// out-of-order webhook cannot corrupt a call's lifecycle.
func Transition(state State, event Event) (State, error) {
	if next, ok := transitions[state][event]; ok {
		return next, nil
	}
	return state, fmt.Errorf("ivr: no transition from %s on %s", state, event)
}
