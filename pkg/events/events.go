// Copyright 2025 Certen Protocol
//
// Package events implements the cross-cutting typed event bus. Events
// emitted within a block are ordered by emission and
// external indexers treat them as a totally ordered log, so the bus is a
// plain append-only slice rather than a map.

package events

import "fmt"

// Kind names an event type. Kept as an explicit, ordered enumeration rather
// than derived from a map, per the "Deterministic ordering"
// design note: HashMap (and Go's map) is forbidden on any path that
// influences state or the order external indexers observe.
type Kind int

const (
	KindUnknown Kind = iota
	KindPositionOpen
	KindPositionClose
	KindPositionWithdraw
	KindPositionExecution
	KindSwap
	KindSwapClaim
	KindCircuitBreakerCredit
	KindCircuitBreakerDebit
	KindValidatorDefinition
	KindValidatorStateChange
	KindDelegate
	KindUndelegate
	KindUndelegateClaim
	KindRateDataUpdate
	KindNullifierSpend
	KindRewardNote
	KindFrostCeremonyFinished
	KindFrostCeremonyFailed
	KindIbcConnectionOpenInit
	KindIbcConnectionOpenTry
	KindIbcConnectionOpenAck
	KindIbcConnectionOpenConfirm
	// kindCount must stay last: it is not a real event and exists only to
	// size Names.
	kindCount
)

// Names maps each Kind to its indexer-facing name. Every kind, the
// swap kinds included, has exactly one slot, so no two kinds can
// alias the same index.
var Names = [kindCount]string{
	KindUnknown:                  "unknown",
	KindPositionOpen:             "position_open",
	KindPositionClose:            "position_close",
	KindPositionWithdraw:         "position_withdraw",
	KindPositionExecution:        "position_execution",
	KindSwap:                     "swap",
	KindSwapClaim:                "swap_claim",
	KindCircuitBreakerCredit:     "circuit_breaker_credit",
	KindCircuitBreakerDebit:      "circuit_breaker_debit",
	KindValidatorDefinition:      "validator_definition",
	KindValidatorStateChange:     "validator_state_change",
	KindDelegate:                 "delegate",
	KindUndelegate:               "undelegate",
	KindUndelegateClaim:          "undelegate_claim",
	KindRateDataUpdate:           "rate_data_update",
	KindNullifierSpend:           "nullifier_spend",
	KindRewardNote:               "reward_note",
	KindFrostCeremonyFinished:    "frost_ceremony_finished",
	KindFrostCeremonyFailed:      "frost_ceremony_failed",
	KindIbcConnectionOpenInit:    "ibc_connection_open_init",
	KindIbcConnectionOpenTry:     "ibc_connection_open_try",
	KindIbcConnectionOpenAck:     "ibc_connection_open_ack",
	KindIbcConnectionOpenConfirm: "ibc_connection_open_confirm",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(Names) || Names[k] == "" {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return Names[k]
}

// Attr is a single string-valued event attribute, ordered as produced.
type Attr struct {
	Key   string
	Value string
}

// Event is a single emitted event, ordered by the position it occupies in a
// Bus's Events slice.
type Event struct {
	Kind       Kind
	ActionIdx  int // index of the emitting action within its transaction
	TxIdx      int // index of the emitting transaction within the block
	Attributes []Attr
}

// Bus accumulates events for a single block in emission order.
type Bus struct {
	events []Event
}

// NewBus creates an empty event bus for a new block.
func NewBus() *Bus {
	return &Bus{}
}

// Emit appends an event. Emission order equals action order equals
// transaction order, per the ordering guarantees.
func (b *Bus) Emit(txIdx, actionIdx int, kind Kind, attrs ...Attr) {
	b.events = append(b.events, Event{
		Kind:       kind,
		ActionIdx:  actionIdx,
		TxIdx:      txIdx,
		Attributes: attrs,
	})
}

// Events returns the accumulated events in emission order. The returned
// slice must not be mutated by the caller.
func (b *Bus) Events() []Event {
	return b.events
}

// Len returns the number of events emitted so far.
func (b *Bus) Len() int {
	return len(b.events)
}

// Reset clears the bus for reuse at the next block.
func (b *Bus) Reset() {
	b.events = nil
}

func Attrs(kv ...string) []Attr {
	if len(kv)%2 != 0 {
		panic("events: Attrs requires an even number of key/value arguments")
	}
	out := make([]Attr, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		out = append(out, Attr{Key: kv[i], Value: kv[i+1]})
	}
	return out
}
