package stake

import (
	"sort"

	"github.com/certen/ledgercore/pkg/events"
)

// EpochManager is the narrow epoch-clock interface the staking component
// consumes. pkg/ledger's block-lifecycle glue implements it; tests use a
// trivial in-memory stub.
type EpochManager interface {
	CurrentEpoch() uint64
	UnbondingEpochs() uint64
	SetEndEpochFlag()
}

// Manager holds every validator this node tracks and drives their
// lifecycle transitions.
type Manager struct {
	validators map[IdentityKey]*Validator
	order      []IdentityKey // insertion order, for deterministic iteration
	epochs     EpochManager
	rates      *rateStore
	quarantine *quarantineStore
}

// NewManager creates a staking manager bound to an epoch clock.
func NewManager(epochs EpochManager) *Manager {
	return &Manager{
		validators: make(map[IdentityKey]*Validator),
		epochs:     epochs,
		rates:      newRateStore(),
		quarantine: newQuarantineStore(),
	}
}

// LatestRate returns a validator's most recently committed rate data.
func (m *Manager) LatestRate(identity IdentityKey) (RateData, bool) {
	return m.rates.latest(identity)
}

// RateAt returns a validator's rate data at a specific epoch.
func (m *Manager) RateAt(identity IdentityKey, epoch uint64) (RateData, bool) {
	return m.rates.at(identity, epoch)
}

// AddValidator registers a new validator (e.g. from a ValidatorDefinition
// action or genesis), which must already be constructed via NewValidator
// in state Defined.
func (m *Manager) AddValidator(v *Validator) {
	if _, exists := m.validators[v.Identity]; !exists {
		m.order = append(m.order, v.Identity)
	}
	m.validators[v.Identity] = v
}

// Get returns a tracked validator by identity key.
func (m *Manager) Get(id IdentityKey) (*Validator, bool) {
	v, ok := m.validators[id]
	return v, ok
}

// All returns every tracked validator, sorted by identity key for
// deterministic iteration.
func (m *Manager) All() []*Validator {
	ids := append([]IdentityKey(nil), m.order...)
	sort.Slice(ids, func(i, j int) bool { return lessIdentity(ids[i], ids[j]) })
	out := make([]*Validator, len(ids))
	for i, id := range ids {
		out[i] = m.validators[id]
	}
	return out
}

// Clone returns a deep copy of the manager's validator set, rate history,
// and quarantine claims, bound to the same epoch clock. pkg/ledger uses
// this to snapshot state before executing a transaction so a failing
// action's writes can be discarded wholesale.
func (m *Manager) Clone() *Manager {
	cp := &Manager{
		validators: make(map[IdentityKey]*Validator, len(m.validators)),
		order:      append([]IdentityKey(nil), m.order...),
		epochs:     m.epochs,
		rates:      m.rates.clone(),
		quarantine: m.quarantine.clone(),
	}
	for id, v := range m.validators {
		vCopy := *v
		vCopy.FundingStreams = append([]FundingStream(nil), v.FundingStreams...)
		cp.validators[id] = &vCopy
	}
	return cp
}

func lessIdentity(a, b IdentityKey) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// SetValidatorState performs the state transition for identity to
// newState, validating it against the transition table and applying the
// side effects: early epoch termination, unbonding-clock start/stop, and
// validator-state-change events. An illegal transition is a fatal error;
// callers must have already validated the trigger condition (pool size,
// operator action, evidence) before calling.
func (m *Manager) SetValidatorState(bus *events.Bus, txIdx, actionIdx int, identity IdentityKey, newState State) error {
	v, ok := m.validators[identity]
	if !ok {
		return ErrValidatorNotFound
	}
	oldState := v.State
	if oldState == newState {
		return nil // idempotent no-op, matches harmless re-assertions of current state
	}
	if !CanTransition(oldState, newState) {
		return ErrIllegalTransition
	}

	if endsEpochEarly(oldState, newState) {
		m.epochs.SetEndEpochFlag()
	}

	switch newState {
	case StateTombstoned:
		// Tombstoning applies the maximum slashing penalty immediately and
		// unbonds the pool without delay.
		v.Bonding = BondingState{Kind: BondingUnbonded}
	default:
		if beginsUnbonding(oldState, newState) {
			v.Bonding = BondingState{Kind: BondingUnbonding, UnbondsAt: m.epochs.CurrentEpoch() + m.epochs.UnbondingEpochs()}
		} else if oldState == StateInactive && newState == StateActive {
			v.Bonding = BondingState{Kind: BondingBonded}
		}
	}

	if newState != StateActive {
		v.VotingPower = 0
	}

	v.State = newState
	bus.Emit(txIdx, actionIdx, events.KindValidatorStateChange,
		events.Attrs("identity", identityHex(identity), "from", oldState.String(), "to", newState.String())...)
	return nil
}

func identityHex(id IdentityKey) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, len(id)*2)
	for i, b := range id {
		buf[i*2] = hexDigits[b>>4]
		buf[i*2+1] = hexDigits[b&0xf]
	}
	return string(buf)
}

// PromoteToActive is a convenience wrapper for the epoch-boundary
// Inactive -> Active promotion into the top-N, setting voting power from
// the delegation pool size computed by the caller.
func (m *Manager) PromoteToActive(bus *events.Bus, txIdx, actionIdx int, identity IdentityKey, votingPower uint64) error {
	if err := m.SetValidatorState(bus, txIdx, actionIdx, identity, StateActive); err != nil {
		return err
	}
	v := m.validators[identity]
	v.VotingPower = votingPower
	return nil
}
