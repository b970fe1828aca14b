package stake

import (
	"testing"

	"github.com/certen/ledgercore/pkg/amount"
	"github.com/certen/ledgercore/pkg/events"
)

type fakeEpochs struct {
	epoch           uint64
	unbondingEpochs uint64
	endFlag         bool
}

func (f *fakeEpochs) CurrentEpoch() uint64    { return f.epoch }
func (f *fakeEpochs) UnbondingEpochs() uint64 { return f.unbondingEpochs }
func (f *fakeEpochs) SetEndEpochFlag()        { f.endFlag = true }

func identity(b byte) IdentityKey {
	var id IdentityKey
	id[0] = b
	return id
}

func TestIllegalTransitionsAreRejected(t *testing.T) {
	epochs := &fakeEpochs{unbondingEpochs: 2}
	m := NewManager(epochs)
	v := NewValidator(identity(1), nil, [32]byte{}, Metadata{})
	m.AddValidator(v)
	bus := events.NewBus()

	cases := []struct {
		from, to State
	}{
		{StateDefined, StateActive},
		{StateJailed, StateDefined},
		{StateDisabled, StateActive},
	}
	for _, c := range cases {
		v.State = c.from
		if err := m.SetValidatorState(bus, 0, 0, v.Identity, c.to); err != ErrIllegalTransition {
			t.Fatalf("%s -> %s: expected ErrIllegalTransition, got %v", c.from, c.to, err)
		}
	}

	v.State = StateTombstoned
	if err := m.SetValidatorState(bus, 0, 0, v.Identity, StateActive); err != ErrIllegalTransition {
		t.Fatalf("Tombstoned -> Active: expected ErrIllegalTransition, got %v", err)
	}
}

// TestValidatorLifecycle walks a new validator from Defined through
// epoch-boundary activation and back down on undelegation; pool-size/
// top-N voting power selection is a caller-side policy this package does
// not implement.
func TestValidatorLifecycle(t *testing.T) {
	epochs := &fakeEpochs{unbondingEpochs: 3}
	m := NewManager(epochs)
	v := NewValidator(identity(1), nil, [32]byte{}, Metadata{})
	m.AddValidator(v)
	bus := events.NewBus()

	if v.State != StateDefined {
		t.Fatalf("new validator must start Defined")
	}

	if err := m.SetValidatorState(bus, 0, 0, v.Identity, StateInactive); err != nil {
		t.Fatalf("Defined->Inactive: %v", err)
	}
	if err := m.PromoteToActive(bus, 0, 1, v.Identity, 500); err != nil {
		t.Fatalf("Inactive->Active: %v", err)
	}
	if v.State != StateActive || v.VotingPower != 500 {
		t.Fatalf("expected Active with voting power 500, got %s/%d", v.State, v.VotingPower)
	}
	if v.Bonding.Kind != BondingBonded {
		t.Fatalf("expected Bonded after promotion")
	}

	epochs.epoch = 10
	if err := m.SetValidatorState(bus, 0, 2, v.Identity, StateDefined); err != nil {
		t.Fatalf("Active->Defined (undelegation below minimum): %v", err)
	}
	if v.State != StateDefined || v.VotingPower != 0 {
		t.Fatalf("expected Defined with zero voting power, got %s/%d", v.State, v.VotingPower)
	}
	if !epochs.endFlag {
		t.Fatalf("expected end-of-epoch flag set on Active->Defined")
	}
	if v.Bonding.Kind != BondingUnbonding || v.Bonding.UnbondsAt != 13 {
		t.Fatalf("expected Unbonding{unbonds_at_epoch:13}, got %+v", v.Bonding)
	}
}

func TestTombstoneAppliesImmediateUnbonding(t *testing.T) {
	epochs := &fakeEpochs{unbondingEpochs: 5}
	m := NewManager(epochs)
	v := NewValidator(identity(1), nil, [32]byte{}, Metadata{})
	v.State = StateActive
	v.Bonding = BondingState{Kind: BondingBonded}
	m.AddValidator(v)
	bus := events.NewBus()

	if err := m.SetValidatorState(bus, 0, 0, v.Identity, StateTombstoned); err != nil {
		t.Fatalf("Active->Tombstoned: %v", err)
	}
	if v.Bonding.Kind != BondingUnbonded {
		t.Fatalf("expected immediate Unbonded on tombstoning, got %+v", v.Bonding)
	}
	if !epochs.endFlag {
		t.Fatalf("expected end-of-epoch flag set on Active->Tombstoned")
	}
}

func TestRateUpdateMonotonicUnlessSlashed(t *testing.T) {
	epochs := &fakeEpochs{}
	m := NewManager(epochs)
	v := NewValidator(identity(1), nil, [32]byte{}, Metadata{})
	m.AddValidator(v)
	bus := events.NewBus()

	rates := map[IdentityKey]uint64{v.Identity: 500_000} // 0.5% per epoch
	if err := m.UpdateRates(bus, 0, 1, rates, nil); err != nil {
		t.Fatalf("UpdateRates epoch1: %v", err)
	}
	rd1, _ := m.LatestRate(v.Identity)

	if err := m.UpdateRates(bus, 0, 2, rates, nil); err != nil {
		t.Fatalf("UpdateRates epoch2: %v", err)
	}
	rd2, _ := m.LatestRate(v.Identity)
	if rd2.ExchangeRate <= rd1.ExchangeRate {
		t.Fatalf("expected exchange rate to increase without slashing: %d -> %d", rd1.ExchangeRate, rd2.ExchangeRate)
	}

	penalties := map[IdentityKey]uint64{v.Identity: 10_000_000} // 10% slash
	if err := m.UpdateRates(bus, 0, 3, rates, penalties); err != nil {
		t.Fatalf("UpdateRates epoch3: %v", err)
	}
	rd3, _ := m.LatestRate(v.Identity)
	if rd3.ExchangeRate >= rd2.ExchangeRate {
		t.Fatalf("expected exchange rate to drop after slashing: %d -> %d", rd2.ExchangeRate, rd3.ExchangeRate)
	}
}

func TestDelegateUndelegateQuarantine(t *testing.T) {
	epochs := &fakeEpochs{unbondingEpochs: 2}
	m := NewManager(epochs)
	v := NewValidator(identity(1), nil, [32]byte{}, Metadata{})
	v.State = StateActive
	v.Bonding = BondingState{Kind: BondingUnbonding, UnbondsAt: 5}
	m.AddValidator(v)
	bus := events.NewBus()

	delegationAmt, err := m.Delegate(bus, 0, 0, v.Identity, 0, amount.FromUint64(1_000))
	if err != nil {
		t.Fatalf("Delegate: %v", err)
	}
	if delegationAmt.Cmp(amount.FromUint64(1_000)) != 0 {
		t.Fatalf("expected 1:1 delegation at baseline rate, got %s", delegationAmt)
	}

	unbonded, err := m.Undelegate(bus, 0, 1, v.Identity, 0, delegationAmt, "alice")
	if err != nil {
		t.Fatalf("Undelegate: %v", err)
	}
	if !unbonded.IsZero() {
		t.Fatalf("expected zero immediate output while Unbonding, got %s", unbonded)
	}

	if _, err := m.ClaimUndelegation(bus, 0, 2, "alice", v.Identity, 3); err != ErrQuarantineNotMatured {
		t.Fatalf("expected ErrQuarantineNotMatured before epoch 5, got %v", err)
	}
	claimed, err := m.ClaimUndelegation(bus, 0, 2, "alice", v.Identity, 5)
	if err != nil {
		t.Fatalf("ClaimUndelegation at maturity: %v", err)
	}
	if claimed.Cmp(amount.FromUint64(1_000)) != 0 {
		t.Fatalf("expected claim of 1000, got %s", claimed)
	}
}
