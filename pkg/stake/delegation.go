package stake

import (
	"math/big"

	"github.com/certen/ledgercore/pkg/amount"
	"github.com/certen/ledgercore/pkg/events"
)

// Delegate mints delegation tokens for a delegator at epoch e:
// delegation_amount = unbonded_amount / exchange_rate_e.
// The exchange rate used is the validator's rate data
// committed at epoch e; if none exists yet (e.g. a brand-new validator
// delegated to within its first epoch), the 1.0 baseline rate applies.
func (m *Manager) Delegate(bus *events.Bus, txIdx, actionIdx int, identity IdentityKey, epoch uint64, unbondedAmount amount.Amount) (amount.Amount, error) {
	ex := m.exchangeRateAt(identity, epoch)
	delegationAmount, err := divByExchangeRate(unbondedAmount, ex)
	if err != nil {
		return amount.Amount{}, err
	}
	if delegationAmount.IsZero() {
		return amount.Amount{}, ErrBelowMinimumDelegation
	}
	bus.Emit(txIdx, actionIdx, events.KindDelegate,
		events.Attrs("identity", identityHex(identity), "unbonded_amount", unbondedAmount.String(), "delegation_amount", delegationAmount.String())...)
	return delegationAmount, nil
}

// Undelegate burns delegation tokens and computes the unbonded amount
// the delegator is owed: unbonded_amount = delegation_amount *
// exchange_rate_e. If the validator is not Bonded, the amount is
// quarantined until the validator's unbonding epoch rather than released
// immediately.
func (m *Manager) Undelegate(bus *events.Bus, txIdx, actionIdx int, identity IdentityKey, epoch uint64, delegationAmount amount.Amount, claimant string) (amount.Amount, error) {
	v, ok := m.validators[identity]
	if !ok {
		return amount.Amount{}, ErrValidatorNotFound
	}
	ex := m.exchangeRateAt(identity, epoch)
	unbondedAmount, err := mulByExchangeRate(delegationAmount, ex)
	if err != nil {
		return amount.Amount{}, err
	}

	bus.Emit(txIdx, actionIdx, events.KindUndelegate,
		events.Attrs("identity", identityHex(identity), "delegation_amount", delegationAmount.String(), "unbonded_amount", unbondedAmount.String())...)

	if v.Bonding.Kind == BondingBonded {
		return unbondedAmount, nil
	}
	m.quarantine.add(claimant, identity, v.Bonding.UnbondsAt, unbondedAmount)
	return amount.Zero, nil
}

// ClaimUndelegation releases a quarantined undelegation once the
// validator's unbonding epoch has passed.
func (m *Manager) ClaimUndelegation(bus *events.Bus, txIdx, actionIdx int, claimant string, identity IdentityKey, currentEpoch uint64) (amount.Amount, error) {
	claim, ok := m.quarantine.take(claimant, identity)
	if !ok {
		return amount.Amount{}, ErrNotQuarantined
	}
	if currentEpoch < claim.unbondsAt {
		m.quarantine.add(claimant, identity, claim.unbondsAt, claim.amount) // not matured yet: put it back
		return amount.Amount{}, ErrQuarantineNotMatured
	}
	bus.Emit(txIdx, actionIdx, events.KindUndelegateClaim,
		events.Attrs("identity", identityHex(identity), "amount", claim.amount.String())...)
	return claim.amount, nil
}

func (m *Manager) exchangeRateAt(identity IdentityKey, epoch uint64) uint64 {
	if rd, ok := m.rates.at(identity, epoch); ok {
		return rd.ExchangeRate
	}
	if rd, ok := m.rates.latest(identity); ok {
		return rd.ExchangeRate
	}
	return exchangeRateScale
}

func divByExchangeRate(amt amount.Amount, exchangeRate uint64) (amount.Amount, error) {
	num := new(big.Int).Mul(amt.BigInt(), big.NewInt(exchangeRateScale))
	q := new(big.Int).Div(num, big.NewInt(int64(exchangeRate)))
	return amount.FromBigInt(q)
}

func mulByExchangeRate(amt amount.Amount, exchangeRate uint64) (amount.Amount, error) {
	num := new(big.Int).Mul(amt.BigInt(), big.NewInt(int64(exchangeRate)))
	q := new(big.Int).Div(num, big.NewInt(exchangeRateScale))
	return amount.FromBigInt(q)
}

// quarantineClaim is one delegator's matured-or-pending undelegation
// output, held until the validator's unbonding epoch.
type quarantineClaim struct {
	unbondsAt uint64
	amount    amount.Amount
}

// quarantineStore holds pending undelegation claims keyed by
// (claimant, validator). Only one pending claim per key is supported; a
// second Undelegate before the first claims would need an accumulation
// policy this tree does not define.
type quarantineStore struct {
	claims map[string]quarantineClaim
}

func newQuarantineStore() *quarantineStore {
	return &quarantineStore{claims: make(map[string]quarantineClaim)}
}

func quarantineKey(claimant string, identity IdentityKey) string {
	return claimant + "/" + identityHex(identity)
}

func (s *quarantineStore) clone() *quarantineStore {
	cp := newQuarantineStore()
	for k, v := range s.claims {
		cp.claims[k] = v
	}
	return cp
}

func (s *quarantineStore) add(claimant string, identity IdentityKey, unbondsAt uint64, amt amount.Amount) {
	s.claims[quarantineKey(claimant, identity)] = quarantineClaim{unbondsAt: unbondsAt, amount: amt}
}

func (s *quarantineStore) take(claimant string, identity IdentityKey) (quarantineClaim, bool) {
	key := quarantineKey(claimant, identity)
	claim, ok := s.claims[key]
	if ok {
		delete(s.claims, key)
	}
	return claim, ok
}
