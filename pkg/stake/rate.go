package stake

import (
	"math/big"

	"github.com/certen/ledgercore/pkg/events"
)

// exchangeRateScale is the fixed-point scale for um_per_del_um.
const exchangeRateScale = 100_000_000

// RateData is a validator's per-epoch reward rate and exchange rate.
// Rate data is append-only, indexed by (validator, epoch); a Manager's
// rate store never overwrites an already-committed epoch's entry.
type RateData struct {
	Epoch uint64
	// RewardRateBpsSq is the reward rate in basis-points-squared.
	RewardRateBpsSq uint64
	// ExchangeRate is um_per_del_um, scaled by exchangeRateScale.
	ExchangeRate uint64
}

// rateStore is an append-only, per-validator history of RateData, kept
// sorted by epoch; Manager embeds one per validator rather than a single
// flat map so the invariant "indexed by epoch" is
// enforced at the type level: Append refuses to go backward.
type rateStore struct {
	byValidator map[IdentityKey][]RateData
}

func newRateStore() *rateStore {
	return &rateStore{byValidator: make(map[IdentityKey][]RateData)}
}

func (s *rateStore) latest(v IdentityKey) (RateData, bool) {
	hist := s.byValidator[v]
	if len(hist) == 0 {
		return RateData{}, false
	}
	return hist[len(hist)-1], true
}

func (s *rateStore) at(v IdentityKey, epoch uint64) (RateData, bool) {
	for _, rd := range s.byValidator[v] {
		if rd.Epoch == epoch {
			return rd, true
		}
	}
	return RateData{}, false
}

func (s *rateStore) clone() *rateStore {
	cp := newRateStore()
	for id, hist := range s.byValidator {
		cp.byValidator[id] = append([]RateData(nil), hist...)
	}
	return cp
}

func (s *rateStore) append(v IdentityKey, rd RateData) error {
	hist := s.byValidator[v]
	if len(hist) > 0 && rd.Epoch <= hist[len(hist)-1].Epoch {
		return ErrRateDataOutOfOrder
	}
	s.byValidator[v] = append(hist, rd)
	return nil
}

// UpdateRates advances every tracked validator's rate data by one epoch,
// per the "Rate update" algorithm: (1) a new base rate
// is assumed to have already been folded into each validator's
// rewardRateBpsSq by the caller (the issuance schedule is outside this
// package's scope); (2) each validator's exchange rate compounds by its
// own reward rate; (3) any pending slashing penalty is applied
// multiplicatively on top. Validators with no prior rate data start from
// the 1.0 (scale) exchange rate.
func (m *Manager) UpdateRates(bus *events.Bus, txIdx int, epoch uint64, rewardRateBpsSq map[IdentityKey]uint64, penaltyBpsSq map[IdentityKey]uint64) error {
	for actionIdx, v := range m.All() {
		rate := rewardRateBpsSq[v.Identity]
		prev, ok := m.rates.latest(v.Identity)
		oldEx := uint64(exchangeRateScale)
		if ok {
			oldEx = prev.ExchangeRate
		}

		newEx := applyRateBpsSq(oldEx, rate)
		if penalty, slashed := penaltyBpsSq[v.Identity]; slashed && penalty > 0 {
			newEx = applyPenalty(newEx, penalty)
		}

		rd := RateData{Epoch: epoch, RewardRateBpsSq: rate, ExchangeRate: newEx}
		if err := m.rates.append(v.Identity, rd); err != nil {
			return err
		}
		bus.Emit(txIdx, actionIdx, events.KindRateDataUpdate,
			events.Attrs("identity", identityHex(v.Identity), "epoch", itoa(epoch), "exchange_rate", itoa(newEx))...)
	}
	return nil
}

// applyRateBpsSq computes old * (1 + rateBpsSq / 10^8), rounded down,
// matching the "new_ex = old_ex * (1 + reward_rate)"
// with reward_rate expressed in basis-points-squared (10^8 denominator,
// the same scale as the exchange rate itself).
func applyRateBpsSq(old, rateBpsSq uint64) uint64 {
	num := new(big.Int).Mul(big.NewInt(int64(old)), big.NewInt(int64(exchangeRateScale)+int64(rateBpsSq)))
	return new(big.Int).Div(num, big.NewInt(exchangeRateScale)).Uint64()
}

// applyPenalty applies a slashing penalty (also basis-points-squared) to an
// exchange rate multiplicatively: new = old * (1 - penaltyBpsSq / 10^8).
func applyPenalty(old, penaltyBpsSq uint64) uint64 {
	factor := int64(exchangeRateScale) - int64(penaltyBpsSq)
	if factor < 0 {
		factor = 0
	}
	num := new(big.Int).Mul(big.NewInt(int64(old)), big.NewInt(factor))
	return new(big.Int).Div(num, big.NewInt(exchangeRateScale)).Uint64()
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
