// Copyright 2025 Certen Protocol

package ledger

import (
	"sort"

	"github.com/certen/ledgercore/pkg/amount"
	"github.com/certen/ledgercore/pkg/stake"
)

// delegationPools tracks each validator's total bonded-delegation amount.
// pkg/stake's Manager deliberately does not hold this total itself
// (Delegate/Undelegate there are pure exchange-rate conversions, not an
// owned balance); the ledger needs a running total, though, to decide
// epoch-boundary promotion into the active set by voting power, so it is
// kept here alongside the other per-App registries that participate in
// per-transaction rollback.
type delegationPools struct {
	byIdentity map[stake.IdentityKey]amount.Amount
	order      []stake.IdentityKey
}

func newDelegationPools() *delegationPools {
	return &delegationPools{byIdentity: make(map[stake.IdentityKey]amount.Amount)}
}

func (p *delegationPools) clone() *delegationPools {
	cp := newDelegationPools()
	cp.order = append([]stake.IdentityKey(nil), p.order...)
	for id, amt := range p.byIdentity {
		cp.byIdentity[id] = amt
	}
	return cp
}

func (p *delegationPools) add(identity stake.IdentityKey, amt amount.Amount) error {
	next, err := p.byIdentity[identity].Add(amt)
	if err != nil {
		return err
	}
	if _, exists := p.byIdentity[identity]; !exists {
		p.order = append(p.order, identity)
	}
	p.byIdentity[identity] = next
	return nil
}

func (p *delegationPools) sub(identity stake.IdentityKey, amt amount.Amount) error {
	next, err := p.byIdentity[identity].Sub(amt)
	if err != nil {
		return err
	}
	p.byIdentity[identity] = next
	return nil
}

func (p *delegationPools) get(identity stake.IdentityKey) amount.Amount {
	return p.byIdentity[identity]
}

// sortedIdentities returns every identity with a tracked pool, sorted for
// deterministic iteration.
func (p *delegationPools) sortedIdentities() []stake.IdentityKey {
	ids := append([]stake.IdentityKey(nil), p.order...)
	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
	return ids
}
