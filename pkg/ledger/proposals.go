// Copyright 2025 Certen Protocol

package ledger

import (
	"sort"

	"github.com/certen/ledgercore/pkg/amount"
)

// ProposalState is a governance proposal's lifecycle position. Full
// voting tallies depend on the zk-circuit-backed voting power
// computation, which lives outside this tree, so this tracks only the
// deposit/withdrawal bookkeeping a ProposalSubmit/Withdraw/DepositClaim
// action needs.
type ProposalState int

const (
	ProposalOpen ProposalState = iota
	ProposalWithdrawn
	ProposalDepositClaimed
)

// Proposal is one governance proposal's deposit-bearing record.
type Proposal struct {
	ID        uint64
	Kind      string // e.g. "parameter_change", "community_pool_spend"
	Payload   []byte
	Depositor string
	Deposit   amount.Amount
	State     ProposalState
}

// proposalRegistry tracks every submitted proposal, keyed by id. It is a
// plain map rather than storage.Overlay-backed state because proposal
// bookkeeping is light and, like internal/assetreg, benign to leave
// partially advanced across a failed transaction's other actions, but
// unlike assetreg a withdrawn or deposit-claimed proposal is not
// idempotent, so this registry does participate in per-transaction
// rollback via clone (see App.snapshot).
type proposalRegistry struct {
	byID  map[uint64]*Proposal
	order []uint64
}

func newProposalRegistry() *proposalRegistry {
	return &proposalRegistry{byID: make(map[uint64]*Proposal)}
}

func (r *proposalRegistry) clone() *proposalRegistry {
	cp := newProposalRegistry()
	cp.order = append([]uint64(nil), r.order...)
	for id, p := range r.byID {
		pCopy := *p
		cp.byID[id] = &pCopy
	}
	return cp
}

func (r *proposalRegistry) get(id uint64) (*Proposal, bool) {
	p, ok := r.byID[id]
	return p, ok
}

func (r *proposalRegistry) put(p *Proposal) {
	if _, exists := r.byID[p.ID]; !exists {
		r.order = append(r.order, p.ID)
	}
	r.byID[p.ID] = p
}

// all returns every tracked proposal sorted by id, for deterministic
// iteration.
func (r *proposalRegistry) all() []*Proposal {
	ids := append([]uint64(nil), r.order...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*Proposal, len(ids))
	for i, id := range ids {
		out[i] = r.byID[id]
	}
	return out
}
