package dex

import (
	"math/big"
	"sort"

	"github.com/certen/ledgercore/internal/assetreg"
)

// Book indexes positions by (directed pair, effective price, id). It
// holds every position this engine knows about, keyed by id, plus a
// per-directed-pair price-ordered
// view rebuilt from that set on demand: the set of positions touched per
// block is small relative to a full re-sort being a correctness risk, so
// the book favors a simple, always-consistent rebuild over incremental
// index maintenance.
type Book struct {
	positions map[uint64]*Position
	order     []uint64 // insertion order, for deterministic iteration when ids tie
}

// NewBook creates an empty order book.
func NewBook() *Book {
	return &Book{positions: make(map[uint64]*Position)}
}

// Add inserts or replaces a position in the book.
func (b *Book) Add(p *Position) {
	if _, exists := b.positions[p.ID]; !exists {
		b.order = append(b.order, p.ID)
	}
	b.positions[p.ID] = p
}

// Get returns a position by id.
func (b *Book) Get(id uint64) (*Position, bool) {
	p, ok := b.positions[id]
	return p, ok
}

// All returns every tracked position (including closed/withdrawn ones,
// retained for proof-of-history), ordered by id.
func (b *Book) All() []*Position {
	ids := append([]uint64(nil), b.order...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*Position, len(ids))
	for i, id := range ids {
		out[i] = b.positions[id]
	}
	return out
}

// Clone returns a deep copy of the book, used by pkg/ledger to snapshot
// state before executing a transaction so a failing action's writes can be
// discarded wholesale (the first failing action aborts
// the entire transaction; all overlay writes for that transaction are
// discarded). Position.Phi's P/Q big.Ints are never mutated after
// construction, so copying the Position struct by value is sufficient;
// only the map/slice need fresh backing storage.
func (b *Book) Clone() *Book {
	cp := &Book{
		positions: make(map[uint64]*Position, len(b.positions)),
		order:     append([]uint64(nil), b.order...),
	}
	for id, p := range b.positions {
		posCopy := *p
		cp.positions[id] = &posCopy
	}
	return cp
}

// candidate is the book's best position for one directed pair out of a
// routing frontier asset.
type candidate struct {
	pair DirectedTradingPair
	pos  *Position
}

// Positions returns all Opened positions quoting pair.Start -> pair.End,
// sorted ascending by effective price, ties broken by id so traversal
// order is identical across nodes.
func (b *Book) Positions(pair DirectedTradingPair) []*Position {
	var cands []*Position
	ids := append([]uint64(nil), b.order...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		p := b.positions[id]
		if !p.State.Opened() {
			continue
		}
		if !p.quotes(pair.Start, pair.End) {
			continue
		}
		if cap, ok := p.outputCapacity(pair.Start); !ok || cap.IsZero() {
			// A position with no reserve of the output asset left (fully
			// depleted by a prior fill but not yet closed, since
			// close_on_fill may be false) cannot serve this direction;
			// exclude it so routing moves on to the next candidate instead
			// of repeatedly selecting a zero-capacity "cheapest" position.
			continue
		}
		cands = append(cands, p)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		pi := effectivePriceFor(cands[i], pair)
		pj := effectivePriceFor(cands[j], pair)
		cmp := pi.Cmp(pj)
		if cmp != 0 {
			return cmp < 0
		}
		return cands[i].ID < cands[j].ID
	})
	return cands
}

// Best returns the cheapest Opened position quoting pair.Start -> pair.End,
// if any.
func (b *Book) Best(pair DirectedTradingPair) (*Position, bool) {
	cands := b.Positions(pair)
	if len(cands) == 0 {
		return nil, false
	}
	return cands[0], true
}

// HasEdge reports whether any Opened position can currently serve the
// directed pair a -> c, i.e. quotes the pair and holds a non-zero reserve
// of c. The reverse direction c -> a is not checked.
func (b *Book) HasEdge(a, c assetreg.AssetID) bool {
	_, ok := b.Best(DirectedTradingPair{Start: a, End: c})
	return ok
}

// quotes reports whether the position serves the directed pair start->end
// in either orientation of its underlying (Asset1, Asset2).
func (p *Position) quotes(start, end assetreg.AssetID) bool {
	return (p.Asset1 == start && p.Asset2 == end) || (p.Asset2 == start && p.Asset1 == end)
}

// effectivePriceFor computes the position's effective price for the
// requested direction: EffectivePrice() is defined in terms of quoting
// asset_1 -> asset_2, so positions serving the reverse direction use the
// reciprocal.
func effectivePriceFor(p *Position, pair DirectedTradingPair) *big.Rat {
	if p.Asset1 == pair.Start {
		return p.Phi.EffectivePrice()
	}
	return new(big.Rat).Inv(p.Phi.EffectivePrice())
}
