// Copyright 2025 Certen Protocol

package ledger

import (
	"context"

	"github.com/certen/ledgercore/pkg/amount"
	"github.com/certen/ledgercore/pkg/storage"
)

// txOverlay is one transaction's scratch write journal. Every action
// handler stages its writes here instead of directly into the block's
// overlay; App.deliverTx merges it in with storage.Overlay.StageFrom only
// once every action in the transaction has succeeded, and simply discards
// it otherwise (the first failing action aborts the
// entire transaction; all overlay writes for that transaction are
// discarded). Reads check this scratch overlay first, then the block
// overlay, then the committed store, so an action observes both its own
// writes and every earlier action's writes within the same transaction.
type txOverlay struct {
	ov  *storage.Overlay
	app *App
}

func newTxOverlay(app *App) *txOverlay {
	return &txOverlay{ov: storage.NewOverlay(), app: app}
}

// get resolves key against the scratch overlay, then the block overlay,
// then the committed store, in that order.
func (t *txOverlay) get(ctx context.Context, key []byte) ([]byte, bool, error) {
	if v, deleted, found := t.ov.Get(key); found {
		if deleted {
			return nil, false, nil
		}
		return v, true, nil
	}
	if v, deleted, found := t.app.overlay.Get(key); found {
		if deleted {
			return nil, false, nil
		}
		return v, true, nil
	}
	return t.app.store.Get(ctx, key)
}

// nullifierSpent reports whether key (built by nullifierKey) has already
// been marked spent, by this transaction, an earlier transaction in the
// same block, or a previously committed block.
func (t *txOverlay) nullifierSpent(ctx context.Context, app *App, key []byte) (bool, error) {
	_, found, err := t.get(ctx, key)
	return found, err
}

// escrowBalance reads the current ICS-20 escrow balance for key (built by
// ics20EscrowKey), defaulting to zero if nothing has been staged or
// committed yet.
func (t *txOverlay) escrowBalance(ctx context.Context, key []byte) (amount.Amount, error) {
	v, found, err := t.get(ctx, key)
	if err != nil {
		return amount.Amount{}, err
	}
	if !found {
		return amount.Zero, nil
	}
	return amount.FromBytes(v)
}
