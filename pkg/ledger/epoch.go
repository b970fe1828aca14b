// Copyright 2025 Certen Protocol

package ledger

// epochClock tracks the current block height and epoch boundary, and
// implements stake.EpochManager so pkg/stake can request early epoch
// termination without importing pkg/ledger. One epochClock is owned by the App for its whole
// lifetime; Commit advances Height every block and EndBlock decides
// whether the epoch rolls over.
type epochClock struct {
	height          uint64
	epoch           uint64
	epochDuration   uint64 // blocks per epoch
	unbondingEpochs uint64
	epochStartBlock uint64
	endEpochFlag    bool
}

func newEpochClock(epochDuration, unbondingEpochs uint64) *epochClock {
	if epochDuration == 0 {
		epochDuration = 1
	}
	// Block heights start at 1, so the first epoch spans [1, epochDuration].
	return &epochClock{epochDuration: epochDuration, unbondingEpochs: unbondingEpochs, epochStartBlock: 1}
}

// CurrentEpoch implements stake.EpochManager.
func (c *epochClock) CurrentEpoch() uint64 { return c.epoch }

// UnbondingEpochs implements stake.EpochManager.
func (c *epochClock) UnbondingEpochs() uint64 { return c.unbondingEpochs }

// SetEndEpochFlag implements stake.EpochManager: it is called by
// stake.Manager.SetValidatorState when a transition out of Active must
// close the epoch immediately, regardless of epochDuration.
func (c *epochClock) SetEndEpochFlag() { c.endEpochFlag = true }

// advance records that a block at height has finalized, and reports
// whether this block ends the current epoch: either the configured
// epoch duration has elapsed, or an early-termination transition set the
// flag mid-epoch.
func (c *epochClock) advance(height uint64) bool {
	c.height = height
	elapsed := height-c.epochStartBlock+1 >= c.epochDuration
	return c.endEpochFlag || elapsed
}

// rollover starts the next epoch at height+1, clearing the end-of-epoch
// flag. Called by EndBlock immediately after processing an epoch
// boundary.
func (c *epochClock) rollover(height uint64) {
	c.epoch++
	c.epochStartBlock = height + 1
	c.endEpochFlag = false
}
