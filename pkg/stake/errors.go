package stake

import "errors"

var (
	// ErrRateDataOutOfOrder is returned if RateData is appended for an
	// epoch not strictly greater than the validator's last committed
	// epoch, violating the append-only, epoch-indexed
	// invariant.
	ErrRateDataOutOfOrder = errors.New("stake: rate data must be appended in strictly increasing epoch order")
	// ErrBelowMinimumDelegation is returned when a delegation would
	// compute to a zero-token amount.
	ErrBelowMinimumDelegation = errors.New("stake: delegation amount rounds to zero")
	// ErrNotQuarantined is returned when claiming an undelegation that was
	// never quarantined (or already claimed).
	ErrNotQuarantined = errors.New("stake: no matured quarantined undelegation for this claim")
	// ErrQuarantineNotMatured is returned when a claim is attempted before
	// the validator's unbonding epoch.
	ErrQuarantineNotMatured = errors.New("stake: quarantined undelegation has not matured")
)
