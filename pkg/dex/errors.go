package dex

import "errors"

var (
	// ErrEmptyPosition is returned when a PositionOpen would create a
	// position with both reserves zero.
	ErrEmptyPosition = errors.New("dex: position must have at least one non-zero reserve")
	// ErrInvalidTradingFunction is returned when a position's p or q is
	// non-positive or its fee exceeds 5000 bps.
	ErrInvalidTradingFunction = errors.New("dex: trading function requires p > 0, q > 0, fee_bps <= 5000")
	// ErrPositionNotClosed is returned when Withdraw is called on a
	// position that is still Opened.
	ErrPositionNotClosed = errors.New("dex: position must be closed before it can be withdrawn")
	// ErrSameAsset is returned by RouteAndFill when asset_in == asset_out.
	ErrSameAsset = errors.New("dex: asset_in and asset_out must differ")
	// ErrUnknownAssetForPosition is returned when a fill is attempted
	// against a position that does not quote the given asset.
	ErrUnknownAssetForPosition = errors.New("dex: position does not quote the requested asset")
	// ErrPositionNotOpened is returned when a fill is attempted against a
	// position whose state is not Opened.
	ErrPositionNotOpened = errors.New("dex: position is not open")
	// ErrNoRoute is returned by RouteAndFill when no path connects
	// asset_in to asset_out through any Opened position.
	ErrNoRoute = errors.New("dex: no route between assets")
	// ErrValueCircuitBreaker is the fatal error raised when a per-asset
	// reserve+unclaimed total exceeds its running credit total.
	ErrValueCircuitBreaker = errors.New("dex: value circuit breaker violation")
)
