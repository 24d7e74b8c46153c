package common

import "errors"

var (
	// ErrValidation rejects an order violating tick/lot alignment or
	// carrying a non-positive quantity. The book stays untouched and the
	// simulation continues.
	ErrValidation = errors.New("order validation failed")

	// ErrUnknownInstrument rejects activity against an instrument the
	// simulation was not started with.
	ErrUnknownInstrument = errors.New("unknown instrument")

	// ErrInvalidTime fails a scheduling call that targets a timestamp
	// before the current simulation clock. Callers must not retry with
	// the same timestamp.
	ErrInvalidTime = errors.New("cannot schedule into the past")

	// ErrNotFound is returned by cancels referencing an order that is
	// unknown or already retired. Cancels are idempotent, so this is not
	// a failure of the book.
	ErrNotFound = errors.New("order not found")

	// ErrNotEnoughLiquidity rejects the unfilled remainder of a market
	// order; fills already made stand.
	ErrNotEnoughLiquidity = errors.New("not enough liquidity")

	// ErrAgentFault marks an agent callback that panicked. The agent is
	// disabled and its resting orders cancelled; the run continues.
	ErrAgentFault = errors.New("agent fault")

	// ErrBookCorruption is fatal for one instrument shard: an internal
	// invariant (e.g. a crossed book) was violated after matching, so the
	// shard halts rather than produce nonsensical trades.
	ErrBookCorruption = errors.New("order book corrupted")

	// ErrHalted is returned by a shard that previously detected
	// corruption.
	ErrHalted = errors.New("instrument shard halted")
)
