package ledger

import "errors"

// Typed rejection reasons returned from Append and ReplaceIfBetter. A
// rejected block or chain never mutates ledger state. Match with errors.Is.
var (
	// ErrStaleIndex is returned when a block does not carry the next
	// number in the chain, including the race where another source
	// already committed that height.
	ErrStaleIndex = errors.New("stale block number")

	// ErrHashMismatch is returned when a block's previous hash does not
	// match the hash of the current tip.
	ErrHashMismatch = errors.New("previous block hash mismatch")

	// ErrDifficultyNotMet is returned when a block's hash does not fall
	// below its effective target, or its declared target is off the
	// retarget schedule.
	ErrDifficultyNotMet = errors.New("difficulty not met")

	// ErrInvalidTransaction is returned when an embedded knowledge
	// transfer fails validation, including duplicates by content
	// identity anywhere back to genesis.
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrNonMonotonicTimestamp is returned when a block's timestamp is
	// earlier than its parent's.
	ErrNonMonotonicTimestamp = errors.New("non-monotonic timestamp")

	// ErrPersistenceFailure is returned when block storage cannot be
	// written. The in-memory chain is left consistent with storage, but
	// the node cannot durably commit anything further and must come down.
	ErrPersistenceFailure = errors.New("chain persistence failure")
)
