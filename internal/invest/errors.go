package invest

import "errors"

// Validation errors are detected before any mutation: every operation that
// returns one leaves the wallet, the position, and the ledger untouched.
var (
	// ErrInvalidPlan is returned when the plan is missing or inactive.
	ErrInvalidPlan = errors.New("invest: plan missing or inactive")

	// ErrBelowMinimum is returned when the converted amount is under the
	// plan's minimum investment.
	ErrBelowMinimum = errors.New("invest: amount below plan minimum")

	// ErrInsufficientFunds is returned when the wallet balance cannot cover
	// the requested debit.
	ErrInsufficientFunds = errors.New("invest: insufficient wallet funds")

	// ErrWalletNotFound is returned when the wallet does not exist.
	ErrWalletNotFound = errors.New("invest: wallet not found")

	// ErrPositionNotFound is returned when the position does not exist.
	ErrPositionNotFound = errors.New("invest: position not found")

	// ErrInvalidState is returned when the operation is illegal for the
	// position's current status.
	ErrInvalidState = errors.New("invest: operation not allowed in current status")

	// ErrEarlyWithdrawalNotAllowed is returned when withdrawing before
	// maturity from a position that forbids it.
	ErrEarlyWithdrawalNotAllowed = errors.New("invest: early withdrawal not allowed")

	// ErrExceedsValue is returned when the withdrawal amount exceeds the
	// position's current value.
	ErrExceedsValue = errors.New("invest: amount exceeds current value")

	// ErrBelowMinimumRemaining is returned when a partial withdrawal would
	// leave a remainder under the plan minimum; the caller must withdraw the
	// full amount instead.
	ErrBelowMinimumRemaining = errors.New("invest: partial withdrawal would leave remainder below plan minimum")

	// ErrInvalidAmount is returned when the requested amount is not positive.
	ErrInvalidAmount = errors.New("invest: amount must be positive")

	// ErrInvalidDestination is returned when a redemption destination does
	// not name exactly one wallet, account, or card.
	ErrInvalidDestination = errors.New("invest: destination must name a wallet, account, or card")
)
