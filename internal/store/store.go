// Package store defines the persistence interface for the investment engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
//
// Every multi-entity mutation runs inside a Tx obtained from Store.Begin:
// either every participating record (wallet, position, ledger transactions,
// owner index) is persisted, or none are. Collaborators never open their own
// transactions; the engine owns the transaction boundary.
package store

import (
	"context"
	"errors"

	"github.com/regionspay/invest-engine/internal/model"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrPlanInUse is returned when deleting a plan that open positions
	// still reference.
	ErrPlanInUse = errors.New("store: plan has open positions")
)

// Tx is a unit of work. All writes performed through a Tx become visible
// atomically at Commit; Rollback discards them. Reads through a Tx observe
// the Tx's own uncommitted writes.
//
// Rollback after Commit is a no-op, so callers can defer it unconditionally.
type Tx interface {
	// --- Reads ---

	Plan(ctx context.Context, id string) (*model.InvestmentPlan, error)
	Wallet(ctx context.Context, id string) (*model.Wallet, error)
	Position(ctx context.Context, id string) (*model.InvestmentPosition, error)

	// --- Writes ---

	InsertPosition(ctx context.Context, p *model.InvestmentPosition) error
	UpdatePosition(ctx context.Context, p *model.InvestmentPosition) error
	UpdateWallet(ctx context.Context, w *model.Wallet) error

	// InsertLedgerTransaction appends an immutable money-movement record.
	InsertLedgerTransaction(ctx context.Context, t *model.LedgerTransaction) error

	// AppendOwnerPosition adds a position id to the owner's position index.
	AppendOwnerPosition(ctx context.Context, ownerID, positionID string) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// Begin opens a unit of work.
	Begin(ctx context.Context) (Tx, error)

	// --- Plan operations ---

	Plan(ctx context.Context, id string) (*model.InvestmentPlan, error)
	ListPlans(ctx context.Context) ([]model.InvestmentPlan, error)
	InsertPlan(ctx context.Context, p *model.InvestmentPlan) error

	// DeletePlan removes a plan. Fails with ErrPlanInUse while any active or
	// matured position references it.
	DeletePlan(ctx context.Context, id string) error

	// --- Wallet operations ---

	Wallet(ctx context.Context, id string) (*model.Wallet, error)
	InsertWallet(ctx context.Context, w *model.Wallet) error

	// --- Position queries ---

	Position(ctx context.Context, id string) (*model.InvestmentPosition, error)
	ListPositionsByOwner(ctx context.Context, ownerID string) ([]model.InvestmentPosition, error)

	// ListActivePositions returns every position eligible for the daily
	// growth batch.
	ListActivePositions(ctx context.Context) ([]model.InvestmentPosition, error)

	// --- Immutable ledger ---

	// LedgerTransactionsByHolding returns every transaction in which the
	// holding appears on either side, oldest first.
	LedgerTransactionsByHolding(ctx context.Context, holdingID string) ([]model.LedgerTransaction, error)
}
