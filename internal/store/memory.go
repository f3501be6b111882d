package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/regionspay/invest-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
//
// A memory Tx holds the store's write lock from Begin until Commit/Rollback,
// so concurrent units of work against the same store serialize, mirroring
// the row-locking behavior of the Postgres store.
type MemoryStore struct {
	mu         sync.Mutex
	plans      map[string]*model.InvestmentPlan
	wallets    map[string]*model.Wallet
	positions  map[string]*model.InvestmentPosition
	ledger     []model.LedgerTransaction
	ownerIndex map[string][]string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans:      make(map[string]*model.InvestmentPlan),
		wallets:    make(map[string]*model.Wallet),
		positions:  make(map[string]*model.InvestmentPosition),
		ownerIndex: make(map[string][]string),
	}
}

// --- copy helpers ---

func copyPlan(p *model.InvestmentPlan) *model.InvestmentPlan {
	cp := *p
	cp.Allocation = append([]model.AllocationSlice(nil), p.Allocation...)
	return &cp
}

func copyWallet(w *model.Wallet) *model.Wallet {
	cw := *w
	cw.TransactionIDs = append([]string(nil), w.TransactionIDs...)
	return &cw
}

func copyPosition(p *model.InvestmentPosition) *model.InvestmentPosition {
	cp := *p
	cp.Schedule.Increments = append([]decimal.Decimal(nil), p.Schedule.Increments...)
	cp.Withdrawals = append([]model.WithdrawalRecord(nil), p.Withdrawals...)
	cp.TransactionIDs = append([]string(nil), p.TransactionIDs...)
	if p.Cancellation != nil {
		c := *p.Cancellation
		cp.Cancellation = &c
	}
	return &cp
}

// --- Store reads (outside a unit of work) ---

func (s *MemoryStore) Plan(_ context.Context, id string) (*model.InvestmentPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	return copyPlan(p), nil
}

func (s *MemoryStore) ListPlans(_ context.Context) ([]model.InvestmentPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plans := make([]model.InvestmentPlan, 0, len(s.plans))
	for _, p := range s.plans {
		plans = append(plans, *copyPlan(p))
	}
	return plans, nil
}

func (s *MemoryStore) InsertPlan(_ context.Context, p *model.InvestmentPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.plans[p.ID]; exists {
		return fmt.Errorf("plan %s already exists", p.ID)
	}
	s.plans[p.ID] = copyPlan(p)
	return nil
}

func (s *MemoryStore) DeletePlan(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[id]; !ok {
		return fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	for _, p := range s.positions {
		if p.PlanID != id {
			continue
		}
		if p.Status == model.StatusActive || p.Status == model.StatusMatured {
			return fmt.Errorf("plan %s: %w", id, ErrPlanInUse)
		}
	}
	delete(s.plans, id)
	return nil
}

func (s *MemoryStore) Wallet(_ context.Context, id string) (*model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok {
		return nil, fmt.Errorf("wallet %s: %w", id, ErrNotFound)
	}
	return copyWallet(w), nil
}

func (s *MemoryStore) InsertWallet(_ context.Context, w *model.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.wallets[w.ID]; exists {
		return fmt.Errorf("wallet %s already exists", w.ID)
	}
	s.wallets[w.ID] = copyWallet(w)
	return nil
}

func (s *MemoryStore) Position(_ context.Context, id string) (*model.InvestmentPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok {
		return nil, fmt.Errorf("position %s: %w", id, ErrNotFound)
	}
	return copyPosition(p), nil
}

func (s *MemoryStore) ListPositionsByOwner(_ context.Context, ownerID string) ([]model.InvestmentPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.InvestmentPosition
	for _, id := range s.ownerIndex[ownerID] {
		if p, ok := s.positions[id]; ok {
			result = append(result, *copyPosition(p))
		}
	}
	return result, nil
}

func (s *MemoryStore) ListActivePositions(_ context.Context) ([]model.InvestmentPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.InvestmentPosition
	for _, p := range s.positions {
		if p.Status == model.StatusActive {
			result = append(result, *copyPosition(p))
		}
	}
	return result, nil
}

func (s *MemoryStore) LedgerTransactionsByHolding(_ context.Context, holdingID string) ([]model.LedgerTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.LedgerTransaction
	for _, t := range s.ledger {
		if t.SourceID == holdingID || t.BeneficiaryID == holdingID {
			result = append(result, t)
		}
	}
	return result, nil
}

// --- Unit of work ---

// memoryTx stages writes and applies them on Commit while holding the
// store lock for the whole unit of work.
type memoryTx struct {
	s    *MemoryStore
	done bool

	wallets      map[string]*model.Wallet
	positions    map[string]*model.InvestmentPosition
	inserted     map[string]bool // position ids inserted in this tx
	ledger       []model.LedgerTransaction
	ownerAppends [][2]string
}

// Begin opens a unit of work. The store lock is held until Commit/Rollback.
func (s *MemoryStore) Begin(_ context.Context) (Tx, error) {
	s.mu.Lock()
	return &memoryTx{
		s:         s,
		wallets:   make(map[string]*model.Wallet),
		positions: make(map[string]*model.InvestmentPosition),
		inserted:  make(map[string]bool),
	}, nil
}

func (t *memoryTx) Plan(_ context.Context, id string) (*model.InvestmentPlan, error) {
	p, ok := t.s.plans[id]
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	return copyPlan(p), nil
}

func (t *memoryTx) Wallet(_ context.Context, id string) (*model.Wallet, error) {
	if w, ok := t.wallets[id]; ok {
		return copyWallet(w), nil
	}
	w, ok := t.s.wallets[id]
	if !ok {
		return nil, fmt.Errorf("wallet %s: %w", id, ErrNotFound)
	}
	return copyWallet(w), nil
}

func (t *memoryTx) Position(_ context.Context, id string) (*model.InvestmentPosition, error) {
	if p, ok := t.positions[id]; ok {
		return copyPosition(p), nil
	}
	p, ok := t.s.positions[id]
	if !ok {
		return nil, fmt.Errorf("position %s: %w", id, ErrNotFound)
	}
	return copyPosition(p), nil
}

func (t *memoryTx) InsertPosition(_ context.Context, p *model.InvestmentPosition) error {
	if _, exists := t.s.positions[p.ID]; exists {
		return fmt.Errorf("position %s already exists", p.ID)
	}
	t.positions[p.ID] = copyPosition(p)
	t.inserted[p.ID] = true
	return nil
}

func (t *memoryTx) UpdatePosition(_ context.Context, p *model.InvestmentPosition) error {
	if _, exists := t.s.positions[p.ID]; !exists && !t.inserted[p.ID] {
		return fmt.Errorf("position %s: %w", p.ID, ErrNotFound)
	}
	t.positions[p.ID] = copyPosition(p)
	return nil
}

func (t *memoryTx) UpdateWallet(_ context.Context, w *model.Wallet) error {
	if _, exists := t.s.wallets[w.ID]; !exists {
		return fmt.Errorf("wallet %s: %w", w.ID, ErrNotFound)
	}
	t.wallets[w.ID] = copyWallet(w)
	return nil
}

func (t *memoryTx) InsertLedgerTransaction(_ context.Context, txn *model.LedgerTransaction) error {
	t.ledger = append(t.ledger, *txn)
	return nil
}

func (t *memoryTx) AppendOwnerPosition(_ context.Context, ownerID, positionID string) error {
	t.ownerAppends = append(t.ownerAppends, [2]string{ownerID, positionID})
	return nil
}

func (t *memoryTx) Commit(_ context.Context) error {
	if t.done {
		return fmt.Errorf("memory tx already closed")
	}
	for id, w := range t.wallets {
		t.s.wallets[id] = w
	}
	for id, p := range t.positions {
		t.s.positions[id] = p
	}
	t.s.ledger = append(t.s.ledger, t.ledger...)
	for _, a := range t.ownerAppends {
		t.s.ownerIndex[a[0]] = append(t.s.ownerIndex[a[0]], a[1])
	}
	t.done = true
	t.s.mu.Unlock()
	return nil
}

func (t *memoryTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.mu.Unlock()
	return nil
}
