package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/regionspay/invest-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for plan and position reads. Writes go to the primary store; keys
// touched inside a unit of work are invalidated when it commits.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Read-through (check cache first) ---

func (s *CachedStore) Plan(ctx context.Context, id string) (*model.InvestmentPlan, error) {
	data, err := s.rdb.Get(ctx, planKey(id)).Bytes()
	if err == nil {
		var p model.InvestmentPlan
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.Plan(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, planKey(id), p)
	return p, nil
}

func (s *CachedStore) Position(ctx context.Context, id string) (*model.InvestmentPosition, error) {
	data, err := s.rdb.Get(ctx, positionKey(id)).Bytes()
	if err == nil {
		var p model.InvestmentPosition
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.Position(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, positionKey(id), p)
	return p, nil
}

// --- Writes (invalidate) ---

func (s *CachedStore) InsertPlan(ctx context.Context, p *model.InvestmentPlan) error {
	if err := s.primary.InsertPlan(ctx, p); err != nil {
		return err
	}
	s.cache(ctx, planKey(p.ID), p)
	return nil
}

func (s *CachedStore) DeletePlan(ctx context.Context, id string) error {
	if err := s.primary.DeletePlan(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, planKey(id))
	return nil
}

func (s *CachedStore) InsertWallet(ctx context.Context, w *model.Wallet) error {
	return s.primary.InsertWallet(ctx, w)
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListPlans(ctx context.Context) ([]model.InvestmentPlan, error) {
	return s.primary.ListPlans(ctx)
}

func (s *CachedStore) Wallet(ctx context.Context, id string) (*model.Wallet, error) {
	return s.primary.Wallet(ctx, id)
}

func (s *CachedStore) ListPositionsByOwner(ctx context.Context, ownerID string) ([]model.InvestmentPosition, error) {
	return s.primary.ListPositionsByOwner(ctx, ownerID)
}

func (s *CachedStore) ListActivePositions(ctx context.Context) ([]model.InvestmentPosition, error) {
	return s.primary.ListActivePositions(ctx)
}

func (s *CachedStore) LedgerTransactionsByHolding(ctx context.Context, holdingID string) ([]model.LedgerTransaction, error) {
	return s.primary.LedgerTransactionsByHolding(ctx, holdingID)
}

// --- Unit of work ---

// Begin returns a Tx that tracks which cached entities it touches and
// invalidates their keys after the primary commit succeeds.
func (s *CachedStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.primary.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &cachedTx{Tx: tx, rdb: s.rdb}, nil
}

type cachedTx struct {
	Tx
	rdb     *redis.Client
	touched []string
}

func (t *cachedTx) InsertPosition(ctx context.Context, p *model.InvestmentPosition) error {
	if err := t.Tx.InsertPosition(ctx, p); err != nil {
		return err
	}
	t.touched = append(t.touched, positionKey(p.ID))
	return nil
}

func (t *cachedTx) UpdatePosition(ctx context.Context, p *model.InvestmentPosition) error {
	if err := t.Tx.UpdatePosition(ctx, p); err != nil {
		return err
	}
	t.touched = append(t.touched, positionKey(p.ID))
	return nil
}

func (t *cachedTx) Commit(ctx context.Context) error {
	if err := t.Tx.Commit(ctx); err != nil {
		return err
	}
	if len(t.touched) > 0 {
		t.rdb.Del(ctx, t.touched...)
	}
	return nil
}

// --- Cache helpers ---

func (s *CachedStore) cache(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func planKey(id string) string     { return fmt.Sprintf("plan:%s", id) }
func positionKey(id string) string { return fmt.Sprintf("position:%s", id) }
