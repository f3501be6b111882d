// Package invest provides the HTTP handlers for the investment lifecycle
// engine: opening positions, applying growth, moving liquidity, and closing
// positions through withdrawal, redemption, or cancellation.
package invest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/regionspay/invest-engine/internal/fx"
	"github.com/regionspay/invest-engine/internal/model"
	"github.com/regionspay/invest-engine/internal/store"
)

// Service exposes the engine over HTTP.
type Service struct {
	engine *Engine
	store  store.Store
	wsHub  *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates the HTTP service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(engine *Engine, st store.Store, hub *WSHub) *Service {
	return &Service{engine: engine, store: st, wsHub: hub}
}

// Routes mounts all handlers under the given router.
func (s *Service) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", s.ListPlans)
			r.Post("/", s.CreatePlan)
			r.Get("/{planID}", s.GetPlan)
			r.Delete("/{planID}", s.DeletePlan)
		})

		r.Route("/investments", func(r chi.Router) {
			r.Post("/", s.CreateInvestment)
			r.Get("/{positionID}", s.GetInvestment)
			r.Post("/{positionID}/growth", s.ApplyGrowth)
			r.Post("/{positionID}/liquidity", s.AddLiquidity)
			r.Post("/{positionID}/withdraw", s.Withdraw)
			r.Post("/{positionID}/redeem", s.Redeem)
			r.Post("/{positionID}/cancel", s.Cancel)
			r.Post("/{positionID}/simulate", s.Simulate)
			r.Get("/{positionID}/transactions", s.PositionTransactions)
		})

		r.Post("/growth/run", s.RunGrowthBatch)

		r.Route("/wallets", func(r chi.Router) {
			r.Post("/", s.CreateWallet)
			r.Get("/{walletID}", s.GetWallet)
			r.Get("/{walletID}/investments", s.WalletInvestments)
			r.Get("/{walletID}/transactions", s.WalletTransactions)
		})

		r.Get("/owners/{ownerID}/investments", s.OwnerInvestments)

		if s.wsHub != nil {
			r.Get("/ws", s.wsHub.HandleWS)
		}
	})
}

// --- Request types ---

// CreatePlanRequest is the JSON body for plan creation.
type CreatePlanRequest struct {
	Name                 string                  `json:"name"`
	Symbol               string                  `json:"symbol"`
	Currency             string                  `json:"currency"`
	MinInvestment        decimal.Decimal         `json:"min_investment"`
	ExpectedReturnMin    decimal.Decimal         `json:"expected_return_min"`
	ExpectedReturnMax    decimal.Decimal         `json:"expected_return_max"`
	MaturityPeriodDays   int                     `json:"maturity_period_days"`
	RiskLevel            string                  `json:"risk_level"`
	AllowEarlyWithdrawal bool                    `json:"allow_early_withdrawal"`
	EarlyWithdrawalFee   decimal.Decimal         `json:"early_withdrawal_fee"`
	Featured             bool                    `json:"featured"`
	Allocation           []model.AllocationSlice `json:"allocation,omitempty"`
}

// CreateInvestmentRequest is the JSON body for POST /investments.
type CreateInvestmentRequest struct {
	OwnerID  string          `json:"owner_id"`
	WalletID string          `json:"wallet_id"`
	PlanID   string          `json:"plan_id"`
	Amount   decimal.Decimal `json:"amount"` // wallet currency
}

// AmountRequest carries a wallet and an amount for liquidity and
// withdrawal operations.
type AmountRequest struct {
	WalletID string          `json:"wallet_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// RedeemBody selects the redemption destination.
type RedeemBody struct {
	Destination model.Destination `json:"destination"`
}

// CancelBody carries the cancellation reason.
type CancelBody struct {
	WalletID string `json:"wallet_id"`
	Reason   string `json:"reason"`
}

// SimulateBody tunes a schedule regeneration.
type SimulateBody struct {
	Volatility float64 `json:"volatility"`
	Seed       int64   `json:"seed"`
}

// CreateWalletRequest is the JSON body for wallet creation.
type CreateWalletRequest struct {
	OwnerID  string          `json:"owner_id"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

// --- Plan handlers ---

// CreatePlan handles POST /api/v1/plans
func (s *Service) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Currency == "" {
		writeError(w, "name and currency are required", http.StatusBadRequest)
		return
	}
	if req.MaturityPeriodDays <= 0 {
		writeError(w, "maturity_period_days must be positive", http.StatusBadRequest)
		return
	}
	if req.ExpectedReturnMax.LessThan(req.ExpectedReturnMin) {
		writeError(w, "expected_return_max must be >= expected_return_min", http.StatusBadRequest)
		return
	}

	plan := &model.InvestmentPlan{
		ID:                   uuid.New().String(),
		Name:                 req.Name,
		Symbol:               req.Symbol,
		Currency:             req.Currency,
		MinInvestment:        req.MinInvestment,
		ExpectedReturnMin:    req.ExpectedReturnMin,
		ExpectedReturnMax:    req.ExpectedReturnMax,
		MaturityPeriodDays:   req.MaturityPeriodDays,
		RiskLevel:            req.RiskLevel,
		AllowEarlyWithdrawal: req.AllowEarlyWithdrawal,
		EarlyWithdrawalFee:   req.EarlyWithdrawalFee,
		Featured:             req.Featured,
		Allocation:           req.Allocation,
		Active:               true,
		CreatedAt:            time.Now().UTC(),
	}

	if err := s.store.InsertPlan(r.Context(), plan); err != nil {
		writeError(w, "failed to create plan", http.StatusInternalServerError)
		return
	}

	slog.Info("plan created", "id", plan.ID, "name", plan.Name, "currency", plan.Currency)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(plan)
}

// ListPlans handles GET /api/v1/plans
func (s *Service) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.store.ListPlans(r.Context())
	if err != nil {
		writeError(w, "failed to list plans", http.StatusInternalServerError)
		return
	}
	if plans == nil {
		plans = []model.InvestmentPlan{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(plans)
}

// GetPlan handles GET /api/v1/plans/{planID}
func (s *Service) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.store.Plan(r.Context(), chi.URLParam(r, "planID"))
	if err != nil {
		writeError(w, "plan not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(plan)
}

// DeletePlan handles DELETE /api/v1/plans/{planID}
// Deletion is refused while live positions still reference the plan.
func (s *Service) DeletePlan(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeletePlan(r.Context(), chi.URLParam(r, "planID"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, "plan not found", http.StatusNotFound)
	case errors.Is(err, store.ErrPlanInUse):
		writeError(w, "plan has live positions and cannot be deleted", http.StatusConflict)
	case err != nil:
		writeError(w, "failed to delete plan", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// --- Investment handlers ---

// CreateInvestment handles POST /api/v1/investments
func (s *Service) CreateInvestment(w http.ResponseWriter, r *http.Request) {
	var req CreateInvestmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.OwnerID == "" || req.WalletID == "" || req.PlanID == "" {
		writeError(w, "owner_id, wallet_id and plan_id are required", http.StatusBadRequest)
		return
	}

	pos, err := s.engine.Create(r.Context(), CreateRequest{
		OwnerID:  req.OwnerID,
		WalletID: req.WalletID,
		PlanID:   req.PlanID,
		Amount:   req.Amount,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(pos)
}

// GetInvestment handles GET /api/v1/investments/{positionID}
func (s *Service) GetInvestment(w http.ResponseWriter, r *http.Request) {
	pos, err := s.store.Position(r.Context(), chi.URLParam(r, "positionID"))
	if err != nil {
		writeError(w, "investment not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pos)
}

// ApplyGrowth handles POST /api/v1/investments/{positionID}/growth
func (s *Service) ApplyGrowth(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.ApplyGrowth(r.Context(), chi.URLParam(r, "positionID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// AddLiquidity handles POST /api/v1/investments/{positionID}/liquidity
func (s *Service) AddLiquidity(w http.ResponseWriter, r *http.Request) {
	var body AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	pos, err := s.engine.AddLiquidity(r.Context(), AddLiquidityRequest{
		PositionID: chi.URLParam(r, "positionID"),
		WalletID:   body.WalletID,
		Amount:     body.Amount,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pos)
}

// Withdraw handles POST /api/v1/investments/{positionID}/withdraw
func (s *Service) Withdraw(w http.ResponseWriter, r *http.Request) {
	var body AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.engine.Withdraw(r.Context(), WithdrawRequest{
		PositionID: chi.URLParam(r, "positionID"),
		WalletID:   body.WalletID,
		Amount:     body.Amount,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// Redeem handles POST /api/v1/investments/{positionID}/redeem
func (s *Service) Redeem(w http.ResponseWriter, r *http.Request) {
	var body RedeemBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.engine.Redeem(r.Context(), RedeemRequest{
		PositionID:  chi.URLParam(r, "positionID"),
		Destination: body.Destination,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// Cancel handles POST /api/v1/investments/{positionID}/cancel
func (s *Service) Cancel(w http.ResponseWriter, r *http.Request) {
	var body CancelBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	pos, err := s.engine.Cancel(r.Context(), CancelRequest{
		PositionID: chi.URLParam(r, "positionID"),
		WalletID:   body.WalletID,
		Reason:     body.Reason,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pos)
}

// Simulate handles POST /api/v1/investments/{positionID}/simulate
func (s *Service) Simulate(w http.ResponseWriter, r *http.Request) {
	var body SimulateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	pos, err := s.engine.SimulateGrowth(r.Context(), SimulateRequest{
		PositionID: chi.URLParam(r, "positionID"),
		Volatility: body.Volatility,
		Seed:       body.Seed,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pos)
}

// RunGrowthBatch handles POST /api/v1/growth/run
func (s *Service) RunGrowthBatch(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.ApplyGrowthAll(r.Context())
	if err != nil {
		writeError(w, "growth batch failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// PositionTransactions handles GET /api/v1/investments/{positionID}/transactions
func (s *Service) PositionTransactions(w http.ResponseWriter, r *http.Request) {
	s.holdingTransactions(w, r, chi.URLParam(r, "positionID"))
}

// OwnerInvestments handles GET /api/v1/owners/{ownerID}/investments
func (s *Service) OwnerInvestments(w http.ResponseWriter, r *http.Request) {
	positions, err := s.store.ListPositionsByOwner(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		writeError(w, "failed to list investments", http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []model.InvestmentPosition{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(positions)
}

// --- Wallet handlers ---

// CreateWallet handles POST /api/v1/wallets
func (s *Service) CreateWallet(w http.ResponseWriter, r *http.Request) {
	var req CreateWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.OwnerID == "" || req.Currency == "" {
		writeError(w, "owner_id and currency are required", http.StatusBadRequest)
		return
	}
	if req.Balance.IsNegative() {
		writeError(w, "balance must not be negative", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	wallet := &model.Wallet{
		ID:            uuid.New().String(),
		OwnerID:       req.OwnerID,
		Currency:      req.Currency,
		Balance:       req.Balance,
		LedgerBalance: req.Balance,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertWallet(r.Context(), wallet); err != nil {
		writeError(w, "failed to create wallet", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(wallet)
}

// GetWallet handles GET /api/v1/wallets/{walletID}
func (s *Service) GetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := s.store.Wallet(r.Context(), chi.URLParam(r, "walletID"))
	if err != nil {
		writeError(w, "wallet not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(wallet)
}

// WalletInvestments handles GET /api/v1/wallets/{walletID}/investments
func (s *Service) WalletInvestments(w http.ResponseWriter, r *http.Request) {
	walletID := chi.URLParam(r, "walletID")
	wallet, err := s.store.Wallet(r.Context(), walletID)
	if err != nil {
		writeError(w, "wallet not found", http.StatusNotFound)
		return
	}

	positions, err := s.store.ListPositionsByOwner(r.Context(), wallet.OwnerID)
	if err != nil {
		writeError(w, "failed to list investments", http.StatusInternalServerError)
		return
	}
	filtered := []model.InvestmentPosition{}
	for _, p := range positions {
		if p.WalletID == walletID {
			filtered = append(filtered, p)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(filtered)
}

// WalletTransactions handles GET /api/v1/wallets/{walletID}/transactions
func (s *Service) WalletTransactions(w http.ResponseWriter, r *http.Request) {
	s.holdingTransactions(w, r, chi.URLParam(r, "walletID"))
}

func (s *Service) holdingTransactions(w http.ResponseWriter, r *http.Request, holdingID string) {
	txns, err := s.store.LedgerTransactionsByHolding(r.Context(), holdingID)
	if err != nil {
		writeError(w, "failed to load transactions", http.StatusInternalServerError)
		return
	}
	if txns == nil {
		txns = []model.LedgerTransaction{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txns)
}

// --- Error mapping ---

// writeEngineError maps engine sentinel errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidDestination),
		errors.Is(err, fx.ErrUnsupportedCurrency):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrPositionNotFound),
		errors.Is(err, ErrWalletNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidPlan),
		errors.Is(err, ErrBelowMinimum),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrEarlyWithdrawalNotAllowed),
		errors.Is(err, ErrExceedsValue),
		errors.Is(err, ErrBelowMinimumRemaining):
		writeError(w, err.Error(), http.StatusConflict)
	default:
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
