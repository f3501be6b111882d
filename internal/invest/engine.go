// Package invest implements the investment lifecycle engine: the state
// machine and orchestration that moves money between wallets and investment
// positions while emitting paired, auditable ledger records, atomically.
//
// All monetary values use shopspring/decimal — never float64 for money.
package invest

import (
	"context"
	cryptoRand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/regionspay/invest-engine/internal/fx"
	"github.com/regionspay/invest-engine/internal/ledger"
	"github.com/regionspay/invest-engine/internal/metrics"
	"github.com/regionspay/invest-engine/internal/model"
	"github.com/regionspay/invest-engine/internal/schedule"
	"github.com/regionspay/invest-engine/internal/store"
)

// Config tunes the engine. Zero values select the defaults.
type Config struct {
	// Volatility scales the per-day randomness of generated schedules.
	Volatility float64

	// Epsilon is the near-equality tolerance that classifies a withdrawal
	// as full. Default 1e-5.
	Epsilon float64

	// SignificantGrowthPercent is the single-day growth threshold (percent
	// of previous value) that triggers a notification. Default 2.
	SignificantGrowthPercent float64

	// Rand supplies the random source for schedule generation. Default is a
	// crypto-seeded PRNG; tests inject seeded sources for reproducibility.
	Rand func() *rand.Rand
}

// Engine executes lifecycle operations. Every operation runs as a single
// unit of work: any failure at any step aborts all writes performed so far.
type Engine struct {
	store    store.Store
	fx       *fx.Converter
	notifier Notifier

	volatility  float64
	epsilon     decimal.Decimal
	significant decimal.Decimal
	newRand     func() *rand.Rand
}

// NewEngine creates an engine over the given store and rate snapshot.
// Pass nil for notifier to log events with slog only.
func NewEngine(st store.Store, conv *fx.Converter, notifier Notifier, cfg Config) *Engine {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	e := &Engine{
		store:       st,
		fx:          conv,
		notifier:    notifier,
		volatility:  cfg.Volatility,
		epsilon:     decimal.NewFromFloat(1e-5),
		significant: decimal.NewFromInt(2),
		newRand:     cfg.Rand,
	}
	if cfg.Epsilon > 0 {
		e.epsilon = decimal.NewFromFloat(cfg.Epsilon)
	}
	if cfg.SignificantGrowthPercent > 0 {
		e.significant = decimal.NewFromFloat(cfg.SignificantGrowthPercent)
	}
	if e.newRand == nil {
		e.newRand = func() *rand.Rand {
			var seed int64
			_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			return rand.New(rand.NewSource(seed))
		}
	}
	return e
}

// --- Create ---

// CreateRequest opens a position funded from a wallet.
type CreateRequest struct {
	OwnerID  string
	WalletID string
	PlanID   string

	// Amount is in the wallet's currency.
	Amount decimal.Decimal
}

// Create validates the plan and wallet, converts the amount into the plan
// currency, generates the accrual schedule, debits the wallet, and persists
// the new position together with its funding ledger pair and the owner-index
// entry — all in one unit of work.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*model.InvestmentPosition, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, internal("begin", err)
	}
	defer tx.Rollback(ctx)

	plan, err := tx.Plan(ctx, req.PlanID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidPlan
		}
		return nil, internal("load plan", err)
	}
	if !plan.Active {
		return nil, ErrInvalidPlan
	}

	wallet, err := tx.Wallet(ctx, req.WalletID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, internal("load wallet", err)
	}

	invested, err := e.fx.Convert(req.Amount, wallet.Currency, plan.Currency)
	if err != nil {
		return nil, err
	}
	if invested.LessThan(plan.MinInvestment) {
		return nil, ErrBelowMinimum
	}
	if wallet.Balance.LessThan(req.Amount) {
		return nil, ErrInsufficientFunds
	}

	rate, err := e.fx.Rate(wallet.Currency, plan.Currency)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	avgReturn := plan.AverageReturn()
	sched, err := schedule.Generate(schedule.Params{
		Principal:           invested,
		AnnualReturnPercent: avgReturn,
		MaturityPeriodDays:  plan.MaturityPeriodDays,
		Volatility:          e.volatility,
	}, e.newRand())
	if err != nil {
		return nil, internal("generate schedule", err)
	}

	pos := &model.InvestmentPosition{
		ID:                   uuid.New().String(),
		OwnerID:              req.OwnerID,
		PlanID:               plan.ID,
		WalletID:             wallet.ID,
		Currency:             plan.Currency,
		Amount:               invested,
		CurrentValue:         invested,
		PreviousValue:        invested,
		TargetAnnualReturn:   avgReturn,
		Status:               model.StatusActive,
		CompoundingFrequency: "daily",
		WithdrawalAllowed:    plan.AllowEarlyWithdrawal,
		EarlyWithdrawalFee:   plan.EarlyWithdrawalFee,
		InvestedAt:           now,
		MaturityDate:         now.AddDate(0, 0, plan.MaturityPeriodDays),
		Schedule:             model.GrowthSchedule{Increments: sched.Increments},
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	debitWallet(wallet, req.Amount, now)
	if err := tx.InsertPosition(ctx, pos); err != nil {
		return nil, internal("insert position", err)
	}

	if _, err := ledger.Record(ctx, tx, ledger.Movement{
		Source:      ledger.WalletParticipant(wallet),
		Beneficiary: ledger.PositionParticipant(pos),
		Amount:      req.Amount,
		Rate:        rate,
		Kind:        model.TxnInvestmentFunding,
		Description: fmt.Sprintf("investment in %s", plan.Name),
		Metadata: map[string]string{
			"plan":     plan.ID,
			"invested": invested.String(),
		},
	}); err != nil {
		return nil, internal("record funding", err)
	}

	if err := tx.UpdateWallet(ctx, wallet); err != nil {
		return nil, internal("debit wallet", err)
	}
	if err := tx.UpdatePosition(ctx, pos); err != nil {
		return nil, internal("update position", err)
	}
	if err := tx.AppendOwnerPosition(ctx, req.OwnerID, pos.ID); err != nil {
		return nil, internal("index position", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, internal("commit", err)
	}

	metrics.PositionsCreated.Inc()
	metrics.LedgerTransactions.WithLabelValues(string(model.TxnInvestmentFunding)).Add(2)
	slog.Info("position created",
		"position", pos.ID,
		"owner", req.OwnerID,
		"plan", plan.ID,
		"invested", invested.String(),
		"currency", plan.Currency,
		"maturity", pos.MaturityDate.Format("2006-01-02"),
	)
	e.notifier.PositionCreated(pos)

	return pos, nil
}

// --- ApplyGrowth ---

// Growth outcomes reported per position.
const (
	GrowthApplied = "applied"
	GrowthSkipped = "skipped"
	GrowthMatured = "matured"
)

// GrowthResult describes one ApplyGrowth invocation.
type GrowthResult struct {
	PositionID string          `json:"position_id"`
	Outcome    string          `json:"outcome"`
	Reason     string          `json:"reason,omitempty"`
	Increment  decimal.Decimal `json:"increment"`
	NewValue   decimal.Decimal `json:"new_value"`
}

// ApplyGrowth consumes the position's next schedule increment, once per UTC
// calendar day. It is a no-op (outcome "skipped") when the position is not
// active, today's increment was already applied, or the schedule is
// exhausted; an exhausted schedule past the maturity date transitions the
// position to matured.
func (e *Engine) ApplyGrowth(ctx context.Context, positionID string) (GrowthResult, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return GrowthResult{}, internal("begin", err)
	}
	defer tx.Rollback(ctx)

	pos, err := tx.Position(ctx, positionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return GrowthResult{}, ErrPositionNotFound
		}
		return GrowthResult{}, internal("load position", err)
	}

	now := time.Now().UTC()
	res, mutated, err := e.applyPendingGrowth(ctx, tx, pos, now)
	if err != nil {
		return GrowthResult{}, err
	}

	if mutated {
		if err := tx.UpdatePosition(ctx, pos); err != nil {
			return GrowthResult{}, internal("update position", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return GrowthResult{}, internal("commit", err)
		}
	}

	metrics.GrowthApplications.WithLabelValues(res.Outcome).Inc()
	if res.Outcome == GrowthApplied {
		metrics.LedgerTransactions.WithLabelValues(string(model.TxnGrowth)).Inc()
		e.notifySignificantGrowth(pos, res.Increment)
	}
	return res, nil
}

// applyPendingGrowth applies today's increment to pos in place, recording
// the growth ledger entry through tx. It reports whether pos changed; the
// caller persists and commits.
func (e *Engine) applyPendingGrowth(ctx context.Context, tx store.Tx, pos *model.InvestmentPosition, now time.Time) (GrowthResult, bool, error) {
	res := GrowthResult{PositionID: pos.ID, Outcome: GrowthSkipped, NewValue: pos.CurrentValue}

	if pos.Status != model.StatusActive {
		res.Reason = "position not active"
		return res, false, nil
	}

	if pos.Schedule.Exhausted() {
		if !now.Before(pos.MaturityDate) {
			pos.Status = model.StatusMatured
			pos.UpdatedAt = now
			res.Outcome = GrowthMatured
			res.Reason = "schedule exhausted, position matured"
			return res, true, nil
		}
		res.Reason = "schedule exhausted"
		return res, false, nil
	}

	today := now.Format("2006-01-02")
	if pos.Schedule.LastAppliedOn == today {
		res.Reason = "growth already applied today"
		return res, false, nil
	}

	increment := pos.Schedule.Increments[pos.Schedule.NextIndex]
	pos.SnapshotValue()
	pos.CurrentValue = pos.CurrentValue.Add(increment)
	if pos.CurrentValue.IsNegative() {
		pos.CurrentValue = decimal.Zero
	}
	pos.Schedule.NextIndex++
	pos.Schedule.LastAppliedOn = today
	pos.UpdatedAt = now

	if _, err := ledger.Record(ctx, tx, ledger.Movement{
		Source:      ledger.PositionParticipant(pos),
		Beneficiary: ledger.PositionParticipant(pos),
		Amount:      increment,
		Rate:        decimal.NewFromInt(1),
		Kind:        model.TxnGrowth,
		Description: "daily accrual",
		Metadata: map[string]string{
			"day":   today,
			"index": fmt.Sprintf("%d", pos.Schedule.NextIndex-1),
		},
	}); err != nil {
		return GrowthResult{}, false, internal("record growth", err)
	}

	res.Outcome = GrowthApplied
	res.Increment = increment
	res.NewValue = pos.CurrentValue
	return res, true, nil
}

func (e *Engine) notifySignificantGrowth(pos *model.InvestmentPosition, increment decimal.Decimal) {
	if !increment.IsPositive() || !pos.PreviousValue.IsPositive() {
		return
	}
	pct := increment.Div(pos.PreviousValue).Mul(decimal.NewFromInt(100))
	if pct.GreaterThanOrEqual(e.significant) {
		e.notifier.SignificantGrowth(pos, increment)
	}
}

// --- Batch growth ---

// BatchItem is the per-position detail of a growth batch run.
type BatchItem struct {
	PositionID string          `json:"position_id"`
	Outcome    string          `json:"outcome"`
	Reason     string          `json:"reason,omitempty"`
	Increment  decimal.Decimal `json:"increment"`
	Error      string          `json:"error,omitempty"`
}

// BatchResult summarizes a growth batch run.
type BatchResult struct {
	Processed int         `json:"processed"`
	Skipped   int         `json:"skipped"`
	Failed    int         `json:"failed"`
	Items     []BatchItem `json:"items"`
}

// ApplyGrowthAll runs daily growth across every active position. Each
// position gets its own unit of work: one position's failure never rolls
// back growth already committed for others. Failures are collected into the
// result, not escalated.
func (e *Engine) ApplyGrowthAll(ctx context.Context) (*BatchResult, error) {
	start := time.Now()
	positions, err := e.store.ListActivePositions(ctx)
	if err != nil {
		return nil, internal("list active positions", err)
	}

	result := &BatchResult{}
	for _, pos := range positions {
		res, err := e.ApplyGrowth(ctx, pos.ID)
		item := BatchItem{PositionID: pos.ID}
		switch {
		case err != nil:
			result.Failed++
			item.Outcome = "failed"
			item.Error = err.Error()
			slog.Error("growth application failed", "position", pos.ID, "err", err)
		case res.Outcome == GrowthApplied:
			result.Processed++
			item.Outcome = res.Outcome
			item.Increment = res.Increment
		default:
			result.Skipped++
			item.Outcome = res.Outcome
			item.Reason = res.Reason
		}
		result.Items = append(result.Items, item)
	}

	metrics.GrowthBatchDuration.Observe(time.Since(start).Seconds())
	slog.Info("growth batch finished",
		"processed", result.Processed,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration", time.Since(start).String(),
	)
	return result, nil
}

// --- AddLiquidity ---

// AddLiquidityRequest tops up an active position from a wallet.
type AddLiquidityRequest struct {
	PositionID string
	WalletID   string

	// Amount is in the wallet's currency.
	Amount decimal.Decimal
}

// AddLiquidity applies pending growth, then moves funds from the wallet into
// the position, increasing both principal and current value by the converted
// amount. Growth is applied first so unapplied accrual is never diluted into
// a stale base.
func (e *Engine) AddLiquidity(ctx context.Context, req AddLiquidityRequest) (*model.InvestmentPosition, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, internal("begin", err)
	}
	defer tx.Rollback(ctx)

	pos, err := tx.Position(ctx, req.PositionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPositionNotFound
		}
		return nil, internal("load position", err)
	}
	if pos.Status != model.StatusActive {
		return nil, ErrInvalidState
	}

	wallet, err := tx.Wallet(ctx, req.WalletID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, internal("load wallet", err)
	}
	if wallet.Balance.LessThan(req.Amount) {
		return nil, ErrInsufficientFunds
	}

	converted, err := e.fx.Convert(req.Amount, wallet.Currency, pos.Currency)
	if err != nil {
		return nil, err
	}
	rate, err := e.fx.Rate(wallet.Currency, pos.Currency)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	growth, _, err := e.applyPendingGrowth(ctx, tx, pos, now)
	if err != nil {
		return nil, err
	}
	// Growth application can mature the position; a matured position takes
	// no further deposits.
	if pos.Status != model.StatusActive {
		return nil, ErrInvalidState
	}

	pos.SnapshotValue()
	pos.Amount = pos.Amount.Add(converted)
	pos.CurrentValue = pos.CurrentValue.Add(converted)
	pos.UpdatedAt = now
	debitWallet(wallet, req.Amount, now)

	if _, err := ledger.Record(ctx, tx, ledger.Movement{
		Source:      ledger.WalletParticipant(wallet),
		Beneficiary: ledger.PositionParticipant(pos),
		Amount:      req.Amount,
		Rate:        rate,
		Kind:        model.TxnLiquidity,
		Description: "liquidity addition",
		Metadata:    map[string]string{"converted": converted.String()},
	}); err != nil {
		return nil, internal("record liquidity", err)
	}

	if err := tx.UpdateWallet(ctx, wallet); err != nil {
		return nil, internal("debit wallet", err)
	}
	if err := tx.UpdatePosition(ctx, pos); err != nil {
		return nil, internal("update position", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, internal("commit", err)
	}

	metrics.LedgerTransactions.WithLabelValues(string(model.TxnLiquidity)).Add(2)
	if growth.Outcome == GrowthApplied {
		metrics.GrowthApplications.WithLabelValues(GrowthApplied).Inc()
	}
	slog.Info("liquidity added",
		"position", pos.ID,
		"wallet", wallet.ID,
		"amount", req.Amount.String(),
		"converted", converted.String(),
	)
	e.notifier.LiquidityAdded(pos, converted)

	return pos, nil
}

// --- Withdraw ---

// WithdrawRequest takes value out of a position into a wallet.
type WithdrawRequest struct {
	PositionID string
	WalletID   string

	// Amount is in the position's currency.
	Amount decimal.Decimal
}

// WithdrawResult reports what a withdrawal moved.
type WithdrawResult struct {
	Position  *model.InvestmentPosition `json:"position"`
	Withdrawn decimal.Decimal           `json:"withdrawn"` // position currency, fee included
	Fee       decimal.Decimal           `json:"fee"`
	Credited  decimal.Decimal           `json:"credited"` // wallet currency
	Full      bool                      `json:"full"`
	Reference string                    `json:"reference"`
}

// Withdraw takes value out of an active or matured position. Amounts within
// epsilon of the current value close the position; partial withdrawals must
// not leave a remainder under the plan minimum. Early withdrawals require
// the position's withdrawal-allowed flag and pay the configured fee, which
// is deducted before conversion and credit.
func (e *Engine) Withdraw(ctx context.Context, req WithdrawRequest) (*WithdrawResult, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, internal("begin", err)
	}
	defer tx.Rollback(ctx)

	pos, err := tx.Position(ctx, req.PositionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPositionNotFound
		}
		return nil, internal("load position", err)
	}
	if pos.Status != model.StatusActive && pos.Status != model.StatusMatured {
		return nil, ErrInvalidState
	}

	wallet, err := tx.Wallet(ctx, req.WalletID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, internal("load wallet", err)
	}

	now := time.Now().UTC()
	growth, _, err := e.applyPendingGrowth(ctx, tx, pos, now)
	if err != nil {
		return nil, err
	}

	result, err := e.withdraw(ctx, tx, pos, req.Amount, now,
		ledger.WalletParticipant(wallet), wallet.Currency, model.TxnWithdrawal)
	if err != nil {
		return nil, err
	}
	creditWallet(wallet, result.Credited, now)

	if err := tx.UpdateWallet(ctx, wallet); err != nil {
		return nil, internal("credit wallet", err)
	}
	if err := tx.UpdatePosition(ctx, pos); err != nil {
		return nil, internal("update position", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, internal("commit", err)
	}

	// Position->wallet crosses the ledger boundary: two records.
	e.finishWithdrawal(result, growth, model.TxnWithdrawal, 2)
	return result, nil
}

// withdraw performs the shared withdrawal arithmetic and ledger recording
// for Withdraw and Redeem. It mutates pos; the caller persists it along with
// any wallet credit.
func (e *Engine) withdraw(
	ctx context.Context,
	tx store.Tx,
	pos *model.InvestmentPosition,
	amount decimal.Decimal,
	now time.Time,
	beneficiary ledger.Participant,
	creditCurrency string,
	kind model.TransactionKind,
) (*WithdrawResult, error) {
	value := pos.CurrentValue

	full := amount.Sub(value).Abs().LessThanOrEqual(e.epsilon)
	if !full && amount.GreaterThan(value) {
		return nil, ErrExceedsValue
	}

	if !full {
		plan, err := tx.Plan(ctx, pos.PlanID)
		if err != nil {
			return nil, internal("load plan", err)
		}
		if value.Sub(amount).LessThan(plan.MinInvestment) {
			return nil, ErrBelowMinimumRemaining
		}
	}

	early := now.Before(pos.MaturityDate)
	if early && !pos.WithdrawalAllowed {
		return nil, ErrEarlyWithdrawalNotAllowed
	}

	fee := decimal.Zero
	if early && pos.EarlyWithdrawalFee.IsPositive() {
		fee = amount.Mul(pos.EarlyWithdrawalFee).Div(decimal.NewFromInt(100)).Round(fx.Scale)
	}
	net := amount.Sub(fee)

	credited, err := e.fx.Convert(net, pos.Currency, creditCurrency)
	if err != nil {
		return nil, err
	}
	rate, err := e.fx.Rate(pos.Currency, creditCurrency)
	if err != nil {
		return nil, err
	}

	pos.SnapshotValue()
	if full {
		pos.Status = model.StatusWithdrawn
		pos.CurrentValue = decimal.Zero
		pos.Amount = decimal.Zero
	} else {
		// Principal shrinks by the fraction of current value withdrawn.
		fraction := amount.Div(value)
		pos.Amount = pos.Amount.Mul(decimal.NewFromInt(1).Sub(fraction)).Round(fx.Scale)
		pos.CurrentValue = value.Sub(amount)
	}
	pos.UpdatedAt = now

	reference := ledger.NewReference()
	if _, err := ledger.Record(ctx, tx, ledger.Movement{
		Source:      ledger.PositionParticipant(pos),
		Beneficiary: beneficiary,
		Amount:      net,
		Rate:        rate,
		Kind:        kind,
		Description: "investment withdrawal",
		Reference:   reference,
		Metadata: map[string]string{
			"gross": amount.String(),
			"fee":   fee.String(),
			"full":  fmt.Sprintf("%t", full),
		},
	}); err != nil {
		return nil, internal("record withdrawal", err)
	}

	pos.Withdrawals = append(pos.Withdrawals, model.WithdrawalRecord{
		Amount:    amount,
		Fee:       fee,
		Reference: reference,
		Date:      now,
	})

	return &WithdrawResult{
		Position:  pos,
		Withdrawn: amount,
		Fee:       fee,
		Credited:  credited,
		Full:      full,
		Reference: reference,
	}, nil
}

func (e *Engine) finishWithdrawal(result *WithdrawResult, growth GrowthResult, kind model.TransactionKind, records int) {
	scope := "partial"
	if result.Full {
		scope = "full"
	}
	if kind == model.TxnRedemption {
		scope = "redemption"
	}
	metrics.Withdrawals.WithLabelValues(scope).Inc()
	metrics.LedgerTransactions.WithLabelValues(string(kind)).Add(float64(records))
	if growth.Outcome == GrowthApplied {
		metrics.GrowthApplications.WithLabelValues(GrowthApplied).Inc()
	}
	slog.Info("withdrawal executed",
		"position", result.Position.ID,
		"amount", result.Withdrawn.String(),
		"fee", result.Fee.String(),
		"credited", result.Credited.String(),
		"full", result.Full,
		"reference", result.Reference,
	)
}

// --- Redeem ---

// RedeemRequest closes a position in full, paying out to a wallet, external
// account, or card.
type RedeemRequest struct {
	PositionID  string
	Destination model.Destination
}

// Redeem is the Withdraw variant that always closes the position, targeting
// the tagged destination. Wallet destinations are credited after currency
// conversion; external accounts and cards receive the position-currency
// amount and settle outside this engine.
func (e *Engine) Redeem(ctx context.Context, req RedeemRequest) (*WithdrawResult, error) {
	if !req.Destination.Valid() {
		return nil, ErrInvalidDestination
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, internal("begin", err)
	}
	defer tx.Rollback(ctx)

	pos, err := tx.Position(ctx, req.PositionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPositionNotFound
		}
		return nil, internal("load position", err)
	}
	if pos.Status != model.StatusActive && pos.Status != model.StatusMatured {
		return nil, ErrInvalidState
	}

	now := time.Now().UTC()
	growth, _, err := e.applyPendingGrowth(ctx, tx, pos, now)
	if err != nil {
		return nil, err
	}

	var (
		beneficiary    ledger.Participant
		creditCurrency string
		wallet         *model.Wallet
	)
	if req.Destination.Kind == model.HoldingWallet {
		wallet, err = tx.Wallet(ctx, req.Destination.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrWalletNotFound
			}
			return nil, internal("load wallet", err)
		}
		beneficiary = ledger.WalletParticipant(wallet)
		creditCurrency = wallet.Currency
	} else {
		beneficiary = ledger.ExternalParticipant(req.Destination, pos.Currency)
		creditCurrency = pos.Currency
	}

	result, err := e.withdraw(ctx, tx, pos, pos.CurrentValue, now,
		beneficiary, creditCurrency, model.TxnRedemption)
	if err != nil {
		return nil, err
	}

	if wallet != nil {
		creditWallet(wallet, result.Credited, now)
		if err := tx.UpdateWallet(ctx, wallet); err != nil {
			return nil, internal("credit wallet", err)
		}
	}
	if err := tx.UpdatePosition(ctx, pos); err != nil {
		return nil, internal("update position", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, internal("commit", err)
	}

	// Wallet destinations get the boundary-crossing pair; external
	// settlements write a single record.
	records := 1
	if wallet != nil {
		records = 2
	}
	e.finishWithdrawal(result, growth, model.TxnRedemption, records)
	return result, nil
}

// --- Cancel ---

// CancelRequest cancels an active position, refunding the principal.
type CancelRequest struct {
	PositionID string
	WalletID   string
	Reason     string
}

// Cancel refunds the principal (not the accrued value) to the wallet and
// transitions the position to cancelled. Accrued-but-unrefunded growth is
// forfeited and recorded on the cancellation record and the ledger metadata.
func (e *Engine) Cancel(ctx context.Context, req CancelRequest) (*model.InvestmentPosition, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, internal("begin", err)
	}
	defer tx.Rollback(ctx)

	pos, err := tx.Position(ctx, req.PositionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPositionNotFound
		}
		return nil, internal("load position", err)
	}
	if pos.Status != model.StatusActive {
		return nil, ErrInvalidState
	}

	wallet, err := tx.Wallet(ctx, req.WalletID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, internal("load wallet", err)
	}

	refund, err := e.fx.Convert(pos.Amount, pos.Currency, wallet.Currency)
	if err != nil {
		return nil, err
	}
	rate, err := e.fx.Rate(pos.Currency, wallet.Currency)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	forfeited := pos.CurrentValue.Sub(pos.Amount)
	principal := pos.Amount

	pos.SnapshotValue()
	pos.Status = model.StatusCancelled
	pos.CurrentValue = decimal.Zero
	pos.Cancellation = &model.CancellationRecord{
		Reason:          req.Reason,
		ForfeitedGrowth: forfeited,
		CancelledAt:     now,
	}
	pos.UpdatedAt = now
	creditWallet(wallet, refund, now)

	if _, err := ledger.Record(ctx, tx, ledger.Movement{
		Source:      ledger.PositionParticipant(pos),
		Beneficiary: ledger.WalletParticipant(wallet),
		Amount:      principal,
		Rate:        rate,
		Kind:        model.TxnCancellationRefund,
		Description: "investment cancellation refund",
		Metadata: map[string]string{
			"reason":           req.Reason,
			"forfeited_growth": forfeited.String(),
		},
	}); err != nil {
		return nil, internal("record refund", err)
	}

	if err := tx.UpdateWallet(ctx, wallet); err != nil {
		return nil, internal("credit wallet", err)
	}
	if err := tx.UpdatePosition(ctx, pos); err != nil {
		return nil, internal("update position", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, internal("commit", err)
	}

	metrics.Cancellations.Inc()
	metrics.LedgerTransactions.WithLabelValues(string(model.TxnCancellationRefund)).Add(2)
	slog.Info("position cancelled",
		"position", pos.ID,
		"refund", refund.String(),
		"forfeited", forfeited.String(),
		"reason", req.Reason,
	)
	e.notifier.PositionCancelled(pos, req.Reason)

	return pos, nil
}

// --- SimulateGrowth ---

// SimulateRequest regenerates a position's remaining schedule, an
// administrative reset used by growth simulations.
type SimulateRequest struct {
	PositionID string
	Volatility float64

	// Seed, when non-zero, makes the regenerated schedule reproducible.
	Seed int64
}

// SimulateGrowth replaces the unconsumed tail of a position's schedule with
// a freshly generated one over the remaining days, keeping the consumed
// increments as a prefix for continuity. The next-increment index and the
// last-applied date are unchanged.
func (e *Engine) SimulateGrowth(ctx context.Context, req SimulateRequest) (*model.InvestmentPosition, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, internal("begin", err)
	}
	defer tx.Rollback(ctx)

	pos, err := tx.Position(ctx, req.PositionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPositionNotFound
		}
		return nil, internal("load position", err)
	}
	if pos.Status != model.StatusActive {
		return nil, ErrInvalidState
	}

	remaining := len(pos.Schedule.Increments) - pos.Schedule.NextIndex
	if remaining <= 0 {
		return nil, ErrInvalidState
	}

	rng := e.newRand()
	if req.Seed != 0 {
		rng = rand.New(rand.NewSource(req.Seed))
	}
	sched, err := schedule.Generate(schedule.Params{
		Principal:           pos.CurrentValue,
		AnnualReturnPercent: pos.TargetAnnualReturn,
		MaturityPeriodDays:  remaining,
		Volatility:          req.Volatility,
	}, rng)
	if err != nil {
		return nil, internal("generate schedule", err)
	}

	consumed := pos.Schedule.Increments[:pos.Schedule.NextIndex]
	pos.Schedule.Increments = append(append([]decimal.Decimal(nil), consumed...), sched.Increments...)
	pos.UpdatedAt = time.Now().UTC()

	if err := tx.UpdatePosition(ctx, pos); err != nil {
		return nil, internal("update position", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, internal("commit", err)
	}

	slog.Info("schedule regenerated",
		"position", pos.ID,
		"remaining_days", remaining,
		"new_target", sched.Target.String(),
	)
	return pos, nil
}

// --- helpers ---

func debitWallet(w *model.Wallet, amount decimal.Decimal, now time.Time) {
	w.Balance = w.Balance.Sub(amount)
	w.LedgerBalance = w.LedgerBalance.Sub(amount)
	w.UpdatedAt = now
}

func creditWallet(w *model.Wallet, amount decimal.Decimal, now time.Time) {
	w.Balance = w.Balance.Add(amount)
	w.LedgerBalance = w.LedgerBalance.Add(amount)
	w.UpdatedAt = now
}

// internal wraps unexpected persistence failures. These are logged in full
// and surfaced to callers as a generic internal error.
func internal(step string, err error) error {
	slog.Error("internal engine error", "step", step, "err", err)
	return fmt.Errorf("invest: internal error (%s): %w", step, err)
}
