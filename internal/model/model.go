// Package model defines the core domain types shared across the investment
// engine. All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus is the lifecycle state of an investment position.
// Active is the only state from which the position can still change.
type PositionStatus string

const (
	StatusActive    PositionStatus = "active"
	StatusMatured   PositionStatus = "matured"
	StatusWithdrawn PositionStatus = "withdrawn"
	StatusCancelled PositionStatus = "cancelled"
)

// HoldingKind identifies the type of balance-bearing entity on one side of a
// ledger transaction.
type HoldingKind string

const (
	HoldingWallet     HoldingKind = "wallet"
	HoldingInvestment HoldingKind = "investment"
	HoldingAccount    HoldingKind = "account"
	HoldingCard       HoldingKind = "card"
)

// TransactionKind classifies the money movement a ledger transaction records.
type TransactionKind string

const (
	TxnInvestmentFunding  TransactionKind = "investment_funding"
	TxnGrowth             TransactionKind = "growth"
	TxnLiquidity          TransactionKind = "liquidity"
	TxnWithdrawal         TransactionKind = "withdrawal"
	TxnRedemption         TransactionKind = "redemption"
	TxnCancellationRefund TransactionKind = "cancellation_refund"
)

// TxnStatusCompleted is the only status the engine itself sets. There is no
// pending/settling phase in this subsystem.
const TxnStatusCompleted = "completed"

// AllocationSlice is one asset/percentage pair of a plan's allocation
// breakdown. Percentages across a plan's slices sum to 100.
type AllocationSlice struct {
	Asset   string          `json:"asset"`
	Percent decimal.Decimal `json:"percent"`
}

// InvestmentPlan is the product a position is opened against. Plans are
// read-only to the engine; only explicit admin updates mutate them.
type InvestmentPlan struct {
	ID                   string            `json:"id" db:"id"`
	Name                 string            `json:"name" db:"name"`
	Symbol               string            `json:"symbol" db:"symbol"`
	Currency             string            `json:"currency" db:"currency"` // normally USD
	MaturityPeriodDays   int               `json:"maturity_period_days" db:"maturity_period_days"`
	MinInvestment        decimal.Decimal   `json:"min_investment" db:"min_investment"`             // in plan currency
	ExpectedReturnMin    decimal.Decimal   `json:"expected_return_min" db:"expected_return_min"`   // percent
	ExpectedReturnMax    decimal.Decimal   `json:"expected_return_max" db:"expected_return_max"`   // percent
	RiskLevel            string            `json:"risk_level" db:"risk_level"`
	Allocation           []AllocationSlice `json:"allocation" db:"allocation"`
	EarlyWithdrawalFee   decimal.Decimal   `json:"early_withdrawal_fee" db:"early_withdrawal_fee"` // percent
	AllowEarlyWithdrawal bool              `json:"allow_early_withdrawal" db:"allow_early_withdrawal"`
	Active               bool              `json:"active" db:"active"`
	Featured             bool              `json:"featured" db:"featured"`
	CreatedAt            time.Time         `json:"created_at" db:"created_at"`
}

// AverageReturn returns the midpoint of the plan's expected-return range,
// the annualized rate the accrual schedule targets.
func (p *InvestmentPlan) AverageReturn() decimal.Decimal {
	return p.ExpectedReturnMin.Add(p.ExpectedReturnMax).Div(decimal.NewFromInt(2))
}

// GrowthSchedule is the precomputed accrual schedule attached to a position:
// one increment per day of the maturity period, consumed in order.
// Invariant: the increments sum exactly to the schedule's target total return.
type GrowthSchedule struct {
	Increments    []decimal.Decimal `json:"increments"`
	NextIndex     int               `json:"next_index"`
	LastAppliedOn string            `json:"last_applied_on,omitempty"` // UTC date, YYYY-MM-DD
}

// Exhausted reports whether every increment has been consumed.
func (s *GrowthSchedule) Exhausted() bool {
	return s.NextIndex >= len(s.Increments)
}

// WithdrawalRecord is one entry of a position's withdrawal history.
type WithdrawalRecord struct {
	Amount    decimal.Decimal `json:"amount"` // in position currency, fee included
	Fee       decimal.Decimal `json:"fee"`
	Reference string          `json:"reference"`
	Date      time.Time       `json:"date"`
}

// CancellationRecord captures why and when a position was cancelled.
// ForfeitedGrowth is the accrued-but-unrefunded growth at cancellation time;
// cancellation refunds principal only.
type CancellationRecord struct {
	Reason          string          `json:"reason"`
	ForfeitedGrowth decimal.Decimal `json:"forfeited_growth"`
	CancelledAt     time.Time       `json:"cancelled_at"`
}

// InvestmentPosition is a holder's stake in an investment plan.
//
// Amount is the principal; CurrentValue is principal plus applied accrual
// minus withdrawals; PreviousValue is always the value immediately before the
// most recent mutation, used to compute one-step growth/loss for display.
// Invariant: CurrentValue >= 0.
type InvestmentPosition struct {
	ID                   string              `json:"id" db:"id"`
	OwnerID              string              `json:"owner_id" db:"owner_id"`
	PlanID               string              `json:"plan_id" db:"plan_id"`
	WalletID             string              `json:"wallet_id" db:"wallet_id"`
	Currency             string              `json:"currency" db:"currency"`
	Amount               decimal.Decimal     `json:"amount" db:"amount"` // principal
	CurrentValue         decimal.Decimal     `json:"current_value" db:"current_value"`
	PreviousValue        decimal.Decimal     `json:"previous_value" db:"previous_value"`
	TargetAnnualReturn   decimal.Decimal     `json:"target_annual_return" db:"target_annual_return"` // percent
	Status               PositionStatus      `json:"status" db:"status"`
	CompoundingFrequency string              `json:"compounding_frequency" db:"compounding_frequency"`
	WithdrawalAllowed    bool                `json:"withdrawal_allowed" db:"withdrawal_allowed"`
	EarlyWithdrawalFee   decimal.Decimal     `json:"early_withdrawal_fee" db:"early_withdrawal_fee"` // percent
	InvestedAt           time.Time           `json:"invested_at" db:"invested_at"`
	MaturityDate         time.Time           `json:"maturity_date" db:"maturity_date"`
	Schedule             GrowthSchedule      `json:"schedule" db:"schedule"`
	Withdrawals          []WithdrawalRecord  `json:"withdrawals,omitempty" db:"withdrawals"`
	Cancellation         *CancellationRecord `json:"cancellation,omitempty" db:"cancellation"`
	TransactionIDs       []string            `json:"transaction_ids" db:"transaction_ids"`
	CreatedAt            time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at" db:"updated_at"`
}

// SnapshotValue records the value before a mutation so the one-step change
// remains displayable afterwards.
func (p *InvestmentPosition) SnapshotValue() {
	p.PreviousValue = p.CurrentValue
}

// Wallet is the funding source and refund target for positions. The engine
// only debits/credits it and appends transaction references; wallet creation
// and deletion belong to the wallet service.
type Wallet struct {
	ID             string          `json:"id" db:"id"`
	OwnerID        string          `json:"owner_id" db:"owner_id"`
	Currency       string          `json:"currency" db:"currency"`
	Balance        decimal.Decimal `json:"balance" db:"balance"`
	LedgerBalance  decimal.Decimal `json:"ledger_balance" db:"ledger_balance"`
	TransactionIDs []string        `json:"transaction_ids" db:"transaction_ids"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// LedgerTransaction is an immutable record of a single money movement between
// two holdings. Once created, these are never modified or deleted.
//
// Amount is denominated in the source currency; ConversionRate is
// beneficiary-amount / source-amount (1 when both sides share a currency).
type LedgerTransaction struct {
	ID                  string            `json:"id" db:"id"`
	Amount              decimal.Decimal   `json:"amount" db:"amount"`
	Currency            string            `json:"currency" db:"currency"`
	SourceID            string            `json:"source_id" db:"source_id"`
	SourceKind          HoldingKind       `json:"source_kind" db:"source_kind"`
	SourceCurrency      string            `json:"source_currency" db:"source_currency"`
	BeneficiaryID       string            `json:"beneficiary_id" db:"beneficiary_id"`
	BeneficiaryKind     HoldingKind       `json:"beneficiary_kind" db:"beneficiary_kind"`
	BeneficiaryCurrency string            `json:"beneficiary_currency" db:"beneficiary_currency"`
	ConversionRate      decimal.Decimal   `json:"conversion_rate" db:"conversion_rate"`
	Kind                TransactionKind   `json:"kind" db:"kind"`
	Status              string            `json:"status" db:"status"`
	Reference           string            `json:"reference" db:"reference"`
	Description         string            `json:"description" db:"description"`
	Metadata            map[string]string `json:"metadata,omitempty" db:"metadata"`
	CreatedAt           time.Time         `json:"created_at" db:"created_at"`
	CompletedAt         time.Time         `json:"completed_at" db:"completed_at"`
}

// Destination is a tagged variant naming where redeemed funds go:
// exactly one of wallet, external account, or card.
type Destination struct {
	Kind HoldingKind `json:"kind"`
	ID   string      `json:"id"`
}

// Valid reports whether the destination names a supported holding kind and a
// non-empty id.
func (d Destination) Valid() bool {
	if d.ID == "" {
		return false
	}
	switch d.Kind {
	case HoldingWallet, HoldingAccount, HoldingCard:
		return true
	}
	return false
}
