package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/regionspay/invest-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision;
// schedules, withdrawal histories, and metadata are stored as JSONB.
//
// Reads inside a unit of work use SELECT ... FOR UPDATE so concurrent
// operations against the same wallet or position serialize on row locks:
// two concurrent debits can never both observe the same balance.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const planColumns = `id, name, symbol, currency, maturity_period_days,
       min_investment::TEXT, expected_return_min::TEXT, expected_return_max::TEXT,
       risk_level, allocation, early_withdrawal_fee::TEXT,
       allow_early_withdrawal, active, featured, created_at`

func scanPlan(row pgx.Row) (*model.InvestmentPlan, error) {
	var (
		p                  model.InvestmentPlan
		minInv, rMin, rMax string
		fee                string
		allocation         []byte
	)
	err := row.Scan(&p.ID, &p.Name, &p.Symbol, &p.Currency, &p.MaturityPeriodDays,
		&minInv, &rMin, &rMax,
		&p.RiskLevel, &allocation, &fee,
		&p.AllowEarlyWithdrawal, &p.Active, &p.Featured, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.MinInvestment, _ = decimal.NewFromString(minInv)
	p.ExpectedReturnMin, _ = decimal.NewFromString(rMin)
	p.ExpectedReturnMax, _ = decimal.NewFromString(rMax)
	p.EarlyWithdrawalFee, _ = decimal.NewFromString(fee)
	if len(allocation) > 0 {
		if err := json.Unmarshal(allocation, &p.Allocation); err != nil {
			return nil, fmt.Errorf("decode plan allocation: %w", err)
		}
	}
	return &p, nil
}

const walletColumns = `id, owner_id, currency, balance::TEXT, ledger_balance::TEXT,
       transaction_ids, created_at, updated_at`

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	var (
		w                      model.Wallet
		balance, ledgerBalance string
	)
	err := row.Scan(&w.ID, &w.OwnerID, &w.Currency, &balance, &ledgerBalance,
		&w.TransactionIDs, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.Balance, _ = decimal.NewFromString(balance)
	w.LedgerBalance, _ = decimal.NewFromString(ledgerBalance)
	return &w, nil
}

const positionColumns = `id, owner_id, plan_id, wallet_id, currency,
       amount::TEXT, current_value::TEXT, previous_value::TEXT,
       target_annual_return::TEXT, status, compounding_frequency,
       withdrawal_allowed, early_withdrawal_fee::TEXT,
       invested_at, maturity_date, schedule, withdrawals, cancellation,
       transaction_ids, created_at, updated_at`

func scanPosition(row pgx.Row) (*model.InvestmentPosition, error) {
	var (
		p                                model.InvestmentPosition
		amount, current, previous        string
		targetReturn, fee                string
		schedule, withdrawals, cancelled []byte
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.PlanID, &p.WalletID, &p.Currency,
		&amount, &current, &previous,
		&targetReturn, &p.Status, &p.CompoundingFrequency,
		&p.WithdrawalAllowed, &fee,
		&p.InvestedAt, &p.MaturityDate, &schedule, &withdrawals, &cancelled,
		&p.TransactionIDs, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Amount, _ = decimal.NewFromString(amount)
	p.CurrentValue, _ = decimal.NewFromString(current)
	p.PreviousValue, _ = decimal.NewFromString(previous)
	p.TargetAnnualReturn, _ = decimal.NewFromString(targetReturn)
	p.EarlyWithdrawalFee, _ = decimal.NewFromString(fee)
	if len(schedule) > 0 {
		if err := json.Unmarshal(schedule, &p.Schedule); err != nil {
			return nil, fmt.Errorf("decode position schedule: %w", err)
		}
	}
	if len(withdrawals) > 0 {
		if err := json.Unmarshal(withdrawals, &p.Withdrawals); err != nil {
			return nil, fmt.Errorf("decode position withdrawals: %w", err)
		}
	}
	if len(cancelled) > 0 {
		if err := json.Unmarshal(cancelled, &p.Cancellation); err != nil {
			return nil, fmt.Errorf("decode position cancellation: %w", err)
		}
	}
	return &p, nil
}

func notFound(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", what, id, err)
}

// --- Store reads ---

func (s *PostgresStore) Plan(ctx context.Context, id string) (*model.InvestmentPlan, error) {
	p, err := scanPlan(s.pool.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "plan", id)
	}
	return p, nil
}

func (s *PostgresStore) ListPlans(ctx context.Context) ([]model.InvestmentPlan, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+planColumns+` FROM plans ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []model.InvestmentPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

func (s *PostgresStore) InsertPlan(ctx context.Context, p *model.InvestmentPlan) error {
	allocation, err := json.Marshal(p.Allocation)
	if err != nil {
		return fmt.Errorf("encode plan allocation: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO plans (id, name, symbol, currency, maturity_period_days,
		    min_investment, expected_return_min, expected_return_max,
		    risk_level, allocation, early_withdrawal_fee,
		    allow_early_withdrawal, active, featured, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC,
		    $9, $10, $11::NUMERIC, $12, $13, $14, $15)`,
		p.ID, p.Name, p.Symbol, p.Currency, p.MaturityPeriodDays,
		p.MinInvestment.String(), p.ExpectedReturnMin.String(), p.ExpectedReturnMax.String(),
		p.RiskLevel, allocation, p.EarlyWithdrawalFee.String(),
		p.AllowEarlyWithdrawal, p.Active, p.Featured, p.CreatedAt,
	)
	return err
}

func (s *PostgresStore) DeletePlan(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM plans
		 WHERE id = $1
		   AND NOT EXISTS (
		     SELECT 1 FROM positions
		     WHERE plan_id = $1 AND status IN ('active', 'matured'))`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing deleted: distinguish missing plan from guarded plan.
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM plans WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("plan %s: %w", id, ErrPlanInUse)
}

func (s *PostgresStore) Wallet(ctx context.Context, id string) (*model.Wallet, error) {
	w, err := scanWallet(s.pool.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "wallet", id)
	}
	return w, nil
}

func (s *PostgresStore) InsertWallet(ctx context.Context, w *model.Wallet) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO wallets (id, owner_id, currency, balance, ledger_balance,
		    transaction_ids, created_at, updated_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7, $8)`,
		w.ID, w.OwnerID, w.Currency, w.Balance.String(), w.LedgerBalance.String(),
		w.TransactionIDs, w.CreatedAt, w.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) Position(ctx context.Context, id string) (*model.InvestmentPosition, error) {
	p, err := scanPosition(s.pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "position", id)
	}
	return p, nil
}

func (s *PostgresStore) ListPositionsByOwner(ctx context.Context, ownerID string) ([]model.InvestmentPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+`
		 FROM positions
		 WHERE id IN (SELECT position_id FROM owner_positions WHERE owner_id = $1)
		 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPositions(rows)
}

func (s *PostgresStore) ListActivePositions(ctx context.Context) ([]model.InvestmentPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+`
		 FROM positions WHERE status = 'active' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPositions(rows)
}

func collectPositions(rows pgx.Rows) ([]model.InvestmentPosition, error) {
	var positions []model.InvestmentPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}

const ledgerColumns = `id, amount::TEXT, currency,
       source_id, source_kind, source_currency,
       beneficiary_id, beneficiary_kind, beneficiary_currency,
       conversion_rate::TEXT, kind, status, reference, description, metadata,
       created_at, completed_at`

func scanLedgerTransaction(row pgx.Row) (*model.LedgerTransaction, error) {
	var (
		t            model.LedgerTransaction
		amount, rate string
		metadata     []byte
	)
	err := row.Scan(&t.ID, &amount, &t.Currency,
		&t.SourceID, &t.SourceKind, &t.SourceCurrency,
		&t.BeneficiaryID, &t.BeneficiaryKind, &t.BeneficiaryCurrency,
		&rate, &t.Kind, &t.Status, &t.Reference, &t.Description, &metadata,
		&t.CreatedAt, &t.CompletedAt)
	if err != nil {
		return nil, err
	}
	t.Amount, _ = decimal.NewFromString(amount)
	t.ConversionRate, _ = decimal.NewFromString(rate)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode transaction metadata: %w", err)
		}
	}
	return &t, nil
}

func (s *PostgresStore) LedgerTransactionsByHolding(ctx context.Context, holdingID string) ([]model.LedgerTransaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ledgerColumns+`
		 FROM ledger_transactions
		 WHERE source_id = $1 OR beneficiary_id = $1
		 ORDER BY created_at`, holdingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []model.LedgerTransaction
	for rows.Next() {
		t, err := scanLedgerTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

// --- Unit of work ---

type postgresTx struct {
	tx pgx.Tx
}

// Begin opens a unit of work backed by a database transaction.
func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &postgresTx{tx: tx}, nil
}

func (t *postgresTx) Plan(ctx context.Context, id string) (*model.InvestmentPlan, error) {
	p, err := scanPlan(t.tx.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "plan", id)
	}
	return p, nil
}

func (t *postgresTx) Wallet(ctx context.Context, id string) (*model.Wallet, error) {
	w, err := scanWallet(t.tx.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "wallet", id)
	}
	return w, nil
}

func (t *postgresTx) Position(ctx context.Context, id string) (*model.InvestmentPosition, error) {
	p, err := scanPosition(t.tx.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "position", id)
	}
	return p, nil
}

func (t *postgresTx) InsertPosition(ctx context.Context, p *model.InvestmentPosition) error {
	schedule, withdrawals, cancellation, err := encodePositionJSON(p)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx,
		`INSERT INTO positions (id, owner_id, plan_id, wallet_id, currency,
		    amount, current_value, previous_value, target_annual_return,
		    status, compounding_frequency, withdrawal_allowed, early_withdrawal_fee,
		    invested_at, maturity_date, schedule, withdrawals, cancellation,
		    transaction_ids, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5,
		    $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC,
		    $10, $11, $12, $13::NUMERIC,
		    $14, $15, $16, $17, $18, $19, $20, $21)`,
		p.ID, p.OwnerID, p.PlanID, p.WalletID, p.Currency,
		p.Amount.String(), p.CurrentValue.String(), p.PreviousValue.String(),
		p.TargetAnnualReturn.String(),
		p.Status, p.CompoundingFrequency, p.WithdrawalAllowed, p.EarlyWithdrawalFee.String(),
		p.InvestedAt, p.MaturityDate, schedule, withdrawals, cancellation,
		p.TransactionIDs, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (t *postgresTx) UpdatePosition(ctx context.Context, p *model.InvestmentPosition) error {
	schedule, withdrawals, cancellation, err := encodePositionJSON(p)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE positions
		 SET amount = $2::NUMERIC, current_value = $3::NUMERIC,
		     previous_value = $4::NUMERIC, status = $5,
		     schedule = $6, withdrawals = $7, cancellation = $8,
		     transaction_ids = $9, updated_at = $10
		 WHERE id = $1`,
		p.ID, p.Amount.String(), p.CurrentValue.String(),
		p.PreviousValue.String(), p.Status,
		schedule, withdrawals, cancellation,
		p.TransactionIDs, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

func (t *postgresTx) UpdateWallet(ctx context.Context, w *model.Wallet) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE wallets
		 SET balance = $2::NUMERIC, ledger_balance = $3::NUMERIC,
		     transaction_ids = $4, updated_at = $5
		 WHERE id = $1`,
		w.ID, w.Balance.String(), w.LedgerBalance.String(),
		w.TransactionIDs, w.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet %s: %w", w.ID, ErrNotFound)
	}
	return nil
}

func (t *postgresTx) InsertLedgerTransaction(ctx context.Context, txn *model.LedgerTransaction) error {
	metadata, err := json.Marshal(txn.Metadata)
	if err != nil {
		return fmt.Errorf("encode transaction metadata: %w", err)
	}
	_, err = t.tx.Exec(ctx,
		`INSERT INTO ledger_transactions (id, amount, currency,
		    source_id, source_kind, source_currency,
		    beneficiary_id, beneficiary_kind, beneficiary_currency,
		    conversion_rate, kind, status, reference, description, metadata,
		    created_at, completed_at)
		 VALUES ($1, $2::NUMERIC, $3, $4, $5, $6, $7, $8, $9,
		    $10::NUMERIC, $11, $12, $13, $14, $15, $16, $17)`,
		txn.ID, txn.Amount.String(), txn.Currency,
		txn.SourceID, txn.SourceKind, txn.SourceCurrency,
		txn.BeneficiaryID, txn.BeneficiaryKind, txn.BeneficiaryCurrency,
		txn.ConversionRate.String(), txn.Kind, txn.Status, txn.Reference,
		txn.Description, metadata,
		txn.CreatedAt, txn.CompletedAt,
	)
	return err
}

func (t *postgresTx) AppendOwnerPosition(ctx context.Context, ownerID, positionID string) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO owner_positions (owner_id, position_id)
		 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		ownerID, positionID)
	return err
}

func (t *postgresTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func encodePositionJSON(p *model.InvestmentPosition) (schedule, withdrawals, cancellation []byte, err error) {
	if schedule, err = json.Marshal(p.Schedule); err != nil {
		return nil, nil, nil, fmt.Errorf("encode position schedule: %w", err)
	}
	if withdrawals, err = json.Marshal(p.Withdrawals); err != nil {
		return nil, nil, nil, fmt.Errorf("encode position withdrawals: %w", err)
	}
	if p.Cancellation != nil {
		if cancellation, err = json.Marshal(p.Cancellation); err != nil {
			return nil, nil, nil, fmt.Errorf("encode position cancellation: %w", err)
		}
	}
	return schedule, withdrawals, cancellation, nil
}
