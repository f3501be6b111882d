package invest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/regionspay/invest-engine/internal/fx"
	"github.com/regionspay/invest-engine/internal/invest"
	"github.com/regionspay/invest-engine/internal/model"
	"github.com/regionspay/invest-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	eng := invest.NewEngine(ms, fx.NewConverter(fx.DefaultRates()), nil, invest.Config{
		Rand: func() *rand.Rand { return rand.New(rand.NewSource(1)) },
	})
	svc := invest.NewService(eng, ms, nil)

	r := chi.NewRouter()
	svc.Routes(r)
	return ms, r
}

// seedPlan creates a test plan directly in the store.
func seedPlan(t *testing.T, ms *store.MemoryStore) *model.InvestmentPlan {
	t.Helper()
	plan := &model.InvestmentPlan{
		ID:                   "plan1",
		Name:                 "Fixed Income 30",
		Currency:             "USD",
		MaturityPeriodDays:   30,
		MinInvestment:        d(100),
		ExpectedReturnMin:    d(10),
		ExpectedReturnMax:    d(14),
		AllowEarlyWithdrawal: true,
		EarlyWithdrawalFee:   d(5),
		Active:               true,
		CreatedAt:            time.Now().UTC(),
	}
	if err := ms.InsertPlan(context.Background(), plan); err != nil {
		t.Fatalf("failed to seed plan: %v", err)
	}
	return plan
}

func seedWallet(t *testing.T, ms *store.MemoryStore, balance decimal.Decimal) *model.Wallet {
	t.Helper()
	w := &model.Wallet{
		ID: "w1", OwnerID: "u1", Currency: "USD",
		Balance: balance, LedgerBalance: balance,
	}
	if err := ms.InsertWallet(context.Background(), w); err != nil {
		t.Fatalf("failed to seed wallet: %v", err)
	}
	return w
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// --- Investment lifecycle over HTTP ---

func TestCreateInvestment_EndToEnd(t *testing.T) {
	ms, router := newTestEnv(t)
	seedPlan(t, ms)
	seedWallet(t, ms, d(5000))

	w := doJSON(t, router, "POST", "/api/v1/investments", invest.CreateInvestmentRequest{
		OwnerID: "u1", WalletID: "w1", PlanID: "plan1", Amount: d(1000),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var pos model.InvestmentPosition
	json.Unmarshal(w.Body.Bytes(), &pos)
	if pos.ID == "" {
		t.Fatal("expected non-empty position id")
	}
	if !pos.CurrentValue.Equal(d(1000)) {
		t.Errorf("value = %s, want 1000", pos.CurrentValue)
	}

	// Readable back through GET.
	w = doJSON(t, router, "GET", "/api/v1/investments/"+pos.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get investment: %d", w.Code)
	}

	// Listed under the owner.
	w = doJSON(t, router, "GET", "/api/v1/owners/u1/investments", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("owner investments: %d", w.Code)
	}
	var owned []model.InvestmentPosition
	json.Unmarshal(w.Body.Bytes(), &owned)
	if len(owned) != 1 {
		t.Errorf("owner investments = %d, want 1", len(owned))
	}

	// Listed under the funding wallet.
	w = doJSON(t, router, "GET", "/api/v1/wallets/w1/investments", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("wallet investments: %d", w.Code)
	}

	// Funding pair visible in the wallet's transaction history.
	w = doJSON(t, router, "GET", "/api/v1/wallets/w1/transactions", nil)
	var txns []model.LedgerTransaction
	json.Unmarshal(w.Body.Bytes(), &txns)
	if len(txns) != 2 {
		t.Errorf("wallet sees %d ledger records, want the funding pair", len(txns))
	}
}

func TestCreateInvestment_ErrorStatuses(t *testing.T) {
	ms, router := newTestEnv(t)
	seedPlan(t, ms)
	seedWallet(t, ms, d(150))

	cases := []struct {
		name string
		req  invest.CreateInvestmentRequest
		want int
	}{
		{"missing ids", invest.CreateInvestmentRequest{Amount: d(100)}, http.StatusBadRequest},
		{"zero amount", invest.CreateInvestmentRequest{OwnerID: "u1", WalletID: "w1", PlanID: "plan1"}, http.StatusBadRequest},
		{"unknown wallet", invest.CreateInvestmentRequest{OwnerID: "u1", WalletID: "nope", PlanID: "plan1", Amount: d(100)}, http.StatusNotFound},
		{"unknown plan", invest.CreateInvestmentRequest{OwnerID: "u1", WalletID: "w1", PlanID: "nope", Amount: d(100)}, http.StatusConflict},
		{"below minimum", invest.CreateInvestmentRequest{OwnerID: "u1", WalletID: "w1", PlanID: "plan1", Amount: d(50)}, http.StatusConflict},
		{"insufficient funds", invest.CreateInvestmentRequest{OwnerID: "u1", WalletID: "w1", PlanID: "plan1", Amount: d(500)}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, "POST", "/api/v1/investments", tc.req)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestWithdrawOverHTTP(t *testing.T) {
	ms, router := newTestEnv(t)
	seedPlan(t, ms)
	seedWallet(t, ms, d(5000))

	w := doJSON(t, router, "POST", "/api/v1/investments", invest.CreateInvestmentRequest{
		OwnerID: "u1", WalletID: "w1", PlanID: "plan1", Amount: d(1000),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d: %s", w.Code, w.Body.String())
	}
	var pos model.InvestmentPosition
	json.Unmarshal(w.Body.Bytes(), &pos)

	w = doJSON(t, router, "POST", "/api/v1/investments/"+pos.ID+"/withdraw", invest.AmountRequest{
		WalletID: "w1", Amount: d(200),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("withdraw: %d: %s", w.Code, w.Body.String())
	}

	var res invest.WithdrawResult
	json.Unmarshal(w.Body.Bytes(), &res)
	if !res.Fee.Equal(d(10)) {
		t.Errorf("fee = %s, want 10 (5%% of 200 before maturity)", res.Fee)
	}
	if !res.Credited.Equal(d(190)) {
		t.Errorf("credited = %s, want 190", res.Credited)
	}

	// Withdrawing far more than the value conflicts.
	w = doJSON(t, router, "POST", "/api/v1/investments/"+pos.ID+"/withdraw", invest.AmountRequest{
		WalletID: "w1", Amount: d(99999),
	})
	if w.Code != http.StatusConflict {
		t.Errorf("over-withdraw status = %d, want 409", w.Code)
	}
}

func TestGrowthEndpoints(t *testing.T) {
	ms, router := newTestEnv(t)
	seedPlan(t, ms)
	seedWallet(t, ms, d(5000))

	w := doJSON(t, router, "POST", "/api/v1/investments", invest.CreateInvestmentRequest{
		OwnerID: "u1", WalletID: "w1", PlanID: "plan1", Amount: d(1000),
	})
	var pos model.InvestmentPosition
	json.Unmarshal(w.Body.Bytes(), &pos)

	w = doJSON(t, router, "POST", "/api/v1/investments/"+pos.ID+"/growth", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("growth: %d: %s", w.Code, w.Body.String())
	}
	var res invest.GrowthResult
	json.Unmarshal(w.Body.Bytes(), &res)
	if res.Outcome != invest.GrowthApplied {
		t.Errorf("outcome = %q, want applied", res.Outcome)
	}

	// The batch run skips it, growth already applied today.
	w = doJSON(t, router, "POST", "/api/v1/growth/run", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("batch: %d: %s", w.Code, w.Body.String())
	}
	var batch invest.BatchResult
	json.Unmarshal(w.Body.Bytes(), &batch)
	if batch.Skipped != 1 || batch.Processed != 0 {
		t.Errorf("batch = %+v, want 1 skipped", batch)
	}
}

// --- Plans over HTTP ---

func TestPlanLifecycle(t *testing.T) {
	ms, router := newTestEnv(t)
	seedWallet(t, ms, d(5000))

	w := doJSON(t, router, "POST", "/api/v1/plans", invest.CreatePlanRequest{
		Name:               "Growth 90",
		Currency:           "USD",
		MinInvestment:      d(100),
		ExpectedReturnMin:  d(8),
		ExpectedReturnMax:  d(16),
		MaturityPeriodDays: 90,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create plan: %d: %s", w.Code, w.Body.String())
	}
	var plan model.InvestmentPlan
	json.Unmarshal(w.Body.Bytes(), &plan)
	if !plan.Active {
		t.Error("new plans should be active")
	}

	w = doJSON(t, router, "GET", "/api/v1/plans", nil)
	var plans []model.InvestmentPlan
	json.Unmarshal(w.Body.Bytes(), &plans)
	if len(plans) != 1 {
		t.Fatalf("plans = %d, want 1", len(plans))
	}

	// A live position blocks deletion.
	w = doJSON(t, router, "POST", "/api/v1/investments", invest.CreateInvestmentRequest{
		OwnerID: "u1", WalletID: "w1", PlanID: plan.ID, Amount: d(500),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create investment: %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "DELETE", "/api/v1/plans/"+plan.ID, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("delete in-use plan status = %d, want 409", w.Code)
	}

	w = doJSON(t, router, "DELETE", "/api/v1/plans/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete unknown plan status = %d, want 404", w.Code)
	}
}

func TestPlanValidation(t *testing.T) {
	_, router := newTestEnv(t)

	cases := []struct {
		name string
		req  invest.CreatePlanRequest
	}{
		{"missing name", invest.CreatePlanRequest{Currency: "USD", MaturityPeriodDays: 30}},
		{"missing currency", invest.CreatePlanRequest{Name: "x", MaturityPeriodDays: 30}},
		{"zero maturity", invest.CreatePlanRequest{Name: "x", Currency: "USD"}},
		{"inverted return range", invest.CreatePlanRequest{
			Name: "x", Currency: "USD", MaturityPeriodDays: 30,
			ExpectedReturnMin: d(10), ExpectedReturnMax: d(5),
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, "POST", "/api/v1/plans", tc.req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

// --- Wallets over HTTP ---

func TestWalletEndpoints(t *testing.T) {
	_, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/wallets", invest.CreateWalletRequest{
		OwnerID: "u9", Currency: "USD", Balance: d(250),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create wallet: %d: %s", w.Code, w.Body.String())
	}
	var wallet model.Wallet
	json.Unmarshal(w.Body.Bytes(), &wallet)
	if !wallet.LedgerBalance.Equal(d(250)) {
		t.Errorf("ledger balance = %s, want 250", wallet.LedgerBalance)
	}

	w = doJSON(t, router, "GET", "/api/v1/wallets/"+wallet.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get wallet: %d", w.Code)
	}

	w = doJSON(t, router, "GET", "/api/v1/wallets/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown wallet status = %d, want 404", w.Code)
	}

	w = doJSON(t, router, "POST", "/api/v1/wallets", invest.CreateWalletRequest{
		OwnerID: "u9", Currency: "USD", Balance: d(-5),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative balance status = %d, want 400", w.Code)
	}
}
