// Package ledger records money movements between holdings as immutable,
// paired transaction records.
//
// A movement that crosses the wallet/investment boundary produces two
// records — one wallet-side, one investment-side — sharing one reference, so
// each holding's transaction history is self-contained. Both records and the
// holdings' transaction-id appends happen inside the caller's unit of work;
// this package never opens its own transaction.
package ledger

import (
	"context"
	cryptoRand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/regionspay/invest-engine/internal/model"
	"github.com/regionspay/invest-engine/internal/store"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	// Seed a PRNG from crypto/rand so reference entropy is unpredictable.
	// ulid.Monotonic keeps references generated within the same millisecond
	// lexicographically increasing.
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// NewReference returns a globally unique, time-sortable transaction
// reference (millisecond timestamp + random suffix).
func NewReference() string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), mono)
	if err != nil {
		// Only possible if time goes backwards or entropy fails.
		panic(err)
	}
	return "TXN-" + id.String()
}

// Participant is one side of a movement. Wallet or Position is set for
// internal holdings so the recorder can append transaction ids in place;
// external accounts and cards carry neither.
type Participant struct {
	Kind     model.HoldingKind
	ID       string
	Currency string
	Wallet   *model.Wallet
	Position *model.InvestmentPosition
}

// WalletParticipant builds a Participant from a wallet.
func WalletParticipant(w *model.Wallet) Participant {
	return Participant{Kind: model.HoldingWallet, ID: w.ID, Currency: w.Currency, Wallet: w}
}

// PositionParticipant builds a Participant from an investment position.
func PositionParticipant(p *model.InvestmentPosition) Participant {
	return Participant{Kind: model.HoldingInvestment, ID: p.ID, Currency: p.Currency, Position: p}
}

// ExternalParticipant builds a Participant for an external account or card.
func ExternalParticipant(d model.Destination, currency string) Participant {
	return Participant{Kind: d.Kind, ID: d.ID, Currency: currency}
}

// Movement describes one money transfer to record.
//
// Amount is denominated in the source currency; Rate is
// beneficiary-amount / source-amount. A Reference is generated when empty.
type Movement struct {
	Source      Participant
	Beneficiary Participant
	Amount      decimal.Decimal
	Rate        decimal.Decimal
	Kind        model.TransactionKind
	Description string
	Reference   string
	Metadata    map[string]string
}

// Record creates the ledger transaction record(s) for a movement, inserts
// them through the unit of work, and appends their ids to both participating
// holdings' transaction-id lists.
//
// Boundary-crossing movements (wallet↔investment) yield two records; all
// others yield one. Records are created with status completed and a
// completion timestamp — this engine does not model a settling phase.
func Record(ctx context.Context, tx store.Tx, mv Movement) ([]*model.LedgerTransaction, error) {
	if mv.Reference == "" {
		mv.Reference = NewReference()
	}

	now := time.Now().UTC()
	build := func() *model.LedgerTransaction {
		return &model.LedgerTransaction{
			ID:                  uuid.New().String(),
			Amount:              mv.Amount,
			Currency:            mv.Source.Currency,
			SourceID:            mv.Source.ID,
			SourceKind:          mv.Source.Kind,
			SourceCurrency:      mv.Source.Currency,
			BeneficiaryID:       mv.Beneficiary.ID,
			BeneficiaryKind:     mv.Beneficiary.Kind,
			BeneficiaryCurrency: mv.Beneficiary.Currency,
			ConversionRate:      mv.Rate,
			Kind:                mv.Kind,
			Status:              model.TxnStatusCompleted,
			Reference:           mv.Reference,
			Description:         mv.Description,
			Metadata:            mv.Metadata,
			CreatedAt:           now,
			CompletedAt:         now,
		}
	}

	records := []*model.LedgerTransaction{build()}
	if crossesBoundary(mv.Source.Kind, mv.Beneficiary.Kind) {
		records = append(records, build())
	}

	for i, rec := range records {
		if err := tx.InsertLedgerTransaction(ctx, rec); err != nil {
			return nil, fmt.Errorf("record %s transaction: %w", mv.Kind, err)
		}
		// First record belongs to the source holding's history, second (when
		// present) to the beneficiary's; a single record is appended to both
		// sides, once when they are the same holding.
		switch {
		case len(records) == 1:
			appendRef(mv.Source, rec.ID)
			if mv.Beneficiary.ID != mv.Source.ID || mv.Beneficiary.Kind != mv.Source.Kind {
				appendRef(mv.Beneficiary, rec.ID)
			}
		case i == 0:
			appendRef(mv.Source, rec.ID)
		default:
			appendRef(mv.Beneficiary, rec.ID)
		}
	}

	return records, nil
}

// crossesBoundary reports whether the movement spans the wallet/investment
// boundary and therefore needs one record per side.
func crossesBoundary(a, b model.HoldingKind) bool {
	return (a == model.HoldingWallet && b == model.HoldingInvestment) ||
		(a == model.HoldingInvestment && b == model.HoldingWallet)
}

// appendRef appends a transaction id to an internal holding's list.
// External holdings keep no list here.
func appendRef(p Participant, txID string) {
	if p.Wallet != nil {
		p.Wallet.TransactionIDs = append(p.Wallet.TransactionIDs, txID)
	}
	if p.Position != nil {
		p.Position.TransactionIDs = append(p.Position.TransactionIDs, txID)
	}
}
