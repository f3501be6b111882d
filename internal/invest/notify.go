package invest

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/regionspay/invest-engine/internal/model"
)

// Notifier is informed of noteworthy lifecycle events. Calls are fire and
// forget: they run after the unit of work commits and must never block or
// fail the operation.
type Notifier interface {
	PositionCreated(p *model.InvestmentPosition)

	// SignificantGrowth fires only for single-day growth of at least the
	// engine's configured threshold (default 2%).
	SignificantGrowth(p *model.InvestmentPosition, increment decimal.Decimal)

	LiquidityAdded(p *model.InvestmentPosition, amount decimal.Decimal)

	PositionCancelled(p *model.InvestmentPosition, reason string)
}

// LogNotifier logs events with slog. It is the default Notifier.
type LogNotifier struct{}

func (LogNotifier) PositionCreated(p *model.InvestmentPosition) {
	slog.Info("position created",
		"position", p.ID, "owner", p.OwnerID, "plan", p.PlanID,
		"amount", p.Amount.String(), "currency", p.Currency)
}

func (LogNotifier) SignificantGrowth(p *model.InvestmentPosition, increment decimal.Decimal) {
	slog.Info("significant growth",
		"position", p.ID, "owner", p.OwnerID,
		"increment", increment.String(), "value", p.CurrentValue.String())
}

func (LogNotifier) LiquidityAdded(p *model.InvestmentPosition, amount decimal.Decimal) {
	slog.Info("liquidity added",
		"position", p.ID, "owner", p.OwnerID, "amount", amount.String())
}

func (LogNotifier) PositionCancelled(p *model.InvestmentPosition, reason string) {
	slog.Info("position cancelled",
		"position", p.ID, "owner", p.OwnerID, "reason", reason)
}

// MultiNotifier fans events out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) PositionCreated(p *model.InvestmentPosition) {
	for _, n := range m {
		n.PositionCreated(p)
	}
}

func (m MultiNotifier) SignificantGrowth(p *model.InvestmentPosition, increment decimal.Decimal) {
	for _, n := range m {
		n.SignificantGrowth(p, increment)
	}
}

func (m MultiNotifier) LiquidityAdded(p *model.InvestmentPosition, amount decimal.Decimal) {
	for _, n := range m {
		n.LiquidityAdded(p, amount)
	}
}

func (m MultiNotifier) PositionCancelled(p *model.InvestmentPosition, reason string) {
	for _, n := range m {
		n.PositionCancelled(p, reason)
	}
}
