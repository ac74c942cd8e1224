package bootstrap

import (
	"fmt"
	"time"

	"github.com/meenmo/quantcore/calendar"
	"github.com/meenmo/quantcore/index"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/quote"
	"github.com/meenmo/quantcore/swap"
	"github.com/meenmo/quantcore/termstructure"
	"github.com/meenmo/quantcore/utils"
	"github.com/meenmo/quantcore/valuation"
)

// RateHelper ties one market quote to the curve being built.
type RateHelper interface {
	Quote() quote.Quote
	// PillarDate is the last date the implied quote depends on.
	PillarDate() time.Time
	// ImpliedQuote reprices the instrument off curve.
	ImpliedQuote(curve termstructure.YieldCurve, vc valuation.Context) (float64, error)
}

// dependent helpers read curves besides the one being bootstrapped.
type dependent interface {
	dependencies() []termstructure.YieldCurve
}

// QuoteError is the market quote minus the quote implied by curve.
func QuoteError(h RateHelper, curve termstructure.YieldCurve, vc valuation.Context) (float64, error) {
	q, err := h.Quote().Value()
	if err != nil {
		return 0, err
	}
	implied, err := h.ImpliedQuote(curve, vc)
	if err != nil {
		return 0, err
	}
	return q - implied, nil
}

// DepositHelper quotes the index fixing over one index tenor.
type DepositHelper struct {
	quote      quote.Quote
	index      *index.IborIndex
	fixingDate time.Time
	start, end time.Time
	tau        float64
}

// NewDepositHelper fixes the deposit on tradeDate, rolled to a business day.
func NewDepositHelper(q quote.Quote, idx *index.IborIndex, tradeDate time.Time) (*DepositHelper, error) {
	if q == nil {
		return nil, qerr.Invalid("no quote given")
	}
	if idx == nil {
		return nil, qerr.Invalid("no index given")
	}
	fixing := calendar.Adjust(idx.Calendar, tradeDate, calendar.Following)
	start := idx.ValueDate(fixing)
	end := idx.MaturityDate(start)
	return newRateHelper(q, idx, fixing, start, end)
}

// NewFRAHelper quotes the index rate starting monthsToStart after spot.
func NewFRAHelper(q quote.Quote, monthsToStart int, idx *index.IborIndex, tradeDate time.Time) (*DepositHelper, error) {
	if q == nil {
		return nil, qerr.Invalid("no quote given")
	}
	if idx == nil {
		return nil, qerr.Invalid("no index given")
	}
	if monthsToStart <= 0 {
		return nil, qerr.Invalid("months to start (%d) must be positive", monthsToStart)
	}
	spot := idx.ValueDate(calendar.Adjust(idx.Calendar, tradeDate, calendar.Following))
	start := calendar.Advance(idx.Calendar, spot, utils.Period{N: monthsToStart, Unit: utils.UnitMonths}, idx.Convention, idx.EndOfMonth)
	end := idx.MaturityDate(start)
	return newRateHelper(q, idx, idx.FixingDate(start), start, end)
}

func newRateHelper(q quote.Quote, idx *index.IborIndex, fixing, start, end time.Time) (*DepositHelper, error) {
	tau := utils.YearFraction(start, end, idx.DayCount)
	if tau <= 0 {
		return nil, qerr.Invalid("null accrual for %s from %s to %s", idx.Name,
			start.Format(utils.DateLayout), end.Format(utils.DateLayout))
	}
	return &DepositHelper{quote: q, index: idx, fixingDate: fixing, start: start, end: end, tau: tau}, nil
}

func (h *DepositHelper) Quote() quote.Quote { return h.quote }

func (h *DepositHelper) PillarDate() time.Time { return h.end }

// FixingDate is the date the quoted rate fixes.
func (h *DepositHelper) FixingDate() time.Time { return h.fixingDate }

// ImpliedQuote is the simply compounded forward over the deposit period.
func (h *DepositHelper) ImpliedQuote(curve termstructure.YieldCurve, _ valuation.Context) (float64, error) {
	if curve == nil {
		return 0, qerr.Invalid("term structure not set")
	}
	return termstructure.SimpleForward(curve, h.start, h.end, h.tau), nil
}

func (h *DepositHelper) String() string {
	return fmt.Sprintf("%s %s-%s", h.index.Name, h.start.Format(utils.DateLayout), h.end.Format(utils.DateLayout))
}

// SwapHelper quotes the par rate of a vanilla swap whose floating leg
// forecasts off the curve being built. A nil discount curve discounts off
// that same curve.
type SwapHelper struct {
	quote    quote.Quote
	terms    swap.Terms
	discount termstructure.YieldCurve
	pillar   time.Time

	bound termstructure.YieldCurve
	swap  *swap.VanillaSwap
}

// NewSwapHelper builds the swap once to fix the pillar date.
func NewSwapHelper(q quote.Quote, t swap.Terms, discount termstructure.YieldCurve) (*SwapHelper, error) {
	if q == nil {
		return nil, qerr.Invalid("no quote given")
	}
	s, err := t.Build()
	if err != nil {
		return nil, fmt.Errorf("swap helper: %w", err)
	}
	return &SwapHelper{quote: q, terms: t, discount: discount, pillar: s.LatestRelevantDate()}, nil
}

func (h *SwapHelper) Quote() quote.Quote { return h.quote }

func (h *SwapHelper) PillarDate() time.Time { return h.pillar }

// ImpliedQuote is the fair fixed rate with the index forecasting off curve.
// The swap is rebuilt only when curve changes.
func (h *SwapHelper) ImpliedQuote(curve termstructure.YieldCurve, vc valuation.Context) (float64, error) {
	if curve == nil {
		return 0, qerr.Invalid("term structure not set")
	}
	if h.swap == nil || h.bound != curve {
		t := h.terms
		t.Index = t.Index.WithForecast(curve)
		s, err := t.Build()
		if err != nil {
			return 0, fmt.Errorf("swap helper: %w", err)
		}
		h.swap, h.bound = s, curve
	}
	discount := h.discount
	if discount == nil {
		discount = curve
	}
	return h.swap.FairRate(discount, vc)
}

func (h *SwapHelper) dependencies() []termstructure.YieldCurve {
	if h.discount == nil {
		return nil
	}
	return []termstructure.YieldCurve{h.discount}
}

func (h *SwapHelper) String() string {
	return fmt.Sprintf("%s %s swap", h.terms.Tenor, h.terms.Index.Name)
}
