package bootstrap

import (
	"fmt"
	"math"
	"time"

	"github.com/meenmo/quantcore/black"
	"github.com/meenmo/quantcore/calendar"
	"github.com/meenmo/quantcore/index"
	"github.com/meenmo/quantcore/payoff"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/quote"
	"github.com/meenmo/quantcore/termstructure"
	"github.com/meenmo/quantcore/utils"
)

// CalibrationErrorType selects the residual a SwaptionHelper reports.
type CalibrationErrorType int

const (
	// RelativePriceError is (model - market) / market premium.
	RelativePriceError CalibrationErrorType = iota
	// PriceError is model - market premium.
	PriceError
	// ImpliedVolError is model - market Black volatility.
	ImpliedVolError
)

func (t CalibrationErrorType) String() string {
	switch t {
	case RelativePriceError:
		return "relative_price"
	case PriceError:
		return "price"
	case ImpliedVolError:
		return "implied_vol"
	default:
		return fmt.Sprintf("CalibrationErrorType(%d)", int(t))
	}
}

// SwaptionHelper ties one Black swaption volatility quote to the swap index
// it exercises into. A NaN strike is at the money; otherwise the helper
// prices the out-of-the-money side.
type SwaptionHelper struct {
	vol       quote.Quote
	index     *index.SwapIndex
	expiry    time.Time
	strike    float64
	errorType CalibrationErrorType
}

// NewSwaptionHelper fixes the exercise on expiry, rolled to a business day.
// The index must forecast off a curve.
func NewSwaptionHelper(vol quote.Quote, idx *index.SwapIndex, expiry time.Time, strike float64, errorType CalibrationErrorType) (*SwaptionHelper, error) {
	if vol == nil {
		return nil, qerr.Invalid("no volatility quote given")
	}
	if idx == nil {
		return nil, qerr.Invalid("no swap index given")
	}
	if idx.Ibor.ForecastCurve() == nil {
		return nil, qerr.Invalid("swap index %s has no forecasting curve", idx.Name)
	}
	if expiry.IsZero() {
		return nil, qerr.Invalid("swaption expiry is required")
	}
	if strike <= 0 {
		return nil, qerr.Invalid("swaption strike (%g) must be positive", strike)
	}
	if errorType < RelativePriceError || errorType > ImpliedVolError {
		return nil, qerr.Invalid("unknown calibration error type %d", int(errorType))
	}
	return &SwaptionHelper{
		vol:       vol,
		index:     idx,
		expiry:    calendar.Adjust(idx.Ibor.Calendar, expiry, calendar.Following),
		strike:    strike,
		errorType: errorType,
	}, nil
}

// NewATMSwaptionHelper is an at-the-money helper expiring expiryTenor after
// tradeDate.
func NewATMSwaptionHelper(vol quote.Quote, idx *index.SwapIndex, tradeDate time.Time, expiryTenor utils.Period) (*SwaptionHelper, error) {
	if idx == nil {
		return nil, qerr.Invalid("no swap index given")
	}
	expiry := calendar.Advance(idx.Ibor.Calendar, tradeDate, expiryTenor, calendar.Following, false)
	return NewSwaptionHelper(vol, idx, expiry, math.NaN(), RelativePriceError)
}

func (h *SwaptionHelper) Quote() quote.Quote { return h.vol }

// Expiry is the exercise and fixing date.
func (h *SwaptionHelper) Expiry() time.Time { return h.expiry }

// Index is the underlying swap index.
func (h *SwaptionHelper) Index() *index.SwapIndex { return h.index }

func (h *SwaptionHelper) dependencies() []termstructure.YieldCurve {
	out := []termstructure.YieldCurve{h.index.Ibor.ForecastCurve()}
	if h.index.Discount != nil {
		out = append(out, h.index.Discount)
	}
	return out
}

func (h *SwaptionHelper) String() string {
	return fmt.Sprintf("%s into %s", h.expiry.Format(utils.DateLayout), h.index.Name)
}

// swaptionPoint is a helper evaluated against the current curves.
type swaptionPoint struct {
	typ       payoff.OptionType
	t         float64
	forward   float64
	annuity   float64
	strike    float64
	marketVol float64
	market    float64
	errorType CalibrationErrorType
}

// point reads the quote and the underlying swap; t is the expiry time on
// the model axis.
func (h *SwaptionHelper) point(t float64) (swaptionPoint, error) {
	vol, err := h.vol.Value()
	if err != nil {
		return swaptionPoint{}, err
	}
	if vol <= 0 {
		return swaptionPoint{}, qerr.Invalid("swaption volatility (%g) must be positive", vol)
	}
	if t <= 0 {
		return swaptionPoint{}, qerr.Invalid("swaption %s has expired", h)
	}
	fwd, err := h.index.ForwardRate(h.expiry)
	if err != nil {
		return swaptionPoint{}, err
	}
	annuity, err := h.index.Annuity(h.expiry)
	if err != nil {
		return swaptionPoint{}, err
	}
	if math.IsNaN(fwd) || math.IsNaN(annuity) {
		return swaptionPoint{}, qerr.Stale("swaption %s depends on an invalid curve", h)
	}
	p := swaptionPoint{
		typ:       payoff.Call,
		t:         t,
		forward:   fwd,
		annuity:   annuity,
		strike:    h.strike,
		marketVol: vol,
		errorType: h.errorType,
	}
	if math.IsNaN(p.strike) {
		p.strike = fwd
	} else if p.strike < fwd {
		p.typ = payoff.Put
	}
	if p.market, err = p.value(vol * math.Sqrt(t)); err != nil {
		return swaptionPoint{}, err
	}
	if p.market <= 0 && p.errorType == RelativePriceError {
		return swaptionPoint{}, qerr.Numerical("swaption %s has a null market premium", h)
	}
	return p, nil
}

// value is the Black premium of a payer (call) or receiver (put) swaption
// with the annuity as discount.
func (p swaptionPoint) value(stdDev float64) (float64, error) {
	c, err := black.NewVanilla(p.typ, p.strike, p.forward, stdDev, p.annuity)
	if err != nil {
		return 0, err
	}
	return c.Value(), nil
}

// calibrationError compares the premium implied by a model variance with
// the market one.
func (p swaptionPoint) calibrationError(variance float64) (float64, error) {
	if p.errorType == ImpliedVolError {
		return math.Sqrt(variance/p.t) - p.marketVol, nil
	}
	model, err := p.value(math.Sqrt(variance))
	if err != nil {
		return 0, err
	}
	if p.errorType == PriceError {
		return model - p.market, nil
	}
	return (model - p.market) / p.market, nil
}
