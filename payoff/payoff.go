// Package payoff describes option payoffs and exercise styles.
package payoff

import (
	"fmt"
	"math"
	"time"

	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/utils"
)

// OptionType is Call or Put.
type OptionType int

const (
	Put  OptionType = -1
	Call OptionType = 1
)

func (o OptionType) String() string {
	if o == Call {
		return "Call"
	}
	return "Put"
}

// ParseOptionType accepts "call"/"put" in any case, or "C"/"P".
func ParseOptionType(s string) (OptionType, error) {
	switch s {
	case "call", "Call", "CALL", "C", "c":
		return Call, nil
	case "put", "Put", "PUT", "P", "p":
		return Put, nil
	}
	return 0, qerr.Invalid("unknown option type %q", s)
}

// Kind is the payoff family.
type Kind int

const (
	PlainVanilla Kind = iota
	CashOrNothing
	AssetOrNothing
	Gap
)

func (k Kind) String() string {
	switch k {
	case CashOrNothing:
		return "CashOrNothing"
	case AssetOrNothing:
		return "AssetOrNothing"
	case Gap:
		return "Gap"
	default:
		return "Vanilla"
	}
}

// Striked is a payoff with a strike. CashPayoff is used by CashOrNothing;
// SecondStrike by Gap.
type Striked struct {
	Kind         Kind
	Type         OptionType
	Strike       float64
	CashPayoff   float64
	SecondStrike float64
}

func newStriked(k Kind, typ OptionType, strike float64) (Striked, error) {
	if typ != Call && typ != Put {
		return Striked{}, qerr.Invalid("unknown option type (%d)", typ)
	}
	if strike < 0 || math.IsNaN(strike) {
		return Striked{}, qerr.Invalid("strike (%g) must be non-negative", strike)
	}
	return Striked{Kind: k, Type: typ, Strike: strike}, nil
}

// NewPlainVanilla is max(S-K, 0) for calls, max(K-S, 0) for puts.
func NewPlainVanilla(typ OptionType, strike float64) (Striked, error) {
	return newStriked(PlainVanilla, typ, strike)
}

// NewCashOrNothing pays cash when in the money.
func NewCashOrNothing(typ OptionType, strike, cash float64) (Striked, error) {
	p, err := newStriked(CashOrNothing, typ, strike)
	p.CashPayoff = cash
	return p, err
}

// NewAssetOrNothing pays the asset when in the money.
func NewAssetOrNothing(typ OptionType, strike float64) (Striked, error) {
	return newStriked(AssetOrNothing, typ, strike)
}

// NewGap pays S-secondStrike (call) when S exceeds strike.
func NewGap(typ OptionType, strike, secondStrike float64) (Striked, error) {
	p, err := newStriked(Gap, typ, strike)
	p.SecondStrike = secondStrike
	return p, err
}

// Value is the payoff at price.
func (p Striked) Value(price float64) float64 {
	itm := (p.Type == Call && price > p.Strike) || (p.Type == Put && price < p.Strike)
	sign := float64(p.Type)
	switch p.Kind {
	case CashOrNothing:
		if itm {
			return p.CashPayoff
		}
		return 0
	case AssetOrNothing:
		if itm {
			return price
		}
		return 0
	case Gap:
		if itm {
			return sign * (price - p.SecondStrike)
		}
		return 0
	default:
		return math.Max(sign*(price-p.Strike), 0)
	}
}

// Name is a short description such as "Vanilla Call 105".
func (p Striked) Name() string {
	return fmt.Sprintf("%s %s %g", p.Kind, p.Type, p.Strike)
}

// ExerciseKind enumerates exercise styles.
type ExerciseKind int

const (
	European ExerciseKind = iota
	Bermudan
	American
)

func (k ExerciseKind) String() string {
	switch k {
	case Bermudan:
		return "Bermudan"
	case American:
		return "American"
	default:
		return "European"
	}
}

// Exercise lists the dates on which an option can be exercised.
// American exercise holds the window [Dates[0], Dates[1]].
type Exercise struct {
	Kind  ExerciseKind
	Dates []time.Time
}

// NewEuropean exercises only at expiry.
func NewEuropean(expiry time.Time) Exercise {
	return Exercise{Kind: European, Dates: []time.Time{expiry}}
}

// NewBermudan requires at least one date; dates are sorted.
func NewBermudan(dates []time.Time) (Exercise, error) {
	if len(dates) == 0 {
		return Exercise{}, qerr.Invalid("no exercise date given")
	}
	ds := make([]time.Time, len(dates))
	copy(ds, dates)
	utils.SortDates(ds)
	return Exercise{Kind: Bermudan, Dates: ds}, nil
}

// NewAmerican requires earliest <= latest.
func NewAmerican(earliest, latest time.Time) (Exercise, error) {
	if latest.Before(earliest) {
		return Exercise{}, qerr.Invalid("earliest date (%s) later than latest date (%s)",
			earliest.Format(utils.DateLayout), latest.Format(utils.DateLayout))
	}
	return Exercise{Kind: American, Dates: []time.Time{earliest, latest}}, nil
}

// LastDate is the expiry.
func (e Exercise) LastDate() time.Time {
	return e.Dates[len(e.Dates)-1]
}
