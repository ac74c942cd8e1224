package swap

import (
	"fmt"
	"time"

	"github.com/meenmo/quantcore/calendar"
	"github.com/meenmo/quantcore/index"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/schedule"
	"github.com/meenmo/quantcore/utils"
)

// Terms describe a swap the way it is quoted: a tenor from the spot date,
// optionally forward starting. Schedules follow the index calendar and
// roll backward from maturity.
type Terms struct {
	Type      Type
	Nominal   float64
	TradeDate time.Time

	// ForwardStart delays the effective date past spot.
	ForwardStart utils.Period
	Tenor        utils.Period

	FixedRate     float64
	FixedTenor    utils.Period
	FixedDayCount utils.DayCount

	Index  *index.IborIndex
	Spread float64
}

// Dates returns the effective and maturity dates.
func (t Terms) Dates() (effective, maturity time.Time) {
	idx := t.Index
	spot := idx.ValueDate(calendar.Adjust(idx.Calendar, t.TradeDate, calendar.Following))
	effective = spot
	if !t.ForwardStart.IsZero() {
		effective = calendar.Advance(idx.Calendar, spot, t.ForwardStart, idx.Convention, idx.EndOfMonth)
	}
	maturity = calendar.Advance(idx.Calendar, effective, t.Tenor, idx.Convention, idx.EndOfMonth)
	return effective, maturity
}

func (t Terms) schedule(effective, maturity time.Time, tenor utils.Period) (*schedule.Schedule, error) {
	return schedule.New(schedule.Params{
		Effective:             effective,
		Termination:           maturity,
		Tenor:                 tenor,
		Calendar:              t.Index.Calendar,
		Convention:            t.Index.Convention,
		TerminationConvention: t.Index.Convention,
		Rule:                  schedule.Backward,
		EndOfMonth:            t.Index.EndOfMonth,
	})
}

// Build generates both schedules and the swap.
func (t Terms) Build() (*VanillaSwap, error) {
	if t.Index == nil {
		return nil, qerr.Invalid("no index given")
	}
	if t.Tenor.IsZero() || t.FixedTenor.IsZero() {
		return nil, qerr.Invalid("swap and fixed leg tenors are required")
	}
	if t.TradeDate.IsZero() {
		return nil, qerr.Invalid("trade date is required")
	}
	effective, maturity := t.Dates()
	fixed, err := t.schedule(effective, maturity, t.FixedTenor)
	if err != nil {
		return nil, fmt.Errorf("fixed schedule: %w", err)
	}
	floating, err := t.schedule(effective, maturity, t.Index.Tenor)
	if err != nil {
		return nil, fmt.Errorf("floating schedule: %w", err)
	}
	dc := t.FixedDayCount
	if dc == "" {
		dc = utils.Thirty360
	}
	return NewVanillaSwap(VanillaSwapParams{
		Type:              t.Type,
		Nominal:           t.Nominal,
		FixedSchedule:     fixed,
		FixedRate:         t.FixedRate,
		FixedDayCount:     dc,
		FloatSchedule:     floating,
		Index:             t.Index,
		Spread:            t.Spread,
		PaymentConvention: t.Index.Convention,
	})
}
