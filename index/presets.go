package index

import (
	"strings"

	"github.com/meenmo/quantcore/calendar"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/termstructure"
	"github.com/meenmo/quantcore/utils"
)

// Lookup builds a preset index by name, case-insensitively.
func Lookup(name string, forecast termstructure.YieldCurve) (*IborIndex, error) {
	switch n := Name(strings.ToUpper(strings.TrimSpace(name))); n {
	case EURIBOR1M, EURIBOR3M, EURIBOR6M, EURIBOR12M:
		return Euribor(utils.MustPeriod(strings.TrimPrefix(string(n), "EURIBOR")), forecast), nil
	case ESTR12M:
		return NewIborIndex(ESTR12M, utils.MustPeriod("12M"), 2, calendar.TARGET,
			calendar.ModifiedFollowing, true, utils.Act360, forecast)
	default:
		return nil, qerr.Invalid("unknown index %q", name)
	}
}
