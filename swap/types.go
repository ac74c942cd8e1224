package swap

import (
	"github.com/meenmo/quantcore/qerr"
)

// Type says whether the swap pays or receives the fixed leg.
type Type int

const (
	// Receiver receives fixed and pays floating.
	Receiver Type = -1
	// Payer pays fixed and receives floating.
	Payer Type = 1
)

func (t Type) String() string {
	switch t {
	case Payer:
		return "PAY"
	case Receiver:
		return "REC"
	default:
		return "unknown"
	}
}

func (t Type) validate() error {
	if t != Payer && t != Receiver {
		return qerr.Invalid("swap type must be payer or receiver, got %d", int(t))
	}
	return nil
}

// PV contains present values for each leg and the net sum from the
// holder's side.
type PV struct {
	FixedLegPV    float64 `json:"fixed_leg_pv"`
	FloatingLegPV float64 `json:"floating_leg_pv"`
	TotalPV       float64 `json:"total_pv"`
}
