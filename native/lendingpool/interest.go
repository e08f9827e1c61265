package lendingpool

import (
	"fmt"
	"math/big"
)

// PrecisionBps is the fixed-point denominator shared by utilization, rates,
// and risk parameters. All rate math floors at every step so rounding can
// never be steered against the pool.
const PrecisionBps uint64 = 10_000

const secondsPerYear uint64 = 31_536_000

var precision = new(big.Int).SetUint64(PrecisionBps)

// InterestModel is the piecewise-linear kink curve mapping utilization to an
// annualized borrow rate. All fields are basis points of PrecisionBps.
type InterestModel struct {
	// BaseRateBps is the borrow rate charged at zero utilization.
	BaseRateBps uint64 `toml:"BaseRateBps" json:"baseRateBps"`
	// Slope1Bps is the rate increase accumulated linearly up to the kink.
	Slope1Bps uint64 `toml:"Slope1Bps" json:"slope1Bps"`
	// Slope2Bps is the steeper rate increase applied beyond the kink.
	Slope2Bps uint64 `toml:"Slope2Bps" json:"slope2Bps"`
	// KinkBps is the utilization where the curve changes slope.
	KinkBps uint64 `toml:"KinkBps" json:"kinkBps"`
}

// NewInterestModel constructs a kink model from basis-point parameters, e.g.
// a 2% base rate is 200 and an 80% kink is 8000.
func NewInterestModel(baseRate, slope1, slope2, kink uint64) *InterestModel {
	return &InterestModel{
		BaseRateBps: baseRate,
		Slope1Bps:   slope1,
		Slope2Bps:   slope2,
		KinkBps:     kink,
	}
}

// DefaultInterestModel mirrors a conservative production curve: 2% base,
// 10% slope to an 80% kink, then a steep 60% slope.
func DefaultInterestModel() *InterestModel {
	return NewInterestModel(200, 1000, 6000, 8000)
}

// Clone returns a copy of the model.
func (m *InterestModel) Clone() *InterestModel {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// Validate ensures the kink sits strictly inside (0, PrecisionBps).
func (m *InterestModel) Validate() error {
	if m == nil {
		return fmt.Errorf("interest model: not configured")
	}
	if m.KinkBps == 0 || m.KinkBps >= PrecisionBps {
		return fmt.Errorf("interest model: kink %d outside (0, %d)", m.KinkBps, PrecisionBps)
	}
	return nil
}

// UtilizationBps computes borrowed * PrecisionBps / liquidity, floored. A
// pool with no liquidity has zero utilization by definition.
func (m *InterestModel) UtilizationBps(borrowed, liquidity *big.Int) uint64 {
	if borrowed == nil || borrowed.Sign() <= 0 {
		return 0
	}
	if liquidity == nil || liquidity.Sign() <= 0 {
		return 0
	}
	util := new(big.Int).Mul(borrowed, precision)
	util.Quo(util, liquidity)
	if !util.IsUint64() {
		return PrecisionBps
	}
	v := util.Uint64()
	if v > PrecisionBps {
		// Debt never exceeds held assets; clamp defensively.
		v = PrecisionBps
	}
	return v
}

// BorrowRateBps derives the annualized borrow rate for the current
// utilization. Division floors at each step.
func (m *InterestModel) BorrowRateBps(borrowed, liquidity *big.Int) uint64 {
	if m == nil {
		return 0
	}
	util := m.UtilizationBps(borrowed, liquidity)
	if util == 0 {
		return m.BaseRateBps
	}
	kink := m.KinkBps
	if kink == 0 || kink >= PrecisionBps {
		// Unvalidated model; fall back to the linear region across the
		// whole range.
		return m.BaseRateBps + m.Slope1Bps*util/PrecisionBps
	}
	if util <= kink {
		return m.BaseRateBps + m.Slope1Bps*util/kink
	}
	return m.BaseRateBps + m.Slope1Bps + m.Slope2Bps*(util-kink)/(PrecisionBps-kink)
}
