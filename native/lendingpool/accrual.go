package lendingpool

import "math/big"

// Accruer lazily settles interest owed since a pool's last accrual. Every
// mutating pool operation folds an accrual in before its own transition, so
// no background timer exists; an idle pool simply defers interest until the
// next touch.
type Accruer struct {
	model *InterestModel
}

// NewAccruer wires the accrual engine to an interest model.
func NewAccruer(model *InterestModel) *Accruer {
	return &Accruer{model: model.Clone()}
}

// Accrue advances the state's debt by the interest owed between the last
// accrual and now, and moves the clock forward. The interest added is
// returned.
//
// Rules, in order:
//   - A pool that has never accrued initializes its clock without interest.
//   - Zero elapsed time or zero outstanding debt is a no-op that still
//     advances the clock.
//   - interest = borrowed * rate * elapsed / (secondsPerYear * PrecisionBps),
//     floored, so rounding always favors the pool over the borrower.
//   - Accrued debt is capped at the assets the pool actually holds; debt is
//     bookkeeping and can never exceed total liquidity.
func (a *Accruer) Accrue(st *poolState, now int64) *big.Int {
	interest := new(big.Int)
	if a == nil || st == nil {
		return interest
	}
	if st.lastAccrual == 0 {
		st.lastAccrual = now
		return interest
	}
	if now <= st.lastAccrual {
		return interest
	}
	if st.totalBorrowed.Sign() == 0 {
		st.lastAccrual = now
		return interest
	}

	elapsed := uint64(now - st.lastAccrual)
	rate := a.model.BorrowRateBps(st.totalBorrowed, st.totalLiquidity)

	interest.Mul(st.totalBorrowed, new(big.Int).SetUint64(rate))
	interest.Mul(interest, new(big.Int).SetUint64(elapsed))
	denom := new(big.Int).Mul(new(big.Int).SetUint64(secondsPerYear), precision)
	interest.Quo(interest, denom)

	headroom := new(big.Int).Sub(st.totalLiquidity, st.totalBorrowed)
	if headroom.Sign() < 0 {
		headroom.SetInt64(0)
	}
	if interest.Cmp(headroom) > 0 {
		interest.Set(headroom)
	}

	st.totalBorrowed.Add(st.totalBorrowed, interest)
	st.lastAccrual = now
	return interest
}
