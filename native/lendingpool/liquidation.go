package lendingpool

import (
	"math/big"
	"sort"
)

// InfiniteHealthFactor is the sentinel returned for positions with no debt.
var InfiniteHealthFactor = new(big.Int).SetUint64(^uint64(0))

// LiquidationResult reports the settlement of a liquidation: the debt repaid
// by the liquidator, the collateral seized (debt plus bonus), and the
// leftover collateral returned to the original borrower.
type LiquidationResult struct {
	PositionID string   `json:"positionId"`
	Borrower   string   `json:"borrower"`
	Repaid     *big.Int `json:"repaid"`
	Seized     *big.Int `json:"seized"`
	Remainder  *big.Int `json:"remainder"`
}

// healthFactorBps scales collateral * liquidationThreshold / debt into
// PrecisionBps units; below PrecisionBps the position is liquidatable.
func healthFactorBps(collateral, debt *big.Int, thresholdBps uint64) *big.Int {
	if debt == nil || debt.Sign() == 0 {
		return new(big.Int).Set(InfiniteHealthFactor)
	}
	if collateral == nil {
		return new(big.Int)
	}
	hf := new(big.Int).Mul(collateral, new(big.Int).SetUint64(thresholdBps))
	return hf.Quo(hf, debt)
}

// seizableCollateral computes debt * (PrecisionBps + bonus) / PrecisionBps,
// floored.
func seizableCollateral(debt *big.Int, bonusBps uint64) *big.Int {
	seize := new(big.Int).Mul(debt, new(big.Int).SetUint64(PrecisionBps+bonusBps))
	return seize.Quo(seize, precision)
}

// liquidationThresholdAmount computes collateral * threshold / PrecisionBps,
// floored. Debt at or below this amount keeps the position healthy.
func liquidationThresholdAmount(collateral *big.Int, thresholdBps uint64) *big.Int {
	threshold := new(big.Int).Mul(collateral, new(big.Int).SetUint64(thresholdBps))
	return threshold.Quo(threshold, precision)
}

// Liquidate lets any caller settle an unhealthy borrow position. The caller
// repays the full current debt and receives the debt plus the liquidation
// bonus out of the pledged collateral; whatever collateral is left over goes
// back to the original borrower. Equality with the threshold is still
// healthy, and the bonus can never dig past the pledged collateral.
func (p *Pool) Liquidate(liquidator, positionID string, repayment *big.Int, now int64) (*LiquidationResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.guard(); err != nil {
		return nil, err
	}
	pos, ok := p.borrows[positionID]
	if !ok || pos.PoolID != p.id {
		return nil, ErrUnauthorized
	}
	if repayment == nil || repayment.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	st := p.state.clone()
	p.accrue.Accrue(st, now)

	debt := amountForShares(pos.BorrowShares, st.totalDebtShares, st.totalBorrowed)
	if debt.Sign() == 0 {
		return nil, ErrPositionNotLiquidatable
	}
	if debt.Cmp(liquidationThresholdAmount(pos.Collateral, p.params.LiquidationThresholdBps)) <= 0 {
		return nil, ErrPositionNotLiquidatable
	}
	if repayment.Cmp(debt) < 0 {
		return nil, ErrInvalidAmount
	}
	seize := seizableCollateral(debt, p.params.LiquidationBonusBps)
	if seize.Cmp(pos.Collateral) > 0 {
		return nil, ErrInsufficientCollateral
	}
	if p.book.Balance(liquidator).Cmp(repayment) < 0 {
		return nil, ErrInsufficientBalance
	}

	remainder := new(big.Int).Sub(pos.Collateral, seize)

	st.totalBorrowed.Sub(st.totalBorrowed, debt)
	st.totalDebtShares.Sub(st.totalDebtShares, pos.BorrowShares)
	st.totalLiquidity.Add(st.totalLiquidity, repayment)
	st.totalLiquidity.Sub(st.totalLiquidity, seize)
	st.totalLiquidity.Sub(st.totalLiquidity, remainder)
	if st.totalLiquidity.Sign() < 0 || st.totalLiquidity.Cmp(st.totalBorrowed) < 0 {
		return nil, ErrInsufficientLiquidity
	}

	if err := p.book.Debit(liquidator, repayment); err != nil {
		return nil, err
	}
	if err := p.book.Credit(p.vault, repayment); err != nil {
		return nil, err
	}
	if err := p.book.Debit(p.vault, seize); err != nil {
		return nil, err
	}
	if err := p.book.Credit(liquidator, seize); err != nil {
		return nil, err
	}
	if remainder.Sign() > 0 {
		if err := p.book.Debit(p.vault, remainder); err != nil {
			return nil, err
		}
		if err := p.book.Credit(pos.Owner, remainder); err != nil {
			return nil, err
		}
	}

	delete(p.borrows, positionID)
	pos.Status = PositionLiquidated
	p.state = st
	return &LiquidationResult{
		PositionID: positionID,
		Borrower:   pos.Owner,
		Repaid:     new(big.Int).Set(debt),
		Seized:     seize,
		Remainder:  remainder,
	}, nil
}

// HealthFactor projects the position's health factor at now, in PrecisionBps
// units, without committing the accrual. Zero debt yields the infinite
// sentinel.
func (p *Pool) HealthFactor(positionID string, now int64) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.borrows[positionID]
	if !ok || pos.PoolID != p.id {
		return nil, ErrUnauthorized
	}
	st := p.state.clone()
	p.accrue.Accrue(st, now)
	debt := amountForShares(pos.BorrowShares, st.totalDebtShares, st.totalBorrowed)
	return healthFactorBps(pos.Collateral, debt, p.params.LiquidationThresholdBps), nil
}

// Liquidatable reports whether the position could be liquidated at now.
func (p *Pool) Liquidatable(positionID string, now int64) (bool, error) {
	hf, err := p.HealthFactor(positionID, now)
	if err != nil {
		return false, err
	}
	return hf.Cmp(precision) < 0, nil
}

// LiquidatableBorrows scans every active borrow position and returns the IDs
// of those whose projected health factor at now has dropped below 1.0.
func (p *Pool) LiquidatableBorrows(now int64) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.state.clone()
	p.accrue.Accrue(st, now)

	var out []string
	for id, pos := range p.borrows {
		debt := amountForShares(pos.BorrowShares, st.totalDebtShares, st.totalBorrowed)
		hf := healthFactorBps(pos.Collateral, debt, p.params.LiquidationThresholdBps)
		if hf.Cmp(precision) < 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
