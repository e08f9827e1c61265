package lendingpool

import "math/big"

// Proportional share accounting for the debt side of the pool. Deposits are
// deliberately principal-tracked instead: the deposit and debt ledgers use
// different mechanisms with subtly different floor-rounding behavior, and the
// asymmetry is part of the contract.

// sharesForAmount returns the debt shares minted for a new borrow. The first
// borrower sets the exchange rate 1:1; later mints floor against the current
// share price. A non-zero borrow never mints zero shares.
func sharesForAmount(amount, totalShares, totalBorrowed *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int)
	}
	if totalShares == nil || totalShares.Sign() == 0 || totalBorrowed == nil || totalBorrowed.Sign() == 0 {
		return new(big.Int).Set(amount)
	}
	shares := new(big.Int).Mul(amount, totalShares)
	shares.Quo(shares, totalBorrowed)
	if shares.Sign() == 0 {
		shares.SetInt64(1)
	}
	return shares
}

// amountForShares converts a position's debt shares into the amount currently
// owed, floored in the pool's favor.
func amountForShares(shares, totalShares, totalBorrowed *big.Int) *big.Int {
	if shares == nil || shares.Sign() <= 0 {
		return new(big.Int)
	}
	if totalShares == nil || totalShares.Sign() == 0 || totalBorrowed == nil {
		return new(big.Int)
	}
	amount := new(big.Int).Mul(shares, totalBorrowed)
	amount.Quo(amount, totalShares)
	return amount
}
