package lendingpool

import "errors"

var (
	// ErrPaused is returned by every mutating operation while the pool is
	// paused.
	ErrPaused = errors.New("lending pool: pool is paused")
	// ErrNotPaused is returned when unpausing a pool that is not paused.
	ErrNotPaused = errors.New("lending pool: pool is not paused")
	// ErrAlreadyPaused is returned when pausing a pool twice.
	ErrAlreadyPaused = errors.New("lending pool: pool already paused")
	// ErrInvalidAmount covers zero amounts and repayments below the full
	// current debt.
	ErrInvalidAmount = errors.New("lending pool: invalid amount")
	// ErrInsufficientCollateral is returned when a borrow exceeds the
	// collateral factor or a liquidation seizure exceeds the pledged
	// collateral.
	ErrInsufficientCollateral = errors.New("lending pool: insufficient collateral")
	// ErrInsufficientLiquidity is returned when a withdraw or borrow exceeds
	// the unborrowed liquidity held by the pool.
	ErrInsufficientLiquidity = errors.New("lending pool: insufficient liquidity")
	// ErrPositionNotLiquidatable is returned when liquidation targets a
	// healthy position.
	ErrPositionNotLiquidatable = errors.New("lending pool: position not liquidatable")
	// ErrUnauthorized covers pool-reference mismatches, foreign position
	// access, and admin calls without the capability token.
	ErrUnauthorized = errors.New("lending pool: unauthorized")
	// ErrInsufficientBalance is surfaced when the asset book cannot cover a
	// transfer into the pool.
	ErrInsufficientBalance = errors.New("lending pool: insufficient balance")
)
