package lendingpool

import "math/big"

// PositionStatus tracks the lifecycle of a receipt. Borrow positions move
// Active -> Repaid or Active -> Liquidated; deposit positions move
// Active -> Withdrawn. Terminal states never transition back.
type PositionStatus uint8

const (
	PositionActive PositionStatus = iota
	PositionWithdrawn
	PositionRepaid
	PositionLiquidated
)

func (s PositionStatus) String() string {
	switch s {
	case PositionActive:
		return "active"
	case PositionWithdrawn:
		return "withdrawn"
	case PositionRepaid:
		return "repaid"
	case PositionLiquidated:
		return "liquidated"
	default:
		return "unknown"
	}
}

// DepositPosition is the receipt for a single deposit transaction. It records
// the principal 1:1; payout math never consults it beyond the recorded
// principal, and the receipt is consumed exactly once by a withdraw.
type DepositPosition struct {
	ID        string         `json:"id"`
	PoolID    string         `json:"poolId"`
	Owner     string         `json:"owner"`
	Principal *big.Int       `json:"principal"`
	CreatedAt int64          `json:"createdAt"`
	Status    PositionStatus `json:"status"`
}

// Clone returns a deep copy of the deposit receipt.
func (p *DepositPosition) Clone() *DepositPosition {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Principal != nil {
		clone.Principal = new(big.Int).Set(p.Principal)
	}
	return &clone
}

// BorrowPosition is the receipt for a single borrow transaction. Collateral
// is fixed at borrow time and reduced only by liquidation seizure; the debt
// is tracked through BorrowShares against the pool's share ledger. The owner
// is recorded so leftover collateral from a liquidation can be returned to
// the borrower rather than the liquidator.
type BorrowPosition struct {
	ID           string         `json:"id"`
	PoolID       string         `json:"poolId"`
	Owner        string         `json:"owner"`
	Collateral   *big.Int       `json:"collateral"`
	BorrowShares *big.Int       `json:"borrowShares"`
	CreatedAt    int64          `json:"createdAt"`
	Status       PositionStatus `json:"status"`
}

// Clone returns a deep copy of the borrow receipt.
func (p *BorrowPosition) Clone() *BorrowPosition {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Collateral != nil {
		clone.Collateral = new(big.Int).Set(p.Collateral)
	}
	if p.BorrowShares != nil {
		clone.BorrowShares = new(big.Int).Set(p.BorrowShares)
	}
	return &clone
}
