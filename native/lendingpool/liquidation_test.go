package lendingpool

import (
	"errors"
	"math/big"
	"testing"
)

// seedBorrow sets up a 10000 deposit by alice and a collateral-10000,
// amount-7500 borrow by bob at t=100 under the flat 20% model, returning the
// borrow receipt. Debt grows by 1 unit every 21024 seconds.
func seedBorrow(t *testing.T) (*Pool, *MemoryBook, *BorrowPosition) {
	t.Helper()
	pool, _, book := newTestPool(t, flatRateModel())
	book.Mint(alice, big.NewInt(10_000))
	book.Mint(bob, big.NewInt(10_000))

	if _, err := pool.Deposit(alice, big.NewInt(10_000), 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	pos, err := pool.Borrow(bob, big.NewInt(10_000), big.NewInt(7_500), 100)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	return pool, book, pos
}

// debtAfter returns the instant at which the seeded borrow's debt reaches the
// given value: 7500 principal plus one unit of interest per 21024 seconds.
func debtAfter(debt int64) int64 {
	return 100 + (debt-7_500)*21_024
}

func TestLiquidateSeizesBonusAndReturnsRemainder(t *testing.T) {
	pool, book, pos := seedBorrow(t)
	book.Mint(carol, big.NewInt(9_000))

	// Debt accrues to 8500 against a 8000 liquidation threshold.
	now := debtAfter(8_500)

	hf, err := pool.HealthFactor(pos.ID, now)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	// 10000 * 8000 / 8500 = 9411, below 1.0 in precision units.
	if hf.Cmp(big.NewInt(9_411)) != 0 {
		t.Fatalf("unexpected health factor: %s", hf)
	}
	if ok, err := pool.Liquidatable(pos.ID, now); err != nil || !ok {
		t.Fatalf("expected liquidatable position, ok=%v err=%v", ok, err)
	}

	res, err := pool.Liquidate(carol, pos.ID, big.NewInt(8_500), now)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if res.Repaid.Cmp(big.NewInt(8_500)) != 0 {
		t.Fatalf("unexpected repaid: %s", res.Repaid)
	}
	// 8500 * 10500 / 10000 = 8925.
	if res.Seized.Cmp(big.NewInt(8_925)) != 0 {
		t.Fatalf("unexpected seizure: %s", res.Seized)
	}
	if res.Remainder.Cmp(big.NewInt(1_075)) != 0 {
		t.Fatalf("unexpected remainder: %s", res.Remainder)
	}
	if res.Borrower != bob {
		t.Fatalf("unexpected borrower: %s", res.Borrower)
	}

	// The remainder goes back to the original borrower, not the liquidator.
	if bal := book.Balance(bob); bal.Cmp(big.NewInt(8_575)) != 0 {
		t.Fatalf("unexpected borrower balance: %s", bal)
	}
	if bal := book.Balance(carol); bal.Cmp(big.NewInt(9_425)) != 0 {
		t.Fatalf("unexpected liquidator balance: %s", bal)
	}

	stats := pool.Stats()
	if stats.TotalBorrowed.Sign() != 0 || stats.TotalDebtShares.Sign() != 0 {
		t.Fatalf("debt not cleared: borrowed=%s shares=%s", stats.TotalBorrowed, stats.TotalDebtShares)
	}
	// 12500 held + 8500 repay - 8925 seizure - 1075 remainder.
	if stats.TotalLiquidity.Cmp(big.NewInt(11_000)) != 0 {
		t.Fatalf("unexpected liquidity: %s", stats.TotalLiquidity)
	}
	if _, err := pool.BorrowPosition(pos.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("position must be destroyed, got %v", err)
	}
	assertPoolInvariants(t, pool)
}

func TestLiquidateHealthyPositionRejected(t *testing.T) {
	pool, book, pos := seedBorrow(t)
	book.Mint(carol, big.NewInt(9_000))

	// Debt exactly at the threshold is still healthy.
	now := debtAfter(8_000)
	hf, err := pool.HealthFactor(pos.ID, now)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if hf.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("expected health factor exactly 1.0, got %s", hf)
	}
	if ok, _ := pool.Liquidatable(pos.ID, now); ok {
		t.Fatalf("position at the threshold must not be liquidatable")
	}
	if _, err := pool.Liquidate(carol, pos.ID, big.NewInt(8_000), now); !errors.Is(err, ErrPositionNotLiquidatable) {
		t.Fatalf("expected ErrPositionNotLiquidatable, got %v", err)
	}
	assertPoolInvariants(t, pool)
}

func TestLiquidateRepaymentMustCoverDebt(t *testing.T) {
	pool, book, pos := seedBorrow(t)
	book.Mint(carol, big.NewInt(9_000))

	now := debtAfter(8_500)
	before := pool.Stats()
	if _, err := pool.Liquidate(carol, pos.ID, big.NewInt(8_000), now); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	after := pool.Stats()
	if before.TotalBorrowed.Cmp(after.TotalBorrowed) != 0 {
		t.Fatalf("failed liquidation must not commit accrual: %s -> %s", before.TotalBorrowed, after.TotalBorrowed)
	}
}

func TestLiquidateBonusCappedByCollateral(t *testing.T) {
	pool, book, pos := seedBorrow(t)
	book.Mint(carol, big.NewInt(10_000))

	// Debt 9600: seizure would be 10080 against 10000 pledged.
	now := debtAfter(9_600)
	if _, err := pool.Liquidate(carol, pos.ID, big.NewInt(9_600), now); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
	assertPoolInvariants(t, pool)
}

func TestHealthFactorInfiniteWithoutDebt(t *testing.T) {
	hf := healthFactorBps(big.NewInt(10_000), new(big.Int), 8_000)
	if hf.Cmp(InfiniteHealthFactor) != 0 {
		t.Fatalf("expected infinite sentinel, got %s", hf)
	}
}

func TestLiquidatableBorrowsScan(t *testing.T) {
	pool, book, bobPos := seedBorrow(t)
	daveAccount := "dave"
	book.Mint(daveAccount, big.NewInt(20_000))

	// Dave borrows conservatively against heavy collateral at the same
	// instant, sharing the debt index with bob.
	davePos, err := pool.Borrow(daveAccount, big.NewInt(20_000), big.NewInt(2_500), 100)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}

	// Two years at flat 20% grow the 10000 debt pool to 14000: bob's 7500
	// shares owe 10500 against an 8000 threshold, dave's 2500 shares owe
	// 3500 against 16000.
	now := int64(100) + 2*int64(secondsPerYear)
	ids := pool.LiquidatableBorrows(now)
	found := map[string]bool{}
	for _, id := range ids {
		found[id] = true
	}
	if !found[bobPos.ID] {
		t.Fatalf("expected bob's position in scan, got %v", ids)
	}
	if found[davePos.ID] {
		t.Fatalf("dave's overcollateralized position must stay healthy, got %v", ids)
	}
}
