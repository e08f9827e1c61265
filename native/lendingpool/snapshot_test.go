package lendingpool

import (
	"math/big"
	"testing"
)

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	pool, admin, book := newTestPool(t, flatRateModel())
	book.Mint(alice, big.NewInt(10_000))
	book.Mint(bob, big.NewInt(12_000))

	if _, err := pool.Deposit(alice, big.NewInt(10_000), 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	pos, err := pool.Borrow(bob, big.NewInt(10_000), big.NewInt(5_000), 100)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := pool.Pause(admin); err != nil {
		t.Fatalf("pause: %v", err)
	}

	snap := pool.Snapshot()
	restored, err := RestorePool(snap, book)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	want := pool.Stats()
	got := restored.Stats()
	if got.TotalLiquidity.Cmp(want.TotalLiquidity) != 0 ||
		got.TotalBorrowed.Cmp(want.TotalBorrowed) != 0 ||
		got.TotalDebtShares.Cmp(want.TotalDebtShares) != 0 ||
		got.LastAccrual != want.LastAccrual ||
		got.Paused != want.Paused {
		t.Fatalf("restored stats mismatch: got %+v want %+v", got, want)
	}

	// The admin capability and position registry survive the round trip.
	if !restored.VerifyAdmin(admin) {
		t.Fatalf("admin token lost in restore")
	}
	restoredPos, err := restored.BorrowPosition(pos.ID)
	if err != nil {
		t.Fatalf("borrow position lost in restore: %v", err)
	}
	if restoredPos.Collateral.Cmp(big.NewInt(10_000)) != 0 || restoredPos.Owner != bob {
		t.Fatalf("restored position mismatch: %+v", restoredPos)
	}

	// Restored pools keep operating where the original left off.
	if err := restored.Unpause(admin); err != nil {
		t.Fatalf("unpause restored pool: %v", err)
	}
	later := int64(100) + int64(secondsPerYear)
	if _, err := restored.Repay(bob, pos.ID, big.NewInt(6_000), later); err != nil {
		t.Fatalf("repay on restored pool: %v", err)
	}
}
