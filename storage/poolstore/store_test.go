package poolstore

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"creditpool/native/lendingpool"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "pool.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPoolSnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)

	book := lendingpool.NewMemoryBook()
	book.Mint("alice", big.NewInt(10_000))
	pool, admin, err := lendingpool.NewPool("usd-main", lendingpool.DefaultRiskParams(), lendingpool.DefaultInterestModel(), book)
	require.NoError(t, err)
	_, err = pool.Deposit("alice", big.NewInt(10_000), 100)
	require.NoError(t, err)

	require.NoError(t, store.SavePool(pool.Snapshot()))

	snap, err := store.LoadPool("usd-main")
	require.NoError(t, err)
	require.Equal(t, "usd-main", snap.ID)
	require.Zero(t, snap.TotalLiquidity.Cmp(big.NewInt(10_000)))
	require.Len(t, snap.Deposits, 1)

	restored, err := lendingpool.RestorePool(snap, book)
	require.NoError(t, err)
	require.True(t, restored.VerifyAdmin(admin))
}

func TestLoadPoolMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.LoadPool("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListAndDeletePools(t *testing.T) {
	store := newTestStore(t)
	book := lendingpool.NewMemoryBook()
	for _, id := range []string{"alpha", "beta"} {
		pool, _, err := lendingpool.NewPool(id, lendingpool.DefaultRiskParams(), lendingpool.DefaultInterestModel(), book)
		require.NoError(t, err)
		require.NoError(t, store.SavePool(pool.Snapshot()))
	}

	snaps, err := store.ListPools()
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.Equal(t, "alpha", snaps[0].ID)

	require.NoError(t, store.DeletePool("alpha"))
	snaps, err = store.ListPools()
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, "beta", snaps[0].ID)
}

func TestBalancesRoundTrip(t *testing.T) {
	store := newTestStore(t)

	book := lendingpool.NewMemoryBook()
	book.Mint("alice", big.NewInt(10_000))
	book.Mint("pool/usd-main/vault", big.NewInt(7_500))
	require.NoError(t, store.SaveBalances(book.Accounts()))

	restored, err := store.RestoreBook()
	require.NoError(t, err)
	require.Zero(t, restored.Balance("alice").Cmp(big.NewInt(10_000)))
	require.Zero(t, restored.Balance("pool/usd-main/vault").Cmp(big.NewInt(7_500)))
	require.Zero(t, restored.Balance("unknown").Sign())

	// A later save replaces the image wholesale.
	book2 := lendingpool.NewMemoryBook()
	book2.Mint("bob", big.NewInt(42))
	require.NoError(t, store.SaveBalances(book2.Accounts()))
	balances, err := store.LoadBalances()
	require.NoError(t, err)
	require.Len(t, balances, 1)
	require.Zero(t, balances["bob"].Cmp(big.NewInt(42)))
}
