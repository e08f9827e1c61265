package poolstore

import (
	"encoding/json"
	"errors"
	"math/big"
	"time"

	bolt "go.etcd.io/bbolt"

	"creditpool/native/lendingpool"
)

var (
	bucketPools    = []byte("pools")
	bucketBalances = []byte("balances")

	// ErrNotFound is returned when a pool snapshot does not exist.
	ErrNotFound = errors.New("pool not found")
)

// Store persists pool snapshots and asset-book balances in BoltDB so a
// restarted daemon resumes exactly where it stopped.
type Store struct {
	db *bolt.DB
}

// New initialises (and migrates) the BoltDB-backed store.
func New(path string, options *bolt.Options) (*Store, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketPools, bucketBalances} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying Bolt database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SavePool writes the snapshot under its pool id.
func (s *Store) SavePool(snap *lendingpool.Snapshot) error {
	if snap == nil || snap.ID == "" {
		return errors.New("poolstore: snapshot missing pool id")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		payload, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketPools).Put([]byte(snap.ID), payload)
	})
}

// LoadPool fetches the snapshot for a pool id.
func (s *Store) LoadPool(id string) (*lendingpool.Snapshot, error) {
	var snap lendingpool.Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketPools).Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &snap)
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// DeletePool removes a pool snapshot. Deleting an absent pool is a no-op.
func (s *Store) DeletePool(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPools).Delete([]byte(id))
	})
}

// ListPools returns every stored snapshot in key order.
func (s *Store) ListPools() ([]*lendingpool.Snapshot, error) {
	var snaps []*lendingpool.Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPools).ForEach(func(_, raw []byte) error {
			var snap lendingpool.Snapshot
			if err := json.Unmarshal(raw, &snap); err != nil {
				return err
			}
			snaps = append(snaps, &snap)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// SaveBalances replaces the persisted asset-book image with the supplied
// account balances.
func (s *Store) SaveBalances(balances map[string]*big.Int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketBalances); err != nil {
			return err
		}
		bucket, err := tx.CreateBucket(bucketBalances)
		if err != nil {
			return err
		}
		for account, amount := range balances {
			if account == "" || amount == nil {
				continue
			}
			if err := bucket.Put([]byte(account), []byte(amount.String())); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadBalances reads the persisted asset-book image.
func (s *Store) LoadBalances() (map[string]*big.Int, error) {
	balances := make(map[string]*big.Int)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBalances).ForEach(func(account, raw []byte) error {
			amount, ok := new(big.Int).SetString(string(raw), 10)
			if !ok {
				return errors.New("poolstore: corrupt balance for " + string(account))
			}
			balances[string(account)] = amount
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

// RestoreBook rebuilds an in-memory asset book from the persisted balances.
func (s *Store) RestoreBook() (*lendingpool.MemoryBook, error) {
	balances, err := s.LoadBalances()
	if err != nil {
		return nil, err
	}
	book := lendingpool.NewMemoryBook()
	for account, amount := range balances {
		book.Mint(account, amount)
	}
	return book, nil
}
