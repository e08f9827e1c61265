package lendingpool

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Snapshot is the serializable image of a pool, used by the storage layer to
// carry pools across restarts. It includes the admin capability token; the
// store is local and trusted.
type Snapshot struct {
	ID              string             `json:"id"`
	Vault           string             `json:"vault"`
	Admin           string             `json:"admin"`
	Params          RiskParams         `json:"params"`
	Model           InterestModel      `json:"model"`
	TotalLiquidity  *big.Int           `json:"totalLiquidity"`
	TotalBorrowed   *big.Int           `json:"totalBorrowed"`
	TotalDebtShares *big.Int           `json:"totalDebtShares"`
	LastAccrual     int64              `json:"lastAccrual"`
	Paused          bool               `json:"paused"`
	Deposits        []*DepositPosition `json:"deposits,omitempty"`
	Borrows         []*BorrowPosition  `json:"borrows,omitempty"`
}

// Snapshot captures the full pool state under the pool lock.
func (p *Pool) Snapshot() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := &Snapshot{
		ID:              p.id,
		Vault:           p.vault,
		Admin:           p.admin,
		Params:          p.params,
		Model:           *p.model,
		TotalLiquidity:  new(big.Int).Set(p.state.totalLiquidity),
		TotalBorrowed:   new(big.Int).Set(p.state.totalBorrowed),
		TotalDebtShares: new(big.Int).Set(p.state.totalDebtShares),
		LastAccrual:     p.state.lastAccrual,
		Paused:          p.paused,
	}
	for _, pos := range p.deposits {
		snap.Deposits = append(snap.Deposits, pos.Clone())
	}
	for _, pos := range p.borrows {
		snap.Borrows = append(snap.Borrows, pos.Clone())
	}
	sort.Slice(snap.Deposits, func(i, j int) bool { return snap.Deposits[i].ID < snap.Deposits[j].ID })
	sort.Slice(snap.Borrows, func(i, j int) bool { return snap.Borrows[i].ID < snap.Borrows[j].ID })
	return snap
}

// RestorePool rebuilds a pool from a stored snapshot, preserving the original
// admin token, pause flag, and position registry.
func RestorePool(snap *Snapshot, book AssetBook) (*Pool, error) {
	if snap == nil {
		return nil, fmt.Errorf("lending pool: nil snapshot")
	}
	if book == nil {
		return nil, fmt.Errorf("lending pool: asset book not configured")
	}
	id := strings.TrimSpace(snap.ID)
	if id == "" {
		return nil, fmt.Errorf("lending pool: snapshot missing pool id")
	}
	if err := snap.Params.Validate(); err != nil {
		return nil, err
	}
	model := snap.Model
	if err := model.Validate(); err != nil {
		return nil, err
	}

	vault := snap.Vault
	if vault == "" {
		vault = "pool/" + id + "/vault"
	}
	pool := &Pool{
		id:       id,
		vault:    vault,
		admin:    snap.Admin,
		params:   snap.Params,
		model:    model.Clone(),
		accrue:   NewAccruer(&model),
		book:     book,
		paused:   snap.Paused,
		state:    newPoolState(),
		deposits: make(map[string]*DepositPosition),
		borrows:  make(map[string]*BorrowPosition),
	}
	if snap.TotalLiquidity != nil {
		pool.state.totalLiquidity.Set(snap.TotalLiquidity)
	}
	if snap.TotalBorrowed != nil {
		pool.state.totalBorrowed.Set(snap.TotalBorrowed)
	}
	if snap.TotalDebtShares != nil {
		pool.state.totalDebtShares.Set(snap.TotalDebtShares)
	}
	pool.state.lastAccrual = snap.LastAccrual

	for _, pos := range snap.Deposits {
		if pos == nil || pos.ID == "" {
			continue
		}
		pool.deposits[pos.ID] = pos.Clone()
	}
	for _, pos := range snap.Borrows {
		if pos == nil || pos.ID == "" {
			continue
		}
		pool.borrows[pos.ID] = pos.Clone()
	}
	return pool, nil
}
