package lendingpool

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/google/uuid"

	"creditpool/native/common"
)

// RiskParams groups the safety limits governing pool activity, all in basis
// points of PrecisionBps.
type RiskParams struct {
	// CollateralFactorBps caps the borrowable fraction of pledged collateral.
	CollateralFactorBps uint64 `toml:"CollateralFactorBps" json:"collateralFactorBps"`
	// LiquidationThresholdBps is the debt-to-collateral ratio past which a
	// position becomes liquidatable.
	LiquidationThresholdBps uint64 `toml:"LiquidationThresholdBps" json:"liquidationThresholdBps"`
	// LiquidationBonusBps is the premium over repaid debt seized by the
	// liquidator.
	LiquidationBonusBps uint64 `toml:"LiquidationBonusBps" json:"liquidationBonusBps"`
}

// DefaultRiskParams returns the reference parameterization: 75% collateral
// factor, 80% liquidation threshold, 5% liquidation bonus.
func DefaultRiskParams() RiskParams {
	return RiskParams{
		CollateralFactorBps:     7500,
		LiquidationThresholdBps: 8000,
		LiquidationBonusBps:     500,
	}
}

// Validate ensures the parameters are internally consistent.
func (p RiskParams) Validate() error {
	if p.CollateralFactorBps == 0 || p.CollateralFactorBps >= PrecisionBps {
		return fmt.Errorf("risk params: collateral factor %d outside (0, %d)", p.CollateralFactorBps, PrecisionBps)
	}
	if p.LiquidationThresholdBps <= p.CollateralFactorBps || p.LiquidationThresholdBps > PrecisionBps {
		return fmt.Errorf("risk params: liquidation threshold %d must sit in (%d, %d]", p.LiquidationThresholdBps, p.CollateralFactorBps, PrecisionBps)
	}
	if p.LiquidationBonusBps >= PrecisionBps {
		return fmt.Errorf("risk params: liquidation bonus %d must be below %d", p.LiquidationBonusBps, PrecisionBps)
	}
	return nil
}

// poolState is the mutable accounting core. Operations work on a clone and
// commit it only on success, so a rejected call leaves the pool untouched,
// accrual included.
type poolState struct {
	totalLiquidity  *big.Int
	totalBorrowed   *big.Int
	totalDebtShares *big.Int
	lastAccrual     int64
}

func newPoolState() *poolState {
	return &poolState{
		totalLiquidity:  new(big.Int),
		totalBorrowed:   new(big.Int),
		totalDebtShares: new(big.Int),
	}
}

func (s *poolState) clone() *poolState {
	return &poolState{
		totalLiquidity:  new(big.Int).Set(s.totalLiquidity),
		totalBorrowed:   new(big.Int).Set(s.totalBorrowed),
		totalDebtShares: new(big.Int).Set(s.totalDebtShares),
		lastAccrual:     s.lastAccrual,
	}
}

func (s *poolState) availableLiquidity() *big.Int {
	available := new(big.Int).Sub(s.totalLiquidity, s.totalBorrowed)
	if available.Sign() < 0 {
		available.SetInt64(0)
	}
	return available
}

// Pool is the aggregate root for one asset class: pooled deposits, pooled
// debt, the debt share ledger, and the pause switch. Every mutating
// operation serializes on the pool mutex, folds an accrual in first, then
// performs its own transition; operations on distinct pools are independent.
type Pool struct {
	mu sync.Mutex

	id     string
	vault  string
	admin  string
	params RiskParams
	model  *InterestModel
	accrue *Accruer
	book   AssetBook

	paused bool
	state  *poolState

	deposits map[string]*DepositPosition
	borrows  map[string]*BorrowPosition
}

type pauseFlag bool

func (f pauseFlag) IsPaused(string) bool { return bool(f) }

// NewPool creates a fresh pool and returns it together with the admin
// capability token gating pause controls. The token is generated once and
// never recoverable through the API surface.
func NewPool(id string, params RiskParams, model *InterestModel, book AssetBook) (*Pool, string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, "", fmt.Errorf("lending pool: empty pool id")
	}
	if book == nil {
		return nil, "", fmt.Errorf("lending pool: asset book not configured")
	}
	if err := params.Validate(); err != nil {
		return nil, "", err
	}
	if model == nil {
		model = DefaultInterestModel()
	}
	if err := model.Validate(); err != nil {
		return nil, "", err
	}
	admin := uuid.NewString()
	pool := &Pool{
		id:       id,
		vault:    "pool/" + id + "/vault",
		admin:    admin,
		params:   params,
		model:    model.Clone(),
		accrue:   NewAccruer(model),
		book:     book,
		state:    newPoolState(),
		deposits: make(map[string]*DepositPosition),
		borrows:  make(map[string]*BorrowPosition),
	}
	return pool, admin, nil
}

// ID returns the pool identifier.
func (p *Pool) ID() string { return p.id }

// Vault returns the pool's account in the asset book.
func (p *Pool) Vault() string { return p.vault }

// Params returns the pool risk parameters.
func (p *Pool) Params() RiskParams { return p.params }

// Model returns a copy of the interest model.
func (p *Pool) Model() *InterestModel { return p.model.Clone() }

func (p *Pool) guard() error {
	if err := common.Guard(pauseFlag(p.paused), p.id); err != nil {
		return ErrPaused
	}
	return nil
}

// Deposit moves amount from the depositor into the pool and issues a
// principal-tracked receipt. No shares are minted for deposits.
func (p *Pool) Deposit(owner string, amount *big.Int, now int64) (*DepositPosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.guard(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if p.book.Balance(owner).Cmp(amount) < 0 {
		return nil, ErrInsufficientBalance
	}

	st := p.state.clone()
	p.accrue.Accrue(st, now)

	st.totalLiquidity.Add(st.totalLiquidity, amount)

	if err := p.book.Debit(owner, amount); err != nil {
		return nil, err
	}
	if err := p.book.Credit(p.vault, amount); err != nil {
		return nil, err
	}

	pos := &DepositPosition{
		ID:        uuid.NewString(),
		PoolID:    p.id,
		Owner:     owner,
		Principal: new(big.Int).Set(amount),
		CreatedAt: now,
		Status:    PositionActive,
	}
	p.deposits[pos.ID] = pos
	p.state = st
	return pos.Clone(), nil
}

// Withdraw consumes a deposit receipt and pays back exactly the recorded
// principal. Partial withdrawal is not supported; the receipt is destroyed.
func (p *Pool) Withdraw(owner, positionID string, now int64) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.guard(); err != nil {
		return nil, err
	}
	pos, ok := p.deposits[positionID]
	if !ok || pos.PoolID != p.id || pos.Owner != owner {
		return nil, ErrUnauthorized
	}

	st := p.state.clone()
	p.accrue.Accrue(st, now)

	if pos.Principal.Cmp(st.availableLiquidity()) > 0 {
		return nil, ErrInsufficientLiquidity
	}

	st.totalLiquidity.Sub(st.totalLiquidity, pos.Principal)

	if err := p.book.Debit(p.vault, pos.Principal); err != nil {
		return nil, err
	}
	if err := p.book.Credit(owner, pos.Principal); err != nil {
		return nil, err
	}

	delete(p.deposits, positionID)
	pos.Status = PositionWithdrawn
	p.state = st
	return new(big.Int).Set(pos.Principal), nil
}

// Borrow locks collateral inside the pool and pays out the requested amount,
// minting debt shares against the current share price. The collateral enters
// the pool's liquidity before the payout leaves it, so debt can never exceed
// assets actually held.
func (p *Pool) Borrow(owner string, collateral, amount *big.Int, now int64) (*BorrowPosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.guard(); err != nil {
		return nil, err
	}
	if collateral == nil || collateral.Sign() <= 0 || amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	st := p.state.clone()
	p.accrue.Accrue(st, now)

	maxBorrow := new(big.Int).Mul(collateral, new(big.Int).SetUint64(p.params.CollateralFactorBps))
	maxBorrow.Quo(maxBorrow, precision)
	if amount.Cmp(maxBorrow) > 0 {
		return nil, ErrInsufficientCollateral
	}
	if amount.Cmp(st.availableLiquidity()) > 0 {
		return nil, ErrInsufficientLiquidity
	}
	if p.book.Balance(owner).Cmp(collateral) < 0 {
		return nil, ErrInsufficientBalance
	}

	shares := sharesForAmount(amount, st.totalDebtShares, st.totalBorrowed)

	st.totalBorrowed.Add(st.totalBorrowed, amount)
	st.totalDebtShares.Add(st.totalDebtShares, shares)
	st.totalLiquidity.Add(st.totalLiquidity, collateral)
	st.totalLiquidity.Sub(st.totalLiquidity, amount)

	if err := p.book.Debit(owner, collateral); err != nil {
		return nil, err
	}
	if err := p.book.Credit(p.vault, collateral); err != nil {
		return nil, err
	}
	if err := p.book.Debit(p.vault, amount); err != nil {
		return nil, err
	}
	if err := p.book.Credit(owner, amount); err != nil {
		return nil, err
	}

	pos := &BorrowPosition{
		ID:           uuid.NewString(),
		PoolID:       p.id,
		Owner:        owner,
		Collateral:   new(big.Int).Set(collateral),
		BorrowShares: shares,
		CreatedAt:    now,
		Status:       PositionActive,
	}
	p.borrows[pos.ID] = pos
	p.state = st
	return pos.Clone(), nil
}

// Repay settles a borrow position in full. The repayment must cover the
// entire current debt; there is no partial repayment path. The pledged
// collateral is released back to the borrower and the receipt destroyed.
func (p *Pool) Repay(owner, positionID string, repayment *big.Int, now int64) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.guard(); err != nil {
		return nil, err
	}
	pos, ok := p.borrows[positionID]
	if !ok || pos.PoolID != p.id || pos.Owner != owner {
		return nil, ErrUnauthorized
	}
	if repayment == nil || repayment.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	st := p.state.clone()
	p.accrue.Accrue(st, now)

	debt := amountForShares(pos.BorrowShares, st.totalDebtShares, st.totalBorrowed)
	if repayment.Cmp(debt) < 0 {
		return nil, ErrInvalidAmount
	}
	if p.book.Balance(owner).Cmp(repayment) < 0 {
		return nil, ErrInsufficientBalance
	}

	st.totalBorrowed.Sub(st.totalBorrowed, debt)
	st.totalDebtShares.Sub(st.totalDebtShares, pos.BorrowShares)
	st.totalLiquidity.Add(st.totalLiquidity, repayment)
	if st.totalLiquidity.Cmp(pos.Collateral) < 0 {
		return nil, ErrInsufficientLiquidity
	}
	st.totalLiquidity.Sub(st.totalLiquidity, pos.Collateral)

	if err := p.book.Debit(owner, repayment); err != nil {
		return nil, err
	}
	if err := p.book.Credit(p.vault, repayment); err != nil {
		return nil, err
	}
	if err := p.book.Debit(p.vault, pos.Collateral); err != nil {
		return nil, err
	}
	if err := p.book.Credit(owner, pos.Collateral); err != nil {
		return nil, err
	}

	delete(p.borrows, positionID)
	pos.Status = PositionRepaid
	p.state = st
	return new(big.Int).Set(pos.Collateral), nil
}

// Pause flips the pool into the paused state. Requires the admin capability
// token issued at creation.
func (p *Pool) Pause(token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if token != p.admin {
		return ErrUnauthorized
	}
	if p.paused {
		return ErrAlreadyPaused
	}
	p.paused = true
	return nil
}

// Unpause lifts the pause. Requires the admin capability token.
func (p *Pool) Unpause(token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if token != p.admin {
		return ErrUnauthorized
	}
	if !p.paused {
		return ErrNotPaused
	}
	p.paused = false
	return nil
}

// VerifyAdmin reports whether the supplied token matches the pool's admin
// capability.
func (p *Pool) VerifyAdmin(token string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return token == p.admin
}

// Stats is the read-only view over the pool accounting state.
type Stats struct {
	PoolID             string   `json:"poolId"`
	TotalLiquidity     *big.Int `json:"totalLiquidity"`
	TotalBorrowed      *big.Int `json:"totalBorrowed"`
	TotalDebtShares    *big.Int `json:"totalDebtShares"`
	AvailableLiquidity *big.Int `json:"availableLiquidity"`
	UtilizationBps     uint64   `json:"utilizationBps"`
	BorrowRateBps      uint64   `json:"borrowRateBps"`
	LastAccrual        int64    `json:"lastAccrual"`
	Paused             bool     `json:"paused"`
	ActiveDeposits     int      `json:"activeDeposits"`
	ActiveBorrows      int      `json:"activeBorrows"`
}

// Stats returns the current accounting snapshot without accruing.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		PoolID:             p.id,
		TotalLiquidity:     new(big.Int).Set(p.state.totalLiquidity),
		TotalBorrowed:      new(big.Int).Set(p.state.totalBorrowed),
		TotalDebtShares:    new(big.Int).Set(p.state.totalDebtShares),
		AvailableLiquidity: p.state.availableLiquidity(),
		UtilizationBps:     p.model.UtilizationBps(p.state.totalBorrowed, p.state.totalLiquidity),
		BorrowRateBps:      p.model.BorrowRateBps(p.state.totalBorrowed, p.state.totalLiquidity),
		LastAccrual:        p.state.lastAccrual,
		Paused:             p.paused,
		ActiveDeposits:     len(p.deposits),
		ActiveBorrows:      len(p.borrows),
	}
}

// BorrowRateBps returns the current annualized borrow rate.
func (p *Pool) BorrowRateBps() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model.BorrowRateBps(p.state.totalBorrowed, p.state.totalLiquidity)
}

// DepositPosition returns a copy of an active deposit receipt.
func (p *Pool) DepositPosition(positionID string) (*DepositPosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.deposits[positionID]
	if !ok {
		return nil, ErrUnauthorized
	}
	return pos.Clone(), nil
}

// BorrowPosition returns a copy of an active borrow receipt.
func (p *Pool) BorrowPosition(positionID string) (*BorrowPosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.borrows[positionID]
	if !ok {
		return nil, ErrUnauthorized
	}
	return pos.Clone(), nil
}
