package rpc

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"creditpool/native/lendingpool"
)

const maxBodyBytes = 1 << 16 // 64 KiB

type createPoolRequest struct {
	ID     string                     `json:"id"`
	Params *lendingpool.RiskParams    `json:"params,omitempty"`
	Model  *lendingpool.InterestModel `json:"model,omitempty"`
}

type createPoolResponse struct {
	PoolID     string `json:"poolId"`
	Vault      string `json:"vault"`
	AdminToken string `json:"adminToken"`
}

type depositRequest struct {
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

type withdrawRequest struct {
	Owner      string `json:"owner"`
	PositionID string `json:"positionId"`
}

type borrowRequest struct {
	Owner      string `json:"owner"`
	Collateral string `json:"collateral"`
	Amount     string `json:"amount"`
}

type repayRequest struct {
	Owner      string `json:"owner"`
	PositionID string `json:"positionId"`
	Amount     string `json:"amount"`
}

type liquidateRequest struct {
	Liquidator string `json:"liquidator"`
	PositionID string `json:"positionId"`
	Amount     string `json:"amount"`
}

type adminRequest struct {
	AdminToken string `json:"adminToken"`
}

type amountResponse struct {
	Amount string `json:"amount"`
}

type rateResponse struct {
	PoolID         string `json:"poolId"`
	BorrowRateBps  uint64 `json:"borrowRateBps"`
	UtilizationBps uint64 `json:"utilizationBps"`
}

type healthResponse struct {
	PositionID      string `json:"positionId"`
	HealthFactorBps string `json:"healthFactorBps"`
	Liquidatable    bool   `json:"liquidatable"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"pools": s.poolIDs()})
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		http.Error(w, "pool id required", http.StatusBadRequest)
		return
	}
	params := s.cfg.Params
	if req.Params != nil {
		params = *req.Params
	}
	model := s.cfg.Model
	if req.Model != nil {
		model = *req.Model
	}

	pool, admin, err := lendingpool.NewPool(id, params, &model, s.book)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.AddPool(pool); err != nil {
		writeError(w, err)
		return
	}
	s.persist(pool)
	s.logger.Info("pool created", "pool", id)
	writeJSON(w, http.StatusCreated, createPoolResponse{
		PoolID:     pool.ID(),
		Vault:      pool.Vault(),
		AdminToken: admin,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	pool, err := s.pool(chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool.Stats())
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	pool, err := s.pool(chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	stats := pool.Stats()
	writeJSON(w, http.StatusOK, rateResponse{
		PoolID:         pool.ID(),
		BorrowRateBps:  stats.BorrowRateBps,
		UtilizationBps: stats.UtilizationBps,
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	pool, err := s.pool(chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req depositRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	start := time.Now()
	pos, err := pool.Deposit(req.Owner, amount, s.nowFn())
	s.observe(pool.ID(), "deposit", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	s.persist(pool)
	s.refreshGauges(pool)
	writeJSON(w, http.StatusCreated, pos)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	pool, err := s.pool(chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req withdrawRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	start := time.Now()
	amount, err := pool.Withdraw(req.Owner, req.PositionID, s.nowFn())
	s.observe(pool.ID(), "withdraw", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	s.persist(pool)
	s.refreshGauges(pool)
	writeJSON(w, http.StatusOK, amountResponse{Amount: amount.String()})
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	pool, err := s.pool(chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req borrowRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	collateral, ok := parseAmount(w, req.Collateral)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	start := time.Now()
	pos, err := pool.Borrow(req.Owner, collateral, amount, s.nowFn())
	s.observe(pool.ID(), "borrow", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	s.persist(pool)
	s.refreshGauges(pool)
	writeJSON(w, http.StatusCreated, pos)
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	pool, err := s.pool(chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req repayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	start := time.Now()
	released, err := pool.Repay(req.Owner, req.PositionID, amount, s.nowFn())
	s.observe(pool.ID(), "repay", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	s.persist(pool)
	s.refreshGauges(pool)
	writeJSON(w, http.StatusOK, amountResponse{Amount: released.String()})
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	pool, err := s.pool(chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req liquidateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	start := time.Now()
	result, err := pool.Liquidate(req.Liquidator, req.PositionID, amount, s.nowFn())
	s.observe(pool.ID(), "liquidate", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	s.persist(pool)
	s.refreshGauges(pool)
	s.logger.Info("position liquidated",
		"pool", pool.ID(),
		"position", result.PositionID,
		"repaid", result.Repaid.String(),
		"seized", result.Seized.String(),
	)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.handlePauseFlip(w, r, true)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	s.handlePauseFlip(w, r, false)
}

func (s *Server) handlePauseFlip(w http.ResponseWriter, r *http.Request, pause bool) {
	pool, err := s.pool(chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req adminRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	op := "unpause"
	if pause {
		op = "pause"
	}
	start := time.Now()
	if pause {
		err = pool.Pause(req.AdminToken)
	} else {
		err = pool.Unpause(req.AdminToken)
	}
	s.observe(pool.ID(), op, start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	s.persist(pool)
	s.logger.Info("pool pause flag changed", "pool", pool.ID(), "paused", pause)
	writeJSON(w, http.StatusOK, map[string]bool{"paused": pause})
}

func (s *Server) handleGetDeposit(w http.ResponseWriter, r *http.Request) {
	pool, err := s.pool(chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	pos, err := pool.DepositPosition(chi.URLParam(r, "positionID"))
	if err != nil {
		http.Error(w, "position not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleGetBorrow(w http.ResponseWriter, r *http.Request) {
	pool, err := s.pool(chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	pos, err := pool.BorrowPosition(chi.URLParam(r, "positionID"))
	if err != nil {
		http.Error(w, "position not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleHealthFactor(w http.ResponseWriter, r *http.Request) {
	pool, err := s.pool(chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	positionID := chi.URLParam(r, "positionID")
	now := s.nowFn()
	hf, err := pool.HealthFactor(positionID, now)
	if err != nil {
		http.Error(w, "position not found", http.StatusNotFound)
		return
	}
	factor := "inf"
	if hf.Cmp(lendingpool.InfiniteHealthFactor) != 0 {
		factor = hf.String()
	}
	liquidatable, _ := pool.Liquidatable(positionID, now)
	writeJSON(w, http.StatusOK, healthResponse{
		PositionID:      positionID,
		HealthFactorBps: factor,
		Liquidatable:    liquidatable,
	})
}

func (s *Server) handleLiquidatable(w http.ResponseWriter, r *http.Request) {
	pool, err := s.pool(chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	ids := pool.LiquidatableBorrows(s.nowFn())
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"positions": ids})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func parseAmount(w http.ResponseWriter, raw string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return nil, false
	}
	return amount, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrPoolNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrPoolExists):
		status = http.StatusConflict
	case errors.Is(err, lendingpool.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, lendingpool.ErrPaused):
		status = http.StatusConflict
	case errors.Is(err, lendingpool.ErrAlreadyPaused),
		errors.Is(err, lendingpool.ErrNotPaused),
		errors.Is(err, lendingpool.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, lendingpool.ErrInsufficientCollateral),
		errors.Is(err, lendingpool.ErrInsufficientLiquidity),
		errors.Is(err, lendingpool.ErrInsufficientBalance),
		errors.Is(err, lendingpool.ErrPositionNotLiquidatable):
		status = http.StatusUnprocessableEntity
	}
	http.Error(w, err.Error(), status)
}
