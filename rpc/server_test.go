package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"creditpool/native/lendingpool"
	"creditpool/rpc/middleware"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *lendingpool.MemoryBook) {
	t.Helper()
	if cfg.Params == (lendingpool.RiskParams{}) {
		cfg.Params = lendingpool.DefaultRiskParams()
	}
	if cfg.Model == (lendingpool.InterestModel{}) {
		cfg.Model = *lendingpool.DefaultInterestModel()
	}
	book := lendingpool.NewMemoryBook()
	srv, err := NewServer(cfg, book, nil, nil)
	require.NoError(t, err)
	srv.nowFn = func() int64 { return 100 }
	return srv, book
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestPoolLifecycleOverHTTP(t *testing.T) {
	srv, book := newTestServer(t, Config{})
	router := srv.Router()
	book.Mint("alice", big.NewInt(10000))
	book.Mint("bob", big.NewInt(12000))

	var created createPoolResponse
	rec := doJSON(t, router, http.MethodPost, "/v1/pools", createPoolRequest{ID: "usd-main"}, &created)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "usd-main", created.PoolID)
	require.NotEmpty(t, created.AdminToken)

	// Duplicate ids are rejected.
	rec = doJSON(t, router, http.MethodPost, "/v1/pools", createPoolRequest{ID: "usd-main"}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	var deposit lendingpool.DepositPosition
	rec = doJSON(t, router, http.MethodPost, "/v1/pools/usd-main/deposit",
		depositRequest{Owner: "alice", Amount: "10000"}, &deposit)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, deposit.ID)

	var borrow lendingpool.BorrowPosition
	rec = doJSON(t, router, http.MethodPost, "/v1/pools/usd-main/borrow",
		borrowRequest{Owner: "bob", Collateral: "10000", Amount: "5000"}, &borrow)
	require.Equal(t, http.StatusCreated, rec.Code)

	var stats lendingpool.Stats
	rec = doJSON(t, router, http.MethodGet, "/v1/pools/usd-main", nil, &stats)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "15000", stats.TotalLiquidity.String())
	require.Equal(t, "5000", stats.TotalBorrowed.String())

	var repaid amountResponse
	rec = doJSON(t, router, http.MethodPost, "/v1/pools/usd-main/repay",
		repayRequest{Owner: "bob", PositionID: borrow.ID, Amount: "5000"}, &repaid)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "10000", repaid.Amount)

	var withdrawn amountResponse
	rec = doJSON(t, router, http.MethodPost, "/v1/pools/usd-main/withdraw",
		withdrawRequest{Owner: "alice", PositionID: deposit.ID}, &withdrawn)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "10000", withdrawn.Amount)
}

func TestErrorMapping(t *testing.T) {
	srv, book := newTestServer(t, Config{})
	router := srv.Router()
	book.Mint("alice", big.NewInt(10000))
	book.Mint("bob", big.NewInt(10000))

	var created createPoolResponse
	doJSON(t, router, http.MethodPost, "/v1/pools", createPoolRequest{ID: "usd-main"}, &created)
	doJSON(t, router, http.MethodPost, "/v1/pools/usd-main/deposit",
		depositRequest{Owner: "alice", Amount: "10000"}, nil)

	// Unknown pool.
	rec := doJSON(t, router, http.MethodGet, "/v1/pools/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Borrow above the collateral factor.
	rec = doJSON(t, router, http.MethodPost, "/v1/pools/usd-main/borrow",
		borrowRequest{Owner: "bob", Collateral: "10000", Amount: "7600"}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Zero amount.
	rec = doJSON(t, router, http.MethodPost, "/v1/pools/usd-main/deposit",
		depositRequest{Owner: "alice", Amount: "0"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Malformed amount.
	rec = doJSON(t, router, http.MethodPost, "/v1/pools/usd-main/deposit",
		depositRequest{Owner: "alice", Amount: "ten"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Wrong admin token.
	rec = doJSON(t, router, http.MethodPost, "/v1/pools/usd-main/pause",
		adminRequest{AdminToken: "bogus"}, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Paused pool rejects mutations with a conflict.
	rec = doJSON(t, router, http.MethodPost, "/v1/pools/usd-main/pause",
		adminRequest{AdminToken: created.AdminToken}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/v1/pools/usd-main/deposit",
		depositRequest{Owner: "alice", Amount: "100"}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	// Reads still work while paused.
	rec = doJSON(t, router, http.MethodGet, "/v1/pools/usd-main", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndLiquidatableEndpoints(t *testing.T) {
	srv, book := newTestServer(t, Config{})
	router := srv.Router()
	book.Mint("alice", big.NewInt(10000))
	book.Mint("bob", big.NewInt(10000))

	doJSON(t, router, http.MethodPost, "/v1/pools", createPoolRequest{ID: "usd-main"}, nil)
	doJSON(t, router, http.MethodPost, "/v1/pools/usd-main/deposit",
		depositRequest{Owner: "alice", Amount: "10000"}, nil)

	var borrow lendingpool.BorrowPosition
	rec := doJSON(t, router, http.MethodPost, "/v1/pools/usd-main/borrow",
		borrowRequest{Owner: "bob", Collateral: "10000", Amount: "7500"}, &borrow)
	require.Equal(t, http.StatusCreated, rec.Code)

	var health healthResponse
	rec = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/v1/pools/usd-main/borrows/%s/health", borrow.ID), nil, &health)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "10666", health.HealthFactorBps)
	require.False(t, health.Liquidatable)

	var scan struct {
		Positions []string `json:"positions"`
	}
	rec = doJSON(t, router, http.MethodGet, "/v1/pools/usd-main/liquidatable", nil, &scan)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, scan.Positions)

	rec = doJSON(t, router, http.MethodGet, "/v1/pools/usd-main/borrows/missing/health", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthMiddlewareGatesMutations(t *testing.T) {
	secret := "test-secret-material"
	srv, _ := newTestServer(t, Config{
		Auth: middleware.AuthConfig{
			Enabled:    true,
			HMACSecret: secret,
			Issuer:     "creditpool-test",
		},
	})
	router := srv.Router()

	// Missing token.
	rec := doJSON(t, router, http.MethodPost, "/v1/pools", createPoolRequest{ID: "usd-main"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Reads stay open.
	rec = doJSON(t, router, http.MethodGet, "/v1/pools", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	token := signToken(t, secret, jwt.MapClaims{
		"iss": "creditpool-test",
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(createPoolRequest{ID: "usd-main"}))
	req := httptest.NewRequest(http.MethodPost, "/v1/pools", &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	out := httptest.NewRecorder()
	router.ServeHTTP(out, req)
	require.Equal(t, http.StatusCreated, out.Code)

	// Wrong issuer.
	badToken := signToken(t, secret, jwt.MapClaims{
		"iss": "someone-else",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	buf.Reset()
	require.NoError(t, json.NewEncoder(&buf).Encode(createPoolRequest{ID: "other"}))
	req = httptest.NewRequest(http.MethodPost, "/v1/pools", &buf)
	req.Header.Set("Authorization", "Bearer "+badToken)
	out = httptest.NewRecorder()
	router.ServeHTTP(out, req)
	require.Equal(t, http.StatusUnauthorized, out.Code)
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestRateLimiterThrottles(t *testing.T) {
	srv, _ := newTestServer(t, Config{
		RateLimit: middleware.RateLimit{
			Enabled:           true,
			RequestsPerMinute: 60,
			Burst:             1,
		},
	})
	router := srv.Router()

	first := doJSON(t, router, http.MethodGet, "/v1/pools", nil, nil)
	require.Equal(t, http.StatusOK, first.Code)
	second := doJSON(t, router, http.MethodGet, "/v1/pools", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}
