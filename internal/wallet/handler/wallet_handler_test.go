package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/SwiftFiat/taskmarket-ledger/internal/auth"
	"github.com/SwiftFiat/taskmarket-ledger/internal/wallet/domain"
	"github.com/SwiftFiat/taskmarket-ledger/internal/wallet/service"
	"github.com/SwiftFiat/taskmarket-ledger/services/cache"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/logging"
	"github.com/SwiftFiat/taskmarket-ledger/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*gin.Engine, *utils.JWTToken) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(ctx, domain.WalletPath("u1"), domain.WalletBalance{EarnedBalance: decimal.NewFromInt(75)}))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	logger := logging.NewDiscardLogger()
	tokens := utils.NewJWTToken(&utils.Config{SigningKey: "test-signing-key-0123456789"})
	guard := auth.NewGuard(s, logger)

	NewWalletHandler(&WalletDependencies{
		Router: router,
		Logger: logger,
		Tokens: tokens,
		Ledger: service.NewLedger(s, guard, cache.New(cache.Options{}), logger),
	}).RegisterRoutes()
	return router, tokens
}

func get(t *testing.T, router *gin.Engine, tokens *utils.JWTToken, uid, path string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := tokens.CreateToken(utils.TokenObject{UserID: uid, Role: auth.RoleUser})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetWallet(t *testing.T) {
	router, tokens := setup(t)

	w := get(t, router, tokens, "u1", "/api/v1/wallets/u1")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string               `json:"status"`
		Data   domain.WalletBalance `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "successful", body.Status)
	assert.True(t, body.Data.EarnedBalance.Equal(decimal.NewFromInt(75)))

	w = get(t, router, tokens, "u2", "/api/v1/wallets/u1")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetTransactions(t *testing.T) {
	router, tokens := setup(t)

	w := get(t, router, tokens, "u1", "/api/v1/wallets/u1/transactions")
	require.Equal(t, http.StatusOK, w.Code)

	w = get(t, router, tokens, "u1", "/api/v1/wallets/u1.x/transactions")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
