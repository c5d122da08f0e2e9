package wallet

import (
	"net/http"

	"github.com/SwiftFiat/taskmarket-ledger/api/apistrings"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/middleware"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/models"
	"github.com/SwiftFiat/taskmarket-ledger/internal/wallet/service"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/logging"
	"github.com/SwiftFiat/taskmarket-ledger/utils"
	"github.com/gin-gonic/gin"
)

type WalletDependencies struct {
	Router *gin.Engine
	Logger *logging.Logger
	Tokens *utils.JWTToken
	// Do not be tempted to use the entire server, only add what you need
	Ledger *service.Ledger
}

type WalletHandler struct {
	router *gin.Engine
	logger *logging.Logger
	tokens *utils.JWTToken
	ledger *service.Ledger
}

func NewWalletHandler(d *WalletDependencies) *WalletHandler {
	return &WalletHandler{
		router: d.Router,
		logger: d.Logger,
		tokens: d.Tokens,
		ledger: d.Ledger,
	}
}

func (w *WalletHandler) RegisterRoutes() {
	serverGroupV1 := w.router.Group("/api/v1/wallets")
	serverGroupV1.GET(":uid", middleware.AuthenticatedMiddleware(w.tokens), w.getWallet)
	serverGroupV1.GET(":uid/transactions", middleware.AuthenticatedMiddleware(w.tokens), w.getTransactions)
}

func (w *WalletHandler) getWallet(ctx *gin.Context) {
	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, models.NewError(apistrings.Unauthenticated))
		return
	}

	balance, err := w.ledger.GetWallet(ctx, activeUser.UserID, ctx.Param("uid"))
	if err != nil {
		middleware.RespondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, models.NewSuccess(apistrings.WalletFetched, balance))
}

func (w *WalletHandler) getTransactions(ctx *gin.Context) {
	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, models.NewError(apistrings.Unauthenticated))
		return
	}

	txs, err := w.ledger.ListTransactions(ctx, activeUser.UserID, ctx.Param("uid"))
	if err != nil {
		middleware.RespondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, models.NewSuccess(apistrings.TransactionsFetched, txs))
}
