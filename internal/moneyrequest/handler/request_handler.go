package moneyrequest

import (
	"net/http"

	"github.com/SwiftFiat/taskmarket-ledger/api/apistrings"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/middleware"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/models"
	"github.com/SwiftFiat/taskmarket-ledger/internal/moneyrequest/service"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/logging"
	"github.com/SwiftFiat/taskmarket-ledger/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type RequestDependencies struct {
	Router    *gin.Engine
	Logger    *logging.Logger
	Tokens    *utils.JWTToken
	Processor *service.Processor
}

type RequestHandler struct {
	router    *gin.Engine
	logger    *logging.Logger
	tokens    *utils.JWTToken
	processor *service.Processor
}

func NewRequestHandler(d *RequestDependencies) *RequestHandler {
	return &RequestHandler{
		router:    d.Router,
		logger:    d.Logger,
		tokens:    d.Tokens,
		processor: d.Processor,
	}
}

func (r *RequestHandler) RegisterRoutes() {
	serverGroupV1 := r.router.Group("/api/v1/requests")
	serverGroupV1.POST("", middleware.AuthenticatedMiddleware(r.tokens), r.createRequest)
	serverGroupV1.GET(":type", middleware.AuthenticatedMiddleware(r.tokens), r.listRequests)
	serverGroupV1.POST(":type/:id/process", middleware.AuthenticatedMiddleware(r.tokens), r.processRequest)
}

func (r *RequestHandler) createRequest(ctx *gin.Context) {
	request := struct {
		Type           string          `json:"type"`
		Amount         decimal.Decimal `json:"amount"`
		PaymentDetails string          `json:"paymentDetails"`
	}{}
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, models.NewError(apistrings.InvalidInput))
		return
	}

	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, models.NewError(apistrings.Unauthenticated))
		return
	}

	id, err := r.processor.CreateRequest(ctx, service.CreateRequestParams{
		Type:           request.Type,
		UserID:         activeUser.UserID,
		Amount:         request.Amount,
		PaymentDetails: request.PaymentDetails,
		ActorID:        activeUser.UserID,
	})
	if err != nil {
		middleware.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, models.NewSuccess(apistrings.RequestCreated, gin.H{"id": id}))
}

func (r *RequestHandler) listRequests(ctx *gin.Context) {
	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, models.NewError(apistrings.Unauthenticated))
		return
	}

	requests, err := r.processor.ListRequests(ctx, activeUser.UserID, ctx.Param("type"))
	if err != nil {
		middleware.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, models.NewSuccess(apistrings.RequestsFetched, requests))
}

func (r *RequestHandler) processRequest(ctx *gin.Context) {
	request := struct {
		UserID   string          `json:"userId"`
		Amount   decimal.Decimal `json:"amount"`
		Decision string          `json:"decision"`
	}{}
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, models.NewError(apistrings.InvalidInput))
		return
	}

	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, models.NewError(apistrings.Unauthenticated))
		return
	}

	ok, err := r.processor.Process(ctx, service.ProcessParams{
		RequestID: ctx.Param("id"),
		Type:      ctx.Param("type"),
		UserID:    request.UserID,
		Amount:    request.Amount,
		Decision:  request.Decision,
		AdminID:   activeUser.UserID,
	})
	if err != nil {
		middleware.RespondError(ctx, err)
		return
	}
	if !ok {
		ctx.JSON(http.StatusConflict, models.NewError(apistrings.RequestNotDecided))
		return
	}
	ctx.JSON(http.StatusOK, models.NewSuccess(apistrings.RequestProcessed, nil))
}
