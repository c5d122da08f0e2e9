package campaign

import (
	"net/http"

	"github.com/SwiftFiat/taskmarket-ledger/api/apistrings"
	"github.com/SwiftFiat/taskmarket-ledger/internal/campaign/service"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/middleware"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/models"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/logging"
	"github.com/SwiftFiat/taskmarket-ledger/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type CampaignDependencies struct {
	Router    *gin.Engine
	Logger    *logging.Logger
	Tokens    *utils.JWTToken
	Campaigns *service.CampaignService
}

type CampaignHandler struct {
	router    *gin.Engine
	logger    *logging.Logger
	tokens    *utils.JWTToken
	campaigns *service.CampaignService
}

func NewCampaignHandler(d *CampaignDependencies) *CampaignHandler {
	return &CampaignHandler{
		router:    d.Router,
		logger:    d.Logger,
		tokens:    d.Tokens,
		campaigns: d.Campaigns,
	}
}

func (c *CampaignHandler) RegisterRoutes() {
	serverGroupV1 := c.router.Group("/api/v1/campaigns")
	serverGroupV1.GET("", middleware.AuthenticatedMiddleware(c.tokens), c.listCampaigns)
	serverGroupV1.GET(":id", middleware.AuthenticatedMiddleware(c.tokens), c.getCampaign)
	serverGroupV1.POST(":id/deduct", middleware.AuthenticatedMiddleware(c.tokens), c.deductBudget)
}

func (c *CampaignHandler) listCampaigns(ctx *gin.Context) {
	campaigns, err := c.campaigns.ListCampaigns(ctx)
	if err != nil {
		middleware.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, models.NewSuccess(apistrings.CampaignsFetched, campaigns))
}

func (c *CampaignHandler) getCampaign(ctx *gin.Context) {
	campaign, err := c.campaigns.GetCampaign(ctx, ctx.Param("id"))
	if err != nil {
		middleware.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, models.NewSuccess(apistrings.CampaignFetched, campaign))
}

func (c *CampaignHandler) deductBudget(ctx *gin.Context) {
	request := struct {
		Amount  decimal.Decimal `json:"amount"`
		PayerID string          `json:"payerId"`
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
	if request.PayerID == "" {
		request.PayerID = activeUser.UserID
	}

	ok, err := c.campaigns.DeductBudget(ctx, service.DeductBudgetParams{
		CampaignID: ctx.Param("id"),
		Amount:     request.Amount,
		PayerID:    request.PayerID,
		ActorID:    activeUser.UserID,
	})
	if err != nil {
		middleware.RespondError(ctx, err)
		return
	}
	if !ok {
		ctx.JSON(http.StatusConflict, models.NewError(apistrings.BudgetNotDeducted))
		return
	}
	ctx.JSON(http.StatusOK, models.NewSuccess(apistrings.BudgetDeducted, nil))
}
