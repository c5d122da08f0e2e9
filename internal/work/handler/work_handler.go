package work

import (
	"errors"
	"io"
	"net/http"

	"github.com/SwiftFiat/taskmarket-ledger/api/apistrings"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/middleware"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/models"
	"github.com/SwiftFiat/taskmarket-ledger/internal/work/service"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/logging"
	"github.com/SwiftFiat/taskmarket-ledger/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type WorkDependencies struct {
	Router *gin.Engine
	Logger *logging.Logger
	Tokens *utils.JWTToken
	Works  *service.WorkService
}

type WorkHandler struct {
	router *gin.Engine
	logger *logging.Logger
	tokens *utils.JWTToken
	works  *service.WorkService
}

func NewWorkHandler(d *WorkDependencies) *WorkHandler {
	return &WorkHandler{
		router: d.Router,
		logger: d.Logger,
		tokens: d.Tokens,
		works:  d.Works,
	}
}

func (w *WorkHandler) RegisterRoutes() {
	auth := middleware.AuthenticatedMiddleware(w.tokens)

	campaignGroupV1 := w.router.Group("/api/v1/campaigns")
	campaignGroupV1.POST(":id/apply", auth, w.apply)
	campaignGroupV1.POST(":id/submit", auth, w.submit)

	serverGroupV1 := w.router.Group("/api/v1/works")
	serverGroupV1.GET(":uid", auth, w.listWorks)
	serverGroupV1.POST(":uid/:workId/approve", auth, w.approve)
	serverGroupV1.POST(":uid/:workId/reject", auth, w.reject)
}

// bindOptional binds a JSON body that may be absent.
func bindOptional(ctx *gin.Context, v interface{}) bool {
	if err := ctx.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, models.NewError(apistrings.InvalidInput))
		return false
	}
	return true
}

func (w *WorkHandler) listWorks(ctx *gin.Context) {
	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, models.NewError(apistrings.Unauthenticated))
		return
	}

	works, err := w.works.ListWorks(ctx, activeUser.UserID, ctx.Param("uid"))
	if err != nil {
		middleware.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, models.NewSuccess(apistrings.WorksFetched, works))
}

func (w *WorkHandler) apply(ctx *gin.Context) {
	request := struct {
		UserName string `json:"userName"`
	}{}
	if !bindOptional(ctx, &request) {
		return
	}

	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, models.NewError(apistrings.Unauthenticated))
		return
	}

	work, err := w.works.ApplyToCampaign(ctx, service.ApplyParams{
		CampaignID: ctx.Param("id"),
		UserID:     activeUser.UserID,
		UserName:   request.UserName,
		ActorID:    activeUser.UserID,
	})
	if err != nil {
		middleware.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, models.NewSuccess(apistrings.AppliedToWork, work))
}

func (w *WorkHandler) submit(ctx *gin.Context) {
	request := struct {
		ProofURL string `json:"proofUrl"`
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

	work, err := w.works.SubmitWork(ctx, service.SubmitParams{
		CampaignID: ctx.Param("id"),
		UserID:     activeUser.UserID,
		ProofURL:   request.ProofURL,
		ActorID:    activeUser.UserID,
	})
	if err != nil {
		middleware.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, models.NewSuccess(apistrings.WorkSubmitted, work))
}

func (w *WorkHandler) approve(ctx *gin.Context) {
	request := struct {
		Reward     decimal.Decimal `json:"reward"`
		CampaignID string          `json:"campaignId"`
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

	ok, err := w.works.ApproveWork(ctx, service.ApproveWorkParams{
		WorkID:     ctx.Param("workId"),
		UserID:     ctx.Param("uid"),
		CampaignID: request.CampaignID,
		Reward:     request.Reward,
		AdminID:    activeUser.UserID,
	})
	if err != nil {
		middleware.RespondError(ctx, err)
		return
	}
	if !ok {
		ctx.JSON(http.StatusConflict, models.NewError(apistrings.WorkNotApproved))
		return
	}
	ctx.JSON(http.StatusOK, models.NewSuccess(apistrings.WorkApproved, nil))
}

func (w *WorkHandler) reject(ctx *gin.Context) {
	request := struct {
		CampaignID string `json:"campaignId"`
	}{}
	if !bindOptional(ctx, &request) {
		return
	}

	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, models.NewError(apistrings.Unauthenticated))
		return
	}

	ok, err := w.works.RejectWork(ctx, service.RejectWorkParams{
		WorkID:     ctx.Param("workId"),
		UserID:     ctx.Param("uid"),
		CampaignID: request.CampaignID,
		AdminID:    activeUser.UserID,
	})
	if err != nil {
		middleware.RespondError(ctx, err)
		return
	}
	if !ok {
		ctx.JSON(http.StatusConflict, models.NewError(apistrings.WorkNotRejected))
		return
	}
	ctx.JSON(http.StatusOK, models.NewSuccess(apistrings.WorkRejected, nil))
}
