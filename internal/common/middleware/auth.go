package middleware

import (
	"net/http"
	"strings"

	"github.com/SwiftFiat/taskmarket-ledger/api/apistrings"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/models"
	"github.com/SwiftFiat/taskmarket-ledger/utils"
	"github.com/gin-gonic/gin"
)

// AuthenticatedMiddleware verifies the bearer token and stores its identity
// under utils.ContextUserKey. Roles in the token are informational only: every
// operation re-reads the actor's profile before acting.
func AuthenticatedMiddleware(tokens *utils.JWTToken) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := ctx.GetHeader("Authorization")
		if token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, models.NewError(apistrings.Unauthenticated))
			return
		}

		tokenSplit := strings.Split(token, " ")
		if len(tokenSplit) != 2 || strings.ToLower(tokenSplit[0]) != "bearer" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, models.NewError(apistrings.InvalidBearer))
			return
		}

		user, err := tokens.VerifyToken(tokenSplit[1])
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, models.NewError(err.Error()))
			return
		}

		ctx.Set("user_id", user.UserID)
		ctx.Set("user_role", user.Role)
		ctx.Set(utils.ContextUserKey, user)
		ctx.Next()
	}
}

// RespondError writes err through models.ErrorStatus and aborts the chain.
func RespondError(ctx *gin.Context, err error) {
	status, body := models.ErrorStatus(err)
	ctx.AbortWithStatusJSON(status, body)
}
