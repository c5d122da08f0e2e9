package middleware

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/logging"
	"github.com/SwiftFiat/taskmarket-ledger/utils"
	"github.com/gin-gonic/gin"
)

// ActivityLog is one entry under activityLogs/{uid}.
type ActivityLog struct {
	Action    string `json:"action"`
	Route     string `json:"route"`
	Status    int    `json:"status"`
	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`
	CreatedAt int64  `json:"createdAt"`
}

func ActivityLogsPath(uid string) string {
	return store.Join("activityLogs", uid)
}

type ActivityLogMiddleware struct {
	store  store.Store
	logger *logging.Logger
}

func NewActivityLogMiddleware(s store.Store, logger *logging.Logger) *ActivityLogMiddleware {
	return &ActivityLogMiddleware{
		store:  s,
		logger: logger,
	}
}

// ActivityLogger records money-moving requests made by authenticated users.
// Entries are written after the response, off the request path.
func (a *ActivityLogMiddleware) ActivityLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if !shouldLog(c.Request.Method, c.FullPath()) {
			return
		}
		user, err := utils.GetActiveUser(c)
		if err != nil {
			return
		}

		entry := ActivityLog{
			Action:    actionFor(c.FullPath(), c.Writer.Status()),
			Route:     c.Request.Method + " " + c.FullPath(),
			Status:    c.Writer.Status(),
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			CreatedAt: time.Now().UnixMilli(),
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if _, err := a.store.Push(ctx, ActivityLogsPath(user.UserID), entry); err != nil {
				a.logger.WithError(err).WithField("user", user.UserID).Warn("could not write activity log")
			}
		}()
	}
}

// Should be in sync with the routes in actionFor.
var loggedRoutes = []string{
	"/api/v1/campaigns/:id/deduct",
	"/api/v1/campaigns/:id/apply",
	"/api/v1/campaigns/:id/submit",
	"/api/v1/works/:uid/:workId/approve",
	"/api/v1/works/:uid/:workId/reject",
	"/api/v1/requests",
	"/api/v1/requests/:type/:id/process",
}

func shouldLog(method, route string) bool {
	return method == http.MethodPost && slices.Contains(loggedRoutes, route)
}

func actionFor(route string, status int) string {
	outcome := "succeeded"
	if status >= http.StatusBadRequest {
		outcome = fmt.Sprintf("failed with %d", status)
	}

	var action string
	switch route {
	case "/api/v1/campaigns/:id/deduct":
		action = "campaign budget deduction"
	case "/api/v1/campaigns/:id/apply":
		action = "campaign application"
	case "/api/v1/campaigns/:id/submit":
		action = "work submission"
	case "/api/v1/works/:uid/:workId/approve":
		action = "work approval"
	case "/api/v1/works/:uid/:workId/reject":
		action = "work rejection"
	case "/api/v1/requests":
		action = "money request"
	case "/api/v1/requests/:type/:id/process":
		action = "money request decision"
	default:
		action = route
	}
	return action + " " + outcome
}
