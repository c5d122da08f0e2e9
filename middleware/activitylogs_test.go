package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/logging"
	"github.com/SwiftFiat/taskmarket-ledger/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := store.NewMemoryStore()
	a := NewActivityLogMiddleware(s, logging.NewDiscardLogger())

	r := gin.New()
	setUser := func(c *gin.Context) {
		c.Set(utils.ContextUserKey, utils.TokenObject{UserID: "u1"})
	}
	r.Use(setUser, a.ActivityLogger())
	r.POST("/api/v1/campaigns/:id/deduct", func(c *gin.Context) { c.Status(http.StatusConflict) })
	r.GET("/api/v1/campaigns/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/campaigns/c1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/campaigns/c1/deduct", nil))

	var logs map[string]store.Node
	require.Eventually(t, func() bool {
		var err error
		logs, err = s.Children(context.Background(), ActivityLogsPath("u1"))
		return err == nil && len(logs) == 1
	}, time.Second, 10*time.Millisecond)

	for _, node := range logs {
		var entry ActivityLog
		require.NoError(t, node.Unmarshal(&entry))
		assert.Equal(t, "campaign budget deduction failed with 409", entry.Action)
		assert.Equal(t, "POST /api/v1/campaigns/:id/deduct", entry.Route)
	}
}

func TestShouldLog(t *testing.T) {
	assert.True(t, shouldLog(http.MethodPost, "/api/v1/requests"))
	assert.False(t, shouldLog(http.MethodGet, "/api/v1/requests/:type"))
	assert.False(t, shouldLog(http.MethodPost, "/api/v1/unknown"))
}
