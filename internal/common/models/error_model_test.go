package models

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/SwiftFiat/taskmarket-ledger/api/apistrings"
	"github.com/SwiftFiat/taskmarket-ledger/internal/auth"
	campaigndomain "github.com/SwiftFiat/taskmarket-ledger/internal/campaign/domain"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/saga"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/validation"
	requestdomain "github.com/SwiftFiat/taskmarket-ledger/internal/moneyrequest/domain"
	workdomain "github.com/SwiftFiat/taskmarket-ledger/internal/work/domain"
	"github.com/stretchr/testify/assert"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", validation.New("amount must be greater than 0"), http.StatusBadRequest},
		{"unauthorized", auth.ErrUnauthorized, http.StatusForbidden},
		{"not owner", campaigndomain.ErrNotCampaignOwner, http.StatusForbidden},
		{"campaign missing", campaigndomain.ErrCampaignNotFound, http.StatusNotFound},
		{"wrapped work missing", fmt.Errorf("approve: %w", workdomain.ErrWorkNotFound), http.StatusNotFound},
		{"request missing", requestdomain.ErrRequestNotFound, http.StatusNotFound},
		{"campaign full", campaigndomain.ErrCampaignFull, http.StatusConflict},
		{"insufficient funds", requestdomain.ErrInsufficientFunds, http.StatusConflict},
		{"compensation failed", fmt.Errorf("%w: deduct_budget c1", saga.ErrCompensationFailed), http.StatusInternalServerError},
		{"store down", errors.New("dial tcp: connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ErrorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, "failed", body.Status)
		})
	}
}

func TestErrorStatus_HidesInternalErrors(t *testing.T) {
	_, body := ErrorStatus(errors.New("pq: password authentication failed"))
	assert.Equal(t, apistrings.ServerError, body.Message)

	_, body = ErrorStatus(validation.New("campaignId must be a non-empty id without path characters"))
	assert.Equal(t, []string{"campaignId must be a non-empty id without path characters"}, body.Errors)
}
