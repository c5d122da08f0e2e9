package models

import (
	"errors"
	"net/http"

	"github.com/SwiftFiat/taskmarket-ledger/api/apistrings"
	"github.com/SwiftFiat/taskmarket-ledger/internal/auth"
	campaigndomain "github.com/SwiftFiat/taskmarket-ledger/internal/campaign/domain"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/validation"
	requestdomain "github.com/SwiftFiat/taskmarket-ledger/internal/moneyrequest/domain"
	workdomain "github.com/SwiftFiat/taskmarket-ledger/internal/work/domain"
)

var (
	notFound = []error{
		campaigndomain.ErrCampaignNotFound,
		workdomain.ErrWorkNotFound,
		requestdomain.ErrRequestNotFound,
	}
	forbidden = []error{
		auth.ErrUnauthorized,
		campaigndomain.ErrNotCampaignOwner,
	}
	conflict = []error{
		campaigndomain.ErrCampaignNotActive,
		campaigndomain.ErrCampaignFull,
		workdomain.ErrAlreadyApplied,
		workdomain.ErrWorkAlreadyApproved,
		requestdomain.ErrInsufficientFunds,
	}
)

func matches(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// ErrorStatus maps an operation error to its HTTP status and response body.
// Anything unrecognised is a 500 and its text is not exposed.
func ErrorStatus(err error) (int, *ErrorResponse) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, NewError(apistrings.InvalidInput, verr.Fields...)
	case errors.Is(err, validation.ErrInvalidInput):
		return http.StatusBadRequest, NewError(apistrings.InvalidInput)
	case matches(err, forbidden):
		return http.StatusForbidden, NewError(err.Error())
	case matches(err, notFound):
		return http.StatusNotFound, NewError(err.Error())
	case matches(err, conflict):
		return http.StatusConflict, NewError(err.Error())
	}
	return http.StatusInternalServerError, NewError(apistrings.ServerError)
}
