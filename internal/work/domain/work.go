package domain

import (
	"errors"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/shopspring/decimal"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var (
	ErrWorkNotFound        = errors.New("work submission not found")
	ErrAlreadyApplied      = errors.New("already applied to this campaign")
	ErrWorkAlreadyApproved = errors.New("work already approved")
)

// WorkSubmission lives at works/{uid}/{workId}. A worker has at most one
// submission per campaign and the work id is the campaign id.
type WorkSubmission struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	UserName    string          `json:"userName"`
	CampaignID  string          `json:"campaignId"`
	ProofURL    string          `json:"proofUrl"`
	Status      string          `json:"status"`
	Reward      decimal.Decimal `json:"reward"`
	SubmittedAt int64           `json:"submittedAt"`
}

func (w WorkSubmission) IsPending() bool {
	return w.Status == StatusPending
}

type WorkCollection []WorkSubmission

func WorksPath(uid string) string {
	return store.Join("works", uid)
}

func WorkPath(uid, workID string) string {
	return store.Join("works", uid, workID)
}
