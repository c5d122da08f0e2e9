package domain

import (
	"errors"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/shopspring/decimal"
)

const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
	StatusBanned    = "banned"
)

var (
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrNotCampaignOwner  = errors.New("campaign does not belong to the payer")
	ErrCampaignNotActive = errors.New("campaign is not accepting workers")
	ErrCampaignFull      = errors.New("campaign has no free worker slots")
)

// Campaign is the campaigns/{id} record. Campaigns are created elsewhere and
// never deleted; the ledger moves remainingBudget and completedWorkers.
type Campaign struct {
	ID               string          `json:"id,omitempty"`
	CreatorID        string          `json:"creatorId"`
	Title            string          `json:"title,omitempty"`
	Description      string          `json:"description,omitempty"`
	TotalBudget      decimal.Decimal `json:"totalBudget"`
	RemainingBudget  decimal.Decimal `json:"remainingBudget"`
	TotalWorkers     int64           `json:"totalWorkers"`
	CompletedWorkers int64           `json:"completedWorkers"`
	RewardPerWorker  decimal.Decimal `json:"rewardPerWorker"`
	Status           string          `json:"status"`
	CreatedAt        int64           `json:"createdAt,omitempty"`
}

func (c Campaign) HasFreeSlot() bool {
	return c.CompletedWorkers < c.TotalWorkers
}

type CampaignCollection []Campaign

func CampaignsPath() string {
	return "campaigns"
}

func CampaignPath(id string) string {
	return store.Join("campaigns", id)
}
