package domain

import (
	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/shopspring/decimal"
)

const (
	TransactionAddMoney      = "add_money"
	TransactionWithdrawal    = "withdrawal"
	TransactionEarning       = "earning"
	TransactionCampaignSpend = "campaign_spend"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusPaid     = "paid"
)

// Transaction is one append-only audit entry under transactions/{uid}. It is
// never rewritten and is not the source of truth for balances.
type Transaction struct {
	ID          string          `json:"id,omitempty"`
	Type        string          `json:"type" validate:"oneof=add_money withdrawal earning campaign_spend"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Status      string          `json:"status" validate:"oneof=pending approved rejected paid"`
	CreatedAt   int64           `json:"createdAt"`
	Description string          `json:"description,omitempty"`
	Reference   string          `json:"reference,omitempty"`
}

type TransactionCollection []Transaction

func TransactionsPath(uid string) string {
	return store.Join("transactions", uid)
}
