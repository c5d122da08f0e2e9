package domain

import (
	"errors"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/shopspring/decimal"
)

const (
	TypeAddMoney   = "add_money"
	TypeWithdrawal = "withdrawal"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var (
	ErrRequestNotFound    = errors.New("money request not found")
	ErrInsufficientFunds  = errors.New("insufficient earned balance")
	ErrUnknownRequestType = errors.New("unknown money request type")
)

// Limits per request type, inclusive.
var (
	AddMoneyMin   = decimal.NewFromInt(10)
	AddMoneyMax   = decimal.NewFromInt(100000)
	WithdrawalMin = decimal.NewFromInt(500)
	WithdrawalMax = decimal.NewFromInt(50000)
)

// MoneyRequest is a user's ask to top up or cash out, decided by an admin.
type MoneyRequest struct {
	ID             string          `json:"id,omitempty"`
	UserID         string          `json:"userId"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	PaymentDetails string          `json:"paymentDetails,omitempty"`
	CreatedAt      int64           `json:"createdAt"`
	ProcessedAt    int64           `json:"processedAt,omitempty"`
	ProcessedBy    string          `json:"processedBy,omitempty"`
}

type MoneyRequestCollection []MoneyRequest

// Limits returns the accepted amount range for a request type.
func Limits(requestType string) (min, max decimal.Decimal, err error) {
	switch requestType {
	case TypeAddMoney:
		return AddMoneyMin, AddMoneyMax, nil
	case TypeWithdrawal:
		return WithdrawalMin, WithdrawalMax, nil
	}
	return decimal.Zero, decimal.Zero, ErrUnknownRequestType
}

// RequestsPath returns the queue a request type is filed under.
func RequestsPath(requestType string) (string, error) {
	switch requestType {
	case TypeAddMoney:
		return store.Join("adminRequests", "addMoney"), nil
	case TypeWithdrawal:
		return store.Join("adminRequests", "withdrawals"), nil
	}
	return "", ErrUnknownRequestType
}

func RequestPath(requestType, id string) (string, error) {
	p, err := RequestsPath(requestType)
	if err != nil {
		return "", err
	}
	return store.Join(p, id), nil
}
