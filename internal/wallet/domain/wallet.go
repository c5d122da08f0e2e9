package domain

import (
	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/shopspring/decimal"
)

// WalletBalance is the wallets/{uid} record. Every field is kept at or above zero.
type WalletBalance struct {
	EarnedBalance   decimal.Decimal `json:"earnedBalance"`
	AddedBalance    decimal.Decimal `json:"addedBalance"`
	PendingAddMoney decimal.Decimal `json:"pendingAddMoney"`
	TotalWithdrawn  decimal.Decimal `json:"totalWithdrawn"`
}

func clamp(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Clamped returns b with every negative field raised to zero.
func (b WalletBalance) Clamped() WalletBalance {
	return WalletBalance{
		EarnedBalance:   clamp(b.EarnedBalance),
		AddedBalance:    clamp(b.AddedBalance),
		PendingAddMoney: clamp(b.PendingAddMoney),
		TotalWithdrawn:  clamp(b.TotalWithdrawn),
	}
}

// BalanceUpdate holds new absolute values. Nil fields are left unchanged.
type BalanceUpdate struct {
	EarnedBalance   *decimal.Decimal
	AddedBalance    *decimal.Decimal
	PendingAddMoney *decimal.Decimal
	TotalWithdrawn  *decimal.Decimal
}

func (u BalanceUpdate) Apply(b WalletBalance) WalletBalance {
	if u.EarnedBalance != nil {
		b.EarnedBalance = *u.EarnedBalance
	}
	if u.AddedBalance != nil {
		b.AddedBalance = *u.AddedBalance
	}
	if u.PendingAddMoney != nil {
		b.PendingAddMoney = *u.PendingAddMoney
	}
	if u.TotalWithdrawn != nil {
		b.TotalWithdrawn = *u.TotalWithdrawn
	}
	return b.Clamped()
}

// UpdateFunc computes the update for the current balance. Returning false
// abandons the update and leaves the wallet untouched.
type UpdateFunc func(current WalletBalance) (BalanceUpdate, bool)

// BalanceDelta is added to the current balance. Zero fields are left unchanged.
type BalanceDelta struct {
	EarnedBalance   decimal.Decimal `json:"earnedBalance"`
	AddedBalance    decimal.Decimal `json:"addedBalance"`
	PendingAddMoney decimal.Decimal `json:"pendingAddMoney"`
	TotalWithdrawn  decimal.Decimal `json:"totalWithdrawn"`
}

func (d BalanceDelta) IsZero() bool {
	return d.EarnedBalance.IsZero() && d.AddedBalance.IsZero() &&
		d.PendingAddMoney.IsZero() && d.TotalWithdrawn.IsZero()
}

// Update turns the delta into absolute values against current.
func (d BalanceDelta) Update(current WalletBalance) BalanceUpdate {
	var u BalanceUpdate
	add := func(field decimal.Decimal, delta decimal.Decimal) *decimal.Decimal {
		if delta.IsZero() {
			return nil
		}
		v := clamp(field.Add(delta))
		return &v
	}
	u.EarnedBalance = add(current.EarnedBalance, d.EarnedBalance)
	u.AddedBalance = add(current.AddedBalance, d.AddedBalance)
	u.PendingAddMoney = add(current.PendingAddMoney, d.PendingAddMoney)
	u.TotalWithdrawn = add(current.TotalWithdrawn, d.TotalWithdrawn)
	return u
}

func WalletPath(uid string) string {
	return store.Join("wallets", uid)
}
