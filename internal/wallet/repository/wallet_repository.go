package repository

import (
	"context"

	"github.com/SwiftFiat/taskmarket-ledger/internal/wallet/domain"
)

type WalletRepository interface {
	// GetWallet returns a zero balance for a wallet that was never written.
	GetWallet(ctx context.Context, uid string) (*domain.WalletBalance, error)
	// UpdateWallet applies fn through the store's compare-and-swap and reports
	// whether a write committed.
	UpdateWallet(ctx context.Context, uid string, fn domain.UpdateFunc) (*domain.WalletBalance, bool, error)
	AppendTransaction(ctx context.Context, uid string, tx domain.Transaction) (string, error)
	ListTransactions(ctx context.Context, uid string) (domain.TransactionCollection, error)
}
