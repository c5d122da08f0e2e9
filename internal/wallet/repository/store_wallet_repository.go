package repository

import (
	"context"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/SwiftFiat/taskmarket-ledger/internal/wallet/domain"
	"github.com/SwiftFiat/taskmarket-ledger/internal/wallet/mapper"
)

type StoreWalletRepository struct {
	store store.Store
}

func NewStoreWalletRepository(s store.Store) *StoreWalletRepository {
	return &StoreWalletRepository{store: s}
}

func (r *StoreWalletRepository) GetWallet(ctx context.Context, uid string) (*domain.WalletBalance, error) {
	var balance domain.WalletBalance
	if _, err := r.store.Get(ctx, domain.WalletPath(uid), &balance); err != nil {
		return nil, err
	}
	balance = balance.Clamped()
	return &balance, nil
}

func (r *StoreWalletRepository) UpdateWallet(ctx context.Context, uid string, fn domain.UpdateFunc) (*domain.WalletBalance, bool, error) {
	res, err := r.store.Transaction(ctx, domain.WalletPath(uid), func(current store.Node) (interface{}, error) {
		var balance domain.WalletBalance
		if err := current.Unmarshal(&balance); err != nil {
			return nil, err
		}
		update, ok := fn(balance.Clamped())
		if !ok {
			return nil, store.ErrAbort
		}
		return store.Overlay(current, update.Apply(balance))
	})
	if err != nil {
		return nil, false, err
	}

	var balance domain.WalletBalance
	if err := res.Value.Unmarshal(&balance); err != nil {
		return nil, false, err
	}
	balance = balance.Clamped()
	return &balance, res.Committed, nil
}

func (r *StoreWalletRepository) AppendTransaction(ctx context.Context, uid string, tx domain.Transaction) (string, error) {
	tx.ID = ""
	return r.store.Push(ctx, domain.TransactionsPath(uid), tx)
}

func (r *StoreWalletRepository) ListTransactions(ctx context.Context, uid string) (domain.TransactionCollection, error) {
	children, err := r.store.Children(ctx, domain.TransactionsPath(uid))
	if err != nil {
		return nil, err
	}
	return mapper.ToTransactionCollection(children)
}
