package service

import (
	"context"
	"time"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/SwiftFiat/taskmarket-ledger/internal/auth"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/validation"
	"github.com/SwiftFiat/taskmarket-ledger/internal/wallet/domain"
	"github.com/SwiftFiat/taskmarket-ledger/internal/wallet/repository"
	"github.com/SwiftFiat/taskmarket-ledger/services/cache"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/logging"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/metrics"
	"github.com/sirupsen/logrus"
)

type uidParam struct {
	UID string `json:"uid" validate:"key"`
}

// Ledger is the only writer of wallet fields.
type Ledger struct {
	repo   repository.WalletRepository
	guard  *auth.Guard
	cache  *cache.Cache
	logger *logging.Logger
	now    func() time.Time
}

func NewLedger(s store.Store, guard *auth.Guard, c *cache.Cache, logger *logging.Logger) *Ledger {
	return NewLedgerWithRepository(repository.NewStoreWalletRepository(s), guard, c, logger)
}

func NewLedgerWithRepository(repo repository.WalletRepository, guard *auth.Guard, c *cache.Cache, logger *logging.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		guard:  guard,
		cache:  c,
		logger: logger,
		now:    time.Now,
	}
}

// UpdateBalance runs fn against the current wallet inside one compare-and-swap.
// It returns nil without an error when fn declines. Callers are expected to
// have authorized the change already.
func (l *Ledger) UpdateBalance(ctx context.Context, uid string, fn domain.UpdateFunc) (*domain.WalletBalance, error) {
	if err := validation.Struct(uidParam{UID: uid}); err != nil {
		return nil, err
	}

	balance, committed, err := l.repo.UpdateWallet(ctx, uid, fn)
	if err != nil {
		l.logger.WithFields(logrus.Fields{"uid": uid}).WithError(err).Error("wallet transaction failed")
		metrics.RecordOperation("update_balance", "failed")
		return nil, domain.NewLedgerError(err, uid)
	}
	if !committed {
		metrics.RecordOperation("update_balance", "declined")
		return nil, nil
	}

	l.cache.Set(cache.WalletKey(uid), *balance)
	metrics.RecordOperation("update_balance", "committed")
	return balance, nil
}

// CreateTransactionAndAdjustWallet appends record to the user's transaction log
// and then adds delta to the wallet. The two writes are not atomic: when the
// wallet update does not commit the record stays in the log.
func (l *Ledger) CreateTransactionAndAdjustWallet(ctx context.Context, actorID, uid string, record domain.Transaction, delta domain.BalanceDelta) (*domain.WalletBalance, error) {
	if err := validation.Struct(uidParam{UID: uid}); err != nil {
		return nil, err
	}
	if err := l.guard.Require(ctx, actorID, uid, ""); err != nil {
		return nil, err
	}

	key, err := l.RecordTransaction(ctx, uid, record)
	if err != nil {
		return nil, err
	}

	balance, err := l.UpdateBalance(ctx, uid, func(current domain.WalletBalance) (domain.BalanceUpdate, bool) {
		return delta.Update(current), true
	})
	if err != nil || balance == nil {
		l.logger.WithFields(logrus.Fields{
			"uid":         uid,
			"transaction": key,
			"type":        record.Type,
			"amount":      record.Amount,
		}).Warn("transaction recorded but wallet was not adjusted")
	}
	return balance, err
}

// RecordTransaction appends an audit entry to transactions/{uid}.
func (l *Ledger) RecordTransaction(ctx context.Context, uid string, record domain.Transaction) (string, error) {
	if record.CreatedAt == 0 {
		record.CreatedAt = l.now().UnixMilli()
	}
	if err := validation.Struct(record); err != nil {
		return "", err
	}

	key, err := l.repo.AppendTransaction(ctx, uid, record)
	if err != nil {
		return "", domain.NewLedgerError(err, uid)
	}
	l.cache.Clear(cache.TransactionsKey(uid))
	return key, nil
}

// ReadBalance reads the wallet straight from the store, bypassing the cache.
// Money operations check balances with it.
func (l *Ledger) ReadBalance(ctx context.Context, uid string) (*domain.WalletBalance, error) {
	if err := validation.Struct(uidParam{UID: uid}); err != nil {
		return nil, err
	}
	balance, err := l.repo.GetWallet(ctx, uid)
	if err != nil {
		return nil, domain.NewLedgerError(err, uid)
	}
	return balance, nil
}

func (l *Ledger) GetWallet(ctx context.Context, actorID, uid string) (*domain.WalletBalance, error) {
	if err := validation.Struct(uidParam{UID: uid}); err != nil {
		return nil, err
	}
	if err := l.guard.Require(ctx, actorID, uid, ""); err != nil {
		return nil, err
	}

	balance, err := cache.Load(l.cache, cache.WalletKey(uid), func() (domain.WalletBalance, error) {
		b, err := l.repo.GetWallet(ctx, uid)
		if err != nil {
			return domain.WalletBalance{}, err
		}
		return *b, nil
	})
	if err != nil {
		return nil, domain.NewLedgerError(err, uid)
	}
	return &balance, nil
}

func (l *Ledger) ListTransactions(ctx context.Context, actorID, uid string) (domain.TransactionCollection, error) {
	if err := validation.Struct(uidParam{UID: uid}); err != nil {
		return nil, err
	}
	if err := l.guard.Require(ctx, actorID, uid, ""); err != nil {
		return nil, err
	}

	txs, err := cache.Load(l.cache, cache.TransactionsKey(uid), func() (domain.TransactionCollection, error) {
		return l.repo.ListTransactions(ctx, uid)
	})
	if err != nil {
		return nil, domain.NewLedgerError(err, uid)
	}
	return txs, nil
}
