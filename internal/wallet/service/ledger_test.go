package service

import (
	"context"
	"errors"
	"testing"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/SwiftFiat/taskmarket-ledger/internal/auth"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/validation"
	"github.com/SwiftFiat/taskmarket-ledger/internal/wallet/domain"
	"github.com/SwiftFiat/taskmarket-ledger/services/cache"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/logging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }

// brokenWalletStore fails every transaction while leaving other writes alone.
type brokenWalletStore struct {
	store.Store
}

func (brokenWalletStore) Transaction(context.Context, string, store.UpdateFunc) (store.TxResult, error) {
	return store.TxResult{}, errors.New("store unavailable")
}

type fixture struct {
	store  store.Store
	cache  *cache.Cache
	ledger *Ledger
}

func newFixture(t *testing.T, s store.Store) *fixture {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, auth.ProfilePath("admin1"), auth.Profile{Role: auth.RoleAdmin}))
	require.NoError(t, s.Set(ctx, auth.ProfilePath("u1"), auth.Profile{Role: auth.RoleUser}))

	logger := logging.NewDiscardLogger()
	c := cache.New(cache.Options{})
	return &fixture{
		store:  s,
		cache:  c,
		ledger: NewLedger(s, auth.NewGuard(s, logger), c, logger),
	}
}

func (f *fixture) wallet(t *testing.T, uid string) domain.WalletBalance {
	t.Helper()
	var b domain.WalletBalance
	_, err := f.store.Get(context.Background(), domain.WalletPath(uid), &b)
	require.NoError(t, err)
	return b
}

func assertBalance(t *testing.T, want, got domain.WalletBalance) {
	t.Helper()
	assert.True(t, want.EarnedBalance.Equal(got.EarnedBalance), "earned: want %s got %s", want.EarnedBalance, got.EarnedBalance)
	assert.True(t, want.AddedBalance.Equal(got.AddedBalance), "added: want %s got %s", want.AddedBalance, got.AddedBalance)
	assert.True(t, want.PendingAddMoney.Equal(got.PendingAddMoney), "pending: want %s got %s", want.PendingAddMoney, got.PendingAddMoney)
	assert.True(t, want.TotalWithdrawn.Equal(got.TotalWithdrawn), "withdrawn: want %s got %s", want.TotalWithdrawn, got.TotalWithdrawn)
}

func TestLedger_CreateTransactionAndAdjustWalletAddsDelta(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemoryStore())
	require.NoError(t, f.store.Set(ctx, domain.WalletPath("u1"), domain.WalletBalance{
		EarnedBalance: dec("100"), AddedBalance: dec("200"), TotalWithdrawn: dec("50"),
	}))

	balance, err := f.ledger.CreateTransactionAndAdjustWallet(ctx, "u1", "u1",
		domain.Transaction{Type: domain.TransactionEarning, Amount: dec("50"), Status: domain.StatusApproved},
		domain.BalanceDelta{EarnedBalance: dec("50")})
	require.NoError(t, err)
	require.NotNil(t, balance)

	want := domain.WalletBalance{EarnedBalance: dec("150"), AddedBalance: dec("200"), PendingAddMoney: dec("0"), TotalWithdrawn: dec("50")}
	assertBalance(t, want, *balance)
	assertBalance(t, want, f.wallet(t, "u1"))

	txs, err := f.ledger.ListTransactions(ctx, "u1", "u1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TransactionEarning, txs[0].Type)
	assert.NotZero(t, txs[0].CreatedAt)
}

func TestLedger_DeltaIsClampedAtZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemoryStore())
	require.NoError(t, f.store.Set(ctx, domain.WalletPath("u1"), domain.WalletBalance{PendingAddMoney: dec("30")}))

	balance, err := f.ledger.CreateTransactionAndAdjustWallet(ctx, "admin1", "u1",
		domain.Transaction{Type: domain.TransactionAddMoney, Amount: dec("100"), Status: domain.StatusApproved},
		domain.BalanceDelta{AddedBalance: dec("100"), PendingAddMoney: dec("-100")})
	require.NoError(t, err)
	assertBalance(t, domain.WalletBalance{AddedBalance: dec("100")}, *balance)
	assert.False(t, f.wallet(t, "u1").PendingAddMoney.IsNegative())
}

func TestLedger_UpdateBalanceStartsFromZeroAndRefreshesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemoryStore())

	var seen domain.WalletBalance
	balance, err := f.ledger.UpdateBalance(ctx, "u2", func(current domain.WalletBalance) (domain.BalanceUpdate, bool) {
		seen = current
		return domain.BalanceUpdate{AddedBalance: ptr(dec("25"))}, true
	})
	require.NoError(t, err)
	require.NotNil(t, balance)
	assertBalance(t, domain.WalletBalance{}, seen)
	assert.True(t, balance.AddedBalance.Equal(dec("25")))

	cached, ok := f.cache.Get(cache.WalletKey("u2"))
	require.True(t, ok)
	assert.True(t, cached.(domain.WalletBalance).AddedBalance.Equal(dec("25")))
}

func TestLedger_UpdateBalanceClampsAbsoluteValues(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())

	balance, err := f.ledger.UpdateBalance(context.Background(), "u1", func(domain.WalletBalance) (domain.BalanceUpdate, bool) {
		return domain.BalanceUpdate{EarnedBalance: ptr(dec("-5"))}, true
	})
	require.NoError(t, err)
	assert.True(t, balance.EarnedBalance.IsZero())
	assert.True(t, f.wallet(t, "u1").EarnedBalance.IsZero())
}

func TestLedger_UpdateBalanceDeclineLeavesState(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	f := newFixture(t, s)
	require.NoError(t, s.Set(ctx, domain.WalletPath("u1"), domain.WalletBalance{EarnedBalance: dec("10")}))
	before := s.Version(domain.WalletPath("u1"))

	balance, err := f.ledger.UpdateBalance(ctx, "u1", func(domain.WalletBalance) (domain.BalanceUpdate, bool) {
		return domain.BalanceUpdate{}, false
	})
	require.NoError(t, err)
	assert.Nil(t, balance)
	assert.Equal(t, before, s.Version(domain.WalletPath("u1")))
	_, cached := f.cache.Get(cache.WalletKey("u1"))
	assert.False(t, cached)
}

func TestLedger_UpdateBalanceRejectsBadIDs(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())

	_, err := f.ledger.UpdateBalance(context.Background(), "u1/../u2", func(domain.WalletBalance) (domain.BalanceUpdate, bool) {
		t.Fatal("must not run")
		return domain.BalanceUpdate{}, true
	})
	assert.ErrorIs(t, err, validation.ErrInvalidInput)
}

func TestLedger_UnauthorizedActorWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemoryStore())

	_, err := f.ledger.CreateTransactionAndAdjustWallet(ctx, "u2", "u1",
		domain.Transaction{Type: domain.TransactionAddMoney, Amount: dec("10"), Status: domain.StatusPending},
		domain.BalanceDelta{PendingAddMoney: dec("10")})
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	children, err := f.store.Children(ctx, domain.TransactionsPath("u1"))
	require.NoError(t, err)
	assert.Empty(t, children)
	exists, err := f.store.Get(ctx, domain.WalletPath("u1"), &domain.WalletBalance{})
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLedger_RecordSurvivesFailedWalletUpdate(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	f := newFixture(t, brokenWalletStore{Store: mem})

	_, err := f.ledger.CreateTransactionAndAdjustWallet(ctx, "u1", "u1",
		domain.Transaction{Type: domain.TransactionAddMoney, Amount: dec("10"), Status: domain.StatusPending},
		domain.BalanceDelta{PendingAddMoney: dec("10")})
	require.Error(t, err)

	var ledgerErr *domain.LedgerError
	require.True(t, errors.As(err, &ledgerErr))
	assert.Equal(t, "u1", ledgerErr.EntityID)

	children, err := mem.Children(ctx, domain.TransactionsPath("u1"))
	require.NoError(t, err)
	assert.Len(t, children, 1)
}

func TestLedger_InvalidRecordIsRejectedBeforeWriting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemoryStore())

	_, err := f.ledger.RecordTransaction(ctx, "u1", domain.Transaction{Type: "gift", Amount: dec("10"), Status: domain.StatusPending})
	assert.ErrorIs(t, err, validation.ErrInvalidInput)

	_, err = f.ledger.RecordTransaction(ctx, "u1", domain.Transaction{Type: domain.TransactionEarning, Amount: dec("0"), Status: domain.StatusPaid})
	assert.ErrorIs(t, err, validation.ErrInvalidInput)

	children, err := f.store.Children(ctx, domain.TransactionsPath("u1"))
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestLedger_GetWalletReadsThroughCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemoryStore())
	require.NoError(t, f.store.Set(ctx, domain.WalletPath("u1"), domain.WalletBalance{AddedBalance: dec("5")}))

	balance, err := f.ledger.GetWallet(ctx, "u1", "u1")
	require.NoError(t, err)
	assert.True(t, balance.AddedBalance.Equal(dec("5")))

	// a write that bypasses the ledger is not seen until the entry is cleared
	require.NoError(t, f.store.Set(ctx, domain.WalletPath("u1"), domain.WalletBalance{AddedBalance: dec("7")}))
	balance, err = f.ledger.GetWallet(ctx, "u1", "u1")
	require.NoError(t, err)
	assert.True(t, balance.AddedBalance.Equal(dec("5")))

	f.cache.Clear(cache.WalletKey("u1"))
	balance, err = f.ledger.GetWallet(ctx, "u1", "u1")
	require.NoError(t, err)
	assert.True(t, balance.AddedBalance.Equal(dec("7")))

	_, err = f.ledger.GetWallet(ctx, "u2", "u1")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestLedger_ReadBalanceBypassesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemoryStore())
	require.NoError(t, f.store.Set(ctx, domain.WalletPath("u1"), domain.WalletBalance{EarnedBalance: dec("-3")}))
	f.cache.Set(cache.WalletKey("u1"), domain.WalletBalance{EarnedBalance: dec("1000")})

	balance, err := f.ledger.ReadBalance(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, balance.EarnedBalance.IsZero())

	_, err = f.ledger.ReadBalance(ctx, "a/b")
	assert.ErrorIs(t, err, validation.ErrInvalidInput)
}

func TestLedger_ListTransactionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemoryStore())

	for i, at := range []int64{100, 300, 200} {
		_, err := f.ledger.RecordTransaction(ctx, "u1", domain.Transaction{
			Type: domain.TransactionEarning, Amount: decimal.NewFromInt(int64(i + 1)), Status: domain.StatusApproved, CreatedAt: at,
		})
		require.NoError(t, err)
	}

	txs, err := f.ledger.ListTransactions(ctx, "admin1", "u1")
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, []int64{300, 200, 100}, []int64{txs[0].CreatedAt, txs[1].CreatedAt, txs[2].CreatedAt})
	for _, tx := range txs {
		assert.NotEmpty(t, tx.ID)
	}
}
