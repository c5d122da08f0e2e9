package service

import (
	"context"
	"testing"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/SwiftFiat/taskmarket-ledger/internal/auth"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/validation"
	"github.com/SwiftFiat/taskmarket-ledger/internal/moneyrequest/domain"
	walletdomain "github.com/SwiftFiat/taskmarket-ledger/internal/wallet/domain"
	walletservice "github.com/SwiftFiat/taskmarket-ledger/internal/wallet/service"
	"github.com/SwiftFiat/taskmarket-ledger/services/cache"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/logging"
	"github.com/SwiftFiat/taskmarket-ledger/services/notification"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type countingNotifier struct {
	count int
}

func (c *countingNotifier) Notify(context.Context, string, notification.Message) { c.count++ }

type fixture struct {
	store     *store.MemoryStore
	cache     *cache.Cache
	notifier  *countingNotifier
	processor *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(ctx, auth.ProfilePath("admin1"), auth.Profile{Role: auth.RoleAdmin}))
	require.NoError(t, s.Set(ctx, auth.ProfilePath("u1"), auth.Profile{Name: "Ada", Role: auth.RoleUser}))

	logger := logging.NewDiscardLogger()
	c := cache.New(cache.Options{})
	guard := auth.NewGuard(s, logger)
	n := &countingNotifier{}
	return &fixture{
		store:     s,
		cache:     c,
		notifier:  n,
		processor: NewProcessor(s, walletservice.NewLedger(s, guard, c, logger), guard, c, n, logger),
	}
}

func (f *fixture) seedRequest(t *testing.T, requestType, status, amount string) {
	t.Helper()
	p, err := domain.RequestPath(requestType, "r1")
	require.NoError(t, err)
	require.NoError(t, f.store.Set(context.Background(), p, domain.MoneyRequest{
		UserID: "u1",
		Type:   requestType,
		Amount: dec(amount),
		Status: status,
	}))
}

func (f *fixture) request(t *testing.T, requestType string) domain.MoneyRequest {
	t.Helper()
	p, err := domain.RequestPath(requestType, "r1")
	require.NoError(t, err)
	var r domain.MoneyRequest
	found, err := f.store.Get(context.Background(), p, &r)
	require.NoError(t, err)
	require.True(t, found)
	return r
}

func (f *fixture) seedWallet(t *testing.T, b walletdomain.WalletBalance) {
	t.Helper()
	require.NoError(t, f.store.Set(context.Background(), walletdomain.WalletPath("u1"), b))
}

func (f *fixture) wallet(t *testing.T) walletdomain.WalletBalance {
	t.Helper()
	var b walletdomain.WalletBalance
	_, err := f.store.Get(context.Background(), walletdomain.WalletPath("u1"), &b)
	require.NoError(t, err)
	return b
}

func process(requestType, amount, decision string) ProcessParams {
	return ProcessParams{RequestID: "r1", Type: requestType, UserID: "u1", Amount: dec(amount), Decision: decision, AdminID: "admin1"}
}

func TestProcess_ApprovedAddMoney(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, domain.TypeAddMoney, domain.StatusPending, "200")
	f.seedWallet(t, walletdomain.WalletBalance{AddedBalance: dec("50"), PendingAddMoney: dec("150")})

	ok, err := f.processor.Process(context.Background(), process(domain.TypeAddMoney, "200", domain.StatusApproved))
	require.NoError(t, err)
	assert.True(t, ok)

	w := f.wallet(t)
	assert.True(t, w.AddedBalance.Equal(dec("250")))
	assert.True(t, w.PendingAddMoney.IsZero())

	r := f.request(t, domain.TypeAddMoney)
	assert.Equal(t, domain.StatusApproved, r.Status)
	assert.Equal(t, "admin1", r.ProcessedBy)
	assert.Equal(t, 1, f.notifier.count)
}

func TestProcess_ApprovedWithdrawal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedRequest(t, domain.TypeWithdrawal, domain.StatusPending, "600")
	f.seedWallet(t, walletdomain.WalletBalance{EarnedBalance: dec("1000"), TotalWithdrawn: dec("100")})

	ok, err := f.processor.Process(ctx, process(domain.TypeWithdrawal, "600", domain.StatusApproved))
	require.NoError(t, err)
	assert.True(t, ok)

	w := f.wallet(t)
	assert.True(t, w.EarnedBalance.Equal(dec("400")))
	assert.True(t, w.TotalWithdrawn.Equal(dec("700")))

	var profile auth.Profile
	_, err = f.store.Get(ctx, auth.ProfilePath("u1"), &profile)
	require.NoError(t, err)
	assert.True(t, profile.TotalWithdrawn.Equal(dec("600")))

	children, err := f.store.Children(ctx, walletdomain.TransactionsPath("u1"))
	require.NoError(t, err)
	require.Len(t, children, 1)
	for _, node := range children {
		var tx walletdomain.Transaction
		require.NoError(t, node.Unmarshal(&tx))
		assert.Equal(t, walletdomain.StatusApproved, tx.Status)
		assert.Equal(t, "r1", tx.Reference)
	}
}

func TestProcess_WithdrawalAboveBalanceStaysPending(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, domain.TypeWithdrawal, domain.StatusPending, "600")
	f.seedWallet(t, walletdomain.WalletBalance{EarnedBalance: dec("500")})
	version := f.store.Version(walletdomain.WalletPath("u1"))

	ok, err := f.processor.Process(context.Background(), process(domain.TypeWithdrawal, "600", domain.StatusApproved))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, version, f.store.Version(walletdomain.WalletPath("u1")))
	assert.True(t, f.wallet(t).EarnedBalance.Equal(dec("500")))
	assert.Zero(t, f.notifier.count)

	r := f.request(t, domain.TypeWithdrawal)
	assert.Equal(t, domain.StatusPending, r.Status)
	assert.Empty(t, r.ProcessedBy)
	assert.Zero(t, r.ProcessedAt)
}

func TestProcess_RejectionDoesNotTouchWallet(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, domain.TypeAddMoney, domain.StatusPending, "200")
	f.seedWallet(t, walletdomain.WalletBalance{AddedBalance: dec("50"), PendingAddMoney: dec("200")})
	version := f.store.Version(walletdomain.WalletPath("u1"))

	ok, err := f.processor.Process(context.Background(), process(domain.TypeAddMoney, "200", domain.StatusRejected))
	require.NoError(t, err)
	assert.True(t, ok)

	r := f.request(t, domain.TypeAddMoney)
	assert.Equal(t, domain.StatusRejected, r.Status)
	assert.Equal(t, "admin1", r.ProcessedBy)

	assert.Equal(t, version, f.store.Version(walletdomain.WalletPath("u1")))
	w := f.wallet(t)
	assert.True(t, w.AddedBalance.Equal(dec("50")))
	assert.True(t, w.PendingAddMoney.Equal(dec("200")))
	assert.Zero(t, f.notifier.count)
}

func TestProcess_ParamsMustMatchStoredRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedRequest(t, domain.TypeAddMoney, domain.StatusPending, "10")
	require.NoError(t, f.store.Set(ctx, auth.ProfilePath("u2"), auth.Profile{Role: auth.RoleUser}))

	params := process(domain.TypeAddMoney, "100000", domain.StatusApproved)
	params.UserID = "u2"
	ok, err := f.processor.Process(ctx, params)
	assert.False(t, ok)
	assert.ErrorIs(t, err, validation.ErrInvalidInput)

	_, err = f.processor.Process(ctx, process(domain.TypeAddMoney, "11", domain.StatusApproved))
	assert.ErrorIs(t, err, validation.ErrInvalidInput)

	assert.Equal(t, uint64(0), f.store.Version(walletdomain.WalletPath("u2")))
	assert.Equal(t, uint64(0), f.store.Version(walletdomain.WalletPath("u1")))
	assert.Equal(t, domain.StatusPending, f.request(t, domain.TypeAddMoney).Status)
}

func TestProcess_AlreadyDecided(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, domain.TypeAddMoney, domain.StatusApproved, "200")
	f.seedWallet(t, walletdomain.WalletBalance{AddedBalance: dec("50")})

	ok, err := f.processor.Process(context.Background(), process(domain.TypeAddMoney, "200", domain.StatusApproved))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, f.wallet(t).AddedBalance.Equal(dec("50")))
}

func TestProcess_Refusals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.processor.Process(ctx, process(domain.TypeAddMoney, "200", domain.StatusApproved))
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)

	f.seedRequest(t, domain.TypeAddMoney, domain.StatusPending, "200")
	params := process(domain.TypeAddMoney, "200", domain.StatusApproved)
	params.AdminID = "u1"
	_, err = f.processor.Process(ctx, params)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	_, err = f.processor.Process(ctx, process(domain.TypeAddMoney, "200", "maybe"))
	assert.ErrorIs(t, err, validation.ErrInvalidInput)

	_, err = f.processor.Process(ctx, process("earning", "200", domain.StatusApproved))
	assert.ErrorIs(t, err, validation.ErrInvalidInput)

	assert.Equal(t, domain.StatusPending, f.request(t, domain.TypeAddMoney).Status)
}

func TestCreateRequest_AddMoney(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.processor.CreateRequest(ctx, CreateRequestParams{Type: domain.TypeAddMoney, UserID: "u1", Amount: dec("100"), ActorID: "u1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	assert.True(t, f.wallet(t).PendingAddMoney.Equal(dec("100")))

	requests, err := f.processor.ListRequests(ctx, "admin1", domain.TypeAddMoney)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, id, requests[0].ID)
	assert.Equal(t, domain.StatusPending, requests[0].Status)

	ok, err := f.processor.Process(ctx, ProcessParams{
		RequestID: id, Type: domain.TypeAddMoney, UserID: "u1", Amount: dec("100"), Decision: domain.StatusApproved, AdminID: "admin1",
	})
	require.NoError(t, err)
	assert.True(t, ok)

	w := f.wallet(t)
	assert.True(t, w.AddedBalance.Equal(dec("100")))
	assert.True(t, w.PendingAddMoney.IsZero())
}

func TestCreateRequest_Withdrawal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedWallet(t, walletdomain.WalletBalance{EarnedBalance: dec("700")})

	_, err := f.processor.CreateRequest(ctx, CreateRequestParams{Type: domain.TypeWithdrawal, UserID: "u1", Amount: dec("800"), ActorID: "u1"})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = f.processor.CreateRequest(ctx, CreateRequestParams{Type: domain.TypeWithdrawal, UserID: "u1", Amount: dec("499"), ActorID: "u1"})
	assert.ErrorIs(t, err, validation.ErrInvalidInput)

	_, err = f.processor.CreateRequest(ctx, CreateRequestParams{Type: domain.TypeWithdrawal, UserID: "u1", Amount: dec("600"), ActorID: "u2"})
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	id, err := f.processor.CreateRequest(ctx, CreateRequestParams{Type: domain.TypeWithdrawal, UserID: "u1", Amount: dec("600"), ActorID: "u1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// filing a withdrawal does not move money
	assert.True(t, f.wallet(t).EarnedBalance.Equal(dec("700")))

	_, err = f.processor.ListRequests(ctx, "u1", domain.TypeWithdrawal)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestCreateRequest_WithdrawalChecksStoredBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedWallet(t, walletdomain.WalletBalance{})
	f.cache.Set(cache.WalletKey("u1"), walletdomain.WalletBalance{EarnedBalance: dec("1000")})

	_, err := f.processor.CreateRequest(ctx, CreateRequestParams{Type: domain.TypeWithdrawal, UserID: "u1", Amount: dec("600"), ActorID: "u1"})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	p, err := domain.RequestsPath(domain.TypeWithdrawal)
	require.NoError(t, err)
	children, err := f.store.Children(ctx, p)
	require.NoError(t, err)
	assert.Empty(t, children)
}
