package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/SwiftFiat/taskmarket-ledger/internal/auth"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/saga"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/validation"
	"github.com/SwiftFiat/taskmarket-ledger/internal/moneyrequest/domain"
	"github.com/SwiftFiat/taskmarket-ledger/internal/moneyrequest/repository"
	walletdomain "github.com/SwiftFiat/taskmarket-ledger/internal/wallet/domain"
	walletservice "github.com/SwiftFiat/taskmarket-ledger/internal/wallet/service"
	"github.com/SwiftFiat/taskmarket-ledger/services/cache"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/logging"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/metrics"
	"github.com/SwiftFiat/taskmarket-ledger/services/notification"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ProcessParams struct {
	RequestID string          `json:"requestId" validate:"key"`
	Type      string          `json:"type" validate:"oneof=add_money withdrawal"`
	UserID    string          `json:"userId" validate:"key"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0,lte=100000"`
	Decision  string          `json:"decision" validate:"oneof=approved rejected"`
	AdminID   string          `json:"adminId" validate:"key"`
}

type CreateRequestParams struct {
	Type           string          `json:"type" validate:"oneof=add_money withdrawal"`
	UserID         string          `json:"userId" validate:"key"`
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	PaymentDetails string          `json:"paymentDetails" validate:"max=200"`
	ActorID        string          `json:"actorId" validate:"key"`
}

type Processor struct {
	repo     repository.RequestRepository
	store    store.Store
	ledger   *walletservice.Ledger
	guard    *auth.Guard
	cache    *cache.Cache
	notifier notification.Notifier
	logger   *logging.Logger
	now      func() time.Time
}

func NewProcessor(s store.Store, ledger *walletservice.Ledger, guard *auth.Guard, c *cache.Cache, notifier notification.Notifier, logger *logging.Logger) *Processor {
	return &Processor{
		repo:     repository.NewStoreRequestRepository(s),
		store:    s,
		ledger:   ledger,
		guard:    guard,
		cache:    c,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateRequest files a top-up or withdrawal for admin review and records a
// pending transaction. A top-up is also counted in the wallet's
// pendingAddMoney until it is decided.
func (p *Processor) CreateRequest(ctx context.Context, params CreateRequestParams) (string, error) {
	if err := validation.Struct(params); err != nil {
		return "", err
	}
	min, max, err := domain.Limits(params.Type)
	if err != nil {
		return "", validation.New(err.Error())
	}
	if err := validation.Amount("amount", params.Amount, min, max); err != nil {
		return "", err
	}
	if params.ActorID != params.UserID {
		return "", auth.ErrUnauthorized
	}

	log := p.logger.WithFields(logrus.Fields{"user": params.UserID, "type": params.Type, "amount": params.Amount})

	if params.Type == domain.TypeWithdrawal {
		wallet, err := p.ledger.ReadBalance(ctx, params.UserID)
		if err != nil {
			return "", err
		}
		if wallet.EarnedBalance.LessThan(params.Amount) {
			log.Info("withdrawal request refused, insufficient earned balance")
			return "", domain.ErrInsufficientFunds
		}
	}

	id, err := p.repo.CreateRequest(ctx, domain.MoneyRequest{
		UserID:         params.UserID,
		Type:           params.Type,
		Amount:         params.Amount,
		Status:         domain.StatusPending,
		PaymentDetails: params.PaymentDetails,
		CreatedAt:      p.now().UnixMilli(),
	})
	if err != nil {
		return "", walletdomain.NewLedgerError(err, params.UserID)
	}
	p.cache.Clear(cache.RequestsKey(params.Type))

	var delta walletdomain.BalanceDelta
	if params.Type == domain.TypeAddMoney {
		delta.PendingAddMoney = params.Amount
	}
	if _, err := p.ledger.CreateTransactionAndAdjustWallet(ctx, params.ActorID, params.UserID, walletdomain.Transaction{
		Type:        params.Type,
		Amount:      params.Amount,
		Status:      walletdomain.StatusPending,
		Description: requestDescription(params.Type),
		Reference:   id,
	}, delta); err != nil {
		log.WithError(err).WithField("request", id).Error("request filed but pending transaction failed")
		return id, err
	}

	metrics.RecordOperation("create_request", "committed")
	log.WithField("request", id).Info("money request created")
	return id, nil
}

// Process applies an admin decision to a pending request. The user and amount
// must match the stored request. The decision is written first; a rejection
// ends there. An approval then moves money in the wallet and, if that does not
// commit, the request goes back to pending and false is returned.
func (p *Processor) Process(ctx context.Context, params ProcessParams) (bool, error) {
	if err := validation.Struct(params); err != nil {
		return false, err
	}
	if err := p.guard.Require(ctx, params.AdminID, params.UserID, auth.RoleAdmin); err != nil {
		return false, err
	}

	log := p.logger.WithFields(logrus.Fields{
		"request":  params.RequestID,
		"type":     params.Type,
		"user":     params.UserID,
		"amount":   params.Amount,
		"decision": params.Decision,
		"admin":    params.AdminID,
	})

	req, err := p.repo.GetRequest(ctx, params.Type, params.RequestID)
	if err != nil {
		if !errors.Is(err, domain.ErrRequestNotFound) {
			err = walletdomain.NewLedgerError(err, params.RequestID)
		}
		return false, err
	}
	if req.UserID != params.UserID || !req.Amount.Equal(params.Amount) {
		log.WithFields(logrus.Fields{"stored_user": req.UserID, "stored_amount": req.Amount}).Warn("decision refused, request does not match")
		return false, validation.New("userId and amount must match the stored request")
	}
	if req.Status != domain.StatusPending {
		log.WithField("status", req.Status).Info("request already decided")
		return false, nil
	}

	decide := func(ctx context.Context) (bool, error) {
		_, committed, err := p.repo.Mutate(ctx, params.Type, params.RequestID, func(r *domain.MoneyRequest) bool {
			if r.Status != domain.StatusPending {
				return false
			}
			r.Status = params.Decision
			r.ProcessedAt = p.now().UnixMilli()
			r.ProcessedBy = params.AdminID
			return true
		})
		if err != nil {
			return false, walletdomain.NewLedgerError(err, params.RequestID)
		}
		return committed, nil
	}

	if params.Decision == domain.StatusRejected {
		ok, err := decide(ctx)
		if err != nil || !ok {
			return false, err
		}
		p.cache.Clear(cache.RequestsKey(params.Type))
		metrics.RecordOperation("process_request", "rejected")
		log.Info("money request rejected")
		return true, nil
	}

	run := saga.New("process_"+params.Type, params.RequestID, p.logger)
	ok, err := run.Execute(ctx, saga.Definition{
		First: decide,
		Second: func(ctx context.Context) (bool, error) {
			balance, err := p.ledger.UpdateBalance(ctx, params.UserID, p.walletUpdate(params))
			if err != nil {
				return false, err
			}
			if balance == nil {
				log.Info("approval declined by wallet")
			}
			return balance != nil, nil
		},
		Compensate: func(ctx context.Context) error {
			return p.repo.UpdateFields(ctx, params.Type, params.RequestID, map[string]interface{}{
				"status":      domain.StatusPending,
				"processedAt": nil,
				"processedBy": nil,
			})
		},
	})
	if err != nil {
		metrics.RecordOperation("process_request", "failed")
		return false, err
	}
	if !ok {
		metrics.RecordOperation("process_request", "declined")
		return false, nil
	}

	if params.Type == domain.TypeWithdrawal {
		if _, err := auth.AdjustProfile(ctx, p.store, params.UserID, func(pr *auth.Profile) {
			pr.TotalWithdrawn = pr.TotalWithdrawn.Add(params.Amount)
		}); err != nil {
			log.WithError(err).Warn("could not update profile withdrawal total")
		}
		p.cache.Clear(cache.UserKey(params.UserID))
	}

	if _, err := p.ledger.RecordTransaction(ctx, params.UserID, walletdomain.Transaction{
		Type:        params.Type,
		Amount:      params.Amount,
		Status:      walletdomain.StatusApproved,
		Description: requestDescription(params.Type),
		Reference:   params.RequestID,
	}); err != nil {
		log.WithError(err).Warn("could not record approved request")
	}

	p.cache.Clear(cache.WalletKey(params.UserID))
	p.cache.Clear(cache.RequestsKey(params.Type))

	p.notifier.Notify(ctx, params.UserID, notification.Message{
		Title:          requestDescription(params.Type) + " approved",
		Body:           fmt.Sprintf("Your request for %s has been approved.", params.Amount.StringFixed(2)),
		AnalyticsLabel: "request_" + params.Type,
	})

	metrics.RecordOperation("process_request", "committed")
	log.Info("money request approved")
	return true, nil
}

func (p *Processor) walletUpdate(params ProcessParams) walletdomain.UpdateFunc {
	return func(current walletdomain.WalletBalance) (walletdomain.BalanceUpdate, bool) {
		switch params.Type {
		case domain.TypeAddMoney:
			added := current.AddedBalance.Add(params.Amount)
			pending := decimal.Max(decimal.Zero, current.PendingAddMoney.Sub(params.Amount))
			return walletdomain.BalanceUpdate{AddedBalance: &added, PendingAddMoney: &pending}, true
		case domain.TypeWithdrawal:
			if current.EarnedBalance.LessThan(params.Amount) {
				return walletdomain.BalanceUpdate{}, false
			}
			earned := current.EarnedBalance.Sub(params.Amount)
			withdrawn := current.TotalWithdrawn.Add(params.Amount)
			return walletdomain.BalanceUpdate{EarnedBalance: &earned, TotalWithdrawn: &withdrawn}, true
		}
		return walletdomain.BalanceUpdate{}, false
	}
}

// ListRequests returns one request queue, newest first. Admin only.
func (p *Processor) ListRequests(ctx context.Context, adminID, requestType string) (domain.MoneyRequestCollection, error) {
	if err := validation.Struct(struct {
		Type string `json:"type" validate:"oneof=add_money withdrawal"`
	}{requestType}); err != nil {
		return nil, err
	}
	if err := p.guard.Require(ctx, adminID, "", auth.RoleAdmin); err != nil {
		return nil, err
	}

	requests, err := cache.Load(p.cache, cache.RequestsKey(requestType), func() (domain.MoneyRequestCollection, error) {
		return p.repo.ListRequests(ctx, requestType)
	})
	if err != nil {
		return nil, walletdomain.NewLedgerError(err, requestType)
	}
	return requests, nil
}

func requestDescription(requestType string) string {
	if requestType == domain.TypeWithdrawal {
		return "Withdrawal"
	}
	return "Add money"
}
