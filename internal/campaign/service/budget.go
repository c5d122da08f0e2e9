package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/SwiftFiat/taskmarket-ledger/internal/auth"
	"github.com/SwiftFiat/taskmarket-ledger/internal/campaign/domain"
	"github.com/SwiftFiat/taskmarket-ledger/internal/campaign/repository"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/saga"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/validation"
	walletdomain "github.com/SwiftFiat/taskmarket-ledger/internal/wallet/domain"
	walletservice "github.com/SwiftFiat/taskmarket-ledger/internal/wallet/service"
	"github.com/SwiftFiat/taskmarket-ledger/services/cache"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/logging"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/metrics"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type DeductBudgetParams struct {
	CampaignID string          `json:"campaignId" validate:"key"`
	Amount     decimal.Decimal `json:"amount" validate:"gt=0,lte=100000"`
	PayerID    string          `json:"payerId" validate:"key"`
	ActorID    string          `json:"actorId" validate:"key"`
}

type CampaignService struct {
	repo   repository.CampaignRepository
	ledger *walletservice.Ledger
	guard  *auth.Guard
	cache  *cache.Cache
	logger *logging.Logger
}

func NewCampaignService(s store.Store, ledger *walletservice.Ledger, guard *auth.Guard, c *cache.Cache, logger *logging.Logger) *CampaignService {
	return &CampaignService{
		repo:   repository.NewStoreCampaignRepository(s),
		ledger: ledger,
		guard:  guard,
		cache:  c,
		logger: logger,
	}
}

// DeductBudget takes amount out of the campaign's remaining budget and then out
// of the payer's added balance. Each step is a compare-and-swap on its own
// path; there is no lock across the pair. If the wallet step does not commit
// the campaign is credited back with one plain write and false is returned.
// A crash between the wallet step and that write leaves the campaign debited.
// The write sets remainingBudget from the snapshot this call committed, so a
// deduction by another caller that commits between the two is overwritten and
// its amount returns to the campaign budget.
func (s *CampaignService) DeductBudget(ctx context.Context, params DeductBudgetParams) (bool, error) {
	if err := validation.Struct(params); err != nil {
		return false, err
	}
	if err := s.guard.Require(ctx, params.ActorID, params.PayerID, ""); err != nil {
		return false, err
	}

	log := s.logger.WithFields(logrus.Fields{
		"campaign": params.CampaignID,
		"payer":    params.PayerID,
		"amount":   params.Amount,
	})

	campaign, err := s.repo.GetCampaign(ctx, params.CampaignID)
	if err != nil {
		if !errors.Is(err, domain.ErrCampaignNotFound) {
			err = walletdomain.NewLedgerError(err, params.CampaignID)
		}
		return false, err
	}
	if campaign.CreatorID != params.PayerID {
		log.Warn("budget deduction refused, payer does not own campaign")
		return false, domain.ErrNotCampaignOwner
	}

	var debited *domain.Campaign
	run := saga.New("deduct_budget", params.CampaignID, s.logger)
	ok, err := run.Execute(ctx, saga.Definition{
		First: func(ctx context.Context) (bool, error) {
			c, committed, err := s.repo.Mutate(ctx, params.CampaignID, func(c *domain.Campaign) bool {
				if c.RemainingBudget.LessThan(params.Amount) {
					return false
				}
				c.RemainingBudget = c.RemainingBudget.Sub(params.Amount)
				return true
			})
			if err != nil {
				return false, walletdomain.NewLedgerError(err, params.CampaignID)
			}
			if !committed {
				log.Info("budget deduction declined, insufficient campaign budget")
			}
			debited = c
			return committed, nil
		},
		Second: func(ctx context.Context) (bool, error) {
			balance, err := s.ledger.UpdateBalance(ctx, params.PayerID, func(current walletdomain.WalletBalance) (walletdomain.BalanceUpdate, bool) {
				if current.AddedBalance.LessThan(params.Amount) {
					return walletdomain.BalanceUpdate{}, false
				}
				added := current.AddedBalance.Sub(params.Amount)
				return walletdomain.BalanceUpdate{AddedBalance: &added}, true
			})
			if err != nil {
				return false, err
			}
			if balance == nil {
				log.Info("budget deduction declined, insufficient wallet balance")
			}
			return balance != nil, nil
		},
		Compensate: func(ctx context.Context) error {
			restored := decimal.Min(debited.RemainingBudget.Add(params.Amount), debited.TotalBudget)
			return s.repo.UpdateFields(ctx, params.CampaignID, map[string]interface{}{
				"remainingBudget": restored,
			})
		},
	})
	if err != nil {
		metrics.RecordOperation("deduct_budget", "failed")
		return false, err
	}
	if !ok {
		metrics.RecordOperation("deduct_budget", "declined")
		return false, nil
	}

	s.cache.Clear(cache.WalletKey(params.PayerID))
	s.cache.Clear(cache.CampaignsKey)
	s.cache.Clear(cache.CampaignKey(params.CampaignID))

	if _, err := s.ledger.RecordTransaction(ctx, params.PayerID, walletdomain.Transaction{
		Type:        walletdomain.TransactionCampaignSpend,
		Amount:      params.Amount,
		Status:      walletdomain.StatusApproved,
		Description: fmt.Sprintf("Budget for campaign %s", campaign.Title),
		Reference:   params.CampaignID,
	}); err != nil {
		log.WithError(err).Warn("could not record campaign spend")
	}

	metrics.RecordOperation("deduct_budget", "committed")
	log.Info("campaign budget deducted")
	return true, nil
}

func (s *CampaignService) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	if err := validation.Struct(struct {
		CampaignID string `json:"campaignId" validate:"key"`
	}{id}); err != nil {
		return nil, err
	}

	c, err := cache.Load(s.cache, cache.CampaignKey(id), func() (domain.Campaign, error) {
		c, err := s.repo.GetCampaign(ctx, id)
		if err != nil {
			return domain.Campaign{}, err
		}
		return *c, nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CampaignService) ListCampaigns(ctx context.Context) (domain.CampaignCollection, error) {
	return cache.Load(s.cache, cache.CampaignsKey, func() (domain.CampaignCollection, error) {
		return s.repo.ListCampaigns(ctx)
	})
}
