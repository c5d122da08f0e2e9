package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/SwiftFiat/taskmarket-ledger/internal/auth"
	campaigndomain "github.com/SwiftFiat/taskmarket-ledger/internal/campaign/domain"
	campaignrepo "github.com/SwiftFiat/taskmarket-ledger/internal/campaign/repository"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/saga"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/validation"
	walletdomain "github.com/SwiftFiat/taskmarket-ledger/internal/wallet/domain"
	walletservice "github.com/SwiftFiat/taskmarket-ledger/internal/wallet/service"
	"github.com/SwiftFiat/taskmarket-ledger/internal/work/domain"
	"github.com/SwiftFiat/taskmarket-ledger/internal/work/repository"
	"github.com/SwiftFiat/taskmarket-ledger/services/cache"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/logging"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/metrics"
	"github.com/SwiftFiat/taskmarket-ledger/services/notification"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ApplyParams struct {
	CampaignID string `json:"campaignId" validate:"key"`
	UserID     string `json:"userId" validate:"key"`
	UserName   string `json:"userName" validate:"max=100"`
	ActorID    string `json:"actorId" validate:"key"`
}

type SubmitParams struct {
	CampaignID string `json:"campaignId" validate:"key"`
	UserID     string `json:"userId" validate:"key"`
	ProofURL   string `json:"proofUrl" validate:"required,url,max=2048"`
	ActorID    string `json:"actorId" validate:"key"`
}

type ApproveWorkParams struct {
	WorkID     string          `json:"workId" validate:"key"`
	UserID     string          `json:"userId" validate:"key"`
	CampaignID string          `json:"campaignId" validate:"omitempty,key"`
	Reward     decimal.Decimal `json:"reward" validate:"gt=0,lte=100000"`
	AdminID    string          `json:"adminId" validate:"key"`
}

type RejectWorkParams struct {
	WorkID     string `json:"workId" validate:"key"`
	UserID     string `json:"userId" validate:"key"`
	CampaignID string `json:"campaignId" validate:"omitempty,key"`
	AdminID    string `json:"adminId" validate:"key"`
}

type WorkService struct {
	works     repository.WorkRepository
	campaigns campaignrepo.CampaignRepository
	store     store.Store
	ledger    *walletservice.Ledger
	guard     *auth.Guard
	cache     *cache.Cache
	notifier  notification.Notifier
	logger    *logging.Logger
	now       func() time.Time
}

func NewWorkService(s store.Store, ledger *walletservice.Ledger, guard *auth.Guard, c *cache.Cache, notifier notification.Notifier, logger *logging.Logger) *WorkService {
	return &WorkService{
		works:     repository.NewStoreWorkRepository(s),
		campaigns: campaignrepo.NewStoreCampaignRepository(s),
		store:     s,
		ledger:    ledger,
		guard:     guard,
		cache:     c,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// ApplyToCampaign reserves a worker slot on the campaign and then writes the
// pending submission. If the submission cannot be written the slot is given
// back with a single plain write.
func (s *WorkService) ApplyToCampaign(ctx context.Context, params ApplyParams) (*domain.WorkSubmission, error) {
	if err := validation.Struct(params); err != nil {
		return nil, err
	}
	if params.ActorID != params.UserID {
		return nil, auth.ErrUnauthorized
	}

	log := s.logger.WithFields(logrus.Fields{"campaign": params.CampaignID, "user": params.UserID})

	if _, err := s.works.GetWork(ctx, params.UserID, params.CampaignID); err == nil {
		return nil, domain.ErrAlreadyApplied
	} else if !errors.Is(err, domain.ErrWorkNotFound) {
		return nil, walletdomain.NewLedgerError(err, params.UserID)
	}

	var (
		taken   *campaigndomain.Campaign
		refusal = campaigndomain.ErrCampaignNotFound
		work    domain.WorkSubmission
	)
	run := saga.New("apply_to_campaign", params.CampaignID, s.logger)
	ok, err := run.Execute(ctx, saga.Definition{
		First: func(ctx context.Context) (bool, error) {
			c, committed, err := s.campaigns.Mutate(ctx, params.CampaignID, func(c *campaigndomain.Campaign) bool {
				switch {
				case c.Status != campaigndomain.StatusActive:
					refusal = campaigndomain.ErrCampaignNotActive
					return false
				case !c.HasFreeSlot():
					refusal = campaigndomain.ErrCampaignFull
					return false
				}
				c.CompletedWorkers++
				return true
			})
			if err != nil {
				return false, walletdomain.NewLedgerError(err, params.CampaignID)
			}
			taken = c
			return committed, nil
		},
		Second: func(ctx context.Context) (bool, error) {
			work = domain.WorkSubmission{
				ID:          params.CampaignID,
				UserID:      params.UserID,
				UserName:    params.UserName,
				CampaignID:  params.CampaignID,
				Status:      domain.StatusPending,
				Reward:      taken.RewardPerWorker,
				SubmittedAt: s.now().UnixMilli(),
			}
			if err := s.works.CreateWork(ctx, work); err != nil {
				return false, err
			}
			return true, nil
		},
		Compensate: func(ctx context.Context) error {
			released := taken.CompletedWorkers - 1
			if released < 0 {
				released = 0
			}
			return s.campaigns.UpdateFields(ctx, params.CampaignID, map[string]interface{}{
				"completedWorkers": released,
			})
		},
	})
	if err != nil {
		metrics.RecordOperation("apply_to_campaign", "failed")
		return nil, err
	}
	if !ok {
		metrics.RecordOperation("apply_to_campaign", "declined")
		log.WithField("reason", refusal).Info("application refused")
		return nil, refusal
	}

	s.cache.Clear(cache.WorksKey(params.UserID))
	s.cache.Clear(cache.CampaignsKey)
	s.cache.Clear(cache.CampaignKey(params.CampaignID))

	metrics.RecordOperation("apply_to_campaign", "committed")
	log.Info("applied to campaign")
	return &work, nil
}

// SubmitWork attaches proof to the user's submission and puts it back in the
// review queue. Rejected work may be resubmitted, approved work may not.
func (s *WorkService) SubmitWork(ctx context.Context, params SubmitParams) (*domain.WorkSubmission, error) {
	if err := validation.Struct(params); err != nil {
		return nil, err
	}
	if params.ActorID != params.UserID {
		return nil, auth.ErrUnauthorized
	}

	var refusal error
	work, committed, err := s.works.Mutate(ctx, params.UserID, params.CampaignID, func(w *domain.WorkSubmission) bool {
		if w.Status == domain.StatusApproved {
			refusal = domain.ErrWorkAlreadyApproved
			return false
		}
		w.ProofURL = params.ProofURL
		w.Status = domain.StatusPending
		w.SubmittedAt = s.now().UnixMilli()
		return true
	})
	if err != nil {
		return nil, walletdomain.NewLedgerError(err, params.UserID)
	}
	if work == nil {
		return nil, domain.ErrWorkNotFound
	}
	if !committed {
		return nil, refusal
	}

	s.cache.Clear(cache.WorksKey(params.UserID))
	s.cache.Clear(cache.WorkKey(params.UserID, params.CampaignID))

	s.logger.WithFields(logrus.Fields{"campaign": params.CampaignID, "user": params.UserID}).Info("work submitted")
	return work, nil
}

// ApproveWork marks a pending submission approved and credits the reward to
// the worker's earned balance. The reward is the one stored on the submission;
// a caller supplying a different amount is refused. When the credit does not commit the submission
// is put back to pending and false is returned.
func (s *WorkService) ApproveWork(ctx context.Context, params ApproveWorkParams) (bool, error) {
	if err := validation.Struct(params); err != nil {
		return false, err
	}
	if err := s.guard.Require(ctx, params.AdminID, params.UserID, auth.RoleAdmin); err != nil {
		return false, err
	}

	log := s.logger.WithFields(logrus.Fields{
		"work":   params.WorkID,
		"user":   params.UserID,
		"admin":  params.AdminID,
		"reward": params.Reward,
	})

	work, err := s.works.GetWork(ctx, params.UserID, params.WorkID)
	if err != nil {
		if !errors.Is(err, domain.ErrWorkNotFound) {
			err = walletdomain.NewLedgerError(err, params.WorkID)
		}
		return false, err
	}
	if !work.Reward.Equal(params.Reward) {
		log.WithField("stored_reward", work.Reward).Warn("approval refused, reward does not match submission")
		return false, validation.New(fmt.Sprintf("reward must equal the submission reward %s", work.Reward))
	}
	if params.CampaignID != "" && params.CampaignID != work.CampaignID {
		return false, validation.New("campaignId does not match the submission")
	}
	if !work.IsPending() {
		log.WithField("status", work.Status).Info("approval skipped, work is not pending")
		return false, nil
	}
	reward := work.Reward

	run := saga.New("approve_work", params.WorkID, s.logger)
	ok, err := run.Execute(ctx, saga.Definition{
		First: func(ctx context.Context) (bool, error) {
			_, committed, err := s.works.Mutate(ctx, params.UserID, params.WorkID, func(w *domain.WorkSubmission) bool {
				if !w.IsPending() {
					return false
				}
				w.Status = domain.StatusApproved
				return true
			})
			if err != nil {
				return false, walletdomain.NewLedgerError(err, params.WorkID)
			}
			return committed, nil
		},
		Second: func(ctx context.Context) (bool, error) {
			balance, err := s.ledger.UpdateBalance(ctx, params.UserID, func(current walletdomain.WalletBalance) (walletdomain.BalanceUpdate, bool) {
				return walletdomain.BalanceDelta{EarnedBalance: reward}.Update(current), true
			})
			if err != nil {
				return false, err
			}
			return balance != nil, nil
		},
		Compensate: func(ctx context.Context) error {
			return s.works.UpdateFields(ctx, params.UserID, params.WorkID, map[string]interface{}{
				"status": domain.StatusPending,
			})
		},
	})
	if err != nil {
		metrics.RecordOperation("approve_work", "failed")
		return false, err
	}
	if !ok {
		metrics.RecordOperation("approve_work", "declined")
		return false, nil
	}

	if _, err := auth.AdjustProfile(ctx, s.store, params.UserID, func(p *auth.Profile) {
		p.EarnedMoney = p.EarnedMoney.Add(reward)
		p.ApprovedWorks++
	}); err != nil {
		log.WithError(err).Warn("could not update profile counters")
	}

	if _, err := s.ledger.RecordTransaction(ctx, params.UserID, walletdomain.Transaction{
		Type:        walletdomain.TransactionEarning,
		Amount:      reward,
		Status:      walletdomain.StatusApproved,
		Description: "Reward for approved work",
		Reference:   params.WorkID,
	}); err != nil {
		log.WithError(err).Warn("could not record earning")
	}

	s.cache.Clear(cache.WalletKey(params.UserID))
	s.cache.Clear(cache.WorksKey(params.UserID))
	s.cache.Clear(cache.WorkKey(params.UserID, params.WorkID))
	s.cache.Clear(cache.UserKey(params.UserID))

	s.notifier.Notify(ctx, params.UserID, notification.Message{
		Title:          "Work approved",
		Body:           fmt.Sprintf("You earned %s for your submission.", reward.StringFixed(2)),
		AnalyticsLabel: "work_approved",
	})

	metrics.RecordOperation("approve_work", "committed")
	log.Info("work approved")
	return true, nil
}

// RejectWork marks a pending submission rejected and frees its campaign slot.
// The slot release is a separate write that is not undone if it fails, so the
// campaign's worker count may lag behind until the next rejection.
func (s *WorkService) RejectWork(ctx context.Context, params RejectWorkParams) (bool, error) {
	if err := validation.Struct(params); err != nil {
		return false, err
	}
	if err := s.guard.Require(ctx, params.AdminID, params.UserID, auth.RoleAdmin); err != nil {
		return false, err
	}

	log := s.logger.WithFields(logrus.Fields{"work": params.WorkID, "user": params.UserID, "admin": params.AdminID})

	work, err := s.works.GetWork(ctx, params.UserID, params.WorkID)
	if err != nil {
		if !errors.Is(err, domain.ErrWorkNotFound) {
			err = walletdomain.NewLedgerError(err, params.WorkID)
		}
		return false, err
	}
	if !work.IsPending() {
		log.WithField("status", work.Status).Info("rejection skipped, work is not pending")
		return false, nil
	}

	_, committed, err := s.works.Mutate(ctx, params.UserID, params.WorkID, func(w *domain.WorkSubmission) bool {
		if !w.IsPending() {
			return false
		}
		w.Status = domain.StatusRejected
		return true
	})
	if err != nil {
		return false, walletdomain.NewLedgerError(err, params.WorkID)
	}
	if !committed {
		metrics.RecordOperation("reject_work", "declined")
		return false, nil
	}

	campaignID := params.CampaignID
	if campaignID == "" {
		campaignID = work.CampaignID
	}
	if campaignID != "" {
		if _, _, err := s.campaigns.Mutate(ctx, campaignID, func(c *campaigndomain.Campaign) bool {
			if c.CompletedWorkers <= 0 {
				return false
			}
			c.CompletedWorkers--
			return true
		}); err != nil {
			log.WithError(err).Warn("work rejected but campaign slot was not released")
		}
		s.cache.Clear(cache.CampaignKey(campaignID))
	}

	s.cache.Clear(cache.WorksKey(params.UserID))
	s.cache.Clear(cache.WorkKey(params.UserID, params.WorkID))
	s.cache.Clear(cache.CampaignsKey)

	metrics.RecordOperation("reject_work", "committed")
	log.Info("work rejected")
	return true, nil
}

func (s *WorkService) ListWorks(ctx context.Context, actorID, uid string) (domain.WorkCollection, error) {
	if err := validation.Struct(struct {
		UID string `json:"uid" validate:"key"`
	}{uid}); err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actorID, uid, ""); err != nil {
		return nil, err
	}

	works, err := cache.Load(s.cache, cache.WorksKey(uid), func() (domain.WorkCollection, error) {
		return s.works.ListWorks(ctx, uid)
	})
	if err != nil {
		return nil, walletdomain.NewLedgerError(err, uid)
	}
	return works, nil
}
