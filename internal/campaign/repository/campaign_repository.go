package repository

import (
	"context"
	"sort"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/SwiftFiat/taskmarket-ledger/internal/campaign/domain"
)

// MutateFunc edits the campaign in place. Returning false abandons the write.
type MutateFunc func(c *domain.Campaign) bool

type CampaignRepository interface {
	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)
	ListCampaigns(ctx context.Context) (domain.CampaignCollection, error)
	// Mutate applies fn through the store's compare-and-swap. A campaign that
	// does not exist is never created: fn is not called and nothing commits.
	Mutate(ctx context.Context, id string, fn MutateFunc) (*domain.Campaign, bool, error)
	// UpdateFields merges fields into the campaign without a compare-and-swap.
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
}

type StoreCampaignRepository struct {
	store store.Store
}

func NewStoreCampaignRepository(s store.Store) *StoreCampaignRepository {
	return &StoreCampaignRepository{store: s}
}

// GetCampaign returns domain.ErrCampaignNotFound for a missing campaign.
func (r *StoreCampaignRepository) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	var c domain.Campaign
	found, err := r.store.Get(ctx, domain.CampaignPath(id), &c)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrCampaignNotFound
	}
	c.ID = id
	return &c, nil
}

func (r *StoreCampaignRepository) ListCampaigns(ctx context.Context) (domain.CampaignCollection, error) {
	children, err := r.store.Children(ctx, domain.CampaignsPath())
	if err != nil {
		return nil, err
	}

	campaigns := make(domain.CampaignCollection, 0, len(children))
	for id, node := range children {
		var c domain.Campaign
		if err := node.Unmarshal(&c); err != nil {
			return nil, err
		}
		c.ID = id
		campaigns = append(campaigns, c)
	}
	sort.Slice(campaigns, func(i, j int) bool {
		if campaigns[i].CreatedAt != campaigns[j].CreatedAt {
			return campaigns[i].CreatedAt > campaigns[j].CreatedAt
		}
		return campaigns[i].ID < campaigns[j].ID
	})
	return campaigns, nil
}

func (r *StoreCampaignRepository) Mutate(ctx context.Context, id string, fn MutateFunc) (*domain.Campaign, bool, error) {
	res, err := r.store.Transaction(ctx, domain.CampaignPath(id), func(current store.Node) (interface{}, error) {
		if !current.Exists() {
			return nil, store.ErrAbort
		}
		var c domain.Campaign
		if err := current.Unmarshal(&c); err != nil {
			return nil, err
		}
		if !fn(&c) {
			return nil, store.ErrAbort
		}
		c.ID = ""
		return store.Overlay(current, c)
	})
	if err != nil {
		return nil, false, err
	}

	if !res.Value.Exists() {
		return nil, false, nil
	}
	var c domain.Campaign
	if err := res.Value.Unmarshal(&c); err != nil {
		return nil, false, err
	}
	c.ID = id
	return &c, res.Committed, nil
}

func (r *StoreCampaignRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.store.Update(ctx, domain.CampaignPath(id), fields)
}
