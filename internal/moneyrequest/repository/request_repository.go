package repository

import (
	"context"
	"sort"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/SwiftFiat/taskmarket-ledger/internal/moneyrequest/domain"
)

type MutateFunc func(r *domain.MoneyRequest) bool

type RequestRepository interface {
	GetRequest(ctx context.Context, requestType, id string) (*domain.MoneyRequest, error)
	ListRequests(ctx context.Context, requestType string) (domain.MoneyRequestCollection, error)
	CreateRequest(ctx context.Context, r domain.MoneyRequest) (string, error)
	Mutate(ctx context.Context, requestType, id string, fn MutateFunc) (*domain.MoneyRequest, bool, error)
	UpdateFields(ctx context.Context, requestType, id string, fields map[string]interface{}) error
}

type StoreRequestRepository struct {
	store store.Store
}

func NewStoreRequestRepository(s store.Store) *StoreRequestRepository {
	return &StoreRequestRepository{store: s}
}

// GetRequest returns domain.ErrRequestNotFound for a missing request.
func (r *StoreRequestRepository) GetRequest(ctx context.Context, requestType, id string) (*domain.MoneyRequest, error) {
	p, err := domain.RequestPath(requestType, id)
	if err != nil {
		return nil, err
	}
	var req domain.MoneyRequest
	found, err := r.store.Get(ctx, p, &req)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrRequestNotFound
	}
	req.ID = id
	return &req, nil
}

func (r *StoreRequestRepository) ListRequests(ctx context.Context, requestType string) (domain.MoneyRequestCollection, error) {
	p, err := domain.RequestsPath(requestType)
	if err != nil {
		return nil, err
	}
	children, err := r.store.Children(ctx, p)
	if err != nil {
		return nil, err
	}

	requests := make(domain.MoneyRequestCollection, 0, len(children))
	for id, node := range children {
		var req domain.MoneyRequest
		if err := node.Unmarshal(&req); err != nil {
			return nil, err
		}
		req.ID = id
		requests = append(requests, req)
	}
	sort.Slice(requests, func(i, j int) bool {
		if requests[i].CreatedAt != requests[j].CreatedAt {
			return requests[i].CreatedAt > requests[j].CreatedAt
		}
		return requests[i].ID < requests[j].ID
	})
	return requests, nil
}

func (r *StoreRequestRepository) CreateRequest(ctx context.Context, req domain.MoneyRequest) (string, error) {
	p, err := domain.RequestsPath(req.Type)
	if err != nil {
		return "", err
	}
	req.ID = ""
	return r.store.Push(ctx, p, req)
}

func (r *StoreRequestRepository) Mutate(ctx context.Context, requestType, id string, fn MutateFunc) (*domain.MoneyRequest, bool, error) {
	p, err := domain.RequestPath(requestType, id)
	if err != nil {
		return nil, false, err
	}
	res, err := r.store.Transaction(ctx, p, func(current store.Node) (interface{}, error) {
		if !current.Exists() {
			return nil, store.ErrAbort
		}
		var req domain.MoneyRequest
		if err := current.Unmarshal(&req); err != nil {
			return nil, err
		}
		if !fn(&req) {
			return nil, store.ErrAbort
		}
		req.ID = ""
		return store.Overlay(current, req)
	})
	if err != nil {
		return nil, false, err
	}
	if !res.Value.Exists() {
		return nil, false, nil
	}

	var req domain.MoneyRequest
	if err := res.Value.Unmarshal(&req); err != nil {
		return nil, false, err
	}
	req.ID = id
	return &req, res.Committed, nil
}

func (r *StoreRequestRepository) UpdateFields(ctx context.Context, requestType, id string, fields map[string]interface{}) error {
	p, err := domain.RequestPath(requestType, id)
	if err != nil {
		return err
	}
	return r.store.Update(ctx, p, fields)
}
