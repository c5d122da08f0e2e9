package repository

import (
	"context"
	"sort"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/SwiftFiat/taskmarket-ledger/internal/work/domain"
)

type MutateFunc func(w *domain.WorkSubmission) bool

type WorkRepository interface {
	GetWork(ctx context.Context, uid, workID string) (*domain.WorkSubmission, error)
	ListWorks(ctx context.Context, uid string) (domain.WorkCollection, error)
	// CreateWork writes a new submission. It returns domain.ErrAlreadyApplied
	// when one already exists at that path.
	CreateWork(ctx context.Context, work domain.WorkSubmission) error
	// Mutate applies fn through a compare-and-swap on an existing submission.
	Mutate(ctx context.Context, uid, workID string, fn MutateFunc) (*domain.WorkSubmission, bool, error)
	UpdateFields(ctx context.Context, uid, workID string, fields map[string]interface{}) error
}

type StoreWorkRepository struct {
	store store.Store
}

func NewStoreWorkRepository(s store.Store) *StoreWorkRepository {
	return &StoreWorkRepository{store: s}
}

// GetWork returns domain.ErrWorkNotFound for a missing submission.
func (r *StoreWorkRepository) GetWork(ctx context.Context, uid, workID string) (*domain.WorkSubmission, error) {
	var w domain.WorkSubmission
	found, err := r.store.Get(ctx, domain.WorkPath(uid, workID), &w)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrWorkNotFound
	}
	w.ID = workID
	return &w, nil
}

func (r *StoreWorkRepository) ListWorks(ctx context.Context, uid string) (domain.WorkCollection, error) {
	children, err := r.store.Children(ctx, domain.WorksPath(uid))
	if err != nil {
		return nil, err
	}

	works := make(domain.WorkCollection, 0, len(children))
	for id, node := range children {
		var w domain.WorkSubmission
		if err := node.Unmarshal(&w); err != nil {
			return nil, err
		}
		w.ID = id
		works = append(works, w)
	}
	sort.Slice(works, func(i, j int) bool {
		if works[i].SubmittedAt != works[j].SubmittedAt {
			return works[i].SubmittedAt > works[j].SubmittedAt
		}
		return works[i].ID < works[j].ID
	})
	return works, nil
}

func (r *StoreWorkRepository) CreateWork(ctx context.Context, work domain.WorkSubmission) error {
	res, err := r.store.Transaction(ctx, domain.WorkPath(work.UserID, work.ID), func(current store.Node) (interface{}, error) {
		if current.Exists() {
			return nil, store.ErrAbort
		}
		return work, nil
	})
	if err != nil {
		return err
	}
	if !res.Committed {
		return domain.ErrAlreadyApplied
	}
	return nil
}

func (r *StoreWorkRepository) Mutate(ctx context.Context, uid, workID string, fn MutateFunc) (*domain.WorkSubmission, bool, error) {
	res, err := r.store.Transaction(ctx, domain.WorkPath(uid, workID), func(current store.Node) (interface{}, error) {
		if !current.Exists() {
			return nil, store.ErrAbort
		}
		var w domain.WorkSubmission
		if err := current.Unmarshal(&w); err != nil {
			return nil, err
		}
		if !fn(&w) {
			return nil, store.ErrAbort
		}
		return store.Overlay(current, w)
	})
	if err != nil {
		return nil, false, err
	}
	if !res.Value.Exists() {
		return nil, false, nil
	}

	var w domain.WorkSubmission
	if err := res.Value.Unmarshal(&w); err != nil {
		return nil, false, err
	}
	w.ID = workID
	return &w, res.Committed, nil
}

func (r *StoreWorkRepository) UpdateFields(ctx context.Context, uid, workID string, fields map[string]interface{}) error {
	return r.store.Update(ctx, domain.WorkPath(uid, workID), fields)
}
