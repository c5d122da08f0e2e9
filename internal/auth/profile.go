package auth

import (
	"context"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
)

// AdjustProfile applies fn to users/{uid} inside a compare-and-swap. Missing
// profiles are left alone. It reports whether a write committed.
func AdjustProfile(ctx context.Context, s store.Store, uid string, fn func(p *Profile)) (bool, error) {
	res, err := s.Transaction(ctx, ProfilePath(uid), func(current store.Node) (interface{}, error) {
		if !current.Exists() {
			return nil, store.ErrAbort
		}
		var p Profile
		if err := current.Unmarshal(&p); err != nil {
			return nil, err
		}
		fn(&p)
		return store.Overlay(current, p)
	})
	if err != nil {
		return false, err
	}
	return res.Committed, nil
}
