package mapper

import (
	"sort"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/SwiftFiat/taskmarket-ledger/internal/wallet/domain"
)

// ToTransactionCollection decodes a transactions/{uid} listing, newest first.
func ToTransactionCollection(children map[string]store.Node) (domain.TransactionCollection, error) {
	response := make(domain.TransactionCollection, 0, len(children))
	for key, node := range children {
		var tx domain.Transaction
		if err := node.Unmarshal(&tx); err != nil {
			return nil, err
		}
		tx.ID = key
		response = append(response, tx)
	}

	sort.Slice(response, func(i, j int) bool {
		if response[i].CreatedAt != response[j].CreatedAt {
			return response[i].CreatedAt > response[j].CreatedAt
		}
		return response[i].ID > response[j].ID
	})
	return response, nil
}
