package auth

import (
	"context"
	"errors"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/logging"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var ErrUnauthorized = errors.New("unauthorized to modify this record")

// Profile is the users/{uid} record. Identity and roles are owned elsewhere;
// the ledger only reads role and isBlocked and bumps the denormalized counters.
type Profile struct {
	Name           string          `json:"name,omitempty"`
	Role           string          `json:"role"`
	IsBlocked      bool            `json:"isBlocked"`
	EarnedMoney    decimal.Decimal `json:"earnedMoney"`
	ApprovedWorks  int64           `json:"approvedWorks"`
	TotalWithdrawn decimal.Decimal `json:"totalWithdrawn"`
	FCMToken       string          `json:"fcmToken,omitempty"`
}

func ProfilePath(uid string) string {
	return store.Join("users", uid)
}

// Guard decides whether an actor may mutate a target's records.
type Guard struct {
	store  store.Store
	logger *logging.Logger
}

func NewGuard(s store.Store, logger *logging.Logger) *Guard {
	return &Guard{store: s, logger: logger}
}

// Authorize never errors: missing ids, unknown actors and store failures all
// answer false. With a requiredRole the actor must hold it and not be blocked.
// Without one the actor must be the target or an unblocked admin.
func (g *Guard) Authorize(ctx context.Context, actorID, targetID, requiredRole string) bool {
	fields := logrus.Fields{"actor": actorID, "target": targetID, "required_role": requiredRole}

	if actorID == "" || (requiredRole == "" && targetID == "") {
		g.logger.WithFields(fields).Warn("authorization denied, missing id")
		return false
	}

	if requiredRole == "" && actorID == targetID {
		return true
	}

	var profile Profile
	found, err := g.store.Get(ctx, ProfilePath(actorID), &profile)
	if err != nil {
		g.logger.WithFields(fields).WithError(err).Error("authorization denied, could not load actor profile")
		return false
	}
	if !found {
		g.logger.WithFields(fields).Warn("authorization denied, unknown actor")
		return false
	}

	role := requiredRole
	if role == "" {
		role = RoleAdmin
	}
	if profile.Role != role || profile.IsBlocked {
		g.logger.WithFields(fields).Warn("authorization denied")
		return false
	}
	return true
}

// Require is Authorize as an error, for operations that must stop before writing.
func (g *Guard) Require(ctx context.Context, actorID, targetID, requiredRole string) error {
	if !g.Authorize(ctx, actorID, targetID, requiredRole) {
		return ErrUnauthorized
	}
	return nil
}
