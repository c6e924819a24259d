package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"giftcards/internal/model"
)

// StatusUpdate is the set of status-dependent fields produced by ResolveStatus.
type StatusUpdate struct {
	Status         model.CardStatus
	ActivationDate *time.Time
}

// ResolveStatus maps a proposed card state and the prior persisted state to
// the resulting status. It never reads the proposed status: transitions are
// derived from the prior status, the payment flag, the offer reference and the
// balance. The same inputs always yield the same update, so replaying a write
// is safe.
//
//	inactive -> active    when paid and an offer is present
//	active   -> redeemed  when a spend or correction brings the balance to zero
//
// Expiry is not a transition; see model.Card.EffectiveStatus.
func ResolveStatus(op Operation, next model.Card, prior *model.Card, now time.Time) StatusUpdate {
	current := model.CardStatusInactive
	if prior != nil && prior.Status != "" {
		current = prior.Status
	}

	update := StatusUpdate{Status: current, ActivationDate: next.ActivationDate}
	switch current {
	case model.CardStatusInactive:
		if next.IsPaid && next.OfferID != uuid.Nil {
			update.Status = model.CardStatusActive
			if update.ActivationDate == nil {
				activatedAt := now
				update.ActivationDate = &activatedAt
			}
		}
	case model.CardStatusActive:
		if (op == OpSpend || op == OpAdminEdit) && reachesZero(next, prior) {
			update.Status = model.CardStatusRedeemed
		}
	}
	return update
}

func reachesZero(next model.Card, prior *model.Card) bool {
	if prior == nil || !next.RemainingBalance.Valid {
		return false
	}
	return next.RemainingBalance.Decimal.IsZero() && prior.Balance().IsPositive()
}
