package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"giftcards/internal/lifecycle"
	"giftcards/internal/model"
)

// Change is a committed card mutation. Before is nil when the card was
// created by the write.
type Change struct {
	Op     lifecycle.Operation `json:"op"`
	Before *model.Card         `json:"before,omitempty"`
	After  model.Card          `json:"after"`
}

// Key builds the idempotency key of the entry posted for a card version.
func Key(cardID uuid.UUID, entryType model.LedgerEntryType, version int64) string {
	return fmt.Sprintf("%s:%s:%d", cardID, entryType, version)
}

// Derive returns the single ledger entry a change produces, or false when the
// change does not move money.
//
//	created active with a balance  -> issue
//	inactive -> active             -> activation (instore_sale at a kiosk)
//	any other balance delta        -> redemption, top_up or correction
func Derive(change Change) (*model.LedgerEntry, bool) {
	after := change.After
	balance := after.Balance()

	var (
		entryType model.LedgerEntryType
		delta     decimal.Decimal
	)

	switch {
	case change.Before == nil:
		if after.Status != model.CardStatusActive || !balance.IsPositive() {
			return nil, false
		}
		entryType = model.LedgerEntryIssue
		delta = balance

	case change.Before.Status == model.CardStatusInactive && after.Status == model.CardStatusActive:
		entryType = model.LedgerEntryActivation
		if change.Op == lifecycle.OpActivateInStore {
			entryType = model.LedgerEntryInStoreSale
		}
		delta = balance

	default:
		delta = balance.Sub(change.Before.Balance())
		if delta.IsZero() {
			return nil, false
		}
		switch change.Op {
		case lifecycle.OpSpend:
			entryType = model.LedgerEntryRedemption
		case lifecycle.OpTopUp:
			entryType = model.LedgerEntryTopUp
		default:
			entryType = model.LedgerEntryCorrection
		}
	}

	return &model.LedgerEntry{
		CardID:         after.ID,
		CompanyID:      after.CompanyID,
		OwnedBy:        after.OwnedBy,
		Type:           entryType,
		Amount:         delta.Abs(),
		Delta:          delta,
		BalanceAfter:   balance,
		CardVersion:    after.LockVersion,
		IdempotencyKey: Key(after.ID, entryType, after.LockVersion),
	}, true
}
