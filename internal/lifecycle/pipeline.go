package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "giftcards/internal/errors"
	"giftcards/internal/model"
)

// Rotation carries freshly issued recipient-facing credentials.
type Rotation struct {
	Code          string
	RecipientUUID uuid.UUID
}

// ResetToBuyer strips gifting metadata and rotates the recipient-facing
// credentials. It is a command passed alongside the proposal, never a field
// of the card.
type ResetToBuyer struct {
	Rotation
}

// Input is a proposed card change together with everything the stages may
// consult. Prior is nil when the card is being created.
type Input struct {
	Op      Operation
	Prior   *model.Card
	Next    model.Card
	Offer   *model.Offer
	Company *model.Company
	Rotate  *Rotation
	Reset   *ResetToBuyer
	Now     time.Time
}

// Stage is one pure step of the write pipeline. It returns the updated
// proposal and must not modify Prior.
type Stage struct {
	Name string
	Run  func(in Input) (model.Card, error)
}

// Stages returns the pipeline in execution order.
func Stages() []Stage {
	return []Stage{
		{Name: "pin_provenance", Run: pinProvenance},
		{Name: "populate_from_offer", Run: populateFromOffer},
		{Name: "initialize_balance", Run: initializeBalance},
		{Name: "resolve_status", Run: resolveStatus},
		{Name: "calculate_expiry", Run: calculateExpiry},
		{Name: "rotate_credentials", Run: rotateCredentials},
		{Name: "reset_to_buyer", Run: resetToBuyer},
		{Name: "check_invariants", Run: checkInvariants},
	}
}

// Apply runs every stage in order and returns the card to persist.
func Apply(in Input) (model.Card, error) {
	if !in.Op.Valid() {
		return model.Card{}, apperrors.Validation("unknown operation %q", in.Op)
	}
	for _, stage := range Stages() {
		next, err := stage.Run(in)
		if err != nil {
			return model.Card{}, fmt.Errorf("%s: %w", stage.Name, err)
		}
		in.Next = next
	}
	return in.Next, nil
}

// pinProvenance keeps store-owned and set-once fields at their prior values.
// Later writes to them are ignored; only the reset stage may clear the
// printed and gifted timestamps.
func pinProvenance(in Input) (model.Card, error) {
	next := in.Next
	prior := in.Prior
	if prior == nil {
		return next, nil
	}

	next.ID = prior.ID
	next.LockVersion = prior.LockVersion
	next.CreatedAt = prior.CreatedAt
	next.OwnedBy = prior.OwnedBy
	if prior.ActivationDate != nil {
		next.ActivationDate = prior.ActivationDate
	}
	if prior.ExpiryDate != nil {
		next.ExpiryDate = prior.ExpiryDate
	}
	if prior.PrintedAt != nil {
		next.PrintedAt = prior.PrintedAt
	}
	if prior.GiftedAt != nil {
		next.GiftedAt = prior.GiftedAt
	}
	return next, nil
}

func populateFromOffer(in Input) (model.Card, error) {
	next := in.Next
	offer := in.Offer
	if offer == nil {
		return next, nil
	}

	if next.OfferID == uuid.Nil {
		next.OfferID = offer.ID
	}
	if next.OfferID != offer.ID {
		return next, apperrors.Validation("offer %s does not belong to card", offer.ID)
	}
	if next.CompanyID == uuid.Nil {
		next.CompanyID = offer.CompanyID
	}
	if !next.OriginalValue.Valid {
		next.OriginalValue.Decimal = offer.Value
		next.OriginalValue.Valid = true
	}
	if in.Prior == nil && next.OwnedBy == nil && in.Company != nil && in.Company.OwnedBy != nil {
		owner := *in.Company.OwnedBy
		next.OwnedBy = &owner
	}
	return next, nil
}

// initializeBalance sets the remaining balance from the original value once.
// A balance that is already present, now or before, is never overwritten.
func initializeBalance(in Input) (model.Card, error) {
	next := in.Next
	if in.Prior != nil && in.Prior.RemainingBalance.Valid {
		return next, nil
	}
	if next.OriginalValue.Valid && !next.RemainingBalance.Valid {
		next.RemainingBalance = next.OriginalValue
	}
	return next, nil
}

func resolveStatus(in Input) (model.Card, error) {
	next := in.Next
	update := ResolveStatus(in.Op, next, in.Prior, in.Now)
	next.Status = update.Status
	next.ActivationDate = update.ActivationDate
	return next, nil
}

// calculateExpiry runs once, when the card is active and paid and has no
// expiry date yet.
func calculateExpiry(in Input) (model.Card, error) {
	next := in.Next
	if next.ExpiryDate != nil || next.Status != model.CardStatusActive || !next.IsPaid || next.ActivationDate == nil {
		return next, nil
	}
	next.ExpiryDate = CalculateExpiry(RuleFromOffer(in.Offer), *next.ActivationDate)
	return next, nil
}

func rotateCredentials(in Input) (model.Card, error) {
	if in.Rotate == nil {
		return in.Next, nil
	}
	return applyRotation(in.Next, in.Prior, *in.Rotate)
}

func resetToBuyer(in Input) (model.Card, error) {
	if in.Reset == nil {
		return in.Next, nil
	}
	next := in.Next
	next.RecipientName = ""
	next.RecipientEmail = ""
	next.Message = ""
	next.PrintedAt = nil
	next.GiftedAt = nil
	return applyRotation(next, in.Prior, in.Reset.Rotation)
}

// applyRotation installs new credentials. Reusing the current code counts as
// a collision so that the caller draws again.
func applyRotation(next model.Card, prior *model.Card, rot Rotation) (model.Card, error) {
	if rot.Code == "" || rot.RecipientUUID == uuid.Nil {
		return next, apperrors.Validation("rotation requires a code and a recipient uuid")
	}
	if prior != nil && rot.Code == prior.Code {
		return next, fmt.Errorf("%w: code unchanged by rotation", apperrors.ErrDuplicate)
	}
	if prior != nil && rot.RecipientUUID == prior.RecipientUUID {
		return next, apperrors.Validation("recipient uuid unchanged by rotation")
	}
	next.Code = rot.Code
	next.RecipientUUID = rot.RecipientUUID
	return next, nil
}

func checkInvariants(in Input) (model.Card, error) {
	next := in.Next
	prior := in.Prior

	if next.Code == "" || next.UUID == uuid.Nil || next.RecipientUUID == uuid.Nil {
		return next, apperrors.Validation("card identifiers are missing")
	}
	if next.UUID == next.RecipientUUID {
		return next, apperrors.Validation("owner and recipient uuid must differ")
	}
	if next.Status == model.CardStatusExpired {
		return next, apperrors.Validation("expired status cannot be written")
	}
	if next.OriginalValue.Valid && next.OriginalValue.Decimal.IsNegative() {
		return next, apperrors.Validation("original value cannot be negative")
	}
	if next.RemainingBalance.Valid {
		if !next.OriginalValue.Valid {
			return next, apperrors.Validation("balance requires an original value")
		}
		if next.RemainingBalance.Decimal.IsNegative() {
			return next, apperrors.Validation("balance cannot be negative")
		}
		if next.RemainingBalance.Decimal.GreaterThan(next.OriginalValue.Decimal) {
			return next, apperrors.Validation("balance %s exceeds original value %s",
				next.RemainingBalance.Decimal, next.OriginalValue.Decimal)
		}
	}

	if prior == nil {
		return next, nil
	}
	if next.UUID != prior.UUID {
		return next, apperrors.Validation("uuid is immutable")
	}
	if prior.OriginalValue.Valid && (!next.OriginalValue.Valid || !next.OriginalValue.Decimal.Equal(prior.OriginalValue.Decimal)) {
		return next, apperrors.Validation("original value is fixed once set")
	}
	if prior.IsPaid && !next.IsPaid {
		return next, apperrors.Validation("payment confirmation cannot be revoked")
	}
	if prior.RemainingBalance.Valid && !next.RemainingBalance.Valid {
		return next, apperrors.Validation("balance cannot be cleared")
	}
	if prior.Status == model.CardStatusRedeemed && prior.RemainingBalance.Valid &&
		!next.RemainingBalance.Decimal.Equal(prior.RemainingBalance.Decimal) {
		return next, apperrors.Validation("balance of a redeemed card is final")
	}
	if prior.CompanyID != uuid.Nil && next.CompanyID != prior.CompanyID {
		return next, apperrors.Validation("company cannot change")
	}
	return next, nil
}
