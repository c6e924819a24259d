package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "giftcards/internal/errors"
	"giftcards/internal/issuer"
	"giftcards/internal/lifecycle"
	"giftcards/internal/model"
	"giftcards/internal/notify"
	"giftcards/internal/repository"
)

// ActivationSource tells an online activation apart from a kiosk one.
type ActivationSource string

const (
	ActivationOnline  ActivationSource = "online"
	ActivationInStore ActivationSource = "instore"
)

// CreateCardInput describes a new card.
type CreateCardInput struct {
	OfferID       uuid.UUID
	CustomerEmail string
	IsPaid        bool
}

// ActivateInput describes an activation request. CompanyID is the activating
// company and is required for in-store activations.
type ActivateInput struct {
	CardID        uuid.UUID
	Source        ActivationSource
	CompanyID     uuid.UUID
	CustomerEmail string
}

// GiftRecipient is the gifting metadata of a card.
type GiftRecipient struct {
	Name    string `json:"name" validate:"max=255"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"max=2000"`
}

// AdminChanges is a back-office edit. Nil fields are left as they are.
type AdminChanges struct {
	RemainingBalance *decimal.Decimal
	IsPaid           *bool
	CustomerEmail    *string
	RecipientName    *string
	RecipientEmail   *string
	Message          *string
}

// CardService handles gift card lifecycle operations.
type CardService interface {
	CreateCard(ctx context.Context, in CreateCardInput) (*model.Card, error)
	CreateInactiveCard(ctx context.Context, offerID uuid.UUID) (*model.Card, error)
	ActivateCard(ctx context.Context, in ActivateInput) (*model.Card, error)
	ActivateInStore(ctx context.Context, code string, companyID uuid.UUID, customerEmail string) (*model.Card, error)
	Spend(ctx context.Context, cardID uuid.UUID, amount decimal.Decimal) (*model.Card, error)
	TopUp(ctx context.Context, cardID uuid.UUID, amount decimal.Decimal) (*model.Card, error)
	MarkPrinted(ctx context.Context, cardID uuid.UUID, allowInactive bool) (*model.Card, error)
	RegisterGiftRecipient(ctx context.Context, cardUUID uuid.UUID, recipient GiftRecipient) (*model.Card, error)
	ResetToBuyer(ctx context.Context, cardID uuid.UUID) (*model.Card, error)
	AdminUpdate(ctx context.Context, cardID uuid.UUID, changes AdminChanges) (*model.Card, error)

	GetCard(ctx context.Context, id uuid.UUID) (*model.Card, error)
	GetCardByUUID(ctx context.Context, cardUUID uuid.UUID) (*model.Card, error)
	GetCardByRecipientUUID(ctx context.Context, recipientUUID uuid.UUID) (*model.Card, error)
	GetCardByCode(ctx context.Context, code string) (*model.Card, error)
	Ledger(ctx context.Context, cardID uuid.UUID) ([]model.LedgerEntry, error)
}

type cardService struct {
	*engine
	validator *CardValidator
}

// NewCardService creates a new card service.
func NewCardService(deps Deps) CardService {
	return &cardService{
		engine:    newEngine(deps),
		validator: NewCardValidator(),
	}
}

func byID(id uuid.UUID) func(ctx context.Context, tx repository.Store) (*model.Card, error) {
	return func(ctx context.Context, tx repository.Store) (*model.Card, error) {
		return tx.Cards().FindByID(ctx, id)
	}
}

func byUUID(id uuid.UUID) func(ctx context.Context, tx repository.Store) (*model.Card, error) {
	return func(ctx context.Context, tx repository.Store) (*model.Card, error) {
		return tx.Cards().FindByUUID(ctx, id)
	}
}

// loadOffer returns an offer that can still be sold.
func loadOffer(ctx context.Context, tx repository.Store, offerID uuid.UUID) (*model.Offer, error) {
	offer, err := tx.Offers().FindByID(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("load offer: %w", err)
	}
	if !offer.Active {
		return nil, apperrors.Validation("offer %s is not available", offerID)
	}
	return offer, nil
}

// CreateCard issues a card from an offer. A paid card is active immediately.
func (s *cardService) CreateCard(ctx context.Context, in CreateCardInput) (*model.Card, error) {
	if in.CustomerEmail != "" {
		if err := s.validator.ValidateEmail(in.CustomerEmail); err != nil {
			return nil, err
		}
	}

	out, err := s.mutate(ctx, mutation{
		op: lifecycle.OpIssue,
		check: func(ctx context.Context, tx repository.Store, _ *model.Card) (*plan, error) {
			offer, err := loadOffer(ctx, tx, in.OfferID)
			if err != nil {
				return nil, err
			}
			return &plan{
				offer: offer,
				next: model.Card{
					OfferID:       offer.ID,
					Status:        model.CardStatusInactive,
					IsPaid:        in.IsPaid,
					CustomerEmail: in.CustomerEmail,
				},
			}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return s.view(out.card), nil
}

// CreateInactiveCard issues unpaid kiosk stock. The card is marked printed
// and waits for an in-store activation.
func (s *cardService) CreateInactiveCard(ctx context.Context, offerID uuid.UUID) (*model.Card, error) {
	out, err := s.mutate(ctx, mutation{
		op: lifecycle.OpIssue,
		check: func(ctx context.Context, tx repository.Store, _ *model.Card) (*plan, error) {
			offer, err := loadOffer(ctx, tx, offerID)
			if err != nil {
				return nil, err
			}
			printedAt := s.now()
			return &plan{
				offer: offer,
				next: model.Card{
					OfferID:       offer.ID,
					Status:        model.CardStatusInactive,
					CustomerEmail: s.opts.SystemEmail,
					PrintedAt:     &printedAt,
				},
			}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return s.view(out.card), nil
}

// ActivateCard activates an inactive card. Online activations require a
// confirmed payment. In-store activations must come from the issuing company;
// they mark the card paid and book the sale for that company.
func (s *cardService) ActivateCard(ctx context.Context, in ActivateInput) (*model.Card, error) {
	op := lifecycle.OpActivateOnline
	switch in.Source {
	case ActivationOnline:
	case ActivationInStore:
		op = lifecycle.OpActivateInStore
		if in.CompanyID == uuid.Nil {
			return nil, apperrors.Validation("in-store activation requires a company")
		}
	default:
		return nil, apperrors.Validation("unknown activation source %q", in.Source)
	}
	if in.CustomerEmail != "" {
		if err := s.validator.ValidateEmail(in.CustomerEmail); err != nil {
			return nil, err
		}
	}

	m := mutation{
		op:   op,
		load: byID(in.CardID),
		check: func(ctx context.Context, tx repository.Store, prior *model.Card) (*plan, error) {
			if in.Source == ActivationInStore && prior.CompanyID != in.CompanyID {
				return nil, apperrors.ErrForbidden
			}
			if prior.Status != model.CardStatusInactive {
				return nil, apperrors.ErrAlreadyActive
			}
			if in.Source == ActivationOnline && !prior.IsPaid {
				return nil, apperrors.ErrUnpaid
			}

			next := *prior
			next.IsPaid = true
			if in.CustomerEmail != "" {
				next.CustomerEmail = in.CustomerEmail
			}
			return &plan{next: next}, nil
		},
	}
	if in.Source == ActivationInStore {
		m.extra = func(ctx context.Context, tx repository.Store, _, saved *model.Card, p *plan) error {
			_, err := s.ledger.RecordInStoreSale(ctx, tx, saved, p.company, saved.OriginalValue.Decimal)
			return err
		}
	}

	out, err := s.mutate(ctx, m)
	if err != nil {
		return nil, err
	}

	if out.card.CustomerEmail != "" && out.card.CustomerEmail != s.opts.SystemEmail {
		s.notify(ctx, notify.Message{
			Type:    notify.EmailReceipt,
			To:      out.card.CustomerEmail,
			Cards:   []model.Card{*out.card},
			Context: map[string]string{"source": string(in.Source)},
		})
	}
	return s.view(out.card), nil
}

// ActivateInStore resolves a card by its printed code and activates it for
// companyID.
func (s *cardService) ActivateInStore(ctx context.Context, code string, companyID uuid.UUID, customerEmail string) (*model.Card, error) {
	normalized, err := issuer.NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	card, err := s.store.Cards().FindByCode(ctx, normalized)
	if err != nil {
		return nil, err
	}
	return s.ActivateCard(ctx, ActivateInput{
		CardID:        card.ID,
		Source:        ActivationInStore,
		CompanyID:     companyID,
		CustomerEmail: customerEmail,
	})
}

// checkSpendable reports why an active-only operation cannot run on card.
func (s *cardService) checkSpendable(card *model.Card) error {
	if card.Status != model.CardStatusActive {
		return apperrors.ErrNotActive
	}
	if card.IsExpired(s.now()) {
		return apperrors.ErrExpired
	}
	return nil
}

// Spend redeems amount from the card balance. A card spent down to zero
// becomes redeemed.
func (s *cardService) Spend(ctx context.Context, cardID uuid.UUID, amount decimal.Decimal) (*model.Card, error) {
	if err := s.validator.ValidateAmount(amount); err != nil {
		return nil, err
	}

	out, err := s.mutate(ctx, mutation{
		op:   lifecycle.OpSpend,
		load: byID(cardID),
		check: func(ctx context.Context, tx repository.Store, prior *model.Card) (*plan, error) {
			if err := s.checkSpendable(prior); err != nil {
				return nil, err
			}
			if amount.GreaterThan(prior.Balance()) {
				return nil, apperrors.ErrInsufficientBalance
			}
			next := *prior
			next.RemainingBalance = decimal.NewNullDecimal(prior.Balance().Sub(amount))
			return &plan{next: next}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return s.view(out.card), nil
}

// TopUp adds amount to an active card. The balance never exceeds the
// original value.
func (s *cardService) TopUp(ctx context.Context, cardID uuid.UUID, amount decimal.Decimal) (*model.Card, error) {
	if err := s.validator.ValidateAmount(amount); err != nil {
		return nil, err
	}

	out, err := s.mutate(ctx, mutation{
		op:   lifecycle.OpTopUp,
		load: byID(cardID),
		check: func(ctx context.Context, tx repository.Store, prior *model.Card) (*plan, error) {
			if err := s.checkSpendable(prior); err != nil {
				return nil, err
			}
			balance := prior.Balance().Add(amount)
			if balance.GreaterThan(prior.OriginalValue.Decimal) {
				return nil, apperrors.Validation("top-up of %s exceeds original value %s", amount, prior.OriginalValue.Decimal)
			}
			next := *prior
			next.RemainingBalance = decimal.NewNullDecimal(balance)
			return &plan{next: next}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return s.view(out.card), nil
}

// MarkPrinted records the first print of a card and rotates its credentials
// so that earlier digital copies stop working. Printing again is a no-op.
func (s *cardService) MarkPrinted(ctx context.Context, cardID uuid.UUID, allowInactive bool) (*model.Card, error) {
	out, err := s.mutate(ctx, mutation{
		op:   lifecycle.OpPrint,
		load: byID(cardID),
		check: func(ctx context.Context, tx repository.Store, prior *model.Card) (*plan, error) {
			if prior.Status == model.CardStatusInactive && !allowInactive {
				return nil, apperrors.ErrNotActive
			}
			if prior.PrintedAt != nil {
				return &plan{unchanged: true}, nil
			}
			next := *prior
			printedAt := s.now()
			next.PrintedAt = &printedAt
			return &plan{next: next, rotate: true}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return s.view(out.card), nil
}

// RegisterGiftRecipient stores who a card is meant for. A card has at most
// one registered recipient.
func (s *cardService) RegisterGiftRecipient(ctx context.Context, cardUUID uuid.UUID, recipient GiftRecipient) (*model.Card, error) {
	if err := s.validator.ValidateRecipient(recipient); err != nil {
		return nil, err
	}

	out, err := s.mutate(ctx, mutation{
		op:   lifecycle.OpRegisterRecipient,
		load: byUUID(cardUUID),
		check: func(ctx context.Context, tx repository.Store, prior *model.Card) (*plan, error) {
			if prior.RecipientEmail != "" {
				return nil, apperrors.Validation("card already has a recipient")
			}
			next := *prior
			next.RecipientName = recipient.Name
			next.RecipientEmail = recipient.Email
			next.Message = recipient.Message
			return &plan{next: next}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return s.view(out.card), nil
}

// ResetToBuyer strips gifting metadata and issues a new code and recipient
// uuid. Status, balance and the owner uuid are kept.
func (s *cardService) ResetToBuyer(ctx context.Context, cardID uuid.UUID) (*model.Card, error) {
	out, err := s.mutate(ctx, mutation{
		op:   lifecycle.OpReset,
		load: byID(cardID),
		check: func(ctx context.Context, tx repository.Store, prior *model.Card) (*plan, error) {
			return &plan{next: *prior, reset: true}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return s.view(out.card), nil
}

// AdminUpdate applies a back-office edit. Balance changes are posted to the
// ledger as corrections. A redeemed card's balance can no longer change.
func (s *cardService) AdminUpdate(ctx context.Context, cardID uuid.UUID, changes AdminChanges) (*model.Card, error) {
	if changes.CustomerEmail != nil && *changes.CustomerEmail != "" {
		if err := s.validator.ValidateEmail(*changes.CustomerEmail); err != nil {
			return nil, err
		}
	}
	if changes.RecipientEmail != nil && *changes.RecipientEmail != "" {
		if err := s.validator.ValidateEmail(*changes.RecipientEmail); err != nil {
			return nil, err
		}
	}

	out, err := s.mutate(ctx, mutation{
		op:   lifecycle.OpAdminEdit,
		load: byID(cardID),
		check: func(ctx context.Context, tx repository.Store, prior *model.Card) (*plan, error) {
			next := *prior
			if changes.RemainingBalance != nil {
				next.RemainingBalance = decimal.NewNullDecimal(*changes.RemainingBalance)
			}
			if changes.IsPaid != nil {
				next.IsPaid = *changes.IsPaid
			}
			if changes.CustomerEmail != nil {
				next.CustomerEmail = *changes.CustomerEmail
			}
			if changes.RecipientName != nil {
				next.RecipientName = *changes.RecipientName
			}
			if changes.RecipientEmail != nil {
				next.RecipientEmail = *changes.RecipientEmail
			}
			if changes.Message != nil {
				next.Message = *changes.Message
			}
			return &plan{next: next}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return s.view(out.card), nil
}

// GetCard retrieves a card by ID.
func (s *cardService) GetCard(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	card, err := s.store.Cards().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(card), nil
}

// GetCardByUUID retrieves a card by its owner uuid with caching. The cached
// copy holds the stored status; expiry is evaluated on every read. A miss only
// fills an empty key, so a read that raced a write never replaces the copy
// the write put there.
func (s *cardService) GetCardByUUID(ctx context.Context, cardUUID uuid.UUID) (*model.Card, error) {
	key := cardCacheKey(&model.Card{UUID: cardUUID})

	var cached model.Card
	if s.cache.GetJSON(ctx, key, &cached) {
		return s.view(&cached), nil
	}

	card, err := s.store.Cards().FindByUUID(ctx, cardUUID)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSONIfAbsent(ctx, key, card, s.opts.CacheTTL)
	return s.view(card), nil
}

// GetCardByRecipientUUID retrieves the card a recipient link points to.
func (s *cardService) GetCardByRecipientUUID(ctx context.Context, recipientUUID uuid.UUID) (*model.Card, error) {
	card, err := s.store.Cards().FindByRecipientUUID(ctx, recipientUUID)
	if err != nil {
		return nil, err
	}
	return s.view(card), nil
}

// GetCardByCode retrieves a card by a user-entered code.
func (s *cardService) GetCardByCode(ctx context.Context, code string) (*model.Card, error) {
	normalized, err := issuer.NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	card, err := s.store.Cards().FindByCode(ctx, normalized)
	if err != nil {
		return nil, err
	}
	return s.view(card), nil
}

// Ledger lists the entries posted for a card.
func (s *cardService) Ledger(ctx context.Context, cardID uuid.UUID) ([]model.LedgerEntry, error) {
	if _, err := s.store.Cards().FindByID(ctx, cardID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get card: %w", err)
	}
	return s.store.Ledger().ListByCard(ctx, cardID)
}
