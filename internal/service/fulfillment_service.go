package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "giftcards/internal/errors"
	"giftcards/internal/ledger"
	"giftcards/internal/lifecycle"
	"giftcards/internal/logger"
	"giftcards/internal/model"
	"giftcards/internal/notify"
	"giftcards/internal/repository"
)

// PaymentConfirmed is a verified payment handed over by the provider
// integration. SessionID identifies the payment and makes delivery
// idempotent.
type PaymentConfirmed struct {
	SessionID        string
	OfferID          uuid.UUID
	CustomerEmail    string
	AmountPaid       decimal.Decimal
	Currency         string
	ExistingCardUUID *uuid.UUID
	Gift             *GiftRecipient
}

// FulfillmentService turns confirmed online payments into active cards.
type FulfillmentService interface {
	FulfillPayment(ctx context.Context, payment PaymentConfirmed) (*model.Card, error)
}

type fulfillmentService struct {
	*engine
	validator *CardValidator
}

// NewFulfillmentService creates a new fulfillment service.
func NewFulfillmentService(deps Deps) FulfillmentService {
	return &fulfillmentService{
		engine:    newEngine(deps),
		validator: NewCardValidator(),
	}
}

// FulfillPayment activates the card a payment was made for, or issues a new
// one. A payment that was already fulfilled returns its card unchanged.
func (s *fulfillmentService) FulfillPayment(ctx context.Context, payment PaymentConfirmed) (*model.Card, error) {
	if payment.SessionID == "" {
		return nil, apperrors.Validation("payment session id is required")
	}
	if payment.OfferID == uuid.Nil {
		return nil, apperrors.Validation("payment offer id is required")
	}
	if err := s.validator.ValidateEmail(payment.CustomerEmail); err != nil {
		return nil, err
	}
	if payment.Gift != nil {
		if err := s.validator.ValidateRecipient(*payment.Gift); err != nil {
			return nil, err
		}
	}

	if card, err := s.fulfilled(ctx, payment.SessionID); err != nil || card != nil {
		return card, err
	}

	m := mutation{
		op: lifecycle.OpFulfill,
		extra: func(ctx context.Context, tx repository.Store, _, saved *model.Card, p *plan) error {
			amount := payment.AmountPaid
			if !amount.IsPositive() {
				amount = p.offer.Price
			}
			_, err := s.ledger.RecordOnlinePurchase(ctx, tx, saved, p.company, ledger.OnlinePayment{
				Reference: payment.SessionID,
				Amount:    amount,
				Currency:  payment.Currency,
			})
			return err
		},
	}
	if payment.ExistingCardUUID != nil {
		m.load = byUUID(*payment.ExistingCardUUID)
	}
	m.check = func(ctx context.Context, tx repository.Store, prior *model.Card) (*plan, error) {
		offer, err := tx.Offers().FindByID(ctx, payment.OfferID)
		if err != nil {
			return nil, fmt.Errorf("load offer: %w", err)
		}

		var next model.Card
		if prior != nil {
			if prior.OfferID != offer.ID {
				return nil, apperrors.Validation("card %s was not issued from offer %s", prior.UUID, offer.ID)
			}
			if prior.Status != model.CardStatusInactive {
				return nil, apperrors.ErrAlreadyActive
			}
			next = *prior
		} else {
			next = model.Card{OfferID: offer.ID, Status: model.CardStatusInactive}
		}
		next.IsPaid = true
		next.CustomerEmail = payment.CustomerEmail
		if payment.Gift != nil && prior == nil {
			giftedAt := s.now()
			next.GiftedAt = &giftedAt
			next.RecipientName = payment.Gift.Name
			next.RecipientEmail = payment.Gift.Email
			next.Message = payment.Gift.Message
		}
		return &plan{next: next, offer: offer}, nil
	}

	out, err := s.mutate(ctx, m)
	if errors.Is(err, apperrors.ErrDuplicate) {
		// A concurrent delivery of the same payment won the race.
		if card, lookupErr := s.fulfilled(ctx, payment.SessionID); lookupErr == nil && card != nil {
			return card, nil
		}
	}
	if err != nil {
		return nil, err
	}

	card := out.card
	s.notify(ctx, notify.Message{
		Type:    notify.EmailReceipt,
		To:      card.CustomerEmail,
		Cards:   []model.Card{*card},
		Context: map[string]string{"session_id": payment.SessionID},
	})
	if card.RecipientEmail != "" && payment.Gift != nil {
		s.notify(ctx, giftMessage(card))
	}

	logger.Info("Payment fulfilled",
		zap.String("session_id", payment.SessionID),
		zap.String("card_id", card.ID.String()),
	)
	return s.view(card), nil
}

// fulfilled returns the card of an already recorded payment, or nil.
func (s *fulfillmentService) fulfilled(ctx context.Context, sessionID string) (*model.Card, error) {
	txn, err := s.store.Billing().FindByReference(ctx, sessionID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check payment: %w", err)
	}
	card, err := s.store.Cards().FindByID(ctx, txn.CardID)
	if err != nil {
		return nil, fmt.Errorf("load fulfilled card: %w", err)
	}
	return s.view(card), nil
}
