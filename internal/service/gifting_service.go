package service

import (
	"context"

	"github.com/google/uuid"

	apperrors "giftcards/internal/errors"
	"giftcards/internal/lifecycle"
	"giftcards/internal/model"
	"giftcards/internal/notify"
	"giftcards/internal/repository"
)

// GiftingService hands cards to recipients.
type GiftingService interface {
	SendGift(ctx context.Context, cardUUID uuid.UUID, recipient GiftRecipient) (*model.Card, error)
	ResendGiftNotification(ctx context.Context, cardUUID uuid.UUID) error
}

type giftingService struct {
	*engine
	validator *CardValidator
}

// NewGiftingService creates a new gifting service.
func NewGiftingService(deps Deps) GiftingService {
	return &giftingService{
		engine:    newEngine(deps),
		validator: NewCardValidator(),
	}
}

// SendGift gifts an active card that was neither gifted nor printed before.
// The recipient gets fresh credentials so the buyer's copy of the code no
// longer redeems.
func (s *giftingService) SendGift(ctx context.Context, cardUUID uuid.UUID, recipient GiftRecipient) (*model.Card, error) {
	if err := s.validator.ValidateRecipient(recipient); err != nil {
		return nil, err
	}

	out, err := s.mutate(ctx, mutation{
		op:   lifecycle.OpGift,
		load: byUUID(cardUUID),
		check: func(ctx context.Context, tx repository.Store, prior *model.Card) (*plan, error) {
			if prior.IsGifted() {
				return nil, apperrors.Validation("card was already gifted")
			}
			if prior.PrintedAt != nil {
				return nil, apperrors.Validation("printed cards cannot be gifted")
			}
			if prior.Status != model.CardStatusActive {
				return nil, apperrors.ErrNotActive
			}
			if prior.IsExpired(s.now()) {
				return nil, apperrors.ErrExpired
			}

			next := *prior
			giftedAt := s.now()
			next.GiftedAt = &giftedAt
			next.RecipientName = recipient.Name
			next.RecipientEmail = recipient.Email
			next.Message = recipient.Message
			return &plan{next: next, rotate: true}, nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.notifyRecipient(ctx, out.card)
	return s.view(out.card), nil
}

// ResendGiftNotification sends the gift email of a gifted card again.
func (s *giftingService) ResendGiftNotification(ctx context.Context, cardUUID uuid.UUID) error {
	card, err := s.store.Cards().FindByUUID(ctx, cardUUID)
	if err != nil {
		return err
	}
	if card.RecipientEmail == "" {
		return apperrors.Validation("card has no recipient")
	}
	s.notifyRecipient(ctx, card)
	return nil
}

func (s *giftingService) notifyRecipient(ctx context.Context, card *model.Card) {
	s.notify(ctx, giftMessage(card))
}

func giftMessage(card *model.Card) notify.Message {
	return notify.Message{
		Type:  notify.EmailGiftNotification,
		To:    card.RecipientEmail,
		Cards: []model.Card{*card},
		Context: map[string]string{
			"recipient_name": card.RecipientName,
			"message":        card.Message,
			"from":           card.CustomerEmail,
		},
	}
}
