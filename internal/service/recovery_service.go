package service

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"giftcards/internal/logger"
	"giftcards/internal/model"
	"giftcards/internal/notify"
	"giftcards/internal/repository"
)

// RecoveryService mails a customer the cards bought by or gifted to them.
type RecoveryService interface {
	// RecoverCards accepts any well-formed address. The response never tells
	// whether cards were found.
	RecoverCards(ctx context.Context, email string) error
}

type recoveryService struct {
	*engine
	validator *CardValidator
	wg        sync.WaitGroup
}

// NewRecoveryService creates a new recovery service.
func NewRecoveryService(deps Deps) RecoveryService {
	return &recoveryService{
		engine:    newEngine(deps),
		validator: NewCardValidator(),
	}
}

var recoverableStatuses = []model.CardStatus{
	model.CardStatusInactive,
	model.CardStatusActive,
	model.CardStatusRedeemed,
}

// RecoverCards looks the cards up in the background so that the call takes
// the same time whether or not the address is known.
func (s *recoveryService) RecoverCards(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := s.validator.ValidateEmail(email); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.recover(context.WithoutCancel(ctx), email)
	}()
	return nil
}

func (s *recoveryService) recover(ctx context.Context, email string) {
	cards, err := s.store.Cards().Find(ctx, repository.CardFilter{
		Email:    email,
		Statuses: recoverableStatuses,
		Limit:    s.opts.RecoveryLimit,
	})
	if err != nil {
		logger.Error("Card recovery lookup failed", zap.Error(err))
		return
	}
	if len(cards) == 0 {
		return
	}

	for i := range cards {
		cards[i].Status = cards[i].EffectiveStatus(s.now())
	}
	s.notify(ctx, notify.Message{
		Type:  notify.EmailRecovery,
		To:    email,
		Cards: cards,
	})
}

// wait blocks until background lookups have finished.
func (s *recoveryService) wait() {
	s.wg.Wait()
}
