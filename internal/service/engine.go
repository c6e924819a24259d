package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"giftcards/internal/cache"
	apperrors "giftcards/internal/errors"
	"giftcards/internal/events"
	"giftcards/internal/issuer"
	"giftcards/internal/ledger"
	"giftcards/internal/lifecycle"
	"giftcards/internal/logger"
	"giftcards/internal/metrics"
	"giftcards/internal/model"
	"giftcards/internal/notify"
	"giftcards/internal/repository"
)

// Options tune the card services.
type Options struct {
	// ConflictRetries bounds how often a write is retried after a version conflict.
	ConflictRetries int
	CacheTTL        time.Duration
	// SystemEmail is stored as buyer address on pre-printed kiosk stock.
	SystemEmail   string
	RecoveryLimit int
	Now           func() time.Time
}

// Deps are the collaborators shared by the card services.
type Deps struct {
	Store    repository.Store
	Issuer   *issuer.Issuer
	Ledger   *ledger.Synchronizer
	Cache    *cache.Client
	Notifier notify.Notifier
	Events   events.Publisher
	Options  Options
}

// engine runs every card mutation through one path:
// load, check, pipeline, compare-and-swap write, ledger entry and extras,
// all inside one transaction.
type engine struct {
	store    repository.Store
	issuer   *issuer.Issuer
	ledger   *ledger.Synchronizer
	cache    *cache.Client
	notifier notify.Notifier
	events   events.Publisher
	opts     Options
}

func newEngine(d Deps) *engine {
	opts := d.Options
	if opts.ConflictRetries < 0 {
		opts.ConflictRetries = 0
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.RecoveryLimit <= 0 {
		opts.RecoveryLimit = 100
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	e := &engine{
		store:    d.Store,
		issuer:   d.Issuer,
		ledger:   d.Ledger,
		cache:    d.Cache,
		notifier: d.Notifier,
		events:   d.Events,
		opts:     opts,
	}
	if e.issuer == nil {
		e.issuer = issuer.New(issuer.DefaultAttempts)
	}
	if e.notifier == nil {
		e.notifier = notify.NewDispatcher(notify.LogSender{}, 0, 0)
	}
	if e.events == nil {
		e.events = events.NopPublisher{}
	}
	return e
}

func (e *engine) now() time.Time {
	return e.opts.Now()
}

// plan is the proposed write produced by a mutation's checks.
type plan struct {
	next    model.Card
	offer   *model.Offer
	company *model.Company
	// rotate issues a fresh code and recipient uuid with the write.
	rotate bool
	reset  bool
	// unchanged skips the write and returns the prior card.
	unchanged bool
}

type mutation struct {
	op lifecycle.Operation
	// load returns the prior card, or nil when the mutation creates one.
	load func(ctx context.Context, tx repository.Store) (*model.Card, error)
	// check validates preconditions against the prior card and proposes the write.
	check func(ctx context.Context, tx repository.Store, prior *model.Card) (*plan, error)
	// extra runs in the same transaction after the card and its ledger entry.
	extra func(ctx context.Context, tx repository.Store, prior, saved *model.Card, p *plan) error
}

// outcome is a committed mutation.
type outcome struct {
	prior *model.Card
	card  *model.Card
	plan  *plan
}

func (e *engine) mutate(ctx context.Context, m mutation) (*outcome, error) {
	var out *outcome
	err := e.retry(ctx, m.op, func() error {
		out = nil
		return e.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
			var prior *model.Card
			if m.load != nil {
				loaded, err := m.load(ctx, tx)
				if err != nil {
					return err
				}
				prior = loaded
			}

			p, err := m.check(ctx, tx, prior)
			if err != nil {
				return err
			}
			if p.unchanged {
				out = &outcome{prior: prior, card: prior, plan: p}
				return nil
			}
			if err := e.resolveCatalog(ctx, tx, p); err != nil {
				return err
			}

			saved, err := e.write(ctx, tx, m.op, prior, p)
			if err != nil {
				return err
			}
			if _, err := e.ledger.Sync(ctx, tx, ledger.Change{Op: m.op, Before: prior, After: *saved}); err != nil {
				return err
			}
			if m.extra != nil {
				if err := m.extra(ctx, tx, prior, saved, p); err != nil {
					return err
				}
			}
			out = &outcome{prior: prior, card: saved, plan: p}
			return nil
		})
	})

	result := "ok"
	if err != nil {
		result = apperrors.Code(err)
	}
	metrics.CardOperations.WithLabelValues(string(m.op), result).Inc()
	if err != nil {
		return nil, err
	}

	if !out.plan.unchanged {
		e.committed(ctx, m.op, out.prior, out.card)
	}
	return out, nil
}

// resolveCatalog loads the offer and company a plan refers to when the check
// did not already.
func (e *engine) resolveCatalog(ctx context.Context, tx repository.Store, p *plan) error {
	if p.offer == nil {
		offer, err := tx.Offers().FindByID(ctx, p.next.OfferID)
		if err != nil {
			return fmt.Errorf("load offer: %w", err)
		}
		p.offer = offer
	}
	if p.company == nil {
		company, err := tx.Companies().FindByID(ctx, p.offer.CompanyID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("load company: %w", err)
		}
		p.company = company
	}
	return nil
}

// write runs the pipeline and persists its result. Writes that need a new
// code draw one per attempt until the unique index accepts it.
func (e *engine) write(ctx context.Context, tx repository.Store, op lifecycle.Operation, prior *model.Card, p *plan) (*model.Card, error) {
	in := lifecycle.Input{
		Op:      op,
		Prior:   prior,
		Next:    p.next,
		Offer:   p.offer,
		Company: p.company,
		Now:     e.now(),
	}

	var saved model.Card
	persist := func(in lifecycle.Input) error {
		next, err := lifecycle.Apply(in)
		if err != nil {
			return err
		}
		if prior == nil {
			err = tx.Cards().Create(ctx, &next)
		} else {
			err = tx.Cards().Update(ctx, &next, prior.LockVersion)
		}
		if err != nil {
			return err
		}
		saved = next
		return nil
	}

	var err error
	switch {
	case prior == nil:
		in.Next.UUID = e.issuer.IssueUUID()
		in.Next.RecipientUUID = e.issuer.IssueUUID()
		err = e.issuer.WithUniqueCode(func(code string) error {
			in.Next.Code = code
			return persist(in)
		})
	case p.reset:
		err = e.issuer.WithUniqueCode(func(code string) error {
			in.Reset = &lifecycle.ResetToBuyer{Rotation: e.rotation(code)}
			return persist(in)
		})
	case p.rotate:
		err = e.issuer.WithUniqueCode(func(code string) error {
			rot := e.rotation(code)
			in.Rotate = &rot
			return persist(in)
		})
	default:
		err = persist(in)
	}
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (e *engine) rotation(code string) lifecycle.Rotation {
	return lifecycle.Rotation{Code: code, RecipientUUID: e.issuer.IssueUUID()}
}

// retry reruns fn after version conflicts, at most ConflictRetries times.
func (e *engine) retry(ctx context.Context, op lifecycle.Operation, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if !errors.Is(err, apperrors.ErrConflict) || attempt >= e.opts.ConflictRetries {
			return err
		}

		metrics.ConflictRetries.WithLabelValues(string(op)).Inc()
		logger.Debug("Retrying card write after conflict",
			zap.String("operation", string(op)),
			zap.Int("attempt", attempt+1),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 5 * time.Millisecond):
		}
	}
}

// committed runs the post-commit side effects. None of them can fail the
// operation. The cached owner view is overwritten with the committed card.
func (e *engine) committed(ctx context.Context, op lifecycle.Operation, prior, card *model.Card) {
	if err := e.cache.SetJSON(ctx, cardCacheKey(card), card, e.opts.CacheTTL); err != nil {
		_ = e.cache.Delete(ctx, cardCacheKey(card))
	}

	event := events.CardChanged{
		ID:         e.issuer.IssueUUID(),
		Operation:  string(op),
		Before:     prior,
		After:      *card,
		OccurredAt: e.now(),
	}
	if err := e.events.PublishCardChanged(ctx, event); err != nil {
		logger.Warn("Failed to publish card event",
			zap.String("card_id", card.ID.String()),
			zap.String("operation", string(op)),
			zap.Error(err),
		)
	}
}

// view returns a copy of card carrying its read-time status.
func (e *engine) view(card *model.Card) *model.Card {
	out := *card
	out.Status = card.EffectiveStatus(e.now())
	return &out
}

func (e *engine) notify(ctx context.Context, msg notify.Message) {
	e.notifier.Notify(ctx, msg)
}

func cardCacheKey(card *model.Card) string {
	return fmt.Sprintf("card:uuid:%s", card.UUID)
}
