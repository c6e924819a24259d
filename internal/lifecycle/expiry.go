package lifecycle

import (
	"time"

	"giftcards/internal/model"
)

// ValidityRule describes how long a card stays spendable after activation.
// Months and Days are added to the activation instant. EndsAt is a fixed
// calendar end date. The zero rule means the card never expires.
type ValidityRule struct {
	Months int
	Days   int
	EndsAt *time.Time
}

// RuleFromOffer extracts the validity rule of an offer.
func RuleFromOffer(offer *model.Offer) ValidityRule {
	if offer == nil {
		return ValidityRule{}
	}
	return ValidityRule{
		Months: offer.ExpiryMonths,
		Days:   offer.ExpiryDurationDays,
		EndsAt: offer.ValidUntil,
	}
}

// CalculateExpiry derives the expiry instant for a card activated at
// activatedAt, or nil when the rule defines no expiry. When both a duration
// and a fixed end date are set, the earlier one wins.
func CalculateExpiry(rule ValidityRule, activatedAt time.Time) *time.Time {
	var expiry *time.Time

	if rule.Months > 0 || rule.Days > 0 {
		t := addMonthsClamped(activatedAt, rule.Months).AddDate(0, 0, rule.Days)
		expiry = &t
	}
	if rule.EndsAt != nil && (expiry == nil || rule.EndsAt.Before(*expiry)) {
		t := *rule.EndsAt
		expiry = &t
	}
	return expiry
}

// addMonthsClamped adds months keeping the day of month, clamped to the last
// day of the target month (Jan 31 + 1 month = Feb 28 or 29).
func addMonthsClamped(t time.Time, months int) time.Time {
	if months == 0 {
		return t
	}
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
