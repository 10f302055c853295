// Package quota is a thin logic layer over the premium/usage collections:
// it answers "is this user premium" and "how much can they still do today"
// without any transport or UI concerns.
package quota

import (
	"context"
	"time"

	"gatewaybot/internal/config"
	"gatewaybot/internal/store"
)

// UnlimitedSentinel is returned by Remaining when a premium user's plan
// has no daily cap.
const UnlimitedSentinel = -1

// Engine answers premium/limit questions for a single user, backed by the
// configured plans and the document store's premium/usage collections.
// The freemium/premium limits are read from the global config singleton
// on every call, so a live config reload (if ever added) takes effect
// without rebuilding the Engine.
type Engine struct {
	store *store.Store
}

// New builds an Engine over store.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// IsPremium reports whether userID currently holds an unexpired premium
// grant, lazily deleting it if it has expired.
func (e *Engine) IsPremium(ctx context.Context, userID int64) (bool, error) {
	return e.store.IsPremium(ctx, userID)
}

// Remaining returns the number of gated operations userID may still
// perform today, or UnlimitedSentinel if they are premium on an
// uncapped plan.
func (e *Engine) Remaining(ctx context.Context, userID int64) (int, error) {
	premium, err := e.IsPremium(ctx, userID)
	if err != nil {
		return 0, err
	}

	used, err := e.store.UsageToday(ctx, userID)
	if err != nil {
		return 0, err
	}

	env := config.Env()
	return remaining(premium, env.FreemiumLimit, env.PremiumLimit, used), nil
}

// remaining is the pure arithmetic behind Remaining: premium with an
// uncapped plan (premiumLimit == 0) is unlimited; otherwise it's
// max(0, limit - used) against whichever limit applies.
func remaining(premium bool, freemiumLimit, premiumLimit int, used int64) int {
	limit := freemiumLimit
	if premium {
		if premiumLimit == 0 {
			return UnlimitedSentinel
		}
		limit = premiumLimit
	}

	r := limit - int(used)
	if r < 0 {
		r = 0
	}
	return r
}

// Consume increments userID's usage counter for today. Callers check
// Remaining before starting work and call Consume once the gated
// operation actually completes.
func (e *Engine) Consume(ctx context.Context, userID int64) error {
	_, err := e.store.IncrementUsage(ctx, userID)
	return err
}

// AddPremium grants or extends userID's premium by value units of unit.
func (e *Engine) AddPremium(ctx context.Context, userID int64, value int, unit config.DurationUnit) error {
	_, err := e.store.AddPremium(ctx, userID, value, unit)
	return err
}

// TransferPremium moves an active grant from "from" to "to", returning the
// expiry timestamp it now carries.
func (e *Engine) TransferPremium(ctx context.Context, from, to int64) (time.Time, error) {
	return e.store.TransferPremium(ctx, from, to)
}
