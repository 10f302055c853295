// Package payment turns a Telegram-Stars purchase into a premium grant:
// plan selection, invoice payload encoding, and the
// pre-checkout/successful-payment handlers that close the loop.
package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gatewaybot/internal/apperr"
	"gatewaybot/internal/config"
	"gatewaybot/internal/quota"
	"gatewaybot/internal/store"
)

// StarsCurrency is Telegram's Stars currency code for digital-goods
// invoices.
const StarsCurrency = "XTR"

// Invoice is everything needed to ask Telegram to present a Stars
// checkout sheet for one plan purchase.
type Invoice struct {
	Title   string
	Desc    string
	Payload string
	Amount  int
}

// Handler resolves plans (config defaults overridable from the store) and
// turns successful payments into premium grants.
type Handler struct {
	store *store.Store
	quota *quota.Engine
}

// New builds a Handler over store and quota.
func New(s *store.Store, q *quota.Engine) *Handler {
	return &Handler{store: s, quota: q}
}

// ResolvedPlan is a plan ready for display/purchase: the store override,
// or the config default when no override exists.
type ResolvedPlan struct {
	Key      string
	Label    string
	Stars    int
	Duration int
	Unit     config.DurationUnit
}

// Plans returns every known plan key ("d", "w", "m") resolved against any
// store override, in a stable d/w/m order.
func (h *Handler) Plans(ctx context.Context) ([]ResolvedPlan, error) {
	order := []string{"d", "w", "m"}
	env := config.Env()

	var out []ResolvedPlan
	for _, key := range order {
		base, ok := env.Plans[key]
		if !ok {
			continue
		}
		resolved := ResolvedPlan{Key: base.Key, Label: base.Label, Stars: base.Stars, Duration: base.Duration, Unit: base.Unit}

		doc, found, err := h.store.GetPlan(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			resolved = ResolvedPlan{Key: doc.Key, Label: doc.Label, Stars: doc.Stars, Duration: doc.Duration, Unit: doc.Unit}
		}
		out = append(out, resolved)
	}
	return out, nil
}

// Plan resolves a single plan key the same way Plans does.
func (h *Handler) Plan(ctx context.Context, key string) (ResolvedPlan, error) {
	plans, err := h.Plans(ctx)
	if err != nil {
		return ResolvedPlan{}, err
	}
	for _, p := range plans {
		if p.Key == key {
			return p, nil
		}
	}
	return ResolvedPlan{}, apperr.New(apperr.NotFound, "unknown plan "+key)
}

// BuildInvoice constructs the invoice for userID buying plan. The payload
// encodes "<key>_<userId>" so SuccessfulPayment can recover both without
// a side lookup.
func BuildInvoice(plan ResolvedPlan, userID int64) Invoice {
	return Invoice{
		Title:   plan.Label,
		Desc:    fmt.Sprintf("%d %s of premium access", plan.Duration, plan.Unit),
		Payload: fmt.Sprintf("%s_%d", plan.Key, userID),
		Amount:  plan.Stars,
	}
}

// ParsePayload splits a "<key>_<userId>" invoice payload back into its
// parts.
func ParsePayload(payload string) (key string, userID int64, err error) {
	idx := strings.LastIndex(payload, "_")
	if idx < 0 {
		return "", 0, apperr.New(apperr.InvalidLink, "malformed payment payload")
	}
	key = payload[:idx]
	userID, parseErr := strconv.ParseInt(payload[idx+1:], 10, 64)
	if parseErr != nil {
		return "", 0, apperr.New(apperr.InvalidLink, "malformed payment payload")
	}
	return key, userID, nil
}

// PaymentResult is what SuccessfulPayment reports back to the caller so it
// can reply to the user and notify the owner.
type PaymentResult struct {
	UserID int64
	Plan   ResolvedPlan
}

// SuccessfulPayment grants plan premium to the user named in payload.
// Callers are expected to have already received Telegram's
// successful_payment update; this only does the store-side grant.
func (h *Handler) SuccessfulPayment(ctx context.Context, payload string) (PaymentResult, error) {
	key, userID, err := ParsePayload(payload)
	if err != nil {
		return PaymentResult{}, err
	}

	plan, err := h.Plan(ctx, key)
	if err != nil {
		return PaymentResult{}, err
	}

	if err := h.quota.AddPremium(ctx, userID, plan.Duration, plan.Unit); err != nil {
		return PaymentResult{}, err
	}

	return PaymentResult{UserID: userID, Plan: plan}, nil
}
