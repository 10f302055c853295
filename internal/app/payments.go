package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gotd/td/tg"

	"gatewaybot/internal/logger"
	"gatewaybot/internal/payment"
)

// sendInvoice posts a Telegram-Stars invoice for plan into peer's chat. The
// empty Provider plus XTR currency is how the Bot API selects Stars
// checkout; ProviderData must still be valid JSON.
func (a *App) sendInvoice(ctx context.Context, peer tg.InputPeerClass, userID int64, plan payment.ResolvedPlan) error {
	inv := payment.BuildInvoice(plan, userID)

	media := &tg.InputMediaInvoice{
		Title:       inv.Title,
		Description: inv.Desc,
		Invoice: tg.Invoice{
			Currency: payment.StarsCurrency,
			Prices:   []tg.LabeledPrice{{Label: inv.Title, Amount: int64(inv.Amount)}},
		},
		Payload:      []byte(inv.Payload),
		ProviderData: tg.DataJSON{Data: "{}"},
	}

	_, err := a.bot.API().MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
		Peer:     peer,
		Media:    media,
		Message:  "",
		RandomID: nextRandomID(),
	})
	return err
}

// handlePrecheckout approves every pre-checkout query, per the payment
// flow's contract: validation already happened when the invoice was built,
// and Stars carry no shipping or address steps to verify.
func (a *App) handlePrecheckout(ctx context.Context, u *tg.UpdateBotPrecheckoutQuery) error {
	_, err := a.bot.API().MessagesSetBotPrecheckoutResults(ctx, &tg.MessagesSetBotPrecheckoutResultsRequest{
		Success: true,
		QueryID: u.QueryID,
	})
	if err != nil {
		logger.Warnf("payment: approve precheckout %d: %v", u.QueryID, err)
	}
	return nil
}

// handleSuccessfulPayment turns a completed Stars charge into a premium
// grant, acknowledges to the payer, and notifies the owner. A grant
// failure after a captured charge is the one state needing manual repair,
// so the owner notification carries the charge id.
func (a *App) handleSuccessfulPayment(ctx context.Context, peer tg.InputPeerClass, userID int64, paid *tg.MessageActionPaymentSentMe) error {
	result, err := a.payment.SuccessfulPayment(ctx, string(paid.Payload))
	if err != nil {
		logger.Errorf("payment: grant for charge %s failed: %v", paid.Charge.ID, err)
		a.notifyOwner(ctx, fmt.Sprintf(
			"⚠️ Payment captured but premium grant failed.\nCharge: %s\nPayload: %s\nError: %v",
			paid.Charge.ID, string(paid.Payload), err))
		return a.sendText(ctx, peer, "Payment received, but activation hit a snag; the owner has been notified.")
	}

	grant, ok, gerr := a.store.GetPremium(ctx, result.UserID)
	expiry := "soon"
	if gerr == nil && ok {
		expiry = grant.ExpireAt.Format(time.RFC1123)
	}

	a.notifyOwner(ctx, fmt.Sprintf("💫 User %d bought the %s plan (%d★). Txn: %s",
		result.UserID, result.Plan.Label, result.Plan.Stars, paid.Charge.ID))

	return a.sendText(ctx, peer, fmt.Sprintf(
		"Payment confirmed (txn %s). Premium active until %s. Enjoy!", paid.Charge.ID, expiry))
}

func (a *App) notifyOwner(ctx context.Context, text string) {
	if a.cfg.OwnerID == 0 {
		return
	}
	owner, err := a.peers.ResolveUserID(ctx, a.cfg.OwnerID)
	if err != nil {
		logger.Warnf("payment: resolve owner %d: %v", a.cfg.OwnerID, err)
		return
	}
	if err := a.sendText(ctx, owner, text); err != nil {
		logger.Warnf("payment: notify owner: %v", err)
	}
}
