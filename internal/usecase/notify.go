package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-invoicing-crm/internal/domain/model"
	"telegram-invoicing-crm/internal/domain/ports/adapter"
)

// Callback payload patterns the admin review buttons carry. The bot adapter
// routes these back into the review use case.
const (
	CallbackApprovePrefix = "admin_payment_approve_"
	CallbackRejectPrefix  = "admin_payment_reject_"
)

// AdminNotifier fans a newly submitted payment out to every configured
// administrator, evidence attached, with inline approve/reject controls.
type AdminNotifier struct {
	bot      adapter.ChatBotAdapter
	adminIDs []int64
	log      *zerolog.Logger
}

func NewAdminNotifier(bot adapter.ChatBotAdapter, adminIDs []int64, logger *zerolog.Logger) *AdminNotifier {
	l := logger.With().Str("component", "AdminNotifier").Logger()
	return &AdminNotifier{bot: bot, adminIDs: adminIDs, log: &l}
}

func reviewButtons(paymentID int64) [][]adapter.Button {
	return [][]adapter.Button{{
		{Text: "✅ Approve", Data: fmt.Sprintf("%s%d", CallbackApprovePrefix, paymentID)},
		{Text: "❌ Reject", Data: fmt.Sprintf("%s%d", CallbackRejectPrefix, paymentID)},
	}}
}

func paymentCaption(p *model.PaymentRecord, planName string) string {
	caption := fmt.Sprintf(
		"💳 New payment for review\nReference: %s\nPlan: %s (%s)\nAmount: %s %s\nMethod: %s\nTenant: %d\nSubmitted by: %d",
		p.Reference, planName, p.Action, p.Amount.StringFixed(3), p.Currency, p.Method, p.TenantID, p.RequesterUserID,
	)
	if p.TransactionID != nil {
		caption += "\nTransaction id: " + *p.TransactionID
	}
	return caption
}

// PaymentSubmitted notifies all admins. A send failure to one admin is logged
// and does not block the rest; the payment is already persisted.
func (n *AdminNotifier) PaymentSubmitted(ctx context.Context, p *model.PaymentRecord, planName string, evidence model.ProofKind) {
	caption := paymentCaption(p, planName)
	buttons := reviewButtons(p.ID)
	for _, adminID := range n.adminIDs {
		var err error
		switch {
		case evidence == model.ProofKindPhoto && p.TransactionProof != nil:
			err = n.bot.SendPhoto(ctx, adminID, *p.TransactionProof, caption, buttons)
		case evidence == model.ProofKindDocument && p.TransactionProof != nil:
			err = n.bot.SendDocument(ctx, adminID, *p.TransactionProof, caption, buttons)
		default:
			err = n.bot.SendButtons(ctx, adminID, caption, buttons)
		}
		if err != nil {
			n.log.Error().Err(err).Int64("admin_id", adminID).Int64("payment_id", p.ID).
				Msg("failed to notify admin of submitted payment")
		}
	}
}
