package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"telegram-invoicing-crm/internal/catalog"
	"telegram-invoicing-crm/internal/domain"
	"telegram-invoicing-crm/internal/domain/model"
	"telegram-invoicing-crm/internal/domain/ports/adapter"
	"telegram-invoicing-crm/internal/domain/ports/repository"
	"telegram-invoicing-crm/internal/infra/logging"
	"telegram-invoicing-crm/internal/usecase"
)

var _ Facade = (*BotFacade)(nil)

// Callback payload prefixes owned by the facade. The admin review prefixes
// live next to the notifier that mints them.
const (
	callbackCreatePrefix = "create_confirm_"
	callbackRenewPrefix  = "renew_confirm_"
)

const genericApology = "Something went wrong on our side. Please try again."

// companyNameScope holds the company name between /newcompany and the plan
// selection callback. It is not an ActiveFlow, so it is cleared here and by
// the store TTL, not by the proof flow's cancel path.
func companyNameScope(userID int64) repository.Scope {
	return repository.GlobalScope(fmt.Sprintf("newco:%d", userID))
}

// BotFacade turns normalized inbound events into use case calls and chat
// replies. It is the outermost error boundary for the chat surface: raw
// internal errors are logged here and surface only as a generic apology.
type BotFacade struct {
	proofs   usecase.ProofUseCase
	review   usecase.ReviewUseCase
	payments usecase.PaymentUseCase
	tenants  usecase.TenantUseCase
	plans    *catalog.Catalog
	state    repository.FlowStateRepository
	bot      adapter.ChatBotAdapter
	log      *zerolog.Logger
}

func NewBotFacade(
	proofs usecase.ProofUseCase,
	review usecase.ReviewUseCase,
	payments usecase.PaymentUseCase,
	tenants usecase.TenantUseCase,
	plans *catalog.Catalog,
	state repository.FlowStateRepository,
	bot adapter.ChatBotAdapter,
	logger *zerolog.Logger,
) *BotFacade {
	l := logger.With().Str("component", "BotFacade").Logger()
	return &BotFacade{
		proofs:   proofs,
		review:   review,
		payments: payments,
		tenants:  tenants,
		plans:    plans,
		state:    state,
		bot:      bot,
		log:      &l,
	}
}

// Dispatch routes one event. It never returns an error to the transport;
// failures end in the chat as a generic apology.
func (b *BotFacade) Dispatch(ctx context.Context, ev InboundEvent) {
	var err error
	switch ev.Kind {
	case EventCommand:
		err = b.handleCommand(ctx, ev)
	case EventCallback:
		err = b.handleCallback(ctx, ev)
	case EventText:
		err = b.handleText(ctx, ev)
	case EventPhoto:
		err = b.handleFile(ctx, ev, model.ProofKindPhoto)
	case EventDocument:
		err = b.handleFile(ctx, ev, model.ProofKindDocument)
	default:
		b.log.Warn().Int("kind", int(ev.Kind)).Msg("unknown event kind dropped")
		return
	}
	if err != nil {
		logging.With(ctx, b.log).Error().Err(err).
			Int64("tg_id", ev.UserID).
			Int("kind", int(ev.Kind)).
			Msg("event handling failed")
		b.reply(ctx, ev.ChatID, genericApology)
	}
}

// reply is best-effort; a failed send is logged, never escalated.
func (b *BotFacade) reply(ctx context.Context, chatID int64, text string) {
	if err := b.bot.SendMessage(ctx, chatID, text); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("reply send failed")
	}
}

func (b *BotFacade) handleCommand(ctx context.Context, ev InboundEvent) error {
	switch ev.Command {
	case "start", "help":
		b.reply(ctx, ev.ChatID, startMessage)
		return nil
	case "plans":
		b.reply(ctx, ev.ChatID, b.planList())
		return nil
	case "newcompany":
		return b.handleNewCompany(ctx, ev)
	case "renew":
		return b.handleRenew(ctx, ev)
	case "cancel":
		return b.HandleCancel(ctx, ev.UserID, ev.ChatID)
	case "pending":
		return b.handlePending(ctx, ev)
	default:
		b.reply(ctx, ev.ChatID, "Unknown command. Send /help for the list of commands.")
		return nil
	}
}

const startMessage = "Welcome!\n" +
	"/plans — available plans and prices\n" +
	"/newcompany <name> — register a company\n" +
	"/renew <company id> — renew or upgrade a plan\n" +
	"/cancel — abort the current operation"

func (b *BotFacade) planList() string {
	keys := b.plans.Keys()
	sort.Strings(keys)
	if len(keys) == 0 {
		return "No plans are configured right now."
	}
	sb := strings.Builder{}
	sb.WriteString("Available plans:\n")
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("- %s: %s %s/month\n",
			b.plans.DisplayName(k), b.plans.PriceDecimal(k).StringFixed(3), b.plans.Currency(k)))
	}
	return sb.String()
}

// planButtons renders one row per plan with both payment methods.
func (b *BotFacade) planButtons(prefix string) [][]adapter.Button {
	keys := b.plans.Keys()
	sort.Strings(keys)
	rows := make([][]adapter.Button, 0, len(keys))
	for _, k := range keys {
		plan := strings.ToLower(k)
		rows = append(rows, []adapter.Button{
			{Text: b.plans.DisplayName(k) + " · mobile money", Data: prefix + plan + "_" + string(model.PaymentMethodMobileMoney)},
			{Text: b.plans.DisplayName(k) + " · bank transfer", Data: prefix + plan + "_" + string(model.PaymentMethodBankTransfer)},
		})
	}
	return rows
}

func (b *BotFacade) handleNewCompany(ctx context.Context, ev InboundEvent) error {
	name := strings.TrimSpace(ev.Args)
	if name == "" {
		b.reply(ctx, ev.ChatID, "Usage: /newcompany <company name>")
		return nil
	}
	if err := b.state.Set(ctx, companyNameScope(ev.UserID), &model.FlowState{CompanyName: name}); err != nil {
		return fmt.Errorf("stash company name: %w", err)
	}
	return b.bot.SendButtons(ctx, ev.ChatID,
		fmt.Sprintf("Registering %q. Pick a plan and payment method:", name),
		b.planButtons(callbackCreatePrefix))
}

func (b *BotFacade) handleRenew(ctx context.Context, ev InboundEvent) error {
	tenantID, err := strconv.ParseInt(strings.TrimSpace(ev.Args), 10, 64)
	if err != nil || tenantID <= 0 {
		b.reply(ctx, ev.ChatID, "Usage: /renew <company id>")
		return nil
	}
	t, err := b.tenants.Get(ctx, tenantID)
	if errors.Is(err, domain.ErrNotFound) {
		b.reply(ctx, ev.ChatID, "No company with that id.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load tenant %d: %w", tenantID, err)
	}
	prefix := fmt.Sprintf("%s%d_", callbackRenewPrefix, t.ID)
	return b.bot.SendButtons(ctx, ev.ChatID,
		fmt.Sprintf("Renewing %s. Pick a plan and payment method:", t.Name),
		b.planButtons(prefix))
}

func (b *BotFacade) handlePending(ctx context.Context, ev InboundEvent) error {
	if !b.review.IsAdmin(ev.UserID) {
		b.reply(ctx, ev.ChatID, "This command is for administrators.")
		return nil
	}
	pending, err := b.payments.ListPending(ctx, 25)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	if len(pending) == 0 {
		b.reply(ctx, ev.ChatID, "No payments are awaiting review.")
		return nil
	}
	sb := strings.Builder{}
	sb.WriteString("Awaiting review:\n")
	for _, p := range pending {
		sb.WriteString(fmt.Sprintf("- %s · %s · %s %s · tenant %d\n",
			p.Reference, b.plans.DisplayName(p.PlanType), p.Amount.StringFixed(3), p.Currency, p.TenantID))
	}
	b.reply(ctx, ev.ChatID, sb.String())
	return nil
}

// HandleCancel aborts whatever the user is mid-way through. Shared by the
// /cancel command and the transport's cancel button.
func (b *BotFacade) HandleCancel(ctx context.Context, userID, chatID int64) error {
	flow, err := b.proofs.CancelActiveFlow(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNoActiveFlow) {
		return fmt.Errorf("cancel flow: %w", err)
	}
	// The company-name stash is not an ActiveFlow; drop it here either way.
	hadName := false
	if _, gerr := b.state.Get(ctx, companyNameScope(userID)); gerr == nil {
		hadName = true
		_ = b.state.Clear(ctx, companyNameScope(userID))
	}
	if errors.Is(err, domain.ErrNoActiveFlow) && !hadName {
		b.reply(ctx, chatID, "Nothing to cancel.")
		return nil
	}
	switch flow {
	case model.FlowAwaitingRejectReason:
		b.reply(ctx, chatID, "Rejection cancelled. The payment stays pending.")
	default:
		b.reply(ctx, chatID, "Cancelled.")
	}
	return nil
}

func (b *BotFacade) handleCallback(ctx context.Context, ev InboundEvent) error {
	data := ev.Callback
	switch {
	case strings.HasPrefix(data, usecase.CallbackApprovePrefix):
		return b.handleApprove(ctx, ev, strings.TrimPrefix(data, usecase.CallbackApprovePrefix))
	case strings.HasPrefix(data, usecase.CallbackRejectPrefix):
		return b.handleBeginReject(ctx, ev, strings.TrimPrefix(data, usecase.CallbackRejectPrefix))
	case strings.HasPrefix(data, callbackCreatePrefix):
		return b.handleCreateConfirm(ctx, ev, strings.TrimPrefix(data, callbackCreatePrefix))
	case strings.HasPrefix(data, callbackRenewPrefix):
		return b.handleRenewConfirm(ctx, ev, strings.TrimPrefix(data, callbackRenewPrefix))
	default:
		b.log.Warn().Str("callback", data).Int64("tg_id", ev.UserID).Msg("unroutable callback dropped")
		return nil
	}
}

// parsePlanMethod splits "<plan>_<method>"; methods contain underscores, plan
// keys do not.
func parsePlanMethod(rest string) (string, model.PaymentMethod, bool) {
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	m := model.PaymentMethod(parts[1])
	if m != model.PaymentMethodMobileMoney && m != model.PaymentMethodBankTransfer {
		return "", "", false
	}
	if parts[0] == "" {
		return "", "", false
	}
	return parts[0], m, true
}

func (b *BotFacade) handleCreateConfirm(ctx context.Context, ev InboundEvent, rest string) error {
	plan, method, ok := parsePlanMethod(rest)
	if !ok || !b.plans.Known(plan) {
		b.reply(ctx, ev.ChatID, "That plan is no longer offered. Send /plans for the current list.")
		return nil
	}
	st, err := b.state.Get(ctx, companyNameScope(ev.UserID))
	if errors.Is(err, domain.ErrNotFound) {
		b.reply(ctx, ev.ChatID, "Start with /newcompany <company name>.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load company name: %w", err)
	}
	if err := b.proofs.BeginCreationFlow(ctx, ev.UserID, st.CompanyName, plan, method); err != nil {
		return fmt.Errorf("begin creation flow: %w", err)
	}
	_ = b.state.Clear(ctx, companyNameScope(ev.UserID))
	b.reply(ctx, ev.ChatID, proofPrompt(b.plans, plan))
	return nil
}

func (b *BotFacade) handleRenewConfirm(ctx context.Context, ev InboundEvent, rest string) error {
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 {
		b.reply(ctx, ev.ChatID, "That button has expired. Send /renew again.")
		return nil
	}
	tenantID, perr := strconv.ParseInt(parts[0], 10, 64)
	plan, method, ok := parsePlanMethod(parts[1])
	if perr != nil || !ok || !b.plans.Known(plan) {
		b.reply(ctx, ev.ChatID, "That button has expired. Send /renew again.")
		return nil
	}
	if err := b.proofs.BeginRenewalFlow(ctx, ev.UserID, tenantID, plan, method, model.PaymentActionRenew); err != nil {
		return fmt.Errorf("begin renewal flow: %w", err)
	}
	b.reply(ctx, ev.ChatID, proofPrompt(b.plans, plan))
	return nil
}

func proofPrompt(plans *catalog.Catalog, plan string) string {
	return fmt.Sprintf(
		"Plan %s: %s %s.\nSend your proof of payment now: a photo or PDF of the receipt, or the transaction id as text.\nSend /cancel to abort.",
		plans.DisplayName(plan), plans.PriceDecimal(plan).StringFixed(3), plans.Currency(plan))
}

func (b *BotFacade) handleApprove(ctx context.Context, ev InboundEvent, idPart string) error {
	paymentID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		b.log.Warn().Str("payload", idPart).Msg("malformed approve callback dropped")
		return nil
	}
	p, err := b.review.Approve(ctx, ev.UserID, paymentID)
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		b.reply(ctx, ev.ChatID, "You are not authorized to review payments.")
		return nil
	case errors.Is(err, domain.ErrAlreadyProcessed):
		b.reply(ctx, ev.ChatID, alreadyProcessed(p))
		return nil
	case errors.Is(err, domain.ErrNotFound):
		b.reply(ctx, ev.ChatID, "Payment not found.")
		return nil
	case err != nil:
		return fmt.Errorf("approve payment %d: %w", paymentID, err)
	}
	b.reply(ctx, ev.ChatID, fmt.Sprintf("Approved %s. The requester has been notified.", p.Reference))
	return nil
}

func (b *BotFacade) handleBeginReject(ctx context.Context, ev InboundEvent, idPart string) error {
	paymentID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		b.log.Warn().Str("payload", idPart).Msg("malformed reject callback dropped")
		return nil
	}
	err = b.review.BeginReject(ctx, ev.UserID, paymentID)
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		b.reply(ctx, ev.ChatID, "You are not authorized to review payments.")
		return nil
	case errors.Is(err, domain.ErrAlreadyProcessed):
		b.reply(ctx, ev.ChatID, "This payment was already processed.")
		return nil
	case errors.Is(err, domain.ErrNotFound):
		b.reply(ctx, ev.ChatID, "Payment not found.")
		return nil
	case err != nil:
		return fmt.Errorf("begin reject for payment %d: %w", paymentID, err)
	}
	b.reply(ctx, ev.ChatID, "Send the rejection reason as your next message, or /cancel to keep the payment pending.")
	return nil
}

func alreadyProcessed(p *model.PaymentRecord) string {
	if p == nil {
		return "This payment was already processed."
	}
	return fmt.Sprintf("Payment %s was already processed (status: %s).", p.Reference, p.Status)
}

func (b *BotFacade) handleText(ctx context.Context, ev InboundEvent) error {
	// An admin mid reject sub-flow consumes the next text as the reason.
	if b.review.IsAdmin(ev.UserID) {
		awaiting, err := b.review.AwaitingReason(ctx, ev.UserID)
		if err != nil {
			return fmt.Errorf("check reject sub-flow: %w", err)
		}
		if awaiting {
			return b.completeReject(ctx, ev)
		}
	}

	p, err := b.proofs.SubmitTransactionID(ctx, ev.UserID, ev.Text)
	switch {
	case errors.Is(err, domain.ErrNoActiveFlow):
		b.reply(ctx, ev.ChatID, "Send /help to see what I can do.")
		return nil
	case errors.Is(err, domain.ErrUnsupportedInput):
		b.reply(ctx, ev.ChatID, "Please send the transaction id as plain text, or /cancel to abort.")
		return nil
	case err != nil:
		return fmt.Errorf("submit transaction id: %w", err)
	}
	b.reply(ctx, ev.ChatID, submissionReceived(p))
	return nil
}

func (b *BotFacade) completeReject(ctx context.Context, ev InboundEvent) error {
	p, err := b.review.CompleteReject(ctx, ev.UserID, ev.Text)
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		b.reply(ctx, ev.ChatID, "The rejection reason cannot be empty. Send it again, or /cancel.")
		return nil
	case errors.Is(err, domain.ErrAlreadyProcessed):
		b.reply(ctx, ev.ChatID, alreadyProcessed(p))
		return nil
	case err != nil:
		return fmt.Errorf("complete reject: %w", err)
	}
	b.reply(ctx, ev.ChatID, fmt.Sprintf("Rejected %s. The requester has been notified.", p.Reference))
	return nil
}

func (b *BotFacade) handleFile(ctx context.Context, ev InboundEvent, kind model.ProofKind) error {
	var (
		p   *model.PaymentRecord
		err error
	)
	if kind == model.ProofKindPhoto {
		p, err = b.proofs.SubmitPhoto(ctx, ev.UserID, ev.FileID)
	} else {
		p, err = b.proofs.SubmitDocument(ctx, ev.UserID, ev.FileID, ev.MIMEType)
	}
	switch {
	case errors.Is(err, domain.ErrNoActiveFlow):
		b.reply(ctx, ev.ChatID, "I wasn't expecting a file. Start with /newcompany or /renew.")
		return nil
	case errors.Is(err, domain.ErrUnsupportedInput):
		b.reply(ctx, ev.ChatID, "Unsupported file type. Please send a JPEG, PNG or PDF.")
		return nil
	case errors.Is(err, domain.ErrExternalFetch):
		b.reply(ctx, ev.ChatID, "I couldn't download that file. Please send it again.")
		return nil
	case err != nil:
		return fmt.Errorf("submit %s proof: %w", kind, err)
	}
	b.reply(ctx, ev.ChatID, submissionReceived(p))
	return nil
}

func submissionReceived(p *model.PaymentRecord) string {
	return fmt.Sprintf("Thanks! Your payment %s is awaiting review.\nWe will notify you once it has been checked.", p.Reference)
}
