package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"telegram-invoicing-crm/internal/catalog"
	"telegram-invoicing-crm/internal/domain"
	"telegram-invoicing-crm/internal/domain/model"
	"telegram-invoicing-crm/internal/domain/ports/adapter"
	"telegram-invoicing-crm/internal/domain/ports/repository"
	"telegram-invoicing-crm/internal/infra/logging"
	"telegram-invoicing-crm/internal/infra/metrics"
)

var _ ProofUseCase = (*proofUC)(nil)

// ProofUseCase ingests payment evidence arriving over asynchronous chat
// turns. Each Submit* call is one independent inbound event; the flow state
// between them lives in the shared state store.
type ProofUseCase interface {
	BeginCreationFlow(ctx context.Context, userID int64, companyName, planType string, method model.PaymentMethod) error
	BeginRenewalFlow(ctx context.Context, userID, tenantID int64, planType string, method model.PaymentMethod, action model.PaymentAction) error
	// SubmitPhoto ingests a photo by its channel file handle (largest variant).
	SubmitPhoto(ctx context.Context, userID int64, fileID string) (*model.PaymentRecord, error)
	SubmitDocument(ctx context.Context, userID int64, fileID, mimeType string) (*model.PaymentRecord, error)
	// SubmitTransactionID ingests free-text evidence, stored verbatim.
	SubmitTransactionID(ctx context.Context, userID int64, text string) (*model.PaymentRecord, error)
	// ActiveFlow returns the caller's flow state, FlowNone when idle.
	ActiveFlow(ctx context.Context, userID int64) (*model.FlowState, error)
	// CancelActiveFlow clears whichever flow is active, in fixed priority
	// order, and reports which one was cancelled.
	CancelActiveFlow(ctx context.Context, userID int64) (model.ActiveFlow, error)
}

type proofUC struct {
	state    repository.FlowStateRepository
	fetcher  adapter.FileFetcher
	assets   adapter.AssetStore
	payments PaymentUseCase
	tenants  TenantUseCase
	plans    *catalog.Catalog
	notifier *AdminNotifier
	log      *zerolog.Logger
}

func NewProofUseCase(
	state repository.FlowStateRepository,
	fetcher adapter.FileFetcher,
	assets adapter.AssetStore,
	payments PaymentUseCase,
	tenants TenantUseCase,
	plans *catalog.Catalog,
	notifier *AdminNotifier,
	logger *zerolog.Logger,
) *proofUC {
	l := logger.With().Str("component", "ProofUC").Logger()
	return &proofUC{
		state:    state,
		fetcher:  fetcher,
		assets:   assets,
		payments: payments,
		tenants:  tenants,
		plans:    plans,
		notifier: notifier,
		log:      &l,
	}
}

func (u *proofUC) BeginCreationFlow(ctx context.Context, userID int64, companyName, planType string, method model.PaymentMethod) error {
	if companyName == "" || planType == "" {
		return domain.ErrInvalidArgument
	}
	return u.state.Set(ctx, repository.UserScope(userID), &model.FlowState{
		Flow:        model.FlowAwaitingCreationProof,
		PlanType:    planType,
		Method:      method,
		Action:      model.PaymentActionCreation,
		CompanyName: companyName,
	})
}

func (u *proofUC) BeginRenewalFlow(ctx context.Context, userID, tenantID int64, planType string, method model.PaymentMethod, action model.PaymentAction) error {
	if tenantID == 0 || planType == "" {
		return domain.ErrInvalidArgument
	}
	return u.state.Set(ctx, repository.UserScope(userID), &model.FlowState{
		Flow:     model.FlowAwaitingRenewalProof,
		PlanType: planType,
		Method:   method,
		Action:   action,
		TenantID: tenantID,
	})
}

func (u *proofUC) ActiveFlow(ctx context.Context, userID int64) (*model.FlowState, error) {
	st, err := u.state.Get(ctx, repository.UserScope(userID))
	if errors.Is(err, domain.ErrNotFound) {
		return &model.FlowState{Flow: model.FlowNone}, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// awaitingProof fetches and validates the caller's flow state; nil state with
// no error means the caller is not in a proof flow.
func (u *proofUC) awaitingProof(ctx context.Context, userID int64) (*model.FlowState, error) {
	st, err := u.ActiveFlow(ctx, userID)
	if err != nil {
		return nil, err
	}
	switch st.Flow {
	case model.FlowAwaitingCreationProof, model.FlowAwaitingRenewalProof:
		return st, nil
	}
	return nil, domain.ErrNoActiveFlow
}

func (u *proofUC) SubmitPhoto(ctx context.Context, userID int64, fileID string) (*model.PaymentRecord, error) {
	return u.submitFile(ctx, userID, fileID, "image/jpeg", model.ProofKindPhoto)
}

func (u *proofUC) SubmitDocument(ctx context.Context, userID int64, fileID, mimeType string) (*model.PaymentRecord, error) {
	return u.submitFile(ctx, userID, fileID, mimeType, model.ProofKindDocument)
}

func (u *proofUC) submitFile(ctx context.Context, userID int64, fileID, mimeType string, kind model.ProofKind) (*model.PaymentRecord, error) {
	defer logging.TraceDuration(u.log, "ProofUC.submitFile")()
	st, err := u.awaitingProof(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Validate the declared MIME before spending a download. The flow state is
	// kept: the user can resend a supported file without restarting.
	if _, ok := model.AllowedProofMIME[strings.ToLower(mimeType)]; !ok {
		metrics.IncProofIngest(string(kind), "unsupported")
		return nil, domain.ErrUnsupportedInput
	}

	data, err := u.fetcher.Fetch(ctx, fileID)
	if err != nil {
		// Download failed: state intentionally kept so the flow stays
		// resumable; the user retries without restarting.
		u.log.Error().Err(err).Int64("tg_id", userID).Str("file_id", fileID).Msg("proof download failed")
		metrics.IncProofIngest(string(kind), "fetch_failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalFetch, err)
	}

	path, err := u.assets.Save(ctx, data, mimeType)
	if err != nil {
		u.log.Error().Err(err).Int64("tg_id", userID).Msg("proof store failed")
		metrics.IncProofIngest(string(kind), "store_failed")
		if errors.Is(err, domain.ErrUnsupportedInput) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalFetch, err)
	}

	return u.finishSubmission(ctx, userID, st, kind, &path, nil)
}

func (u *proofUC) SubmitTransactionID(ctx context.Context, userID int64, text string) (*model.PaymentRecord, error) {
	st, err := u.awaitingProof(ctx, userID)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" || strings.HasPrefix(text, "/") {
		return nil, domain.ErrUnsupportedInput
	}
	return u.finishSubmission(ctx, userID, st, model.ProofKindText, nil, &text)
}

func (u *proofUC) finishSubmission(ctx context.Context, userID int64, st *model.FlowState, kind model.ProofKind, proofPath, transactionID *string) (*model.PaymentRecord, error) {
	tenantID := st.TenantID
	if st.Flow == model.FlowAwaitingCreationProof {
		// Company creation flow: the tenant record is created inactive first,
		// then the payment references it.
		t, err := u.tenants.CreateInactive(ctx, st.CompanyName, "", u.plans.Currency(st.PlanType), "")
		if err != nil {
			metrics.IncProofIngest(string(kind), "tenant_failed")
			return nil, err
		}
		tenantID = t.ID
	}

	currency := u.plans.Currency(st.PlanType)
	if currency == "" {
		currency = "USD"
	}
	p, err := u.payments.Create(ctx, CreatePaymentInput{
		TenantID:      tenantID,
		RequesterID:   userID,
		Method:        st.Method,
		PlanType:      st.PlanType,
		Action:        st.Action,
		Amount:        u.plans.PriceDecimal(st.PlanType),
		Currency:      currency,
		ProofPath:     proofPath,
		TransactionID: transactionID,
	})
	if err != nil {
		// A partial write may exist (creation flow tenant); clear the state so
		// a retry cannot mint duplicate tenants.
		if st.Flow == model.FlowAwaitingCreationProof {
			_ = u.state.Clear(ctx, repository.UserScope(userID))
		}
		metrics.IncProofIngest(string(kind), "record_failed")
		return nil, err
	}

	u.notifier.PaymentSubmitted(ctx, p, u.plans.DisplayName(st.PlanType), kind)

	if err := u.state.Clear(ctx, repository.UserScope(userID)); err != nil {
		u.log.Error().Err(err).Int64("tg_id", userID).Msg("failed to clear flow state after submission")
	}
	metrics.IncProofIngest(string(kind), "ok")
	return p, nil
}

// cancelPriority fixes which flow a /cancel clears when state from different
// flows could coexist.
var cancelPriority = []model.ActiveFlow{
	model.FlowAwaitingRejectReason,
	model.FlowAwaitingCreationProof,
	model.FlowAwaitingRenewalProof,
}

func (u *proofUC) CancelActiveFlow(ctx context.Context, userID int64) (model.ActiveFlow, error) {
	st, err := u.ActiveFlow(ctx, userID)
	if err != nil {
		return model.FlowNone, err
	}
	for _, f := range cancelPriority {
		if st.Flow != f {
			continue
		}
		if f == model.FlowAwaitingRejectReason {
			// Drop the cross-instance marker other admins see.
			_ = u.state.Clear(ctx, repository.GlobalScope(rejectMarker(st.PaymentID)))
		}
		if err := u.state.Clear(ctx, repository.UserScope(userID)); err != nil {
			return model.FlowNone, err
		}
		return f, nil
	}
	return model.FlowNone, domain.ErrNoActiveFlow
}
