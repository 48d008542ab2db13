package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-invoicing-crm/internal/infra/metrics"
	"telegram-invoicing-crm/internal/usecase"
)

// ExpiryWorker periodically deactivates tenants whose plan window lapsed.
// Activation happens on payment approval; this sweep is the other half of
// the window accounting.
type ExpiryWorker struct {
	interval time.Duration
	tenants  usecase.TenantUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, tenants usecase.TenantUseCase, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		tenants:  tenants,
		log:      &l,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.tenants.DeactivateLapsed(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry sweep failed")
				continue
			}
			if n > 0 {
				metrics.AddTenantsDeactivated(n)
				w.log.Info().Int("count", n).Msg("lapsed tenants deactivated")
			}
		}
	}
}
