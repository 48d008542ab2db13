// Seeds a demo tenant with one pending payment so the dashboard and the
// /pending command have something to show on a fresh install.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"telegram-invoicing-crm/internal/catalog"
	"telegram-invoicing-crm/internal/config"
	"telegram-invoicing-crm/internal/domain/model"
	pg "telegram-invoicing-crm/internal/infra/db/postgres"
	"telegram-invoicing-crm/internal/infra/logging"
	"telegram-invoicing-crm/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := pg.RunMigrations(ctx, cfg.Database.URL); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	pool, err := pg.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	tenantRepo := pg.NewTenantRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	tenantUC := usecase.NewTenantUseCase(tenantRepo, pg.NewTxManager(pool), logger)
	paymentUC := usecase.NewPaymentUseCase(paymentRepo, tenantUC, logger)

	pending, err := paymentUC.ListPending(ctx, 1)
	if err != nil {
		log.Fatalf("list pending: %v", err)
	}
	if len(pending) > 0 {
		fmt.Println("pending payments already present, no changes")
		return
	}

	plans := catalog.New(cfg.Plans)
	plan := "premium"
	if !plans.Known(plan) {
		keys := plans.Keys()
		if len(keys) == 0 {
			log.Fatalf("no plans configured in %s", *cfgPath)
		}
		plan = keys[0]
	}

	tenant, err := tenantUC.CreateInactive(ctx, "Demo Company Ltd", "demo@example.com", plans.Currency(plan), "Africa/Kampala")
	if err != nil {
		log.Fatalf("create tenant: %v", err)
	}

	txid := "MM-DEMO-0001"
	p, err := paymentUC.Create(ctx, usecase.CreatePaymentInput{
		TenantID:      tenant.ID,
		RequesterID:   1,
		Method:        model.PaymentMethodMobileMoney,
		PlanType:      plan,
		Action:        model.PaymentActionCreation,
		Amount:        plans.PriceDecimal(plan),
		Currency:      plans.Currency(plan),
		TransactionID: &txid,
	})
	if err != nil {
		log.Fatalf("create payment: %v", err)
	}

	fmt.Printf("seeded tenant %d (%s) with pending payment %s (%s %s)\n",
		tenant.ID, tenant.Name, p.Reference, p.Amount.StringFixed(3), p.Currency)
}
