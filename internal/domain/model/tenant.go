package model

import (
	"time"

	"telegram-invoicing-crm/internal/domain"
)

type PlanStatus string

const (
	PlanStatusFree       PlanStatus = "free"
	PlanStatusBasic      PlanStatus = "basic"
	PlanStatusPremium    PlanStatus = "premium"
	PlanStatusEnterprise PlanStatus = "enterprise"
)

// Tenant is the billed company whose active flag gates feature access.
type Tenant struct {
	ID            int64
	Name          string
	Email         string
	PlanStatus    PlanStatus
	PlanStartDate *time.Time
	PlanEndDate   *time.Time
	IsActive      bool
	Currency      string
	Timezone      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewTenant constructs an inactive tenant awaiting payment approval.
func NewTenant(name, email, currency, timezone string) (*Tenant, error) {
	if name == "" {
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" {
		currency = "USD"
	}
	now := time.Now()
	return &Tenant{
		Name:       name,
		Email:      email,
		PlanStatus: PlanStatusFree,
		IsActive:   false,
		Currency:   currency,
		Timezone:   timezone,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (t *Tenant) IsZero() bool { return t == nil || t.ID == 0 }

// WithinPlanWindow reports whether now falls inside [start, end].
// A free tenant with no window counts as within.
func (t *Tenant) WithinPlanWindow(now time.Time) bool {
	if t.PlanStartDate == nil || t.PlanEndDate == nil {
		return t.PlanStatus == PlanStatusFree
	}
	return !now.Before(*t.PlanStartDate) && !now.After(*t.PlanEndDate)
}

// AddMonth advances t by one calendar month, clamping to the last day of the
// resulting month (Jan 31 -> Feb 28/29). time.AddDate would normalize the
// overflow forward into March, silently granting extra paid days.
func AddMonth(t time.Time) time.Time {
	y, m, d := t.Date()
	firstOfNext := time.Date(y, m+1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := daysIn(firstOfNext.Year(), firstOfNext.Month())
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NextPlanWindow computes the window a newly confirmed payment buys.
// An expired or absent window starts now; an unexpired one stacks the new
// month onto the existing end so early renewals keep the remaining paid time.
func NextPlanWindow(currentEnd *time.Time, now time.Time) (start, end time.Time) {
	if currentEnd == nil || currentEnd.Before(now) {
		return now, AddMonth(now)
	}
	return *currentEnd, AddMonth(*currentEnd)
}

// ActivatePlan applies a confirmed purchase of plan to the tenant.
func (t *Tenant) ActivatePlan(plan PlanStatus, now time.Time) {
	start, end := NextPlanWindow(t.PlanEndDate, now)
	t.PlanStatus = plan
	t.PlanStartDate = &start
	t.PlanEndDate = &end
	t.IsActive = true
	t.UpdatedAt = now
}
