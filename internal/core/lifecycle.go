package core

import (
	"fmt"

	"gymledger/pkg/calendar"
	"gymledger/pkg/domain"
)

// DefaultNearExpiryWindow is the look-ahead, in days, of the expiry warning.
const DefaultNearExpiryWindow = 30

// RenewalKind tells which renewal path was taken.
type RenewalKind string

const (
	// RenewalFreshPurchase restarts the window today with BonusDays reset.
	RenewalFreshPurchase RenewalKind = "fresh_purchase"
	// RenewalExtension appends one base duration of the same plan.
	RenewalExtension RenewalKind = "extension"
)

// Renewal describes an applied renewal.
type Renewal struct {
	Kind      RenewalKind
	Member    domain.Member
	AddedDays int
	Expiry    calendar.Date
}

// expire clears Active when the window ended before today. A window ending
// today is still valid.
func expire(m *domain.Member, today calendar.Date) bool {
	if m.Active && m.Lapsed(today) {
		m.Active = false
		return true
	}
	return false
}

// renew applies the renewal policy to m in place. A record that is inactive
// or lapsed gets a fresh purchase with any plan; an active record may only be
// extended with its current plan.
func renew(m *domain.Member, plan domain.PlanType, today calendar.Date) (RenewalKind, int, error) {
	if !plan.Valid() {
		return "", 0, &domain.ValidationError{Field: "plan", Value: string(plan), Reason: "must be monthly, quarterly or yearly"}
	}
	if !m.Active || m.Lapsed(today) {
		m.JoinDate = today
		m.Plan = plan
		m.BonusDays = 0
		m.Active = true
		return RenewalFreshPurchase, plan.BaseDays(), nil
	}
	if plan != m.Plan {
		return "", 0, &domain.PolicyError{
			ID:     m.ID,
			Rule:   domain.ErrPlanChangeWhileActive,
			Reason: fmt.Sprintf("current plan is %s; renew with %s or wait until it expires", m.Plan, m.Plan),
		}
	}
	m.BonusDays += plan.BaseDays()
	m.Active = true
	return RenewalExtension, plan.BaseDays(), nil
}

// ExpiringMember pairs an active record with its remaining days.
type ExpiringMember struct {
	Member   domain.Member
	DaysLeft int
}

// nearExpiry returns active members with 0 <= daysLeft <= window, in store
// order. Callers sync status first.
func nearExpiry(members []domain.Member, today calendar.Date, window int) []ExpiringMember {
	var out []ExpiringMember
	for _, m := range members {
		left, ok := m.DaysLeft(today)
		if !ok || left < 0 || left > window {
			continue
		}
		out = append(out, ExpiringMember{Member: m, DaysLeft: left})
	}
	return out
}

// PlanShare is the number of active members on a plan and their share of all
// active members, in percent.
type PlanShare struct {
	Plan    domain.PlanType
	Active  int
	Percent float64
}

// Statistics summarises the current record set.
type Statistics struct {
	AsOf       calendar.Date
	Total      int
	Active     int
	Inactive   int
	Plans      []PlanShare
	NearExpiry []ExpiringMember
	Window     int
}

func computeStatistics(members []domain.Member, today calendar.Date, window int) Statistics {
	st := Statistics{AsOf: today, Total: len(members), Window: window}
	counts := make(map[domain.PlanType]int, len(domain.Plans))
	for _, m := range members {
		if m.Active {
			st.Active++
			counts[m.Plan]++
		}
	}
	st.Inactive = st.Total - st.Active
	for _, p := range domain.Plans {
		share := PlanShare{Plan: p, Active: counts[p]}
		if st.Active > 0 {
			share.Percent = float64(counts[p]) / float64(st.Active) * 100
		}
		st.Plans = append(st.Plans, share)
	}
	st.NearExpiry = nearExpiry(members, today, window)
	return st
}
