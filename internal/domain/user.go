package domain

import "time"

// UserPlan enumerates billing plans.
type UserPlan string

const (
	UserPlanFree       UserPlan = "free"
	UserPlanPro        UserPlan = "pro"
	UserPlanEnterprise UserPlan = "enterprise"
)

// PlanCredits returns the credit allowance attached to a plan, or 0 for an
// unknown plan.
func PlanCredits(plan UserPlan) int {
	switch plan {
	case UserPlanFree:
		return 3
	case UserPlanPro:
		return 50
	case UserPlanEnterprise:
		return 999
	}
	return 0
}

// User represents an authenticated account within the platform. The credit
// balance is never mutated directly; every change goes through the ledger.
type User struct {
	ID            string
	Email         string
	Name          string
	Plan          UserPlan
	CreditBalance int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsFree reports whether the user is on the free plan.
func (u User) IsFree() bool {
	return u.Plan == UserPlanFree
}
