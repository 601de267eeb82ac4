// Package quota enforces per account type limits on how many entities a user
// may create.
package quota

import (
	"errors"
	"fmt"
	"strings"

	"bracket-app/internal/model"
)

type Requirement string

const (
	MaxRounds Requirement = "max_rounds"
)

var ErrQuotaExceeded = errors.New("quota exceeded")

// Limits maps a requirement to its ceiling for one account type.
type Limits map[Requirement]int

// DefaultLimits applies when no override is configured.
func DefaultLimits() map[model.AccountType]Limits {
	return map[model.AccountType]Limits{
		model.AccountDemo:    {MaxRounds: 6},
		model.AccountRegular: {MaxRounds: 50},
	}
}

type Checker struct {
	limits map[model.AccountType]Limits
}

func NewChecker(limits map[model.AccountType]Limits) *Checker {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Checker{limits: limits}
}

// CheckRequirement fails once existing already holds as many items as the
// user's account allows. Account types or requirements without a configured
// limit are unrestricted.
func (c *Checker) CheckRequirement(existing []model.Round, user model.User, req Requirement) error {
	limit, ok := c.Limit(user.AccountType, req)
	if !ok {
		return nil
	}
	if len(existing) >= limit {
		return fmt.Errorf("%w: Your subscription (%s) is limited to %d %s.",
			ErrQuotaExceeded, user.AccountType, limit, noun(req))
	}
	return nil
}

func (c *Checker) Limit(account model.AccountType, req Requirement) (int, bool) {
	limits, ok := c.limits[account]
	if !ok {
		return 0, false
	}
	limit, ok := limits[req]
	return limit, ok
}

func noun(req Requirement) string {
	return strings.TrimPrefix(string(req), "max_")
}
