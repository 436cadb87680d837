// Package rules loads declarative sensor-trigger rules for the security
// engine. A builtin rule set ships with the binary; a user override file can
// replace rules per channel category. Malformed entries are skipped with a
// warning so the remaining valid rules still load.
package rules

import "github.com/good-yellow-bee/homewatch/internal/models"

// Operator is a property check comparison operator.
type Operator string

const (
	OperatorEq  Operator = "eq"
	OperatorGt  Operator = "gt"
	OperatorGte Operator = "gte"
	OperatorIn  Operator = "in"
)

// ParseOperator converts a string to an Operator.
func ParseOperator(s string) (Operator, bool) {
	switch Operator(s) {
	case OperatorEq, OperatorGt, OperatorGte, OperatorIn:
		return Operator(s), true
	default:
		return "", false
	}
}

// Check is a single resolved property check. A rule fires if any one of its
// checks matches (logical OR).
type Check struct {
	Property models.PropertyCategory
	Operator Operator
	Value    any
}

// Rule is a resolved sensor-trigger rule, immutable after load.
type Rule struct {
	Channel   models.ChannelCategory
	AlertType models.AlertType
	Severity  models.Severity
	Checks    []Check
}

// Set maps channel categories to their resolved rule.
type Set map[models.ChannelCategory]Rule

// Lookup returns the rule for a channel category.
func (s Set) Lookup(cat models.ChannelCategory) (Rule, bool) {
	r, ok := s[cat]
	return r, ok
}
