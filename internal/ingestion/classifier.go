package ingestion

import (
	"strings"

	"finwatch/internal/database/models"
)

// Rule maps event types containing a keyword to a category and severity.
// Rules are evaluated in order, first match wins: classification stays
// deterministic and auditable at this data volume.
type Rule struct {
	Contains string
	Category string
	Severity string
	Threat   bool
}

// Classification is the outcome of classifying one event type
type Classification struct {
	Category string
	Severity string
	Threat   bool
}

// Classifier assigns a coarse category and severity to event types using
// an ordered keyword rule table. The table is configuration, not policy:
// callers may supply their own rules.
type Classifier struct {
	rules []Rule
}

// DefaultRules returns the stock keyword table
func DefaultRules() []Rule {
	return []Rule{
		{Contains: "login", Category: models.CategoryLoginFailure, Severity: models.SeverityWarning, Threat: true},
		{Contains: "checkout", Category: models.CategorySuspiciousTraffic, Severity: models.SeverityWarning},
		{Contains: "wishlist", Category: models.CategoryUnauthorizedAccess, Severity: models.SeverityWarning, Threat: true},
	}
}

// NewClassifier creates a classifier from an ordered rule table.
// Nil rules means the default table.
func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify matches the event type against the rule table. Empty input and
// unmatched types classify as user activity at info severity, never an error.
func (c *Classifier) Classify(eventType string) Classification {
	eventLower := strings.ToLower(eventType)
	for _, rule := range c.rules {
		if strings.Contains(eventLower, rule.Contains) {
			return Classification{
				Category: rule.Category,
				Severity: rule.Severity,
				Threat:   rule.Threat,
			}
		}
	}
	return Classification{
		Category: models.CategoryUserActivity,
		Severity: models.SeverityInfo,
	}
}
