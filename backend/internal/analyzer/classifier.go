package analyzer

import (
	"strings"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/domain"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/rules"
)

// ClassifierResult is the fast-path intent verdict.
type ClassifierResult struct {
	Category domain.ToolCategory
	Risk     domain.RiskLevel
	Keyword  string // matched keyword, empty for unknown
}

// Classifier maps commands to a tool category with first-match-wins keyword
// scanning in rule declaration order.
type Classifier struct {
	intents []rules.IntentRule
	risk    rules.RiskTable
}

// NewClassifier creates a Classifier over set's intent rules and risk table.
func NewClassifier(set *rules.Set) *Classifier {
	return &Classifier{intents: set.Intents, risk: set.Risk}
}

// Classify returns the category of the first rule whose keyword occurs in
// command, or ToolUnknown.
func (c *Classifier) Classify(command string) domain.ToolCategory {
	cat, _ := c.match(strings.ToLower(command))
	return cat
}

// Assess classifies command and attaches the provisional risk tier.
func (c *Classifier) Assess(command string) ClassifierResult {
	cat, kw := c.match(strings.ToLower(command))
	return ClassifierResult{
		Category: cat,
		Risk:     c.risk.For(cat),
		Keyword:  kw,
	}
}

func (c *Classifier) match(lower string) (domain.ToolCategory, string) {
	for _, r := range c.intents {
		if strings.Contains(lower, r.Keyword) {
			return r.Category, r.Keyword
		}
	}
	return domain.ToolUnknown, ""
}
