package rules

import (
	"fmt"
	"regexp"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/domain"
)

// Pattern is a destructive-intent signature.
type Pattern struct {
	Label string
	Expr  *regexp.Regexp
}

// IntentRule maps a lower-case keyword to a tool category.
type IntentRule struct {
	Keyword  string
	Category domain.ToolCategory
}

// RiskTable assigns the provisional risk tier for a classified category.
type RiskTable map[domain.ToolCategory]domain.RiskLevel

// For returns the tier for c. Categories missing from the table are MEDIUM.
func (t RiskTable) For(c domain.ToolCategory) domain.RiskLevel {
	if r, ok := t[c]; ok {
		return r
	}
	return domain.RiskMedium
}

// Set is a compiled, read-only rule registry. A Set is never modified after
// Compile returns it and may be shared between goroutines.
type Set struct {
	Version  string
	Profile  string
	Patterns []Pattern
	Intents  []IntentRule
	Risk     RiskTable
}

// Source hands out the rule set to use for one classification call.
type Source interface {
	Current() *Set
}

// Current lets a Set act as its own Source.
func (s *Set) Current() *Set {
	return s
}

// String summarises the set for startup logs.
func (s *Set) String() string {
	return fmt.Sprintf("rules v%s (%d patterns, %d intents, profile=%s)",
		s.Version, len(s.Patterns), len(s.Intents), s.Profile)
}
