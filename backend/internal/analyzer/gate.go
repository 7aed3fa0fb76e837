package analyzer

import "github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/rules"

// DestructiveReasoning is the fixed reasoning of a gate short-circuit.
const DestructiveReasoning = "Destructive command pattern detected."

// GateResult is the Safety Gate verdict.
type GateResult struct {
	Destructive bool
	Label       string // first matching pattern, for logs and audit
}

// Gate checks commands against the destructive signatures of a rule set.
type Gate struct {
	patterns []rules.Pattern
}

// NewGate creates a Gate over set's patterns.
func NewGate(set *rules.Set) *Gate {
	return &Gate{patterns: set.Patterns}
}

// Evaluate reports whether any signature matches anywhere in command.
func (g *Gate) Evaluate(command string) GateResult {
	for _, p := range g.patterns {
		if p.Expr.MatchString(command) {
			return GateResult{Destructive: true, Label: p.Label}
		}
	}
	return GateResult{}
}
