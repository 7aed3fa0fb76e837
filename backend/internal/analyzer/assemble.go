package analyzer

import (
	"fmt"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/domain"
)

// HeuristicReasoning is the fast-path explanation for a classified command.
func HeuristicReasoning(c domain.ToolCategory) string {
	return fmt.Sprintf("Heuristic analysis identified %s intent.", c)
}

// Assemble composes the final decision. A destructive gate verdict wins over
// everything else; otherwise allowed is derived from the risk tier so that
// allowed is false exactly when risk is CRITICAL. An empty reasoning falls
// back to the heuristic text.
func Assemble(gate GateResult, cls ClassifierResult, reasoning string) domain.AnalysisResult {
	if gate.Destructive {
		return domain.AnalysisResult{
			Risk:      domain.RiskCritical,
			Category:  domain.ToolSystem,
			Reasoning: DestructiveReasoning,
			Allowed:   false,
		}
	}

	cat, risk := cls.Category, cls.Risk
	if cat == "" {
		cat, risk = domain.ToolUnknown, domain.RiskMedium
	}
	if reasoning == "" {
		reasoning = HeuristicReasoning(cat)
	}
	return domain.AnalysisResult{
		Risk:      risk,
		Category:  cat,
		Reasoning: reasoning,
		Allowed:   risk != domain.RiskCritical,
	}
}
