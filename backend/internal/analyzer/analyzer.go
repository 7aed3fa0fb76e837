package analyzer

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/domain"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/rules"
)

var (
	// ErrEmptyCommand is an input error; the boundary rejects it.
	ErrEmptyCommand = errors.New("command is required")

	// ErrNoRules means the analyzer has no rule set to evaluate against.
	ErrNoRules = errors.New("no rule set loaded")
)

// Augmenter enriches reasoning text with an external explanation. It must
// not fail; degraded output is expressed in the returned text.
type Augmenter interface {
	Augment(ctx context.Context, command, base string) string
}

// Analyzer runs the hybrid pipeline: safety gate, intent classification,
// optional augmentation, assembly.
type Analyzer struct {
	rules     rules.Source
	augmenter Augmenter
	logger    *log.Logger
}

// NewAnalyzer creates a new Analyzer. augmenter may be nil, in which case
// results carry only heuristic reasoning.
func NewAnalyzer(src rules.Source, augmenter Augmenter, logger *log.Logger) *Analyzer {
	return &Analyzer{rules: src, augmenter: augmenter, logger: logger}
}

// Analyze classifies command. Errors are limited to input errors, a missing
// rule set, and the caller's context ending; augmentation failures never
// surface here.
func (a *Analyzer) Analyze(ctx context.Context, command string) (domain.AnalysisResult, error) {
	if strings.TrimSpace(command) == "" {
		return domain.AnalysisResult{}, ErrEmptyCommand
	}
	set, err := a.current()
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	// 1. Safety Gate (hard short-circuit)
	gate := NewGate(set).Evaluate(command)
	if gate.Destructive {
		a.logInfo("destructive pattern %q matched, skipping classification", gate.Label)
		return Assemble(gate, ClassifierResult{}, ""), nil
	}

	// 2. Fast-path intent classification
	cls := NewClassifier(set).Assess(command)
	reasoning := HeuristicReasoning(cls.Category)

	// 3. Augmentation (only for allowed, non-conversational intents)
	if a.augmenter != nil && cls.Category.Augmentable() && cls.Risk != domain.RiskCritical {
		reasoning = a.augmenter.Augment(ctx, command, reasoning)
		if err := ctx.Err(); err != nil {
			return domain.AnalysisResult{}, err
		}
	}

	// 4. Assembly
	return Assemble(gate, cls, reasoning), nil
}

// RateRisk returns the fast-path risk tier of command without contacting the
// reasoning service.
func (a *Analyzer) RateRisk(command string) (domain.RiskLevel, error) {
	set, err := a.current()
	if err != nil {
		return 0, err
	}
	if NewGate(set).Evaluate(command).Destructive {
		return domain.RiskCritical, nil
	}
	return NewClassifier(set).Assess(command).Risk, nil
}

// IdentifyTool returns the fast-path tool category of command. Destructive
// commands are reported as system.
func (a *Analyzer) IdentifyTool(command string) (domain.ToolCategory, error) {
	set, err := a.current()
	if err != nil {
		return "", err
	}
	if NewGate(set).Evaluate(command).Destructive {
		return domain.ToolSystem, nil
	}
	return NewClassifier(set).Classify(command), nil
}

// Rules returns the rule set currently in use.
func (a *Analyzer) Rules() *rules.Set {
	set, _ := a.current()
	return set
}

func (a *Analyzer) current() (*rules.Set, error) {
	if a.rules == nil {
		return nil, ErrNoRules
	}
	set := a.rules.Current()
	if set == nil {
		return nil, ErrNoRules
	}
	return set, nil
}

func (a *Analyzer) logInfo(format string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Printf("[INFO] "+format, args...)
	}
}
