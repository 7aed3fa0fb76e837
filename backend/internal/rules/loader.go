package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/domain"
	"gopkg.in/yaml.v3"
)

// ErrInvalidRules is wrapped by every Compile failure.
var ErrInvalidRules = errors.New("invalid rule set")

// Document is the on-disk rule document.
type Document struct {
	Version  string            `yaml:"version"`
	Profile  string            `yaml:"risk_profile"`
	Patterns []PatternEntry    `yaml:"patterns"`
	Intents  []IntentEntry     `yaml:"intents"`
	Risk     map[string]string `yaml:"risk,omitempty"` // per-category overrides
}

// PatternEntry is one destructive signature before compilation.
type PatternEntry struct {
	Label string `yaml:"label"`
	Expr  string `yaml:"expr"`
}

// IntentEntry is one keyword rule before validation.
type IntentEntry struct {
	Keyword  string `yaml:"keyword"`
	Category string `yaml:"category"`
}

// Compile validates doc and builds an immutable Set.
func Compile(doc Document) (*Set, error) {
	set := &Set{
		Version:  doc.Version,
		Profile:  doc.Profile,
		Patterns: make([]Pattern, 0, len(doc.Patterns)),
		Intents:  make([]IntentRule, 0, len(doc.Intents)),
	}
	if set.Version == "" {
		set.Version = "1.0.0"
	}
	if set.Profile == "" {
		set.Profile = ProfileBaseline
	}

	for i, p := range doc.Patterns {
		if strings.TrimSpace(p.Expr) == "" {
			return nil, fmt.Errorf("%w: pattern %d has an empty expression", ErrInvalidRules, i)
		}
		re, err := regexp.Compile("(?i)" + p.Expr)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %d (%s): %v", ErrInvalidRules, i, p.Label, err)
		}
		label := p.Label
		if label == "" {
			label = p.Expr
		}
		set.Patterns = append(set.Patterns, Pattern{Label: label, Expr: re})
	}

	for i, r := range doc.Intents {
		kw := strings.ToLower(strings.TrimSpace(r.Keyword))
		if kw == "" {
			return nil, fmt.Errorf("%w: intent %d has an empty keyword", ErrInvalidRules, i)
		}
		cat, err := domain.ParseToolCategory(r.Category)
		if err != nil {
			return nil, fmt.Errorf("%w: intent %q: %v", ErrInvalidRules, kw, err)
		}
		set.Intents = append(set.Intents, IntentRule{Keyword: kw, Category: cat})
	}

	table, err := ProfileTable(set.Profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	for name, level := range doc.Risk {
		cat, err := domain.ParseToolCategory(name)
		if err != nil {
			return nil, fmt.Errorf("%w: risk override: %v", ErrInvalidRules, err)
		}
		r, err := domain.ParseRiskLevel(level)
		if err != nil {
			return nil, fmt.Errorf("%w: risk override for %s: %v", ErrInvalidRules, cat, err)
		}
		table[cat] = r
	}
	// Unclassified commands are always MEDIUM.
	if table.For(domain.ToolUnknown) != domain.RiskMedium {
		return nil, fmt.Errorf("%w: risk for %s must be %s", ErrInvalidRules, domain.ToolUnknown, domain.RiskMedium)
	}
	set.Risk = table

	return set, nil
}

// LoadFile reads a YAML rule document. An empty path or a missing file yields
// the built-in rules; profile, when non-empty, overrides the file's profile.
func LoadFile(path, profile string) (*Set, error) {
	doc := DefaultDocument()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// keep defaults
		case err != nil:
			return nil, fmt.Errorf("failed to read rule file: %w", err)
		default:
			var fileDoc Document
			if err := yaml.Unmarshal(data, &fileDoc); err != nil {
				return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidRules, err)
			}
			doc = fileDoc
		}
	}
	if profile != "" {
		doc.Profile = profile
	}
	return Compile(doc)
}
