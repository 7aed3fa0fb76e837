package domain

import (
	"fmt"
	"strings"
)

// RiskLevel is the ordered risk tier of a classified command.
type RiskLevel int

const (
	RiskSafe RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical // terminal: always disallowed
)

var riskNames = [...]string{"SAFE", "MEDIUM", "HIGH", "CRITICAL"}

func (r RiskLevel) String() string {
	if r < RiskSafe || r > RiskCritical {
		return fmt.Sprintf("RiskLevel(%d)", int(r))
	}
	return riskNames[r]
}

// ParseRiskLevel accepts the wire names, case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, error) {
	for i, name := range riskNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return RiskLevel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown risk level %q", s)
}

func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RiskLevel) UnmarshalText(b []byte) error {
	v, err := ParseRiskLevel(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ToolCategory is the closed set of intents the classifier can produce.
type ToolCategory string

const (
	ToolNmap         ToolCategory = "nmap"
	ToolSQLMap       ToolCategory = "sqlmap"
	ToolMetasploit   ToolCategory = "metasploit"
	ToolConversation ToolCategory = "conversation"
	ToolSystem       ToolCategory = "system"
	ToolUnknown      ToolCategory = "unknown"
)

// Categories lists every ToolCategory in declaration order.
var Categories = []ToolCategory{
	ToolNmap, ToolSQLMap, ToolMetasploit, ToolConversation, ToolSystem, ToolUnknown,
}

// ParseToolCategory accepts a category name, case-insensitively.
func ParseToolCategory(s string) (ToolCategory, error) {
	c := ToolCategory(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown tool category %q", s)
}

// Augmentable reports whether commands of this category may be sent to the
// external reasoning service.
func (c ToolCategory) Augmentable() bool {
	return c != ToolConversation && c != ToolSystem
}

// AnalysisResult is the decision payload returned for one command.
type AnalysisResult struct {
	Risk      RiskLevel    `json:"risk"`
	Category  ToolCategory `json:"tool_type"`
	Reasoning string       `json:"reasoning"`
	Allowed   bool         `json:"allowed"`
}
