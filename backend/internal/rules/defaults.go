package rules

import (
	"fmt"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/domain"
)

// Risk profiles understood by Compile.
const (
	ProfileBaseline = "baseline"
	ProfileTiered   = "tiered"
)

// DefaultDocument is the built-in rule document.
func DefaultDocument() Document {
	return Document{
		Version: "1.0.0",
		Profile: ProfileBaseline,
		Patterns: []PatternEntry{
			{Label: "recursive-force-delete", Expr: `rm\s+-rf`},
			{Label: "filesystem-format", Expr: `mkfs`},
			{Label: "fork-bomb", Expr: `:\(\)\{\s*:\|:\s*&\s*\};:`},
			{Label: "zero-device-overwrite", Expr: `dd\s+if=/dev/zero`},
			{Label: "world-writable-root", Expr: `chmod\s+777\s+/`},
		},
		// Tool names come before the generic verbs so "sqlmap" is not read as "map".
		Intents: []IntentEntry{
			{Keyword: "sqlmap", Category: string(domain.ToolSQLMap)},
			{Keyword: "nmap", Category: string(domain.ToolNmap)},
			{Keyword: "msfconsole", Category: string(domain.ToolMetasploit)},
			{Keyword: "metasploit", Category: string(domain.ToolMetasploit)},
			{Keyword: "scan", Category: string(domain.ToolNmap)},
			{Keyword: "map", Category: string(domain.ToolNmap)},
			{Keyword: "inject", Category: string(domain.ToolSQLMap)},
			{Keyword: "exploit", Category: string(domain.ToolMetasploit)},
			{Keyword: "hello", Category: string(domain.ToolConversation)},
			{Keyword: "hi", Category: string(domain.ToolConversation)},
			{Keyword: "ahoj", Category: string(domain.ToolConversation)},
		},
	}
}

// Default compiles DefaultDocument. The built-in document is known to be valid.
func Default() *Set {
	s, err := Compile(DefaultDocument())
	if err != nil {
		panic(fmt.Sprintf("rules: built-in rule set does not compile: %v", err))
	}
	return s
}

// ProfileTable returns the risk table for a named profile.
func ProfileTable(profile string) (RiskTable, error) {
	switch profile {
	case "", ProfileBaseline:
		return RiskTable{
			domain.ToolNmap:         domain.RiskSafe,
			domain.ToolSQLMap:       domain.RiskSafe,
			domain.ToolMetasploit:   domain.RiskSafe,
			domain.ToolConversation: domain.RiskSafe,
			domain.ToolSystem:       domain.RiskSafe,
			domain.ToolUnknown:      domain.RiskMedium,
		}, nil
	case ProfileTiered:
		return RiskTable{
			domain.ToolConversation: domain.RiskSafe,
			domain.ToolNmap:         domain.RiskMedium,
			domain.ToolSQLMap:       domain.RiskHigh,
			domain.ToolMetasploit:   domain.RiskHigh,
			domain.ToolSystem:       domain.RiskHigh,
			domain.ToolUnknown:      domain.RiskMedium,
		}, nil
	default:
		return nil, fmt.Errorf("unknown risk profile %q", profile)
	}
}
