package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/domain"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/rules"
	"github.com/spf13/cobra"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactively classify commands (advice only, nothing is executed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadAnalyzer()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, colorCyan+colorBold+`
╔═══════════════════════════════════════════════════════════╗
║            K.A.O.S. - Interactive Risk Checker            ║
║       Type a command to see its risk classification       ║
║              Type 'exit' or 'quit' to exit                ║
╚═══════════════════════════════════════════════════════════╝`+colorReset)
			fmt.Fprintf(out, "%s[✓] %s%s\n\n", colorGreen, a.Rules(), colorReset)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprintf(out, "%s%skaos> %s", colorBold, colorBlue, colorReset)

				if !scanner.Scan() {
					break
				}

				command := strings.TrimSpace(scanner.Text())
				if command == "" {
					continue
				}
				if command == "exit" || command == "quit" {
					fmt.Fprintln(out, colorCyan+"Goodbye!"+colorReset)
					break
				}

				result, err := a.Analyze(context.Background(), command)
				if err != nil {
					fmt.Fprintf(os.Stderr, "%sError:%s %v\n", colorRed, colorReset, err)
					continue
				}
				printResult(out, command, result)
				fmt.Fprintln(out)
			}
			return scanner.Err()
		},
	}
}

func riskColor(r domain.RiskLevel) string {
	switch r {
	case domain.RiskCritical, domain.RiskHigh:
		return colorRed
	case domain.RiskMedium:
		return colorYellow
	default:
		return colorGreen
	}
}

func printResult(out io.Writer, command string, r domain.AnalysisResult) {
	fmt.Fprintln(out)

	// Decision banner
	if r.Allowed {
		fmt.Fprintf(out, "%s%s  ✅ ALLOWED  %s\n", colorBold, colorGreen, colorReset)
	} else {
		fmt.Fprintf(out, "%s%s  🛑 BLOCKED  %s\n", colorBold, colorRed, colorReset)
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "%s┌─ Analysis ─────────────────────────────────────────%s\n", colorYellow, colorReset)
	fmt.Fprintf(out, "│ Command:   %s\n", command)
	fmt.Fprintf(out, "│ Risk:      %s%s%s\n", riskColor(r.Risk), r.Risk, colorReset)
	fmt.Fprintf(out, "│ Tool:      %s\n", r.Category)
	fmt.Fprintf(out, "│ Reasoning: %s\n", r.Reasoning)
	fmt.Fprintf(out, "%s└────────────────────────────────────────────────────%s\n", colorYellow, colorReset)
}

func printRules(out io.Writer, set *rules.Set) {
	fmt.Fprintf(out, "%s%s%s\n\n", colorBold, set, colorReset)

	fmt.Fprintf(out, "%s┌─ Destructive patterns ─────────────────────────────%s\n", colorRed, colorReset)
	for _, p := range set.Patterns {
		fmt.Fprintf(out, "│ %-24s %s\n", p.Label, p.Expr)
	}
	fmt.Fprintf(out, "%s└────────────────────────────────────────────────────%s\n", colorRed, colorReset)

	fmt.Fprintf(out, "%s┌─ Intent keywords (first match wins) ───────────────%s\n", colorCyan, colorReset)
	for _, r := range set.Intents {
		fmt.Fprintf(out, "│ %-12s → %s\n", r.Keyword, r.Category)
	}
	fmt.Fprintf(out, "%s└────────────────────────────────────────────────────%s\n", colorCyan, colorReset)

	cats := make([]string, 0, len(set.Risk))
	for c := range set.Risk {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)

	fmt.Fprintf(out, "%s┌─ Risk table (%s) ──────────────────────────────%s\n", colorYellow, set.Profile, colorReset)
	for _, c := range cats {
		risk := set.Risk.For(domain.ToolCategory(c))
		fmt.Fprintf(out, "│ %-12s %s%s%s\n", c, riskColor(risk), risk, colorReset)
	}
	fmt.Fprintf(out, "%s└────────────────────────────────────────────────────%s\n", colorYellow, colorReset)
}
