package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/analyzer"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/config"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/mcp"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/server"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"

	rulesFile   string
	riskProfile string
	offline     bool
	verbose     bool
)

func main() {
	godotenv.Load()

	root := &cobra.Command{
		Use:   "kaos",
		Short: "K.A.O.S. command risk checker",
		Long: `Classifies shell commands with the same hybrid pipeline as the brain
service: destructive-pattern gate, intent heuristics and optional LLM insight.
Nothing is ever executed.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&rulesFile, "rules", "", "rule file (default: $RULES_FILE or built-in rules)")
	root.PersistentFlags().StringVar(&riskProfile, "profile", "", "risk profile: baseline or tiered (default: $RISK_PROFILE)")
	root.PersistentFlags().BoolVar(&offline, "offline", false, "skip LLM augmentation")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline activity to stderr")

	root.AddCommand(checkCmd())
	root.AddCommand(replCmd())
	root.AddCommand(rulesCmd())
	root.AddCommand(mcpCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%sError:%s %v\n", colorRed, colorReset, err)
		os.Exit(1)
	}
}

// loadAnalyzer builds the pipeline from the environment and the global flags.
func loadAnalyzer() (*analyzer.Analyzer, error) {
	cfg := config.Load()
	if rulesFile != "" {
		cfg.Rules.File = rulesFile
	}
	if riskProfile != "" {
		cfg.Rules.Profile = riskProfile
	}
	cfg.Metrics.Enabled = false

	logger := log.New(io.Discard, "", 0)
	if verbose {
		logger = log.New(os.Stderr, "[kaos] ", log.LstdFlags)
	}

	p, err := server.BuildPipeline(cfg, logger)
	if err != nil {
		return nil, err
	}
	if offline {
		return analyzer.NewAnalyzer(p.Rules, nil, logger), nil
	}
	return p.Analyzer, nil
}

func checkCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check <command...>",
		Short: "Classify a single command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadAnalyzer()
			if err != nil {
				return err
			}
			command := strings.Join(args, " ")
			result, err := a.Analyze(context.Background(), command)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else {
				printResult(cmd.OutOrStdout(), command, result)
			}
			// Blocked commands exit with status 2.
			if !result.Allowed {
				os.Exit(2)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the decision as JSON")
	return cmd
}

func rulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the active destructive patterns, intent keywords and risk table",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadAnalyzer()
			if err != nil {
				return err
			}
			printRules(cmd.OutOrStdout(), a.Rules())
			return nil
		},
	}
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve analyze_command and rate_risk as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadAnalyzer()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// stdout carries the protocol; diagnostics go to stderr.
			srv := mcp.NewServer(a, version, log.New(os.Stderr, "[kaos-mcp] ", log.LstdFlags))
			return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
