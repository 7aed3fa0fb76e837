package server

import (
	"fmt"
	"log"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/analyzer"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/augment"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/config"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/metrics"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/provider"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/rules"
)

// Pipeline is the in-process classification stack shared by the brain and
// the CLI.
type Pipeline struct {
	Rules        *rules.Set
	Provider     provider.Provider
	Orchestrator *augment.Orchestrator
	Analyzer     *analyzer.Analyzer
	Metrics      *metrics.Collector // nil when metrics are disabled
}

// BuildPipeline loads the rule set and wires the reasoning backend for cfg.
func BuildPipeline(cfg *config.Config, logger *log.Logger) (*Pipeline, error) {
	set, err := rules.LoadFile(cfg.Rules.File, cfg.Rules.Profile)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	p, err := provider.New(cfg.ProviderConfig())
	if err != nil {
		return nil, err
	}

	// Metrics is nil when disabled so the HTTP boundary records nothing either.
	var collector *metrics.Collector
	var recorder metrics.Recorder = metrics.Noop{}
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		recorder = collector
	}

	orch := augment.NewOrchestrator(p, cfg.AugmentConfig(), recorder, logger)
	return &Pipeline{
		Rules:        set,
		Provider:     p,
		Orchestrator: orch,
		Analyzer:     analyzer.NewAnalyzer(set, orch, logger),
		Metrics:      collector,
	}, nil
}
