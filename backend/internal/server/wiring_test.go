package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/config"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipelineConfig(metricsEnabled bool) *config.Config {
	cfg := config.Load()
	cfg.Rules = config.RulesConfig{}
	cfg.LLM.Backend = "ollama"
	cfg.LLM.URL = "http://127.0.0.1:1"
	cfg.Metrics.Enabled = metricsEnabled
	return cfg
}

func metricsAfterOneRequest(t *testing.T, p *Pipeline) metrics.Snapshot {
	t.Helper()
	mux := NewMux(&HandlerConfig{Analyzer: p.Analyzer, Metrics: p.Metrics}, false)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(`{"command":"hello"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	return snap
}

func TestBuildPipeline_MetricsDisabled(t *testing.T) {
	p, err := BuildPipeline(pipelineConfig(false), nil)
	require.NoError(t, err)
	assert.Nil(t, p.Metrics)

	snap := metricsAfterOneRequest(t, p)
	assert.Equal(t, int64(0), snap.Requests.Total)
}

func TestBuildPipeline_MetricsEnabled(t *testing.T) {
	p, err := BuildPipeline(pipelineConfig(true), nil)
	require.NoError(t, err)
	require.NotNil(t, p.Metrics)

	snap := metricsAfterOneRequest(t, p)
	assert.Equal(t, int64(1), snap.Requests.Total)
	assert.Equal(t, int64(1), snap.Requests.Success)
}
