package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/config"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/provider"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/scope"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/server"
)

type scenario struct {
	name      string
	command   string
	llmUp     bool
	status    int
	risk      string
	toolType  string
	allowed   bool
	reasoning string // required substring
	llmCalls  int32
}

var scenarios = []scenario{
	{"destructive command", "rm -rf /", true, 200, "CRITICAL", "system", false, "Destructive command pattern detected.", 0},
	{"network scan with insight", "scan my network", true, 200, "SAFE", "nmap", true, "| LLM Insight: ", 1},
	{"greeting", "hello", true, 200, "SAFE", "conversation", true, "identified conversation intent.", 0},
	{"unknown with LLM down", "exfiltrate the database", false, 200, "MEDIUM", "unknown", true, "| LLM Offline", 3},
	{"sqlmap is not nmap", "sqlmap -u http://10.0.0.1/?id=1", true, 200, "SAFE", "sqlmap", true, "| LLM Insight: ", 1},
	{"out of scope target", "nmap 192.0.2.66", true, 403, "", "", false, "", 0},
}

const scopePolicy = `
permit(principal, action, resource);
forbid(principal, action, resource) when { context.targets.contains("192.0.2.66") };
`

func main() {
	log.Println("Starting integration test...")

	// Mock Ollama
	var llmUp atomic.Bool
	var llmCalls atomic.Int32
	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		llmCalls.Add(1)
		var req provider.OllamaGenerateRequest
		json.NewDecoder(r.Body).Decode(&req)
		log.Printf("Mock LLM received prompt: %q", req.Prompt)

		if !llmUp.Load() {
			// Drop the connection so the client sees a connectivity failure.
			hj, ok := w.(http.Hijacker)
			if ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(provider.OllamaGenerateResponse{
			Model:    req.Model,
			Response: "This command enumerates hosts and services; run it only against systems inside the agreed engagement scope.",
			Done:     true,
		})
	}))
	defer mock.Close()

	policyFile, err := os.CreateTemp("", "kaos-scope-*.cedar")
	if err != nil {
		log.Fatalf("Failed to create policy file: %v", err)
	}
	defer os.Remove(policyFile.Name())
	policyFile.WriteString(scopePolicy)
	policyFile.Close()

	// In-process brain, testing profile with a short retry delay
	os.Setenv("KAOS_ENV", config.EnvTesting)
	cfg := config.Load()
	cfg.LLM.URL = mock.URL + "/api/generate"
	cfg.LLM.MaxAttempts = 3
	cfg.LLM.RetryDelay = 50 * time.Millisecond
	cfg.Audit.Enabled = false

	logger := log.New(os.Stdout, "[brain] ", log.LstdFlags)
	pipeline, err := server.BuildPipeline(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	validator, err := scope.NewValidator(policyFile.Name(), logger)
	if err != nil {
		log.Fatalf("Failed to load scope policy: %v", err)
	}

	brain := httptest.NewServer(server.NewMux(&server.HandlerConfig{
		Analyzer:       pipeline.Analyzer,
		Scope:          validator,
		Metrics:        pipeline.Metrics,
		MaxRequestSize: cfg.Server.MaxRequestSize,
		Logger:         logger,
	}, true))
	defer brain.Close()

	failed := 0
	for i, sc := range scenarios {
		log.Printf("--- Test Case %d: %s ---", i+1, sc.name)
		llmUp.Store(sc.llmUp)
		llmCalls.Store(0)

		if err := run(brain.URL, sc, &llmCalls); err != nil {
			log.Printf("FAIL: %v", err)
			failed++
			continue
		}
		log.Printf("PASS: %s", sc.name)
	}

	if err := checkHealth(brain.URL); err != nil {
		log.Printf("FAIL: health: %v", err)
		failed++
	} else {
		log.Println("PASS: health")
	}

	if failed > 0 {
		log.Printf("%d of %d checks failed", failed, len(scenarios)+1)
		os.Exit(1)
	}
	log.Println("All checks passed")
}

func run(baseURL string, sc scenario, calls *atomic.Int32) error {
	status, body, err := sendRequest(baseURL, sc.command)
	if err != nil {
		return err
	}
	if status != sc.status {
		return fmt.Errorf("status %d, want %d: %s", status, sc.status, body)
	}
	if got := calls.Load(); got != sc.llmCalls {
		return fmt.Errorf("LLM called %d times, want %d", got, sc.llmCalls)
	}
	if status != http.StatusOK {
		return nil
	}

	var res struct {
		Risk      string `json:"risk"`
		ToolType  string `json:"tool_type"`
		Reasoning string `json:"reasoning"`
		Allowed   bool   `json:"allowed"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return fmt.Errorf("bad response %s: %w", body, err)
	}
	if res.Risk != sc.risk || res.ToolType != sc.toolType || res.Allowed != sc.allowed {
		return fmt.Errorf("got %s/%s allowed=%v, want %s/%s allowed=%v",
			res.Risk, res.ToolType, res.Allowed, sc.risk, sc.toolType, sc.allowed)
	}
	if !strings.Contains(res.Reasoning, sc.reasoning) {
		return fmt.Errorf("reasoning %q does not contain %q", res.Reasoning, sc.reasoning)
	}
	return nil
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "enterprise-hybrid") {
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return nil
}

func sendRequest(baseURL, command string) (int, []byte, error) {
	reqBody, _ := json.Marshal(server.AnalyzeRequest{Command: command})

	resp, err := http.Post(baseURL+"/api/v1/analyze", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, body, err
}
