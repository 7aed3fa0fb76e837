package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/analyzer"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/audit"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/augment"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/metrics"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/scope"
	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// ScopeChecker decides whether a command is inside the engagement scope.
type ScopeChecker interface {
	Check(sessionID, command string) scope.Decision
}

// HandlerConfig holds the collaborators of the HTTP boundary
type HandlerConfig struct {
	Analyzer       *analyzer.Analyzer
	Scope          ScopeChecker       // optional
	Audit          *audit.Logger      // optional
	Metrics        *metrics.Collector // optional
	RateLimiter    *RateLimiter       // optional
	MaxRequestSize int64
	RequestTimeout time.Duration // 0 leaves the request unbounded beyond the LLM budget
	Logger         *log.Logger
}

// AnalyzeRequest is the POST /api/v1/analyze body.
type AnalyzeRequest struct {
	Command   string `json:"command"`
	SessionID string `json:"session_id,omitempty"`
}

// ErrorResponse is returned for every non-200 answer.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// AnalyzeHandler classifies one command per request.
func AnalyzeHandler(hc *HandlerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		requestID := uuid.New().String()
		w.Header().Set(RequestIDHeader, requestID)

		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			sendError(w, http.StatusMethodNotAllowed, "Method Not Allowed", requestID)
			return
		}

		if hc.MaxRequestSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, hc.MaxRequestSize)
		}
		var req AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				sendError(w, http.StatusRequestEntityTooLarge, "Request body too large", requestID)
			} else {
				sendError(w, http.StatusBadRequest, "Invalid JSON body", requestID)
			}
			hc.record(time.Since(startTime), false)
			return
		}
		if strings.TrimSpace(req.Command) == "" {
			sendError(w, http.StatusBadRequest, "Missing 'command' field", requestID)
			hc.record(time.Since(startTime), false)
			return
		}

		if ok, retryAfter := hc.RateLimiter.Allow(r, req.SessionID); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			sendError(w, http.StatusTooManyRequests, "Rate limit exceeded", requestID)
			hc.record(time.Since(startTime), false)
			return
		}

		entry := audit.Entry{
			RequestID: requestID,
			SessionID: req.SessionID,
			Command:   req.Command,
		}

		// 1. Scope validation
		if hc.Scope != nil {
			d := hc.Scope.Check(req.SessionID, req.Command)
			entry.Targets, entry.PolicyID, entry.PolicyHash = d.Targets, d.PolicyID, d.PolicyHash
			if !d.Allowed {
				hc.logInfo("Request %s BLOCKED by scope policy: %s", requestID, d.Reason)
				sendError(w, http.StatusForbidden, d.Reason, requestID)
				entry.Decision, entry.Reason = audit.DecisionScopeDenied, d.Reason
				hc.finish(entry, startTime, false)
				return
			}
		}

		// 2. Hybrid analysis
		ctx := r.Context()
		if hc.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, hc.RequestTimeout)
			defer cancel()
		}

		result, err := hc.Analyzer.Analyze(ctx, req.Command)
		if err != nil {
			entry.Decision, entry.Reason = audit.DecisionError, err.Error()
			switch {
			case errors.Is(err, analyzer.ErrEmptyCommand):
				sendError(w, http.StatusBadRequest, "Missing 'command' field", requestID)
			case errors.Is(err, context.DeadlineExceeded):
				hc.logError("Request %s timed out", requestID)
				sendError(w, http.StatusGatewayTimeout, "Analysis timed out", requestID)
			case errors.Is(err, context.Canceled):
				// Client went away; nothing to answer.
				hc.logInfo("Request %s cancelled by client", requestID)
			default:
				hc.logError("Analysis failed: %v", err)
				sendError(w, http.StatusInternalServerError, "Internal Server Error", requestID)
			}
			hc.finish(entry, startTime, false)
			return
		}

		entry.Decision = audit.DecisionClassified
		entry.Risk = result.Risk.String()
		entry.ToolType = string(result.Category)
		entry.Allowed = result.Allowed
		entry.Reason = result.Reasoning
		entry.Augmented = strings.Contains(result.Reasoning, augment.InsightTag)
		if !result.Allowed {
			entry.Pattern = gateLabel(hc.Analyzer, req.Command)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(result); err != nil {
			hc.logError("Failed to write response: %v", err)
		}

		if hc.Metrics != nil {
			hc.Metrics.RecordDecision(result.Risk.String(), string(result.Category))
		}
		hc.finish(entry, startTime, true)
		hc.logInfo("Request %s: %s/%s allowed=%v in %v", requestID, result.Risk, result.Category, result.Allowed, time.Since(startTime))
	}
}

// HealthHandler reports liveness.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"mode":   "enterprise-hybrid",
		})
	}
}

// MetricsHandler serves the JSON counters snapshot.
func MetricsHandler(c *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c == nil {
			writeJSON(w, http.StatusOK, metrics.Snapshot{})
			return
		}
		writeJSON(w, http.StatusOK, c.Snapshot())
	}
}

func gateLabel(a *analyzer.Analyzer, command string) string {
	set := a.Rules()
	if set == nil {
		return ""
	}
	return analyzer.NewGate(set).Evaluate(command).Label
}

func (hc *HandlerConfig) finish(entry audit.Entry, start time.Time, success bool) {
	entry.Latency = time.Since(start)
	hc.record(entry.Latency, success)
	hc.Audit.Log(entry)
}

func (hc *HandlerConfig) record(d time.Duration, success bool) {
	if hc.Metrics != nil {
		hc.Metrics.RecordRequest(d, success)
	}
}

// sendError sends a JSON error response
func sendError(w http.ResponseWriter, status int, message, requestID string) {
	writeJSON(w, status, ErrorResponse{Error: message, RequestID: requestID})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Logging helpers
func (hc *HandlerConfig) logInfo(format string, args ...interface{}) {
	if hc.Logger != nil {
		hc.Logger.Printf("[INFO] "+format, args...)
	}
}

func (hc *HandlerConfig) logError(format string, args ...interface{}) {
	if hc.Logger != nil {
		hc.Logger.Printf("[ERROR] "+format, args...)
	}
}
