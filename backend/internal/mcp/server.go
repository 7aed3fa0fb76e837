package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/analyzer"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/domain"
)

const rulesURI = "kaos://rules"

// Server implements the Model Context Protocol (MCP) over stdio so that
// agents can classify a command before running it.
type Server struct {
	analyzer *analyzer.Analyzer
	version  string
	logger   *log.Logger
	mu       sync.Mutex
}

// NewServer creates a new MCP server
func NewServer(a *analyzer.Analyzer, version string, logger *log.Logger) *Server {
	return &Server{analyzer: a, version: version, logger: logger}
}

// Serve reads JSON-RPC requests from r and writes responses to w until r is
// exhausted or ctx ends.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	decoder := json.NewDecoder(r)
	encoder := json.NewEncoder(w)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var req Request
		if err := decoder.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			s.logError("Failed to decode MCP request: %v", err)
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				// The stream cannot be resynchronised after a syntax error.
				s.send(encoder, Response{JSONRPC: "2.0", Error: &RPCError{Code: -32700, Message: "Parse error"}})
				return err
			}
			continue
		}

		if resp, ok := s.handleRequest(ctx, req); ok {
			s.send(encoder, resp)
		}
	}
}

// Request represents a JSON-RPC request
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC response
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

var commandSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"command": map[string]interface{}{
			"type":        "string",
			"description": "The shell command or request to classify",
		},
	},
	"required": []string{"command"},
}

func (s *Server) handleRequest(ctx context.Context, req Request) (Response, bool) {
	var result interface{}
	var rpcErr *RPCError

	switch req.Method {
	case "initialize":
		result = map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools":     map[string]interface{}{},
				"resources": map[string]interface{}{},
			},
			"serverInfo": map[string]string{
				"name":    "kaos-brain",
				"version": s.version,
			},
		}

	case "tools/list":
		result = map[string]interface{}{
			"tools": []interface{}{
				map[string]interface{}{
					"name":        "analyze_command",
					"description": "Classifies a command by risk tier and tool type, with LLM insight where available. Nothing is executed.",
					"inputSchema": commandSchema,
				},
				map[string]interface{}{
					"name":        "rate_risk",
					"description": "Returns the heuristic risk tier of a command without contacting the LLM.",
					"inputSchema": commandSchema,
				},
			},
		}

	case "tools/call":
		var params struct {
			Name      string                 `json:"name"`
			Arguments map[string]interface{} `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			rpcErr = &RPCError{Code: -32602, Message: "Invalid params"}
		} else {
			result, rpcErr = s.handleToolCall(ctx, params.Name, params.Arguments)
		}

	case "resources/list":
		result = map[string]interface{}{
			"resources": []interface{}{
				map[string]interface{}{
					"uri":         rulesURI,
					"name":        "Active rule set",
					"description": "Destructive patterns, intent keywords and risk table in use",
					"mimeType":    "application/json",
				},
			},
		}

	case "resources/read":
		var params struct {
			URI string `json:"uri"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			rpcErr = &RPCError{Code: -32602, Message: "Invalid params"}
		} else if params.URI != rulesURI {
			rpcErr = &RPCError{Code: -32602, Message: "Unknown resource"}
		} else {
			text, err := s.rulesJSON()
			if err != nil {
				rpcErr = &RPCError{Code: -32603, Message: err.Error()}
			} else {
				result = map[string]interface{}{
					"contents": []interface{}{
						map[string]interface{}{
							"uri":      rulesURI,
							"mimeType": "application/json",
							"text":     text,
						},
					},
				}
			}
		}

	case "ping":
		result = map[string]interface{}{}

	case "notifications/initialized":
		return Response{}, false

	default:
		rpcErr = &RPCError{Code: -32601, Message: fmt.Sprintf("Method %s not found", req.Method)}
	}

	if req.ID == nil {
		return Response{}, false
	}
	return Response{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rpcErr}, true
}

func (s *Server) handleToolCall(ctx context.Context, name string, args map[string]interface{}) (interface{}, *RPCError) {
	command, ok := args["command"].(string)
	if !ok || command == "" {
		return nil, &RPCError{Code: -32602, Message: "Command missing"}
	}

	switch name {
	case "analyze_command":
		res, err := s.analyzer.Analyze(ctx, command)
		if err != nil {
			return nil, &RPCError{Code: -32000, Message: err.Error()}
		}
		body, _ := json.Marshal(res)
		return toolResult(string(body), !res.Allowed), nil

	case "rate_risk":
		risk, err := s.analyzer.RateRisk(command)
		if err != nil {
			return nil, &RPCError{Code: -32000, Message: err.Error()}
		}
		return toolResult(risk.String(), risk == domain.RiskCritical), nil

	default:
		return nil, &RPCError{Code: -32601, Message: "Tool not found"}
	}
}

func toolResult(text string, isError bool) map[string]interface{} {
	return map[string]interface{}{
		"content": []interface{}{
			map[string]interface{}{
				"type": "text",
				"text": text,
			},
		},
		"isError": isError,
	}
}

func (s *Server) rulesJSON() (string, error) {
	set := s.analyzer.Rules()
	if set == nil {
		return "", analyzer.ErrNoRules
	}

	type pattern struct {
		Label string `json:"label"`
		Expr  string `json:"expr"`
	}
	type intent struct {
		Keyword  string `json:"keyword"`
		Category string `json:"category"`
	}
	doc := struct {
		Version  string            `json:"version"`
		Profile  string            `json:"risk_profile"`
		Patterns []pattern         `json:"patterns"`
		Intents  []intent          `json:"intents"`
		Risk     map[string]string `json:"risk"`
	}{Version: set.Version, Profile: set.Profile, Risk: map[string]string{}}

	for _, p := range set.Patterns {
		doc.Patterns = append(doc.Patterns, pattern{Label: p.Label, Expr: p.Expr.String()})
	}
	for _, r := range set.Intents {
		doc.Intents = append(doc.Intents, intent{Keyword: r.Keyword, Category: string(r.Category)})
	}
	cats := make([]string, 0, len(set.Risk))
	for c := range set.Risk {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	for _, c := range cats {
		doc.Risk[c] = set.Risk.For(domain.ToolCategory(c)).String()
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	return string(b), err
}

func (s *Server) send(encoder *json.Encoder, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := encoder.Encode(resp); err != nil {
		s.logError("Failed to write MCP response: %v", err)
	}
}

func (s *Server) logError(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf("[MCP ERROR] "+format, args...)
	}
}
