package audit

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// Entry is one analyse decision, written as a single JSON line.
type Entry struct {
	Timestamp  time.Time     `json:"timestamp"`
	RequestID  string        `json:"request_id"`
	SessionID  string        `json:"session_id,omitempty"`
	Command    string        `json:"command"`
	Targets    []string      `json:"targets,omitempty"`
	Risk       string        `json:"risk,omitempty"`
	ToolType   string        `json:"tool_type,omitempty"`
	Allowed    bool          `json:"allowed"`
	Decision   string        `json:"decision"` // "classified", "scope_denied", "error"
	Pattern    string        `json:"pattern,omitempty"`
	PolicyID   string        `json:"policy_id,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Augmented  bool          `json:"augmented"`
	Latency    time.Duration `json:"latency_ns"`
	PolicyHash string        `json:"policy_version,omitempty"`
}

// Decision values.
const (
	DecisionClassified  = "classified"
	DecisionScopeDenied = "scope_denied"
	DecisionError       = "error"
)

// Logger writes audit entries as JSON lines.
type Logger struct {
	mu       sync.Mutex
	closer   io.Closer
	encoder  *json.Encoder
	fallback *log.Logger
}

// NewLogger opens filePath for appending. An empty path logs to stdout.
func NewLogger(filePath string) (*Logger, error) {
	if filePath == "" {
		return NewWriterLogger(os.Stdout), nil
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l := NewWriterLogger(file)
	l.closer = file
	return l, nil
}

// NewWriterLogger logs to w. Close does not close w.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{
		encoder:  json.NewEncoder(w),
		fallback: log.New(os.Stderr, "[AUDIT] ", log.LstdFlags),
	}
}

// Log writes an audit entry. Write failures go to stderr and never reach the
// caller.
func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if err := l.encoder.Encode(entry); err != nil {
		l.fallback.Printf("Failed to write audit entry: %v, entry: %+v", err, entry)
	}
}

// Close closes the audit log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
