package scope

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cedar-policy/cedar-go"
	"github.com/fsnotify/fsnotify"
)

// DefaultPolicy permits every request (unrestricted engagement).
const DefaultPolicy = `permit(principal, action, resource);`

// AnonymousOperator is the principal id used when a request has no session.
const AnonymousOperator = "anonymous"

var ErrNotInitialized = errors.New("scope policy not loaded")

// Decision is the outcome of a scope check.
type Decision struct {
	Allowed    bool
	Reason     string
	PolicyID   string
	PolicyHash string // PolicyVersion at the time of the check
	Targets    []string
}

// Validator checks analysed commands against Cedar engagement-scope policies.
// The policy set is swapped atomically on reload.
type Validator struct {
	policySet     atomic.Pointer[cedar.PolicySet]
	policyVersion atomic.Pointer[string]
	PolicyPath    string

	watcher    *fsnotify.Watcher
	stopWatch  chan struct{}
	stopOnce   sync.Once
	logger     *log.Logger
	reloadLock sync.Mutex
	debounce   time.Duration
}

// NewValidator loads policyPath. An empty path installs DefaultPolicy.
func NewValidator(policyPath string, logger *log.Logger) (*Validator, error) {
	v := &Validator{
		PolicyPath: policyPath,
		stopWatch:  make(chan struct{}),
		logger:     logger,
		debounce:   500 * time.Millisecond,
	}
	if err := v.reload(); err != nil {
		return nil, err
	}
	return v, nil
}

// PolicyVersion returns a short content hash of the active policy set.
func (v *Validator) PolicyVersion() string {
	p := v.policyVersion.Load()
	if p == nil {
		return ""
	}
	return *p
}

// StartHotReload watches the policy file and reloads it on change. A failed
// reload keeps the previous policy set.
func (v *Validator) StartHotReload() error {
	if v.PolicyPath == "" {
		return fmt.Errorf("no policy file to watch")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(v.PolicyPath); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch policy file: %w", err)
	}
	v.watcher = watcher

	go v.watchLoop()

	v.logInfo("hot-reload enabled for %s", v.PolicyPath)
	return nil
}

// StopHotReload stops the file watcher. Safe to call more than once.
func (v *Validator) StopHotReload() {
	if v.watcher == nil {
		return
	}
	v.stopOnce.Do(func() {
		close(v.stopWatch)
		v.watcher.Close()
	})
}

func (v *Validator) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case event, ok := <-v.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(v.debounce, func() {
				v.reloadLock.Lock()
				defer v.reloadLock.Unlock()

				old := v.PolicyVersion()
				if err := v.reload(); err != nil {
					v.logError("hot-reload failed, keeping %s: %v", old, err)
					return
				}
				v.logInfo("hot-reload: %s -> %s", old, v.PolicyVersion())
			})
		case err, ok := <-v.watcher.Errors:
			if !ok {
				return
			}
			v.logError("watcher error: %v", err)
		case <-v.stopWatch:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return
		}
	}
}

func (v *Validator) reload() error {
	data := []byte(DefaultPolicy)
	name := "default.cedar"
	if v.PolicyPath != "" {
		b, err := os.ReadFile(v.PolicyPath)
		if err != nil {
			return fmt.Errorf("failed to read policy file: %w", err)
		}
		data, name = b, v.PolicyPath
	}

	ps, err := cedar.NewPolicySetFromBytes(name, data)
	if err != nil {
		return fmt.Errorf("failed to parse cedar policies: %w", err)
	}

	hash := sha256.Sum256(data)
	version := hex.EncodeToString(hash[:])[:12]

	v.policySet.Store(ps)
	v.policyVersion.Store(&version)
	return nil
}

// Check authorises an analyse request from sessionID for command. Targets
// found in the command are passed to the policies as context.targets.
func (v *Validator) Check(sessionID, command string) Decision {
	targets := ExtractTargets(command)

	ps := v.policySet.Load()
	if ps == nil {
		return Decision{Reason: ErrNotInitialized.Error(), Targets: targets}
	}

	if sessionID == "" {
		sessionID = AnonymousOperator
	}

	values := make([]cedar.Value, len(targets))
	for i, t := range targets {
		values[i] = cedar.String(t)
	}

	principal := cedar.NewEntityUID("Operator", cedar.String(sessionID))
	resource := cedar.NewEntityUID("Command", "input")
	entities := cedar.EntityMap{
		principal: cedar.Entity{UID: principal},
		resource:  cedar.Entity{UID: resource},
	}

	req := cedar.Request{
		Principal: principal,
		Action:    cedar.NewEntityUID("Action", "analyze"),
		Resource:  resource,
		Context: cedar.NewRecord(cedar.RecordMap{
			"command": cedar.String(command),
			"targets": cedar.NewSet(values...),
		}),
	}

	ok, diagnostics := cedar.Authorize(ps, entities, req)
	hash := v.PolicyVersion()

	var policyID string
	if len(diagnostics.Reasons) > 0 {
		policyID = string(diagnostics.Reasons[0].PolicyID)
	}
	for _, e := range diagnostics.Errors {
		v.logError("policy %s evaluation error: %s", e.PolicyID, e.Message)
	}

	if ok {
		return Decision{Allowed: true, Reason: "within engagement scope", PolicyID: policyID, PolicyHash: hash, Targets: targets}
	}
	return Decision{Allowed: false, Reason: "target outside engagement scope", PolicyID: policyID, PolicyHash: hash, Targets: targets}
}

func (v *Validator) logInfo(format string, args ...interface{}) {
	if v.logger != nil {
		v.logger.Printf("[INFO] [Scope] "+format, args...)
	}
}

func (v *Validator) logError(format string, args ...interface{}) {
	if v.logger != nil {
		v.logger.Printf("[ERROR] [Scope] "+format, args...)
	}
}
