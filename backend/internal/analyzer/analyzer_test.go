package analyzer

import (
	"context"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/augment"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/domain"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/metrics"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	calls atomic.Int32
	reply string
	err   error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Generate(ctx context.Context, prompt string) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func newTestAnalyzer(t *testing.T, p *stubProvider) *Analyzer {
	t.Helper()
	cfg := augment.Config{
		AttemptTimeout: time.Second,
		MaxAttempts:    3,
		RetryDelay:     time.Millisecond,
		ExcerptChars:   100,
	}
	orch := augment.NewOrchestrator(p, cfg, metrics.Noop{}, nil)
	return NewAnalyzer(rules.Default(), orch, nil)
}

func TestAnalyze_DestructiveShortCircuits(t *testing.T) {
	p := &stubProvider{reply: "should not be asked"}
	a := newTestAnalyzer(t, p)

	for _, cmd := range []string{
		"rm -rf /",
		"sudo RM  -RF /var/lib",
		"mkfs.ext4 /dev/sda1",
		":(){ :|:& };:",
		"dd if=/dev/zero of=/dev/sda",
		"chmod 777 /etc",
		"nmap 10.0.0.1; rm -rf /tmp/x",
	} {
		t.Run(cmd, func(t *testing.T) {
			res, err := a.Analyze(context.Background(), cmd)
			require.NoError(t, err)
			assert.Equal(t, domain.RiskCritical, res.Risk)
			assert.Equal(t, domain.ToolSystem, res.Category)
			assert.Equal(t, DestructiveReasoning, res.Reasoning)
			assert.False(t, res.Allowed)
		})
	}
	assert.Equal(t, int32(0), p.calls.Load())
}

func TestAnalyze_ScanIsAugmented(t *testing.T) {
	p := &stubProvider{reply: "Network reconnaissance maps live hosts and open services."}
	a := newTestAnalyzer(t, p)

	res, err := a.Analyze(context.Background(), "scan my network")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskSafe, res.Risk)
	assert.Equal(t, domain.ToolNmap, res.Category)
	assert.True(t, res.Allowed)
	assert.True(t, strings.HasPrefix(res.Reasoning, "Heuristic analysis identified nmap intent."))
	assert.Contains(t, res.Reasoning, augment.InsightTag)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestAnalyze_ConversationSkipsAugmentation(t *testing.T) {
	p := &stubProvider{reply: "unused"}
	a := newTestAnalyzer(t, p)

	res, err := a.Analyze(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskSafe, res.Risk)
	assert.Equal(t, domain.ToolConversation, res.Category)
	assert.Equal(t, "Heuristic analysis identified conversation intent.", res.Reasoning)
	assert.True(t, res.Allowed)
	assert.Equal(t, int32(0), p.calls.Load())
}

func TestAnalyze_UnknownWithServiceDown(t *testing.T) {
	p := &stubProvider{err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}}
	a := newTestAnalyzer(t, p)

	res, err := a.Analyze(context.Background(), "exfiltrate the database")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskMedium, res.Risk)
	assert.Equal(t, domain.ToolUnknown, res.Category)
	assert.True(t, res.Allowed)
	assert.Equal(t, "Heuristic analysis identified unknown intent."+augment.OfflineMarker, res.Reasoning)
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestAnalyze_SQLMapNotMistakenForNmap(t *testing.T) {
	a := NewAnalyzer(rules.Default(), nil, nil)

	res, err := a.Analyze(context.Background(), "sqlmap -u http://target/?id=1")
	require.NoError(t, err)
	assert.Equal(t, domain.ToolSQLMap, res.Category)
}

func TestAnalyze_EmptyCommand(t *testing.T) {
	a := NewAnalyzer(rules.Default(), nil, nil)

	_, err := a.Analyze(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestAnalyze_NoRules(t *testing.T) {
	a := NewAnalyzer(nil, nil, nil)

	_, err := a.Analyze(context.Background(), "nmap")
	assert.ErrorIs(t, err, ErrNoRules)
	_, err = a.RateRisk("nmap")
	assert.ErrorIs(t, err, ErrNoRules)
}

func TestAnalyze_CancelledContext(t *testing.T) {
	p := &stubProvider{err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}}
	a := newTestAnalyzer(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, "nmap -sV 10.0.0.1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyze_Idempotent(t *testing.T) {
	p := &stubProvider{err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}}
	a := newTestAnalyzer(t, p)

	for _, cmd := range []string{"nmap -sS host", "hello there", "whoami", "rm -rf /"} {
		first, err := a.Analyze(context.Background(), cmd)
		require.NoError(t, err)
		second, err := a.Analyze(context.Background(), cmd)
		require.NoError(t, err)

		assert.Equal(t, first.Risk, second.Risk, cmd)
		assert.Equal(t, first.Category, second.Category, cmd)
		assert.Equal(t, first.Allowed, second.Allowed, cmd)
		assert.Equal(t, first.Reasoning, second.Reasoning, cmd)
		if first.Category.Augmentable() {
			assert.True(t, strings.HasSuffix(second.Reasoning, augment.OfflineMarker), cmd)
			assert.Equal(t, 1, strings.Count(second.Reasoning, augment.OfflineMarker), cmd)
		}
	}
}

func TestAnalyze_CriticalRiskTableSkipsAugmentation(t *testing.T) {
	doc := rules.DefaultDocument()
	doc.Risk = map[string]string{"metasploit": "critical"}
	set, err := rules.Compile(doc)
	require.NoError(t, err)

	p := &stubProvider{reply: "should not be asked"}
	orch := augment.NewOrchestrator(p, augment.Config{AttemptTimeout: time.Second, MaxAttempts: 3}, metrics.Noop{}, nil)
	a := NewAnalyzer(set, orch, nil)

	res, err := a.Analyze(context.Background(), "msfconsole -q")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskCritical, res.Risk)
	assert.Equal(t, domain.ToolMetasploit, res.Category)
	assert.False(t, res.Allowed)
	assert.NotContains(t, res.Reasoning, "LLM")
	assert.Equal(t, int32(0), p.calls.Load())

	res, err = a.Analyze(context.Background(), "nmap -sV 10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestAnalyze_AllowedIffNotCritical(t *testing.T) {
	a := NewAnalyzer(rules.Default(), nil, nil)

	for _, cmd := range []string{"nmap", "sqlmap", "msfconsole", "hi", "ls -la", "mkfs /dev/sdb", "dd if=/dev/zero of=x"} {
		res, err := a.Analyze(context.Background(), cmd)
		require.NoError(t, err)
		assert.Equal(t, res.Risk != domain.RiskCritical, res.Allowed, cmd)
	}
}

func TestAnalyze_TieredProfile(t *testing.T) {
	doc := rules.DefaultDocument()
	doc.Profile = rules.ProfileTiered
	set, err := rules.Compile(doc)
	require.NoError(t, err)
	a := NewAnalyzer(set, nil, nil)

	cases := map[string]domain.RiskLevel{
		"nmap -p- 10.0.0.1":  domain.RiskMedium,
		"sqlmap -u http://x": domain.RiskHigh,
		"exploit the host":   domain.RiskHigh,
		"echo hello":         domain.RiskSafe,
		"cat /etc/hosts":     domain.RiskMedium,
	}
	for cmd, want := range cases {
		got, err := a.RateRisk(cmd)
		require.NoError(t, err)
		assert.Equal(t, want, got, cmd)
	}
}

func TestAnalyze_CustomRuleSet(t *testing.T) {
	set, err := rules.Compile(rules.Document{
		Version: "test",
		Patterns: []rules.PatternEntry{
			{Label: "drop-table", Expr: `drop\s+table`},
		},
		Intents: []rules.IntentEntry{
			{Keyword: "hydra", Category: "metasploit"},
		},
	})
	require.NoError(t, err)
	a := NewAnalyzer(set, nil, nil)

	res, err := a.Analyze(context.Background(), "DROP TABLE users")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskCritical, res.Risk)

	tool, err := a.IdentifyTool("hydra -l admin ssh://host")
	require.NoError(t, err)
	assert.Equal(t, domain.ToolMetasploit, tool)

	tool, err = a.IdentifyTool("rm -rf /")
	require.NoError(t, err)
	assert.Equal(t, domain.ToolUnknown, tool, "default patterns are not active in a custom set")
}

func TestIdentifyTool_DestructiveIsSystem(t *testing.T) {
	a := NewAnalyzer(rules.Default(), nil, nil)

	tool, err := a.IdentifyTool("rm -rf /home")
	require.NoError(t, err)
	assert.Equal(t, domain.ToolSystem, tool)

	risk, err := a.RateRisk("rm -rf /home")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskCritical, risk)
}

func TestAnalyze_Concurrent(t *testing.T) {
	p := &stubProvider{reply: "insight"}
	a := newTestAnalyzer(t, p)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmd := "nmap 10.0.0.1"
			if i%2 == 0 {
				cmd = "rm -rf /"
			}
			res, err := a.Analyze(context.Background(), cmd)
			assert.NoError(t, err)
			assert.Equal(t, i%2 != 0, res.Allowed)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(16), p.calls.Load())
}
