package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/domain"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, "rm -rf /", domain.AnalysisResult{
		Risk:      domain.RiskCritical,
		Category:  domain.ToolSystem,
		Reasoning: "Destructive command pattern detected.",
	})

	out := buf.String()
	assert.Contains(t, out, "BLOCKED")
	assert.Contains(t, out, "CRITICAL")
	assert.Contains(t, out, "system")
	assert.Contains(t, out, "Destructive command pattern detected.")
}

func TestReplCmd_ClassifiesUntilExit(t *testing.T) {
	offline = true
	t.Cleanup(func() { offline = false })

	cmd := replCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	cmd.SetIn(strings.NewReader("hello\n\nrm -rf /\nexit\nnmap never-reached\n"))

	require.NoError(t, cmd.Execute())

	s := out.String()
	assert.Contains(t, s, "conversation")
	assert.Contains(t, s, "BLOCKED")
	assert.Contains(t, s, "Goodbye!")
	assert.NotContains(t, s, "never-reached")
}

func TestPrintRules(t *testing.T) {
	var buf bytes.Buffer
	printRules(&buf, rules.Default())

	out := buf.String()
	assert.Contains(t, out, "recursive-force-delete")
	assert.Contains(t, out, "sqlmap")
	assert.Contains(t, out, "baseline")
	assert.Less(t, strings.Index(out, "│ sqlmap "), strings.Index(out, "│ map "))
}
