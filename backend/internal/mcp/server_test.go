package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/analyzer"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, lines ...string) []Response {
	t.Helper()
	srv := NewServer(analyzer.NewAnalyzer(rules.Default(), nil, nil), "test", nil)

	var out bytes.Buffer
	err := srv.Serve(context.Background(), strings.NewReader(strings.Join(lines, "\n")), &out)
	require.NoError(t, err)

	var resps []Response
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var r Response
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		resps = append(resps, r)
	}
	return resps
}

func toolText(t *testing.T, r Response) (string, bool) {
	t.Helper()
	require.Nil(t, r.Error)
	m := r.Result.(map[string]interface{})
	content := m["content"].([]interface{})[0].(map[string]interface{})
	return content["text"].(string), m["isError"].(bool)
}

func TestServe_InitializeAndList(t *testing.T) {
	resps := run(t,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	)
	require.Len(t, resps, 2, "notifications get no response")

	info := resps[0].Result.(map[string]interface{})["serverInfo"].(map[string]interface{})
	assert.Equal(t, "kaos-brain", info["name"])

	tools := resps[1].Result.(map[string]interface{})["tools"].([]interface{})
	var names []string
	for _, tl := range tools {
		names = append(names, tl.(map[string]interface{})["name"].(string))
	}
	assert.Equal(t, []string{"analyze_command", "rate_risk"}, names)
}

func TestServe_AnalyzeCommand(t *testing.T) {
	resps := run(t,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"analyze_command","arguments":{"command":"rm -rf /"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"analyze_command","arguments":{"command":"run sqlmap on the login form"}}}`,
	)
	require.Len(t, resps, 2)

	text, isErr := toolText(t, resps[0])
	assert.True(t, isErr)
	assert.JSONEq(t, `{"risk":"CRITICAL","tool_type":"system","reasoning":"Destructive command pattern detected.","allowed":false}`, text)

	text, isErr = toolText(t, resps[1])
	assert.False(t, isErr)
	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &res))
	assert.Equal(t, "sqlmap", res["tool_type"])
	assert.Equal(t, true, res["allowed"])
}

func TestServe_RateRisk(t *testing.T) {
	resps := run(t,
		`{"jsonrpc":"2.0","id":"a","method":"tools/call","params":{"name":"rate_risk","arguments":{"command":"dd if=/dev/zero of=/dev/sda"}}}`,
		`{"jsonrpc":"2.0","id":"b","method":"tools/call","params":{"name":"rate_risk","arguments":{"command":"hello"}}}`,
	)
	require.Len(t, resps, 2)
	assert.Equal(t, "a", resps[0].ID)

	text, isErr := toolText(t, resps[0])
	assert.Equal(t, "CRITICAL", text)
	assert.True(t, isErr)

	text, isErr = toolText(t, resps[1])
	assert.Equal(t, "SAFE", text)
	assert.False(t, isErr)
}

func TestServe_Errors(t *testing.T) {
	resps := run(t,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"analyze_command","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"execute","arguments":{"command":"ls"}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"bogus"}`,
		`{"jsonrpc":"2.0","id":4,"method":"resources/read","params":{"uri":"kaos://nope"}}`,
	)
	require.Len(t, resps, 4)
	assert.Equal(t, -32602, resps[0].Error.Code)
	assert.Equal(t, -32601, resps[1].Error.Code)
	assert.Equal(t, -32601, resps[2].Error.Code)
	assert.Equal(t, -32602, resps[3].Error.Code)
}

func TestServe_ReadRules(t *testing.T) {
	resps := run(t, `{"jsonrpc":"2.0","id":1,"method":"resources/read","params":{"uri":"kaos://rules"}}`)
	require.Len(t, resps, 1)
	require.Nil(t, resps[0].Error)

	contents := resps[0].Result.(map[string]interface{})["contents"].([]interface{})
	text := contents[0].(map[string]interface{})["text"].(string)

	var doc struct {
		Profile string `json:"risk_profile"`
		Intents []struct {
			Keyword string `json:"keyword"`
		} `json:"intents"`
		Risk map[string]string `json:"risk"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &doc))
	assert.Equal(t, "baseline", doc.Profile)
	require.NotEmpty(t, doc.Intents)
	assert.Equal(t, "sqlmap", doc.Intents[0].Keyword)
	assert.Equal(t, "SAFE", doc.Risk["nmap"])
}

func TestServe_ParseErrorStops(t *testing.T) {
	srv := NewServer(analyzer.NewAnalyzer(rules.Default(), nil, nil), "test", nil)
	var out bytes.Buffer
	err := srv.Serve(context.Background(), strings.NewReader(`{not json`), &out)
	assert.Error(t, err)
	assert.Contains(t, out.String(), "-32700")
}
