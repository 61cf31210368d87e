package httpapi_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentkit/orchestrator/pkg/agent"
	"github.com/agentkit/orchestrator/pkg/httpapi"
	"github.com/agentkit/orchestrator/pkg/orchestrator"
	"github.com/agentkit/orchestrator/pkg/runner"
)

func newTestServer(t *testing.T, backend runner.Runner) (*httpapi.Server, *orchestrator.Runtime) {
	t.Helper()
	rt := orchestrator.New(orchestrator.Config{DSN: ":memory:", Runner: backend})
	return httpapi.NewServer(rt, nil), rt
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAgentLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/agents/", map[string]any{
		"name":       "demo",
		"model_id":   "echo",
		"tool_names": []string{"custom_calculator"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	agentID := created["agent_id"]
	require.NotEmpty(t, agentID)

	rec = doJSON(t, srv, http.MethodGet, "/agents/"+agentID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "demo", got["name"])

	rec = doJSON(t, srv, http.MethodPost, "/agents/"+agentID+"/tools/detach", map[string]any{
		"tool_names": []string{"custom_calculator"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, "/agents/"+agentID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/agents/"+agentID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListToolsOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doJSON(t, srv, http.MethodGet, "/tools", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tools []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tools))
	require.NotEmpty(t, tools)
}

func TestConversationLifecycleOverHTTP(t *testing.T) {
	srv, rt := newTestServer(t, nil)

	agentID, err := rt.Agents.Create(context.Background(), &agent.Definition{Name: "a", ModelID: "echo"})
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodPost, "/conversations/start", map[string]any{
		"user_id":         "u1",
		"agent_id":        agentID,
		"initial_message": "hi",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var started map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	sessionID := started["session_id"]
	require.NotEmpty(t, sessionID)

	rec = doJSON(t, srv, http.MethodGet, "/conversations/"+sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/conversations/agent/"+agentID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)

	rec = doJSON(t, srv, http.MethodDelete, "/conversations/"+sessionID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStreamingSendNonStreamingOverHTTP(t *testing.T) {
	srv, rt := newTestServer(t, nil)
	agentID, err := rt.Agents.Create(context.Background(), &agent.Definition{Name: "a", ModelID: "echo"})
	require.NoError(t, err)
	sid, err := rt.StartConversation(context.Background(), "u1", agentID, "")
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodPost, "/streaming/send", map[string]any{
		"session_id": sid,
		"agent_id":   agentID,
		"message":    "hello",
		"stream":     false,
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

// TestStreamingStartEmitsSSEFrames drives a real network round trip
// (httptest.NewServer, not NewRecorder) since http.Flusher requires a
// live ResponseWriter -- httptest.ResponseRecorder never satisfies it.
func TestStreamingStartEmitsSSEFrames(t *testing.T) {
	mock := &runner.MockRunner{Script: []runner.ScriptedTurn{
		{FinalText: "pong"},
	}}
	srv, rt := newTestServer(t, mock)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	agentID, err := rt.Agents.Create(context.Background(), &agent.Definition{Name: "a", ModelID: "echo"})
	require.NoError(t, err)

	var body bytes.Buffer
	require.NoError(t, json.NewEncoder(&body).Encode(map[string]any{
		"user_id":         "u1",
		"agent_id":        agentID,
		"initial_message": "ping",
	}))

	resp, err := http.Post(ts.URL+"/streaming/start", "application/json", &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	var sawComplete, sawDone bool
	deadline := time.Now().Add(5 * time.Second)
	for scanner.Scan() && time.Now().Before(deadline) {
		line := scanner.Text()
		if strings.Contains(line, `"type":"complete"`) {
			sawComplete = true
		}
		if line == "data: [DONE]" {
			sawDone = true
			break
		}
	}
	require.True(t, sawComplete)
	require.True(t, sawDone)
}
