package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omriShneor/project_concierge/internal/testutil"
)

func postJSON(t *testing.T, ts *testutil.TestServer, path string, body any) (int, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := ts.Client().Post(ts.BaseURL()+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func getJSON(t *testing.T, ts *testutil.TestServer, path string) (int, map[string]any) {
	t.Helper()
	resp, err := ts.Client().Get(ts.BaseURL() + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func chat(t *testing.T, ts *testutil.TestServer, messages ...string) (int, map[string]any) {
	t.Helper()
	history := make([]map[string]string, 0, len(messages))
	for i, m := range messages {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history = append(history, map[string]string{"role": role, "content": m})
	}
	return postJSON(t, ts, "/api/chat", map[string]any{"messages": history})
}
