package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/togglr-sdk-go/internal/testsupport"
)

func runCLI(t *testing.T, srv *testsupport.Server, args ...string) (map[string]any, error) {
	t.Helper()
	t.Setenv("TOGGLR_API_KEY", "cli-key")
	t.Setenv("TOGGLR_BASE_URL", srv.URL)
	t.Setenv("TOGGLR_LOG_LEVEL", "error")
	t.Setenv("TOGGLR_BACKOFF_BASE_DELAY", "1ms")
	t.Setenv("TOGGLR_BACKOFF_MAX_DELAY", "2ms")

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	err := app.RunContext(context.Background(), append([]string{"togglr"}, args...))
	if err != nil {
		return nil, err
	}

	var result map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	return result, nil
}

func TestCLI_Eval(t *testing.T) {
	srv := testsupport.NewServer(t, "cli-key")
	srv.Script(testsupport.OpEvaluate, "checkout", testsupport.Evaluated("checkout", "v2", true))

	result, err := runCLI(t, srv, "eval", "--attr", "user.id=42", "--attr", "country_code=BR", "checkout")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"feature_key": "checkout", "found": true, "enabled": true, "value": "v2"}, result)
	reqs := srv.Requests(testsupport.OpEvaluate)
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"country_code":"BR","user.id":42}`, string(reqs[0].Body))
}

func TestCLI_Enabled(t *testing.T) {
	t.Run("Should fail on unknown features without a default", func(t *testing.T) {
		srv := testsupport.NewServer(t, "cli-key")
		_, err := runCLI(t, srv, "enabled", "ghost")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "feature not found")
	})

	t.Run("Should print the default when evaluation fails", func(t *testing.T) {
		srv := testsupport.NewServer(t, "cli-key")
		result, err := runCLI(t, srv, "enabled", "--default", "ghost")
		require.NoError(t, err)
		assert.Equal(t, true, result["enabled"])
	})
}

func TestCLI_Track(t *testing.T) {
	srv := testsupport.NewServer(t, "cli-key")

	result, err := runCLI(t, srv, "track",
		"--variant", "v2", "--event", "failure", "--reward", "0.5", "--dedup-key", "o-1", "checkout")
	require.NoError(t, err)
	assert.Equal(t, true, result["tracked"])

	reqs := srv.Requests(testsupport.OpTrack)
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"variant_key":"v2","event_type":"failure","reward":0.5,"dedup_key":"o-1","context":{}}`, string(reqs[0].Body))
}

func TestCLI_RequiresAPIKey(t *testing.T) {
	srv := testsupport.NewServer(t, "cli-key")
	t.Setenv("TOGGLR_API_KEY", "")
	t.Setenv("TOGGLR_BASE_URL", srv.URL)

	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.RunContext(context.Background(), []string{"togglr", "eval", "f"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}
