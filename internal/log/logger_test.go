// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Configure is first-call-wins, so the whole package shares one buffer.
var logBuf bytes.Buffer

func TestMain(m *testing.M) {
	Configure(Config{Output: &logBuf, Service: "test-svc", Level: "debug"})
	os.Exit(m.Run())
}

func lastEntry(t *testing.T) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(logBuf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestConfigureFirstCallWins(t *testing.T) {
	Configure(Config{Service: "other"}) // must be ignored

	logger := L()
	logger.Info().Msg("hello")
	entry := lastEntry(t)
	assert.Equal(t, "test-svc", entry["service"])
	assert.Equal(t, "hello", entry["message"])
}

func TestWithComponent(t *testing.T) {
	logger := WithComponent("guard")
	logger.Info().Msg("decision")
	assert.Equal(t, "guard", lastEntry(t)["component"])
}

func TestExecutionIDRoundTrip(t *testing.T) {
	ctx := ContextWithExecutionID(context.Background(), "exec-1")
	assert.Equal(t, "exec-1", ExecutionIDFromContext(ctx))
	assert.Empty(t, ExecutionIDFromContext(context.Background()))

	logger := WithContext(ctx, L())
	logger.Info().Msg("x")
	assert.Equal(t, "exec-1", lastEntry(t)["execution_id"])
}
