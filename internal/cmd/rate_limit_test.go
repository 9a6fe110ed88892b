package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/store"
	"github.com/riftlens/riftlens/internal/output"
)

func TestBackoffTable(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(90 * time.Second)
	hit := now.Add(-10 * time.Second)

	rendered := backoffTable([]store.BackoffEntry{
		{Key: "upstream", State: core.RateLimitState{RequestCount: 7, BackoffUntil: &until, Last429At: &hit}},
		{Key: "static", State: core.RateLimitState{RequestCount: 1}},
	}, now)

	assert.Contains(t, rendered, "Upstream Backoff")
	assert.Contains(t, rendered, "upstream")
	assert.Contains(t, rendered, "1m30s")
	assert.Contains(t, rendered, hit.Format(time.RFC3339))
	assert.Contains(t, rendered, "static")
}

func TestBackoffTableEmpty(t *testing.T) {
	assert.Contains(t, backoffTable(nil, time.Now()), "no stored backoff state")
}

func TestWriteResetResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResetResult(output.FormatTable, &buf, 3, 0, true))
	assert.Equal(t, "Would clear 3 backoff entr(ies)\n", buf.String())

	buf.Reset()
	require.NoError(t, writeResetResult(output.FormatJSON, &buf, 3, 2, false))
	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, float64(2), got["deleted"])
	assert.Equal(t, false, got["dry_run"])
}

func TestSinkFor(t *testing.T) {
	_, err := sinkFor(output.FormatJSON, "a.json", "dir", "rate-limit.list")
	require.Error(t, err)

	dir := t.TempDir()
	sink, err := sinkFor(output.FormatJSON, "", dir, "rate-limit.list")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.close() })
	assert.Equal(t, filepath.Join(dir, "rate-limit.list.json"), sink.path)

	stdout, err := sinkFor(output.FormatTable, "-", "", "ignored")
	require.NoError(t, err)
	assert.Equal(t, "-", stdout.path)
}
