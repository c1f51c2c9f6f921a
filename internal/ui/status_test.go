package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusInfo_Zero(t *testing.T) {
	info := StatusInfo{}

	assert.Empty(t, info.ProjectName)
	assert.Empty(t, info.Stats)
	assert.True(t, info.LastIndexed.IsZero())
}

func TestStatusInfo_JSONSerialization(t *testing.T) {
	info := StatusInfo{
		ProjectName:   "test-project",
		Root:          "/src/test-project",
		LastIndexed:   time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		DBSize:        13 * 1024 * 1024,
		Stats:         []string{"records: 500", "symbols: 120"},
		DaemonStatus:  "running",
		WatcherStatus: "running",
	}

	data, err := json.Marshal(info)
	require.NoError(t, err)

	var parsed map[string]any
	err = json.Unmarshal(data, &parsed)
	require.NoError(t, err)

	assert.Equal(t, "test-project", parsed["project_name"])
	assert.Equal(t, "/src/test-project", parsed["root"])
	assert.Equal(t, "running", parsed["daemon_status"])
	assert.Equal(t, "running", parsed["watcher_status"])
}

func TestStatusRenderer_Render_Basic(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, false)

	info := StatusInfo{
		ProjectName:   "my-project",
		Root:          "/src/my-project",
		LastIndexed:   time.Now(),
		DBSize:        6*1024*1024 + 512*1024,
		Stats:         []string{"records: 250", "symbols: 50"},
		DaemonStatus:  "running",
		WatcherStatus: "stopped",
	}

	err := r.Render(info)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "my-project")
	assert.Contains(t, output, "records: 250")
	assert.Contains(t, output, "symbols: 50")
	assert.Contains(t, output, "running")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, false)

	info := StatusInfo{
		ProjectName: "json-project",
		Stats:       []string{"records: 100"},
	}

	err := r.RenderJSON(info)
	require.NoError(t, err)

	var parsed StatusInfo
	err = json.Unmarshal(buf.Bytes(), &parsed)
	require.NoError(t, err)
	assert.Equal(t, "json-project", parsed.ProjectName)
	assert.Equal(t, []string{"records: 100"}, parsed.Stats)
}

func TestStatusRenderer_NoColor(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	info := StatusInfo{
		ProjectName:  "nocolor-project",
		DaemonStatus: "running",
	}

	err := r.Render(info)
	require.NoError(t, err)

	output := buf.String()
	assert.NotContains(t, output, "\x1b[")
	assert.NotContains(t, output, "\033[")
}

func TestStatusRenderer_DaemonStopped(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, false)

	info := StatusInfo{
		ProjectName:  "offline-project",
		DaemonStatus: "stopped",
	}

	err := r.Render(info)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "stopped")
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{1024 * 1024 * 1024, "1.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatBytes(tt.bytes)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestStatusRenderer_DatabaseSize(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	info := StatusInfo{
		ProjectName: "storage-project",
		DBSize:      12*1024*1024 + 512*1024,
	}

	err := r.Render(info)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "MB")
}
