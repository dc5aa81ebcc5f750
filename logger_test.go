package tenf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Redshadow31/tenf-v2-sub007/blobstore"
)

func bufferLogger(buf *bytes.Buffer) *Logger {
	return NewLogger(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		lines = append(lines, m)
	}
	return lines
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)
	ctx := context.Background()

	l.LogRead(ctx, "c/2024-06/a.json", 12, nil)
	l.LogWrite(ctx, "c/2024-06/a.json", 0, errors.New("disk full"))
	l.LogList(ctx, "c/", 3, nil)
	l.LogDelete(ctx, "c/2024-06/a.json", &NotFoundError{Op: opDelete, Key: "c/2024-06/a.json"})
	l.LogDelete(ctx, "c/2024-06/b.json", errors.New("denied"))
	l.LogExists(ctx, "c/2024-06/a.json", true, nil)
	l.LogExists(ctx, "c/2024-06/a.json", false, errors.New("timeout"))

	lines := logLines(t, &buf)
	require.Len(t, lines, 7)

	assert.Equal(t, "DEBUG", lines[0]["level"])
	assert.Equal(t, "read completed", lines[0]["msg"])
	assert.Equal(t, 12.0, lines[0]["bytes"])

	assert.Equal(t, "ERROR", lines[1]["level"])
	assert.Equal(t, "disk full", lines[1]["error"])

	assert.Equal(t, 3.0, lines[2]["count"])
	assert.Equal(t, "c/", lines[2]["prefix"])

	assert.Equal(t, "DEBUG", lines[3]["level"])
	assert.Equal(t, "ERROR", lines[4]["level"])

	assert.Equal(t, "exists completed", lines[5]["msg"])
	assert.Equal(t, true, lines[5]["found"])
	assert.Equal(t, "ERROR", lines[6]["level"])
	assert.Equal(t, "timeout", lines[6]["error"])
}

func TestStore_LogsWithBackend(t *testing.T) {
	var buf bytes.Buffer
	s := New(blobstore.NewMemoryStore(),
		WithLogger(bufferLogger(&buf)),
		WithBackendName("memory"),
	)

	require.NoError(t, s.Write(context.Background(), "c/2024-06/a.json", 1))

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "memory", lines[0]["backend"])
	assert.Equal(t, "c/2024-06/a.json", lines[0]["key"])
	assert.Equal(t, 1.0, lines[0]["bytes"])
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}
