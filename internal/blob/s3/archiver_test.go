package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemWriter() *memWriter {
	return &memWriter{objects: make(map[string][]byte)}
}

func (m *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = body
	return nil
}

func (m *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return m.Put(ctx, path, data, "")
}

func (m *memWriter) snapshot() map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.objects))
	for k, v := range m.objects {
		out[k] = v
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFrameArchiverFlushWritesNDJSON(t *testing.T) {
	w := newMemWriter()
	a := NewFrameArchiver(w, FrameArchiverConfig{}, discardLogger())

	a.Append([]byte(`{"mint":"abc","price":1.5}`))
	a.Append([]byte("not json at all"))
	a.Flush(context.Background())

	objects := w.snapshot()
	require.Len(t, objects, 1)

	for path, body := range objects {
		assert.Regexp(t, `^frames/\d{4}/\d{2}/\d{2}/\d{6}-[0-9a-f-]+\.ndjson$`, path)

		var lines []archivedFrame
		sc := bufio.NewScanner(bytes.NewReader(body))
		for sc.Scan() {
			var line archivedFrame
			require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
			lines = append(lines, line)
		}
		require.Len(t, lines, 2)

		assert.JSONEq(t, `{"mint":"abc","price":1.5}`, string(lines[0].Frame))

		var quoted string
		require.NoError(t, json.Unmarshal(lines[1].Frame, &quoted))
		assert.Equal(t, "not json at all", quoted)

		assert.WithinDuration(t, time.Now().UTC(), lines[0].Received, time.Minute)
	}
}

func TestFrameArchiverFlushEmptyIsNoOp(t *testing.T) {
	w := newMemWriter()
	a := NewFrameArchiver(w, FrameArchiverConfig{}, discardLogger())

	a.Flush(context.Background())
	assert.Empty(t, w.snapshot())
}

func TestFrameArchiverSizeTriggeredFlush(t *testing.T) {
	w := newMemWriter()
	a := NewFrameArchiver(w, FrameArchiverConfig{MaxBatchBytes: 64}, discardLogger())

	for i := 0; i < 8; i++ {
		a.Append([]byte(`{"mint":"abcdefghijklmnopqrstuvwxyz","price":123.456}`))
	}

	require.Eventually(t, func() bool {
		return len(w.snapshot()) > 0
	}, time.Second, 10*time.Millisecond, "size threshold should trigger an upload")
}
