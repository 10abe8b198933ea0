package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solwatch/pumpbot/internal/domain"
)

// FrameArchiver batches raw feed frames into NDJSON objects and ships them to
// blob storage. It is fed through the data feed's raw-frame hook, entirely off
// the trading path: a slow or failing upload never blocks tick delivery.
type FrameArchiver struct {
	writer domain.BlobWriter
	logger *slog.Logger

	prefix        string
	flushInterval time.Duration
	maxBatchBytes int

	mu  sync.Mutex
	buf bytes.Buffer
	n   int
}

// FrameArchiverConfig tunes batching. Zero values fall back to the "frames"
// key prefix, one-minute flushes, and 4 MiB batches.
type FrameArchiverConfig struct {
	Prefix        string
	FlushInterval time.Duration
	MaxBatchBytes int
}

// archivedFrame is one NDJSON line in an archive object.
type archivedFrame struct {
	Received time.Time       `json:"received"`
	Frame    json.RawMessage `json:"frame"`
}

// NewFrameArchiver creates a FrameArchiver writing through writer.
func NewFrameArchiver(writer domain.BlobWriter, cfg FrameArchiverConfig, logger *slog.Logger) *FrameArchiver {
	if cfg.Prefix == "" {
		cfg.Prefix = "frames"
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Minute
	}
	if cfg.MaxBatchBytes <= 0 {
		cfg.MaxBatchBytes = 4 << 20
	}
	return &FrameArchiver{
		writer:        writer,
		logger:        logger.With(slog.String("component", "frame_archiver")),
		prefix:        strings.TrimSuffix(cfg.Prefix, "/"),
		flushInterval: cfg.FlushInterval,
		maxBatchBytes: cfg.MaxBatchBytes,
	}
}

// Append buffers one raw frame. Frames that are not valid JSON are stored as
// JSON strings so a corrupt frame is still preserved as evidence.
func (a *FrameArchiver) Append(raw []byte) {
	line := archivedFrame{Received: time.Now().UTC()}
	if json.Valid(raw) {
		line.Frame = json.RawMessage(raw)
	} else {
		quoted, err := json.Marshal(string(raw))
		if err != nil {
			return
		}
		line.Frame = quoted
	}

	encoded, err := json.Marshal(line)
	if err != nil {
		return
	}

	a.mu.Lock()
	a.buf.Write(encoded)
	a.buf.WriteByte('\n')
	a.n++
	full := a.buf.Len() >= a.maxBatchBytes
	var batch []byte
	var count int
	if full {
		batch, count = a.takeLocked()
	}
	a.mu.Unlock()

	if full {
		go a.upload(context.Background(), batch, count)
	}
}

// Run flushes the buffer on the configured interval until ctx is cancelled,
// then performs one final flush.
func (a *FrameArchiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			a.Flush(flushCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			a.Flush(ctx)
		}
	}
}

// Flush uploads the current batch, if any.
func (a *FrameArchiver) Flush(ctx context.Context) {
	a.mu.Lock()
	batch, count := a.takeLocked()
	a.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	a.upload(ctx, batch, count)
}

// takeLocked swaps out the buffer contents. Caller must hold a.mu.
func (a *FrameArchiver) takeLocked() ([]byte, int) {
	if a.buf.Len() == 0 {
		return nil, 0
	}
	batch := make([]byte, a.buf.Len())
	copy(batch, a.buf.Bytes())
	count := a.n
	a.buf.Reset()
	a.n = 0
	return batch, count
}

func (a *FrameArchiver) upload(ctx context.Context, batch []byte, count int) {
	path := archivePath(a.prefix, time.Now().UTC())

	var err error
	if int64(len(batch)) >= minPartSize {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(batch), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(batch), "application/x-ndjson")
	}
	if err != nil {
		a.logger.Warn("frame archive upload failed",
			slog.String("path", path),
			slog.Int("frames", count),
			slog.String("error", err.Error()),
		)
		return
	}

	a.logger.Debug("frame archive uploaded",
		slog.String("path", path),
		slog.Int("frames", count),
		slog.Int("bytes", len(batch)),
	)
}

// archivePath builds the object key, partitioned by day:
//
//	frames/2025/06/01/120000-6a1f....ndjson
func archivePath(prefix string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%s-%s.ndjson",
		prefix,
		now.Format("2006/01/02"),
		now.Format("150405"),
		uuid.New().String(),
	)
}
