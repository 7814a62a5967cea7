// Package log writes the tick stream as zstd-compressed JSON lines, one file
// per rotation period.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"stockyard.ai/internal/sim/world"
)

const (
	RotateHourly = "2006-01-02-15"
	RotateDaily  = "2006-01-02"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	layout  string
	now     func() time.Time

	mu      sync.Mutex
	curSlot string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
	lines   uint64
}

type WriterOption func(*JSONLZstdWriter)

// WithRotation sets the time layout that names each file; a new file starts
// whenever the formatted time changes.
func WithRotation(layout string) WriterOption {
	return func(w *JSONLZstdWriter) { w.layout = layout }
}

func WithClock(now func() time.Time) WriterOption {
	return func(w *JSONLZstdWriter) { w.now = now }
}

func NewJSONLZstdWriter(baseDir, prefix string, opts ...WriterOption) *JSONLZstdWriter {
	w := &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		layout:  RotateHourly,
		now:     time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	slot := w.now().UTC().Format(w.layout)
	if slot != w.curSlot || w.w == nil {
		if err := w.rotateLocked(slot); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.lines++
	return w.w.Flush()
}

func (w *JSONLZstdWriter) Lines() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

// Files lists the files written so far, oldest first.
func (w *JSONLZstdWriter) Files() ([]string, error) {
	out, err := filepath.Glob(filepath.Join(w.baseDir, w.prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (w *JSONLZstdWriter) rotateLocked(slot string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForSlot(slot)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curSlot = slot
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForSlot(slot string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, slot))
}

// TickLogger writes world tick entries under <dataDir>/ticks. By default only
// ticks that assigned work are written; every entry still carries the full
// ledger, so skipped ticks lose no totals that a later entry won't show.
type TickLogger struct {
	w         *JSONLZstdWriter
	everyTick bool
}

func NewTickLogger(dataDir string, everyTick bool, opts ...WriterOption) *TickLogger {
	return &TickLogger{
		w:         NewJSONLZstdWriter(filepath.Join(dataDir, "ticks"), "ticks", opts...),
		everyTick: everyTick,
	}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error {
	if !l.everyTick && len(v.Assignments) == 0 {
		return nil
	}
	return l.w.Write(v)
}

func (l *TickLogger) Writer() *JSONLZstdWriter { return l.w }
func (l *TickLogger) Close() error             { return l.w.Close() }
