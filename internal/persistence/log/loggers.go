package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"

	"cubes2048.io/internal/sim/world"
)

// DefaultSegmentTicks starts a new events file every 30 minutes at 20 Hz.
const DefaultSegmentTicks = 36000

// TickLogger writes one JSONL entry per tick into zstd segments named
// events-<first tick>.jsonl.zst. A tick at a multiple of the segment length opens a new file.
type TickLogger struct {
	dir          string
	segmentTicks uint64

	mu   sync.Mutex
	open bool
	f    *os.File
	enc  *zstd.Encoder
	w    *bufio.Writer
}

func NewTickLogger(worldDir string) *TickLogger {
	return &TickLogger{dir: filepath.Join(worldDir, "events"), segmentTicks: DefaultSegmentTicks}
}

func (l *TickLogger) WriteTick(e world.TickLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.open || e.Tick%l.segmentTicks == 0 {
		if err := l.rotateLocked(e.Tick); err != nil {
			return err
		}
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if _, err := l.w.Write(b); err != nil {
		return err
	}
	return l.w.Flush()
}

func (l *TickLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *TickLogger) rotateLocked(tick uint64) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(SegmentPath(l.dir, tick), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f, l.enc, l.open = f, enc, true
	l.w = bufio.NewWriterSize(enc, 64*1024)
	return nil
}

func (l *TickLogger) closeLocked() error {
	if !l.open {
		return nil
	}
	l.open = false
	flushErr := l.w.Flush()
	encErr := l.enc.Close()
	fileErr := l.f.Close()
	l.f, l.enc, l.w = nil, nil, nil
	return errors.Join(flushErr, encErr, fileErr)
}

// SegmentPath is the events file that starts at tick. The zero padding keeps
// lexical and tick order the same.
func SegmentPath(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("events-%012d.jsonl.zst", tick))
}

// Files lists the event log files under dir in chronological order.
func Files(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "events-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Scan decodes every tick entry of one event log file in order.
func Scan(path string, fn func(world.TickLogEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e world.TickLogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}
