package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// SnapshotWriter flushes a full JSON snapshot of some state to one file,
// coalescing rapid update requests into a single write: a request arms a short
// timer if none is armed, and further requests before it fires are absorbed.
type SnapshotWriter struct {
	path     string
	debounce time.Duration
	fetch    func() any

	mu    sync.Mutex
	timer *time.Timer
}

func NewSnapshotWriter(path string, debounce time.Duration, fetch func() any) *SnapshotWriter {
	return &SnapshotWriter{path: path, debounce: debounce, fetch: fetch}
}

// Request schedules a flush. Safe to call from any goroutine.
func (w *SnapshotWriter) Request() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		return
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.timer = nil
		w.mu.Unlock()
		w.Flush()
	})
}

// Flush writes the snapshot immediately via a temp-file rename so readers
// never observe a partial file. Failures are logged and swallowed.
func (w *SnapshotWriter) Flush() {
	data, err := json.MarshalIndent(w.fetch(), "", "  ")
	if err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("snapshot marshal failed")
		return
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("snapshot mkdir failed")
		return
	}
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("snapshot write failed")
		return
	}
	if err := os.Rename(tmp, w.path); err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("snapshot rename failed")
	}
}

// Pending reports whether a flush is armed but not yet fired.
func (w *SnapshotWriter) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timer != nil
}

// LoadSnapshot reads a snapshot file into out. A missing file is not an error.
func LoadSnapshot(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, out)
}
