// Package persist owns the file-backed soft persistence: append-only NDJSON
// logs written fire-and-forget, a debounced profile snapshot, and the startup
// replay that rebuilds the event index. Disk failures are logged and swallowed;
// they never affect in-memory correctness or block a mutation.
package persist

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

const appendQueueSize = 256

// AppendLog writes newline-delimited JSON records to a single file from a
// dedicated goroutine. Append never blocks the caller; when the queue is full
// the record is dropped and counted.
type AppendLog struct {
	path    string
	queue   chan []byte
	done    chan struct{}
	dropped int
}

// OpenAppendLog creates the parent directory if needed and starts the writer
// goroutine.
func OpenAppendLog(path string) (*AppendLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	l := &AppendLog{
		path:  path,
		queue: make(chan []byte, appendQueueSize),
		done:  make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Append marshals v and queues one NDJSON line. Marshal failures and a full
// queue are durability-only concerns: logged, never surfaced.
func (l *AppendLog) Append(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("path", l.path).Msg("append log marshal failed")
		return
	}
	select {
	case l.queue <- append(data, '\n'):
	default:
		l.dropped++
		log.Warn().Str("path", l.path).Int("dropped", l.dropped).Msg("append log queue full, record dropped")
	}
}

// Close drains pending records and stops the writer.
func (l *AppendLog) Close() {
	close(l.queue)
	<-l.done
}

func (l *AppendLog) run() {
	defer close(l.done)
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Error().Err(err).Str("path", l.path).Msg("append log open failed, records will be discarded")
		for range l.queue {
		}
		return
	}
	defer f.Close()
	for line := range l.queue {
		if _, err := f.Write(line); err != nil {
			log.Warn().Err(err).Str("path", l.path).Msg("append log write failed")
		}
	}
}
