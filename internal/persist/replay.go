package persist

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/sundialgames/weekender-backend/internal"
)

// ReplayEvents streams every parseable room event from the append-only log at
// path, in file order, into fn. Corrupt lines (a crash mid-append leaves at
// most one) are skipped. A missing file means a fresh server and is not an
// error.
func ReplayEvents(path string, fn func(internal.RoomEvent)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	replayed, skipped := 0, 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev internal.RoomEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			skipped++
			continue
		}
		fn(ev)
		replayed++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("events", replayed).Int("skipped", skipped).Msg("event log replayed")
	return nil
}
