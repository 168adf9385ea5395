package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ValidateBlob bounds an opaque client payload without interpreting it: it
// must be empty, null, or a JSON object no larger than MaxBlobBytes. The
// rules-engine content inside stays untouched.
func ValidateBlob(b Blob) error {
	if len(b) == 0 {
		return nil
	}
	if len(b) > MaxBlobBytes {
		return fmt.Errorf("payload exceeds %d bytes", MaxBlobBytes)
	}
	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("payload must be a JSON object")
	}
	if !json.Valid(trimmed) {
		return fmt.Errorf("payload is not valid JSON")
	}
	return nil
}

// SummaryProbe is the only peek the coordinator takes into a turn summary:
// the claimed turn it answers, the completed-journal count that drives the
// day clock, and the player-visible actions to merge into the shared log.
type SummaryProbe struct {
	TurnNumber        int           `json:"turnNumber"`
	Day               Day           `json:"day"`
	CompletedJournals int           `json:"completedJournals"`
	Actions           []ActionEntry `json:"actions"`
}

// ProbeSummary extracts the SummaryProbe fields from an opaque turn summary.
func ProbeSummary(b Blob) (SummaryProbe, error) {
	var probe SummaryProbe
	if len(b) == 0 {
		return probe, nil
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return SummaryProbe{}, fmt.Errorf("turn summary shape: %w", err)
	}
	return probe, nil
}
