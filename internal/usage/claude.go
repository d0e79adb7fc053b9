package usage

import (
	"encoding/json"
	"time"
)

// claudeUsageResponse mirrors the subset of the vendor usage endpoint's
// JSON response this daemon cares about. Unknown fields are ignored,
// matching the wire-compatibility discipline spec §6 requires for the
// daemon's own protocol.
type claudeUsageResponse struct {
	Windows []struct {
		Label          string  `json:"label"`
		UtilizationPct float64 `json:"utilization_pct"`
		ResetsAt       int64   `json:"resets_at"`
	} `json:"windows"`
}

// ParseClaudeUsageBody decodes a Claude usage API response body into
// Periods.
func ParseClaudeUsageBody(body []byte) ([]Period, error) {
	var resp claudeUsageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	periods := make([]Period, 0, len(resp.Windows))
	for _, w := range resp.Windows {
		periods = append(periods, Period{
			Label:          w.Label,
			UtilizationPct: w.UtilizationPct,
			ResetsAt:       time.Unix(w.ResetsAt, 0),
		})
	}
	return periods, nil
}
