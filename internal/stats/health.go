package stats

import "fmt"

// Thresholds are the ceilings the health evaluation checks, in fixed
// priority order: storage first, then average daily users, then peak daily
// users. The first breached threshold determines the reported reason.
type Thresholds struct {
	StorageCeilingMB  float64
	AvgDailyUsersMax  float64
	PeakDailyUsersMax int64
}

// Health statuses.
const (
	HealthGood    = "good"
	HealthWarning = "warning"
)

// Health is the derived operational status of the system.
type Health struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// EvaluateHealth derives a status and human-readable reason from recomputed
// totals and the daily user counters.
func EvaluateHealth(t Thresholds, totals Totals, daily map[string]int64) Health {
	if t.StorageCeilingMB > 0 && totals.TotalImageSizeMB >= t.StorageCeilingMB {
		return Health{
			Status: HealthWarning,
			Reason: fmt.Sprintf("image storage at %.1f MB exceeds the %.0f MB ceiling", totals.TotalImageSizeMB, t.StorageCeilingMB),
		}
	}

	var sum, peak int64
	for _, n := range daily {
		sum += n
		if n > peak {
			peak = n
		}
	}

	if len(daily) > 0 && t.AvgDailyUsersMax > 0 {
		avg := float64(sum) / float64(len(daily))
		if avg >= t.AvgDailyUsersMax {
			return Health{
				Status: HealthWarning,
				Reason: fmt.Sprintf("average daily users %.0f exceeds the %.0f ceiling", avg, t.AvgDailyUsersMax),
			}
		}
	}

	if t.PeakDailyUsersMax > 0 && peak >= t.PeakDailyUsersMax {
		return Health{
			Status: HealthWarning,
			Reason: fmt.Sprintf("peak daily users %d exceeds the %d ceiling", peak, t.PeakDailyUsersMax),
		}
	}

	return Health{Status: HealthGood, Reason: "all usage within configured limits"}
}

// EvaluateHealth applies the engine's configured thresholds.
func (e *Engine) EvaluateHealth(totals Totals, daily map[string]int64) Health {
	return EvaluateHealth(e.thresholds, totals, daily)
}
