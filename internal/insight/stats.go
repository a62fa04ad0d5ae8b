package insight

import (
	"math"
	"sort"
	"time"

	"github.com/BTreeMap/CalmPipe/internal/models"
)

const (
	// Window is the trailing period covered by weekly stats.
	Window = 7 * 24 * time.Hour
	// TopN caps the trigger and tool rankings.
	TopN = 3
)

// ComputeWeeklyStats aggregates the episodes inside the trailing window
// ending at now. It returns nil when no episode falls inside it. Hours are
// taken in now's location.
func ComputeWeeklyStats(episodes []models.Episode, now time.Time) *models.WeeklyStats {
	since := now.Add(-Window)

	var (
		total    int
		sumInt   int
		triggers = map[string]int{}
		hours    = map[int]int{}
		tools    = map[string]*toolAcc{}
	)
	for _, ep := range episodes {
		if ep.Timestamp.Before(since) || ep.Timestamp.After(now) {
			continue
		}
		total++
		sumInt += ep.Intensity
		for _, tr := range ep.Triggers {
			triggers[tr]++
		}
		for _, tool := range ep.ToolsUsed {
			acc, ok := tools[tool]
			if !ok {
				acc = &toolAcc{}
				tools[tool] = acc
			}
			acc.count++
			if ep.HelpfulRating != nil {
				acc.rated++
				acc.ratingSum += *ep.HelpfulRating
			}
		}
		hours[ep.Timestamp.In(now.Location()).Hour()]++
	}
	if total == 0 {
		return nil
	}

	return &models.WeeklyStats{
		TotalEpisodes:    total,
		AverageIntensity: roundOne(float64(sumInt) / float64(total)),
		TopTriggers:      rankTriggers(triggers),
		TopTools:         rankTools(tools),
		TimePatterns:     rankHours(hours),
	}
}

type toolAcc struct {
	count     int
	rated     int
	ratingSum int
}

func roundOne(f float64) float64 {
	return math.Round(f*10) / 10
}

func rankTriggers(counts map[string]int) []models.TriggerCount {
	out := make([]models.TriggerCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, models.TriggerCount{Trigger: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Trigger < out[j].Trigger
	})
	if len(out) > TopN {
		out = out[:TopN]
	}
	return out
}

func rankTools(accs map[string]*toolAcc) []models.ToolStat {
	out := make([]models.ToolStat, 0, len(accs))
	for name, acc := range accs {
		stat := models.ToolStat{Tool: name, Count: acc.count}
		if acc.rated > 0 {
			stat.AvgHelpfulness = float64(acc.ratingSum) / float64(acc.rated)
		}
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tool < out[j].Tool
	})
	if len(out) > TopN {
		out = out[:TopN]
	}
	return out
}

func rankHours(counts map[int]int) []models.HourCount {
	out := make([]models.HourCount, 0, len(counts))
	for h, n := range counts {
		out = append(out, models.HourCount{Hour: h, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Hour < out[j].Hour
	})
	return out
}
