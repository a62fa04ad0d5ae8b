package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TriggerCount is one entry of the weekly trigger ranking.
type TriggerCount struct {
	Trigger string `json:"trigger"`
	Count   int    `json:"count"`
}

// ToolStat is one entry of the weekly tool ranking.
type ToolStat struct {
	Tool           string  `json:"tool"`
	Count          int     `json:"count"`
	AvgHelpfulness float64 `json:"avgHelpfulness"`
}

// HourCount is the number of episodes started in a given hour of day.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// WeeklyStats aggregates the trailing seven days of episodes.
type WeeklyStats struct {
	TotalEpisodes    int            `json:"totalEpisodes"`
	AverageIntensity float64        `json:"averageIntensity"`
	TopTriggers      []TriggerCount `json:"topTriggers"`
	TopTools         []ToolStat     `json:"topTools"`
	TimePatterns     []HourCount    `json:"timePatterns"`
}

// DecimalString is a one-decimal number carried as text. It decodes from
// either a JSON string or a JSON number.
type DecimalString string

// FormatDecimal renders f with one decimal place.
func FormatDecimal(f float64) DecimalString {
	return DecimalString(strconv.FormatFloat(f, 'f', 1, 64))
}

// UnmarshalJSON accepts "4.5" and 4.5 alike.
func (d *DecimalString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = DecimalString(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*d = ""
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("avgIntensity must be a string or number: %w", err)
	}
	*d = FormatDecimal(f)
	return nil
}

// InsightRequest is the payload sent to the remote classifier for a weekly summary.
type InsightRequest struct {
	EpisodeCount int            `json:"episodeCount"`
	AvgIntensity DecimalString  `json:"avgIntensity"`
	TopTriggers  []TriggerCount `json:"topTriggers"`
	TopTools     []ToolStat     `json:"topTools"`
}

// NewInsightRequest builds the remote payload from computed stats.
func NewInsightRequest(stats WeeklyStats) InsightRequest {
	req := InsightRequest{
		EpisodeCount: stats.TotalEpisodes,
		AvgIntensity: FormatDecimal(stats.AverageIntensity),
		TopTriggers:  stats.TopTriggers,
		TopTools:     stats.TopTools,
	}
	if req.TopTriggers == nil {
		req.TopTriggers = []TriggerCount{}
	}
	if req.TopTools == nil {
		req.TopTools = []ToolStat{}
	}
	return req
}

// Insight is the narrative pair shown on the progress page.
type Insight struct {
	Insight    string `json:"insight"`
	Experiment string `json:"experiment"`
}

// InsightSource records where an insight's text came from.
type InsightSource string

const (
	InsightSourceRemote   InsightSource = "remote"
	InsightSourceFallback InsightSource = "fallback"
	InsightSourceEmpty    InsightSource = "empty"
)

// WeeklyInsight is the cached insight record for one week.
type WeeklyInsight struct {
	ID                  string        `json:"id"`
	WeekStart           time.Time     `json:"weekStart"`
	WeekEnd             time.Time     `json:"weekEnd"`
	Stats               WeeklyStats   `json:"stats"`
	GeneratedInsight    string        `json:"generatedInsight"`
	SuggestedExperiment string        `json:"suggestedExperiment"`
	Source              InsightSource `json:"source"`
	CreatedAt           time.Time     `json:"createdAt"`
}

// ReframeRequest is the payload for a thought reframe.
type ReframeRequest struct {
	Situation        string `json:"situation"`
	AutomaticThought string `json:"automaticThought"`
	Emotion          string `json:"emotion"`
}

// ReframeResult is a validation plus a more balanced alternative thought.
type ReframeResult struct {
	Validation      string `json:"validation"`
	BalancedThought string `json:"balancedThought"`
	// IsCrisis is set when the thought itself matched crisis keywords; the
	// UI must redirect to crisis support instead of showing a reframe.
	IsCrisis bool `json:"isCrisis,omitempty"`
}
