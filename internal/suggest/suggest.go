// Package suggest turns a job's risk assessment into edit suggestions.
package suggest

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/heimdex/heimdex-editor/internal/edit"
)

type RiskLevel string

const (
	LevelHigh   RiskLevel = "high"
	LevelMedium RiskLevel = "medium"
	LevelLow    RiskLevel = "low"
	LevelNone   RiskLevel = "none"
)

// RiskItem is one flagged span from the analysis.
type RiskItem struct {
	ID           string    `json:"id"`
	Timestamp    float64   `json:"timestamp"`
	EndTimestamp float64   `json:"end_timestamp"`
	Category     string    `json:"category"`
	Subcategory  string    `json:"subcategory"`
	Score        float64   `json:"score"`
	Level        RiskLevel `json:"level"`
	Rationale    string    `json:"rationale"`
	Source       string    `json:"source"`
	Evidence     string    `json:"evidence"`
}

type Assessment struct {
	OverallScore float64    `json:"overall_score"`
	RiskLevel    RiskLevel  `json:"risk_level"`
	Risks        []RiskItem `json:"risks"`
}

// AnalysisResult is the gateway's results payload. The job record is kept
// opaque.
type AnalysisResult struct {
	Job        json.RawMessage `json:"job"`
	Assessment Assessment      `json:"assessment"`
	VideoURL   *string         `json:"video_url,omitempty"`
}

// Suggestion is a risk span presented as a candidate edit.
type Suggestion struct {
	ID        string  `json:"id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	RiskLevel int     `json:"risk_level"`
	Reason    string  `json:"reason"`
}

// GraphPoint is one sample of the risk-over-time chart.
type GraphPoint struct {
	Timestamp float64 `json:"timestamp"`
	RiskLevel int     `json:"risk_level"`
}

// NormalizeScore maps a score to an integer in [0, 100]. Scores at or
// below 1 are treated as fractions.
func NormalizeScore(score float64) int {
	if math.IsNaN(score) {
		return 0
	}
	var n float64
	if score <= 1 {
		n = math.Round(score * 100)
	} else {
		n = math.Round(score)
	}
	return int(math.Max(0, math.Min(100, n)))
}

// Derive maps risk items to suggestions, one per item, in input order.
// Callers pick which levels to show with FilterLevel.
func Derive(items []RiskItem) []Suggestion {
	out := make([]Suggestion, 0, len(items))
	for _, r := range items {
		out = append(out, Suggestion{
			ID:        r.ID,
			StartTime: r.Timestamp,
			EndTime:   r.EndTimestamp,
			RiskLevel: NormalizeScore(r.Score),
			Reason:    r.Rationale,
		})
	}
	return out
}

// FilterLevel keeps the items at the given level, preserving order.
func FilterLevel(items []RiskItem, level RiskLevel) []RiskItem {
	var out []RiskItem
	for _, r := range items {
		if r.Level == level {
			out = append(out, r)
		}
	}
	return out
}

// Graph returns one chart point per risk item, ordered by time. Items
// sharing a timestamp keep their input order.
func Graph(items []RiskItem) []GraphPoint {
	out := make([]GraphPoint, 0, len(items))
	for _, r := range items {
		out = append(out, GraphPoint{Timestamp: r.Timestamp, RiskLevel: NormalizeScore(r.Score)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// Seed builds the action a reviewer gets by applying s. A nil opts uses
// the defaults for t.
func Seed(s Suggestion, t edit.ActionType, opts edit.Options) edit.Action {
	if opts == nil {
		opts = edit.DefaultOptions(t)
	}
	if !t.TakesOptions() {
		opts = nil
	}
	return edit.Action{
		RiskItemID: s.ID,
		Type:       t,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		Options:    opts,
	}
}

// SeedAll returns one cut per suggestion.
func SeedAll(ss []Suggestion) []edit.Action {
	out := make([]edit.Action, 0, len(ss))
	for _, s := range ss {
		out = append(out, Seed(s, edit.ActionCut, nil))
	}
	return out
}
