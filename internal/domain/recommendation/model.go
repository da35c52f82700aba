package recommendation

import (
	"context"
	"net/url"

	"github.com/yanqian/sunbalance/internal/infra/transport"
)

// CodeRecommendation marks failed recommendation fetches.
const CodeRecommendation = "recommendation_error"

// Phase mirrors the cache's coarse status flag.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseError   Phase = "error"
)

// APIClient is the part of the transport client the cache needs.
type APIClient interface {
	Get(ctx context.Context, path string, query url.Values) (*transport.Response, error)
}

// Snapshot is the server's recommendation for one profile. It is replaced wholesale on
// every successful fetch.
type Snapshot struct {
	ProfileID             int64        `json:"profile_id"`
	ProfileName           string       `json:"profile_name,omitempty"`
	Status                string       `json:"status"`
	RecommendedMinutesMin int          `json:"recommended_minutes_min"`
	RecommendedMinutesMax int          `json:"recommended_minutes_max"`
	Warnings              []string     `json:"warnings"`
	SuggestedWindows      []string     `json:"suggested_windows,omitempty"`
	UVIndexNow            float64      `json:"uv_index_now"`
	UVTrend               []TrendPoint `json:"uv_trend"`
	DataQuality           string       `json:"data_quality"`
	Timestamp             string       `json:"timestamp"`
	Disclaimer            string       `json:"disclaimer"`
	Location              *Location    `json:"location,omitempty"`
	PreferredTimeWindows  []string     `json:"preferred_time_windows,omitempty"`
	UVMessage             string       `json:"uv_message,omitempty"`
}

// TrendPoint is one forecast UV value.
type TrendPoint struct {
	Time    string  `json:"time"`
	UVIndex float64 `json:"uv_index"`
}

// Location is where the recommendation was computed for.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	AltitudeM int     `json:"altitude_m"`
}

// State is a snapshot of the cache for display.
type State struct {
	Phase     Phase  `json:"phase"`
	LastError string `json:"error,omitempty"`
}

// Category buckets the current UV index the way the WHO scale does.
func (s Snapshot) Category() string {
	return categoryFor(s.UVIndexNow)
}

// Peak returns the highest trend point, the earliest one on ties.
func (s Snapshot) Peak() (TrendPoint, bool) {
	if len(s.UVTrend) == 0 {
		return TrendPoint{}, false
	}
	peak := s.UVTrend[0]
	for _, pt := range s.UVTrend[1:] {
		if pt.UVIndex > peak.UVIndex {
			peak = pt
		}
	}
	return peak, true
}

func categoryFor(uv float64) string {
	switch {
	case uv < 3:
		return "low"
	case uv < 6:
		return "moderate"
	case uv < 8:
		return "high"
	case uv < 11:
		return "very_high"
	default:
		return "extreme"
	}
}
