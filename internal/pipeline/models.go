package pipeline

import (
	"context"
	"time"
)

// RankedSiteResult is the externally visible result for one site.
// Connectivity, Update, Alerts and Security repeat the dimension means
// unrounded; HealthSignals carries them at two decimals.
type RankedSiteResult struct {
	SiteName        string              `json:"SiteName"`
	RankScore       float64             `json:"RankScore"`
	SiteHealthScore float64             `json:"SiteHealthScore"`
	RankLabel       int                 `json:"RankLabel"`
	HealthSignals   map[string]float64  `json:"HealthSignals"`
	Connectivity    float64             `json:"Connectivity"`
	Update          float64             `json:"Update"`
	Alerts          float64             `json:"Alerts"`
	Security        float64             `json:"Security"`
	Recommendations map[string][]string `json:"Recommendations"`
	Resources       []ResourceResult    `json:"Resources,omitempty"`
}

// ResourceResult is the per-resource detail behind a site's recommendations.
type ResourceResult struct {
	ResourceName         string   `json:"ResourceName"`
	ResourceType         string   `json:"ResourceType"`
	ResourceHealthScore  float64  `json:"ResourceHealthScore"`
	Recommendations      []string `json:"Recommendations"`
	RecommendationSource string   `json:"RecommendationSource"`
}

// Run is one complete ranking pass as handed to sinks.
type Run struct {
	RunID       string             `json:"runId"`
	GeneratedAt time.Time          `json:"generatedAt"`
	OrderBy     string             `json:"orderBy"`
	Results     []RankedSiteResult `json:"rankedSites"`
}

// Sink persists a finished run.
type Sink interface {
	Name() string
	Write(ctx context.Context, run *Run) error
}
