// internal/workers/sitehealth/rank-sites/models.go
package ranksites

import (
	"encoding/json"

	"sitesight/internal/pipeline"
)

// Input carries the sites inline or points at a document on disk. Inline
// sites win when both are present.
type Input struct {
	Sites     json.RawMessage `json:"sites,omitempty"`
	SitesPath string          `json:"sitesPath,omitempty"`
}

type Output struct {
	RunID       string                      `json:"runId"`
	GeneratedAt string                      `json:"generatedAt"`
	OrderBy     string                      `json:"orderBy"`
	SiteCount   int                         `json:"siteCount"`
	RankedSites []pipeline.RankedSiteResult `json:"rankedSites"`
}
