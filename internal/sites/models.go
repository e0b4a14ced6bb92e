package sites

import "sitesight/internal/scoring"

// StatusField is the {"status": "..."} object carried per dimension.
type StatusField struct {
	Status string `json:"status"`
}

// Resource is one monitored asset of a site as delivered by telemetry.
type Resource struct {
	ResourceName string       `json:"ResourceName"`
	ResourceType string       `json:"ResourceType"`
	Connectivity *StatusField `json:"Connectivity,omitempty"`
	Update       *StatusField `json:"Update,omitempty"`
	Alerts       *StatusField `json:"Alerts,omitempty"`
	Security     *StatusField `json:"Security,omitempty"`
}

// Site groups resources under a unique SiteName.
type Site struct {
	SiteName  string     `json:"SiteName"`
	Resources []Resource `json:"Resources"`
}

func (r Resource) field(d scoring.Dimension) *StatusField {
	switch d {
	case scoring.Connectivity:
		return r.Connectivity
	case scoring.Update:
		return r.Update
	case scoring.Alerts:
		return r.Alerts
	case scoring.Security:
		return r.Security
	}
	return nil
}

// Status returns the raw status for d and whether it is present and non-empty.
func (r Resource) Status(d scoring.Dimension) (string, bool) {
	f := r.field(d)
	if f == nil || f.Status == "" {
		return "", false
	}
	return f.Status, true
}

// Statuses returns the raw status of every dimension.
func (r Resource) Statuses() map[scoring.Dimension]string {
	out := make(map[scoring.Dimension]string, len(scoring.Dimensions))
	for _, d := range scoring.Dimensions {
		out[d], _ = r.Status(d)
	}
	return out
}

// Record is a flattened, scored resource.
type Record struct {
	SiteName     string
	ResourceName string
	ResourceType string
	Statuses     map[scoring.Dimension]string
	Scores       map[scoring.Dimension]float64
	// CompositeScore keeps full precision; ResourceHealthScore is the
	// two-decimal value reported to callers.
	CompositeScore      float64
	ResourceHealthScore float64
}

// SiteAggregate is the per-site rollup of its resource records.
type SiteAggregate struct {
	SiteName        string
	DimensionMeans  map[scoring.Dimension]float64
	SiteHealthScore float64
	RankLabel       int
	ResourceTypes   []string
	ResourceCount   int
}
