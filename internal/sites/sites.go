// Package sites flattens nested site documents into scored resource records
// and rolls them back up into per-site aggregates.
package sites

import (
	"fmt"
	"sort"

	"sitesight/internal/common/errors"
	"sitesight/internal/scoring"
)

// Validate checks the fields every downstream stage relies on. It stops at
// the first problem.
func Validate(all []Site) error {
	seenSites := make(map[string]bool, len(all))
	for i, site := range all {
		if site.SiteName == "" {
			return errors.NewMalformedInputError("", "", fmt.Sprintf("site at index %d has an empty SiteName", i))
		}
		if seenSites[site.SiteName] {
			return errors.NewMalformedInputError(site.SiteName, "", "duplicate SiteName")
		}
		seenSites[site.SiteName] = true

		seenResources := make(map[string]bool, len(site.Resources))
		for j, r := range site.Resources {
			if r.ResourceName == "" {
				return errors.NewMalformedInputError(site.SiteName, "", fmt.Sprintf("resource at index %d has an empty ResourceName", j))
			}
			if seenResources[r.ResourceName] {
				return errors.NewMalformedInputError(site.SiteName, r.ResourceName, "duplicate ResourceName within site")
			}
			seenResources[r.ResourceName] = true

			if r.ResourceType == "" {
				return errors.NewMalformedInputError(site.SiteName, r.ResourceName, "missing ResourceType")
			}
			for _, d := range scoring.Dimensions {
				if _, ok := r.Status(d); !ok {
					return errors.NewMalformedInputError(site.SiteName, r.ResourceName, fmt.Sprintf("missing %s.status", d))
				}
			}
		}
	}
	return nil
}

// Flatten validates the sites and scores every resource, preserving input
// order. Sites without resources contribute no records.
func Flatten(scorer *scoring.Scorer, all []Site) ([]Record, error) {
	if err := Validate(all); err != nil {
		return nil, err
	}

	var records []Record
	for _, site := range all {
		for _, r := range site.Resources {
			statuses := r.Statuses()
			rs, err := scorer.Score(site.SiteName, r.ResourceName, statuses)
			if err != nil {
				return nil, err
			}
			records = append(records, Record{
				SiteName:            site.SiteName,
				ResourceName:        r.ResourceName,
				ResourceType:        r.ResourceType,
				Statuses:            statuses,
				Scores:              rs.Scores,
				CompositeScore:      rs.Composite,
				ResourceHealthScore: scoring.Round(rs.Composite, 2),
			})
		}
	}
	return records, nil
}

// Aggregate groups records by site. SiteHealthScore is the mean of the four
// per-dimension means, which is not in general the mean of the composites.
// Output is ordered by SiteName.
func Aggregate(records []Record) []SiteAggregate {
	type acc struct {
		sums  map[scoring.Dimension]float64
		n     int
		types map[string]bool
	}

	bySite := make(map[string]*acc)
	for _, rec := range records {
		a, ok := bySite[rec.SiteName]
		if !ok {
			a = &acc{sums: make(map[scoring.Dimension]float64), types: make(map[string]bool)}
			bySite[rec.SiteName] = a
		}
		for _, d := range scoring.Dimensions {
			a.sums[d] += rec.Scores[d]
		}
		a.n++
		a.types[rec.ResourceType] = true
	}

	names := make([]string, 0, len(bySite))
	for name := range bySite {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]SiteAggregate, 0, len(names))
	for _, name := range names {
		a := bySite[name]
		means := make(map[scoring.Dimension]float64, len(scoring.Dimensions))
		total := 0.0
		for _, d := range scoring.Dimensions {
			means[d] = a.sums[d] / float64(a.n)
			total += means[d]
		}
		health := total / float64(len(scoring.Dimensions))

		types := make([]string, 0, len(a.types))
		for t := range a.types {
			types = append(types, t)
		}
		sort.Strings(types)

		out = append(out, SiteAggregate{
			SiteName:        name,
			DimensionMeans:  means,
			SiteHealthScore: health,
			RankLabel:       LabelFor(health),
			ResourceTypes:   types,
			ResourceCount:   a.n,
		})
	}
	return out
}

// LabelFor buckets a site health score; 0 is healthiest.
func LabelFor(score float64) int {
	switch {
	case score >= 0.85:
		return 0
	case score >= 0.7:
		return 1
	case score >= 0.5:
		return 2
	default:
		return 3
	}
}

// Empty returns the names of sites that have no resources.
func Empty(all []Site) []string {
	var names []string
	for _, s := range all {
		if len(s.Resources) == 0 {
			names = append(names, s.SiteName)
		}
	}
	return names
}
