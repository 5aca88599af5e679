// Package dashboard aggregates the landing-page overview: holder counts by
// type and class plus the latest export jobs.
package dashboard

import (
	"context"
	"sort"

	"campusworks.org/idcard-admin/internal/exports"
	"campusworks.org/idcard-admin/internal/records"
)

const recentJobLimit = 5

// ClassCount is one class bucket in the overview.
type ClassCount struct {
	Class string `json:"class"`
	Count int    `json:"count"`
}

// Overview is the aggregated landing-page payload.
type Overview struct {
	Students   int           `json:"students"`
	Staff      int           `json:"staff"`
	Classes    []ClassCount  `json:"classes,omitempty"`
	RecentJobs []exports.Job `json:"recentJobs,omitempty"`
}

// Service computes the overview from the records repository and the export
// job registry.
type Service struct {
	repo    records.Repository
	exports *exports.Service
}

// NewService constructs the dashboard service. The exports service may be
// nil when background exports are disabled.
func NewService(repo records.Repository, exp *exports.Service) *Service {
	return &Service{repo: repo, exports: exp}
}

// Overview aggregates current holder counts and recent export activity.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	recs, err := s.repo.List(ctx, records.Query{})
	if err != nil {
		return Overview{}, err
	}

	out := Overview{}
	classes := map[string]int{}
	for _, rec := range recs {
		switch rec.Type() {
		case records.TypeStudent:
			out.Students++
			if class := rec.Field(records.KeyClass); class != "" {
				classes[class]++
			}
		case records.TypeStaff:
			out.Staff++
		}
	}

	names := make([]string, 0, len(classes))
	for name := range classes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out.Classes = append(out.Classes, ClassCount{Class: name, Count: classes[name]})
	}

	if s.exports != nil {
		jobs := s.exports.Jobs()
		if len(jobs) > recentJobLimit {
			jobs = jobs[:recentJobLimit]
		}
		out.RecentJobs = jobs
	}
	return out, nil
}
