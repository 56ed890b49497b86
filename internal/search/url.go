// Package search builds the canonical job-search URL for a set of settings and decides
// whether the page currently shown already is that search.
package search

import (
	"net/url"
	"strings"

	"github.com/jonathan/apply-agent/internal/types"
)

// BaseURL is the job search endpoint.
const BaseURL = "https://www.linkedin.com/jobs/search/"

// Query parameter names understood by the search page.
const (
	ParamKeywords  = "keywords"
	ParamLocation  = "location"
	ParamEasyApply = "f_AL"
	ParamSortBy    = "sortBy"
	ParamWorkplace = "f_WT"
)

const sortRelevance = "R"

// workplaceCodes maps job types onto the f_WT filter values.
var workplaceCodes = map[types.JobType]string{
	types.JobTypeOnsite: "1",
	types.JobTypeRemote: "2",
	types.JobTypeHybrid: "3",
}

// Query returns the canonical query parameters for s.
func Query(s types.Settings) url.Values {
	params := url.Values{}
	params.Set(ParamKeywords, s.JobTitle)
	params.Set(ParamLocation, s.Location)
	params.Set(ParamEasyApply, "true")
	params.Set(ParamSortBy, sortRelevance)
	if code, ok := workplaceCodes[s.JobType]; ok {
		params.Set(ParamWorkplace, code)
	}
	return params
}

// BuildURL returns the canonical search URL for s. Parameters are encoded in sorted order,
// so equal settings always produce the same string.
func BuildURL(s types.Settings) string {
	return BaseURL + "?" + Query(s).Encode()
}

// IsJobsSearchPage reports whether rawURL points at the job search page.
func IsJobsSearchPage(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Host)
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return false
	}
	return strings.HasPrefix(parsed.Path, "/jobs/search")
}

// Matches reports whether rawURL is the search described by s. Every canonical parameter
// must be present with the same value; extra parameters the site adds while browsing
// (selected job, paging offsets) are ignored.
func Matches(rawURL string, s types.Settings) bool {
	if !IsJobsSearchPage(rawURL) {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	current := parsed.Query()
	for key, want := range Query(s) {
		if !strings.EqualFold(strings.TrimSpace(current.Get(key)), strings.TrimSpace(want[0])) {
			return false
		}
	}
	if _, filtered := workplaceCodes[s.JobType]; !filtered && current.Get(ParamWorkplace) != "" {
		return false
	}
	return true
}
