// Package types provides type definitions shared by the scanner, driver and run loop.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// JobType is the workplace-type filter applied to a job search.
type JobType string

const (
	// JobTypeNone applies no workplace filter
	JobTypeNone JobType = "none"
	// JobTypeRemote selects remote listings
	JobTypeRemote JobType = "remote"
	// JobTypeHybrid selects hybrid listings
	JobTypeHybrid JobType = "hybrid"
	// JobTypeOnsite selects on-site listings
	JobTypeOnsite JobType = "onsite"
)

// Default search values used when a start request leaves a field empty.
const (
	DefaultJobTitle = "Software Engineer"
	DefaultLocation = "San Francisco Bay Area"
	DefaultJobType  = JobTypeNone
)

// ParseJobType converts a user-supplied string into a JobType.
// Matching is case-insensitive; "on-site" is accepted as an alias of onsite.
func ParseJobType(s string) (JobType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return JobTypeNone, true
	case "remote":
		return JobTypeRemote, true
	case "hybrid":
		return JobTypeHybrid, true
	case "onsite", "on-site":
		return JobTypeOnsite, true
	default:
		return "", false
	}
}

// Settings holds the search criteria for one run. A run never mutates its settings;
// changing them requires a restart of the run loop.
type Settings struct {
	JobTitle      string  `json:"job_title" yaml:"job_title" validate:"required"`
	JobType       JobType `json:"job_type" yaml:"job_type" validate:"required,oneof=none remote hybrid onsite"`
	Location      string  `json:"location" yaml:"location" validate:"required"`
	EasyApplyOnly bool    `json:"easy_apply_only" yaml:"-"`
}

// DefaultSettings returns the settings used when nothing else is configured.
func DefaultSettings() Settings {
	return Settings{
		JobTitle:      DefaultJobTitle,
		JobType:       DefaultJobType,
		Location:      DefaultLocation,
		EasyApplyOnly: true,
	}
}

// Normalize fills empty fields with defaults, trims whitespace and forces EasyApplyOnly.
func (s Settings) Normalize() Settings {
	s.JobTitle = strings.TrimSpace(s.JobTitle)
	s.Location = strings.TrimSpace(s.Location)
	if s.JobTitle == "" {
		s.JobTitle = DefaultJobTitle
	}
	if s.Location == "" {
		s.Location = DefaultLocation
	}
	if s.JobType == "" {
		s.JobType = DefaultJobType
	}
	s.EasyApplyOnly = true
	return s
}

// Validate validates the Settings using the validator.
func (s *Settings) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}
