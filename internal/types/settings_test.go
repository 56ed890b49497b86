package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobType(t *testing.T) {
	tests := []struct {
		in     string
		want   JobType
		wantOK bool
	}{
		{in: "", want: JobTypeNone, wantOK: true},
		{in: "None", want: JobTypeNone, wantOK: true},
		{in: " remote ", want: JobTypeRemote, wantOK: true},
		{in: "HYBRID", want: JobTypeHybrid, wantOK: true},
		{in: "on-site", want: JobTypeOnsite, wantOK: true},
		{in: "weekly", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseJobType(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettings_Normalize(t *testing.T) {
	s := Settings{JobTitle: "  Go Developer  ", Location: " "}.Normalize()

	assert.Equal(t, "Go Developer", s.JobTitle)
	assert.Equal(t, DefaultLocation, s.Location)
	assert.Equal(t, DefaultJobType, s.JobType)
	assert.True(t, s.EasyApplyOnly)

	assert.Equal(t, DefaultSettings(), Settings{}.Normalize())
}

func TestSettings_Validate(t *testing.T) {
	valid := DefaultSettings()
	require.NoError(t, valid.Validate())

	invalid := DefaultSettings()
	invalid.JobType = "weekly"
	assert.Error(t, invalid.Validate())

	missing := Settings{JobType: JobTypeRemote}
	assert.Error(t, missing.Validate())
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "applied", Applied(3).String())
	assert.Equal(t, "stuck(no actionable controls)", Stuck("no actionable controls", 2).String())
	assert.True(t, Applied(1).IsApplied())
	assert.False(t, Errored("boom", 1).IsApplied())
}
