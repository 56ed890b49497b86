package observability

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/apply-agent/internal/types"
)

func TestPrintScan(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintScan("results.html", 3, []types.Candidate{
		{Identity: types.Identity{Title: "Go Developer", Organization: "Acme"}, Index: 0},
		{Identity: types.Identity{Title: "Site Reliability Engineer"}, Index: 2},
	})
	output := buf.String()

	assert.Contains(t, output, "FAST-APPLY LISTINGS")
	assert.Contains(t, output, "Rendered:  3")
	assert.Contains(t, output, "Eligible:  2")
	assert.Contains(t, output, "#1   Go Developer · Acme")
	assert.Contains(t, output, "#3   Site Reliability Engineer")
}

func TestPrintScan_TruncatesList(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	candidates := make([]types.Candidate, 0, 15)
	for i := 0; i < 15; i++ {
		candidates = append(candidates, types.Candidate{Identity: types.Identity{Title: fmt.Sprintf("Job %d", i)}, Index: i})
	}
	p.PrintScan("page", 15, candidates)

	assert.Contains(t, buf.String(), "... and 5 more")
	assert.NotContains(t, buf.String(), "Job 10")
}

func TestPrintRunSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRunSummary(types.RunStatus{
		Applied:  4,
		Phase:    types.PhaseStopped,
		Settings: types.Settings{JobTitle: "Go Developer", Location: "Berlin", JobType: types.JobTypeRemote},
	}, 9, "exhausted")
	output := buf.String()

	assert.Contains(t, output, "RUN SUMMARY")
	assert.Contains(t, output, "Go Developer in Berlin (remote)")
	assert.Contains(t, output, "Applied:    4")
	assert.Contains(t, output, "Processed:  9")
	assert.Contains(t, output, "Ended:      exhausted")
}

func TestPrintBox_LongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("x", 200))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[2], "...")
	for _, line := range lines {
		assert.Equal(t, boxWidth, len([]rune(line)))
	}
}
