// Package observability provides human-readable output for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/apply-agent/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(title, boxWidth-4))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

// PrintScan outputs the eligible listings found by a scan.
func (p *Printer) PrintScan(source string, rendered int, candidates []types.Candidate) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Source:    %s\n", source))
	sb.WriteString(fmt.Sprintf("Rendered:  %d\n", rendered))
	sb.WriteString(fmt.Sprintf("Eligible:  %d\n", len(candidates)))

	if len(candidates) > 0 {
		sb.WriteString("\n")
		count := min(len(candidates), maxItemsToShow)
		for i := 0; i < count; i++ {
			c := candidates[i]
			sb.WriteString(fmt.Sprintf("#%-3d %s", c.Index+1, c.Identity.Title))
			if c.Identity.Organization != "" {
				sb.WriteString(fmt.Sprintf(" · %s", c.Identity.Organization))
			}
			sb.WriteString("\n")
		}
		if len(candidates) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("... and %d more\n", len(candidates)-maxItemsToShow))
		}
	}

	p.printBox("FAST-APPLY LISTINGS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRunSummary outputs the final state of a run.
func (p *Printer) PrintRunSummary(status types.RunStatus, processed int, reason string) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Search:     %s", status.Settings.JobTitle))
	if status.Settings.Location != "" {
		sb.WriteString(fmt.Sprintf(" in %s", status.Settings.Location))
	}
	if status.Settings.JobType != "" && status.Settings.JobType != types.JobTypeNone {
		sb.WriteString(fmt.Sprintf(" (%s)", status.Settings.JobType))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Applied:    %d\n", status.Applied))
	sb.WriteString(fmt.Sprintf("Processed:  %d\n", processed))
	sb.WriteString(fmt.Sprintf("Ended:      %s\n", reason))
	sb.WriteString(fmt.Sprintf("Status:     %s", status.Phase))

	p.printBox("RUN SUMMARY", sb.String())
}
