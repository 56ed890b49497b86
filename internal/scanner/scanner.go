// Package scanner enumerates the listings currently rendered on the results page and
// filters them down to fast-apply candidates.
package scanner

import (
	"context"
	"iter"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/page"
	"github.com/jonathan/apply-agent/internal/types"
)

// Options configures eligibility.
type Options struct {
	// MatchTitle additionally requires the listing title to contain JobTitle.
	MatchTitle bool
	JobTitle   string
	Markers    page.Markers
	Logger     *zap.SugaredLogger
}

// Scanner reads listings from a page.View. It never mutates the page.
type Scanner struct {
	view page.View
	opts Options
	log  *zap.SugaredLogger
}

// New creates a scanner over view.
func New(view page.View, opts Options) *Scanner {
	if opts.Markers.Selectors == nil {
		opts.Markers = page.DefaultMarkers()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Named("scanner")
	}
	return &Scanner{view: view, opts: opts, log: log}
}

// Batch is a snapshot of the listings rendered at scan time.
type Batch struct {
	// Rendered counts every listing container, eligible or not.
	Rendered int

	listings []page.Node
	scanner  *Scanner
}

// Scan snapshots the rendered listings. It does not load more results.
func (s *Scanner) Scan(ctx context.Context) (*Batch, error) {
	listings, err := s.view.FindByRole(ctx, nil, page.RoleListing)
	if err != nil {
		return nil, &Error{Message: "failed to enumerate listings", Cause: err}
	}
	s.log.Debugw("scanned listings", "rendered", len(listings))
	return &Batch{Rendered: len(listings), listings: listings, scanner: s}, nil
}

// Count returns how many listings are rendered right now.
func (s *Scanner) Count(ctx context.Context) (int, error) {
	listings, err := s.view.FindByRole(ctx, nil, page.RoleListing)
	if err != nil {
		return 0, &Error{Message: "failed to count listings", Cause: err}
	}
	return len(listings), nil
}

// Candidates lazily yields eligible listings in document order. Each listing is inspected
// only when the consumer asks for the next element, so the page may change between yields.
// A non-nil error is yielded for a listing that could not be inspected; the consumer
// decides whether to keep iterating.
func (b *Batch) Candidates(ctx context.Context) iter.Seq2[types.Candidate, error] {
	return func(yield func(types.Candidate, error) bool) {
		for i, listing := range b.listings {
			candidate, eligible, err := b.scanner.evaluate(ctx, i, listing)
			if err != nil {
				if !yield(types.Candidate{Index: i}, err) {
					return
				}
				continue
			}
			if !eligible {
				continue
			}
			if !yield(candidate, nil) {
				return
			}
		}
	}
}

// Collect drains Candidates, stopping at the first error.
func (b *Batch) Collect(ctx context.Context) ([]types.Candidate, error) {
	var out []types.Candidate
	for c, err := range b.Candidates(ctx) {
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Scanner) evaluate(ctx context.Context, index int, listing page.Node) (types.Candidate, bool, error) {
	fast, err := s.IsFastApply(ctx, listing)
	if err != nil {
		return types.Candidate{}, false, err
	}
	if !fast {
		s.log.Debugw("skipping listing without fast apply", "index", index)
		return types.Candidate{}, false, nil
	}

	identity, err := s.Identity(ctx, listing)
	if err != nil {
		return types.Candidate{}, false, err
	}
	if s.opts.MatchTitle && !MatchesTitle(identity.Title, s.opts.JobTitle) {
		s.log.Debugw("skipping listing with non-matching title",
			logger.FieldTitle, identity.Title, "want", s.opts.JobTitle)
		return types.Candidate{}, false, nil
	}

	return types.Candidate{
		Identity:    identity,
		IsFastApply: true,
		Index:       index,
		Node:        listing,
	}, true, nil
}

// IsFastApply applies the layered check: a dedicated apply affordance, an accessible label
// carrying the fast-apply marker, or the marker anywhere in the listing text.
func (s *Scanner) IsFastApply(ctx context.Context, listing page.Node) (bool, error) {
	actions, err := s.view.FindByRole(ctx, listing, page.RoleApplyAction)
	if err != nil {
		return false, &Error{Message: "failed to look up apply action", Cause: err}
	}
	if len(actions) > 0 {
		return true, nil
	}

	marker := s.opts.Markers.FastApplyLabel
	if marker == "" {
		return false, nil
	}
	labeled, err := s.view.FindByLabelSubstring(ctx, listing, marker)
	if err != nil {
		return false, &Error{Message: "failed to look up fast-apply label", Cause: err}
	}
	if len(labeled) > 0 {
		return true, nil
	}

	found, err := s.view.TextContains(ctx, listing, marker)
	if err != nil {
		return false, &Error{Message: "failed to read listing text", Cause: err}
	}
	return found, nil
}

// Identity extracts title and organization. Missing markers yield empty strings.
func (s *Scanner) Identity(ctx context.Context, listing page.Node) (types.Identity, error) {
	title, err := s.firstText(ctx, listing, page.RoleTitle)
	if err != nil {
		return types.Identity{}, err
	}
	org, err := s.firstText(ctx, listing, page.RoleOrganization)
	if err != nil {
		return types.Identity{}, err
	}
	return types.Identity{Title: title, Organization: org}, nil
}

func (s *Scanner) firstText(ctx context.Context, listing page.Node, role page.Role) (string, error) {
	nodes, err := s.view.FindByRole(ctx, listing, role)
	if err != nil {
		return "", &Error{Message: "failed to look up " + string(role), Cause: err}
	}
	if len(nodes) == 0 {
		return "", nil
	}
	text, err := s.view.Text(ctx, nodes[0])
	if err != nil {
		return "", &Error{Message: "failed to read " + string(role), Cause: err}
	}
	return strings.TrimSpace(text), nil
}

// MatchesTitle reports whether title contains want, ignoring case. An empty title never matches.
func MatchesTitle(title, want string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return false
	}
	return strings.Contains(strings.ToLower(title), strings.ToLower(strings.TrimSpace(want)))
}
