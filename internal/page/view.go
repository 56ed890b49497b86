// Package page defines the View capability the scanner and driver use to inspect and act on
// a job-search page, along with a live chromedp implementation and a static goquery one.
package page

import (
	"context"
	"strings"
)

// Node is an opaque reference to a rendered element. It is only meaningful to the View that
// returned it, and only until the element leaves the page. A nil Node scopes a query to the
// whole document.
type Node any

// Role names a structural marker the core relies on.
type Role string

const (
	// RoleListing is the container of one job listing in the results pane
	RoleListing Role = "listing"
	// RoleTitle is the job title inside a listing
	RoleTitle Role = "title"
	// RoleOrganization is the hiring organization inside a listing
	RoleOrganization Role = "organization"
	// RoleApplyAction is the dedicated fast-apply affordance
	RoleApplyAction Role = "apply-action"
	// RoleErrorFeedback is the inline error shown by the application flow
	RoleErrorFeedback Role = "error-feedback"
	// RoleButton is any actionable control
	RoleButton Role = "button"
)

// View is the page capability. Absence of a marker is never an error: queries return an
// empty slice or false. Errors mean the page itself could not be inspected.
type View interface {
	// Location returns the current page URL.
	Location(ctx context.Context) (string, error)
	// Navigate loads url and waits for the document body.
	Navigate(ctx context.Context, url string) error
	// FindByRole returns the elements under scope matching role, in document order.
	FindByRole(ctx context.Context, scope Node, role Role) ([]Node, error)
	// FindByLabelSubstring returns the elements under scope whose accessible label contains label.
	FindByLabelSubstring(ctx context.Context, scope Node, label string) ([]Node, error)
	// FindByLabel returns the buttons under scope whose accessible label is exactly label.
	FindByLabel(ctx context.Context, scope Node, label string) ([]Node, error)
	// TextContains reports whether the rendered text under scope contains text.
	TextContains(ctx context.Context, scope Node, text string) (bool, error)
	// Text returns the whitespace-normalized text of n.
	Text(ctx context.Context, n Node) (string, error)
	// Click activates n.
	Click(ctx context.Context, n Node) error
	// ScrollToBottom asks the page to load more results.
	ScrollToBottom(ctx context.Context) error
}

// Markers maps roles and labels onto a concrete page layout.
type Markers struct {
	Selectors map[Role]string

	// FastApplyLabel marks a listing offering the in-page application flow.
	FastApplyLabel string
	// DetailApplyLabel labels the button that opens the flow from the detail pane.
	DetailApplyLabel string
	ContinueLabel    string
	ReviewLabel      string
	SubmitLabel      string
	DismissLabel     string
}

// DefaultMarkers returns the markers for the LinkedIn jobs search layout.
func DefaultMarkers() Markers {
	return Markers{
		Selectors: map[Role]string{
			RoleListing:       ".job-card-container",
			RoleTitle:         ".artdeco-entity-lockup__title",
			RoleOrganization:  ".artdeco-entity-lockup__subtitle",
			RoleApplyAction:   ".jobs-apply-button",
			RoleErrorFeedback: ".artdeco-inline-feedback--error",
			RoleButton:        "button",
		},
		FastApplyLabel:   "Easy Apply",
		DetailApplyLabel: "Easy Apply to",
		ContinueLabel:    "Continue to next step",
		ReviewLabel:      "Review your application",
		SubmitLabel:      "Submit application",
		DismissLabel:     "Dismiss",
	}
}

// Selector returns the CSS selector for role, or "" when the layout has none.
func (m Markers) Selector(role Role) string {
	return m.Selectors[role]
}

var attrEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// labelSelector builds an attribute-substring selector for an accessible label.
func labelSelector(label string) string {
	return `[aria-label*="` + attrEscaper.Replace(label) + `"]`
}

// buttonLabelSelector matches buttons whose accessible label equals label.
func buttonLabelSelector(label string) string {
	return `button[aria-label="` + attrEscaper.Replace(label) + `"]`
}

// normalizeText collapses runs of whitespace into single spaces.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
