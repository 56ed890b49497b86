// Package pagetest provides a scripted in-memory page.View for tests.
//
// The fake models a results pane of listings, a detail pane for the selected listing, and an
// application flow made of screens. Clicking a flow control moves to the next screen.
package pagetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jonathan/apply-agent/internal/page"
)

// Screen is one step of an application flow.
type Screen struct {
	// Error is shown as inline error feedback when non-empty.
	Error string
	// Labels are the accessible labels of the labeled controls on this screen.
	Labels []string
	// Buttons counts additional unlabeled controls.
	Buttons int
	// Sticky screens do not advance when a control is clicked.
	Sticky bool
}

// Listing is one job card in the results pane.
type Listing struct {
	Title        string
	Organization string
	// Text is extra rendered text inside the card.
	Text string
	// ApplyButton renders the dedicated fast-apply affordance.
	ApplyButton bool
	// AriaLabel is the accessible label carried by an element inside the card.
	AriaLabel string
	// Controls are labeled card buttons such as "Dismiss <title> job". They precede the
	// detail pane and the flow in document order.
	Controls []string
	// Flow is the application flow opened from the detail pane; nil means no apply button.
	Flow []Screen
}

// FastApply returns a listing advertising fast apply through its label.
func FastApply(title, org string, flow []Screen) Listing {
	return Listing{Title: title, Organization: org, AriaLabel: "Easy Apply", Flow: flow}
}

// HappyFlow is a flow that goes continue, review, submit and shows a confirmation dialog.
func HappyFlow() []Screen {
	m := page.DefaultMarkers()
	return []Screen{
		{Labels: []string{m.ContinueLabel}},
		{Labels: []string{m.ReviewLabel}},
		{Labels: []string{m.SubmitLabel}},
		{Labels: []string{m.DismissLabel}},
	}
}

type listingNode struct{ index int }

type elementKind int

const (
	kindText elementKind = iota
	kindApplyAction
	kindLabeled
	kindDetailApply
	kindFlowControl
	kindError
	kindButton
	kindCardControl
)

type elementNode struct {
	kind  elementKind
	text  string
	label string
}

// View is the fake. Configure the exported fields before use; read results through the
// accessor methods once the code under test has run.
type View struct {
	mu sync.Mutex

	URL      string
	Listings []Listing
	// Rendered is how many listings are currently in the DOM.
	Rendered int
	// PageSize is how many more listings a scroll renders.
	PageSize int
	// Fail maps an operation name (location, navigate, find, text, click, scroll) to an error.
	Fail map[string]error

	markers     page.Markers
	selected    int
	flow        []Screen
	pos         int
	clicks      []string
	navigations []string
	scrolls     int
}

// New creates a fake with the given listings, all rendered.
func New(url string, listings ...Listing) *View {
	return &View{
		URL:      url,
		Listings: listings,
		Rendered: len(listings),
		selected: -1,
		markers:  page.DefaultMarkers(),
	}
}

func (v *View) fail(op string) error {
	if err, ok := v.Fail[op]; ok {
		return err
	}
	return nil
}

// Location returns URL.
func (v *View) Location(_ context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.fail("location"); err != nil {
		return "", err
	}
	return v.URL, nil
}

// Navigate sets URL and resets the panes.
func (v *View) Navigate(_ context.Context, url string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.fail("navigate"); err != nil {
		return err
	}
	v.URL = url
	v.navigations = append(v.navigations, url)
	v.selected = -1
	v.flow = nil
	return nil
}

func (v *View) activeScreen() (Screen, bool) {
	if v.flow == nil || v.pos >= len(v.flow) {
		return Screen{}, false
	}
	return v.flow[v.pos], true
}

func (v *View) detailApply() (elementNode, bool) {
	if v.flow != nil || v.selected < 0 || v.selected >= len(v.Listings) {
		return elementNode{}, false
	}
	l := v.Listings[v.selected]
	if l.Flow == nil {
		return elementNode{}, false
	}
	label := v.markers.DetailApplyLabel + " " + l.Title
	return elementNode{kind: kindDetailApply, label: label, text: v.markers.FastApplyLabel}, true
}

// FindByRole implements page.View.
func (v *View) FindByRole(_ context.Context, scope page.Node, role page.Role) ([]page.Node, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.fail("find"); err != nil {
		return nil, err
	}

	if scope != nil {
		ln, ok := scope.(listingNode)
		if !ok || ln.index >= len(v.Listings) {
			return nil, fmt.Errorf("unknown scope %v", scope)
		}
		l := v.Listings[ln.index]
		switch role {
		case page.RoleTitle:
			if l.Title != "" {
				return []page.Node{elementNode{kind: kindText, text: l.Title}}, nil
			}
		case page.RoleOrganization:
			if l.Organization != "" {
				return []page.Node{elementNode{kind: kindText, text: l.Organization}}, nil
			}
		case page.RoleApplyAction:
			if l.ApplyButton {
				return []page.Node{elementNode{kind: kindApplyAction, text: "Apply"}}, nil
			}
		}
		return nil, nil
	}

	switch role {
	case page.RoleListing:
		out := make([]page.Node, 0, v.Rendered)
		for i := 0; i < v.Rendered && i < len(v.Listings); i++ {
			out = append(out, listingNode{index: i})
		}
		return out, nil
	case page.RoleErrorFeedback:
		if s, ok := v.activeScreen(); ok && s.Error != "" {
			return []page.Node{elementNode{kind: kindError, text: s.Error}}, nil
		}
	case page.RoleButton:
		var out []page.Node
		if d, ok := v.detailApply(); ok {
			out = append(out, d)
		}
		if s, ok := v.activeScreen(); ok {
			for _, label := range s.Labels {
				out = append(out, elementNode{kind: kindFlowControl, label: label})
			}
			for i := 0; i < s.Buttons; i++ {
				out = append(out, elementNode{kind: kindButton})
			}
		}
		return out, nil
	}
	return nil, nil
}

// FindByLabelSubstring implements page.View.
func (v *View) FindByLabelSubstring(_ context.Context, scope page.Node, label string) ([]page.Node, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.fail("find"); err != nil {
		return nil, err
	}

	if scope != nil {
		ln, ok := scope.(listingNode)
		if !ok || ln.index >= len(v.Listings) {
			return nil, fmt.Errorf("unknown scope %v", scope)
		}
		l := v.Listings[ln.index]
		if l.AriaLabel != "" && strings.Contains(l.AriaLabel, label) {
			return []page.Node{elementNode{kind: kindLabeled, label: l.AriaLabel}}, nil
		}
		return nil, nil
	}

	match := func(l string) bool { return strings.Contains(l, label) }
	return v.labeled(match, true), nil
}

// FindByLabel implements page.View.
func (v *View) FindByLabel(_ context.Context, scope page.Node, label string) ([]page.Node, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.fail("find"); err != nil {
		return nil, err
	}
	if label == "" {
		return nil, nil
	}

	if scope != nil {
		ln, ok := scope.(listingNode)
		if !ok || ln.index >= len(v.Listings) {
			return nil, fmt.Errorf("unknown scope %v", scope)
		}
		var out []page.Node
		for _, c := range v.Listings[ln.index].Controls {
			if c == label {
				out = append(out, elementNode{kind: kindCardControl, label: c})
			}
		}
		return out, nil
	}

	match := func(l string) bool { return l == label }
	return v.labeled(match, false), nil
}

// labeled collects document-wide labeled elements in document order: card controls of the
// rendered listings, the detail apply button, then the flow controls.
func (v *View) labeled(match func(string) bool, withDetail bool) []page.Node {
	var out []page.Node
	for i := 0; i < v.Rendered && i < len(v.Listings); i++ {
		for _, c := range v.Listings[i].Controls {
			if match(c) {
				out = append(out, elementNode{kind: kindCardControl, label: c})
			}
		}
	}
	if d, ok := v.detailApply(); ok && withDetail && match(d.label) {
		out = append(out, d)
	}
	if s, ok := v.activeScreen(); ok {
		for _, l := range s.Labels {
			if match(l) {
				out = append(out, elementNode{kind: kindFlowControl, label: l})
			}
		}
	}
	return out
}

// TextContains implements page.View.
func (v *View) TextContains(_ context.Context, scope page.Node, text string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.fail("text"); err != nil {
		return false, err
	}
	ln, ok := scope.(listingNode)
	if !ok || ln.index >= len(v.Listings) {
		return false, nil
	}
	l := v.Listings[ln.index]
	all := strings.Join([]string{l.Title, l.Organization, l.Text}, " ")
	return strings.Contains(all, text), nil
}

// Text implements page.View.
func (v *View) Text(_ context.Context, n page.Node) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.fail("text"); err != nil {
		return "", err
	}
	el, ok := n.(elementNode)
	if !ok {
		return "", fmt.Errorf("not an element: %v", n)
	}
	return el.text, nil
}

// Click implements page.View. Selecting a listing opens its detail pane; the detail apply
// button opens the flow; a flow control advances it.
func (v *View) Click(_ context.Context, n page.Node) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.fail("click"); err != nil {
		return err
	}

	switch node := n.(type) {
	case listingNode:
		v.selected = node.index
		v.flow = nil
		v.clicks = append(v.clicks, "listing:"+v.Listings[node.index].Title)
	case elementNode:
		switch node.kind {
		case kindDetailApply:
			v.flow = v.Listings[v.selected].Flow
			v.pos = 0
		case kindFlowControl:
			if s, ok := v.activeScreen(); ok && !s.Sticky {
				v.pos++
			}
		}
		v.clicks = append(v.clicks, node.label)
	default:
		return fmt.Errorf("cannot click %v", n)
	}
	return nil
}

// ScrollToBottom renders PageSize more listings.
func (v *View) ScrollToBottom(_ context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.fail("scroll"); err != nil {
		return err
	}
	v.scrolls++
	v.Rendered += v.PageSize
	if v.Rendered > len(v.Listings) {
		v.Rendered = len(v.Listings)
	}
	return nil
}

// SetFail installs or clears (err == nil) a failure for op.
func (v *View) SetFail(op string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.Fail == nil {
		v.Fail = map[string]error{}
	}
	if err == nil {
		delete(v.Fail, op)
		return
	}
	v.Fail[op] = err
}

// Select opens the detail pane of listing i, as a click on its card would.
func (v *View) Select(i int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selected = i
	v.flow = nil
}

// Clicks returns the labels (or "listing:<title>") of every clicked element.
func (v *View) Clicks() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.clicks...)
}

// Navigations returns every URL passed to Navigate.
func (v *View) Navigations() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.navigations...)
}

// Scrolls returns how many times ScrollToBottom was called.
func (v *View) Scrolls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scrolls
}

var _ page.View = (*View)(nil)
