package page

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Document is a read-only View over an HTML snapshot. Clicks and scrolls are recorded
// but change nothing, so it suits offline scanning of saved result pages.
type Document struct {
	mu       sync.Mutex
	url      string
	doc      *goquery.Document
	markers  Markers
	clicks   int
	scrolled int
}

// NewDocument parses an HTML snapshot taken from url.
func NewDocument(url string, r io.Reader, markers Markers) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &Error{Op: "parse", Message: "failed to parse HTML", Cause: err}
	}
	return &Document{url: url, doc: doc, markers: markers}, nil
}

// ParseDocument is NewDocument over an in-memory string.
func ParseDocument(url, html string, markers Markers) (*Document, error) {
	return NewDocument(url, strings.NewReader(html), markers)
}

// Location returns the URL the snapshot was taken from, or the last navigation target.
func (d *Document) Location(_ context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

// Navigate only updates the reported location; a snapshot cannot load new content.
func (d *Document) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
	return nil
}

// FindByRole returns the elements matching the role's selector.
func (d *Document) FindByRole(_ context.Context, scope Node, role Role) ([]Node, error) {
	sel := d.markers.Selector(role)
	if sel == "" {
		return nil, nil
	}
	root, err := d.scope("find", scope)
	if err != nil {
		return nil, err
	}
	return nodes(root.Find(sel)), nil
}

// FindByLabelSubstring returns the elements whose aria-label contains label.
func (d *Document) FindByLabelSubstring(_ context.Context, scope Node, label string) ([]Node, error) {
	if label == "" {
		return nil, nil
	}
	root, err := d.scope("find", scope)
	if err != nil {
		return nil, err
	}
	return nodes(root.Find(labelSelector(label))), nil
}

// FindByLabel returns the buttons whose aria-label equals label.
func (d *Document) FindByLabel(_ context.Context, scope Node, label string) ([]Node, error) {
	if label == "" {
		return nil, nil
	}
	root, err := d.scope("find", scope)
	if err != nil {
		return nil, err
	}
	return nodes(root.Find(buttonLabelSelector(label))), nil
}

// TextContains reports whether the text under scope contains text.
func (d *Document) TextContains(_ context.Context, scope Node, text string) (bool, error) {
	root, err := d.scope("text", scope)
	if err != nil {
		return false, err
	}
	return strings.Contains(normalizeText(root.Text()), text), nil
}

// Text returns the normalized text of n.
func (d *Document) Text(_ context.Context, n Node) (string, error) {
	sel, ok := n.(*goquery.Selection)
	if !ok || sel == nil {
		return "", foreignNode("text", n)
	}
	return normalizeText(sel.Text()), nil
}

// Click records the activation.
func (d *Document) Click(_ context.Context, n Node) error {
	if _, ok := n.(*goquery.Selection); !ok {
		return foreignNode("click", n)
	}
	d.mu.Lock()
	d.clicks++
	d.mu.Unlock()
	return nil
}

// ScrollToBottom records the request.
func (d *Document) ScrollToBottom(_ context.Context) error {
	d.mu.Lock()
	d.scrolled++
	d.mu.Unlock()
	return nil
}

// Clicks returns how many elements were activated.
func (d *Document) Clicks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clicks
}

// HTML returns the serialized snapshot.
func (d *Document) HTML() (string, error) {
	html, err := d.doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to serialize document: %w", err)
	}
	return html, nil
}

func (d *Document) scope(op string, scope Node) (*goquery.Selection, error) {
	if scope == nil {
		return d.doc.Selection, nil
	}
	sel, ok := scope.(*goquery.Selection)
	if !ok || sel == nil {
		return nil, foreignNode(op, scope)
	}
	return sel, nil
}

func nodes(sel *goquery.Selection) []Node {
	out := make([]Node, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}
