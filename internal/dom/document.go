// Package dom exposes elements of a parsed HTML page as fragment targets.
package dom

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// ErrElementNotFound is returned when no element carries the requested id.
var ErrElementNotFound = errors.New("element not found")

// Document is a parsed host page. All element mutations go through the
// document lock, so elements may be loaded concurrently.
type Document struct {
	mu   sync.Mutex
	root *html.Node
}

// Parse reads a host page.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{root: root}, nil
}

// Element returns the element whose id attribute equals id.
func (d *Document) Element(id string) (*Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	node := findByID(d.root, id)
	if node == nil {
		return nil, fmt.Errorf("%w: #%s", ErrElementNotFound, id)
	}
	return &Element{doc: d, node: node}, nil
}

// Render writes the whole document.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Namespace == "" && attr.Key == "id" && attr.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// Element is a node of a Document. It satisfies fragment.Target.
type Element struct {
	doc  *Document
	node *html.Node
}

// SetHTML replaces the element's children with markup parsed in the
// element's context. An empty string removes all children.
func (e *Element) SetHTML(markup string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	nodes, err := html.ParseFragment(strings.NewReader(markup), e.node)
	if err != nil {
		return
	}
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
	for _, n := range nodes {
		e.node.AppendChild(n)
	}
}

// InnerHTML renders the element's children.
func (e *Element) InnerHTML() (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	var b strings.Builder
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", fmt.Errorf("render element: %w", err)
		}
	}
	return b.String(), nil
}
