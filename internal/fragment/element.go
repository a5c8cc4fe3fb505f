package fragment

import (
	"context"
	"io"
	"sync"

	"github.com/a-h/templ"
)

var _ templ.Component = (*Element)(nil)

// Element is an in-memory Target. Its content can be embedded in templ pages
// as raw markup.
type Element struct {
	mu     sync.RWMutex
	html   string
	writes int
}

// NewElement returns an Element holding initial.
func NewElement(initial string) *Element {
	return &Element{html: initial}
}

// SetHTML replaces the element content.
func (e *Element) SetHTML(markup string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.html = markup
	e.writes++
}

// HTML returns the current content.
func (e *Element) HTML() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.html
}

func (e *Element) writeCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.writes
}

// Render writes the current content without escaping.
func (e *Element) Render(_ context.Context, w io.Writer) error {
	_, err := io.WriteString(w, e.HTML())
	return err
}
