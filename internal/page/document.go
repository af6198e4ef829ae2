// Package page models the parts of a web page the chat popup touches: a
// scrollable message panel and a submission form, located by selector.
package page

import (
	"fmt"
	"sync"
)

// Document maps selector strings to page elements. Selectors are matched
// literally, so "#chat-window" and ".chat-form" are just keys.
type Document struct {
	mu     sync.RWMutex
	panels map[string]*Panel
	forms  map[string]*Form
}

func NewDocument() *Document {
	return &Document{
		panels: make(map[string]*Panel),
		forms:  make(map[string]*Form),
	}
}

// Register attaches an element under a selector. Only *Panel and *Form are
// accepted.
func (d *Document) Register(selector string, el any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch e := el.(type) {
	case *Panel:
		d.panels[selector] = e
	case *Form:
		d.forms[selector] = e
	default:
		return fmt.Errorf("register %s: unsupported element %T", selector, el)
	}
	return nil
}

// Panel returns the panel registered under selector, or nil.
func (d *Document) Panel(selector string) *Panel {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.panels[selector]
}

// Form returns the form registered under selector, or nil.
func (d *Document) Form(selector string) *Form {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.forms[selector]
}
