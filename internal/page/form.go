package page

import (
	"context"
	"errors"
	"net/url"
	"sync"
)

// BodyField is the input every chat form must carry.
const BodyField = "body"

var ErrNoSubmitHandler = errors.New("form has no submit handler")

// Form holds named inputs in declaration order. Submitting a form never
// navigates; it only invokes the registered handler.
type Form struct {
	mu       sync.Mutex
	names    []string
	values   map[string]string
	onSubmit func(ctx context.Context) error
}

// NewForm declares a form with the given input names, all empty.
func NewForm(inputs ...string) *Form {
	f := &Form{values: make(map[string]string)}
	for _, name := range inputs {
		f.declare(name)
	}
	return f
}

func (f *Form) declare(name string) {
	if _, ok := f.values[name]; ok {
		return
	}
	f.names = append(f.names, name)
	f.values[name] = ""
}

// HasInput reports whether the form declares an input with this name.
func (f *Form) HasInput(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[name]
	return ok
}

// Set assigns an input value, declaring the input if needed.
func (f *Form) Set(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declare(name)
	f.values[name] = value
}

func (f *Form) Value(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[name]
}

// Values packages every input as form-encoded fields.
func (f *Form) Values() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := make(url.Values, len(f.names))
	for _, name := range f.names {
		v.Set(name, f.values[name])
	}
	return v
}

// OnSubmit replaces the submit handler.
func (f *Form) OnSubmit(handler func(ctx context.Context) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSubmit = handler
}

// Submit runs the submit handler on the caller's goroutine.
func (f *Form) Submit(ctx context.Context) error {
	f.mu.Lock()
	handler := f.onSubmit
	f.mu.Unlock()
	if handler == nil {
		return ErrNoSubmitHandler
	}
	return handler(ctx)
}
