package module

import (
	"errors"
	"fmt"
)

// Registry is the fixed, ordered set of activated modules.
type Registry struct {
	handles []*Handle
}

// NewRegistry takes ownership of handles. Names must be unique and non-empty.
func NewRegistry(handles ...*Handle) (*Registry, error) {
	seen := make(map[string]struct{}, len(handles))
	var errs []error
	for _, h := range handles {
		if h == nil {
			errs = append(errs, errors.New("nil module handle"))
			continue
		}
		if h.Name() == "" {
			errs = append(errs, errors.New("module handle has an empty name"))
			continue
		}
		if _, dup := seen[h.Name()]; dup {
			errs = append(errs, fmt.Errorf("module %q registered twice", h.Name()))
			continue
		}
		seen[h.Name()] = struct{}{}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return &Registry{handles: append([]*Handle(nil), handles...)}, nil
}

// Handles returns the handles in activation order.
func (r *Registry) Handles() []*Handle {
	return append([]*Handle(nil), r.handles...)
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.handles))
	for i, h := range r.handles {
		names[i] = h.Name()
	}
	return names
}

func (r *Registry) Len() int {
	return len(r.handles)
}

// Close stops every module in reverse activation order.
func (r *Registry) Close() {
	for i := len(r.handles) - 1; i >= 0; i-- {
		r.handles[i].Stop()
	}
}
