package backend

import (
	"net/url"

	"github.com/morikuni/failure/v2"
	"github.com/samber/lo"
)

// ErrorCode defines error types for backend registration
type ErrorCode string

const (
	// ErrInvalidBackend represents a backend definition that cannot be registered
	ErrInvalidBackend ErrorCode = "InvalidBackend"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

// Registry is the fixed set of backends the gateway fans out to.
// It is read-only after construction and safe for concurrent use.
type Registry struct {
	backends []Backend
}

// NewRegistry validates the given backends and keeps them in order
func NewRegistry(backends ...Backend) (*Registry, error) {
	seen := make(map[string]struct{}, len(backends))
	for _, b := range backends {
		if b.Name == "" {
			return nil, failure.New(ErrInvalidBackend,
				failure.Message("Backend name is required"),
			)
		}
		if _, ok := seen[b.Name]; ok {
			return nil, failure.New(ErrInvalidBackend,
				failure.Message("Backend name is registered twice"),
				failure.Context{"backend": b.Name},
			)
		}
		seen[b.Name] = struct{}{}

		if b.BaseURL == nil || !b.BaseURL.IsAbs() || b.BaseURL.Host == "" {
			return nil, failure.New(ErrInvalidBackend,
				failure.Message("Backend base address must be an absolute URL"),
				failure.Context{"backend": b.Name},
			)
		}
	}

	return &Registry{backends: append([]Backend(nil), backends...)}, nil
}

// Parse builds a Backend from a name and a base address
func Parse(name, rawURL string) (Backend, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Backend{}, failure.Translate(err, ErrInvalidBackend,
			failure.Message("Backend base address is not a valid URL"),
			failure.Context{"backend": name, "url": rawURL},
		)
	}
	return Backend{Name: name, BaseURL: u}, nil
}

// List returns all backends in registration order
func (r *Registry) List() []Backend {
	if r == nil {
		return nil
	}
	return append([]Backend(nil), r.backends...)
}

// Find looks up a backend by name
func (r *Registry) Find(name string) (Backend, bool) {
	if r == nil {
		return Backend{}, false
	}
	return lo.Find(r.backends, func(b Backend) bool {
		return b.Name == name
	})
}

// Select resolves the working set for a backend filter: every backend when
// the filter is empty, the matching backend otherwise. An unknown name
// yields an empty set rather than an error.
func (r *Registry) Select(filter string) []Backend {
	if filter == "" {
		return r.List()
	}
	if b, ok := r.Find(filter); ok {
		return []Backend{b}
	}
	return nil
}

// Names returns the registered backend names in order
func (r *Registry) Names() []string {
	return lo.Map(r.List(), func(b Backend, _ int) string {
		return b.Name
	})
}
