// Package backend describes the rendering backends the gateway fans out to
// and the contract the gateway speaks with them.
package backend

import (
	"context"
	"net/url"
	"time"

	"github.com/rendini/mashup/api/jsonvalue"
	"github.com/rendini/mashup/api/model"
)

// Backend is a named rendering service the gateway delegates to
type Backend struct {
	Name    string
	BaseURL *url.URL
}

// Endpoint resolves a path relative to the backend's base address
func (b Backend) Endpoint(path string) *url.URL {
	return b.BaseURL.JoinPath(path)
}

// RenderCall is the body of one render request to a backend
type RenderCall struct {
	Name    string                     `json:"name"`
	Data    map[string]jsonvalue.Value `json:"data,omitempty"`
	Context *model.RenderContext       `json:"context,omitempty"`
}

// Client speaks the rendering backend contract. Listing calls return the
// raw payload elements so that a malformed element can be dropped without
// losing the rest.
type Client interface {
	// Targets fetches GET <base>/render-targets
	Targets(ctx context.Context, b Backend) ([]jsonvalue.Value, error)

	// Render posts one render call to POST <base>/render
	Render(ctx context.Context, b Backend, call RenderCall) (jsonvalue.Value, error)

	// Sitemap fetches GET <base>/sitemap, forwarding since when set
	Sitemap(ctx context.Context, b Backend, since *time.Time) ([]jsonvalue.Value, error)

	// Index fetches GET <base>/index
	Index(ctx context.Context, b Backend) ([]jsonvalue.Value, error)
}
