// Package model defines the gateway's unified output schema.
package model

import (
	"time"

	"github.com/rendini/mashup/api/jsonvalue"
)

// RenderContext carries optional hints forwarded to the rendering backends
type RenderContext struct {
	Device    string `json:"device,omitempty"`
	Locale    string `json:"locale,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	Preview   *bool  `json:"preview,omitempty"`
}

// IsZero reports whether no hint is set
func (c RenderContext) IsZero() bool {
	return c.Device == "" && c.Locale == "" && c.UserAgent == "" && c.Preview == nil
}

// RenderRequest is one logical render call, possibly split across backends
type RenderRequest struct {
	Paths   []string
	Params  map[string]jsonvalue.Value
	Context *RenderContext

	// Backend restricts the call to a single backend by name. Empty means all.
	Backend string
}

// RenderResult is the output of one (path, backend) pair that rendered successfully
type RenderResult struct {
	Path          string                     `json:"path"`
	Content       string                     `json:"content"`
	ContentType   string                     `json:"contentType"`
	Metadata      map[string]jsonvalue.Value `json:"metadata,omitempty"`
	OriginBackend string                     `json:"originBackend"`
}

// ListingEntry describes one addressable rendered path. It is used for
// render targets, sitemap entries and index entries; fields a listing does
// not report stay at their zero value, which means absent.
type ListingEntry struct {
	Path string `json:"path"`

	// Template is set on render targets
	Template string `json:"template,omitempty"`

	// Namespace and ContentType are set on index entries
	Namespace   string `json:"namespace,omitempty"`
	ContentType string `json:"contentType,omitempty"`

	LastModified    *time.Time                 `json:"lastModified,omitempty"`
	Priority        *float64                   `json:"priority,omitempty"`
	ChangeFrequency string                     `json:"changeFrequency,omitempty"`
	Params          map[string]jsonvalue.Value `json:"params,omitempty"`

	OriginBackend string `json:"originBackend"`
}

// SitemapFilter narrows a synthesized sitemap
type SitemapFilter struct {
	// Backend keeps only entries reported by the named backend
	Backend string

	// Since keeps only entries modified at or after the instant. Entries
	// without a modification time are dropped when Since is set.
	Since *time.Time

	// IncludeVariants keeps every backend's entry for a path instead of the
	// first one in registration order.
	IncludeVariants bool
}

// SitemapDocument is a synthesized sitemap
type SitemapDocument struct {
	Entries     []ListingEntry `json:"entries"`
	GeneratedAt time.Time      `json:"generatedAt"`
	XML         string         `json:"xml"`
}

// Count returns the number of entries that survived filtering
func (d SitemapDocument) Count() int {
	return len(d.Entries)
}
