// Package cli implements the rendini command line.
//
// The cli package provides:
// - the serve command running the HTTP/GraphQL gateway
// - one-shot commands querying the backends directly (targets, render,
// sitemap, index, backends)
// - terminal rendering of rendered pages with a searchable pager
// - the mcp command exposing the same operations to MCP clients
package cli
