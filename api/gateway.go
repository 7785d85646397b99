package api

import (
	"context"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/rendini/mashup/api/backend"
	"github.com/rendini/mashup/api/fanout"
	"github.com/rendini/mashup/api/model"
	"github.com/rendini/mashup/api/normalize"
	"github.com/rendini/mashup/api/sitemap"
	"github.com/rendini/mashup/log"
	"github.com/samber/lo"
)

// Gateway is the only entry point external callers use. Backend failures
// never surface as errors: a backend that fails contributes nothing.
type Gateway struct {
	registry *backend.Registry
	client   backend.Client
	executor *fanout.Executor
	now      func() time.Time
}

// Option configures a Gateway
type Option func(*Gateway)

// WithExecutor replaces the fan-out policy
func WithExecutor(e *fanout.Executor) Option {
	return func(g *Gateway) { g.executor = e }
}

// WithClock sets the clock used for sitemap generation times
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// NewGateway creates a Gateway over the registry's backends
func NewGateway(registry *backend.Registry, client backend.Client, opts ...Option) *Gateway {
	g := &Gateway{
		registry: registry,
		client:   client,
		executor: &fanout.Executor{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Backends returns the configured backends in registration order
func (g *Gateway) Backends() []backend.Backend {
	return g.registry.List()
}

// ListTargets returns every backend's render targets
func (g *Gateway) ListTargets(ctx context.Context) ([]model.ListingEntry, error) {
	const op = "renderTargets"
	if err := checkCanceled(ctx, op); err != nil {
		return nil, err
	}

	targets := fanout.Run(ctx, g.executor, op, g.registry.List(),
		func(ctx context.Context, b backend.Backend) ([]model.ListingEntry, error) {
			raw, err := g.client.Targets(ctx, b)
			if err != nil {
				return nil, err
			}
			return normalize.Targets(ctx, raw, b.Name), nil
		})

	if err := checkCanceled(ctx, op); err != nil {
		return nil, err
	}
	return nonNil(targets), nil
}

// Render renders every requested path on every selected backend. Paths are
// rendered in order within a backend; a path that fails on one backend only
// drops that (path, backend) result.
func (g *Gateway) Render(ctx context.Context, req model.RenderRequest) ([]model.RenderResult, error) {
	const op = "render"
	if err := checkCanceled(ctx, op); err != nil {
		return nil, err
	}
	if _, ok := lo.Find(req.Paths, func(p string) bool { return p == "" }); ok {
		return nil, failure.New(ErrInvalidRequest,
			failure.Message("Render paths must not be empty"),
		)
	}

	selected := g.registry.Select(req.Backend)
	if len(req.Paths) == 0 {
		selected = nil
	}

	renderContext := req.Context
	if renderContext != nil && renderContext.IsZero() {
		renderContext = nil
	}

	// Each path is its own call with its own deadline; the branch deadline
	// covers all of them.
	callTimeout := g.executor.CallTimeout()
	results := fanout.Run(ctx, g.executor.ForCalls(len(req.Paths)), op, selected,
		func(ctx context.Context, b backend.Backend) ([]model.RenderResult, error) {
			logger := log.FromContext(ctx)
			out := make([]model.RenderResult, 0, len(req.Paths))
			for i, path := range req.Paths {
				if err := ctx.Err(); err != nil {
					logger.Warn("Render stopped", "backend", b.Name, "rendered", len(out), "skipped", len(req.Paths)-i, "error", err)
					return out, nil
				}

				callCtx, cancel := context.WithTimeout(ctx, callTimeout)
				raw, err := g.client.Render(callCtx, b, backend.RenderCall{
					Name:    path,
					Data:    req.Params,
					Context: renderContext,
				})
				cancel()
				if err != nil {
					logger.Warn("Render failed", "backend", b.Name, "path", path, "error", err)
					continue
				}

				result, err := normalize.RenderResult(raw, path, b.Name)
				if err != nil {
					logger.Warn("Dropping malformed render result", "backend", b.Name, "path", path, "error", err)
					continue
				}
				out = append(out, result)
			}
			return out, nil
		})

	if err := checkCanceled(ctx, op); err != nil {
		return nil, err
	}
	return nonNil(results), nil
}

// RenderSitemap gathers every backend's sitemap listing and synthesizes one
// filtered, deduplicated document. The backend filter also limits which
// backends are asked.
func (g *Gateway) RenderSitemap(ctx context.Context, filter model.SitemapFilter) (model.SitemapDocument, error) {
	const op = "renderSitemap"
	if err := checkCanceled(ctx, op); err != nil {
		return model.SitemapDocument{}, err
	}

	entries := fanout.Run(ctx, g.executor, op, g.registry.Select(filter.Backend),
		func(ctx context.Context, b backend.Backend) ([]model.ListingEntry, error) {
			raw, err := g.client.Sitemap(ctx, b, filter.Since)
			if err != nil {
				return nil, err
			}
			return normalize.Listings(ctx, raw, b.Name), nil
		})

	if err := checkCanceled(ctx, op); err != nil {
		return model.SitemapDocument{}, err
	}

	doc, err := sitemap.Synthesize(entries, filter, g.now())
	if err != nil {
		return model.SitemapDocument{}, err
	}
	doc.Entries = nonNil(doc.Entries)
	return doc, nil
}

// RenderIndex returns every backend's index entries, optionally limited to
// one namespace
func (g *Gateway) RenderIndex(ctx context.Context, namespace string) ([]model.ListingEntry, error) {
	const op = "renderIndex"
	if err := checkCanceled(ctx, op); err != nil {
		return nil, err
	}

	entries := fanout.Run(ctx, g.executor, op, g.registry.List(),
		func(ctx context.Context, b backend.Backend) ([]model.ListingEntry, error) {
			raw, err := g.client.Index(ctx, b)
			if err != nil {
				return nil, err
			}
			return normalize.IndexEntries(ctx, raw, b.Name), nil
		})

	if err := checkCanceled(ctx, op); err != nil {
		return nil, err
	}

	if namespace != "" {
		entries = lo.Filter(entries, func(e model.ListingEntry, _ int) bool {
			return e.Namespace == namespace
		})
	}
	return nonNil(entries), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
