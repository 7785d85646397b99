package server

import (
	"context"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/morikuni/failure/v2"
	"github.com/rendini/mashup/api"
	"github.com/rendini/mashup/api/backend"
	"github.com/rendini/mashup/api/jsonvalue"
	"github.com/rendini/mashup/api/model"
	"github.com/samber/lo"
)

// Facade is what the server needs from the gateway
type Facade interface {
	Backends() []backend.Backend
	ListTargets(ctx context.Context) ([]model.ListingEntry, error)
	Render(ctx context.Context, req model.RenderRequest) ([]model.RenderResult, error)
	RenderSitemap(ctx context.Context, filter model.SitemapFilter) (model.SitemapDocument, error)
	RenderIndex(ctx context.Context, namespace string) ([]model.ListingEntry, error)
}

var _ Facade = (*api.Gateway)(nil)

var backendType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Backend",
	Fields: graphql.Fields{
		"name":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"baseAddress": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

var renderTargetType = graphql.NewObject(graphql.ObjectConfig{
	Name: "RenderTarget",
	Fields: graphql.Fields{
		"name":          &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"template":      &graphql.Field{Type: graphql.String},
		"originBackend": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

var renderResultType = graphql.NewObject(graphql.ObjectConfig{
	Name: "RenderResult",
	Fields: graphql.Fields{
		"path":          &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"content":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"contentType":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"metadata":      &graphql.Field{Type: JSONScalar},
		"originBackend": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

var sitemapEntryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "SitemapEntry",
	Fields: graphql.Fields{
		"path":            &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"lastModified":    &graphql.Field{Type: DateTimeScalar},
		"priority":        &graphql.Field{Type: graphql.Float},
		"changeFrequency": &graphql.Field{Type: graphql.String},
		"params":          &graphql.Field{Type: JSONScalar},
		"originBackend":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

var sitemapType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Sitemap",
	Fields: graphql.Fields{
		"xml":         &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"entries":     &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(sitemapEntryType)))},
		"generatedAt": &graphql.Field{Type: graphql.NewNonNull(DateTimeScalar)},
		"count":       &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
	},
})

var indexEntryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "IndexEntry",
	Fields: graphql.Fields{
		"namespace":     &graphql.Field{Type: graphql.String},
		"path":          &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"contentType":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"lastModified":  &graphql.Field{Type: DateTimeScalar},
		"originBackend": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

var renderContextInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "RenderContextInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"device":    &graphql.InputObjectFieldConfig{Type: graphql.String},
		"locale":    &graphql.InputObjectFieldConfig{Type: graphql.String},
		"userAgent": &graphql.InputObjectFieldConfig{Type: graphql.String},
		"preview":   &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
	},
})

var sitemapFilterInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "SitemapFilterInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"backend":         &graphql.InputObjectFieldConfig{Type: graphql.String},
		"since":           &graphql.InputObjectFieldConfig{Type: DateTimeScalar},
		"includeVariants": &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
	},
})

// NewSchema builds the v1 GraphQL schema over facade
func NewSchema(facade Facade) (graphql.Schema, error) {
	r := &resolver{facade: facade}

	v1 := graphql.NewObject(graphql.ObjectConfig{
		Name: "V1Query",
		Fields: graphql.Fields{
			"backends": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(backendType))),
				Resolve: r.backends,
			},
			"renderTargets": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(renderTargetType))),
				Resolve: r.renderTargets,
			},
			"render": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(renderResultType))),
				Args: graphql.FieldConfigArgument{
					"paths":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String)))},
					"params":  &graphql.ArgumentConfig{Type: JSONScalar},
					"context": &graphql.ArgumentConfig{Type: renderContextInput},
					"backend": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: r.render,
			},
			"renderSitemap": &graphql.Field{
				Type: graphql.NewNonNull(sitemapType),
				Args: graphql.FieldConfigArgument{
					"filter": &graphql.ArgumentConfig{Type: sitemapFilterInput},
				},
				Resolve: r.renderSitemap,
			},
			"renderIndex": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(indexEntryType))),
				Args: graphql.FieldConfigArgument{
					"namespace": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: r.renderIndex,
			},
		},
	})

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"v1": &graphql.Field{
				Type: v1,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return map[string]interface{}{}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}

type resolver struct {
	facade Facade
}

func (r *resolver) backends(p graphql.ResolveParams) (interface{}, error) {
	return lo.Map(r.facade.Backends(), func(b backend.Backend, _ int) map[string]interface{} {
		return map[string]interface{}{
			"name":        b.Name,
			"baseAddress": b.BaseURL.String(),
		}
	}), nil
}

func (r *resolver) renderTargets(p graphql.ResolveParams) (interface{}, error) {
	targets, err := r.facade.ListTargets(p.Context)
	if err != nil {
		return nil, err
	}
	return lo.Map(targets, func(e model.ListingEntry, _ int) map[string]interface{} {
		return map[string]interface{}{
			"name":          e.Path,
			"template":      optString(e.Template),
			"originBackend": e.OriginBackend,
		}
	}), nil
}

func (r *resolver) render(p graphql.ResolveParams) (interface{}, error) {
	req := model.RenderRequest{
		Paths:   stringList(p.Args["paths"]),
		Backend: stringArg(p.Args, "backend"),
	}

	if raw, ok := p.Args["params"].(jsonvalue.Value); ok && !raw.IsNull() {
		if raw.Kind != jsonvalue.KindObject {
			return nil, failure.New(api.ErrInvalidRequest,
				failure.Message("params must be a JSON object"),
			)
		}
		req.Params = raw.Object
	}

	if in, ok := p.Args["context"].(map[string]interface{}); ok {
		rc := model.RenderContext{
			Device:    stringArg(in, "device"),
			Locale:    stringArg(in, "locale"),
			UserAgent: stringArg(in, "userAgent"),
		}
		if preview, ok := in["preview"].(bool); ok {
			rc.Preview = &preview
		}
		req.Context = &rc
	}

	results, err := r.facade.Render(p.Context, req)
	if err != nil {
		return nil, err
	}
	return lo.Map(results, func(res model.RenderResult, _ int) map[string]interface{} {
		return map[string]interface{}{
			"path":          res.Path,
			"content":       res.Content,
			"contentType":   res.ContentType,
			"metadata":      optObject(res.Metadata),
			"originBackend": res.OriginBackend,
		}
	}), nil
}

func (r *resolver) renderSitemap(p graphql.ResolveParams) (interface{}, error) {
	var filter model.SitemapFilter
	if in, ok := p.Args["filter"].(map[string]interface{}); ok {
		filter.Backend = stringArg(in, "backend")
		filter.IncludeVariants, _ = in["includeVariants"].(bool)
		if since, ok := in["since"].(time.Time); ok {
			filter.Since = &since
		}
	}

	doc, err := r.facade.RenderSitemap(p.Context, filter)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"xml":         doc.XML,
		"entries":     lo.Map(doc.Entries, func(e model.ListingEntry, _ int) map[string]interface{} { return sitemapEntryView(e) }),
		"generatedAt": doc.GeneratedAt,
		"count":       doc.Count(),
	}, nil
}

func (r *resolver) renderIndex(p graphql.ResolveParams) (interface{}, error) {
	entries, err := r.facade.RenderIndex(p.Context, stringArg(p.Args, "namespace"))
	if err != nil {
		return nil, err
	}
	return lo.Map(entries, func(e model.ListingEntry, _ int) map[string]interface{} {
		return map[string]interface{}{
			"namespace":     optString(e.Namespace),
			"path":          e.Path,
			"contentType":   e.ContentType,
			"lastModified":  optTime(e.LastModified),
			"originBackend": e.OriginBackend,
		}
	}), nil
}

func sitemapEntryView(e model.ListingEntry) map[string]interface{} {
	return map[string]interface{}{
		"path":            e.Path,
		"lastModified":    optTime(e.LastModified),
		"priority":        optFloat(e.Priority),
		"changeFrequency": optString(e.ChangeFrequency),
		"params":          optObject(e.Params),
		"originBackend":   e.OriginBackend,
	}
}

// Absent optional values must reach the executor as untyped nil so that
// they resolve to null.

func optString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func optTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func optFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func optObject(m map[string]jsonvalue.Value) interface{} {
	if m == nil {
		return nil
	}
	return m
}

func stringArg(args map[string]interface{}, name string) string {
	s, _ := args[name].(string)
	return s
}

func stringList(v interface{}) []string {
	items, _ := v.([]interface{})
	return lo.FilterMap(items, func(item interface{}, _ int) (string, bool) {
		s, ok := item.(string)
		return s, ok
	})
}
