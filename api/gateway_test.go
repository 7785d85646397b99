package api_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/morikuni/failure/v2"
	"github.com/rendini/mashup/api"
	"github.com/rendini/mashup/api/backend"
	"github.com/rendini/mashup/api/backendimpl"
	"github.com/rendini/mashup/api/fanout"
	"github.com/rendini/mashup/api/jsonvalue"
	"github.com/rendini/mashup/api/model"
	"github.com/rendini/mashup/internal/backendtest"
)

func newGateway(t *testing.T, opts []api.Option, servers ...*backendtest.Server) *api.Gateway {
	t.Helper()
	backends := make([]backend.Backend, 0, len(servers))
	for _, s := range servers {
		backends = append(backends, s.Backend())
	}
	reg, err := backend.NewRegistry(backends...)
	if err != nil {
		t.Fatal(err)
	}
	return api.NewGateway(reg, backendimpl.New("rendini-test"), opts...)
}

func unreachable(t *testing.T, name string) backend.Backend {
	t.Helper()
	b, err := backend.Parse(name, "http://127.0.0.1:1/api")
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestListTargetsPartialFailure(t *testing.T) {
	a := backendtest.New(t, "A", backendtest.WithTargets([]any{
		map[string]any{"name": "home", "template": "home.njk"},
		map[string]any{"name": "about", "template": "about.njk"},
		map[string]any{"name": "contact"},
	}))

	reg, err := backend.NewRegistry(a.Backend(), unreachable(t, "B"))
	if err != nil {
		t.Fatal(err)
	}
	g := api.NewGateway(reg, backendimpl.New(""))

	got, err := g.ListTargets(context.Background())
	if err != nil {
		t.Fatalf("ListTargets() error = %v", err)
	}
	want := []model.ListingEntry{
		{Path: "home", Template: "home.njk", OriginBackend: "A"},
		{Path: "about", Template: "about.njk", OriginBackend: "A"},
		{Path: "contact", OriginBackend: "A"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListTargets() mismatch (-want +got):\n%s", diff)
	}
}

type forbiddenClient struct {
	t *testing.T
}

func (c forbiddenClient) Targets(context.Context, backend.Backend) ([]jsonvalue.Value, error) {
	c.t.Error("Targets called")
	return nil, nil
}

func (c forbiddenClient) Render(context.Context, backend.Backend, backend.RenderCall) (jsonvalue.Value, error) {
	c.t.Error("Render called")
	return jsonvalue.Value{}, nil
}

func (c forbiddenClient) Sitemap(context.Context, backend.Backend, *time.Time) ([]jsonvalue.Value, error) {
	c.t.Error("Sitemap called")
	return nil, nil
}

func (c forbiddenClient) Index(context.Context, backend.Backend) ([]jsonvalue.Value, error) {
	c.t.Error("Index called")
	return nil, nil
}

func TestEmptyRegistry(t *testing.T) {
	reg, err := backend.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	g := api.NewGateway(reg, forbiddenClient{t})
	ctx := context.Background()

	targets, err := g.ListTargets(ctx)
	if err != nil || len(targets) != 0 {
		t.Errorf("ListTargets() = %v, %v; want empty", targets, err)
	}
	results, err := g.Render(ctx, model.RenderRequest{Paths: []string{"home"}})
	if err != nil || len(results) != 0 {
		t.Errorf("Render() = %v, %v; want empty", results, err)
	}
	doc, err := g.RenderSitemap(ctx, model.SitemapFilter{})
	if err != nil || doc.Count() != 0 {
		t.Errorf("RenderSitemap() = %v, %v; want empty", doc.Entries, err)
	}
	index, err := g.RenderIndex(ctx, "")
	if err != nil || len(index) != 0 {
		t.Errorf("RenderIndex() = %v, %v; want empty", index, err)
	}
	if len(g.Backends()) != 0 {
		t.Errorf("Backends() = %v, want empty", g.Backends())
	}
}

func TestRenderBackendFilter(t *testing.T) {
	a := backendtest.New(t, "A")
	b := backendtest.New(t, "B")
	g := newGateway(t, nil, a, b)

	got, err := g.Render(context.Background(), model.RenderRequest{Paths: []string{"home"}, Backend: "A"})
	if err != nil {
		t.Fatal(err)
	}
	want := []model.RenderResult{
		{Path: "home", Content: "<p>A:home</p>", ContentType: "text/html", OriginBackend: "A"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
	if a.Calls() != 1 || b.Calls() != 0 {
		t.Errorf("calls A=%d B=%d, want A=1 B=0", a.Calls(), b.Calls())
	}

	got, err = g.Render(context.Background(), model.RenderRequest{Paths: []string{"home"}, Backend: "C"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("Render() with unknown backend = %v, want empty", got)
	}
	if a.Calls() != 1 || b.Calls() != 0 {
		t.Errorf("unknown backend issued calls: A=%d B=%d", a.Calls(), b.Calls())
	}
}

func TestRenderAllBackends(t *testing.T) {
	a := backendtest.New(t, "A", backendtest.WithDelay(30*time.Millisecond))
	b := backendtest.New(t, "B", backendtest.WithRender(func(call backend.RenderCall) (int, any) {
		if call.Name == "broken" {
			return http.StatusInternalServerError, map[string]any{}
		}
		return http.StatusOK, map[string]any{"name": call.Name, "html": "<h1>" + call.Name + "</h1>"}
	}))
	g := newGateway(t, nil, a, b)

	preview := true
	got, err := g.Render(context.Background(), model.RenderRequest{
		Paths:   []string{"home", "broken"},
		Params:  map[string]jsonvalue.Value{"title": jsonvalue.String("Hello")},
		Context: &model.RenderContext{Device: "mobile", Preview: &preview},
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []model.RenderResult{
		{Path: "home", Content: "<p>A:home</p>", ContentType: "text/html", OriginBackend: "A"},
		{Path: "broken", Content: "<p>A:broken</p>", ContentType: "text/html", OriginBackend: "A"},
		{Path: "home", Content: "<h1>home</h1>", ContentType: "text/html", OriginBackend: "B"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}

	calls := b.Renders()
	if len(calls) != 2 {
		t.Fatalf("B received %d render calls, want 2", len(calls))
	}
	if calls[0].Context == nil || calls[0].Context.Device != "mobile" {
		t.Errorf("context not forwarded: %+v", calls[0].Context)
	}
	if title, _ := calls[0].Data["title"]; title.String != "Hello" {
		t.Errorf("params not forwarded: %#v", calls[0].Data)
	}
}

func TestRenderTimeoutIsPerPath(t *testing.T) {
	a := backendtest.New(t, "A", backendtest.WithDelay(40*time.Millisecond))
	g := newGateway(t, []api.Option{api.WithExecutor(&fanout.Executor{Timeout: 100 * time.Millisecond})}, a)

	got, err := g.Render(context.Background(), model.RenderRequest{
		Paths: []string{"/1", "/2", "/3", "/4"},
	})
	if err != nil {
		t.Fatal(err)
	}

	var paths []string
	for _, r := range got {
		paths = append(paths, r.Path)
	}
	if diff := cmp.Diff([]string{"/1", "/2", "/3", "/4"}, paths); diff != "" {
		t.Errorf("rendered paths mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderSlowPathDropsOnlyThatPath(t *testing.T) {
	a := backendtest.New(t, "A", backendtest.WithRender(func(call backend.RenderCall) (int, any) {
		if call.Name == "/slow" {
			time.Sleep(300 * time.Millisecond)
		}
		return http.StatusOK, map[string]any{"content": call.Name, "contentType": "text/plain"}
	}))
	g := newGateway(t, []api.Option{api.WithExecutor(&fanout.Executor{Timeout: 50 * time.Millisecond})}, a)

	got, err := g.Render(context.Background(), model.RenderRequest{
		Paths: []string{"/1", "/slow", "/2"},
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []model.RenderResult{
		{Path: "/1", Content: "/1", ContentType: "text/plain", OriginBackend: "A"},
		{Path: "/2", Content: "/2", ContentType: "text/plain", OriginBackend: "A"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderRejectsEmptyPath(t *testing.T) {
	a := backendtest.New(t, "A")
	g := newGateway(t, nil, a)

	_, err := g.Render(context.Background(), model.RenderRequest{Paths: []string{"home", ""}})
	if !failure.Is(err, api.ErrInvalidRequest) {
		t.Errorf("Render() error = %v, want %v", err, api.ErrInvalidRequest)
	}
	if a.Calls() != 0 {
		t.Errorf("invalid request reached the backend %d times", a.Calls())
	}
}

func TestRenderSitemap(t *testing.T) {
	a := backendtest.New(t, "A", backendtest.WithSitemap([]any{
		map[string]any{"path": "/", "lastModified": "2024-03-01T00:00:00Z", "priority": 1},
		map[string]any{"path": "/about", "lastModified": "not a date"},
		map[string]any{"path": "/blog", "lastModified": "2024-01-15"},
	}))
	b := backendtest.New(t, "B", backendtest.WithSitemap([]any{
		map[string]any{"path": "/", "lastModified": "2024-04-01T00:00:00Z", "changefreq": "daily"},
		map[string]any{"path": "/shop"},
	}))
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	g := newGateway(t, []api.Option{api.WithClock(func() time.Time { return now })}, a, b)

	doc, err := g.RenderSitemap(context.Background(), model.SitemapFilter{})
	if err != nil {
		t.Fatal(err)
	}
	got := make([]string, 0, doc.Count())
	for _, e := range doc.Entries {
		got = append(got, e.OriginBackend+":"+e.Path)
	}
	if diff := cmp.Diff([]string{"A:/", "A:/blog", "B:/shop"}, got); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
	if !doc.GeneratedAt.Equal(now) {
		t.Errorf("GeneratedAt = %v, want %v", doc.GeneratedAt, now)
	}
	if !strings.Contains(doc.XML, "<loc>/blog</loc>") {
		t.Errorf("XML missing /blog:\n%s", doc.XML)
	}

	since := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	doc, err = g.RenderSitemap(context.Background(), model.SitemapFilter{Since: &since, IncludeVariants: true})
	if err != nil {
		t.Fatal(err)
	}
	got = got[:0]
	for _, e := range doc.Entries {
		got = append(got, e.OriginBackend+":"+e.Path)
	}
	if diff := cmp.Diff([]string{"A:/", "B:/"}, got); diff != "" {
		t.Errorf("since entries mismatch (-want +got):\n%s", diff)
	}
	if q := a.Query("sitemap").Get("since"); q != "2024-02-01T00:00:00Z" {
		t.Errorf("since forwarded as %q", q)
	}
}

func TestRenderSitemapBackendFilterSkipsOthers(t *testing.T) {
	a := backendtest.New(t, "A", backendtest.WithSitemap([]any{map[string]any{"path": "/a"}}))
	b := backendtest.New(t, "B", backendtest.WithSitemap([]any{map[string]any{"path": "/b"}}))
	g := newGateway(t, nil, a, b)

	doc, err := g.RenderSitemap(context.Background(), model.SitemapFilter{Backend: "B"})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Count() != 1 || doc.Entries[0].Path != "/b" {
		t.Errorf("entries = %+v, want only /b", doc.Entries)
	}
	if a.Calls() != 0 {
		t.Errorf("A called %d times, want 0", a.Calls())
	}
}

func TestRenderIndex(t *testing.T) {
	a := backendtest.New(t, "A", backendtest.WithIndex([]any{
		map[string]any{"namespace": "docs", "path": "/docs/a", "contentType": "text/html"},
		map[string]any{"namespace": "blog", "path": "/blog/a", "contentType": "text/html"},
		map[string]any{"namespace": "docs", "path": "/docs/broken"},
	}))
	b := backendtest.New(t, "B", backendtest.WithIndex([]any{
		map[string]any{"namespace": "docs", "path": "/docs/b", "contentType": "text/markdown"},
	}))
	g := newGateway(t, nil, a, b)

	all, err := g.RenderIndex(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("RenderIndex() returned %d entries, want 3", len(all))
	}

	docs, err := g.RenderIndex(context.Background(), "docs")
	if err != nil {
		t.Fatal(err)
	}
	want := []model.ListingEntry{
		{Namespace: "docs", Path: "/docs/a", ContentType: "text/html", OriginBackend: "A"},
		{Namespace: "docs", Path: "/docs/b", ContentType: "text/markdown", OriginBackend: "B"},
	}
	if diff := cmp.Diff(want, docs); diff != "" {
		t.Errorf("RenderIndex(docs) mismatch (-want +got):\n%s", diff)
	}
}

func TestTimedOutBackendIsEmptyContribution(t *testing.T) {
	slow := backendtest.New(t, "slow", backendtest.WithDelay(2*time.Second),
		backendtest.WithTargets([]any{map[string]any{"name": "late"}}))
	fast := backendtest.New(t, "fast", backendtest.WithTargets([]any{map[string]any{"name": "home"}}))
	g := newGateway(t, []api.Option{api.WithExecutor(&fanout.Executor{Timeout: 100 * time.Millisecond})}, slow, fast)

	got, err := g.ListTargets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]model.ListingEntry{{Path: "home", OriginBackend: "fast"}}, got); diff != "" {
		t.Errorf("ListTargets() mismatch (-want +got):\n%s", diff)
	}
}

func TestCanceledCaller(t *testing.T) {
	a := backendtest.New(t, "A")
	g := newGateway(t, nil, a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.ListTargets(ctx); !failure.Is(err, api.ErrCanceled) {
		t.Errorf("ListTargets() error = %v, want %v", err, api.ErrCanceled)
	}
	if a.Calls() != 0 {
		t.Errorf("canceled request reached the backend %d times", a.Calls())
	}
}
