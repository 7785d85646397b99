package sitemap

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rendini/mashup/api/model"
)

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func ptr[T any](v T) *T {
	return &v
}

func paths(entries []model.ListingEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.OriginBackend+":"+e.Path)
	}
	return out
}

func TestFilter(t *testing.T) {
	entries := []model.ListingEntry{
		{Path: "/a", LastModified: at("2024-01-01T00:00:00Z"), OriginBackend: "A"},
		{Path: "/b", LastModified: at("2024-03-01T00:00:00Z"), OriginBackend: "A"},
		{Path: "/a", LastModified: at("2024-02-01T00:00:00Z"), OriginBackend: "B"},
		{Path: "/c", OriginBackend: "B"},
		{Path: "/b", LastModified: at("2024-03-01T00:00:00Z"), OriginBackend: "A"},
	}

	tests := []struct {
		name   string
		filter model.SitemapFilter
		want   []string
	}{
		{
			name:   "Empty filter collapses by path",
			filter: model.SitemapFilter{},
			want:   []string{"A:/a", "A:/b", "B:/c"},
		},
		{
			name:   "Variants keep one entry per backend",
			filter: model.SitemapFilter{IncludeVariants: true},
			want:   []string{"A:/a", "A:/b", "B:/a", "B:/c"},
		},
		{
			name:   "Backend filter",
			filter: model.SitemapFilter{Backend: "B"},
			want:   []string{"B:/a", "B:/c"},
		},
		{
			name:   "Unknown backend",
			filter: model.SitemapFilter{Backend: "Z"},
			want:   []string{},
		},
		{
			name:   "Since is inclusive and drops undated entries",
			filter: model.SitemapFilter{Since: at("2024-02-01T00:00:00Z"), IncludeVariants: true},
			want:   []string{"A:/b", "B:/a"},
		},
		{
			name:   "Since with path dedupe picks first surviving entry",
			filter: model.SitemapFilter{Since: at("2024-02-01T00:00:00Z")},
			want:   []string{"A:/b", "B:/a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := paths(Filter(entries, tt.filter))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterSinceInvariant(t *testing.T) {
	since := at("2024-02-01T00:00:00Z")
	entries := []model.ListingEntry{
		{Path: "/old", LastModified: at("2023-12-31T23:59:59Z"), OriginBackend: "A"},
		{Path: "/edge", LastModified: since, OriginBackend: "A"},
		{Path: "/new", LastModified: at("2025-01-01T00:00:00Z"), OriginBackend: "B"},
		{Path: "/none", OriginBackend: "B"},
	}

	for _, e := range Filter(entries, model.SitemapFilter{Since: since}) {
		if e.LastModified == nil {
			t.Errorf("entry %s has no lastModified but passed since filter", e.Path)
			continue
		}
		if e.LastModified.Before(*since) {
			t.Errorf("entry %s lastModified %v is before %v", e.Path, e.LastModified, since)
		}
	}
}

func TestSynthesize(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []model.ListingEntry{
		{
			Path:            "/a",
			LastModified:    at("2024-01-01T09:30:00+09:00"),
			Priority:        ptr(0.5),
			ChangeFrequency: "weekly",
			OriginBackend:   "A",
		},
		{Path: "/b", Priority: ptr(0.0), OriginBackend: "B"},
	}

	doc, err := Synthesize(entries, model.SitemapFilter{}, now)
	if err != nil {
		t.Fatal(err)
	}

	if doc.Count() != 2 {
		t.Errorf("Count() = %d, want 2", doc.Count())
	}
	if !doc.GeneratedAt.Equal(now) {
		t.Errorf("GeneratedAt = %v, want %v", doc.GeneratedAt, now)
	}
	if !strings.HasPrefix(doc.XML, xml.Header) {
		t.Errorf("XML does not start with the XML header:\n%s", doc.XML)
	}

	var set URLSet
	if err := xml.Unmarshal([]byte(doc.XML), &set); err != nil {
		t.Fatalf("xml.Unmarshal: %v", err)
	}
	want := []URL{
		{Loc: "/a", LastMod: "2024-01-01T00:30:00Z", ChangeFreq: "weekly", Priority: "0.5"},
		{Loc: "/b", Priority: "0"},
	}
	if diff := cmp.Diff(want, set.URLs); diff != "" {
		t.Errorf("urls mismatch (-want +got):\n%s", diff)
	}
	if set.XMLNS != Namespace {
		t.Errorf("xmlns = %q, want %q", set.XMLNS, Namespace)
	}
}

func TestSynthesizeEmpty(t *testing.T) {
	doc, err := Synthesize(nil, model.SitemapFilter{}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if doc.Count() != 0 {
		t.Errorf("Count() = %d, want 0", doc.Count())
	}
	if !strings.Contains(doc.XML, "<urlset") {
		t.Errorf("empty sitemap should still have a urlset:\n%s", doc.XML)
	}
}
