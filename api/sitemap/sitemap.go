// Package sitemap combines normalized listing entries into a filtered,
// deduplicated sitemap document.
package sitemap

import (
	"encoding/xml"
	"strconv"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/rendini/mashup/api/model"
	"github.com/samber/lo"
)

// Namespace is the sitemap protocol XML namespace
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// URLSet is the <urlset> root element
type URLSet struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	URLs    []URL    `xml:"url"`
}

// URL is a single <url> entry
type URL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// Synthesize filters and deduplicates entries and renders the result.
// Entry order is preserved; now becomes the document's generation time and
// is not written into the XML.
func Synthesize(entries []model.ListingEntry, filter model.SitemapFilter, now time.Time) (model.SitemapDocument, error) {
	kept := Filter(entries, filter)

	doc, err := Encode(kept)
	if err != nil {
		return model.SitemapDocument{}, err
	}

	return model.SitemapDocument{
		Entries:     kept,
		GeneratedAt: now,
		XML:         doc,
	}, nil
}

// Filter applies the backend and since filters, then removes duplicates.
// Duplicate (path, backend) pairs always collapse to the first occurrence;
// without IncludeVariants entries for the same path from different
// backends collapse too.
func Filter(entries []model.ListingEntry, filter model.SitemapFilter) []model.ListingEntry {
	kept := lo.Filter(entries, func(e model.ListingEntry, _ int) bool {
		if filter.Backend != "" && e.OriginBackend != filter.Backend {
			return false
		}
		if filter.Since != nil {
			if e.LastModified == nil || e.LastModified.Before(*filter.Since) {
				return false
			}
		}
		return true
	})

	if filter.IncludeVariants {
		return lo.UniqBy(kept, func(e model.ListingEntry) [2]string {
			return [2]string{e.Path, e.OriginBackend}
		})
	}
	return lo.UniqBy(kept, func(e model.ListingEntry) string {
		return e.Path
	})
}

// Encode renders entries as a sitemap XML document
func Encode(entries []model.ListingEntry) (string, error) {
	set := URLSet{
		XMLNS: Namespace,
		URLs:  lo.Map(entries, func(e model.ListingEntry, _ int) URL { return toURL(e) }),
	}

	b, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return "", failure.Wrap(err)
	}
	return xml.Header + string(b) + "\n", nil
}

func toURL(e model.ListingEntry) URL {
	u := URL{
		Loc:        e.Path,
		ChangeFreq: e.ChangeFrequency,
	}
	if e.LastModified != nil {
		u.LastMod = FormatTime(*e.LastModified)
	}
	if e.Priority != nil {
		u.Priority = strconv.FormatFloat(*e.Priority, 'f', -1, 64)
	}
	return u
}

// FormatTime renders t the way lastmod values are written
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
