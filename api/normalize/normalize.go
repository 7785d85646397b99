// Package normalize reshapes backend payloads into the gateway's unified
// schema and stamps every item with the backend it came from.
//
// All functions are pure. Optional fields a backend does not report stay
// absent; nothing is defaulted to a sentinel value.
package normalize

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/rendini/mashup/api/jsonvalue"
	"github.com/rendini/mashup/api/model"
	"github.com/rendini/mashup/log"
)

// ErrorCode defines error types for normalization
type ErrorCode string

const (
	// ErrMalformedEntry represents a payload element that cannot be normalized
	ErrMalformedEntry ErrorCode = "MalformedEntry"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

// Target normalizes one element of GET /render-targets
func Target(raw jsonvalue.Value, backendName string) (model.ListingEntry, error) {
	name, err := requiredString(raw, "name")
	if err != nil {
		return model.ListingEntry{}, err
	}
	template, err := optionalString(raw, "template")
	if err != nil {
		return model.ListingEntry{}, err
	}

	return model.ListingEntry{
		Path:          name,
		Template:      template,
		OriginBackend: backendName,
	}, nil
}

// RenderResult normalizes the response of POST /render for path. Current
// backends answer {content, contentType, metadata}; legacy ones answer
// {name, html}, which is taken as text/html.
func RenderResult(raw jsonvalue.Value, path, backendName string) (model.RenderResult, error) {
	if raw.Kind != jsonvalue.KindObject {
		return model.RenderResult{}, malformed("render result is not an object", "kind", raw.Kind.String())
	}

	var content, contentType string
	if c, ok := raw.Field("content"); ok {
		if c.Kind != jsonvalue.KindString {
			return model.RenderResult{}, malformed("content is not a string", "kind", c.Kind.String())
		}
		content = c.String
		contentType = "text/plain"
	} else if h, ok := raw.Field("html"); ok {
		if h.Kind != jsonvalue.KindString {
			return model.RenderResult{}, malformed("html is not a string", "kind", h.Kind.String())
		}
		content = h.String
		contentType = "text/html"
	} else {
		return model.RenderResult{}, malformed("render result has no content")
	}

	ct, err := optionalString(raw, "contentType")
	if err != nil {
		return model.RenderResult{}, err
	}
	if ct != "" {
		contentType = ct
	}

	metadata, err := optionalObject(raw, "metadata")
	if err != nil {
		return model.RenderResult{}, err
	}

	return model.RenderResult{
		Path:          path,
		Content:       content,
		ContentType:   contentType,
		Metadata:      metadata,
		OriginBackend: backendName,
	}, nil
}

// Listing normalizes one element of GET /sitemap
func Listing(raw jsonvalue.Value, backendName string) (model.ListingEntry, error) {
	path, err := requiredString(raw, "path")
	if err != nil {
		return model.ListingEntry{}, err
	}
	lastModified, err := optionalTimestamp(raw, "lastModified")
	if err != nil {
		return model.ListingEntry{}, err
	}
	priority, err := optionalPriority(raw, "priority")
	if err != nil {
		return model.ListingEntry{}, err
	}
	changeFreq, err := optionalString(raw, "changefreq")
	if err != nil {
		return model.ListingEntry{}, err
	}
	if changeFreq == "" {
		if changeFreq, err = optionalString(raw, "changeFrequency"); err != nil {
			return model.ListingEntry{}, err
		}
	}
	params, err := optionalObject(raw, "params")
	if err != nil {
		return model.ListingEntry{}, err
	}

	return model.ListingEntry{
		Path:            path,
		LastModified:    lastModified,
		Priority:        priority,
		ChangeFrequency: changeFreq,
		Params:          params,
		OriginBackend:   backendName,
	}, nil
}

// IndexEntry normalizes one element of GET /index
func IndexEntry(raw jsonvalue.Value, backendName string) (model.ListingEntry, error) {
	path, err := requiredString(raw, "path")
	if err != nil {
		return model.ListingEntry{}, err
	}
	contentType, err := requiredString(raw, "contentType")
	if err != nil {
		return model.ListingEntry{}, err
	}
	namespace, err := optionalString(raw, "namespace")
	if err != nil {
		return model.ListingEntry{}, err
	}
	lastModified, err := optionalTimestamp(raw, "lastModified")
	if err != nil {
		return model.ListingEntry{}, err
	}

	return model.ListingEntry{
		Path:          path,
		Namespace:     namespace,
		ContentType:   contentType,
		LastModified:  lastModified,
		OriginBackend: backendName,
	}, nil
}

// Targets normalizes a render-targets payload, dropping malformed elements
func Targets(ctx context.Context, raw []jsonvalue.Value, backendName string) []model.ListingEntry {
	return each(ctx, raw, backendName, "render-targets", Target)
}

// Listings normalizes a sitemap payload, dropping malformed elements
func Listings(ctx context.Context, raw []jsonvalue.Value, backendName string) []model.ListingEntry {
	return each(ctx, raw, backendName, "sitemap", Listing)
}

// IndexEntries normalizes an index payload, dropping malformed elements
func IndexEntries(ctx context.Context, raw []jsonvalue.Value, backendName string) []model.ListingEntry {
	return each(ctx, raw, backendName, "index", IndexEntry)
}

func each(ctx context.Context, raw []jsonvalue.Value, backendName, listing string, fn func(jsonvalue.Value, string) (model.ListingEntry, error)) []model.ListingEntry {
	entries := make([]model.ListingEntry, 0, len(raw))
	for i, item := range raw {
		entry, err := fn(item, backendName)
		if err != nil {
			log.FromContext(ctx).Warn("Dropping malformed entry",
				"backend", backendName,
				"listing", listing,
				"position", i,
				"error", err,
			)
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// Epoch timestamps must fall in years 1 through 9999, the range RFC 3339
// can represent.
var (
	minEpochMillis = float64(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
	maxEpochMillis = float64(time.Date(9999, 12, 31, 23, 59, 59, 999e6, time.UTC).UnixMilli())
)

// ParseTimestamp coerces a date-like value into a UTC timestamp. Strings
// may be RFC 3339 (with or without fractional seconds) or a plain
// 2006-01-02 date; numbers are milliseconds since the Unix epoch.
func ParseTimestamp(v jsonvalue.Value) (time.Time, error) {
	switch v.Kind {
	case jsonvalue.KindString:
		s := strings.TrimSpace(v.String)
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateOnly} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, malformed("unrecognized timestamp", "value", v.String)
	case jsonvalue.KindNumber:
		if math.IsNaN(v.Number) || math.IsInf(v.Number, 0) {
			return time.Time{}, malformed("timestamp is not a finite number")
		}
		if v.Number < minEpochMillis || v.Number > maxEpochMillis {
			return time.Time{}, malformed("timestamp out of range", "value", strconv.FormatFloat(v.Number, 'g', -1, 64))
		}
		return time.UnixMilli(int64(v.Number)).UTC(), nil
	default:
		return time.Time{}, malformed("timestamp has unexpected type", "kind", v.Kind.String())
	}
}

func requiredString(raw jsonvalue.Value, field string) (string, error) {
	if raw.Kind != jsonvalue.KindObject {
		return "", malformed("entry is not an object", "kind", raw.Kind.String())
	}
	s, err := optionalString(raw, field)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", malformed("required field is missing", "field", field)
	}
	return s, nil
}

func optionalString(raw jsonvalue.Value, field string) (string, error) {
	v, ok := raw.Field(field)
	if !ok {
		return "", nil
	}
	if v.Kind != jsonvalue.KindString {
		return "", malformed("field is not a string", "field", field, "kind", v.Kind.String())
	}
	return v.String, nil
}

func optionalObject(raw jsonvalue.Value, field string) (map[string]jsonvalue.Value, error) {
	v, ok := raw.Field(field)
	if !ok {
		return nil, nil
	}
	if v.Kind != jsonvalue.KindObject {
		return nil, malformed("field is not an object", "field", field, "kind", v.Kind.String())
	}
	return v.Object, nil
}

func optionalTimestamp(raw jsonvalue.Value, field string) (*time.Time, error) {
	v, ok := raw.Field(field)
	if !ok {
		return nil, nil
	}
	t, err := ParseTimestamp(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func optionalPriority(raw jsonvalue.Value, field string) (*float64, error) {
	v, ok := raw.Field(field)
	if !ok {
		return nil, nil
	}
	if v.Kind != jsonvalue.KindNumber {
		return nil, malformed("priority is not a number", "kind", v.Kind.String())
	}
	if v.Number < 0 || v.Number > 1 || math.IsNaN(v.Number) {
		return nil, malformed("priority is outside [0,1]")
	}
	p := v.Number
	return &p, nil
}

func malformed(msg string, kv ...string) error {
	ctx := failure.Context{}
	for i := 0; i+1 < len(kv); i += 2 {
		ctx[kv[i]] = kv[i+1]
	}
	return failure.New(ErrMalformedEntry, failure.Message(msg), ctx)
}
