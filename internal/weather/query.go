package weather

import (
	"net/url"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CacheKeyPrefix namespaces every cache entry written by this service.
const CacheKeyPrefix = "weather"

var validate = validator.New()

// Normalize builds a Query from raw request parameters. Unknown parameters are
// dropped, as are allow-listed ones with empty values. A missing location is a
// validation error and nothing else is inspected.
func Normalize(params map[string]string) (Query, error) {
	q := Query{Location: strings.Clone(params[ParamLocation])}
	if err := validate.Struct(q); err != nil {
		return Query{}, &Error{
			Kind:    KindValidation,
			Message: MsgLocationRequired,
			Err:     err,
		}
	}

	if start := params[ParamRangeStart]; start != "" {
		q.RangeStart = strings.Clone(start)
		if end := params[ParamRangeEnd]; end != "" {
			q.RangeEnd = strings.Clone(end)
		}
	}

	for _, name := range AllowedOptions {
		if v := params[name]; v != "" {
			q.Options = append(q.Options, Option{Name: name, Value: strings.Clone(v)})
		}
	}
	return q, nil
}

// CacheKey returns the canonical cache key for q:
//
//	weather:<location>:<rangeStart>:<rangeEnd>:<name=value&...>
//
// Every segment is query-escaped so delimiters inside values cannot collide, and
// options are sorted by name so parameter order never changes the key.
func (q Query) CacheKey() string {
	opts := append([]Option(nil), q.Options...)
	sort.Slice(opts, func(i, j int) bool { return opts[i].Name < opts[j].Name })

	pairs := make([]string, len(opts))
	for i, o := range opts {
		pairs[i] = url.QueryEscape(o.Name) + "=" + url.QueryEscape(o.Value)
	}

	return strings.Join([]string{
		CacheKeyPrefix,
		url.QueryEscape(q.Location),
		url.QueryEscape(q.RangeStart),
		url.QueryEscape(q.RangeEnd),
		strings.Join(pairs, "&"),
	}, ":")
}

// UpstreamURL returns the provider request URL for q:
//
//	<base>/<location>[/<rangeStart>[/<rangeEnd>]]?key=<credential>&<options>
//
// Options keep their AllowedOptions order; only the cache key is canonicalized.
func (q Query) UpstreamURL(base, credential string) string {
	segments := []string{url.PathEscape(q.Location)}
	if q.RangeStart != "" {
		segments = append(segments, url.PathEscape(q.RangeStart))
		if q.RangeEnd != "" {
			segments = append(segments, url.PathEscape(q.RangeEnd))
		}
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(s)
	}
	b.WriteString("?key=")
	b.WriteString(url.QueryEscape(credential))
	for _, o := range q.Options {
		b.WriteByte('&')
		b.WriteString(url.QueryEscape(o.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(o.Value))
	}
	return b.String()
}
