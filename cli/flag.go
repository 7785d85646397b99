package cli

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/rendini/mashup/api/jsonvalue"
	"github.com/rendini/mashup/api/normalize"
	"github.com/rendini/mashup/config"
	"github.com/spf13/pflag"
)

// timestampFlag accepts the same date forms backends may report
type timestampFlag struct {
	IsSet bool
	Value time.Time
}

// String implements pflag.Value.
func (f *timestampFlag) String() string {
	if !f.IsSet {
		return ""
	}
	return f.Value.Format(time.RFC3339)
}

func (f *timestampFlag) Set(value string) error {
	t, err := normalize.ParseTimestamp(jsonvalue.String(value))
	if err != nil {
		return failure.Translate(err, InvalidFlag,
			failure.Message("Expected an RFC 3339 timestamp or a YYYY-MM-DD date"),
			failure.Context{"value": value},
		)
	}
	f.Value = t
	f.IsSet = true
	return nil
}

func (f *timestampFlag) Type() string {
	return "timestamp"
}

// Time returns nil when the flag was not given
func (f *timestampFlag) Time() *time.Time {
	if !f.IsSet {
		return nil
	}
	t := f.Value
	return &t
}

var _ pflag.Value = &timestampFlag{}

// paramsFlag collects repeated key=value pairs. Values that parse as JSON
// keep their type; anything else is a string.
type paramsFlag struct {
	Values map[string]jsonvalue.Value
}

// String implements pflag.Value.
func (f *paramsFlag) String() string {
	keys := make([]string, 0, len(f.Values))
	for k := range f.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func (f *paramsFlag) Set(value string) error {
	key, raw, ok := strings.Cut(value, "=")
	if !ok || key == "" {
		return failure.New(InvalidFlag,
			failure.Message("Expected key=value"),
			failure.Context{"value": value},
		)
	}

	v := jsonvalue.String(raw)
	var decoded jsonvalue.Value
	if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
		v = decoded
	}

	if f.Values == nil {
		f.Values = map[string]jsonvalue.Value{}
	}
	f.Values[key] = v
	return nil
}

func (f *paramsFlag) Type() string {
	return "key=value"
}

var _ pflag.Value = &paramsFlag{}

// backendsFlag collects repeated name=url backend definitions
type backendsFlag struct {
	Backends []config.Backend
}

// String implements pflag.Value.
func (f *backendsFlag) String() string {
	parts := make([]string, 0, len(f.Backends))
	for _, b := range f.Backends {
		parts = append(parts, b.Name+"="+b.URL)
	}
	return strings.Join(parts, ",")
}

func (f *backendsFlag) Set(value string) error {
	backends, err := config.ParseBackendList(strings.Split(value, ","))
	if err != nil {
		return err
	}
	f.Backends = append(f.Backends, backends...)
	return nil
}

func (f *backendsFlag) Type() string {
	return "name=url"
}

var _ pflag.Value = &backendsFlag{}
