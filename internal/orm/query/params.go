package query

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// parameterMarker matches :name; a preceding colon (postgres casts) is
// captured so the match can be skipped
var parameterMarker = regexp.MustCompile(`(:?):([A-Za-z_][A-Za-z0-9_]*)`)

// params keeps named parameters in the order they were set
type params struct {
	names  []string
	values map[string]interface{}
}

func newParams() params {
	return params{values: make(map[string]interface{})}
}

// SetParameter binds value to :name
func (b *Builder) SetParameter(name string, value interface{}) *Builder {
	if _, exists := b.params.values[name]; !exists {
		b.params.names = append(b.params.names, name)
	}
	b.params.values[name] = value
	return b
}

// SetParameters binds every entry of values, in sorted key order
func (b *Builder) SetParameters(values map[string]interface{}) *Builder {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.SetParameter(name, values[name])
	}
	return b
}

// Parameter returns the value bound to name
func (b *Builder) Parameter(name string) (interface{}, bool) {
	v, ok := b.params.values[name]
	return v, ok
}

// ParameterNames returns bound parameter names in binding order
func (b *Builder) ParameterNames() []string {
	return append([]string(nil), b.params.names...)
}

// bind rewrites :name markers to ? in order of appearance and collects the
// matching values
func (b *Builder) bind(raw string) (string, []interface{}, error) {
	var (
		args    []interface{}
		missing []string
	)

	positional := parameterMarker.ReplaceAllStringFunc(raw, func(m string) string {
		sub := parameterMarker.FindStringSubmatch(m)
		if sub[1] != "" {
			return m
		}
		value, ok := b.params.values[sub[2]]
		if !ok {
			missing = append(missing, sub[2])
			return m
		}
		args = append(args, value)
		return "?"
	})

	if len(missing) > 0 {
		return "", nil, fmt.Errorf("unbound parameters: %s", strings.Join(missing, ", "))
	}
	return positional, args, nil
}
