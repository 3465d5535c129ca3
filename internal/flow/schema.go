package flow

import (
	"strings"
)

// Coerce checks input against schema and returns the cleaned values.
//
// Missing fields take their default. A required field with neither a value
// nor a default is reported as CodeRequired. Bool fields also accept the
// usual string spellings ("true", "on", "yes", "1" and their opposites).
// Select values must match one of the options. Keys not in the schema are
// dropped. The returned error map is nil when everything is valid.
func Coerce(schema []Field, input map[string]any) (map[string]any, map[string]string) {
	out := make(map[string]any, len(schema))
	var errs map[string]string
	fail := func(name, code string) {
		if errs == nil {
			errs = make(map[string]string)
		}
		errs[name] = code
	}

	for _, f := range schema {
		v, ok := input[f.Name]
		if !ok || v == nil {
			switch {
			case f.Default != nil:
				out[f.Name] = f.Default
			case f.Required:
				fail(f.Name, CodeRequired)
			}
			continue
		}

		switch f.Type {
		case FieldBool:
			b, ok := toBool(v)
			if !ok {
				fail(f.Name, CodeInvalidType)
				continue
			}
			out[f.Name] = b
		case FieldSelect:
			s, ok := v.(string)
			if !ok {
				fail(f.Name, CodeInvalidType)
				continue
			}
			if !hasOption(f.Options, s) {
				fail(f.Name, CodeInvalidOption)
				continue
			}
			out[f.Name] = s
		default:
			s, ok := v.(string)
			if !ok {
				fail(f.Name, CodeInvalidType)
				continue
			}
			out[f.Name] = s
		}
	}
	return out, errs
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case float64:
		if b == 1 || b == 0 {
			return b == 1, true
		}
	case int:
		if b == 1 || b == 0 {
			return b == 1, true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "on", "yes", "enable", "1":
			return true, true
		case "false", "off", "no", "disable", "0":
			return false, true
		}
	}
	return false, false
}

func hasOption(opts []Option, value string) bool {
	for _, o := range opts {
		if o.Value == value {
			return true
		}
	}
	return false
}

// WithDefaults returns a copy of schema whose defaults are replaced by the
// matching values in input. Used to re-show a form with what the user typed.
func WithDefaults(schema []Field, input map[string]any) []Field {
	out := make([]Field, len(schema))
	copy(out, schema)
	for i := range out {
		if v, ok := input[out[i].Name]; ok && v != nil {
			out[i].Default = v
		}
	}
	return out
}
