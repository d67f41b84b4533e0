package normalizer

import (
	"regexp"
	"strconv"
	"strings"
)

// FieldKind enumerates the value shapes a declared field may take.
type FieldKind int

const (
	String FieldKind = iota
	Number
	Bool
	StringList
	Object
	ObjectList
)

// Field declares one canonical field: its name, the aliases model outputs use
// for it, the default applied when absent, and the neutral value used by
// fallback results. Numeric fields are clamped to [Min, Max]; enum fields are
// coerced onto Enum. A non-empty Flag gates the field behind a feature flag.
type Field struct {
	Name    string
	Aliases []string
	Kind    FieldKind
	Default any
	Neutral any
	Min     float64
	Max     float64
	Enum    []string
	Flag    string
	Fields  []Field
}

// Recovery is a last-resort regex that pulls a single field out of the
// original raw text when no structural parse succeeds. The first capture
// group is the value.
type Recovery struct {
	Field   string
	Pattern *regexp.Regexp
	Numeric bool
}

// Schema is the declarative result schema for one agent kind, shared by the
// normalizer, the fallback generator, and validation.
type Schema struct {
	Agent    string
	Required []string
	Fields   []Field
	Recover  []Recovery
}

// Flags carries the per-run feature toggles consulted by gated fields.
type Flags map[string]bool

func (s Schema) field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// lookup finds a value in src under the field's canonical name or any alias,
// matching case-insensitively as a last resort.
func (f Field) lookup(src map[string]any) (any, bool) {
	if v, ok := src[f.Name]; ok {
		return v, true
	}
	for _, alias := range f.Aliases {
		if v, ok := src[alias]; ok {
			return v, true
		}
	}
	for key, v := range src {
		if strings.EqualFold(key, f.Name) {
			return v, true
		}
		for _, alias := range f.Aliases {
			if strings.EqualFold(key, alias) {
				return v, true
			}
		}
	}
	return nil, false
}

// Canonicalize maps a parsed object onto the schema: every declared field is
// filled (default when absent), numeric fields are clamped, enum fields are
// coerced, and flag-gated fields are included or omitted strictly according
// to flags.
func Canonicalize(sch Schema, src map[string]any, flags Flags) map[string]any {
	return canonicalizeFields(sch.Fields, src, flags)
}

func canonicalizeFields(fields []Field, src map[string]any, flags Flags) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if f.Flag != "" && !flags[f.Flag] {
			continue
		}
		raw, ok := f.lookup(src)
		if !ok || raw == nil {
			out[f.Name] = f.defaultValue(flags)
			continue
		}
		out[f.Name] = f.coerce(raw, flags)
	}
	return out
}

func (f Field) defaultValue(flags Flags) any {
	if f.Default != nil {
		return f.Default
	}
	switch f.Kind {
	case String:
		return ""
	case Number:
		return f.clamp(0)
	case Bool:
		return false
	case StringList:
		return []string{}
	case ObjectList:
		return []map[string]any{}
	case Object:
		return canonicalizeFields(f.Fields, map[string]any{}, flags)
	}
	return nil
}

func (f Field) coerce(raw any, flags Flags) any {
	switch f.Kind {
	case String:
		str, ok := asString(raw)
		if !ok {
			return f.defaultValue(flags)
		}
		if len(f.Enum) > 0 {
			return f.coerceEnum(str, flags)
		}
		return str
	case Number:
		num, ok := asNumber(raw)
		if !ok {
			return f.defaultValue(flags)
		}
		return f.clamp(num)
	case Bool:
		b, ok := raw.(bool)
		if !ok {
			return f.defaultValue(flags)
		}
		return b
	case StringList:
		return asStringList(raw)
	case ObjectList:
		list, ok := raw.([]any)
		if !ok {
			return f.defaultValue(flags)
		}
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			// Entries without declared subfields pass through untouched.
			if len(f.Fields) == 0 {
				out = append(out, m)
				continue
			}
			out = append(out, canonicalizeFields(f.Fields, m, flags))
		}
		return out
	case Object:
		m, ok := raw.(map[string]any)
		if !ok {
			return f.defaultValue(flags)
		}
		if len(f.Fields) == 0 {
			return m
		}
		return canonicalizeFields(f.Fields, m, flags)
	}
	return raw
}

func (f Field) coerceEnum(value string, flags Flags) any {
	trimmed := strings.TrimSpace(value)
	for _, allowed := range f.Enum {
		if strings.EqualFold(trimmed, allowed) {
			return allowed
		}
	}
	return f.defaultValue(flags)
}

func (f Field) clamp(value float64) float64 {
	if value < f.Min {
		return f.Min
	}
	if f.Max > f.Min && value > f.Max {
		return f.Max
	}
	return value
}

func asString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}

func asNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func asStringList(raw any) []string {
	switch list := raw.(type) {
	case []string:
		if list == nil {
			return []string{}
		}
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return []string{}
	}
}
