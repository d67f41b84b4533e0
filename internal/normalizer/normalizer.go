package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrRepairExhausted reports that no repair strategy yielded a parseable or
// partially-recoverable object.
var ErrRepairExhausted = errors.New("repair exhausted")

// ValidationError reports a parsed object missing required schema fields.
// The caller keeps the step interactive so a corrected response can be
// retried.
type ValidationError struct {
	Agent   string
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("agent %s: missing required fields: %s", e.Agent, strings.Join(e.Missing, ", "))
}

// Result is a normalized agent output: the canonical object plus provenance
// about how it was obtained.
type Result struct {
	Object  map[string]any
	Partial bool
	Repaired bool
}

var (
	fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	fencedRe     = regexp.MustCompile("(?s)```\\s*(.*?)```")

	whitespaceRe = regexp.MustCompile(`\s+`)
	bareKeyRe    = regexp.MustCompile(`([{,:]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)

	adjacentObjRe   = regexp.MustCompile(`}\s*{`)
	adjacentQuoteRe = regexp.MustCompile(`"\s*{`)
	adjacentCloseRe = regexp.MustCompile(`}\s*"`)
)

// Normalize converts a raw model response into the canonical object declared
// by sch. The repair strategies are ordered and short-circuiting: span
// extraction, boundary repair, whitespace/quote/key/comma repairs, structural
// parse, library repair, and finally per-field regex recovery against the
// original raw text. A successful full parse is never overridden by field
// recovery.
func Normalize(raw string, sch Schema, flags Flags) (Result, error) {
	span, found := extractSpan(raw)
	if found {
		span = repairBoundaries(span)

		// A span that already parses cleanly skips the lossy repairs, so
		// canonical input round-trips untouched.
		if obj, ok := parseObject(span); ok {
			return finishFullParse(sch, obj, flags, false)
		}

		repaired := applyRepairs(span)
		if obj, ok := parseObject(repaired); ok {
			return finishFullParse(sch, obj, flags, true)
		}

		if fixed, err := jsonrepair.JSONRepair(repaired); err == nil {
			if obj, ok := parseObject(fixed); ok {
				return finishFullParse(sch, obj, flags, true)
			}
		}
	}

	obj, recovered := recoverFields(raw, sch)
	if !recovered {
		return Result{}, ErrRepairExhausted
	}
	return Result{Object: Canonicalize(sch, obj, flags), Partial: true, Repaired: true}, nil
}

func finishFullParse(sch Schema, obj map[string]any, flags Flags, repaired bool) (Result, error) {
	if missing := missingRequired(sch, obj); len(missing) > 0 {
		return Result{}, &ValidationError{Agent: sch.Agent, Missing: missing}
	}
	return Result{Object: Canonicalize(sch, obj, flags), Repaired: repaired}, nil
}

// extractSpan locates the JSON-looking span: a fenced block wins over brace
// scanning (first `{` to last `}`).
func extractSpan(raw string) (string, bool) {
	if m := fencedJSONRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := fencedRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], true
	}
	return "", false
}

// repairBoundaries trims leading/trailing noise so the span starts with `{`
// and ends with `}`.
func repairBoundaries(span string) string {
	span = strings.TrimSpace(span)
	if !strings.HasPrefix(span, "{") {
		if idx := strings.Index(span, "{"); idx >= 0 {
			span = span[idx:]
		} else {
			span = "{" + span
		}
	}
	if !strings.HasSuffix(span, "}") {
		if idx := strings.LastIndex(span, "}"); idx >= 0 {
			span = span[:idx+1]
		} else {
			span = span + "}"
		}
	}
	return span
}

func applyRepairs(span string) string {
	// Line-break-induced token splits.
	span = whitespaceRe.ReplaceAllString(span, " ")
	// Model outputs frequently use single quotes.
	span = strings.ReplaceAll(span, "'", `"`)
	// Unquoted keys.
	span = bareKeyRe.ReplaceAllString(span, `${1}"${2}":`)
	// Missing commas between adjacent values.
	span = adjacentObjRe.ReplaceAllString(span, "},{")
	span = adjacentQuoteRe.ReplaceAllString(span, `",{`)
	span = adjacentCloseRe.ReplaceAllString(span, `},"`)
	return span
}

// parseObject parses span and requires a single top-level JSON object.
// Adjacent top-level objects (`{"a":1},{"b":2}`) therefore stay an
// extraction boundary failure.
func parseObject(span string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func missingRequired(sch Schema, src map[string]any) []string {
	var missing []string
	for _, name := range sch.Required {
		f, ok := sch.field(name)
		if !ok {
			continue
		}
		if _, found := f.lookup(src); !found {
			missing = append(missing, name)
		}
	}
	return missing
}

// recoverFields runs per-field regexes against the original raw text. At
// least one required field must surface for a minimal object to be
// synthesized.
func recoverFields(raw string, sch Schema) (map[string]any, bool) {
	out := make(map[string]any)
	requiredHit := false
	required := make(map[string]bool, len(sch.Required))
	for _, name := range sch.Required {
		required[name] = true
	}
	for _, rec := range sch.Recover {
		m := rec.Pattern.FindStringSubmatch(raw)
		if m == nil || len(m) < 2 {
			continue
		}
		value := strings.TrimSpace(m[1])
		if value == "" {
			continue
		}
		if rec.Numeric {
			num, ok := asNumber(value)
			if !ok {
				continue
			}
			out[rec.Field] = num
		} else {
			out[rec.Field] = value
		}
		if required[rec.Field] {
			requiredHit = true
		}
	}
	if !requiredHit {
		return nil, false
	}
	return out, true
}
