package normalizer

// Fallback builds the neutral, schema-complete object emitted when repair is
// exhausted or an agent degrades on timeout. Every declared field is present
// with its neutral value (falling back to the field default), and the
// processing metadata marks the result as a fallback so downstream scoring
// can discount it.
func Fallback(sch Schema, flags Flags, version string) map[string]any {
	out := make(map[string]any, len(sch.Fields)+1)
	for _, f := range sch.Fields {
		if f.Flag != "" && !flags[f.Flag] {
			continue
		}
		out[f.Name] = f.neutralValue(flags)
	}
	out["processingMetadata"] = map[string]any{
		"analysisVersion": version + "-fallback",
		"confidence":      0.1,
		"fallback":        true,
	}
	return out
}

// IsFallback reports whether obj carries fallback processing metadata.
func IsFallback(obj map[string]any) bool {
	meta, ok := obj["processingMetadata"].(map[string]any)
	if !ok {
		return false
	}
	flag, _ := meta["fallback"].(bool)
	return flag
}

func (f Field) neutralValue(flags Flags) any {
	if f.Neutral != nil {
		return f.Neutral
	}
	if f.Kind == Object {
		out := make(map[string]any, len(f.Fields))
		for _, sub := range f.Fields {
			if sub.Flag != "" && !flags[sub.Flag] {
				continue
			}
			out[sub.Name] = sub.neutralValue(flags)
		}
		return out
	}
	return f.defaultValue(flags)
}
