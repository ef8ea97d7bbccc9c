package config

// deepMerge merges override into base, returning a new map. Nested maps
// merge key by key; lists and scalars replace. Presets are the additive
// mechanism for annotation lists, so list-level merging is intentionally
// replace-only.
func deepMerge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if overMap, ok := v.(map[string]any); ok {
			if baseMap, ok := out[k].(map[string]any); ok {
				out[k] = deepMerge(baseMap, overMap)
				continue
			}
		}
		out[k] = v
	}
	return out
}
