package config

// defaultTree is the built-in base configuration. The corpus config is
// merged on top of it key by key.
func defaultTree() map[string]any {
	return map[string]any{
		"metadata": map[string]any{
			"language": "swe",
		},
		"import": map[string]any{
			"source_dir": "source",
			"extension":  "txt",
			"importer":   "textimport:parse",
		},
		"work_dir":    "work",
		"export_dir":  "export",
		"presets_dir": "presets",
		"classes":     map[string]any{},
	}
}
