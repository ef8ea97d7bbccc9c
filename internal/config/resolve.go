package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vk/annogrid/internal/anno"
)

// Load reads the corpus config file, merges it over the built-in defaults,
// expands presets and class aliases, and returns the immutable effective
// configuration for this run. All failures are *ConfigError.
func Load(path string) (*Effective, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Msg: "cannot read corpus config " + path, Err: err}
	}

	var corpus map[string]any
	if err := yaml.Unmarshal(raw, &corpus); err != nil {
		return nil, &ConfigError{Msg: "malformed corpus config " + path, Err: err}
	}

	tree := deepMerge(defaultTree(), corpus)
	baseDir := filepath.Dir(path)

	eff := &Effective{tree: tree, baseDir: baseDir}
	if err := validateRequired(eff); err != nil {
		return nil, err
	}

	presetsDir := eff.GetString("presets_dir", "presets")
	if !filepath.IsAbs(presetsDir) {
		presetsDir = filepath.Join(baseDir, presetsDir)
	}
	presets, err := loadPresets(presetsDir)
	if err != nil {
		return nil, err
	}

	// First pass: expand preset references in every export list, gathering
	// preset class defaults in reference order. The built-in class aliases
	// seed the table; presets and the corpus config override them in turn.
	classDefaults := map[string]string{
		"token":    "token.segment",
		"sentence": "sentence",
	}
	expanded := make(map[string][]rawEntry)
	formats := exportFormats(tree)
	sort.Strings(formats)
	for _, format := range formats {
		listKey := "export." + format + ".annotations"
		entries := eff.GetStringList(listKey)
		if entries == nil {
			return nil, errf(listKey, "export %q has no annotations list", format)
		}
		flat, err := expandEntries(listKey, entries, presets, classDefaults)
		if err != nil {
			return nil, err
		}
		expanded[format] = flat
	}

	// Class table: preset defaults first, corpus config wins on conflict.
	classes := classDefaults
	if raw, ok := eff.Get("classes"); ok {
		if m, ok := raw.(map[string]any); ok {
			for class, v := range m {
				if s, ok := v.(string); ok {
					classes[class] = s
				}
			}
		}
	}
	eff.classes = classes

	// Second pass: resolve entries to concrete targets and apply negations.
	eff.targets = make(map[string][]Target, len(expanded))
	for format, flat := range expanded {
		listKey := "export." + format + ".annotations"
		targets, err := resolveTargets(listKey, flat, eff)
		if err != nil {
			return nil, err
		}
		eff.targets[format] = targets
	}

	if err := decodeCustom(eff); err != nil {
		return nil, err
	}

	return eff, nil
}

// validateRequired checks the keys every corpus config must carry.
func validateRequired(eff *Effective) error {
	if eff.GetString("metadata.id", "") == "" {
		return errf("metadata.id", "missing required corpus id")
	}
	if eff.GetString("import.document_element", "") == "" {
		return errf("import.document_element", "missing required document element")
	}
	return nil
}

// resolveTargets walks the expanded entry stream in order, resolving class
// references and "as" renames, and applying negations against the
// accumulated set. Later negations win over earlier inclusions; a negation
// that matches nothing is an error.
func resolveTargets(listKey string, entries []rawEntry, eff *Effective) ([]Target, error) {
	var targets []Target
	for _, entry := range entries {
		target, err := resolveEntry(listKey, entry.text, eff)
		if err != nil {
			return nil, err
		}
		if entry.negated {
			removed := false
			for i, t := range targets {
				if t.Annotation == target.Annotation {
					targets = append(targets[:i], targets[i+1:]...)
					removed = true
					break
				}
			}
			if !removed {
				return nil, errf(listKey, "negation of %q matches no previously included annotation", target.Annotation)
			}
			continue
		}
		targets = append(targets, target)
	}
	return targets, nil
}

// resolveEntry turns one concrete list entry into a Target, resolving a
// class reference through the effective class table.
func resolveEntry(listKey, text string, eff *Effective) (Target, error) {
	name, exportName, _ := strings.Cut(text, " as ")
	name = strings.TrimSpace(name)
	exportName = strings.TrimSpace(exportName)

	target := Target{Annotation: name, ExportName: exportName}
	if !anno.IsClassRef(name) {
		return target, nil
	}

	class, attached, err := anno.ParseClassRef(name)
	if err != nil {
		return Target{}, &ConfigError{Key: listKey, Msg: err.Error()}
	}
	concrete, ok := eff.ResolveClass(class)
	if !ok {
		return Target{}, errf(listKey, "entry %q references undefined class %q", text, class)
	}
	target.Class = class
	if attached != "" {
		target.Annotation = attached
	} else {
		target.Annotation = concrete
	}
	return target, nil
}

// decodeCustom extracts the custom_annotations section into typed form.
func decodeCustom(eff *Effective) error {
	raw, ok := eff.Get("custom_annotations")
	if !ok {
		return nil
	}
	// Round-trip through YAML to reuse struct decoding on the generic tree.
	buf, err := yaml.Marshal(raw)
	if err != nil {
		return &ConfigError{Key: "custom_annotations", Msg: "malformed section", Err: err}
	}
	var custom []CustomAnnotation
	if err := yaml.Unmarshal(buf, &custom); err != nil {
		return &ConfigError{Key: "custom_annotations", Msg: "malformed section", Err: err}
	}
	for i, c := range custom {
		if c.Rule == "" || c.Output == "" {
			return errf("custom_annotations", "entry %d must declare both rule and output", i)
		}
	}
	eff.custom = custom
	return nil
}

// exportFormats lists the configured export format names in map order; the
// caller sorts where determinism matters.
func exportFormats(tree map[string]any) []string {
	section, ok := tree["export"].(map[string]any)
	if !ok {
		return nil
	}
	formats := make([]string, 0, len(section))
	for format := range section {
		formats = append(formats, format)
	}
	return formats
}
