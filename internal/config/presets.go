package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vk/annogrid/internal/fsutil"
)

// Preset is a named, reusable group of annotation-list entries plus
// optional class defaults, loaded from the presets directory.
type Preset struct {
	Name    string              `yaml:"name"`
	Classes map[string]string   `yaml:"classes"`
	Groups  map[string][]string `yaml:"groups"`
}

// loadPresets reads every YAML file in dir into a preset keyed by name.
// A missing directory yields an empty table; presets are optional.
func loadPresets(dir string) (map[string]*Preset, error) {
	presets := make(map[string]*Preset)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return presets, nil
	}

	files, err := fsutil.FindFilesByExtension(dir, ".yaml")
	if err != nil {
		return nil, &ConfigError{Key: "presets_dir", Msg: "cannot scan preset directory", Err: err}
	}
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, &ConfigError{Key: "presets_dir", Msg: "cannot read preset file " + file, Err: err}
		}
		var p Preset
		if err := yaml.Unmarshal(raw, &p); err != nil {
			return nil, &ConfigError{Key: "presets_dir", Msg: "malformed preset file " + file, Err: err}
		}
		if p.Name == "" {
			p.Name = strings.TrimSuffix(filepath.Base(file), ".yaml")
		}
		if _, exists := presets[p.Name]; exists {
			return nil, errf("presets_dir", "duplicate preset name %q", p.Name)
		}
		presets[p.Name] = &p
	}
	return presets, nil
}

// rawEntry is one concrete (preset-free) annotation-list entry with its
// negation flag preserved.
type rawEntry struct {
	text    string
	negated bool
}

// negationPrefix marks an entry that removes a previously accumulated one.
const negationPrefix = "not "

// expandEntries flattens a raw annotation list into an ordered stream of
// concrete entries. Preset references expand inline, recursively, with
// cycle detection; negation flags carry through preset expansion. Class
// defaults of every referenced preset are merged into classDefaults in
// reference order, so the last merged preset wins on conflict.
func expandEntries(listKey string, entries []string, presets map[string]*Preset, classDefaults map[string]string) ([]rawEntry, error) {
	var out []rawEntry
	inProgress := make(map[string]bool)

	var expand func(entry string, negated bool) error
	expand = func(entry string, negated bool) error {
		entry = strings.TrimSpace(entry)
		if strings.HasPrefix(entry, negationPrefix) {
			return expand(strings.TrimPrefix(entry, negationPrefix), !negated)
		}

		name, group, isPreset := splitPresetRef(entry, presets)
		if !isPreset {
			out = append(out, rawEntry{text: entry, negated: negated})
			return nil
		}

		preset := presets[name]
		groups := []string{group}
		if group == "" {
			// Bare preset reference expands every group, in name order.
			groups = groups[:0]
			for g := range preset.Groups {
				groups = append(groups, g)
			}
			sort.Strings(groups)
		} else if _, ok := preset.Groups[group]; !ok {
			return errf(listKey, "preset %q has no group %q", name, group)
		}

		for class, target := range preset.Classes {
			classDefaults[class] = target
		}

		for _, g := range groups {
			ref := name + "." + g
			if inProgress[ref] {
				return errf(listKey, "preset reference cycle through %q", ref)
			}
			inProgress[ref] = true
			for _, member := range preset.Groups[g] {
				if err := expand(member, negated); err != nil {
					return err
				}
			}
			delete(inProgress, ref)
		}
		return nil
	}

	for _, entry := range entries {
		if err := expand(entry, false); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// splitPresetRef decides whether an entry references a loaded preset.
// "PRESET" matches whole, "PRESET.group" matches on the part before the
// first dot. Anything else is a plain annotation entry.
func splitPresetRef(entry string, presets map[string]*Preset) (name, group string, ok bool) {
	if _, found := presets[entry]; found {
		return entry, "", true
	}
	head, tail, found := strings.Cut(entry, ".")
	if found {
		if _, exists := presets[head]; exists {
			return head, tail, true
		}
	}
	return "", "", false
}
