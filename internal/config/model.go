package config

import (
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Target is one resolved entry of an export annotation list.
type Target struct {
	// Annotation is the concrete annotation name to produce.
	Annotation string
	// Class is the alias the entry was attached to ("<token>:pos" yields
	// "token"), used by exporters to validate alignment. Empty when the
	// entry named the annotation directly.
	Class string
	// ExportName is the name the exporter should use in its output.
	// Empty means the annotation name itself.
	ExportName string
}

// Name returns the name the exporter should render for this target.
func (t Target) Name() string {
	if t.ExportName != "" {
		return t.ExportName
	}
	return t.Annotation
}

// CustomAnnotation is a user-declared rule instantiation from the corpus
// config. It binds an existing rule to a new output name with its own
// inputs and settings.
type CustomAnnotation struct {
	Rule   string         `yaml:"rule"`
	Output string         `yaml:"output"`
	Inputs []string       `yaml:"inputs"`
	Config map[string]any `yaml:"config"`
}

// Effective is the fully merged, immutable configuration for one run.
// Downstream components only ever read from it.
type Effective struct {
	tree    map[string]any
	baseDir string
	classes map[string]string
	targets map[string][]Target
	custom  []CustomAnnotation
}

// BaseDir is the directory the corpus config was loaded from. Relative
// paths in the config resolve against it.
func (e *Effective) BaseDir() string {
	return e.baseDir
}

// Path resolves the path-valued key against BaseDir, with a fallback for
// an absent key.
func (e *Effective) Path(key, fallback string) string {
	p := e.GetString(key, fallback)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(e.baseDir, p)
}

// Get returns the value at a dotted key path, descending through nested
// maps. The second return value reports whether the key exists.
func (e *Effective) Get(key string) (any, bool) {
	var cur any = e.tree
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetString returns the string at key, or fallback if absent or not a string.
func (e *Effective) GetString(key, fallback string) string {
	if v, ok := e.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// GetInt returns the integer at key, or fallback if absent.
func (e *Effective) GetInt(key string, fallback int) int {
	if v, ok := e.Get(key); ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	return fallback
}

// GetStringList returns the list of strings at key, or nil if absent.
func (e *Effective) GetStringList(key string) []string {
	v, ok := e.Get(key)
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Subtree extracts the values under the given keys into a new map, keyed
// by the full dotted path. Missing keys are omitted. The result is the
// input to config-key fingerprinting: it covers exactly the keys a rule
// declared relevant, nothing else.
func (e *Effective) Subtree(keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		if v, ok := e.Get(key); ok {
			out[key] = v
		}
	}
	return out
}

// ResolveClass resolves a class alias to its concrete annotation name.
func (e *Effective) ResolveClass(class string) (string, bool) {
	name, ok := e.classes[class]
	return name, ok
}

// Classes returns a copy of the resolved class-alias table.
func (e *Effective) Classes() map[string]string {
	out := make(map[string]string, len(e.classes))
	for k, v := range e.classes {
		out[k] = v
	}
	return out
}

// Exports returns the names of all configured export formats, sorted.
func (e *Effective) Exports() []string {
	out := make([]string, 0, len(e.targets))
	for format := range e.targets {
		out = append(out, format)
	}
	sort.Strings(out)
	return out
}

// Targets returns the resolved target list for one export format.
func (e *Effective) Targets(format string) []Target {
	return e.targets[format]
}

// Custom returns the user-declared custom annotations.
func (e *Effective) Custom() []CustomAnnotation {
	return e.custom
}

// Dump renders the merged configuration tree as YAML, for the `config`
// inspection command.
func (e *Effective) Dump() (string, error) {
	out, err := yaml.Marshal(e.tree)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
