package registry

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/annogrid/internal/ctxlog"
	"github.com/vk/annogrid/internal/fsutil"
)

// OptionDef is a rule setting declared in a manifest, with its type
// constraint and default value.
type OptionDef struct {
	Name        string
	Type        cty.Type
	Default     cty.Value
	Description string
}

// manifestFile mirrors the structure of a module's manifest.hcl.
type manifestFile struct {
	Rules []*manifestRule `hcl:"rule,block"`
}

type manifestRule struct {
	Name        string            `hcl:"name,label"`
	Module      string            `hcl:"module"`
	Description string            `hcl:"description,optional"`
	Kind        string            `hcl:"kind"`
	Scope       string            `hcl:"scope,optional"`
	Inputs      []string          `hcl:"inputs,optional"`
	Outputs     []string          `hcl:"outputs,optional"`
	ConfigKeys  []string          `hcl:"config_keys,optional"`
	Languages   []string          `hcl:"languages,optional"`
	Order       int               `hcl:"order,optional"`
	OnRun       string            `hcl:"on_run"`
	Options     []*manifestOption `hcl:"option,block"`
}

type manifestOption struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type"`
	Default     hcl.Expression `hcl:"default,optional"`
	Description string         `hcl:"description,optional"`
}

// LoadManifests scans the modules path for manifest.hcl files and registers
// every rule they declare.
func (r *Registry) LoadManifests(ctx context.Context, modulesPath string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Registry loading rule manifests...", "path", modulesPath)

	filePaths, err := fsutil.FindFilesByExtension(modulesPath, ".hcl")
	if err != nil {
		return fmt.Errorf("cannot walk modules path %s: %w", modulesPath, err)
	}
	if len(filePaths) == 0 {
		logger.Warn("No .hcl manifests found in modules path.", "path", modulesPath)
		return nil
	}

	parser := hclparse.NewParser()
	count := 0
	for _, filePath := range filePaths {
		hclFile, diags := parser.ParseHCLFile(filePath)
		if diags.HasErrors() {
			return fmt.Errorf("failed to parse manifest %s: %w", filePath, diags)
		}
		var mf manifestFile
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &mf); diags.HasErrors() {
			return fmt.Errorf("failed to decode manifest %s: %w", filePath, diags)
		}
		for _, mr := range mf.Rules {
			rule, err := mr.toRule()
			if err != nil {
				return fmt.Errorf("manifest %s: %w", filePath, err)
			}
			if err := r.AddRule(rule); err != nil {
				return fmt.Errorf("manifest %s: %w", filePath, err)
			}
			count++
		}
	}

	logger.Info("Registry loaded rule manifests.", "rules", count, "files", len(filePaths))
	return nil
}

// toRule converts a decoded manifest block into an immutable Rule.
func (mr *manifestRule) toRule() (*Rule, error) {
	kind, err := parseKind(mr.Kind)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", mr.Name, err)
	}
	scope := ScopeDocument
	switch mr.Scope {
	case "", "document":
	case "corpus":
		scope = ScopeCorpus
	default:
		return nil, fmt.Errorf("rule %q: unknown scope %q", mr.Name, mr.Scope)
	}
	if mr.OnRun == "" {
		return nil, fmt.Errorf("rule %q: missing on_run handler", mr.Name)
	}

	options := make(map[string]*OptionDef, len(mr.Options))
	for _, mo := range mr.Options {
		def, err := mo.toOptionDef()
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", mr.Name, err)
		}
		if _, dup := options[def.Name]; dup {
			return nil, fmt.Errorf("rule %q: duplicate option %q", mr.Name, def.Name)
		}
		options[def.Name] = def
	}

	return &Rule{
		Module:      mr.Module,
		Name:        mr.Name,
		Description: mr.Description,
		Kind:        kind,
		Scope:       scope,
		Inputs:      mr.Inputs,
		Outputs:     mr.Outputs,
		ConfigKeys:  mr.ConfigKeys,
		Languages:   mr.Languages,
		Order:       mr.Order,
		Handler:     mr.OnRun,
		Options:     options,
	}, nil
}

// toOptionDef evaluates the option's type constraint and default value.
func (mo *manifestOption) toOptionDef() (*OptionDef, error) {
	ty, diags := typeexpr.TypeConstraint(mo.Type)
	if diags.HasErrors() {
		return nil, fmt.Errorf("option %q: invalid type: %w", mo.Name, diags)
	}

	def := &OptionDef{
		Name:        mo.Name,
		Type:        ty,
		Default:     cty.NullVal(ty),
		Description: mo.Description,
	}
	if mo.Default != nil {
		val, diags := mo.Default.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("option %q: invalid default: %w", mo.Name, diags)
		}
		converted, err := convert.Convert(val, ty)
		if err != nil {
			return nil, fmt.Errorf("option %q: default does not match declared type: %w", mo.Name, err)
		}
		def.Default = converted
	}
	return def, nil
}

// ctyToGo converts a manifest option value into a plain Go value for
// handler consumption.
func ctyToGo(val cty.Value) (any, error) {
	if val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Bool:
		return val.True(), nil
	case ty == cty.Number:
		f, _ := val.AsBigFloat().Float64()
		if f == float64(int(f)) {
			return int(f), nil
		}
		return f, nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			goElem, err := ctyToGo(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, goElem)
		}
		return out, nil
	case ty.IsMapType() || ty.IsObjectType():
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, elem := it.Element()
			goElem, err := ctyToGo(elem)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = goElem
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported option value type %s", ty.FriendlyName())
}
