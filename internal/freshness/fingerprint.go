package freshness

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/vk/annogrid/internal/config"
	"github.com/vk/annogrid/internal/registry"
)

// fingerprintInput is what a rule's freshness fingerprint covers: the
// effective values of its declared config keys plus any settings bound by
// a custom annotation. Anything else changing must not invalidate cached
// artifacts.
type fingerprintInput struct {
	ConfigKeys map[string]any
	Settings   map[string]any
}

// Fingerprint hashes the configuration a rule depends on. The same config
// always yields the same value, so artifacts written under it stay fresh
// across runs.
func Fingerprint(eff *config.Effective, rule *registry.Rule) (uint64, error) {
	in := fingerprintInput{
		ConfigKeys: eff.Subtree(rule.ConfigKeys),
		Settings:   rule.Settings,
	}
	hash, err := hashstructure.Hash(in, hashstructure.FormatV2, nil)
	if err != nil {
		return 0, fmt.Errorf("cannot fingerprint rule %s: %w", rule.ID(), err)
	}
	return hash, nil
}
