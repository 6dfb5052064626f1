package cropping

import (
	"strings"
	"sync"
)

// SizeLookup resolves the size configurations that belong to a crop entry.
type SizeLookup interface {
	SizeConfigs(id VariantID) []SizeConfig
}

// SizeLookupFunc adapts a function to SizeLookup.
type SizeLookupFunc func(id VariantID) []SizeConfig

func (f SizeLookupFunc) SizeConfigs(id VariantID) []SizeConfig { return f(id) }

// TreeLookup resolves sizes from a configuration tree and memoizes the
// configuration found per path. Its cache lives as long as the value; create
// one per request or batch run.
type TreeLookup struct {
	tree *Tree

	mu    sync.Mutex
	cache map[string]FieldCroppingConfig
}

// NewTreeLookup returns a lookup over tree.
func NewTreeLookup(tree *Tree) *TreeLookup {
	return &TreeLookup{tree: tree, cache: make(map[string]FieldCroppingConfig)}
}

// ByPath returns the configuration at a "/" separated path.
func (l *TreeLookup) ByPath(path string) (FieldCroppingConfig, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cfg, ok := l.cache[path]; ok {
		return cfg, cfg != nil
	}
	cfg, _ := l.tree.Lookup(strings.Split(path, "/"))
	l.cache[path] = cfg
	return cfg, cfg != nil
}

// Variant returns the variant configuration that owns id.
func (l *TreeLookup) Variant(id VariantID) (VariantConfig, bool) {
	if len(id.Prefix) == 0 {
		return VariantConfig{}, false
	}
	cfg, ok := l.ByPath(id.ConfigPath())
	if !ok {
		return VariantConfig{}, false
	}
	leaf, ok := cfg.(Leaf)
	if !ok {
		return VariantConfig{}, false
	}
	return leaf.Variant(id.Variant)
}

// SizeConfigs returns the single size named by the id's last segment, or
// else every size whose ratio equals it, in declared order.
func (l *TreeLookup) SizeConfigs(id VariantID) []SizeConfig {
	variant, ok := l.Variant(id)
	if !ok || len(variant.Sizes) == 0 {
		return nil
	}
	if size, ok := variant.Size(id.AspectRatio); ok {
		return []SizeConfig{size}
	}
	var sizes []SizeConfig
	for _, s := range variant.Sizes {
		if s.Ratio != "" && s.Ratio == id.AspectRatio {
			sizes = append(sizes, s)
		}
	}
	return sizes
}
