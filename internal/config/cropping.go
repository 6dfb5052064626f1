package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/baechuer/cityevents/services/crop-service/internal/cropping"
)

// Cropping is the merged cropping configuration of all configured files.
type Cropping struct {
	Tree     *cropping.Tree
	Settings cropping.RenderSettings
}

// LoadCropping reads and merges the cropping configuration files in order.
// YAML (.yaml, .yml) and JSON (.json) files are supported.
func LoadCropping(paths []string) (*Cropping, error) {
	docs := make([][]byte, 0, len(paths))
	for _, p := range paths {
		switch strings.ToLower(filepath.Ext(p)) {
		case ".yaml", ".yml", ".json":
		default:
			return nil, fmt.Errorf("unsupported cropping configuration file type: %s", p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read cropping configuration: %w", err)
		}
		docs = append(docs, data)
	}
	return ParseCropping(docs...)
}

// ParseCropping merges configuration documents recursively, later documents
// winning on scalar conflicts. Top level keys starting with "__" hold
// templates for anchors and are dropped after merging.
func ParseCropping(docs ...[]byte) (*Cropping, error) {
	merged := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i, data := range docs {
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse cropping configuration %d: %w", i, err)
		}
		if len(doc.Content) == 0 {
			continue
		}
		root := resolve(doc.Content[0])
		if root.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("cropping configuration %d: top level must be a mapping", i)
		}
		merged = mergeNodes(merged, root)
	}

	out := &Cropping{Tree: &cropping.Tree{}}
	for _, kv := range pairs(merged) {
		key, val := kv.key, kv.value
		if strings.HasPrefix(key, "__") {
			continue
		}
		var err error
		switch key {
		case "breakpoints":
			out.Settings.Breakpoints, err = parseBreakpoints(val)
		case "pixelDensities":
			out.Settings.PixelDensities, err = parseDensities(val)
		case "imageFileFormats":
			out.Settings.ImageFileFormats = parseList(val)
		case "croppingConfiguration":
			out.Tree, err = parseTree(val)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	if err := validateTree(out.Tree); err != nil {
		return nil, fmt.Errorf("croppingConfiguration: %w", err)
	}
	return out, nil
}

// validateTree expands the sizes of every field configuration so that bad
// ratios and identifiers fail at load time.
func validateTree(tree *cropping.Tree) error {
	for _, table := range tree.Tables {
		for _, tf := range table.Types {
			for _, f := range tf.Fields {
				if err := validateField([]string{table.Table, tf.Type, f.Name}, f.Config); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func validateField(path []string, cfg cropping.FieldCroppingConfig) error {
	switch c := cfg.(type) {
	case cropping.Leaf:
		if err := cropping.ValidateVariants(c.Variants, path); err != nil {
			return fmt.Errorf("%s: %w", strings.Join(path, "."), err)
		}
	case cropping.Node:
		for _, tf := range c.Types {
			for _, f := range tf.Fields {
				sub := append(append(append([]string(nil), path...), tf.Type), f.Name)
				if err := validateField(sub, f.Config); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

type pair struct {
	key   string
	value *yaml.Node
}

// pairs lists the entries of a mapping in document order with aliases and
// "<<" merge keys resolved. Explicit keys override merged ones.
func pairs(n *yaml.Node) []pair {
	n = resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	explicit := make(map[string]bool)
	for i := 0; i+1 < len(n.Content); i += 2 {
		if !isMergeKey(n.Content[i]) {
			explicit[n.Content[i].Value] = true
		}
	}

	var out []pair
	index := make(map[string]int)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], resolve(n.Content[i+1])
		if !isMergeKey(k) {
			if j, ok := index[k.Value]; ok {
				out[j].value = v
				continue
			}
			index[k.Value] = len(out)
			out = append(out, pair{key: k.Value, value: v})
			continue
		}
		sources := []*yaml.Node{v}
		if v.Kind == yaml.SequenceNode {
			sources = v.Content
		}
		for _, src := range sources {
			for _, p := range pairs(src) {
				if _, ok := index[p.key]; ok || explicit[p.key] {
					continue
				}
				index[p.key] = len(out)
				out = append(out, p)
			}
		}
	}
	return out
}

func isMergeKey(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && (n.Tag == "!!merge" || n.Value == "<<")
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n != nil && n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return resolve(n.Content[0])
	}
	return n
}

// mergeNodes merges two mappings recursively. Non-mapping values of b replace
// those of a.
func mergeNodes(a, b *yaml.Node) *yaml.Node {
	if a == nil || a.Kind != yaml.MappingNode || b.Kind != yaml.MappingNode {
		return b
	}
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	index := make(map[string]int)
	for _, p := range pairs(a) {
		index[p.key] = len(out.Content)
		out.Content = append(out.Content, scalar(p.key), p.value)
	}
	for _, p := range pairs(b) {
		if i, ok := index[p.key]; ok {
			out.Content[i+1] = mergeNodes(resolve(out.Content[i+1]), p.value)
			continue
		}
		index[p.key] = len(out.Content)
		out.Content = append(out.Content, scalar(p.key), p.value)
	}
	return out
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func parseBreakpoints(n *yaml.Node) (map[string]cropping.Breakpoint, error) {
	out := make(map[string]cropping.Breakpoint)
	for _, p := range pairs(n) {
		var bp cropping.Breakpoint
		for _, f := range pairs(p.value) {
			v, err := number(f.value)
			if err != nil {
				return nil, fmt.Errorf("breakpoint %q %s: %w", p.key, f.key, err)
			}
			switch f.key {
			case "from":
				bp.From = int(v)
			case "to":
				bp.To = int(v)
			}
		}
		out[p.key] = bp
	}
	return out, nil
}

func parseDensities(n *yaml.Node) ([]float64, error) {
	var out []float64
	for _, s := range parseList(n) {
		d, err := strconv.ParseFloat(s, 64)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid pixel density %q", s)
		}
		out = append(out, d)
	}
	return out, nil
}

// parseList accepts a sequence or a comma separated string.
func parseList(n *yaml.Node) []string {
	n = resolve(n)
	switch n.Kind {
	case yaml.ScalarNode:
		return cropping.SplitList(n.Value)
	case yaml.SequenceNode:
		var out []string
		for _, item := range n.Content {
			if item = resolve(item); item.Kind == yaml.ScalarNode && strings.TrimSpace(item.Value) != "" {
				out = append(out, strings.TrimSpace(item.Value))
			}
		}
		return out
	}
	return nil
}

// maxNumber bounds configured sizes so density scaling stays finite.
const maxNumber = 1e6

func number(n *yaml.Node) (float64, error) {
	n = resolve(n)
	if n.Kind != yaml.ScalarNode {
		return 0, fmt.Errorf("expected a number")
	}
	if n.Tag == "!!null" || strings.TrimSpace(n.Value) == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(n.Value), 64)
	if err != nil || v < 0 || v > maxNumber || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid number %q", n.Value)
	}
	return v, nil
}

func parseTree(n *yaml.Node) (*cropping.Tree, error) {
	tree := &cropping.Tree{}
	for _, table := range pairs(n) {
		types, err := parseTypes(table.value)
		if err != nil {
			return nil, fmt.Errorf("%s.%w", table.key, err)
		}
		tree.Tables = append(tree.Tables, cropping.TableConfig{Table: table.key, Types: types})
	}
	return tree, nil
}

func parseTypes(n *yaml.Node) ([]cropping.TypeFields, error) {
	var types []cropping.TypeFields
	for _, typ := range pairs(n) {
		tf := cropping.TypeFields{Type: typ.key}
		for _, field := range pairs(typ.value) {
			cfg, err := parseFieldConfig(field.value)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", typ.key, field.key, err)
			}
			tf.Fields = append(tf.Fields, cropping.Field{Name: field.key, Config: cfg})
		}
		types = append(types, tf)
	}
	return types, nil
}

func parseFieldConfig(n *yaml.Node) (cropping.FieldCroppingConfig, error) {
	for _, p := range pairs(n) {
		if p.key != "variants" {
			continue
		}
		var leaf cropping.Leaf
		for _, v := range pairs(p.value) {
			variant, err := parseVariant(v.key, v.value)
			if err != nil {
				return nil, err
			}
			leaf.Variants = append(leaf.Variants, variant)
		}
		return leaf, nil
	}
	types, err := parseTypes(n)
	if err != nil {
		return nil, err
	}
	return cropping.Node{Types: types}, nil
}

func parseVariant(id string, n *yaml.Node) (cropping.VariantConfig, error) {
	v := cropping.VariantConfig{Identifier: id}
	for _, p := range pairs(n) {
		switch p.key {
		case "title":
			v.Title = resolve(p.value).Value
		case "sizes":
			for _, s := range pairs(p.value) {
				size, err := parseSize(s.key, s.value)
				if err != nil {
					return v, fmt.Errorf("variant %q: %w", id, err)
				}
				v.Sizes = append(v.Sizes, size)
			}
		}
	}
	return v, nil
}

func parseSize(id string, n *yaml.Node) (cropping.SizeConfig, error) {
	s := cropping.SizeConfig{Identifier: id}
	var err error
	for _, p := range pairs(n) {
		switch p.key {
		case "title":
			s.Title = resolve(p.value).Value
		case "width":
			s.Width, err = number(p.value)
		case "height":
			s.Height, err = number(p.value)
		case "ratio":
			s.Ratio = strings.TrimSpace(resolve(p.value).Value)
		case "breakpoints":
			s.Breakpoints = parseList(p.value)
		case "coverAreas":
			err = resolve(p.value).Decode(&s.CoverAreas)
		case "focusArea":
			if resolve(p.value).Kind == yaml.MappingNode {
				s.FocusArea = &cropping.Area{}
				err = resolve(p.value).Decode(s.FocusArea)
			}
		case "allowedRatios":
			for _, r := range pairs(p.value) {
				ratio, rerr := parseAllowedRatio(r.key, r.value)
				if rerr != nil {
					return s, fmt.Errorf("size %q: %w", id, rerr)
				}
				s.AllowedRatios = append(s.AllowedRatios, ratio)
			}
		}
		if err != nil {
			return s, fmt.Errorf("size %q %s: %w", id, p.key, err)
		}
	}
	return s, nil
}

func parseAllowedRatio(key string, n *yaml.Node) (cropping.AllowedRatio, error) {
	r := cropping.AllowedRatio{Key: key}
	var err error
	for _, p := range pairs(n) {
		switch p.key {
		case "title":
			r.Title = resolve(p.value).Value
		case "width":
			r.Width, err = number(p.value)
		case "height":
			r.Height, err = number(p.value)
		case "ratio":
			r.Ratio = strings.TrimSpace(resolve(p.value).Value)
		}
		if err != nil {
			return r, fmt.Errorf("allowed ratio %q %s: %w", key, p.key, err)
		}
	}
	return r, nil
}
