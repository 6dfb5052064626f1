package cropping

import (
	"strconv"
	"strings"
)

// TypeAll addresses a field regardless of the record type.
const TypeAll = "_all"

// Area is a rectangle expressed as fractions of the source image.
type Area struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsEmpty reports whether the area has no extent.
func (a Area) IsEmpty() bool { return a.Width <= 0 || a.Height <= 0 }

// FullArea covers the whole image.
var FullArea = Area{X: 0, Y: 0, Width: 1, Height: 1}

// AllowedRatio is one concrete ratio choice of a size.
type AllowedRatio struct {
	Key    string
	Title  string
	Width  float64
	Height float64
	Ratio  string
}

// Dimensions resolves the allowed ratio's width, height and ratio expression.
func (a AllowedRatio) Dimensions() (Dimensions, error) {
	return ParseDimensions(a.Width, a.Height, a.Ratio)
}

// SizeConfig is one entry of a variant's sizes.
type SizeConfig struct {
	Identifier string
	Title      string
	Width      float64
	Height     float64
	Ratio      string
	// AllowedRatios is nil when the size does not configure any.
	AllowedRatios []AllowedRatio
	CoverAreas    []Area
	FocusArea     *Area
	Breakpoints   []string
}

// AllowedRatio returns the allowed ratio stored under key.
func (s SizeConfig) AllowedRatio(key string) (AllowedRatio, bool) {
	for _, r := range s.AllowedRatios {
		if r.Key == key {
			return r, true
		}
	}
	return AllowedRatio{}, false
}

// Dimensions resolves the size's own width, height and ratio.
func (s SizeConfig) Dimensions() (Dimensions, error) {
	return ParseDimensions(s.Width, s.Height, s.Ratio)
}

// VariantConfig is a named use case of an image with its sizes in declared order.
type VariantConfig struct {
	Identifier string
	Title      string
	Sizes      []SizeConfig
}

// Size returns the size with the given identifier.
func (v VariantConfig) Size(identifier string) (SizeConfig, bool) {
	for _, s := range v.Sizes {
		if s.Identifier == identifier {
			return s, true
		}
	}
	return SizeConfig{}, false
}

// FieldCroppingConfig is either a Leaf carrying variants or a Node that
// descends into sub types and sub fields of a related record.
type FieldCroppingConfig interface {
	isFieldCroppingConfig()
}

// Leaf is the cropping configuration placed directly on an image field.
type Leaf struct {
	Variants []VariantConfig
}

// Variant returns the variant with the given identifier.
func (l Leaf) Variant(identifier string) (VariantConfig, bool) {
	for _, v := range l.Variants {
		if v.Identifier == identifier {
			return v, true
		}
	}
	return VariantConfig{}, false
}

// Node recurses through the types of a related record.
type Node struct {
	Types []TypeFields
}

func (Leaf) isFieldCroppingConfig() {}
func (Node) isFieldCroppingConfig() {}

// TypeFields lists the configured fields of one record type.
type TypeFields struct {
	Type   string
	Fields []Field
}

// Field binds a field name to its cropping configuration.
type Field struct {
	Name   string
	Config FieldCroppingConfig
}

// TableConfig lists the configured record types of one table.
type TableConfig struct {
	Table string
	Types []TypeFields
}

// Tree is the complete cropping configuration: table -> type -> field.
type Tree struct {
	Tables []TableConfig
}

// Lookup walks path (table, type, field, [sub type, sub field]...) and returns
// the configuration found there.
func (t *Tree) Lookup(path []string) (FieldCroppingConfig, bool) {
	if t == nil || len(path) < 3 || (len(path)-3)%2 != 0 {
		return nil, false
	}
	var types []TypeFields
	for _, tc := range t.Tables {
		if tc.Table == path[0] {
			types = tc.Types
			break
		}
	}
	var cfg FieldCroppingConfig
	for rest := path[1:]; len(rest) > 0; rest = rest[2:] {
		field, ok := findField(types, rest[0], rest[1])
		if !ok {
			return nil, false
		}
		cfg = field.Config
		if len(rest) == 2 {
			break
		}
		node, ok := cfg.(Node)
		if !ok {
			return nil, false
		}
		types = node.Types
	}
	return cfg, cfg != nil
}

func findField(types []TypeFields, typ, name string) (Field, bool) {
	for _, tf := range types {
		if tf.Type != typ {
			continue
		}
		for _, f := range tf.Fields {
			if f.Name == name {
				return f, true
			}
		}
	}
	return Field{}, false
}

// formatNumber renders a configured number the way it is written in
// configuration files: integers without a fraction, absent values empty.
func formatNumber(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SplitList splits a comma separated list and trims its items.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
