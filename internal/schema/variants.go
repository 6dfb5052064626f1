package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/baechuer/cityevents/services/crop-service/internal/cropping"
)

// FreeRatioTitle labels the free aspect ratio in the crop editor.
const FreeRatioTitle = "Free"

// AspectRatio is one aspect ratio offered by the crop editor. Value is 0 for
// the free ratio.
type AspectRatio struct {
	Key   string  `json:"-"`
	Title string  `json:"title"`
	Value float64 `json:"value"`
}

// AspectRatios keeps the declared order of aspect ratios and encodes as a
// JSON object keyed by ratio key.
type AspectRatios []AspectRatio

// CropVariant is the crop editor definition of one crop variant id.
type CropVariant struct {
	ID                  string          `json:"-"`
	Title               string          `json:"title"`
	AllowedAspectRatios AspectRatios    `json:"allowedAspectRatios"`
	CoverAreas          []cropping.Area `json:"coverAreas,omitempty"`
	FocusArea           *cropping.Area  `json:"focusArea,omitempty"`
}

// CropVariants is an ordered list of crop variants that encodes as a JSON
// object keyed by crop variant id.
type CropVariants []CropVariant

func (r AspectRatios) MarshalJSON() ([]byte, error) {
	keys := make([]string, len(r))
	vals := make([]any, len(r))
	for i, a := range r {
		keys[i], vals[i] = a.Key, a
	}
	return marshalObject(keys, vals)
}

func (v CropVariants) MarshalJSON() ([]byte, error) {
	keys := make([]string, len(v))
	vals := make([]any, len(v))
	for i, c := range v {
		keys[i], vals[i] = c.ID, c
	}
	return marshalObject(keys, vals)
}

func marshalObject(keys []string, vals []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(vals[i])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r AspectRatios) set(a AspectRatio) AspectRatios {
	for i := range r {
		if r[i].Key == a.Key {
			r[i] = a
			return r
		}
	}
	return append(r, a)
}

// BuildCropVariants creates the crop editor definitions of the variants of
// one image field located at prefix.
func BuildCropVariants(leaf cropping.Leaf, prefix []string) (CropVariants, error) {
	var out CropVariants
	for _, variant := range leaf.Variants {
		variantTitle := variant.Title
		if variantTitle == "" {
			variantTitle = ucfirst(variant.Identifier)
		}
		configs, err := cropping.ExpandSizes(variant.Sizes)
		if err != nil {
			return nil, fmt.Errorf("variant %q: %w", variant.Identifier, err)
		}
		for _, ar := range configs {
			id, err := cropping.NewVariantID(prefix, variant.Identifier, ar.Key)
			if err != nil {
				return nil, err
			}
			cv := CropVariant{ID: id.String(), Title: variantTitle}
			if len(configs) > 1 {
				cv.Title = variantTitle + " " + ucfirst(ar.Key)
			}
			for _, r := range ar.AllowedRatios {
				if r.Width > 0 && r.Height > 0 {
					title := r.Title
					if title == "" {
						title = r.Key
					}
					cv.AllowedAspectRatios = cv.AllowedAspectRatios.set(AspectRatio{Key: r.Key, Title: title, Value: r.Width / r.Height})
					continue
				}
				title := r.Title
				if title == "" {
					title = FreeRatioTitle
				}
				cv.AllowedAspectRatios = cv.AllowedAspectRatios.set(AspectRatio{Key: cropping.FreeRatio, Title: title})
			}
			if len(cv.AllowedAspectRatios) == 0 {
				cv.AllowedAspectRatios = AspectRatios{{Key: cropping.FreeRatio, Title: FreeRatioTitle}}
			}
			if len(ar.CoverAreas) > 0 {
				cv.CoverAreas = ar.CoverAreas
			}
			cv.FocusArea = ar.FocusArea
			out = append(out, cv)
		}
	}
	return out, nil
}

// AddVariantsToSchema returns a copy of s with the crop variants of tree
// registered on the configured fields. Nested configurations are written into
// the child schema of their parent field. Tables missing from s are skipped,
// missing fields are skipped with a warning.
func AddVariantsToSchema(s *Schema, tree *cropping.Tree, log zerolog.Logger) (*Schema, error) {
	tables := deepCopy(s.tables).(map[string]any)
	if tree == nil {
		return &Schema{tables: tables}, nil
	}
	for _, tc := range tree.Tables {
		tableSchema, ok := tables[tc.Table].(map[string]any)
		if !ok || len(tableSchema) == 0 {
			log.Debug().Str("table", tc.Table).Msg("table not in schema, skipping cropping configuration")
			continue
		}
		for _, tf := range tc.Types {
			for _, field := range tf.Fields {
				if _, ok := getPath(tableSchema, "columns", field.Name); !ok {
					log.Warn().
						Str("table", tc.Table).
						Str("type", tf.Type).
						Str("field", field.Name).
						Msg("field does not exist in schema, skipping cropping configuration")
					continue
				}
				prefix := []string{tc.Table, tf.Type, field.Name}
				if err := writeFieldConfig(tableSchema, tf.Type, field.Name, field.Config, prefix); err != nil {
					return nil, fmt.Errorf("%s: %w", strings.Join(prefix, "."), err)
				}
			}
		}
	}
	return &Schema{tables: tables}, nil
}

func writeFieldConfig(tableSchema map[string]any, typ, field string, cfg cropping.FieldCroppingConfig, prefix []string) error {
	childPath := append(fieldPath(typ, field), "config", "overrideChildTca")
	switch c := cfg.(type) {
	case cropping.Leaf:
		variants, err := BuildCropVariants(c, prefix)
		if err != nil {
			return err
		}
		setPath(tableSchema, variants, append(childPath, "columns", "crop", "config", "cropVariants")...)
	case cropping.Node:
		for _, sub := range c.Types {
			for _, subField := range sub.Fields {
				child := map[string]any{}
				if existing, ok := getPath(tableSchema, childPath...); ok {
					if m, ok := existing.(map[string]any); ok {
						child = m
					}
				}
				subPrefix := append(append([]string(nil), prefix...), sub.Type, subField.Name)
				if err := writeFieldConfig(child, sub.Type, subField.Name, subField.Config, subPrefix); err != nil {
					return err
				}
				setPath(tableSchema, child, childPath...)
			}
		}
	}
	return nil
}

// CropVariants returns the crop variants registered for a field. An empty
// type means TypeAll.
func (s *Schema) CropVariants(table, typ, field string) (CropVariants, bool) {
	if typ == "" {
		typ = TypeAll
	}
	path := append([]string{table}, fieldPath(typ, field)...)
	path = append(path, "config")
	path = append(path, cropVariantsPath...)
	v, ok := getPath(s.tables, path...)
	if !ok {
		return nil, false
	}
	cv, ok := v.(CropVariants)
	return cv, ok
}

func ucfirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
