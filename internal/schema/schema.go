package schema

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// TypeAll addresses a field independent of the record type.
const TypeAll = "_all"

// Relation types of image fields.
const (
	RelationInline = "inline"
	RelationFile   = "file"
	RelationSelect = "select"
)

// Schema is the field schema registry: per table its "ctrl", "columns" and
// "types" definitions. A Schema is never modified in place.
type Schema struct {
	tables map[string]any
}

// New wraps decoded table definitions.
func New(tables map[string]any) *Schema {
	if tables == nil {
		tables = map[string]any{}
	}
	return &Schema{tables: normalize(tables).(map[string]any)}
}

// Load reads a schema from a YAML file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML schema document.
func Parse(data []byte) (*Schema, error) {
	var tables map[string]any
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	return New(tables), nil
}

// HasTable reports whether table is defined.
func (s *Schema) HasTable(table string) bool {
	t, ok := s.tables[table].(map[string]any)
	return ok && len(t) > 0
}

// Tables lists the defined tables in lexical order.
func (s *Schema) Tables() []string {
	out := make([]string, 0, len(s.tables))
	for t := range s.tables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// TypeField returns the column that holds the record type of table.
func (s *Schema) TypeField(table string) string {
	v, _ := getPath(s.tables, table, "ctrl", "type")
	str, _ := v.(string)
	return str
}

// Value returns the raw value at path.
func (s *Schema) Value(path ...string) (any, bool) {
	return getPath(s.tables, path...)
}

// FieldConfig is the relation configuration of one field.
type FieldConfig struct {
	Type               string
	ForeignTable       string
	ForeignField       string
	ForeignTableField  string
	ForeignMatchFields map[string]string
	MM                 string
	CropVariants       CropVariants
}

// ForeignTableName returns the related table of inline and file fields.
// Many-to-many and select relations are not resolved.
func (f *FieldConfig) ForeignTableName() (string, bool) {
	if f.Type == RelationInline && f.MM != "" {
		return "", false
	}
	if (f.Type == RelationInline || f.Type == RelationFile) && f.ForeignTable != "" {
		return f.ForeignTable, true
	}
	return "", false
}

// MatchFields returns ForeignMatchFields sorted by column.
func (f *FieldConfig) MatchFields() [][2]string {
	cols := make([]string, 0, len(f.ForeignMatchFields))
	for c := range f.ForeignMatchFields {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	out := make([][2]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, [2]string{c, f.ForeignMatchFields[c]})
	}
	return out
}

// FieldConfig resolves the configuration of a field for a record type. Type
// specific columnsOverrides are merged into the column definition when the
// table has a type field.
func (s *Schema) FieldConfig(table, typ, field string) (*FieldConfig, bool) {
	col, ok := getPath(s.tables, table, "columns", field)
	if !ok {
		return nil, false
	}
	colMap, ok := col.(map[string]any)
	if !ok {
		return nil, false
	}
	if s.TypeField(table) != "" && typ != TypeAll {
		if override, ok := getPath(s.tables, table, "types", typ, "columnsOverrides", field); ok {
			if m, ok := override.(map[string]any); ok {
				colMap = mergeMaps(colMap, m)
			}
		}
	}
	cfg, _ := colMap["config"].(map[string]any)
	return decodeFieldConfig(cfg), true
}

func decodeFieldConfig(cfg map[string]any) *FieldConfig {
	f := &FieldConfig{
		Type:              str(cfg["type"]),
		ForeignTable:      str(cfg["foreign_table"]),
		ForeignField:      str(cfg["foreign_field"]),
		ForeignTableField: str(cfg["foreign_table_field"]),
		MM:                str(cfg["MM"]),
	}
	if m, ok := cfg["foreign_match_fields"].(map[string]any); ok {
		f.ForeignMatchFields = make(map[string]string, len(m))
		for k, v := range m {
			f.ForeignMatchFields[k] = str(v)
		}
	}
	if v, ok := getPath(cfg, cropVariantsPath...); ok {
		f.CropVariants, _ = v.(CropVariants)
	}
	return f
}

var cropVariantsPath = []string{"overrideChildTca", "columns", "crop", "config", "cropVariants"}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// normalize turns decoded YAML into string keyed maps.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

func getPath(m map[string]any, path ...string) (any, bool) {
	var cur any = m
	for _, p := range path {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = node[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// setPath writes v at path, creating intermediate maps. m is modified.
func setPath(m map[string]any, v any, path ...string) {
	cur := m
	for _, p := range path[:len(path)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = v
}

// mergeMaps returns a copy of a with b merged in recursively.
func mergeMaps(a, b map[string]any) map[string]any {
	out := deepCopy(a).(map[string]any)
	for k, bv := range b {
		am, aok := out[k].(map[string]any)
		bm, bok := bv.(map[string]any)
		if aok && bok {
			out[k] = mergeMaps(am, bm)
			continue
		}
		out[k] = deepCopy(bv)
	}
	return out
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}

func fieldPath(typ, field string) []string {
	if typ == TypeAll {
		return []string{"columns", field}
	}
	return []string{"types", typ, "columnsOverrides", field}
}
