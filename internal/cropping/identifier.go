package cropping

import (
	"fmt"
	"strings"
)

// Separator joins the segments of a crop variant id.
const Separator = "__"

// VariantID addresses one crop entry: the location of the image field
// (table, type, field, [sub type, sub field]...), the variant and the
// aspect-ratio key. It is serialized only at the storage boundary.
type VariantID struct {
	Prefix      []string
	Variant     string
	AspectRatio string
}

// NewVariantID builds an id and rejects segments that would not survive a
// round trip through String and ParseVariantID.
func NewVariantID(prefix []string, variant, aspectRatio string) (VariantID, error) {
	if len(prefix) == 0 {
		return VariantID{}, fmt.Errorf("%w: empty prefix", ErrInvalidIdentifier)
	}
	for _, s := range prefix {
		if s == "" || strings.Contains(s, Separator) {
			return VariantID{}, fmt.Errorf("%w: prefix segment %q", ErrInvalidIdentifier, s)
		}
	}
	if variant == "" || strings.Contains(variant, Separator) {
		return VariantID{}, fmt.Errorf("%w: variant %q", ErrInvalidIdentifier, variant)
	}
	if aspectRatio == "" || strings.Contains(aspectRatio, Separator) {
		return VariantID{}, fmt.Errorf("%w: aspect ratio key %q", ErrInvalidIdentifier, aspectRatio)
	}
	return VariantID{Prefix: append([]string(nil), prefix...), Variant: variant, AspectRatio: aspectRatio}, nil
}

// ParseVariantID splits a serialized id. The variant is the second to last
// segment and the aspect-ratio key the last one.
func ParseVariantID(s string) (VariantID, error) {
	segments := strings.Split(s, Separator)
	if len(segments) < 3 {
		return VariantID{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	n := len(segments)
	return VariantID{
		Prefix:      segments[:n-2],
		Variant:     segments[n-2],
		AspectRatio: segments[n-1],
	}, nil
}

// String joins the id with Separator.
func (id VariantID) String() string {
	parts := make([]string, 0, len(id.Prefix)+2)
	parts = append(parts, id.Prefix...)
	parts = append(parts, id.Variant, id.AspectRatio)
	return strings.Join(parts, Separator)
}

// ConfigPath addresses the FieldCroppingConfig that owns the id.
func (id VariantID) ConfigPath() string {
	return strings.Join(id.Prefix, "/")
}

// PrefixString is the serialized prefix without variant and ratio key.
func (id VariantID) PrefixString() string {
	return strings.Join(id.Prefix, Separator)
}
