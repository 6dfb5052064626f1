package cropping

import (
	"bytes"
	"fmt"
)

// SourceSize is the native pixel size of an image.
type SourceSize struct {
	Width  int
	Height int
}

// Outcome is the result of generating default croppings for one reference.
type Outcome struct {
	Configuration *Configuration
	// Blob is the encoded configuration; only set when Changed.
	Blob    []byte
	Created int
	Changed bool
}

// GenerateDefaults adds a default crop entry for every (variant, aspect ratio)
// of variants that is missing from existing. Existing entries are never
// touched. existing is not modified.
func GenerateDefaults(existing *Configuration, source SourceSize, variants []VariantConfig, prefix []string) (*Configuration, int, error) {
	if source.Width <= 0 || source.Height <= 0 {
		return nil, 0, fmt.Errorf("%w: %dx%d", ErrUnresolvableDimensions, source.Width, source.Height)
	}
	out := NewConfiguration()
	if existing != nil {
		out = existing.Clone()
	}

	created := 0
	for _, variant := range variants {
		aspectRatios, err := ExpandSizes(variant.Sizes)
		if err != nil {
			return nil, 0, fmt.Errorf("variant %q: %w", variant.Identifier, err)
		}
		for _, ar := range aspectRatios {
			id, err := NewVariantID(prefix, variant.Identifier, ar.Key)
			if err != nil {
				return nil, 0, err
			}
			key := id.String()
			if out.Has(key) {
				continue
			}
			if err := out.Set(key, defaultEntry(ar, source)); err != nil {
				return nil, 0, err
			}
			created++
		}
	}
	return out, created, nil
}

// GenerateBlob runs GenerateDefaults against a stored crop blob. Unparsable
// blobs count as empty. Changed is false when nothing was created or the
// encoded result equals the input byte for byte.
func GenerateBlob(blob []byte, source SourceSize, variants []VariantConfig, prefix []string) (Outcome, error) {
	existing := DecodeConfiguration(blob)
	cfg, created, err := GenerateDefaults(existing, source, variants, prefix)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Configuration: cfg, Created: created}
	if created == 0 {
		return out, nil
	}
	encoded, err := cfg.MarshalJSON()
	if err != nil {
		return Outcome{}, fmt.Errorf("encode crop configuration: %w", err)
	}
	if bytes.Equal(encoded, blob) {
		return out, nil
	}
	out.Blob = encoded
	out.Changed = true
	return out, nil
}

func defaultEntry(ar AspectRatioConfig, source SourceSize) CropEntry {
	ratio, ok := ar.DefaultRatio()
	if !ok {
		return CropEntry{
			CropArea:      FullArea,
			SelectedRatio: fmt.Sprintf("%d x %d", source.Width, source.Height),
		}
	}
	if ratio.Dimensions.IsFree() {
		return CropEntry{CropArea: FullArea, SelectedRatio: FreeRatio}
	}
	return CropEntry{
		CropArea:      CenteredCropArea(source.Width, source.Height, ratio.Dimensions.Ratio()),
		SelectedRatio: ratio.Key,
	}
}

// ValidateVariants checks that every (variant, aspect ratio) of variants
// yields a valid crop id under prefix.
func ValidateVariants(variants []VariantConfig, prefix []string) error {
	for _, variant := range variants {
		aspectRatios, err := ExpandSizes(variant.Sizes)
		if err != nil {
			return fmt.Errorf("variant %q: %w", variant.Identifier, err)
		}
		for _, ar := range aspectRatios {
			if _, err := NewVariantID(prefix, variant.Identifier, ar.Key); err != nil {
				return err
			}
		}
	}
	return nil
}
