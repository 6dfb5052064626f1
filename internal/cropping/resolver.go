package cropping

import (
	"context"
	"fmt"
	"math"
)

// DefaultFormat keeps the original file format of the image.
const DefaultFormat = "_default"

// ImageRef is a file reference as seen by the image processor.
type ImageRef struct {
	ID        int64
	FileID    int64
	ObjectKey string
	Extension string
	MimeType  string
	Width     int
	Height    int
}

// PixelArea is a crop rectangle in absolute source pixels.
type PixelArea struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Instructions tell the image processor what to produce.
type Instructions struct {
	Width  int
	Height int
	Crop   *PixelArea
	// Format is a file extension, or DefaultFormat.
	Format string
}

// ProcessedImage is a handle on a produced image.
type ProcessedImage struct {
	Key      string
	Width    int
	Height   int
	MimeType string
}

// ImageProcessor crops and resizes images and addresses the results.
type ImageProcessor interface {
	CropAndResize(ctx context.Context, ref ImageRef, in Instructions) (ProcessedImage, error)
	URI(img ProcessedImage, absolute bool) string
}

// RenderSettings are the process wide rendering options.
type RenderSettings struct {
	Breakpoints      map[string]Breakpoint
	PixelDensities   []float64
	ImageFileFormats []string
}

func (s RenderSettings) densities() []float64 {
	if len(s.PixelDensities) == 0 {
		return []float64{1}
	}
	return s.PixelDensities
}

func (s RenderSettings) formats() []string {
	if len(s.ImageFileFormats) == 0 {
		return []string{DefaultFormat}
	}
	return s.ImageFileFormats
}

// Srcset is one density-tagged image URI.
type Srcset struct {
	URI     string
	Density float64
}

// Source is one <source> alternative: a size rendered in one format.
type Source struct {
	Key        string
	SizeID     string
	MediaQuery string
	Width      int
	Height     int
	Type       string
	Srcsets    []Srcset
}

// FallbackImage is the single non-responsive image.
type FallbackImage struct {
	URI       string
	Width     int
	Height    int
	Processed ProcessedImage
}

// RenderPlan is everything needed to render one variant of an image.
type RenderPlan struct {
	CropEntries   []CropEntry
	Sources       []Source
	FallbackImage FallbackImage
}

// Resolver turns stored crop configurations into render plans.
type Resolver struct {
	processor ImageProcessor
	settings  RenderSettings
}

// NewResolver creates a Resolver.
func NewResolver(processor ImageProcessor, settings RenderSettings) *Resolver {
	return &Resolver{processor: processor, settings: settings}
}

type matchedEntry struct {
	id    VariantID
	entry CropEntry
	sizes []SizeConfig
}

// Resolve builds the render plan of variant for ref. It returns nil when the
// variant has not been cropped or none of its entries has a size
// configuration.
func (r *Resolver) Resolve(ctx context.Context, ref ImageRef, crop *Configuration, variant string, lookup SizeLookup, fallbackSize string, absolute bool) (*RenderPlan, error) {
	if crop == nil {
		return nil, nil
	}

	var matched []matchedEntry
	var entries []CropEntry
	for _, key := range crop.IDs() {
		id, err := ParseVariantID(key)
		if err != nil || id.Variant != variant {
			continue
		}
		entry, err := crop.Entry(key)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
		matched = append(matched, matchedEntry{id: id, entry: entry, sizes: lookup.SizeConfigs(id)})
	}
	if len(matched) == 0 {
		return nil, nil
	}

	plan := &RenderPlan{CropEntries: entries}
	index := make(map[string]int)
	var fallback *matchedEntry
	var fallbackSizeCfg SizeConfig
	fallbackFound := false

	for i := range matched {
		m := &matched[i]
		if len(m.sizes) == 0 {
			continue
		}
		for _, size := range m.sizes {
			for _, format := range r.settings.formats() {
				src, err := r.source(ctx, ref, m.entry, size, format, absolute)
				if err != nil {
					return nil, err
				}
				if j, ok := index[src.Key]; ok {
					plan.Sources[j] = src
					continue
				}
				index[src.Key] = len(plan.Sources)
				plan.Sources = append(plan.Sources, src)
			}
			if !fallbackFound {
				fallback, fallbackSizeCfg = m, size
				fallbackFound = fallbackSize != "" && size.Identifier == fallbackSize
			}
		}
	}
	if fallback == nil {
		return nil, nil
	}

	dims := ProcessingDimensions(fallbackSizeCfg, fallback.entry.SelectedRatio, 1)
	w, h := dims.Pixels()
	img, err := r.processor.CropAndResize(ctx, ref, Instructions{
		Width:  w,
		Height: h,
		Crop:   absoluteCrop(fallback.entry.CropArea, ref),
		Format: DefaultFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("process fallback image for %s: %w", fallback.id, err)
	}
	plan.FallbackImage = FallbackImage{
		URI:       r.processor.URI(img, absolute),
		Width:     w,
		Height:    h,
		Processed: img,
	}
	return plan, nil
}

func (r *Resolver) source(ctx context.Context, ref ImageRef, entry CropEntry, size SizeConfig, format string, absolute bool) (Source, error) {
	base := ProcessingDimensions(size, entry.SelectedRatio, 1)
	w, h := base.Pixels()
	src := Source{
		Key:        size.Identifier + "_" + format,
		SizeID:     size.Identifier,
		MediaQuery: MediaQuery(r.settings.Breakpoints, size.Breakpoints),
		Width:      w,
		Height:     h,
		Type:       ref.MimeType,
	}
	if format != DefaultFormat {
		src.Type = "image/" + format
	}
	crop := absoluteCrop(entry.CropArea, ref)
	for _, density := range r.settings.densities() {
		pw, ph := ProcessingDimensions(size, entry.SelectedRatio, density).Pixels()
		img, err := r.processor.CropAndResize(ctx, ref, Instructions{Width: pw, Height: ph, Crop: crop, Format: format})
		if err != nil {
			return Source{}, fmt.Errorf("process size %q at %vx: %w", size.Identifier, density, err)
		}
		src.Srcsets = append(src.Srcsets, Srcset{URI: r.processor.URI(img, absolute), Density: density})
	}
	return src, nil
}

// ProcessingDimensions computes the output dimensions of size for the
// selected ratio at a pixel density. When selectedRatio names an allowed
// ratio of the size its dimensions are used, otherwise the size's own.
func ProcessingDimensions(size SizeConfig, selectedRatio string, density float64) Dimensions {
	w, h, ratio := size.Width, size.Height, size.Ratio
	if selectedRatio != "" && size.AllowedRatios != nil {
		if selectedRatio == legacyFreeRatio {
			selectedRatio = FreeRatio
		}
		allowed, ok := size.AllowedRatio(selectedRatio)
		if !ok && selectedRatio == FreeRatio {
			allowed, ok = size.AllowedRatio(legacyFreeRatio)
		}
		if ok {
			w, h, ratio = allowed.Width, allowed.Height, allowed.Ratio
		}
	}
	d, err := ParseDimensions(w, h, ratio)
	if err != nil {
		d = NewDimensions(w, h, 0)
	}
	return d.Scale(density)
}

func absoluteCrop(area Area, ref ImageRef) *PixelArea {
	if area.IsEmpty() || ref.Width <= 0 || ref.Height <= 0 {
		return nil
	}
	return &PixelArea{
		X:      int(math.Round(area.X * float64(ref.Width))),
		Y:      int(math.Round(area.Y * float64(ref.Height))),
		Width:  int(math.Round(area.Width * float64(ref.Width))),
		Height: int(math.Round(area.Height * float64(ref.Height))),
	}
}
