package imagemeta

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/baechuer/cityevents/services/crop-service/internal/cropping"
	"github.com/baechuer/cityevents/services/crop-service/internal/domain"
)

// HeadReader reads the leading bytes of an original file.
type HeadReader interface {
	ReadHead(ctx context.Context, objectKey string, n int64) ([]byte, error)
}

// Rasterizer renders vector originals to pixel images. Rasterize returns
// the leading n bytes of the rendition; ready is false while it is pending.
type Rasterizer interface {
	Rasterize(ctx context.Context, ref cropping.ImageRef, n int64) (head []byte, ready bool, err error)
}

// Source resolves the native pixel size of referenced images. Stored
// metadata wins; otherwise the image header is read from storage. Vector
// originals are measured on their rasterized rendition.
type Source struct {
	files      HeadReader
	raster     Rasterizer
	probeBytes int64
	log        zerolog.Logger
}

// NewSource creates a dimension source reading at most probeBytes per file.
// raster may be nil, leaving vector originals unresolvable.
func NewSource(files HeadReader, raster Rasterizer, probeBytes int64, log zerolog.Logger) *Source {
	return &Source{files: files, raster: raster, probeBytes: probeBytes, log: log}
}

// vector formats carry no pixel size without rasterizing them
var vector = map[string]bool{
	"pdf": true, "ai": true, "eps": true, "svg": true, "svgz": true,
}

// Dimensions returns the native size of the referenced image or an error
// wrapping cropping.ErrUnresolvableDimensions.
func (s *Source) Dimensions(ctx context.Context, ref *domain.Reference) (cropping.SourceSize, error) {
	if ref.Width > 0 && ref.Height > 0 {
		return cropping.SourceSize{Width: ref.Width, Height: ref.Height}, nil
	}
	img := ref.ImageRef()
	if vector[img.Extension] {
		return s.rasterizedDimensions(ctx, img)
	}
	if s.files == nil || ref.ObjectKey == "" {
		return cropping.SourceSize{}, fmt.Errorf("%w: no metadata", cropping.ErrUnresolvableDimensions)
	}

	head, err := s.files.ReadHead(ctx, ref.ObjectKey, s.probeBytes)
	if err != nil {
		return cropping.SourceSize{}, err
	}
	size, err := Probe(head)
	if err != nil {
		s.log.Debug().Err(err).Int64("reference_id", ref.ID).Msg("header probe failed")
		return cropping.SourceSize{}, err
	}
	return size, nil
}

func (s *Source) rasterizedDimensions(ctx context.Context, img cropping.ImageRef) (cropping.SourceSize, error) {
	ext := img.Extension
	if s.raster == nil || img.ObjectKey == "" {
		return cropping.SourceSize{}, fmt.Errorf("%w: no metadata for %s file", cropping.ErrUnresolvableDimensions, ext)
	}
	head, ready, err := s.raster.Rasterize(ctx, img, s.probeBytes)
	if err != nil {
		return cropping.SourceSize{}, err
	}
	if !ready {
		return cropping.SourceSize{}, fmt.Errorf("%w: waiting for rasterized %s file", cropping.ErrUnresolvableDimensions, ext)
	}
	size, err := Probe(head)
	if err != nil {
		s.log.Debug().Err(err).Int64("reference_id", img.ID).Msg("rasterized header unreadable")
		return cropping.SourceSize{}, err
	}
	return size, nil
}

// Probe decodes the pixel size from an image header.
func Probe(head []byte) (cropping.SourceSize, error) {
	mime, err := DetectType(head)
	if err != nil {
		return cropping.SourceSize{}, fmt.Errorf("%w: %v", cropping.ErrUnresolvableDimensions, err)
	}
	if mime == "application/pdf" || mime == "image/svg+xml" {
		return cropping.SourceSize{}, fmt.Errorf("%w: %s has no pixel size", cropping.ErrUnresolvableDimensions, mime)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(head))
	if err != nil {
		return cropping.SourceSize{}, fmt.Errorf("%w: decode %s header: %v", cropping.ErrUnresolvableDimensions, mime, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return cropping.SourceSize{}, fmt.Errorf("%w: %dx%d", cropping.ErrUnresolvableDimensions, cfg.Width, cfg.Height)
	}
	return cropping.SourceSize{Width: cfg.Width, Height: cfg.Height}, nil
}
