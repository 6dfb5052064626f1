package processing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baechuer/cityevents/services/crop-service/internal/cropping"
	"github.com/baechuer/cityevents/services/crop-service/internal/domain"
	"github.com/baechuer/cityevents/services/crop-service/internal/imagemeta"
	"github.com/baechuer/cityevents/services/crop-service/internal/metrics"
)

// Store is the storage holding processed images.
type Store interface {
	PublicObjectExists(ctx context.Context, objectKey string) (bool, error)
	ReadPublicHead(ctx context.Context, objectKey string, n int64) ([]byte, error)
	PublicURL(objectKey string) string
}

// JobPublisher hands processing jobs to the image worker.
type JobPublisher interface {
	PublishProcessCrop(ctx context.Context, msg domain.ProcessCropMessage) error
}

// Processor addresses processed images by a key derived from the original
// and the processing instructions. Images that do not exist yet are
// requested from the image worker; their URI is valid once the worker is done.
// A requested image is not checked or requested again while marked.
type Processor struct {
	store       Store
	jobs        JobPublisher
	marker      Marker
	siteBaseURL string
	log         zerolog.Logger
}

// NewProcessor creates a new processor.
func NewProcessor(store Store, jobs JobPublisher, marker Marker, siteBaseURL string, log zerolog.Logger) *Processor {
	return &Processor{
		store:       store,
		jobs:        jobs,
		marker:      marker,
		siteBaseURL: strings.TrimRight(siteBaseURL, "/"),
		log:         log,
	}
}

// CropAndResize returns the handle of the processed image, requesting it
// from the image worker when it does not exist yet.
func (p *Processor) CropAndResize(ctx context.Context, ref cropping.ImageRef, in cropping.Instructions) (cropping.ProcessedImage, error) {
	ext := OutputExtension(ref, in.Format)
	img := cropping.ProcessedImage{
		Key:      DerivedKey(ref, in, ext),
		Width:    in.Width,
		Height:   in.Height,
		MimeType: imagemeta.MimeTypeForExtension(ext),
	}
	if in.Format == cropping.DefaultFormat && ref.MimeType != "" {
		img.MimeType = ref.MimeType
	}

	fresh, err := p.marker.Mark(ctx, img.Key)
	if err != nil {
		p.log.Warn().Err(err).Str("key", img.Key).Msg("failed to mark processing request")
		fresh = true
	}
	if !fresh {
		return img, nil
	}

	exists, err := p.store.PublicObjectExists(ctx, img.Key)
	if err != nil {
		p.unmark(ctx, img.Key)
		return cropping.ProcessedImage{}, err
	}
	if !exists {
		msg := domain.ProcessCropMessage{
			JobID:       uuid.New().String(),
			ReferenceID: ref.ID,
			SourceKey:   ref.ObjectKey,
			TargetKey:   img.Key,
			Width:       in.Width,
			Height:      in.Height,
			Format:      ext,
			ContentType: img.MimeType,
		}
		if in.Crop != nil {
			msg.HasCrop = true
			msg.CropX, msg.CropY = in.Crop.X, in.Crop.Y
			msg.CropWidth, msg.CropHeight = in.Crop.Width, in.Crop.Height
		}
		if err := p.jobs.PublishProcessCrop(ctx, msg); err != nil {
			p.unmark(ctx, img.Key)
			return cropping.ProcessedImage{}, fmt.Errorf("failed to request processing of %s: %w", img.Key, err)
		}
		metrics.RecordProcessJobPublished()
		p.log.Debug().Int64("reference_id", ref.ID).Str("key", img.Key).Msg("requested processed image")
	}
	return img, nil
}

func (p *Processor) unmark(ctx context.Context, key string) {
	if err := p.marker.Unmark(ctx, key); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("failed to unmark processing request")
	}
}

// URI returns the public URL of img. Relative URIs drop scheme and host when
// the image is served from the site itself.
func (p *Processor) URI(img cropping.ProcessedImage, absolute bool) string {
	raw := p.store.PublicURL(img.Key)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Host == "" {
		if absolute && p.siteBaseURL != "" {
			return p.siteBaseURL + "/" + strings.TrimLeft(raw, "/")
		}
		return raw
	}
	if !absolute && p.siteBaseURL != "" {
		site, err := url.Parse(p.siteBaseURL)
		if err == nil && site.Host == u.Host {
			return u.RequestURI()
		}
	}
	return raw
}

// OutputExtension is the file extension of a processed image.
func OutputExtension(ref cropping.ImageRef, format string) string {
	if format != "" && format != cropping.DefaultFormat {
		return strings.ToLower(format)
	}
	if ref.Extension != "" {
		return strings.ToLower(ref.Extension)
	}
	return "jpg"
}

// DerivedKey is the object key of the image produced from ref with in.
// Equal inputs always yield the same key.
func DerivedKey(ref cropping.ImageRef, in cropping.Instructions, ext string) string {
	crop := "none"
	if in.Crop != nil {
		crop = fmt.Sprintf("%d,%d,%d,%d", in.Crop.X, in.Crop.Y, in.Crop.Width, in.Crop.Height)
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%dx%d|%s|%s", ref.ObjectKey, in.Width, in.Height, crop, ext)))
	return fmt.Sprintf("processed/%d/%s.%s", ref.FileID, hex.EncodeToString(sum[:8]), ext)
}
