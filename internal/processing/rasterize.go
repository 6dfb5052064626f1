package processing

import (
	"context"

	"github.com/baechuer/cityevents/services/crop-service/internal/cropping"
)

// rasterFormat is the format vector originals are rendered to at their
// native size.
const rasterFormat = "png"

// Rasterize returns the leading n bytes of the rasterized rendition of a
// vector original. Until the image worker has produced it, the rendition is
// requested and ready is false.
func (p *Processor) Rasterize(ctx context.Context, ref cropping.ImageRef, n int64) (head []byte, ready bool, err error) {
	in := cropping.Instructions{Format: rasterFormat}
	key := DerivedKey(ref, in, rasterFormat)

	exists, err := p.store.PublicObjectExists(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		if _, err := p.CropAndResize(ctx, ref, in); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	head, err = p.store.ReadPublicHead(ctx, key, n)
	if err != nil {
		return nil, false, err
	}
	return head, true, nil
}
