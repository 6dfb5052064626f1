package domain

import (
	"errors"
	"strings"

	"github.com/baechuer/cityevents/services/crop-service/internal/cropping"
)

var (
	// ErrCacheMiss is returned by caches when no value is stored.
	ErrCacheMiss = errors.New("cache miss")

	// ErrReferenceNotFound is returned when a file reference does not exist.
	ErrReferenceNotFound = errors.New("file reference not found")

	// ErrUnknownPath is returned for configuration paths without a cropping
	// configuration.
	ErrUnknownPath = errors.New("unknown cropping configuration path")
)

// Reference is a file reference record: one usage of a file on a record field,
// carrying the crop configuration of that usage.
type Reference struct {
	ID     int64   `json:"id"`
	FileID int64   `json:"file_id"`
	Crop   *string `json:"-"` // nil when the column is NULL

	// sys_file
	ObjectKey string `json:"-"`
	Extension string `json:"extension"`
	MimeType  string `json:"mime_type"`

	// sys_file_metadata, 0 when unknown
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Alternative string `json:"alternative,omitempty"`
	Title       string `json:"title,omitempty"`
}

// CropBlob returns the stored crop JSON, nil when unset.
func (r *Reference) CropBlob() []byte {
	if r.Crop == nil {
		return nil
	}
	return []byte(*r.Crop)
}

// ImageRef converts the reference into the image processor's view of it.
func (r *Reference) ImageRef() cropping.ImageRef {
	return cropping.ImageRef{
		ID:        r.ID,
		FileID:    r.FileID,
		ObjectKey: r.ObjectKey,
		Extension: strings.ToLower(r.Extension),
		MimeType:  r.MimeType,
		Width:     r.Width,
		Height:    r.Height,
	}
}

// RelationQuery selects the records related to a local table through one
// inline or file field.
type RelationQuery struct {
	LocalTable        string
	ForeignTable      string
	ForeignField      string
	ForeignTableField string
	MatchFields       [][2]string
	// TypeField and LocalType filter the local records by type. No filter is
	// applied when either is empty.
	TypeField string
	LocalType string
	// ParentIDs restricts the result to children of these local records. Nil
	// means unrestricted.
	ParentIDs []int64
}
