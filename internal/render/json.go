package render

import (
	"bytes"
	"encoding/json"
	"path"
	"strings"

	"github.com/baechuer/cityevents/services/crop-service/internal/cropping"
	"github.com/baechuer/cityevents/services/crop-service/internal/imagemeta"
)

// SrcsetView is one density set of a source.
type SrcsetView struct {
	URI     string  `json:"uri"`
	Density float64 `json:"density"`
}

// SourceView is the API representation of a source. Width and height are
// omitted when unknown.
type SourceView struct {
	Srcsets    []SrcsetView
	Srcset     string
	MediaQuery string
	Height     int
	Width      int
	Type       string
}

// MarshalJSON keeps the key order of the representation.
func (v SourceView) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, val any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
	srcsets := v.Srcsets
	if srcsets == nil {
		srcsets = []SrcsetView{}
	}
	if err := write("srcsets", srcsets); err != nil {
		return nil, err
	}
	if err := write("srcset", v.Srcset); err != nil {
		return nil, err
	}
	if err := write("mediaQuery", v.MediaQuery); err != nil {
		return nil, err
	}
	if v.Height > 0 {
		if err := write("height", v.Height); err != nil {
			return nil, err
		}
	}
	if v.Width > 0 {
		if err := write("width", v.Width); err != nil {
			return nil, err
		}
	}
	if v.Type != "" {
		if err := write("type", v.Type); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FallbackView is the API representation of the fallback image.
type FallbackView struct {
	Src    string `json:"src"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// PlanView is the API representation of a render plan.
type PlanView struct {
	CropConfigurations []cropping.CropEntry `json:"cropConfigurations"`
	Sources            []SourceView         `json:"sources"`
	FallbackImage      FallbackView         `json:"fallbackImage"`
}

// NewSourceView converts a source. Without a known type it is derived from
// the extension of the first srcset URI.
func NewSourceView(src cropping.Source) SourceView {
	v := SourceView{
		Srcset:     SrcsetString(src),
		MediaQuery: src.MediaQuery,
		Height:     src.Height,
		Width:      src.Width,
		Type:       src.Type,
	}
	for _, s := range src.Srcsets {
		v.Srcsets = append(v.Srcsets, SrcsetView{URI: s.URI, Density: s.Density})
	}
	if v.Type == "" && len(src.Srcsets) > 0 {
		v.Type = typeFromURI(src.Srcsets[0].URI)
	}
	return v
}

func typeFromURI(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	ext := strings.TrimPrefix(path.Ext(uri), ".")
	if ext == "" {
		return "image/"
	}
	return imagemeta.MimeTypeForExtension(ext)
}

// NewPlanView converts a render plan.
func NewPlanView(plan *cropping.RenderPlan) PlanView {
	v := PlanView{
		CropConfigurations: plan.CropEntries,
		Sources:            make([]SourceView, 0, len(plan.Sources)),
		FallbackImage: FallbackView{
			Src:    plan.FallbackImage.URI,
			Width:  plan.FallbackImage.Width,
			Height: plan.FallbackImage.Height,
		},
	}
	for _, src := range plan.Sources {
		v.Sources = append(v.Sources, NewSourceView(src))
	}
	return v
}
