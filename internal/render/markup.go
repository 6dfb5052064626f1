package render

import (
	"html"
	"strconv"
	"strings"

	"github.com/baechuer/cityevents/services/crop-service/internal/cropping"
)

// Attr is one HTML attribute.
type Attr struct {
	Name  string
	Value string
}

// Image describes the <img> of a picture.
type Image struct {
	Src   string
	Alt   string
	Title string
	// Attrs are added after src, alt and title. Width and height given here
	// replace the fallback image dimensions.
	Attrs []Attr
}

// SrcsetString joins the density sets of a source as "uri 1x, uri 2x".
func SrcsetString(src cropping.Source) string {
	sets := make([]string, 0, len(src.Srcsets))
	for _, s := range src.Srcsets {
		sets = append(sets, s.URI+" "+formatDensity(s.Density)+"x")
	}
	return strings.Join(sets, ", ")
}

func formatDensity(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}

// SourceTag renders a <source> element.
func SourceTag(src cropping.Source) string {
	attrs := []Attr{{"srcset", SrcsetString(src)}}
	if src.MediaQuery != "" {
		attrs = append(attrs, Attr{"media", src.MediaQuery})
	}
	if src.Type != "" {
		attrs = append(attrs, Attr{"type", src.Type})
	}
	return tag("source", attrs)
}

// ImgTag renders an <img> element.
func ImgTag(img Image) string {
	attrs := []Attr{{"src", img.Src}, {"alt", img.Alt}}
	if img.Title != "" {
		attrs = append(attrs, Attr{"title", img.Title})
	}
	return tag("img", append(attrs, img.Attrs...))
}

// Picture renders a <picture> with one <source> per plan source and the
// fallback image. Without a plan the picture only holds img as given.
func Picture(plan *cropping.RenderPlan, img Image) string {
	var b strings.Builder
	b.WriteString("<picture>")
	if plan != nil {
		for _, src := range plan.Sources {
			b.WriteString(SourceTag(src))
		}
		img.Src = plan.FallbackImage.URI
		if !hasAttr(img.Attrs, "width") && !hasAttr(img.Attrs, "height") {
			img.Attrs = append([]Attr{
				{"width", strconv.Itoa(plan.FallbackImage.Width)},
				{"height", strconv.Itoa(plan.FallbackImage.Height)},
			}, img.Attrs...)
		}
	}
	b.WriteString(ImgTag(img))
	b.WriteString("</picture>")
	return b.String()
}

func hasAttr(attrs []Attr, name string) bool {
	for _, a := range attrs {
		if strings.EqualFold(a.Name, name) {
			return true
		}
	}
	return false
}

func tag(name string, attrs []Attr) string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(name)
	for _, a := range attrs {
		b.WriteString(" ")
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Value))
		b.WriteString(`"`)
	}
	b.WriteString(" />")
	return b.String()
}
