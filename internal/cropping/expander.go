package cropping

import "fmt"

// AspectRatioConfig is a size normalized to one aspect-ratio key. All allowed
// ratios carry resolved dimensions.
type AspectRatioConfig struct {
	Key string
	// AllowedRatios is nil for a pure free crop.
	AllowedRatios []ResolvedRatio
	CoverAreas    []Area
	FocusArea     *Area
}

// ResolvedRatio is an allowed ratio with its dimensions evaluated.
type ResolvedRatio struct {
	AllowedRatio
	Dimensions Dimensions
}

// DefaultRatio picks the first free ratio, or the first declared one.
func (c AspectRatioConfig) DefaultRatio() (ResolvedRatio, bool) {
	if len(c.AllowedRatios) == 0 {
		return ResolvedRatio{}, false
	}
	for _, r := range c.AllowedRatios {
		if r.Dimensions.IsFree() {
			return r, true
		}
	}
	return c.AllowedRatios[0], true
}

// ExpandSizes normalizes a variant's sizes into aspect-ratio keyed entries,
// preserving declaration order. Sizes sharing a key collapse into the
// position of the first one, the last declaration wins.
func ExpandSizes(sizes []SizeConfig) ([]AspectRatioConfig, error) {
	out := make([]AspectRatioConfig, 0, len(sizes))
	index := make(map[string]int, len(sizes))

	for _, size := range sizes {
		key := size.Ratio
		if key == "" {
			key = size.Identifier
		}

		allowed := size.AllowedRatios
		if allowed == nil && (size.Width > 0 || size.Height > 0) {
			allowed = []AllowedRatio{{
				Key:    syntheticRatioKey(size),
				Title:  size.Title,
				Width:  size.Width,
				Height: size.Height,
				Ratio:  size.Ratio,
			}}
		}

		cfg := AspectRatioConfig{
			Key:        key,
			CoverAreas: size.CoverAreas,
			FocusArea:  size.FocusArea,
		}
		if allowed != nil {
			cfg.AllowedRatios = make([]ResolvedRatio, 0, len(allowed))
			for _, a := range allowed {
				d, err := a.Dimensions()
				if err != nil {
					return nil, fmt.Errorf("size %q, ratio %q: %w", size.Identifier, a.Key, err)
				}
				a.Width, a.Height = d.Width(), d.Height()
				cfg.AllowedRatios = append(cfg.AllowedRatios, ResolvedRatio{AllowedRatio: a, Dimensions: d})
			}
		}

		if i, ok := index[key]; ok {
			out[i] = cfg
			continue
		}
		index[key] = len(out)
		out = append(out, cfg)
	}
	return out, nil
}

func syntheticRatioKey(size SizeConfig) string {
	if size.Title != "" {
		return size.Title
	}
	if size.Ratio != "" {
		return size.Ratio
	}
	return formatNumber(size.Width) + " x " + formatNumber(size.Height)
}
