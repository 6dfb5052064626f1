package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/cityevents/services/crop-service/internal/cropping"
)

const baseYAML = `
__templates:
  desktopSizes: &desktopSizes
    desktop:
      width: 1600
      ratio: 16/9
      breakpoints: desktop
    tablet:
      width: 1024
      ratio: 16/9
      breakpoints: [tablet]

breakpoints:
  mobile:
    to: 767
  tablet:
    from: 768
    to: 1199
  desktop:
    from: 1200

pixelDensities: 1,2
imageFileFormats:
  - webp
  - _default

croppingConfiguration:
  tt_content:
    textmedia:
      assets:
        variants:
          hero:
            title: Stage
            sizes:
              <<: *desktopSizes
              mobile:
                width: 400
                height: 400
                coverAreas:
                  - {x: 0.1, y: 0.2, width: 0.3, height: 0.4}
          teaser:
            sizes:
              default:
                allowedRatios:
                  wide:
                    title: Wide
                    width: 800
                    height: 450
                  free:
                    width: 700
    slider:
      slides:
        _all:
          image:
            variants:
              card:
                sizes:
                  default:
                    width: 300
                    height: 200
`

func TestParseCropping(t *testing.T) {
	c, err := ParseCropping([]byte(baseYAML))
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 2}, c.Settings.PixelDensities)
	assert.Equal(t, []string{"webp", "_default"}, c.Settings.ImageFileFormats)
	assert.Equal(t, cropping.Breakpoint{From: 768, To: 1199}, c.Settings.Breakpoints["tablet"])
	assert.Equal(t, cropping.Breakpoint{To: 767}, c.Settings.Breakpoints["mobile"])

	require.Len(t, c.Tree.Tables, 1)
	cfg, ok := c.Tree.Lookup([]string{"tt_content", "textmedia", "assets"})
	require.True(t, ok)
	leaf := cfg.(cropping.Leaf)
	require.Len(t, leaf.Variants, 2)

	hero := leaf.Variants[0]
	assert.Equal(t, "hero", hero.Identifier)
	assert.Equal(t, "Stage", hero.Title)
	require.Len(t, hero.Sizes, 3)
	assert.Equal(t, "desktop", hero.Sizes[0].Identifier)
	assert.Equal(t, "16/9", hero.Sizes[0].Ratio)
	assert.Equal(t, []string{"desktop"}, hero.Sizes[0].Breakpoints)
	assert.Equal(t, "tablet", hero.Sizes[1].Identifier)
	assert.Equal(t, []string{"tablet"}, hero.Sizes[1].Breakpoints)
	assert.Equal(t, "mobile", hero.Sizes[2].Identifier)
	assert.Equal(t, []cropping.Area{{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.4}}, hero.Sizes[2].CoverAreas)
	assert.Nil(t, hero.Sizes[2].AllowedRatios)

	teaser := leaf.Variants[1].Sizes[0]
	require.Len(t, teaser.AllowedRatios, 2)
	assert.Equal(t, cropping.AllowedRatio{Key: "wide", Title: "Wide", Width: 800, Height: 450}, teaser.AllowedRatios[0])
	assert.Equal(t, "free", teaser.AllowedRatios[1].Key)

	nested, ok := c.Tree.Lookup([]string{"tt_content", "slider", "slides", "_all", "image"})
	require.True(t, ok)
	assert.Equal(t, "card", nested.(cropping.Leaf).Variants[0].Identifier)
}

func TestParseCropping_MergesDocuments(t *testing.T) {
	override := `{
  "pixelDensities": [1, 1.5, 2],
  "breakpoints": {"desktop": {"from": 1280}},
  "croppingConfiguration": {
    "tt_content": {
      "textmedia": {"assets": {"variants": {"hero": {"sizes": {"mobile": {"width": 360, "height": 480}}}}}},
      "header": {"media": {"variants": {"logo": {"sizes": {"default": {"width": 200}}}}}}
    },
    "pages": {"_all": {"media": {"variants": {"og": {"sizes": {"default": {"width": 1200, "height": 630}}}}}}}
  }
}`
	c, err := ParseCropping([]byte(baseYAML), []byte(override))
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 1.5, 2}, c.Settings.PixelDensities)
	assert.Equal(t, cropping.Breakpoint{From: 1280}, c.Settings.Breakpoints["desktop"])
	assert.Equal(t, cropping.Breakpoint{To: 767}, c.Settings.Breakpoints["mobile"])

	require.Len(t, c.Tree.Tables, 2)
	assert.Equal(t, "tt_content", c.Tree.Tables[0].Table)
	assert.Equal(t, "pages", c.Tree.Tables[1].Table)

	types := c.Tree.Tables[0].Types
	require.Len(t, types, 3)
	assert.Equal(t, []string{"textmedia", "slider", "header"}, []string{types[0].Type, types[1].Type, types[2].Type})

	cfg, ok := c.Tree.Lookup([]string{"tt_content", "textmedia", "assets"})
	require.True(t, ok)
	hero, ok := cfg.(cropping.Leaf).Variant("hero")
	require.True(t, ok)
	require.Len(t, hero.Sizes, 3)
	mobile, _ := hero.Size("mobile")
	assert.Equal(t, 360.0, mobile.Width)
	assert.Equal(t, 480.0, mobile.Height)
	// values from the first document survive the merge
	assert.Equal(t, "Stage", hero.Title)
	assert.Len(t, mobile.CoverAreas, 1)
}

func TestParseCropping_DropsTemplateKeys(t *testing.T) {
	c, err := ParseCropping([]byte("__x:\n  a: 1\n"))
	require.NoError(t, err)
	assert.Empty(t, c.Tree.Tables)
	assert.Nil(t, c.Settings.PixelDensities)
}

func TestParseCropping_Errors(t *testing.T) {
	for name, doc := range map[string]string{
		"not a mapping": "- a\n- b\n",
		"bad density":   "pixelDensities: 1,x\n",
		"bad width":     "croppingConfiguration: {t: {_all: {f: {variants: {v: {sizes: {s: {width: wide}}}}}}}}\n",
		"bad yaml":      "a: [\n",
		"nan width":     "croppingConfiguration: {t: {_all: {f: {variants: {v: {sizes: {s: {width: NaN, height: 900}}}}}}}}\n",
		"inf height":    "croppingConfiguration: {t: {_all: {f: {variants: {v: {sizes: {s: {width: 1600, height: Infinity}}}}}}}}\n",
		"huge width":    "croppingConfiguration: {t: {_all: {f: {variants: {v: {sizes: {s: {width: 1e300}}}}}}}}\n",
		"bad ratio":     "croppingConfiguration: {t: {_all: {f: {variants: {v: {sizes: {s: {width: 100, ratio: 16/0}}}}}}}}\n",
		"bad variant":   "croppingConfiguration: {t: {_all: {f: {variants: {bad__v: {sizes: {s: {width: 100}}}}}}}}\n",
		"bad nested":    "croppingConfiguration: {t: {x: {f: {_all: {img: {variants: {v: {sizes: {s: {width: .nan}}}}}}}}}}\n",
	} {
		_, err := ParseCropping([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadCropping(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cropping.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(baseYAML), 0o600))

	c, err := LoadCropping([]string{yamlPath})
	require.NoError(t, err)
	assert.Len(t, c.Tree.Tables, 1)

	_, err = LoadCropping([]string{filepath.Join(dir, "cropping.php")})
	assert.Error(t, err)

	_, err = LoadCropping([]string{filepath.Join(dir, "missing.yml")})
	assert.Error(t, err)
}
