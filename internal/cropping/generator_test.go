package cropping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPrefix = []string{"tt_content", "textmedia", "assets"}

func heroVariant() []VariantConfig {
	return []VariantConfig{{
		Identifier: "hero",
		Sizes: []SizeConfig{{
			Identifier:    "default",
			AllowedRatios: []AllowedRatio{{Key: "wide", Width: 16, Height: 9}},
		}},
	}}
}

func TestGenerateBlob_MatchingRatio(t *testing.T) {
	out, err := GenerateBlob(nil, SourceSize{Width: 1600, Height: 900}, heroVariant(), testPrefix)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, 1, out.Created)

	e, err := out.Configuration.Entry("tt_content__textmedia__assets__hero__default")
	require.NoError(t, err)
	assert.Equal(t, "wide", e.SelectedRatio)
	assert.InDelta(t, 1, e.CropArea.Width, 1e-12)
	assert.InDelta(t, 1, e.CropArea.Height, 1e-12)
	assert.InDelta(t, 0, e.CropArea.X, 1e-12)
	assert.InDelta(t, 0, e.CropArea.Y, 1e-12)
	assert.Nil(t, e.FocusArea)
}

func TestGenerateBlob_SquareSource(t *testing.T) {
	out, err := GenerateBlob(nil, SourceSize{Width: 1000, Height: 1000}, heroVariant(), testPrefix)
	require.NoError(t, err)

	e, err := out.Configuration.Entry("tt_content__textmedia__assets__hero__default")
	require.NoError(t, err)
	assert.Equal(t, Area{X: 0, Y: 0.21875, Width: 1, Height: 0.5625}, e.CropArea)
	assert.JSONEq(t,
		`{"tt_content__textmedia__assets__hero__default":{"cropArea":{"x":0,"y":0.21875,"width":1,"height":0.5625},"selectedRatio":"wide","focusArea":null}}`,
		string(out.Blob))
}

func TestGenerateBlob_PureFreeCrop(t *testing.T) {
	variants := []VariantConfig{{Identifier: "original", Sizes: []SizeConfig{{Identifier: "any"}}}}
	out, err := GenerateBlob(nil, SourceSize{Width: 1600, Height: 900}, variants, testPrefix)
	require.NoError(t, err)

	e, err := out.Configuration.Entry("tt_content__textmedia__assets__original__any")
	require.NoError(t, err)
	assert.Equal(t, FullArea, e.CropArea)
	assert.Equal(t, "1600 x 900", e.SelectedRatio)
}

func TestGenerateBlob_FreeRatioPreferred(t *testing.T) {
	variants := []VariantConfig{{Identifier: "teaser", Sizes: []SizeConfig{{
		Identifier: "default",
		AllowedRatios: []AllowedRatio{
			{Key: "wide", Width: 16, Height: 9},
			{Key: "free", Title: "Free"},
		},
	}}}}
	out, err := GenerateBlob(nil, SourceSize{Width: 800, Height: 600}, variants, testPrefix)
	require.NoError(t, err)

	e, err := out.Configuration.Entry("tt_content__textmedia__assets__teaser__default")
	require.NoError(t, err)
	assert.Equal(t, FreeRatio, e.SelectedRatio)
	assert.Equal(t, FullArea, e.CropArea)
}

func TestGenerateBlob_KeepsExistingEntries(t *testing.T) {
	existing := `{"tt_content__textmedia__assets__hero__default":{"cropArea":{"x":0.2,"y":0.1,"width":0.5,"height":0.5},"selectedRatio":"wide","focusArea":{"x":0.3,"y":0.3,"width":0.1,"height":0.1}}}`

	out, err := GenerateBlob([]byte(existing), SourceSize{Width: 1000, Height: 1000}, heroVariant(), testPrefix)
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Equal(t, 0, out.Created)
	assert.Nil(t, out.Blob)

	raw, ok := out.Configuration.Raw("tt_content__textmedia__assets__hero__default")
	require.True(t, ok)
	assert.JSONEq(t, existing[len(`{"tt_content__textmedia__assets__hero__default":`):len(existing)-1], string(raw))
}

func TestGenerateBlob_AdditiveAndIdempotent(t *testing.T) {
	manual := `{"other__0__image__hero__wide":{"cropArea":{"x":0,"y":0,"width":0.5,"height":0.5},"selectedRatio":"wide","focusArea":null}}`
	variants := []VariantConfig{
		heroVariant()[0],
		{Identifier: "teaser", Sizes: []SizeConfig{
			{Identifier: "desktop", Width: 1200, Ratio: "16/9"},
			{Identifier: "mobile", Width: 400, Height: 400},
		}},
	}
	source := SourceSize{Width: 1920, Height: 1080}

	first, err := GenerateBlob([]byte(manual), source, variants, testPrefix)
	require.NoError(t, err)
	require.True(t, first.Changed)
	assert.Equal(t, 3, first.Created)
	assert.Equal(t, []string{
		"other__0__image__hero__wide",
		"tt_content__textmedia__assets__hero__default",
		"tt_content__textmedia__assets__teaser__16/9",
		"tt_content__textmedia__assets__teaser__mobile",
	}, first.Configuration.IDs())

	raw, _ := first.Configuration.Raw("other__0__image__hero__wide")
	assert.Equal(t, manual[len(`{"other__0__image__hero__wide":`):len(manual)-1], string(raw))

	second, err := GenerateBlob(first.Blob, source, variants, testPrefix)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, 0, second.Created)
	out, err := second.Configuration.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, string(first.Blob), string(out))
}

func TestGenerateBlob_MalformedBlobIsRegenerated(t *testing.T) {
	out, err := GenerateBlob([]byte("{broken"), SourceSize{Width: 10, Height: 10}, heroVariant(), testPrefix)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, 1, out.Created)
}

func TestGenerateBlob_UnresolvableDimensions(t *testing.T) {
	_, err := GenerateBlob(nil, SourceSize{Width: 0, Height: 900}, heroVariant(), testPrefix)
	assert.ErrorIs(t, err, ErrUnresolvableDimensions)
	_, err = GenerateBlob(nil, SourceSize{Width: 900, Height: 0}, heroVariant(), testPrefix)
	assert.ErrorIs(t, err, ErrUnresolvableDimensions)
}

func TestGenerateBlob_InvalidIdentifier(t *testing.T) {
	variants := []VariantConfig{{Identifier: "hero", Sizes: []SizeConfig{{Identifier: "a__b"}}}}
	_, err := GenerateBlob(nil, SourceSize{Width: 10, Height: 10}, variants, testPrefix)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestGenerateDefaults_DoesNotMutateInput(t *testing.T) {
	existing := NewConfiguration()
	cfg, created, err := GenerateDefaults(existing, SourceSize{Width: 10, Height: 10}, heroVariant(), testPrefix)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, cfg.Len())
	assert.Equal(t, 0, existing.Len())
}

func TestValidateVariants(t *testing.T) {
	assert.NoError(t, ValidateVariants(heroVariant(), testPrefix))
	assert.ErrorIs(t, ValidateVariants(heroVariant(), []string{"tt__content", "textmedia", "assets"}), ErrInvalidIdentifier)
	assert.ErrorIs(t, ValidateVariants(heroVariant(), nil), ErrInvalidIdentifier)
}
