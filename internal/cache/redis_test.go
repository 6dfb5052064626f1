package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/cityevents/services/crop-service/internal/cropping"
	"github.com/baechuer/cityevents/services/crop-service/internal/domain"
)

func newTestCache(t *testing.T) (*PlanCache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	c := New(s.Addr(), "", 0, time.Minute)
	t.Cleanup(func() { _ = c.Close() })
	return c, s
}

func TestPlanKey(t *testing.T) {
	a := PlanKey("c1", 7, "hero", "desktop", false, []byte(`{"a":1}`))
	assert.Equal(t, a, PlanKey("c1", 7, "hero", "desktop", false, []byte(`{"a":1}`)))
	assert.Contains(t, a, "crop:plan:c1:7:hero:desktop:false:")
	assert.NotEqual(t, a, PlanKey("c1", 7, "hero", "desktop", false, []byte(`{"a":2}`)))
	assert.NotEqual(t, a, PlanKey("c1", 7, "hero", "desktop", true, []byte(`{"a":1}`)))
	assert.NotEqual(t, a, PlanKey("c1", 8, "hero", "desktop", false, []byte(`{"a":1}`)))
	assert.NotEqual(t, a, PlanKey("c2", 7, "hero", "desktop", false, []byte(`{"a":1}`)))
}

func TestConfigDigest(t *testing.T) {
	tree := &cropping.Tree{Tables: []cropping.TableConfig{{
		Table: "tt_content",
		Types: []cropping.TypeFields{{Type: cropping.TypeAll, Fields: []cropping.Field{{
			Name: "assets",
			Config: cropping.Leaf{Variants: []cropping.VariantConfig{{
				Identifier: "hero",
				Sizes:      []cropping.SizeConfig{{Identifier: "desktop", Width: 1600, Ratio: "16/9"}},
			}}},
		}}}},
	}}}
	settings := cropping.RenderSettings{PixelDensities: []float64{1, 2}}

	a := ConfigDigest(settings, tree)
	assert.Equal(t, a, ConfigDigest(settings, tree))
	assert.NotEqual(t, a, ConfigDigest(cropping.RenderSettings{PixelDensities: []float64{1}}, tree))
	assert.NotEqual(t, a, ConfigDigest(cropping.RenderSettings{PixelDensities: []float64{1, 2}, ImageFileFormats: []string{"webp"}}, tree))

	changed := &cropping.Tree{Tables: []cropping.TableConfig{{
		Table: "tt_content",
		Types: []cropping.TypeFields{{Type: cropping.TypeAll, Fields: []cropping.Field{{
			Name: "assets",
			Config: cropping.Leaf{Variants: []cropping.VariantConfig{{
				Identifier: "hero",
				Sizes:      []cropping.SizeConfig{{Identifier: "desktop", Width: 1920, Ratio: "16/9"}},
			}}},
		}}}},
	}}}
	assert.NotEqual(t, a, ConfigDigest(settings, changed))
}

func TestPlanCache_GetSetAndMiss(t *testing.T) {
	ctx := context.Background()
	c, s := newTestCache(t)
	key := PlanKey("c1", 1, "hero", "", false, nil)

	_, err := c.Get(ctx, key)
	require.ErrorIs(t, err, domain.ErrCacheMiss)

	plan := &cropping.RenderPlan{
		CropEntries: []cropping.CropEntry{{CropArea: cropping.Area{X: 0.1, Width: 0.8, Height: 1}, SelectedRatio: "wide"}},
		Sources: []cropping.Source{{
			Key: "desktop__default", SizeID: "desktop", MediaQuery: "(min-width: 1024px)", Width: 1600, Height: 900,
			Type: "image/jpeg", Srcsets: []cropping.Srcset{{URI: "/a.jpg", Density: 1}, {URI: "/b.jpg", Density: 2}},
		}},
		FallbackImage: cropping.FallbackImage{URI: "/a.jpg", Width: 1600, Height: 900},
	}
	require.NoError(t, c.Set(ctx, key, plan))

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, plan, got)

	s.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestPlanCache_NoPlan(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	require.NoError(t, c.Set(ctx, "k", nil))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPlanCache_CorruptValueIsMiss(t *testing.T) {
	ctx := context.Background()
	c, s := newTestCache(t)
	require.NoError(t, s.Set("k", "{broken"))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestPlanCache_Ping(t *testing.T) {
	c, _ := newTestCache(t)
	require.NoError(t, c.Ping(context.Background()))
}

func TestJobMarker_MarkExpires(t *testing.T) {
	c, s := newTestCache(t)
	m := NewJobMarker(c, time.Minute)
	ctx := context.Background()

	ok, err := m.Mark(ctx, "processed/42/abc.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, s.Exists("crop:job:processed/42/abc.jpg"))

	ok, err = m.Mark(ctx, "processed/42/abc.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	s.FastForward(2 * time.Minute)
	ok, err = m.Mark(ctx, "processed/42/abc.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestJobMarker_Unmark(t *testing.T) {
	c, _ := newTestCache(t)
	m := NewJobMarker(c, time.Minute)
	ctx := context.Background()

	_, err := m.Mark(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, m.Unmark(ctx, "k"))

	ok, err := m.Mark(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}
