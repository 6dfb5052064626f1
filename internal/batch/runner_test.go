package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/cityevents/services/crop-service/internal/cropping"
	"github.com/baechuer/cityevents/services/crop-service/internal/domain"
	"github.com/baechuer/cityevents/services/crop-service/internal/schema"
)

const testSchema = `
tt_content:
  ctrl:
    type: CType
  columns:
    assets:
      config:
        type: file
        foreign_table: sys_file_reference
        foreign_field: uid_foreign
        foreign_table_field: tablenames
        foreign_match_fields:
          fieldname: assets
    slides:
      config:
        type: inline
        foreign_table: tx_slide
        foreign_field: parent
    related:
      config:
        type: inline
        foreign_table: tx_related
        MM: tx_related_mm
tx_slide:
  columns:
    image:
      config:
        type: file
        foreign_table: sys_file_reference
        foreign_field: uid_foreign
        foreign_table_field: tablenames
        foreign_match_fields:
          fieldname: image
`

func heroVariant() cropping.VariantConfig {
	return cropping.VariantConfig{
		Identifier: "hero",
		Sizes: []cropping.SizeConfig{{
			Identifier:    "default",
			AllowedRatios: []cropping.AllowedRatio{{Key: "wide", Width: 16, Height: 9}},
		}},
	}
}

func thumbVariant() cropping.VariantConfig {
	return cropping.VariantConfig{
		Identifier: "thumb",
		Sizes:      []cropping.SizeConfig{{Identifier: "square", Width: 100, Height: 100}},
	}
}

func testTree() *cropping.Tree {
	return &cropping.Tree{Tables: []cropping.TableConfig{{
		Table: "tt_content",
		Types: []cropping.TypeFields{
			{Type: "textmedia", Fields: []cropping.Field{
				{Name: "assets", Config: cropping.Leaf{Variants: []cropping.VariantConfig{heroVariant(), thumbVariant()}}},
			}},
			{Type: "slider", Fields: []cropping.Field{
				{Name: "slides", Config: cropping.Node{Types: []cropping.TypeFields{
					{Type: cropping.TypeAll, Fields: []cropping.Field{
						{Name: "image", Config: cropping.Leaf{Variants: []cropping.VariantConfig{heroVariant()}}},
					}},
				}}},
			}},
			{Type: "gallery", Fields: []cropping.Field{
				{Name: "related", Config: cropping.Leaf{Variants: []cropping.VariantConfig{heroVariant()}}},
			}},
		},
	}}}
}

// memRefs is an in-memory References.
type memRefs struct {
	mu        sync.Mutex
	refs      map[int64]*domain.Reference
	relations func(q domain.RelationQuery) []int64
	queries   []domain.RelationQuery
	conflicts map[int64]bool
	updates   int
}

func (m *memRefs) GetByID(_ context.Context, id int64) (*domain.Reference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.refs[id]
	if !ok {
		return nil, nil
	}
	cp := *ref
	return &cp, nil
}

func (m *memRefs) ListByIDs(_ context.Context, ids []int64) ([]*domain.Reference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Reference
	for _, id := range ids {
		if ref, ok := m.refs[id]; ok {
			cp := *ref
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRefs) UpdateCrop(_ context.Context, id int64, old *string, crop string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts[id] {
		return false, nil
	}
	ref := m.refs[id]
	if (ref.Crop == nil) != (old == nil) || (old != nil && *ref.Crop != *old) {
		return false, nil
	}
	ref.Crop = &crop
	m.updates++
	return true, nil
}

func (m *memRefs) ForeignUIDs(_ context.Context, q domain.RelationQuery) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	return m.relations(q), nil
}

func (m *memRefs) crop(t *testing.T, id int64) *cropping.Configuration {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotNil(t, m.refs[id].Crop)
	return cropping.DecodeConfiguration([]byte(*m.refs[id].Crop))
}

// metadataDims reads dimensions from the reference only.
type metadataDims struct{}

func (metadataDims) Dimensions(_ context.Context, ref *domain.Reference) (cropping.SourceSize, error) {
	if ref.Width <= 0 || ref.Height <= 0 {
		return cropping.SourceSize{}, fmt.Errorf("%w: no metadata", cropping.ErrUnresolvableDimensions)
	}
	return cropping.SourceSize{Width: ref.Width, Height: ref.Height}, nil
}

func strPtr(s string) *string { return &s }

func newTestStore(t *testing.T) *memRefs {
	t.Helper()
	existing, err := cropping.GenerateBlob(nil, cropping.SourceSize{Width: 800, Height: 600},
		[]cropping.VariantConfig{heroVariant(), thumbVariant()}, []string{"tt_content", "textmedia", "assets"})
	require.NoError(t, err)

	return &memRefs{
		refs: map[int64]*domain.Reference{
			1: {ID: 1, Extension: "jpg", Width: 1600, Height: 900},
			2: {ID: 2, Extension: "jpg", Width: 800, Height: 600, Crop: strPtr(string(existing.Blob))},
			3: {ID: 3, Extension: "pdf"},
			4: {ID: 4, Extension: "png", Width: 1000, Height: 1000, Crop: strPtr("not json")},
		},
		relations: func(q domain.RelationQuery) []int64 {
			switch {
			case q.LocalTable == "tt_content" && q.ForeignTable == "sys_file_reference" && q.LocalType == "textmedia":
				return []int64{1, 2, 3}
			case q.LocalTable == "tt_content" && q.ForeignTable == "tx_slide":
				return []int64{10}
			case q.LocalTable == "tx_slide" && len(q.ParentIDs) == 1 && q.ParentIDs[0] == 10:
				return []int64{4}
			}
			return nil
		},
		conflicts: map[int64]bool{},
	}
}

func newTestRunner(t *testing.T, refs *memRefs) *Runner {
	t.Helper()
	s, err := schema.Parse([]byte(testSchema))
	require.NoError(t, err)
	return NewRunner(refs, s, testTree(), metadataDims{}, 3, zerolog.Nop())
}

func TestRunner_Run(t *testing.T) {
	refs := newTestStore(t)
	r := newTestRunner(t, refs)

	summary, err := r.Run(context.Background(), "test")
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 1, summary.Tables)
	assert.Equal(t, 4, summary.Types) // textmedia, slider, gallery and the nested _all
	assert.Equal(t, 3, summary.Croppings)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Conflicts)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, "Configuration of 1 tables and 4 record types successfully parsed. 3 croppings were missing and were just created", summary.Message())

	cfg := refs.crop(t, 1)
	assert.Equal(t, []string{
		"tt_content__textmedia__assets__hero__default",
		"tt_content__textmedia__assets__thumb__square",
	}, cfg.IDs())

	cfg = refs.crop(t, 4)
	assert.Equal(t, []string{"tt_content__slider__slides___all__image__hero__default"}, cfg.IDs())
	entry, err := cfg.Entry("tt_content__slider__slides___all__image__hero__default")
	require.NoError(t, err)
	assert.Equal(t, "wide", entry.SelectedRatio)

	assert.Nil(t, refs.refs[3].Crop)
	assert.Equal(t, 2, refs.updates)
}

func TestRunner_RelationQueries(t *testing.T) {
	refs := newTestStore(t)
	_, err := newTestRunner(t, refs).Run(context.Background(), "test")
	require.NoError(t, err)

	// the MM relation of "related" is never queried
	require.Len(t, refs.queries, 3)

	assets := refs.queries[0]
	assert.Equal(t, "sys_file_reference", assets.ForeignTable)
	assert.Equal(t, "uid_foreign", assets.ForeignField)
	assert.Equal(t, "tablenames", assets.ForeignTableField)
	assert.Equal(t, [][2]string{{"fieldname", "assets"}}, assets.MatchFields)
	assert.Equal(t, "CType", assets.TypeField)
	assert.Equal(t, "textmedia", assets.LocalType)
	assert.Nil(t, assets.ParentIDs)

	slides := refs.queries[1]
	assert.Equal(t, "tx_slide", slides.ForeignTable)
	assert.Equal(t, "parent", slides.ForeignField)
	assert.Equal(t, "slider", slides.LocalType)

	images := refs.queries[2]
	assert.Equal(t, "tx_slide", images.LocalTable)
	assert.Equal(t, []int64{10}, images.ParentIDs)
	assert.Equal(t, "", images.TypeField)
	assert.Equal(t, [][2]string{{"fieldname", "image"}}, images.MatchFields)
}

func TestRunner_Idempotent(t *testing.T) {
	refs := newTestStore(t)
	r := newTestRunner(t, refs)

	_, err := r.Run(context.Background(), "test")
	require.NoError(t, err)
	first := *refs.refs[1].Crop

	summary, err := r.Run(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Croppings)
	assert.Equal(t, "Configuration of 1 tables and 4 record types successfully parsed. No croppings were missing.", summary.Message())
	assert.Equal(t, first, *refs.refs[1].Crop)
	assert.Equal(t, 2, refs.updates)
}

func TestRunner_Conflict(t *testing.T) {
	refs := newTestStore(t)
	refs.conflicts[1] = true

	summary, err := newTestRunner(t, refs).Run(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Conflicts)
	assert.Equal(t, 1, summary.Croppings)
	assert.Nil(t, refs.refs[1].Crop)
}

func TestRunner_InvalidConfigurationIsSkipped(t *testing.T) {
	refs := newTestStore(t)
	r := newTestRunner(t, refs)
	r.tree = &cropping.Tree{Tables: []cropping.TableConfig{{
		Table: "tt_content",
		Types: []cropping.TypeFields{{Type: "textmedia", Fields: []cropping.Field{
			{Name: "assets", Config: cropping.Leaf{Variants: []cropping.VariantConfig{{
				Identifier: "bad__id",
				Sizes:      []cropping.SizeConfig{{Identifier: "default", Width: 10, Height: 10}},
			}}}},
		}}},
	}}}

	summary, err := r.Run(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Croppings)
	assert.Empty(t, refs.queries)
}

// panickingDims fails hard for one reference.
type panickingDims struct {
	id int64
}

func (p panickingDims) Dimensions(ctx context.Context, ref *domain.Reference) (cropping.SourceSize, error) {
	if ref.ID == p.id {
		panic("bad dimensions")
	}
	return metadataDims{}.Dimensions(ctx, ref)
}

func TestRunner_PanicCountsAsFailure(t *testing.T) {
	refs := newTestStore(t)
	r := newTestRunner(t, refs)
	r.dims = panickingDims{id: 1}

	summary, err := r.Run(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Croppings)
	assert.Nil(t, refs.refs[1].Crop)
	assert.NotNil(t, refs.refs[4].Crop)
}

func TestRunner_RunInProgress(t *testing.T) {
	r := newTestRunner(t, newTestStore(t))
	r.running.Store(true)

	_, err := r.Run(context.Background(), "test")
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestRunner_RelationError(t *testing.T) {
	refs := &failingRefs{memRefs: newTestStore(t)}
	s, err := schema.Parse([]byte(testSchema))
	require.NoError(t, err)
	r := NewRunner(refs, s, testTree(), metadataDims{}, 2, zerolog.Nop())

	_, err = r.Run(context.Background(), "test")
	assert.EqualError(t, err, "db down")
}

type failingRefs struct {
	*memRefs
}

func (f *failingRefs) ForeignUIDs(context.Context, domain.RelationQuery) ([]int64, error) {
	return nil, errors.New("db down")
}

func TestRunner_ProcessReference(t *testing.T) {
	ctx := context.Background()
	path := []string{"tt_content", "textmedia", "assets"}

	t.Run("creates missing croppings", func(t *testing.T) {
		refs := newTestStore(t)
		n, err := newTestRunner(t, refs).ProcessReference(ctx, 1, path)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 2, refs.crop(t, 1).Len())
	})

	t.Run("nothing missing", func(t *testing.T) {
		n, err := newTestRunner(t, newTestStore(t)).ProcessReference(ctx, 2, path)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("unknown path", func(t *testing.T) {
		_, err := newTestRunner(t, newTestStore(t)).ProcessReference(ctx, 1, []string{"tt_content", "slider", "slides"})
		assert.ErrorIs(t, err, domain.ErrUnknownPath)
		_, err = newTestRunner(t, newTestStore(t)).ProcessReference(ctx, 1, []string{"pages"})
		assert.ErrorIs(t, err, domain.ErrUnknownPath)
	})

	t.Run("missing reference", func(t *testing.T) {
		_, err := newTestRunner(t, newTestStore(t)).ProcessReference(ctx, 99, path)
		assert.ErrorIs(t, err, domain.ErrReferenceNotFound)
	})

	t.Run("unresolvable dimensions", func(t *testing.T) {
		n, err := newTestRunner(t, newTestStore(t)).ProcessReference(ctx, 3, path)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("conflict", func(t *testing.T) {
		refs := newTestStore(t)
		refs.conflicts[1] = true
		_, err := newTestRunner(t, refs).ProcessReference(ctx, 1, path)
		assert.ErrorIs(t, err, errCropConflict)
	})
}
