package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baechuer/cityevents/services/crop-service/internal/cropping"
	"github.com/baechuer/cityevents/services/crop-service/internal/domain"
	"github.com/baechuer/cityevents/services/crop-service/internal/metrics"
	"github.com/baechuer/cityevents/services/crop-service/internal/schema"
	"github.com/baechuer/cityevents/services/crop-service/internal/workerpool"
)

// ErrRunInProgress is returned when a run is started while another one is
// still going.
var ErrRunInProgress = errors.New("create needed croppings is already running")

var errCropConflict = errors.New("crop configuration changed concurrently")

// listChunk bounds the number of ids per reference query.
const listChunk = 500

// References is the storage of file references and their relations.
type References interface {
	GetByID(ctx context.Context, id int64) (*domain.Reference, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*domain.Reference, error)
	UpdateCrop(ctx context.Context, id int64, old *string, crop string) (bool, error)
	ForeignUIDs(ctx context.Context, q domain.RelationQuery) ([]int64, error)
}

// DimensionSource resolves the native size of a referenced image.
type DimensionSource interface {
	Dimensions(ctx context.Context, ref *domain.Reference) (cropping.SourceSize, error)
}

// Summary reports the counters of one run.
type Summary struct {
	RunID     string        `json:"run_id"`
	Tables    int           `json:"tables"`
	Types     int           `json:"types"`
	Croppings int           `json:"croppings"`
	Skipped   int           `json:"skipped"`
	Conflicts int           `json:"conflicts"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Message is the human readable result of the run.
func (s Summary) Message() string {
	msg := fmt.Sprintf("Configuration of %d tables and %d record types successfully parsed. ", s.Tables, s.Types)
	if s.Croppings > 0 {
		return msg + fmt.Sprintf("%d croppings were missing and were just created", s.Croppings)
	}
	return msg + "No croppings were missing."
}

// Runner creates the default croppings that are missing for the image fields
// of the cropping configuration.
type Runner struct {
	refs    References
	schema  *schema.Schema
	tree    *cropping.Tree
	dims    DimensionSource
	workers int
	log     zerolog.Logger

	running atomic.Bool
}

// NewRunner creates a new Runner processing references on workers goroutines.
func NewRunner(refs References, s *schema.Schema, tree *cropping.Tree, dims DimensionSource, workers int, log zerolog.Logger) *Runner {
	return &Runner{
		refs:    refs,
		schema:  s,
		tree:    tree,
		dims:    dims,
		workers: workers,
		log:     log,
	}
}

type runState struct {
	summary Summary
	mu      sync.Mutex
}

func (st *runState) add(fn func(s *Summary)) {
	st.mu.Lock()
	fn(&st.summary)
	st.mu.Unlock()
}

// Run walks the whole configuration tree once. trigger labels the run in
// logs and metrics.
func (r *Runner) Run(ctx context.Context, trigger string) (Summary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Summary{}, ErrRunInProgress
	}
	defer r.running.Store(false)

	start := time.Now()
	st := &runState{summary: Summary{RunID: uuid.New().String()}}
	log := r.log.With().Str("run_id", st.summary.RunID).Str("trigger", trigger).Logger()
	log.Info().Msg("creating needed croppings")

	err := r.walk(ctx, log, st)

	st.summary.Duration = time.Since(start)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordBatchRun(trigger, status, st.summary.Duration)
	metrics.RecordCroppingsCreated(st.summary.Croppings)
	if err != nil {
		return st.summary, err
	}

	log.Info().
		Int("skipped", st.summary.Skipped).
		Int("conflicts", st.summary.Conflicts).
		Int("failed", st.summary.Failed).
		Dur("duration", st.summary.Duration).
		Msg(st.summary.Message())
	return st.summary, nil
}

func (r *Runner) walk(ctx context.Context, log zerolog.Logger, st *runState) error {
	if r.tree == nil {
		return nil
	}
	for _, table := range r.tree.Tables {
		st.summary.Tables++
		for _, tf := range table.Types {
			st.summary.Types++
			for _, field := range tf.Fields {
				if err := r.walkField(ctx, log, st, []string{table.Table, tf.Type, field.Name}, field.Config); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *Runner) walkField(ctx context.Context, log zerolog.Logger, st *runState, path []string, cfg cropping.FieldCroppingConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch c := cfg.(type) {
	case cropping.Leaf:
		return r.processLeaf(ctx, log, st, path, c)
	case cropping.Node:
		for _, tf := range c.Types {
			st.summary.Types++
			for _, field := range tf.Fields {
				sub := append(append(append([]string(nil), path...), tf.Type), field.Name)
				if err := r.walkField(ctx, log, st, sub, field.Config); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *Runner) processLeaf(ctx context.Context, log zerolog.Logger, st *runState, path []string, leaf cropping.Leaf) error {
	prefix := strings.Join(path, cropping.Separator)
	log = log.With().Str("prefix", prefix).Logger()

	if err := cropping.ValidateVariants(leaf.Variants, path); err != nil {
		log.Warn().Err(err).Msg("skipping invalid cropping configuration")
		return nil
	}

	ids, err := r.resolveIDs(ctx, log, path, nil)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	var created int64
	pool := workerpool.NewWorkerPool(r.workers)
	for start := 0; start < len(ids); start += listChunk {
		end := min(start+listChunk, len(ids))
		refs, err := r.refs.ListByIDs(ctx, ids[start:end])
		if err != nil {
			pool.Stop()
			return err
		}
		for _, ref := range refs {
			ref := ref
			pool.Submit(func() {
				n := r.processReference(ctx, log, st, ref, leaf.Variants, path)
				atomic.AddInt64(&created, int64(n))
			})
		}
	}
	pool.Wait()

	if created > 0 {
		st.add(func(s *Summary) { s.Croppings += int(created) })
		log.Info().Int64("croppings", created).Msgf("%d croppings created for %s", created, prefix)
	}
	return nil
}

// resolveIDs follows path (table, type, field, [sub type, sub field]...)
// through the relations of the schema and returns the ids of the file
// references at its end. parents restricts the records of the first table.
func (r *Runner) resolveIDs(ctx context.Context, log zerolog.Logger, path []string, parents []int64) ([]int64, error) {
	local, typ, field := path[0], path[1], path[2]
	flog := log.With().Str("table", local).Str("type", typ).Str("field", field).Logger()

	if !r.schema.HasTable(local) {
		flog.Debug().Msg("table not found in schema")
		return nil, nil
	}
	fc, ok := r.schema.FieldConfig(local, typ, field)
	if !ok {
		flog.Warn().Msg("field not found in schema")
		return nil, nil
	}
	foreign, ok := fc.ForeignTableName()
	if !ok || fc.ForeignField == "" {
		flog.Warn().Str("relation", fc.Type).Bool("mm", fc.MM != "").Msg("unsupported relation type")
		return nil, nil
	}

	q := domain.RelationQuery{
		LocalTable:        local,
		ForeignTable:      foreign,
		ForeignField:      fc.ForeignField,
		ForeignTableField: fc.ForeignTableField,
		MatchFields:       fc.MatchFields(),
		ParentIDs:         parents,
	}
	if typ != cropping.TypeAll {
		q.TypeField = r.schema.TypeField(local)
		q.LocalType = typ
	}
	ids, err := r.refs.ForeignUIDs(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 || len(path) == 3 {
		return ids, nil
	}
	next := append([]string{foreign}, path[3:]...)
	return r.resolveIDs(ctx, log, next, ids)
}

func (r *Runner) processReference(ctx context.Context, log zerolog.Logger, st *runState, ref *domain.Reference, variants []cropping.VariantConfig, prefix []string) (created int) {
	rlog := log.With().Int64("reference_id", ref.ID).Logger()
	defer func() {
		if p := recover(); p != nil {
			rlog.Error().Interface("panic", p).Msg("panic while creating croppings")
			metrics.RecordReferenceSkipped("error")
			st.add(func(s *Summary) { s.Failed++ })
			created = 0
		}
	}()
	created, err := r.generate(ctx, ref, variants, prefix)
	switch {
	case err == nil:
		return created
	case errors.Is(err, cropping.ErrUnresolvableDimensions):
		rlog.Warn().Err(err).Msg("skipping reference without dimensions")
		metrics.RecordReferenceSkipped("unresolvable_dimensions")
		st.add(func(s *Summary) { s.Skipped++ })
	case errors.Is(err, errCropConflict):
		rlog.Warn().Msg("crop changed concurrently, left for the next run")
		metrics.RecordReferenceSkipped("conflict")
		st.add(func(s *Summary) { s.Conflicts++ })
	default:
		rlog.Error().Err(err).Msg("failed to create croppings")
		metrics.RecordReferenceSkipped("error")
		st.add(func(s *Summary) { s.Failed++ })
	}
	return 0
}

// generate adds the missing crop entries of ref and stores them.
func (r *Runner) generate(ctx context.Context, ref *domain.Reference, variants []cropping.VariantConfig, prefix []string) (int, error) {
	size, err := r.dims.Dimensions(ctx, ref)
	if err != nil {
		return 0, err
	}
	out, err := cropping.GenerateBlob(ref.CropBlob(), size, variants, prefix)
	if err != nil {
		return 0, err
	}
	if !out.Changed {
		return out.Created, nil
	}
	ok, err := r.refs.UpdateCrop(ctx, ref.ID, ref.Crop, string(out.Blob))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errCropConflict
	}
	return out.Created, nil
}

// ProcessReference creates the missing croppings of one file reference for
// the image field at path.
func (r *Runner) ProcessReference(ctx context.Context, referenceID int64, path []string) (int, error) {
	cfg, _ := r.tree.Lookup(path)
	leaf, ok := cfg.(cropping.Leaf)
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownPath, strings.Join(path, "/"))
	}
	if err := cropping.ValidateVariants(leaf.Variants, path); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrUnknownPath, err)
	}

	ref, err := r.refs.GetByID(ctx, referenceID)
	if err != nil {
		return 0, err
	}
	if ref == nil {
		return 0, domain.ErrReferenceNotFound
	}

	created, err := r.generate(ctx, ref, leaf.Variants, path)
	if errors.Is(err, cropping.ErrUnresolvableDimensions) {
		r.log.Warn().Err(err).Int64("reference_id", referenceID).Msg("skipping reference without dimensions")
		metrics.RecordReferenceSkipped("unresolvable_dimensions")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	metrics.RecordCroppingsCreated(created)
	return created, nil
}
