// Package pipeline links the entity cells of a batch of tables to candidate
// entities and lays out the candidate ranking dataset with its features.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/willbeason/table-linking/pkg/candidates"
	"github.com/willbeason/table-linking/pkg/features"
	"github.com/willbeason/table-linking/pkg/kb"
	"github.com/willbeason/table-linking/pkg/ned"
	"github.com/willbeason/table-linking/pkg/ranking"
	"github.com/willbeason/table-linking/pkg/typefilter"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// DefaultProvenance tags candidates proposed by the search backend.
const DefaultProvenance = "fts"

var ErrPipeline = errors.New("running linking pipeline")

// Result is everything one run produces.
type Result struct {
	RunID uuid.UUID

	// Candidates are scored with features.HeuristicScore, and cut to the top
	// k of every cell when top-k selection is enabled.
	Candidates *candidates.Dataset
	Ent        *ranking.EntDataset
	// Can and Types are aligned with Candidates.
	Can   *ranking.CanDataset
	Types *ranking.TypesDataset

	// EntFeatures and CanFeatures hold one row per row of Ent and Can.
	EntFeatures *mat.Dense
	CanFeatures *mat.Dense
}

// Pipeline runs the stages of a linking run in order: query, build, filter,
// ranking layout, features, scoring and top-k selection.
type Pipeline struct {
	store      kb.EntityStore
	engine     *candidates.QueryEngine
	filter     *typefilter.Filter
	typesMode  ranking.TypesMode
	ontology   kb.Ontology
	extractor  *features.Extractor
	provenance string
	topK       int
	removeNIL  bool
	logger     *zap.Logger

	closers []func() error
}

type Option func(*Pipeline)

// WithFilter drops candidates whose types do not fit their column.
func WithFilter(f *typefilter.Filter) Option {
	return func(p *Pipeline) {
		p.filter = f
	}
}

// WithTypes extends the candidate types written with the ranking dataset.
// ontology may be nil for ranking.TypesNo.
func WithTypes(mode ranking.TypesMode, ontology kb.Ontology) Option {
	return func(p *Pipeline) {
		p.typesMode = mode
		p.ontology = ontology
	}
}

// WithTopK keeps the k best scoring candidates of every cell, injecting gold
// entities where none was kept. With removeNIL, cells without gold entities
// keep nothing.
func WithTopK(k int, removeNIL bool) Option {
	return func(p *Pipeline) {
		p.topK = k
		p.removeNIL = removeNIL
	}
}

func WithProvenance(provenance string) Option {
	return func(p *Pipeline) {
		p.provenance = provenance
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func New(store kb.EntityStore, engine *candidates.QueryEngine, extractor *features.Extractor, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		engine:     engine,
		extractor:  extractor,
		provenance: DefaultProvenance,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// Close releases the backends the pipeline was opened with.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i]())
	}
	return errors.Join(errs...)
}

// Run links every entity cell of examples. Every example is validated before
// any stage runs. Stages share nothing mutable, and a failed stage fails the
// run without partial output.
func (p *Pipeline) Run(ctx context.Context, examples []*ned.Example) (*Result, error) {
	for i, example := range examples {
		err := example.Validate()
		if err != nil {
			return nil, fmt.Errorf("%w: example %d: %w", ErrPipeline, i, err)
		}
	}

	result := &Result{RunID: uuid.New()}
	logger := p.logger.With(zap.String("run_id", result.RunID.String()))
	start := time.Now()

	results, err := p.engine.Query(ctx, examples, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
	}

	d, err := candidates.BuildDataset(ctx, p.store, examples, nil, results, p.provenance)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
	}
	logger.Info("built candidates",
		zap.Int("tables", len(d.Index.Tables)),
		zap.Int("candidates", d.Len()))

	if p.filter != nil {
		d, err = p.filter.Apply(ctx, examples, d)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
		}
		logger.Info("filtered candidates",
			zap.Stringer("mode", p.filter.Mode()),
			zap.Int("candidates", d.Len()))
	}

	result.Ent, err = ranking.BuildEnt(ctx, p.store, examples, d)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
	}
	result.Can, err = ranking.BuildCan(examples, d)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
	}

	result.EntFeatures, err = p.extractor.Extract(ctx, features.Input{
		Text:       result.Ent.Cell,
		Label:      result.Ent.EntityLabel,
		Aliases:    result.Ent.EntityAliases,
		Popularity: result.Ent.EntityPopularity,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: gold entities: %w", ErrPipeline, err)
	}
	result.CanFeatures, err = p.extractor.Extract(ctx, features.Input{
		Text:       result.Can.Cell,
		Label:      d.Label,
		Aliases:    d.Aliases,
		Popularity: d.Popularity,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: candidates: %w", ErrPipeline, err)
	}

	d, err = d.WithScores(features.HeuristicScore(result.CanFeatures))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
	}

	if p.topK > 0 {
		d, err = p.selectTopK(result, d)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
		}
		logger.Info("selected top candidates",
			zap.Int("k", p.topK),
			zap.Bool("remove_nil", p.removeNIL),
			zap.Int("candidates", d.Len()))
	}
	result.Candidates = d

	result.Types, err = ranking.BuildTypes(ctx, p.store, p.ontology, examples, d, p.typesMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
	}

	logger.Info("linked tables",
		zap.Int("tables", len(examples)),
		zap.Int("candidates", d.Len()),
		zap.Int("gold", result.Ent.Len()),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

// selectTopK cuts d to the top k candidates of every cell and gathers the
// candidate side and its features to match.
func (p *Pipeline) selectTopK(result *Result, d *candidates.Dataset) (*candidates.Dataset, error) {
	top, remap, err := d.TopK(p.topK, result.Ent.Entities, p.removeNIL)
	if err != nil {
		return nil, err
	}
	sources, err := ranking.Sources(top.Index, remap, result.Ent)
	if err != nil {
		return nil, err
	}

	result.Can = result.Can.Gather(sources, result.Ent)
	result.CanFeatures = gatherRows(result.CanFeatures, result.EntFeatures, sources)
	return top, nil
}

// gatherRows lays out the feature rows of sources: candidate rows from can,
// injected gold rows from ent.
func gatherRows(can, ent *mat.Dense, sources []ranking.Source) *mat.Dense {
	if len(sources) == 0 {
		return &mat.Dense{}
	}
	result := mat.NewDense(len(sources), features.NumFeatures, nil)
	for i, s := range sources {
		if s.Candidate >= 0 {
			result.SetRow(i, can.RawRowView(s.Candidate))
		} else {
			result.SetRow(i, ent.RawRowView(s.Gold))
		}
	}
	return result
}
