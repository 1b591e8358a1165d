package features

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/willbeason/table-linking/pkg/metrics"
	"github.com/willbeason/table-linking/pkg/workers"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Names are the feature columns, in order. The last one is popularity.
var Names = []string{
	"levenshtein",
	"jaro_winkler",
	"monge_elkan",
	"symmetric_monge_elkan",
	"hybrid_jaccard",
	"ordinal_hybrid_jaccard",
	"ordinal_hybrid_jaccard_levenshtein",
	"popularity",
}

const (
	// NumFeatures is the length of a feature vector.
	NumFeatures = 8
	numPairwise = NumFeatures - 1

	DefaultBatchSize = 1024
	DefaultThreshold = 0.5
)

var ErrInput = errors.New("feature input arrays are misaligned")

// Input holds one row per (cell text, entity) pair.
type Input struct {
	Text       []string
	Label      []string
	Aliases    [][]string
	Popularity []float64
}

func (in *Input) Len() int {
	return len(in.Text)
}

func (in *Input) validate() error {
	n := in.Len()
	if len(in.Label) != n || len(in.Aliases) != n || len(in.Popularity) != n {
		return fmt.Errorf("%w: %d texts, %d labels, %d alias lists, %d popularities",
			ErrInput, n, len(in.Label), len(in.Aliases), len(in.Popularity))
	}
	return nil
}

// Extractor computes feature vectors in parallel batches.
type Extractor struct {
	batchSize   int
	parallelism int
	jaroWinkler HybridJaccard
	levenshtein HybridJaccard
	logger      *zap.Logger
}

type Option func(*Extractor)

func WithBatchSize(n int) Option {
	return func(e *Extractor) {
		e.batchSize = n
	}
}

func WithParallelism(n int) Option {
	return func(e *Extractor) {
		e.parallelism = n
	}
}

// WithThreshold sets the token similarity below which hybrid Jaccard ignores
// a token pair.
func WithThreshold(threshold float64) Option {
	return func(e *Extractor) {
		e.jaroWinkler.Threshold = threshold
		e.levenshtein.Threshold = threshold
	}
}

// WithLowerBound makes hybrid Jaccard return zero early for pairs that
// cannot reach bound.
func WithLowerBound(bound float64) Option {
	return func(e *Extractor) {
		e.jaroWinkler.LowerBound = bound
		e.levenshtein.LowerBound = bound
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		batchSize:   DefaultBatchSize,
		parallelism: 1,
		jaroWinkler: HybridJaccard{Base: JaroWinkler, Threshold: DefaultThreshold},
		levenshtein: HybridJaccard{Base: Levenshtein, Threshold: DefaultThreshold},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Extract returns a matrix with one row per input row, in input order, and
// NumFeatures columns. An empty input yields an empty matrix.
func (e *Extractor) Extract(ctx context.Context, in Input) (*mat.Dense, error) {
	err := in.validate()
	if err != nil {
		return nil, err
	}
	if in.Len() == 0 {
		return &mat.Dense{}, nil
	}

	start := time.Now()
	rows := make([]int, in.Len())
	for i := range rows {
		rows[i] = i
	}

	batches, err := workers.Map(ctx, workers.Chunk(rows, e.batchSize), e.parallelism,
		func(ctx context.Context, _ int, batch []int) ([]float64, error) {
			err := ctx.Err()
			if err != nil {
				return nil, err
			}
			data := make([]float64, 0, len(batch)*NumFeatures)
			for _, i := range batch {
				data = append(data, e.row(in.Text[i], in.Label[i], in.Aliases[i], in.Popularity[i])...)
			}
			return data, nil
		})
	if err != nil {
		return nil, fmt.Errorf("extracting features: %w", err)
	}

	metrics.RecordFeatureRows(in.Len())
	e.logger.Debug("extracted features",
		zap.Int("rows", in.Len()),
		zap.Duration("duration", time.Since(start)))
	return mat.NewDense(in.Len(), NumFeatures, workers.Concat(batches)), nil
}

// row scores text against the label and every alias, keeping the best value
// of each pairwise feature.
func (e *Extractor) row(text, label string, aliases []string, popularity float64) []float64 {
	result := make([]float64, NumFeatures)
	e.pairwise(result[:numPairwise], text, label)

	alias := make([]float64, numPairwise)
	for _, a := range aliases {
		e.pairwise(alias, text, a)
		for i, v := range alias {
			result[i] = max(result[i], v)
		}
	}

	result[numPairwise] = popularity
	return result
}

func (e *Extractor) pairwise(dst []float64, text, label string) {
	t, l := Normalize(text), Normalize(label)
	tt, lt := Tokens(text), Tokens(label)

	hj := e.jaroWinkler.Score(tt, lt)
	hjLev := e.levenshtein.Score(tt, lt)

	dst[0] = Levenshtein(t, l)
	dst[1] = JaroWinkler(t, l)
	dst[2] = MongeElkan(tt, lt, JaroWinkler)
	dst[3] = SymmetricMongeElkan(tt, lt, JaroWinkler)
	dst[4] = hj
	dst[5] = OrdinalGuard(hj, t, l)
	dst[6] = OrdinalGuard(hjLev, t, l)
}

// HeuristicScore ranks candidates without a trained model: the sum of the
// pairwise features plus twenty times popularity, over the number of
// features.
func HeuristicScore(features mat.Matrix) []float64 {
	r, c := features.Dims()
	result := make([]float64, r)
	row := make([]float64, c)
	for i := range r {
		mat.Row(row, i, features)
		result[i] = (floats.Sum(row[:c-1]) + 20*row[c-1]) / float64(c)
	}
	return result
}
