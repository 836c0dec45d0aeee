package fusion

import (
	"math"
	"math/rand"
	"sort"
)

// AnomalyDetector scores a feature matrix and returns the fraction of rows
// flagged as outliers, in [0,1]. Implementations must tolerate any input
// shape and never fail; returning 0 is always a valid degradation.
type AnomalyDetector interface {
	Score(features [][]float64) float64
}

// NopDetector is the always-zero default used when no statistical backend is
// wired in. Keeps the pipeline's "anomaly detection is optional enrichment"
// contract explicit.
type NopDetector struct{}

// Score always reports no anomalies.
func (NopDetector) Score([][]float64) float64 { return 0 }

// IsolationForest flags outliers by how quickly random axis-aligned splits
// isolate a point: anomalous points sit in sparse regions and need fewer
// splits. Features are standardized before fitting. Deterministic for a
// fixed seed.
type IsolationForest struct {
	Trees         int
	SampleSize    int
	Contamination float64
	Seed          int64
}

// NewIsolationForest returns a forest with the standard parameters
// (100 trees, subsample 256, contamination 0.1).
func NewIsolationForest() *IsolationForest {
	return &IsolationForest{
		Trees:         100,
		SampleSize:    256,
		Contamination: 0.1,
		Seed:          1,
	}
}

type isoNode struct {
	left, right *isoNode
	splitDim    int
	splitVal    float64
	size        int
}

// Score returns the fraction of rows whose anomaly score exceeds the
// (1 - contamination) quantile. Fewer than two rows cannot be ranked and
// score 0.
func (f *IsolationForest) Score(features [][]float64) float64 {
	n := len(features)
	if n < 2 {
		return 0
	}

	data := standardize(features)
	rng := rand.New(rand.NewSource(f.Seed))

	sample := min(f.SampleSize, n)
	limit := int(math.Ceil(math.Log2(float64(sample))))

	scores := make([]float64, n)
	for t := 0; t < f.Trees; t++ {
		idx := rng.Perm(n)[:sample]
		subset := make([][]float64, sample)
		for i, j := range idx {
			subset[i] = data[j]
		}
		root := buildIsoTree(subset, 0, limit, rng)
		for i, row := range data {
			scores[i] += pathLength(root, row, 0)
		}
	}

	c := avgPathLength(sample)
	for i := range scores {
		mean := scores[i] / float64(f.Trees)
		scores[i] = math.Pow(2, -mean/c)
	}

	sorted := make([]float64, n)
	copy(sorted, scores)
	sort.Float64s(sorted)
	cut := sorted[int(math.Ceil(float64(n)*(1-f.Contamination)))-1]

	flagged := 0
	for _, s := range scores {
		if s > cut {
			flagged++
		}
	}
	return float64(flagged) / float64(n)
}

func buildIsoTree(data [][]float64, depth, limit int, rng *rand.Rand) *isoNode {
	node := &isoNode{size: len(data)}
	if depth >= limit || len(data) <= 1 {
		return node
	}

	dims := len(data[0])
	// Pick a dimension that still has spread; give up after a few tries.
	for attempt := 0; attempt < dims; attempt++ {
		dim := rng.Intn(dims)
		lo, hi := data[0][dim], data[0][dim]
		for _, row := range data[1:] {
			lo = math.Min(lo, row[dim])
			hi = math.Max(hi, row[dim])
		}
		if hi <= lo {
			continue
		}

		split := lo + rng.Float64()*(hi-lo)
		var left, right [][]float64
		for _, row := range data {
			if row[dim] < split {
				left = append(left, row)
			} else {
				right = append(right, row)
			}
		}
		if len(left) == 0 || len(right) == 0 {
			continue
		}

		node.splitDim = dim
		node.splitVal = split
		node.left = buildIsoTree(left, depth+1, limit, rng)
		node.right = buildIsoTree(right, depth+1, limit, rng)
		return node
	}
	return node
}

func pathLength(node *isoNode, row []float64, depth int) float64 {
	if node.left == nil {
		return float64(depth) + avgPathLength(node.size)
	}
	if row[node.splitDim] < node.splitVal {
		return pathLength(node.left, row, depth+1)
	}
	return pathLength(node.right, row, depth+1)
}

// avgPathLength is the expected path length of an unsuccessful BST search,
// the standard normalization constant for isolation forests.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649
	return 2*h - 2*float64(n-1)/float64(n)
}

// standardize centers and scales each column; zero-variance columns collapse
// to 0.
func standardize(features [][]float64) [][]float64 {
	n := len(features)
	dims := len(features[0])

	means := make([]float64, dims)
	for _, row := range features {
		for d := 0; d < dims; d++ {
			means[d] += row[d]
		}
	}
	for d := range means {
		means[d] /= float64(n)
	}

	stds := make([]float64, dims)
	for _, row := range features {
		for d := 0; d < dims; d++ {
			diff := row[d] - means[d]
			stds[d] += diff * diff
		}
	}
	for d := range stds {
		stds[d] = math.Sqrt(stds[d] / float64(n))
	}

	out := make([][]float64, n)
	for i, row := range features {
		out[i] = make([]float64, dims)
		for d := 0; d < dims; d++ {
			if stds[d] > 0 {
				out[i][d] = (row[d] - means[d]) / stds[d]
			}
		}
	}
	return out
}
