package services

import (
	"math"
	"math/rand"
)

// isolationForest is an unsupervised outlier model: fit on a numeric matrix,
// then score rows by average isolation path length. Randomness comes entirely
// from the rand.Rand passed to fitForest, so identical seeds give identical
// forests.
type isolationForest struct {
	trees      []*isolationNode
	sampleSize int
}

type isolationNode struct {
	left, right *isolationNode
	feature     int
	split       float64
	size        int
}

func fitForest(matrix [][]float64, trees, sampleSize int, rng *rand.Rand) *isolationForest {
	if sampleSize > len(matrix) {
		sampleSize = len(matrix)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sampleSize)))) + 1

	forest := &isolationForest{
		trees:      make([]*isolationNode, trees),
		sampleSize: sampleSize,
	}
	for t := range forest.trees {
		sample := sampleRows(matrix, sampleSize, rng)
		forest.trees[t] = buildIsolationTree(sample, 0, maxDepth, rng)
	}
	return forest
}

func sampleRows(matrix [][]float64, n int, rng *rand.Rand) [][]float64 {
	perm := rng.Perm(len(matrix))
	sample := make([][]float64, n)
	for i := 0; i < n; i++ {
		sample[i] = matrix[perm[i]]
	}
	return sample
}

func buildIsolationTree(rows [][]float64, depth, maxDepth int, rng *rand.Rand) *isolationNode {
	if len(rows) <= 1 || depth >= maxDepth {
		return &isolationNode{size: len(rows)}
	}

	feature, lo, hi, ok := pickSplitFeature(rows, rng)
	if !ok {
		// All rows identical across every feature; nothing left to isolate.
		return &isolationNode{size: len(rows)}
	}

	split := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, row := range rows {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &isolationNode{
		feature: feature,
		split:   split,
		size:    len(rows),
		left:    buildIsolationTree(left, depth+1, maxDepth, rng),
		right:   buildIsolationTree(right, depth+1, maxDepth, rng),
	}
}

// pickSplitFeature chooses a random feature with a non-degenerate value range,
// starting from a random offset so the choice stays uniform.
func pickSplitFeature(rows [][]float64, rng *rand.Rand) (feature int, lo, hi float64, ok bool) {
	numFeatures := len(rows[0])
	offset := rng.Intn(numFeatures)
	for i := 0; i < numFeatures; i++ {
		f := (offset + i) % numFeatures
		lo, hi = rows[0][f], rows[0][f]
		for _, row := range rows {
			if row[f] < lo {
				lo = row[f]
			}
			if row[f] > hi {
				hi = row[f]
			}
		}
		if hi > lo {
			return f, lo, hi, true
		}
	}
	return 0, 0, 0, false
}

// Score returns the anomaly score in (0, 1]; values near 1 indicate isolation
// in few splits, values near 0.5 or below are typical points.
func (f *isolationForest) Score(row []float64) float64 {
	var sum float64
	for _, tree := range f.trees {
		sum += pathLength(tree, row, 0)
	}
	avg := sum / float64(len(f.trees))
	norm := averagePathLength(f.sampleSize)
	if norm == 0 {
		// A one-point sample cannot isolate anything; score as typical.
		return 0.5
	}
	return math.Pow(2, -avg/norm)
}

func pathLength(node *isolationNode, row []float64, depth float64) float64 {
	if node.left == nil {
		return depth + averagePathLength(node.size)
	}
	if row[node.feature] < node.split {
		return pathLength(node.left, row, depth+1)
	}
	return pathLength(node.right, row, depth+1)
}

const eulerMascheroni = 0.5772156649

// averagePathLength is c(n), the expected path length of an unsuccessful BST
// search over n points.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + eulerMascheroni
	return 2*h - 2*float64(n-1)/float64(n)
}
