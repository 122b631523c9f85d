package model

import (
	"math/rand"
	"sort"
)

// TreeNode is a node in a classification tree. Leaf nodes carry the
// weighted fraud probability of the samples that reached them.
// Fields are exported for gob serialization.
type TreeNode struct {
	Leaf      bool
	Prob      float64
	Feature   int
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode
}

type treeParams struct {
	maxDepth    int
	minLeaf     int
	mtry        int // features considered per split
	classWeight [2]float64
}

// growTree builds a tree on the rows referenced by idx.
func growTree(rows [][]float64, labels []int, idx []int, depth int, p treeParams, rng *rand.Rand) *TreeNode {
	w0, w1 := weightedCounts(labels, idx, p.classWeight)

	if depth >= p.maxDepth || len(idx) < 2*p.minLeaf || w0 == 0 || w1 == 0 {
		return leaf(w0, w1)
	}

	feat, thresh, ok := bestSplit(rows, labels, idx, p, rng)
	if !ok {
		return leaf(w0, w1)
	}

	var left, right []int
	for _, i := range idx {
		if rows[i][feat] <= thresh {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < p.minLeaf || len(right) < p.minLeaf {
		return leaf(w0, w1)
	}

	return &TreeNode{
		Feature:   feat,
		Threshold: thresh,
		Left:      growTree(rows, labels, left, depth+1, p, rng),
		Right:     growTree(rows, labels, right, depth+1, p, rng),
	}
}

func leaf(w0, w1 float64) *TreeNode {
	prob := 0.0
	if w0+w1 > 0 {
		prob = w1 / (w0 + w1)
	}
	return &TreeNode{Leaf: true, Prob: prob}
}

// bestSplit searches a random feature subset for the weighted-Gini
// optimal threshold.
func bestSplit(rows [][]float64, labels []int, idx []int, p treeParams, rng *rand.Rand) (int, float64, bool) {
	numFeatures := len(rows[idx[0]])
	perm := rng.Perm(numFeatures)
	candidates := perm[:p.mtry]

	totalW0, totalW1 := weightedCounts(labels, idx, p.classWeight)
	parentGini := gini(totalW0, totalW1)

	bestGain := 1e-9
	bestFeat := -1
	bestThresh := 0.0

	sorted := make([]int, len(idx))
	for _, feat := range candidates {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool {
			return rows[sorted[a]][feat] < rows[sorted[b]][feat]
		})

		var leftW0, leftW1 float64
		for pos := 0; pos < len(sorted)-1; pos++ {
			i := sorted[pos]
			if labels[i] == 1 {
				leftW1 += p.classWeight[1]
			} else {
				leftW0 += p.classWeight[0]
			}

			v, next := rows[i][feat], rows[sorted[pos+1]][feat]
			if v == next {
				continue
			}

			rightW0 := totalW0 - leftW0
			rightW1 := totalW1 - leftW1

			leftTotal := leftW0 + leftW1
			rightTotal := rightW0 + rightW1
			total := leftTotal + rightTotal

			weighted := (leftTotal*gini(leftW0, leftW1) + rightTotal*gini(rightW0, rightW1)) / total
			gain := parentGini - weighted
			if gain > bestGain {
				bestGain = gain
				bestFeat = feat
				bestThresh = (v + next) / 2
			}
		}
	}

	if bestFeat < 0 {
		return 0, 0, false
	}
	return bestFeat, bestThresh, true
}

func weightedCounts(labels []int, idx []int, classWeight [2]float64) (w0, w1 float64) {
	for _, i := range idx {
		if labels[i] == 1 {
			w1 += classWeight[1]
		} else {
			w0 += classWeight[0]
		}
	}
	return w0, w1
}

func gini(w0, w1 float64) float64 {
	total := w0 + w1
	if total == 0 {
		return 0
	}
	p0 := w0 / total
	p1 := w1 / total
	return 1 - p0*p0 - p1*p1
}

// predict walks the tree for one sample.
func (n *TreeNode) predict(row []float64) float64 {
	for !n.Leaf {
		if row[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Prob
}
