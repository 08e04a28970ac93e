package ml

import (
	"math/rand"
	"sort"
)

const leaf = -1

// Node узел дерева решений. Для листа Feature == -1.
type Node struct {
	Feature   int        `msgpack:"f"`
	Threshold float64    `msgpack:"t"`
	Left      int32      `msgpack:"l"`
	Right     int32      `msgpack:"r"`
	Value     [2]float64 `msgpack:"v"` // доли классов в листе
}

// Tree бинарное дерево решений в плоском виде, корень в Nodes[0].
type Tree struct {
	Nodes []Node `msgpack:"nodes"`
}

// Proba возвращает доли классов листа, в который попадает x.
func (t *Tree) Proba(x []float64) [2]float64 {
	i := int32(0)
	for {
		n := &t.Nodes[i]
		if n.Feature == leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth глубина дерева
func (t *Tree) Depth() int {
	var walk func(i int32) int
	walk = func(i int32) int {
		n := t.Nodes[i]
		if n.Feature == leaf {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// TreeParams ограничения роста дерева
type TreeParams struct {
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
}

// treeBuilder растит CART-дерево по критерию Джини со взвешенными классами.
type treeBuilder struct {
	X      [][]float64
	y      []int
	weight [2]float64
	params TreeParams
	rng    *rand.Rand
	nodes  []Node
}

func buildTree(X [][]float64, y []int, idx []int, weight [2]float64, params TreeParams, rng *rand.Rand) *Tree {
	b := &treeBuilder{X: X, y: y, weight: weight, params: params, rng: rng}
	b.grow(idx, 0)
	return &Tree{Nodes: b.nodes}
}

func (b *treeBuilder) counts(idx []int) [2]float64 {
	var c [2]float64
	for _, i := range idx {
		c[b.y[i]] += b.weight[b.y[i]]
	}
	return c
}

func gini(c [2]float64) float64 {
	total := c[0] + c[1]
	if total == 0 {
		return 0
	}
	p0, p1 := c[0]/total, c[1]/total
	return 1 - p0*p0 - p1*p1
}

func (b *treeBuilder) grow(idx []int, depth int) int32 {
	id := int32(len(b.nodes))
	c := b.counts(idx)
	total := c[0] + c[1]
	n := Node{Feature: leaf}
	if total > 0 {
		n.Value = [2]float64{c[0] / total, c[1] / total}
	}
	b.nodes = append(b.nodes, n)

	p := b.params
	if (p.MaxDepth > 0 && depth >= p.MaxDepth) ||
		len(idx) < p.MinSamplesSplit ||
		len(idx) < 2*p.MinSamplesLeaf ||
		gini(c) == 0 {
		return id
	}

	feature, threshold, ok := b.bestSplit(idx, c)
	if !ok {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id].Feature = feature
	b.nodes[id].Threshold = threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

// bestSplit перебирает случайное подмножество непостоянных признаков.
func (b *treeBuilder) bestSplit(idx []int, parent [2]float64) (int, float64, bool) {
	nFeatures := len(b.X[0])
	maxFeatures := b.params.MaxFeatures
	if maxFeatures <= 0 || maxFeatures > nFeatures {
		maxFeatures = nFeatures
	}
	minLeaf := max(b.params.MinSamplesLeaf, 1)

	sorted := make([]int, len(idx))
	bestFeature, bestThreshold := -1, 0.0
	bestImpurity := gini(parent) * (parent[0] + parent[1])
	found := false
	visited := 0

	for _, f := range b.rng.Perm(nFeatures) {
		if visited >= maxFeatures {
			break
		}
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })
		lo, hi := b.X[sorted[0]][f], b.X[sorted[len(sorted)-1]][f]
		if lo == hi {
			continue
		}
		visited++

		var left [2]float64
		right := parent
		for k := 1; k < len(sorted); k++ {
			cls := b.y[sorted[k-1]]
			left[cls] += b.weight[cls]
			right[cls] -= b.weight[cls]

			prev, cur := b.X[sorted[k-1]][f], b.X[sorted[k]][f]
			if prev == cur || k < minLeaf || len(sorted)-k < minLeaf {
				continue
			}
			wl, wr := left[0]+left[1], right[0]+right[1]
			impurity := wl*gini(left) + wr*gini(right)
			if !found || impurity < bestImpurity {
				threshold := prev + (cur-prev)/2
				if threshold >= cur {
					threshold = prev
				}
				bestFeature, bestThreshold, bestImpurity = f, threshold, impurity
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}
