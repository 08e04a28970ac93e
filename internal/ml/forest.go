package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// ForestParams параметры случайного леса
type ForestParams struct {
	NumTrees        int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int  // 0 означает floor(sqrt(число признаков))
	Balanced        bool // веса классов обратно пропорциональны частоте
	Bootstrap       bool
	Seed            int64
	Workers         int // 0 означает runtime.GOMAXPROCS
}

// DefaultForestParams параметры, на которых обучается детектор заражения.
func DefaultForestParams(seed int64) ForestParams {
	return ForestParams{
		NumTrees:        200,
		MaxDepth:        15,
		MinSamplesSplit: 4,
		MinSamplesLeaf:  2,
		Balanced:        true,
		Bootstrap:       true,
		Seed:            seed,
	}
}

// Forest ансамбль деревьев решений для двух классов.
type Forest struct {
	Trees        []*Tree    `msgpack:"trees"`
	NumFeatures  int        `msgpack:"n_features"`
	ClassWeights [2]float64 `msgpack:"class_weights"`
}

// FitForest обучает лес. Каждое дерево получает свой seed из общего генератора,
// поэтому результат не зависит от числа воркеров.
func FitForest(ctx context.Context, X [][]float64, y []int, p ForestParams) (*Forest, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("ml: bad training set: %d rows, %d labels", len(X), len(y))
	}
	if p.NumTrees <= 0 {
		return nil, errors.New("ml: NumTrees must be positive")
	}
	nFeatures := len(X[0])
	if p.MaxFeatures <= 0 {
		p.MaxFeatures = max(int(math.Sqrt(float64(nFeatures))), 1)
	}

	weights, err := classWeights(y, p.Balanced)
	if err != nil {
		return nil, err
	}

	master := rand.New(rand.NewSource(p.Seed))
	seeds := make([]int64, p.NumTrees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	treeParams := TreeParams{
		MaxDepth:        p.MaxDepth,
		MinSamplesSplit: p.MinSamplesSplit,
		MinSamplesLeaf:  p.MinSamplesLeaf,
		MaxFeatures:     p.MaxFeatures,
	}

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*Tree, p.NumTrees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seeds[i]))
			idx := make([]int, len(X))
			for k := range idx {
				if p.Bootstrap {
					idx[k] = rng.Intn(len(X))
				} else {
					idx[k] = k
				}
			}
			trees[i] = buildTree(X, y, idx, weights, treeParams, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Forest{Trees: trees, NumFeatures: nFeatures, ClassWeights: weights}, nil
}

func classWeights(y []int, balanced bool) ([2]float64, error) {
	var counts [2]int
	for _, label := range y {
		if label != 0 && label != 1 {
			return [2]float64{}, fmt.Errorf("ml: label %d is not binary", label)
		}
		counts[label]++
	}
	if !balanced {
		return [2]float64{1, 1}, nil
	}
	var w [2]float64
	for c, n := range counts {
		if n > 0 {
			w[c] = float64(len(y)) / (2 * float64(n))
		}
	}
	return w, nil
}

// PredictProba усредняет доли классов по всем деревьям.
func (f *Forest) PredictProba(x []float64) ([2]float64, error) {
	if f == nil || len(f.Trees) == 0 {
		return [2]float64{}, ErrNotFitted
	}
	if len(x) != f.NumFeatures {
		return [2]float64{}, fmt.Errorf("ml: got %d features, forest fitted on %d", len(x), f.NumFeatures)
	}
	var sum [2]float64
	for _, t := range f.Trees {
		p := t.Proba(x)
		sum[0] += p[0]
		sum[1] += p[1]
	}
	n := float64(len(f.Trees))
	return [2]float64{sum[0] / n, sum[1] / n}, nil
}

// Predict возвращает класс с наибольшей вероятностью; при равенстве класс 0.
func (f *Forest) Predict(x []float64) (int, error) {
	p, err := f.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return floats.MaxIdx(p[:]), nil
}

// PredictAll классифицирует набор векторов.
func (f *Forest) PredictAll(X [][]float64) ([]int, error) {
	out := make([]int, len(X))
	for i, x := range X {
		c, err := f.Predict(x)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}
