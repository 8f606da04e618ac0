package families

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/sandbox"
)

// KNNID is the family id of k-nearest-neighbour regression.
const KNNID = "knn"

// ParamK is the extra fit parameter naming the neighbour count.
const ParamK = "k"

// KNN is the k-nearest-neighbour regression capability.
type KNN struct{}

func (KNN) ID() string { return KNNID }

// Create takes no parameters; k is given at fit time.
func (KNN) Create(params ir.Params) (sandbox.Model, error) {
	if len(params) > 0 {
		return nil, fmt.Errorf("unknown parameter %q", params.SortedKeys()[0])
	}
	return &knnModel{}, nil
}

type knnModel struct {
	K      int         `msgpack:"k"`
	X      [][]float64 `msgpack:"x"`
	Y      []float64   `msgpack:"y"`
	Fitted bool        `msgpack:"fitted"`
}

func (m *knnModel) Fit(ctx context.Context, features, labels ir.Value, extra map[string]ir.Value) error {
	k, err := neighbours(extra[ParamK])
	if err != nil {
		return err
	}
	x, y, err := trainingSet(features, labels)
	if err != nil {
		return err
	}
	if k > len(x) {
		return fmt.Errorf("k=%d exceeds %d training rows", k, len(x))
	}
	m.K, m.X, m.Y, m.Fitted = k, x, y, true
	return nil
}

func neighbours(v ir.Value) (int, error) {
	n, ok := v.(ir.Number)
	if !ok {
		return 0, fmt.Errorf("%s must be a number, got %s", ParamK, ir.Format(v))
	}
	f := float64(n)
	if f != math.Trunc(f) || f < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %s", ParamK, ir.Format(v))
	}
	return int(f), nil
}

// Predict averages the labels of the k nearest training rows by Euclidean
// distance. Equal distances keep training order.
func (m *knnModel) Predict(ctx context.Context, input ir.Value) (ir.Value, error) {
	if !m.Fitted {
		return nil, fmt.Errorf("model is not fitted")
	}
	rows, err := rowsOf(input, len(m.X[0]))
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(m.X))
	dist := make([]float64, len(m.X))
	out := make([]float64, len(rows))
	for r, q := range rows {
		for i, xs := range m.X {
			idx[i] = i
			dist[i] = sqDist(q, xs)
		}
		slices.SortStableFunc(idx, func(a, b int) int {
			switch {
			case dist[a] < dist[b]:
				return -1
			case dist[a] > dist[b]:
				return 1
			}
			return 0
		})
		sum := 0.0
		for _, i := range idx[:m.K] {
			sum += m.Y[i]
		}
		out[r] = sum / float64(m.K)
	}
	return outputOf(out), nil
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func (m *knnModel) Serialize() ([]byte, error) {
	return msgpack.Marshal(m)
}
