package families

import (
	"fmt"

	"github.com/kobra-dev/kobra/internal/ir"
)

// rowsOf reads prediction input as rows of width d. A lone number, or a flat
// vector of exactly d numbers when d > 1, is a single row.
func rowsOf(v ir.Value, d int) ([][]float64, error) {
	switch val := v.(type) {
	case ir.Number:
		if d != 1 {
			return nil, fmt.Errorf("input has 1 feature, model expects %d", d)
		}
		return [][]float64{{float64(val)}}, nil
	case ir.Array:
		if d > 1 && isFlat(val) {
			row, err := ir.Vector(val)
			if err != nil {
				return nil, err
			}
			if len(row) != d {
				return nil, fmt.Errorf("input has %d features, model expects %d", len(row), d)
			}
			return [][]float64{row}, nil
		}
		rows, err := ir.Matrix(val)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("input is empty")
		}
		if len(rows[0]) != d {
			return nil, fmt.Errorf("input has %d features, model expects %d", len(rows[0]), d)
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("expected number or array input, got %s", ir.Format(v))
	}
}

func isFlat(a ir.Array) bool {
	for _, e := range a {
		if _, ok := e.(ir.Number); !ok {
			return false
		}
	}
	return true
}

// outputOf returns a Number for one row and an Array otherwise.
func outputOf(ys []float64) ir.Value {
	if len(ys) == 1 {
		return ir.Number(ys[0])
	}
	return ir.NumbersOf(ys...)
}

// trainingSet reads features and labels and checks they line up.
func trainingSet(features, labels ir.Value) ([][]float64, []float64, error) {
	x, err := ir.Matrix(features)
	if err != nil {
		return nil, nil, fmt.Errorf("features: %w", err)
	}
	y, err := ir.Vector(labels)
	if err != nil {
		return nil, nil, fmt.Errorf("labels: %w", err)
	}
	if len(x) == 0 {
		return nil, nil, fmt.Errorf("no training rows")
	}
	if len(x) != len(y) {
		return nil, nil, fmt.Errorf("%d feature rows but %d labels", len(x), len(y))
	}
	return x, y, nil
}
