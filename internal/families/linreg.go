package families

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/sandbox"
)

// LinregID is the family id of ordinary least squares regression.
const LinregID = "linreg"

// ParamFitIntercept toggles the intercept term. Defaults to true.
const ParamFitIntercept = "fit_intercept"

// ErrSingular is returned when the normal equations have no unique solution.
var ErrSingular = errors.New("singular design matrix")

// Linreg is the linear regression capability.
type Linreg struct{}

func (Linreg) ID() string { return LinregID }

// Create accepts only fit_intercept.
func (Linreg) Create(params ir.Params) (sandbox.Model, error) {
	m := &linregModel{Intercept: true}
	for _, k := range params.SortedKeys() {
		switch k {
		case ParamFitIntercept:
			b, ok := params[k].(ir.Bool)
			if !ok {
				return nil, fmt.Errorf("%s must be a bool, got %s", k, ir.Format(params[k]))
			}
			m.Intercept = bool(b)
		default:
			return nil, fmt.Errorf("unknown parameter %q", k)
		}
	}
	return m, nil
}

type linregModel struct {
	Intercept bool      `msgpack:"intercept"`
	Coef      []float64 `msgpack:"coef"` // intercept first when Intercept is set
	Width     int       `msgpack:"width"`
}

// Fit solves the normal equations XᵀXβ = Xᵀy.
func (m *linregModel) Fit(ctx context.Context, features, labels ir.Value, extra map[string]ir.Value) error {
	x, y, err := trainingSet(features, labels)
	if err != nil {
		return err
	}
	d := len(x[0])
	p := d
	if m.Intercept {
		p++
	}

	a := make([][]float64, p)
	for i := range a {
		a[i] = make([]float64, p+1)
	}
	row := make([]float64, p)
	for r, xs := range x {
		m.design(row, xs)
		for i := 0; i < p; i++ {
			for j := 0; j < p; j++ {
				a[i][j] += row[i] * row[j]
			}
			a[i][p] += row[i] * y[r]
		}
	}

	coef, err := solve(a)
	if err != nil {
		return err
	}
	m.Coef = coef
	m.Width = d
	return nil
}

func (m *linregModel) design(dst, xs []float64) {
	off := 0
	if m.Intercept {
		dst[0] = 1
		off = 1
	}
	copy(dst[off:], xs)
}

func (m *linregModel) Predict(ctx context.Context, input ir.Value) (ir.Value, error) {
	if m.Coef == nil {
		return nil, fmt.Errorf("model is not fitted")
	}
	rows, err := rowsOf(input, m.Width)
	if err != nil {
		return nil, err
	}
	row := make([]float64, len(m.Coef))
	out := make([]float64, len(rows))
	for i, xs := range rows {
		m.design(row, xs)
		for j, c := range m.Coef {
			out[i] += c * row[j]
		}
	}
	return outputOf(out), nil
}

func (m *linregModel) Serialize() ([]byte, error) {
	return msgpack.Marshal(m)
}

// solve runs Gaussian elimination with partial pivoting on an augmented
// p×(p+1) matrix, in place.
func solve(a [][]float64) ([]float64, error) {
	p := len(a)
	for col := 0; col < p; col++ {
		pivot := col
		for r := col + 1; r < p; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, ErrSingular
		}
		a[col], a[pivot] = a[pivot], a[col]
		for r := col + 1; r < p; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c <= p; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}
	out := make([]float64, p)
	for r := p - 1; r >= 0; r-- {
		s := a[r][p]
		for c := r + 1; c < p; c++ {
			s -= a[r][c] * out[c]
		}
		out[r] = s / a[r][r]
	}
	return out, nil
}
