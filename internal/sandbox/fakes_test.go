package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kobra-dev/kobra/internal/ir"
)

var errBoom = errors.New("boom")

// meanFamily predicts the mean of its training labels.
type meanFamily struct {
	id        string
	failFit   bool
	panicPred bool
}

func (f *meanFamily) ID() string { return f.id }

func (f *meanFamily) Create(params ir.Params) (Model, error) {
	return &meanModel{family: f}, nil
}

type meanModel struct {
	family *meanFamily
	fits   int
	mean   float64
	extra  map[string]ir.Value
}

func (m *meanModel) Fit(ctx context.Context, features, labels ir.Value, extra map[string]ir.Value) error {
	if m.family.failFit {
		return errBoom
	}
	ys, err := ir.Vector(labels)
	if err != nil {
		return err
	}
	sum := 0.0
	for _, y := range ys {
		sum += y
	}
	m.mean = sum / float64(len(ys))
	m.extra = extra
	m.fits++
	return nil
}

func (m *meanModel) Predict(ctx context.Context, input ir.Value) (ir.Value, error) {
	if m.family.panicPred {
		panic("index out of range")
	}
	if m.fits == 0 {
		return nil, fmt.Errorf("model is not fitted")
	}
	return ir.Number(m.mean), nil
}

func (m *meanModel) Serialize() ([]byte, error) {
	return json.Marshal(map[string]float64{"mean": m.mean})
}
