package sandbox

import (
	"context"
	"fmt"
	"slices"

	"github.com/kobra-dev/kobra/internal/ir"
)

// Family builds untrained models of one registered family.
type Family interface {
	ID() string
	Create(params ir.Params) (Model, error)
}

// Model is a model instance. Fit may be called more than once; each call
// retrains on the given data.
type Model interface {
	Fit(ctx context.Context, features, labels ir.Value, extra map[string]ir.Value) error
	Predict(ctx context.Context, input ir.Value) (ir.Value, error)
	Serialize() ([]byte, error)
}

// Capabilities is the table of families a program may use, keyed by family
// id. It is read-only after construction.
type Capabilities struct {
	families map[string]Family
}

// NewCapabilities builds a capability table. Family ids must be unique.
func NewCapabilities(families ...Family) (*Capabilities, error) {
	c := &Capabilities{families: make(map[string]Family, len(families))}
	for _, f := range families {
		if _, dup := c.families[f.ID()]; dup {
			return nil, fmt.Errorf("capabilities: duplicate family %q", f.ID())
		}
		c.families[f.ID()] = f
	}
	return c, nil
}

// Lookup returns the capability for a family id.
func (c *Capabilities) Lookup(id string) (Family, error) {
	f, ok := c.families[id]
	if !ok {
		return nil, &ir.NotFoundError{Kind: "family", ID: id}
	}
	return f, nil
}

// IDs lists the available family ids in ascending order.
func (c *Capabilities) IDs() []string {
	ids := make([]string, 0, len(c.families))
	for id := range c.families {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
