package families

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/sandbox"
)

// Builtin returns the built-in capabilities in id order.
func Builtin() []sandbox.Family {
	return []sandbox.Family{KNN{}, Linreg{}}
}

// Capabilities returns a capability table of the built-in families.
func Capabilities() *sandbox.Capabilities {
	caps, err := sandbox.NewCapabilities(Builtin()...)
	if err != nil {
		panic(fmt.Sprintf("families: %v", err))
	}
	return caps
}

// Decode restores a model serialized by a built-in family.
func Decode(familyID string, payload []byte) (sandbox.Model, error) {
	var m sandbox.Model
	switch familyID {
	case LinregID:
		m = &linregModel{}
	case KNNID:
		m = &knnModel{}
	default:
		return nil, &ir.NotFoundError{Kind: "family", ID: familyID}
	}
	if err := msgpack.Unmarshal(payload, m); err != nil {
		return nil, fmt.Errorf("decode %s model: %w", familyID, err)
	}
	return m, nil
}
