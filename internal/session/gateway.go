package session

import (
	"context"

	"github.com/kobra-dev/kobra/internal/ir"
)

// Gateway persists snapshot blobs by project id. Get returns an
// *ir.NotFoundError for unknown projects.
type Gateway interface {
	Put(ctx context.Context, projectID string, blob []byte) error
	Get(ctx context.Context, projectID string) ([]byte, error)
}

// ModelArchive stores exported trained models.
type ModelArchive interface {
	PutModel(ctx context.Context, m ir.ExportedModel) error
}
