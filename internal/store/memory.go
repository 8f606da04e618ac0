package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/kobra-dev/kobra/internal/ir"
)

// Memory is an in-process gateway. Blobs are copied on the way in and out.
//
// Thread-safety: all methods are safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	projects map[string][]byte
	models   map[string]ir.ExportedModel
}

// NewMemory creates an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{
		projects: make(map[string][]byte),
		models:   make(map[string]ir.ExportedModel),
	}
}

func (m *Memory) Put(ctx context.Context, projectID string, blob []byte) error {
	if projectID == "" {
		return fmt.Errorf("put project: empty project id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[projectID] = slices.Clone(blob)
	return nil
}

func (m *Memory) Get(ctx context.Context, projectID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.projects[projectID]
	if !ok {
		return nil, &ir.NotFoundError{Kind: "project", ID: projectID}
	}
	return slices.Clone(blob), nil
}

// Projects lists the stored project ids in order.
func (m *Memory) Projects() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.projects))
}

func (m *Memory) PutModel(ctx context.Context, em ir.ExportedModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.models[em.ID]; ok {
		if prev.Digest != em.Digest {
			return &ir.ConflictError{Kind: "model", ID: em.ID, Stored: prev.Digest, Incoming: em.Digest}
		}
		return nil
	}
	em.Payload = slices.Clone(em.Payload)
	m.models[em.ID] = em
	return nil
}

func (m *Memory) GetModel(ctx context.Context, id string) (ir.ExportedModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	em, ok := m.models[id]
	if !ok {
		return ir.ExportedModel{}, &ir.NotFoundError{Kind: "model", ID: id}
	}
	em.Payload = slices.Clone(em.Payload)
	return em, nil
}
