package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceIDGenerator(t *testing.T) {
	gen := NewSequenceIDGenerator("project")

	assert.Equal(t, "project-1", gen.Generate())
	assert.Equal(t, "project-2", gen.Generate())

	gen.Reset()
	assert.Equal(t, "project-1", gen.Generate())
}

func TestSequenceIDGenerator_EmptyPrefix(t *testing.T) {
	assert.Equal(t, "test-1", NewSequenceIDGenerator("").Generate())
}

func TestSequenceIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequenceIDGenerator("p")

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000, "every id is unique")
}
