package testutil

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialIDs_Predictable(t *testing.T) {
	ids := NewSequentialIDs()
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", ids.Next())
	assert.Equal(t, "00000000-0000-0000-0000-000000000002", ids.Next())

	fresh := NewSequentialIDs()
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", fresh.Next())
}

func TestSequentialIDs_ParseAsUUID(t *testing.T) {
	_, err := uuid.Parse(NewSequentialIDs().Next())
	require.NoError(t, err)
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	ids := NewSequentialIDs()

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				id := ids.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000)
}
