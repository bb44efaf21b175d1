package procmeta

import (
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	mu    sync.Mutex
	calls map[uint32]int
	names map[uint32]string
}

func newCountingResolver(names map[uint32]string) *countingResolver {
	return &countingResolver{calls: map[uint32]int{}, names: names}
}

func (r *countingResolver) resolve(pid uint32) (*ProcessMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[pid]++
	name, ok := r.names[pid]
	if !ok {
		return nil, errors.New("no such process")
	}
	return &ProcessMetadata{Name: name}, nil
}

func TestManager_GetErrorUnknownPID(t *testing.T) {
	m := NewManagerWithResolver(newCountingResolver(nil).resolve)

	assert.NoError(t, m.GetError(9999), "nothing resolved yet")
}

func TestManager_NameResolvesOnce(t *testing.T) {
	r := newCountingResolver(map[uint32]string{200: "svchost.exe"})
	m := NewManagerWithResolver(r.resolve)

	assert.Equal(t, "svchost.exe", m.Name(200))
	assert.Equal(t, "svchost.exe", m.Name(200))
	assert.Equal(t, 1, r.calls[200])
	assert.NoError(t, m.GetError(200))
}

func TestManager_NameCachesFailure(t *testing.T) {
	r := newCountingResolver(nil)
	m := NewManagerWithResolver(r.resolve)

	assert.Empty(t, m.Name(404))
	assert.Empty(t, m.Name(404))
	assert.Equal(t, 1, r.calls[404])
	assert.EqualError(t, m.GetError(404), "no such process")
}

func TestManager_NilMetadataIsNameless(t *testing.T) {
	m := NewManagerWithResolver(func(uint32) (*ProcessMetadata, error) { return nil, nil })

	assert.Empty(t, m.Name(7))
	assert.NoError(t, m.GetError(7))
}

func TestManager_Concurrent(t *testing.T) {
	names := map[uint32]string{}
	for i := uint32(0); i < 50; i++ {
		names[i] = "p.exe"
	}
	r := newCountingResolver(names)
	m := NewManagerWithResolver(r.resolve)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := uint32(0); i < 50; i++ {
				assert.Equal(t, "p.exe", m.Name(i))
			}
		}()
	}
	wg.Wait()

	for i := uint32(0); i < 50; i++ {
		assert.NoError(t, m.GetError(i))
	}
}

func TestResolveProcess_Self(t *testing.T) {
	//nolint:gosec // Test process pid is positive
	md, err := ResolveProcess(uint32(os.Getpid()))
	require.NoError(t, err)
	assert.NotEmpty(t, md.Name)
}
