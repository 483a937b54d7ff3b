package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemory_UpdateReadModifyWrite(t *testing.T) {
	req := require.New(t)
	s := NewMemory()
	ctx := context.Background()

	// Given a missing key, fn receives nil
	err := s.Update(ctx, "k", func(cur []byte) ([]byte, error) {
		req.Nil(cur)
		return []byte("v1"), nil
	})
	req.NoError(err)

	got, err := s.Get(ctx, "k")
	req.NoError(err)
	req.Equal("v1", string(got))

	// Returning nil deletes the key
	err = s.Update(ctx, "k", func(cur []byte) ([]byte, error) {
		req.Equal("v1", string(cur))
		return nil, nil
	})
	req.NoError(err)
	_, err = s.Get(ctx, "k")
	req.ErrorIs(err, ErrNotFound)
}

func TestMemory_SetIfAbsentFirstCommitterWins(t *testing.T) {
	req := require.New(t)
	s := NewMemory()
	ctx := context.Background()

	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.SetIfAbsent(ctx, "claim", []byte("x"))
			req.NoError(err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	req.Equal(1, wins)
}

func TestMemory_QueueFIFO(t *testing.T) {
	req := require.New(t)
	s := NewMemory()
	ctx := context.Background()

	req.NoError(s.PushBack(ctx, "q", "a"))
	req.NoError(s.PushBack(ctx, "q", "b"))
	req.NoError(s.PushFront(ctx, "q", "z"))

	// snapshot tidak mengubah isi queue
	items, err := s.QueueItems(ctx, "q")
	req.NoError(err)
	req.Equal([]string{"z", "a", "b"}, items)

	for _, want := range []string{"z", "a", "b"} {
		got, err := s.PopFront(ctx, "q")
		req.NoError(err)
		req.Equal(want, got)
	}
	_, err = s.PopFront(ctx, "q")
	req.ErrorIs(err, ErrNotFound)
}

func TestMemory_DeletePrefix(t *testing.T) {
	req := require.New(t)
	s := NewMemory()
	ctx := context.Background()

	req.NoError(s.Set(ctx, "seat:main:1", []byte("a")))
	req.NoError(s.Set(ctx, "seat:main:2", []byte("b")))
	req.NoError(s.Set(ctx, "order:x", []byte("c")))

	n, err := s.DeletePrefix(ctx, "seat:")
	req.NoError(err)
	req.Equal(2, n)

	keys, err := s.Keys(ctx, "seat:")
	req.NoError(err)
	req.Empty(keys)
	_, err = s.Get(ctx, "order:x")
	req.NoError(err)
}
