package store

import (
	"context"
	"strings"
	"sync"
)

// Memory adalah implementasi Store in-process untuk test dan dev lokal.
// Semantik sama dengan Redis (CAS per key, FIFO queue), serialisasi
// pakai satu mutex karena tidak ada lintas proses di sini.
type Memory struct {
	mu     sync.Mutex
	kv     map[string][]byte
	queues map[string][]string
}

func NewMemory() *Memory {
	return &Memory{
		kv:     make(map[string][]byte),
		queues: make(map[string][]string),
	}
}

func (s *Memory) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.kv[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (s *Memory) Set(_ context.Context, key string, val []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = clone(val)
	return nil
}

func (s *Memory) SetIfAbsent(_ context.Context, key string, val []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.kv[key]; ok {
		return false, nil
	}
	s.kv[key] = clone(val)
	return true, nil
}

func (s *Memory) Update(_ context.Context, key string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cur []byte
	if v, ok := s.kv[key]; ok {
		cur = clone(v)
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	if next == nil {
		delete(s.kv, key)
		return nil
	}
	s.kv[key] = clone(next)
	return nil
}

func (s *Memory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, key)
	return nil
}

func (s *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.kv {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *Memory) DeletePrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.kv {
		if strings.HasPrefix(k, prefix) {
			delete(s.kv, k)
			n++
		}
	}
	return n, nil
}

func (s *Memory) PushBack(_ context.Context, key, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[key] = append(s.queues[key], val)
	return nil
}

func (s *Memory) PushFront(_ context.Context, key, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[key] = append([]string{val}, s.queues[key]...)
	return nil
}

func (s *Memory) PopFront(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[key]
	if len(q) == 0 {
		return "", ErrNotFound
	}
	v := q[0]
	s.queues[key] = q[1:]
	return v, nil
}

func (s *Memory) QueueItems(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[key]
	out := make([]string, len(q))
	copy(out, q)
	return out, nil
}

func clone(b []byte) []byte {
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}
