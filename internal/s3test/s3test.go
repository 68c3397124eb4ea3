// Package s3test provides an in-memory object store for tests.
package s3test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"chat-service/internal/storage/s3"
)

type Object struct {
	ContentType string
	Data        []byte
}

// Store keeps objects in a map. The zero value is not usable; call New.
type Store struct {
	mu      sync.Mutex
	Objects map[string]Object

	PutErr   error
	FetchErr error
}

func New() *Store {
	return &Store{Objects: map[string]Object{}}
}

func (s *Store) Put(_ context.Context, key, contentType string, r io.Reader, _ int64) error {
	if s.PutErr != nil {
		return s.PutErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Objects[key] = Object{ContentType: contentType, Data: data}
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Objects, key)
	return nil
}

func (s *Store) FetchWithFallback(_ context.Context, key string) (*s3.Object, error) {
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.Objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return &s3.Object{
		Body:        io.NopCloser(bytes.NewReader(obj.Data)),
		ContentType: obj.ContentType,
		Size:        int64(len(obj.Data)),
	}, nil
}
