// Package blobstore archives raw snapshot uploads so an import can be
// audited or replayed. MemoryStore serves development and tests; S3Store is
// used in production.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrMissingKey = errors.New("blob key is required")
)

// Object is a stored blob.
type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// Store defines the contract for blob storage backends.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// Key builds "<prefix>/<YYYY-MM-DD>/<import id>/<file name>". The file name
// is reduced to its base name with path separators and spaces replaced.
func Key(prefix string, referenceDate time.Time, importID uuid.UUID, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', ':':
			return '_'
		}
		return r
	}, name)
	if name == "." || name == "" {
		name = "upload"
	}
	parts := []string{referenceDate.Format("2006-01-02"), importID.String(), name}
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append([]string{p}, parts...)
	}
	return strings.Join(parts, "/")
}

// MemoryStore is a thread-safe in-memory Store.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]Object
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]Object)}
}

func (s *MemoryStore) Put(_ context.Context, key, contentType string, data []byte) error {
	if key == "" {
		return ErrMissingKey
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = Object{Key: key, ContentType: contentType, Data: cp}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	data := make([]byte, len(obj.Data))
	copy(data, obj.Data)
	obj.Data = data
	return &obj, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	delete(s.blobs, key)
	return nil
}

// Keys lists stored keys under prefix, for tests and diagnostics.
func (s *MemoryStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.blobs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}
