package cag

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput rejects a build request with no chunk text.
	ErrEmptyInput = errors.New("empty input text")

	// ErrCacheNotFound means the requested cache artifact is missing on disk.
	ErrCacheNotFound = errors.New("cache artifact not found")

	// ErrNoCacheRefs rejects a multi-cache query with an empty reference list.
	ErrNoCacheRefs = errors.New("no cache references provided")

	// ErrNoCachesAvailable means every cache in a multi-cache query was unreadable.
	ErrNoCachesAvailable = errors.New("no caches available")
)

// GenerationError wraps an engine failure during text generation. Usage
// stats are never mutated when this is returned.
type GenerationError struct {
	CachePath string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation against %s failed: %v", e.CachePath, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PersistenceError means the artifact was built but the registry write
// failed; the artifact on disk may be orphaned until the eviction advisor
// sweeps it.
type PersistenceError struct {
	CachePath string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("registry write failed, artifact at %s may be orphaned: %v", e.CachePath, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
