// Package memstore is an in-memory storage.Adapter, grounded on the
// teacher's InMemoryStore: a mutex-guarded map, safe for concurrent use,
// that never poisons itself on a simulated failure.
package memstore

import (
	"context"
	"sync"

	"hls-sink/internal/storage"
)

// Adapter is an in-memory implementation of storage.Adapter. The zero
// value is not usable; use New.
type Adapter struct {
	mu        sync.RWMutex
	init      map[string][]byte
	segments  map[string][]byte
	manifests map[string]string

	// failNext, when set, is returned (and cleared) by the next call to
	// the matching method. Used by tests to exercise the sink
	// controller's error propagation path (spec §8 scenario 6) without
	// poisoning subsequent calls.
	failNext map[string]error
}

// New returns an empty Adapter.
func New() *Adapter {
	return &Adapter{
		init:      make(map[string][]byte),
		segments:  make(map[string][]byte),
		manifests: make(map[string]string),
		failNext:  make(map[string]error),
	}
}

// FailNext arranges for the next call to the named operation
// ("store_init", "store_segment", "store_manifests", "remove_segments")
// to return err instead of succeeding. Subsequent calls succeed
// normally; the adapter's state is never left poisoned.
func (a *Adapter) FailNext(op string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failNext[op] = err
}

func (a *Adapter) takeFailure(op string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err, ok := a.failNext[op]; ok {
		delete(a.failNext, op)
		return err
	}
	return nil
}

// StoreInit implements storage.Adapter.
func (a *Adapter) StoreInit(ctx context.Context, name string, data []byte) error {
	if err := a.takeFailure("store_init"); err != nil {
		return &storage.Error{Op: "store_init", Name: name, Err: err}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.init[name] = append([]byte{}, data...)
	return nil
}

// StoreSegment implements storage.Adapter.
func (a *Adapter) StoreSegment(ctx context.Context, name string, data []byte) error {
	if err := a.takeFailure("store_segment"); err != nil {
		return &storage.Error{Op: "store_segment", Name: name, Err: err}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.segments[name] = append([]byte{}, data...)
	return nil
}

// StoreManifests implements storage.Adapter.
func (a *Adapter) StoreManifests(ctx context.Context, docs []storage.NamedText) error {
	if err := a.takeFailure("store_manifests"); err != nil {
		return &storage.Error{Op: "store_manifests", Err: err}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, doc := range docs {
		a.manifests[doc.Name] = doc.Text
	}
	return nil
}

// RemoveSegments implements storage.Adapter.
func (a *Adapter) RemoveSegments(ctx context.Context, names []string) error {
	if err := a.takeFailure("remove_segments"); err != nil {
		return &storage.Error{Op: "remove_segments", Err: err}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, name := range names {
		delete(a.segments, name)
	}
	return nil
}

// Init returns the current bytes stored for name, for test assertions.
func (a *Adapter) Init(name string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	b, ok := a.init[name]
	return b, ok
}

// Segment returns the current bytes stored for name, for test assertions.
func (a *Adapter) Segment(name string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	b, ok := a.segments[name]
	return b, ok
}

// ReadManifest implements storage.ManifestReader.
func (a *Adapter) ReadManifest(ctx context.Context, name string) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.manifests[name]
	if !ok {
		return "", storage.ErrManifestNotFound
	}
	return s, nil
}

// Manifest returns the current text stored for name, for test assertions.
func (a *Adapter) Manifest(name string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.manifests[name]
	return s, ok
}

// SegmentNames returns every segment name currently stored, for test
// assertions about eviction.
func (a *Adapter) SegmentNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.segments))
	for name := range a.segments {
		names = append(names, name)
	}
	return names
}
