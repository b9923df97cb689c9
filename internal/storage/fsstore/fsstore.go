// Package fsstore is a filesystem-backed storage.Adapter. It writes
// init and segment blobs directly, and writes manifests via a
// temp-file-then-rename so that a reader never observes a half-written
// playlist — the concrete instance of the "adapter may implement
// atomically via temp+rename" clause in the storage contract.
package fsstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"

	"hls-sink/internal/storage"
)

// RetryBackoff is the constant backoff used by Retrying between
// transient write failures, grounded on the constant-backoff retry
// pattern used elsewhere in the corpus for transcoding jobs.
const RetryBackoff = 200 * time.Millisecond

// MaxRetries bounds Retrying's retry attempts.
const MaxRetries = 3

// Adapter persists blobs under root.
type Adapter struct {
	root string
}

// New returns an Adapter rooted at dir. The directory is created if it
// does not already exist.
func New(dir string) (*Adapter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fsstore: %w", err)
	}
	return &Adapter{root: dir}, nil
}

func (a *Adapter) path(name string) string {
	return filepath.Join(a.root, filepath.Clean("/"+name))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// StoreInit implements storage.Adapter.
func (a *Adapter) StoreInit(ctx context.Context, name string, data []byte) error {
	if err := writeFile(a.path(name), data); err != nil {
		return &storage.Error{Op: "store_init", Name: name, Err: err}
	}
	return nil
}

// StoreSegment implements storage.Adapter.
func (a *Adapter) StoreSegment(ctx context.Context, name string, data []byte) error {
	if err := writeFile(a.path(name), data); err != nil {
		return &storage.Error{Op: "store_segment", Name: name, Err: err}
	}
	return nil
}

// StoreManifests implements storage.Adapter. Every document is first
// written to a sibling temp file, then renamed into place, so a
// concurrent reader only ever sees a complete document. Atomicity is per
// document, not across docs: documents are replaced one after another,
// and an error part-way through leaves the earlier documents of docs
// already replaced.
func (a *Adapter) StoreManifests(ctx context.Context, docs []storage.NamedText) error {
	for _, doc := range docs {
		dst := a.path(doc.Name)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return &storage.Error{Op: "store_manifests", Name: doc.Name, Err: err}
		}
		tmp := dst + ".tmp"
		if err := os.WriteFile(tmp, []byte(doc.Text), 0o644); err != nil {
			return &storage.Error{Op: "store_manifests", Name: doc.Name, Err: err}
		}
		if err := os.Rename(tmp, dst); err != nil {
			return &storage.Error{Op: "store_manifests", Name: doc.Name, Err: err}
		}
	}
	return nil
}

// RemoveSegments implements storage.Adapter. A missing blob is not an
// error.
func (a *Adapter) RemoveSegments(ctx context.Context, names []string) error {
	for _, name := range names {
		if err := os.Remove(a.path(name)); err != nil && !os.IsNotExist(err) {
			return &storage.Error{Op: "remove_segments", Name: name, Err: err}
		}
	}
	return nil
}

// ReadManifest implements storage.ManifestReader.
func (a *Adapter) ReadManifest(ctx context.Context, name string) (string, error) {
	data, err := os.ReadFile(a.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", storage.ErrManifestNotFound
		}
		return "", &storage.Error{Op: "read_manifest", Name: name, Err: err}
	}
	return string(data), nil
}

// Retrying returns a storage.Adapter that retries each write up to
// MaxRetries times with RetryBackoff between attempts, wrapping a.
// The core itself performs no retry (per the error handling design);
// this lives entirely on the adapter side.
func Retrying(a *Adapter) storage.Adapter {
	return retrying{a}
}

type retrying struct {
	inner *Adapter
}

func (r retrying) retry(op func() error) error {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(RetryBackoff), MaxRetries)
	return backoff.Retry(op, b)
}

func (r retrying) StoreInit(ctx context.Context, name string, data []byte) error {
	return r.retry(func() error { return r.inner.StoreInit(ctx, name, data) })
}

func (r retrying) StoreSegment(ctx context.Context, name string, data []byte) error {
	return r.retry(func() error { return r.inner.StoreSegment(ctx, name, data) })
}

func (r retrying) StoreManifests(ctx context.Context, docs []storage.NamedText) error {
	return r.retry(func() error { return r.inner.StoreManifests(ctx, docs) })
}

func (r retrying) RemoveSegments(ctx context.Context, names []string) error {
	return r.retry(func() error { return r.inner.RemoveSegments(ctx, names) })
}

// ReadManifest implements storage.ManifestReader. Reads are not retried;
// a missing manifest is a normal outcome, not a transient failure.
func (r retrying) ReadManifest(ctx context.Context, name string) (string, error) {
	return r.inner.ReadManifest(ctx, name)
}
