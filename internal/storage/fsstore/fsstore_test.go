package fsstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"hls-sink/internal/storage"
)

func TestStoreInit_writesFile(t *testing.T) {
	dir := t.TempDir()
	a, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.StoreInit(context.Background(), "h.mp4", []byte("init")); err != nil {
		t.Fatalf("StoreInit: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "h.mp4"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "init" {
		t.Errorf("expected init, got %q", got)
	}
}

func TestStoreManifests_noTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	a, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	docs := []storage.NamedText{{Name: "index.m3u8", Text: "#EXTM3U\n"}}
	if err := a.StoreManifests(context.Background(), docs); err != nil {
		t.Fatalf("StoreManifests: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "index.m3u8.tmp")); !os.IsNotExist(err) {
		t.Errorf("expected temp file to be renamed away, stat err=%v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "index.m3u8"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "#EXTM3U\n" {
		t.Errorf("unexpected content: %q", got)
	}
}

func TestRemoveSegments_missingIsNotError(t *testing.T) {
	dir := t.TempDir()
	a, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.RemoveSegments(context.Background(), []string{"nope.m4s"}); err != nil {
		t.Errorf("expected missing blob to be a no-op, got %v", err)
	}
}

func TestReadManifest_missingReturnsSentinel(t *testing.T) {
	dir := t.TempDir()
	a, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.ReadManifest(context.Background(), "missing.m3u8"); !errors.Is(err, storage.ErrManifestNotFound) {
		t.Errorf("expected ErrManifestNotFound, got %v", err)
	}

	docs := []storage.NamedText{{Name: "index.m3u8", Text: "#EXTM3U\n"}}
	if err := a.StoreManifests(context.Background(), docs); err != nil {
		t.Fatalf("StoreManifests: %v", err)
	}
	text, err := a.ReadManifest(context.Background(), "index.m3u8")
	if err != nil || text != "#EXTM3U\n" {
		t.Errorf("ReadManifest: got %q, err %v", text, err)
	}
}

func TestRetrying_succeedsThroughAdapter(t *testing.T) {
	dir := t.TempDir()
	a, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := Retrying(a)
	if err := r.StoreSegment(context.Background(), "seg1.m4s", []byte("x")); err != nil {
		t.Fatalf("StoreSegment via Retrying: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "seg1.m4s"))
	if err != nil || string(got) != "x" {
		t.Errorf("expected seg1.m4s to contain x, got %q err=%v", got, err)
	}
}
