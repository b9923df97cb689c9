package memstore

import (
	"context"
	"errors"
	"testing"

	"hls-sink/internal/storage"
)

func TestStoreInit_andRead(t *testing.T) {
	a := New()
	if err := a.StoreInit(context.Background(), "h.mp4", []byte("init")); err != nil {
		t.Fatalf("StoreInit: %v", err)
	}
	got, ok := a.Init("h.mp4")
	if !ok || string(got) != "init" {
		t.Errorf("Init: got %q ok=%v", got, ok)
	}
}

func TestStoreSegment_andRemove(t *testing.T) {
	a := New()
	if err := a.StoreSegment(context.Background(), "seg1", []byte("x")); err != nil {
		t.Fatalf("StoreSegment: %v", err)
	}
	if err := a.RemoveSegments(context.Background(), []string{"seg1", "missing"}); err != nil {
		t.Fatalf("RemoveSegments: %v", err)
	}
	if _, ok := a.Segment("seg1"); ok {
		t.Error("expected seg1 removed")
	}
}

func TestStoreManifests(t *testing.T) {
	a := New()
	docs := []storage.NamedText{{Name: "index.m3u8", Text: "#EXTM3U\n"}}
	if err := a.StoreManifests(context.Background(), docs); err != nil {
		t.Fatalf("StoreManifests: %v", err)
	}
	got, ok := a.Manifest("index.m3u8")
	if !ok || got != "#EXTM3U\n" {
		t.Errorf("Manifest: got %q ok=%v", got, ok)
	}
}

func TestReadManifest(t *testing.T) {
	a := New()
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

func TestFailNext_doesNotPoisonSubsequentCalls(t *testing.T) {
	a := New()
	boom := errors.New("boom")
	a.FailNext("store_segment", boom)

	err := a.StoreSegment(context.Background(), "seg1", []byte("x"))
	if err == nil {
		t.Fatal("expected the arranged failure")
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped boom, got %v", err)
	}

	if err := a.StoreSegment(context.Background(), "seg2", []byte("y")); err != nil {
		t.Fatalf("expected subsequent call to succeed, got %v", err)
	}
	if _, ok := a.Segment("seg2"); !ok {
		t.Error("expected seg2 stored after the arranged failure cleared")
	}
}
