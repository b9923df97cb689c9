package dash

import (
	"strings"
	"testing"

	"hls-sink/internal/manifest"
	"hls-sink/internal/rtime"
	"hls-sink/internal/track"
)

func TestSerialize_producesMPDWithAdaptationSetPerTrack(t *testing.T) {
	m := manifest.New("index")
	if _, err := m.AddTrack(track.Config{
		ID:                   "v",
		ContentType:          track.ContentTypeVideo,
		InitExtension:        "mp4",
		FragmentExtension:    "m4s",
		TargetWindowDuration: rtime.Unbounded,
	}); err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	if _, err := m.AddChunk("v", track.Chunk{Duration: rtime.FromSeconds(4), Complete: true}); err != nil {
		t.Fatalf("AddChunk: %v", err)
	}

	out, err := New().Serialize(m)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if out.Master.Name != "index.mpd" {
		t.Errorf("unexpected master name: %s", out.Master.Name)
	}
	if !strings.Contains(out.Master.Text, `<AdaptationSet id="v"`) {
		t.Errorf("expected AdaptationSet for track v: %s", out.Master.Text)
	}
	if !strings.Contains(out.Master.Text, `<S d="4000"/>`) {
		t.Errorf("expected 4000ms segment duration: %s", out.Master.Text)
	}
	if len(out.PerTrack) != 0 {
		t.Errorf("DASH has no sub-manifests, got %v", out.PerTrack)
	}
}
