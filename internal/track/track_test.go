package track

import (
	"testing"

	"hls-sink/internal/rtime"
)

func newVideoConfig(window rtime.Duration) Config {
	return Config{
		ID:                "v",
		ManifestName:      "index",
		ContentType:       ContentTypeVideo,
		InitExtension:     "mp4",
		FragmentExtension: "m4s",
		TargetWindowDuration: window,
	}
}

func TestNew_derivesHeaderName(t *testing.T) {
	tr := New(newVideoConfig(rtime.Unbounded))
	if tr.HeaderName() != "index_v_header.mp4" {
		t.Errorf("unexpected header name: %s", tr.HeaderName())
	}
}

func TestAddChunk_unboundedWindow_noEviction(t *testing.T) {
	tr := New(newVideoConfig(rtime.Unbounded))

	durations := []float64{4, 5, 3}
	for _, d := range durations {
		cs, next, err := tr.AddChunk(Chunk{Duration: rtime.FromSeconds(d), Complete: true})
		if err != nil {
			t.Fatalf("AddChunk: %v", err)
		}
		if len(cs.SegmentsToAdd) != 1 {
			t.Fatalf("expected 1 segment added, got %d", len(cs.SegmentsToAdd))
		}
		if len(cs.SegmentsToRemove) != 0 {
			t.Fatalf("expected no eviction, got %v", cs.SegmentsToRemove)
		}
		tr = next
	}

	if len(tr.Segments()) != 3 {
		t.Fatalf("expected 3 live segments, got %d", len(tr.Segments()))
	}
	if tr.MediaSequence() != 0 {
		t.Errorf("expected media sequence 0, got %d", tr.MediaSequence())
	}
	if tr.TargetSegmentDuration().CeilSeconds() != 5 {
		t.Errorf("expected max duration 5s, got %ds", tr.TargetSegmentDuration().CeilSeconds())
	}
}

func TestAddChunk_boundedWindow_evictsHead(t *testing.T) {
	tr := New(newVideoConfig(rtime.FromSeconds(7)))

	for _, d := range []float64{4, 5} {
		_, next, err := tr.AddChunk(Chunk{Duration: rtime.FromSeconds(d), Complete: true})
		if err != nil {
			t.Fatalf("AddChunk: %v", err)
		}
		tr = next
	}
	// 4 + 5 = 9 > 7, so "A" segment (4s) should already have evicted by now.
	if len(tr.Segments()) != 1 {
		t.Fatalf("expected 1 live segment after second chunk, got %d", len(tr.Segments()))
	}

	cs, tr, err := tr.AddChunk(Chunk{Duration: rtime.FromSeconds(3), Complete: true})
	if err != nil {
		t.Fatalf("AddChunk: %v", err)
	}
	// live was [5], add 3 => [5,3] sum 8 > 7, evict 5 => [3] sum 3 <= 7.
	if len(cs.SegmentsToRemove) != 1 {
		t.Fatalf("expected 1 evicted segment, got %d", len(cs.SegmentsToRemove))
	}
	if len(tr.Segments()) != 1 || tr.Segments()[0].Duration.CeilSeconds() != 3 {
		t.Fatalf("expected single 3s segment remaining, got %v", tr.Segments())
	}
	if tr.MediaSequence() != 2 {
		t.Errorf("expected media sequence 2, got %d", tr.MediaSequence())
	}
}

func TestAddChunk_doesNotEvictIncompleteHead(t *testing.T) {
	tr := New(newVideoConfig(rtime.FromSeconds(1)))

	_, tr, err := tr.AddChunk(Chunk{Duration: rtime.FromSeconds(5), Complete: false})
	if err != nil {
		t.Fatalf("AddChunk: %v", err)
	}
	cs, tr, err := tr.AddChunk(Chunk{Duration: rtime.FromSeconds(5), Complete: true})
	if err != nil {
		t.Fatalf("AddChunk: %v", err)
	}
	if len(cs.SegmentsToRemove) != 0 {
		t.Errorf("incomplete head segment must not be evicted, got removed=%v", cs.SegmentsToRemove)
	}
	if len(tr.Segments()) != 2 {
		t.Errorf("expected both segments retained, got %d", len(tr.Segments()))
	}
}

func TestAddChunk_finishedTrackRejects(t *testing.T) {
	tr := New(newVideoConfig(rtime.Unbounded))
	_, tr, err := tr.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	_, _, err = tr.AddChunk(Chunk{Duration: rtime.FromSeconds(1), Complete: true})
	if err != ErrTrackFinished {
		t.Errorf("expected ErrTrackFinished, got %v", err)
	}
}

func TestFinish_twiceFails(t *testing.T) {
	tr := New(newVideoConfig(rtime.Unbounded))
	_, tr, err := tr.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	_, _, err = tr.Finish()
	if err != ErrTrackFinished {
		t.Errorf("expected ErrTrackFinished, got %v", err)
	}
}

func TestDiscontinue_rotatesHeaderAndTagsNextSegment(t *testing.T) {
	tr := New(newVideoConfig(rtime.Unbounded))
	_, tr, err := tr.AddChunk(Chunk{Duration: rtime.FromSeconds(2), Complete: true})
	if err != nil {
		t.Fatalf("AddChunk: %v", err)
	}

	originalHeader := tr.HeaderName()
	newHeader, tr, err := tr.Discontinue()
	if err != nil {
		t.Fatalf("Discontinue: %v", err)
	}
	if newHeader == originalHeader {
		t.Fatal("expected a distinct header name after discontinuity")
	}
	if tr.HeaderName() != newHeader {
		t.Fatalf("track header name should match returned header name")
	}

	cs, tr, err := tr.AddChunk(Chunk{Duration: rtime.FromSeconds(2), Complete: true})
	if err != nil {
		t.Fatalf("AddChunk: %v", err)
	}
	if cs.NewHeaderName != newHeader {
		t.Errorf("expected changeset to carry new header name %s, got %s", newHeader, cs.NewHeaderName)
	}
	if !cs.SegmentsToAdd[0].Discontinuous {
		t.Error("expected segment following discontinuity to be marked discontinuous")
	}
	if cs.SegmentsToAdd[0].HeaderName != newHeader {
		t.Errorf("expected segment to carry new header name %s, got %s", newHeader, cs.SegmentsToAdd[0].HeaderName)
	}
}

func TestFromBeginning_requiresPersisted(t *testing.T) {
	tr := New(newVideoConfig(rtime.FromSeconds(1)))
	_, err := tr.FromBeginning()
	if err != ErrNotPersisted {
		t.Errorf("expected ErrNotPersisted, got %v", err)
	}
}

func TestFromBeginning_restoresFullHistory(t *testing.T) {
	cfg := newVideoConfig(rtime.FromSeconds(2))
	cfg.Persisted = true
	tr := New(cfg)

	var allNames []string
	for _, d := range []float64{1, 1, 1, 1} {
		cs, next, err := tr.AddChunk(Chunk{Duration: rtime.FromSeconds(d), Complete: true})
		if err != nil {
			t.Fatalf("AddChunk: %v", err)
		}
		tr = next
		for _, s := range cs.SegmentsToAdd {
			allNames = append(allNames, s.Name)
		}
	}

	tr, err := tr.FromBeginning()
	if err != nil {
		t.Fatalf("FromBeginning: %v", err)
	}
	if tr.MediaSequence() != 0 {
		t.Errorf("expected media sequence 0 after FromBeginning, got %d", tr.MediaSequence())
	}
	got := tr.AllSegments()
	if len(got) != len(allNames) {
		t.Fatalf("expected %d segments, got %d", len(allNames), len(got))
	}
	for i, name := range allNames {
		if got[i] != name {
			t.Errorf("segment %d: expected %s, got %s", i, name, got[i])
		}
	}
}

func TestMediaSequenceInvariant(t *testing.T) {
	tr := New(newVideoConfig(rtime.FromSeconds(3)))
	for _, d := range []float64{1, 1, 1, 1, 1, 1} {
		_, next, err := tr.AddChunk(Chunk{Duration: rtime.FromSeconds(d), Complete: true})
		if err != nil {
			t.Fatalf("AddChunk: %v", err)
		}
		tr = next
		if tr.MediaSequence()+int64(len(tr.Segments())) != tr.CurrentSeqNum() {
			t.Fatalf("media_sequence + len(segments) must equal current_seq_num")
		}
	}
}
