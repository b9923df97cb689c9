// Package track implements the per-input-stream state machine described
// in the manifest engine's data model: an ordered sequence of segment
// descriptors, a monotonic sequence counter, sliding-window eviction, and
// discontinuity/finish bookkeeping.
//
// Every mutating operation follows the source's map-update pattern: it
// takes a Track by value and returns a (Changeset, Track) pair rather
// than mutating shared state, so a Manifest can embed a Track update by
// simply replacing the map entry for that track id.
package track

import (
	"errors"
	"fmt"

	"hls-sink/internal/rtime"
)

// ContentType is the media kind carried by a track.
type ContentType string

const (
	ContentTypeAudio ContentType = "audio"
	ContentTypeVideo ContentType = "video"
)

// ErrTrackFinished is returned by AddChunk, Discontinue, and Finish once
// a track has been finished; no further mutation is admitted.
var ErrTrackFinished = errors.New("track: finished")

// ErrNotPersisted is returned by FromBeginning on a track that was not
// configured with Persisted: true.
var ErrNotPersisted = errors.New("track: not persisted")

// Segment is a single self-contained slice of encoded media referenced
// from a manifest.
type Segment struct {
	Name          string
	Duration      rtime.Duration
	ByteSize      int64
	Independent   bool
	Complete      bool
	Discontinuous bool
	HeaderName    string
}

// Chunk is the caller-supplied data for one AddChunk call: the metadata
// side of an upstream buffer. The raw payload bytes travel alongside the
// chunk in the caller (the Sink Controller), not inside the Track, since
// the Track only ever needs to know the segment's name and metadata.
type Chunk struct {
	Duration    rtime.Duration
	ByteSize    int64
	Independent bool
	Complete    bool
}

// Changeset is the result of every Track mutation: what storage must
// add, and what it must remove, to stay in lockstep with the new Track
// state. NewHeaderName is non-empty only when a discontinuity causes a
// fresh init blob to precede the segment.
type Changeset struct {
	NewHeaderName    string
	SegmentsToAdd    []Segment
	SegmentsToRemove []Segment
}

// Config seeds a new Track.
type Config struct {
	ID                    string
	ManifestName          string
	ContentType           ContentType
	InitExtension         string
	FragmentExtension     string
	TargetSegmentDuration rtime.Duration
	TargetWindowDuration  rtime.Duration // rtime.Unbounded for no eviction
	Persisted             bool
}

// Track is the immutable-by-convention per-track state. Callers obtain a
// new Track from every mutating method; the receiver is left unchanged.
type Track struct {
	id                string
	manifestName      string
	contentType       ContentType
	headerName        string
	headerGeneration  int
	initExtension     string
	fragmentExtension string

	targetSegmentDuration rtime.Duration
	targetWindowDuration  rtime.Duration

	segments      []Segment
	staleSegments []Segment
	currentSeqNum int64

	persisted            bool
	finished             bool
	discontinuityPending bool
}

// New constructs a Track from cfg. The header name is derived by
// concatenating the manifest name, track id, and init extension; the
// scheme only needs to be unique across tracks within a manifest.
func New(cfg Config) Track {
	t := Track{
		id:                    cfg.ID,
		manifestName:          cfg.ManifestName,
		contentType:           cfg.ContentType,
		initExtension:         cfg.InitExtension,
		fragmentExtension:     cfg.FragmentExtension,
		targetSegmentDuration: cfg.TargetSegmentDuration,
		targetWindowDuration:  cfg.TargetWindowDuration,
		persisted:             cfg.Persisted,
	}
	t.headerName = t.deriveHeaderName()
	return t
}

func (t Track) deriveHeaderName() string {
	suffix := ""
	if t.headerGeneration > 0 {
		suffix = fmt.Sprintf("_%d", t.headerGeneration)
	}
	return fmt.Sprintf("%s_%s_header%s.%s", t.manifestName, t.id, suffix, t.initExtension)
}

func (t Track) segmentName(seq int64) string {
	return fmt.Sprintf("%s_%s_segment_%d.%s", t.manifestName, t.id, seq, t.fragmentExtension)
}

// ID returns the track's opaque identifier.
func (t Track) ID() string { return t.id }

// ContentType returns the track's media kind.
func (t Track) ContentType() ContentType { return t.contentType }

// HeaderName returns the name of the init blob currently in effect.
func (t Track) HeaderName() string { return t.headerName }

// Finished reports whether the track has been finished.
func (t Track) Finished() bool { return t.finished }

// Persisted reports whether evicted segments are retained for replay.
func (t Track) Persisted() bool { return t.persisted }

// TargetSegmentDuration returns the upper bound used for TARGETDURATION.
func (t Track) TargetSegmentDuration() rtime.Duration { return t.targetSegmentDuration }

// TargetWindowDuration returns the configured eviction threshold.
func (t Track) TargetWindowDuration() rtime.Duration { return t.targetWindowDuration }

// Segments returns the live, in-window segment descriptors in
// presentation order. The returned slice is a copy.
func (t Track) Segments() []Segment {
	out := make([]Segment, len(t.segments))
	copy(out, t.segments)
	return out
}

// MediaSequence returns current_seq_num - len(segments), the HLS
// MEDIA-SEQUENCE value.
func (t Track) MediaSequence() int64 {
	return t.currentSeqNum - int64(len(t.segments))
}

// CurrentSeqNum returns the sequence number the next appended segment
// will receive.
func (t Track) CurrentSeqNum() int64 { return t.currentSeqNum }

// AllSegments returns the union of stale and live segment names, in
// presentation order (stale first, since they were appended earlier).
func (t Track) AllSegments() []string {
	names := make([]string, 0, len(t.staleSegments)+len(t.segments))
	for _, s := range t.staleSegments {
		names = append(names, s.Name)
	}
	for _, s := range t.segments {
		names = append(names, s.Name)
	}
	return names
}

// AddChunk appends a new segment built from chunk, updates bookkeeping,
// and evicts from the head of the window until the live-segment total
// duration is within TargetWindowDuration (when bounded). It returns the
// Changeset describing what storage must add and remove, and the new
// Track value.
func (t Track) AddChunk(chunk Chunk) (Changeset, Track, error) {
	if t.finished {
		return Changeset{}, t, ErrTrackFinished
	}

	var cs Changeset

	if chunk.Duration > t.targetSegmentDuration {
		t.targetSegmentDuration = chunk.Duration
	}

	seg := Segment{
		Name:        t.segmentName(t.currentSeqNum),
		Duration:    chunk.Duration,
		ByteSize:    chunk.ByteSize,
		Independent: chunk.Independent,
		Complete:    chunk.Complete,
		HeaderName:  t.headerName,
	}
	t.currentSeqNum++

	if t.discontinuityPending {
		t.discontinuityPending = false
		seg.Discontinuous = true
		cs.NewHeaderName = t.headerName
	}

	t.segments = append(t.segments, seg)
	cs.SegmentsToAdd = append(cs.SegmentsToAdd, seg)

	t.evict(&cs)

	return cs, t, nil
}

// evict removes segments from the head of the window while the live
// total exceeds TargetWindowDuration, stopping if the head segment is an
// unsealed partial (Complete == false) or the window is unbounded.
func (t *Track) evict(cs *Changeset) {
	if t.targetWindowDuration.IsUnbounded() {
		return
	}
	for {
		total := sumDurations(t.segments)
		if total <= t.targetWindowDuration {
			return
		}
		head := t.segments[0]
		if !head.Complete {
			return
		}
		t.segments = t.segments[1:]
		if t.persisted {
			t.staleSegments = append(t.staleSegments, head)
		} else {
			cs.SegmentsToRemove = append(cs.SegmentsToRemove, head)
		}
	}
}

func sumDurations(segs []Segment) rtime.Duration {
	var total rtime.Duration
	for _, s := range segs {
		total += s.Duration
	}
	return total
}

// Discontinue marks the next AddChunk as following a discontinuity and
// rotates the header name. It returns the new header name so the caller
// can write the corresponding init blob before the next segment lands.
func (t Track) Discontinue() (string, Track, error) {
	if t.finished {
		return "", t, ErrTrackFinished
	}
	t.discontinuityPending = true
	t.headerGeneration++
	t.headerName = t.deriveHeaderName()
	return t.headerName, t, nil
}

// Finish marks the track finished. No further mutation is admitted
// afterwards; serialization of a finished track includes the end-of-list
// marker. The returned Changeset is always empty.
func (t Track) Finish() (Changeset, Track, error) {
	if t.finished {
		return Changeset{}, t, ErrTrackFinished
	}
	t.finished = true
	return Changeset{}, t, nil
}

// FromBeginning prepends StaleSegments back onto the live window so that
// MediaSequence becomes zero, and clears StaleSegments. Only valid on a
// persisted track.
func (t Track) FromBeginning() (Track, error) {
	if !t.persisted {
		return t, ErrNotPersisted
	}
	if len(t.staleSegments) == 0 {
		return t, nil
	}
	t.segments = append(append([]Segment{}, t.staleSegments...), t.segments...)
	t.currentSeqNum = int64(len(t.segments))
	t.staleSegments = nil
	return t, nil
}
