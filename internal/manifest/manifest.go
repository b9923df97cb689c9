// Package manifest is the thin coordinator described by the spec: a
// collection of Tracks keyed by track id plus a presentation name. Every
// operation dispatches to the addressed Track and returns its Changeset,
// embedding the track's map-update pattern by replacing the map entry.
package manifest

import (
	"errors"

	"hls-sink/internal/rtime"
	"hls-sink/internal/track"
)

// ErrDuplicateTrack is returned by AddTrack when a track id collides
// with one already registered.
var ErrDuplicateTrack = errors.New("manifest: duplicate track")

// ErrUnknownTrack is returned when an operation addresses a track id
// that has not been registered.
var ErrUnknownTrack = errors.New("manifest: unknown track")

// Manifest holds the presentation name and the set of tracks currently
// contributing to it.
type Manifest struct {
	name   string
	tracks map[string]track.Track
	order  []string // insertion order, for deterministic serialization
}

// New returns an empty Manifest with the given presentation name.
func New(name string) *Manifest {
	return &Manifest{
		name:   name,
		tracks: make(map[string]track.Track),
	}
}

// Name returns the manifest's presentation name.
func (m *Manifest) Name() string { return m.name }

// AddTrack registers a new track built from cfg (with ManifestName
// forced to m.Name()) and returns its initial header name. It fails
// with ErrDuplicateTrack if cfg.ID is already registered.
func (m *Manifest) AddTrack(cfg track.Config) (string, error) {
	if _, exists := m.tracks[cfg.ID]; exists {
		return "", ErrDuplicateTrack
	}
	cfg.ManifestName = m.name
	tr := track.New(cfg)
	m.tracks[cfg.ID] = tr
	m.order = append(m.order, cfg.ID)
	return tr.HeaderName(), nil
}

// RemoveTrack un-registers trackID, freeing its id for a future AddTrack.
// It is a no-op if trackID was never registered, so callers can use it
// unconditionally to unwind a failed registration.
func (m *Manifest) RemoveTrack(trackID string) {
	if _, ok := m.tracks[trackID]; !ok {
		return
	}
	delete(m.tracks, trackID)
	for i, id := range m.order {
		if id == trackID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// HasTrack reports whether trackID has been registered.
func (m *Manifest) HasTrack(trackID string) bool {
	_, ok := m.tracks[trackID]
	return ok
}

// IsPersisted reports whether trackID was configured as persisted.
func (m *Manifest) IsPersisted(trackID string) (bool, error) {
	tr, ok := m.tracks[trackID]
	if !ok {
		return false, ErrUnknownTrack
	}
	return tr.Persisted(), nil
}

// Track returns a copy of the current state of trackID.
func (m *Manifest) Track(trackID string) (track.Track, error) {
	tr, ok := m.tracks[trackID]
	if !ok {
		return track.Track{}, ErrUnknownTrack
	}
	return tr, nil
}

// Tracks returns every registered track, in registration order.
func (m *Manifest) Tracks() []track.Track {
	out := make([]track.Track, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tracks[id])
	}
	return out
}

// AddChunk dispatches to the addressed track's AddChunk and stores the
// resulting track state back into the manifest.
func (m *Manifest) AddChunk(trackID string, chunk track.Chunk) (track.Changeset, error) {
	tr, ok := m.tracks[trackID]
	if !ok {
		return track.Changeset{}, ErrUnknownTrack
	}
	cs, next, err := tr.AddChunk(chunk)
	if err != nil {
		return track.Changeset{}, err
	}
	m.tracks[trackID] = next
	return cs, nil
}

// DiscontinueTrack dispatches to the addressed track's Discontinue.
func (m *Manifest) DiscontinueTrack(trackID string) (string, error) {
	tr, ok := m.tracks[trackID]
	if !ok {
		return "", ErrUnknownTrack
	}
	newHeader, next, err := tr.Discontinue()
	if err != nil {
		return "", err
	}
	m.tracks[trackID] = next
	return newHeader, nil
}

// Finish dispatches to the addressed track's Finish.
func (m *Manifest) Finish(trackID string) (track.Changeset, error) {
	tr, ok := m.tracks[trackID]
	if !ok {
		return track.Changeset{}, ErrUnknownTrack
	}
	cs, next, err := tr.Finish()
	if err != nil {
		return track.Changeset{}, err
	}
	m.tracks[trackID] = next
	return cs, nil
}

// FromBeginning dispatches to the addressed track's FromBeginning.
func (m *Manifest) FromBeginning(trackID string) error {
	tr, ok := m.tracks[trackID]
	if !ok {
		return ErrUnknownTrack
	}
	next, err := tr.FromBeginning()
	if err != nil {
		return err
	}
	m.tracks[trackID] = next
	return nil
}

// AllSegmentsPerTrack returns, for every registered track, the union of
// stale and live segment names in presentation order.
func (m *Manifest) AllSegmentsPerTrack() map[string][]string {
	out := make(map[string][]string, len(m.tracks))
	for id, tr := range m.tracks {
		out[id] = tr.AllSegments()
	}
	return out
}

// MaxTargetSegmentDuration returns the largest TargetSegmentDuration
// observed across all tracks, the value for a single master-level
// TARGETDURATION hint. Neither the hls nor the dash serializer calls it.
func (m *Manifest) MaxTargetSegmentDuration() rtime.Duration {
	var max rtime.Duration
	for _, tr := range m.tracks {
		max = rtime.Max(max, tr.TargetSegmentDuration())
	}
	return max
}
