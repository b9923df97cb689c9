// Package serialize defines the pluggable contract from Manifest state
// to a set of named text blobs: a master manifest and, where the dialect
// uses them, per-track sub-manifests. Concrete dialects (hls, dash) live
// in sibling packages.
package serialize

import "hls-sink/internal/manifest"

// PerTrack pairs a blob name with the serialized text for one track.
type PerTrack struct {
	Name string
	Text string
}

// Manifests is the result of a Serializer call: the master manifest
// plus the per-track sub-manifests, keyed by track id. PerTrack is empty
// when the dialect puts every track in the master (HLS with a single
// track, DASH always).
type Manifests struct {
	Master   PerTrack
	PerTrack map[string]PerTrack
}

// Serializer converts Manifest state into a set of named text blobs.
// Implementations may reject topologies they cannot express (e.g. HLS
// supports at most one audio and one video track) by returning an
// error.
type Serializer interface {
	Serialize(m *manifest.Manifest) (Manifests, error)
}
