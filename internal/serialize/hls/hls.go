// Package hls is the reference Serializer: it emits the §6.3 HLS text
// template from Manifest state. It supports at most one audio and one
// video track, per the HLS master-playlist shape; any other topology is
// rejected with ErrUnsupportedTopology.
package hls

import (
	"errors"
	"fmt"
	"strings"

	"hls-sink/internal/manifest"
	"hls-sink/internal/serialize"
	"hls-sink/internal/track"
)

// ErrUnsupportedTopology is returned by Serialize when a manifest holds
// more tracks than HLS's single-audio/single-video master playlist can
// express.
var ErrUnsupportedTopology = errors.New("hls: unsupported track topology")

const version = 7

// Serializer is the HLS reference serializer.
type Serializer struct{}

// New returns a new HLS Serializer.
func New() *Serializer { return &Serializer{} }

// Serialize implements serialize.Serializer.
func (Serializer) Serialize(m *manifest.Manifest) (serialize.Manifests, error) {
	var audio, video *track.Track
	for _, tr := range m.Tracks() {
		tr := tr
		switch tr.ContentType() {
		case track.ContentTypeAudio:
			if audio != nil {
				return serialize.Manifests{}, ErrUnsupportedTopology
			}
			audio = &tr
		case track.ContentTypeVideo:
			if video != nil {
				return serialize.Manifests{}, ErrUnsupportedTopology
			}
			video = &tr
		default:
			return serialize.Manifests{}, ErrUnsupportedTopology
		}
	}

	masterName := m.Name() + ".m3u8"

	switch {
	case audio != nil && video != nil:
		perTrack := map[string]serialize.PerTrack{
			video.ID(): {Name: "video.m3u8", Text: trackPlaylist(*video)},
			audio.ID(): {Name: "audio.m3u8", Text: trackPlaylist(*audio)},
		}
		master := strings.Join([]string{
			"#EXTM3U",
			fmt.Sprintf("#EXT-X-VERSION:%d", version),
			"#EXT-X-INDEPENDENT-SEGMENTS",
			`#EXT-X-STREAM-INF:BANDWIDTH=2560000,CODECS="avc1.42e00a",AUDIO="a"`,
			"video.m3u8",
			`#EXT-X-MEDIA:TYPE=AUDIO,NAME="a",GROUP-ID="a",AUTOSELECT=YES,DEFAULT=YES,URI="audio.m3u8"`,
			"",
		}, "\n")
		return serialize.Manifests{
			Master:   serialize.PerTrack{Name: masterName, Text: master},
			PerTrack: perTrack,
		}, nil

	case video != nil:
		return serialize.Manifests{
			Master:   serialize.PerTrack{Name: masterName, Text: trackPlaylist(*video)},
			PerTrack: map[string]serialize.PerTrack{},
		}, nil

	case audio != nil:
		return serialize.Manifests{
			Master:   serialize.PerTrack{Name: masterName, Text: trackPlaylist(*audio)},
			PerTrack: map[string]serialize.PerTrack{},
		}, nil

	default:
		return serialize.Manifests{
			Master: serialize.PerTrack{
				Name: masterName,
				Text: strings.Join([]string{
					"#EXTM3U",
					fmt.Sprintf("#EXT-X-VERSION:%d", version),
					"#EXT-X-TARGETDURATION:0",
					"#EXT-X-MEDIA-SEQUENCE:0",
					"",
				}, "\n"),
			},
			PerTrack: map[string]serialize.PerTrack{},
		}, nil
	}
}

// trackPlaylist renders the per-track manifest template from §6.3:
// header, TARGETDURATION, MEDIA-SEQUENCE, an EXT-X-MAP that rotates
// whenever a segment's header changed (a discontinuity), one EXTINF
// pair per segment, and ENDLIST iff the track has finished.
func trackPlaylist(tr track.Track) string {
	segments := tr.Segments()

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "#EXT-X-VERSION:%d\n", version)
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", tr.TargetSegmentDuration().CeilSeconds())
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", tr.MediaSequence())

	currentHeader := tr.HeaderName()
	if len(segments) > 0 {
		currentHeader = segments[0].HeaderName
	}
	fmt.Fprintf(&b, "#EXT-X-MAP:URI=\"%s\"\n", currentHeader)

	for _, seg := range segments {
		if seg.Discontinuous && seg.HeaderName != currentHeader {
			b.WriteString("#EXT-X-DISCONTINUITY\n")
			fmt.Fprintf(&b, "#EXT-X-MAP:URI=\"%s\"\n", seg.HeaderName)
			currentHeader = seg.HeaderName
		}
		fmt.Fprintf(&b, "#EXTINF:%s,\n", formatSeconds(seg.Duration.Seconds()))
		b.WriteString(seg.Name)
		b.WriteString("\n")
	}

	if tr.Finished() {
		b.WriteString("#EXT-X-ENDLIST\n")
	}

	return b.String()
}

func formatSeconds(seconds float64) string {
	s := fmt.Sprintf("%.6f", seconds)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
