// Package dash is a minimal MPEG-DASH Serializer: it satisfies the same
// Serialize(Manifest) contract as hls.Serializer, producing a single
// live MPD with one AdaptationSet per track and a SegmentTemplate per
// segment list. It does not attempt DASH's own discontinuity or
// multi-period signaling; it exists to demonstrate the "pluggable
// module" design note's "future DASH" variant on top of the same
// Changeset/Manifest data the HLS serializer consumes.
package dash

import (
	"fmt"
	"strings"

	"hls-sink/internal/manifest"
	"hls-sink/internal/serialize"
	"hls-sink/internal/track"
)

// Serializer is the minimal DASH serializer.
type Serializer struct{}

// New returns a new DASH Serializer.
func New() *Serializer { return &Serializer{} }

// Serialize implements serialize.Serializer. DASH has no sub-manifest
// concept distinct from the master MPD, so PerTrack is always empty.
func (Serializer) Serialize(m *manifest.Manifest) (serialize.Manifests, error) {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")

	profile := "urn:mpeg:dash:profile:isoff-live:2011"
	minBufferTime := "PT2S"
	fmt.Fprintf(&b, `<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" profiles="%s" type="dynamic" minBufferTime="%s">`+"\n", profile, minBufferTime)
	b.WriteString("  <Period id=\"0\">\n")

	for _, tr := range m.Tracks() {
		writeAdaptationSet(&b, tr)
	}

	b.WriteString("  </Period>\n")
	b.WriteString("</MPD>\n")

	return serialize.Manifests{
		Master:   serialize.PerTrack{Name: m.Name() + ".mpd", Text: b.String()},
		PerTrack: map[string]serialize.PerTrack{},
	}, nil
}

func writeAdaptationSet(b *strings.Builder, tr track.Track) {
	mimeType := "video/mp4"
	if tr.ContentType() == track.ContentTypeAudio {
		mimeType = "audio/mp4"
	}
	fmt.Fprintf(b, "    <AdaptationSet id=\"%s\" mimeType=\"%s\" segmentAlignment=\"true\">\n", tr.ID(), mimeType)
	fmt.Fprintf(b, "      <Representation id=\"%s\">\n", tr.ID())
	fmt.Fprintf(b, "        <SegmentTemplate timescale=\"1000\" initialization=\"%s\" media=\"$Number$\" startNumber=\"%d\">\n",
		tr.HeaderName(), tr.MediaSequence())
	b.WriteString("          <SegmentTimeline>\n")
	for _, seg := range tr.Segments() {
		fmt.Fprintf(b, "            <S d=\"%d\"/>\n", seg.Duration.Millis())
	}
	b.WriteString("          </SegmentTimeline>\n")
	b.WriteString("        </SegmentTemplate>\n")
	b.WriteString("      </Representation>\n")
	b.WriteString("    </AdaptationSet>\n")
}
