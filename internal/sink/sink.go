// Package sink implements the Sink Controller: the state machine keyed
// on pad id that binds a hosting pipeline's per-pad lifecycle events
// (caps arrival, stream start, buffer write, stream end) to Manifest
// operations and Storage writes, enforces backpressure by demanding one
// buffer per completed write, emits a stream_playable notification
// exactly once per track, and republishes manifests according to the
// windowed/non-windowed policy.
//
// The controller is a single-threaded cooperative actor: every public
// method that reads or mutates pad or manifest state enqueues an event
// onto an internal, per-Controller dispatch goroutine and blocks for its
// result (Close, Notifications and StorageReader do not), so two calls against the same
// Controller never observe concurrent mutation, matching the "single
// owning task per sink instance" requirement.
package sink

import (
	"context"
	"errors"
	"log/slog"

	"hls-sink/internal/manifest"
	"hls-sink/internal/platform/metrics"
	"hls-sink/internal/rtime"
	"hls-sink/internal/serialize"
	"hls-sink/internal/storage"
	"hls-sink/internal/track"
)

// PadState is a pad's position in the caps -> start -> streaming -> ended
// lifecycle.
type PadState int

const (
	PadAwaitingCaps PadState = iota
	PadAwaitingStart
	PadStreaming
	PadEnded
)

func (s PadState) String() string {
	switch s {
	case PadAwaitingCaps:
		return "awaiting_caps"
	case PadAwaitingStart:
		return "awaiting_start"
	case PadStreaming:
		return "streaming"
	case PadEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned when an event arrives for a pad that
// is not in the state the event expects.
var ErrInvalidTransition = errors.New("sink: invalid pad state transition")

// Caps is the upstream pad contract's caps value (spec §6.2).
type Caps struct {
	ContentType       track.ContentType
	InitExtension     string
	FragmentExtension string
	Init              []byte
}

// Buffer is the upstream pad contract's buffer value (spec §6.2).
type Buffer struct {
	Payload     []byte
	Duration    rtime.Duration
	Independent bool
}

// NotificationKind distinguishes outbound notification records.
type NotificationKind int

const (
	StreamPlayable NotificationKind = iota
	TrackError
)

func (k NotificationKind) String() string {
	switch k {
	case StreamPlayable:
		return "stream_playable"
	case TrackError:
		return "track_error"
	default:
		return "unknown"
	}
}

// Notification is the {kind, payload} record the controller emits on an
// outbound channel to the host, per the "notification channel" design
// note.
type Notification struct {
	Kind    NotificationKind
	TrackID string
	Err     error
}

// Config holds the sink construction options from spec §6.1.
type Config struct {
	ManifestName           string
	Serializer             serialize.Serializer
	Storage                storage.Adapter
	Windowed               bool
	TargetWindowDuration   rtime.Duration // rtime.Unbounded, or zero meaning "unset" (treated as unbounded)
	TargetFragmentDuration rtime.Duration
	Logger                 *slog.Logger
	Metrics                *metrics.Metrics
	OnDemand               func(padID string)
	NotificationBufferSize int
}

type pad struct {
	state    PadState
	notified bool
	demanded bool
}

// Controller is the Sink Controller.
type Controller struct {
	cfg      Config
	manifest *manifest.Manifest
	pads     map[string]*pad
	notify   chan Notification
	log      *slog.Logger

	events chan event
	done   chan struct{}
}

type event struct {
	run    func() error
	result chan error
}

// New constructs a Controller and starts its dispatch loop. Callers must
// call Close when the sink is torn down.
func New(cfg Config) *Controller {
	if cfg.ManifestName == "" {
		cfg.ManifestName = "index"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	bufSize := cfg.NotificationBufferSize
	if bufSize <= 0 {
		bufSize = 64
	}

	c := &Controller{
		cfg:      cfg,
		manifest: manifest.New(cfg.ManifestName),
		pads:     make(map[string]*pad),
		notify:   make(chan Notification, bufSize),
		log:      cfg.Logger,
		events:   make(chan event),
		done:     make(chan struct{}),
	}
	go c.dispatchLoop()
	return c
}

// Close stops the dispatch loop. It does not flush any partial segment;
// per the concurrency model, teardown mid-stream loses unwritten data by
// design.
func (c *Controller) Close() {
	close(c.done)
}

// Notifications returns the channel the host should read stream_playable
// and track_error notifications from.
func (c *Controller) Notifications() <-chan Notification {
	return c.notify
}

func (c *Controller) dispatchLoop() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.events:
			ev.result <- ev.run()
		}
	}
}

// submit enqueues run onto the dispatch loop and blocks for its result,
// giving every public method serial access to controller state.
func (c *Controller) submit(run func() error) error {
	ev := event{run: run, result: make(chan error, 1)}
	select {
	case c.events <- ev:
	case <-c.done:
		return errors.New("sink: controller closed")
	}
	select {
	case err := <-ev.result:
		return err
	case <-c.done:
		return errors.New("sink: controller closed")
	}
}

func (c *Controller) emit(n Notification) {
	select {
	case c.notify <- n:
	default:
		c.log.Warn("notification dropped, channel full", slog.String("track_id", n.TrackID), slog.String("kind", n.Kind.String()))
	}
}

// Demanded reports whether the controller most recently issued demand
// for padID. It is false for an unknown pad, and false once a storage
// error has occurred without a subsequent successful write.
func (c *Controller) Demanded(padID string) bool {
	result := false
	_ = c.submit(func() error {
		if p, ok := c.pads[padID]; ok {
			result = p.demanded
		}
		return nil
	})
	return result
}

// PadState reports a pad's current FSM state.
func (c *Controller) PadState(padID string) (PadState, bool) {
	var state PadState
	var ok bool
	_ = c.submit(func() error {
		p, exists := c.pads[padID]
		ok = exists
		if exists {
			state = p.state
		}
		return nil
	})
	return state, ok
}

func (c *Controller) windowDuration() rtime.Duration {
	if c.cfg.TargetWindowDuration == 0 {
		return rtime.Unbounded
	}
	return c.cfg.TargetWindowDuration
}

// Caps handles caps arrival for padID: it registers a new track and
// writes its init blob. padID doubles as the track id.
func (c *Controller) Caps(ctx context.Context, padID string, caps Caps) error {
	return c.submit(func() error {
		header, err := c.manifest.AddTrack(track.Config{
			ID:                    padID,
			ContentType:           caps.ContentType,
			InitExtension:         caps.InitExtension,
			FragmentExtension:     caps.FragmentExtension,
			TargetSegmentDuration: c.cfg.TargetFragmentDuration,
			TargetWindowDuration:  c.windowDuration(),
		})
		if err != nil {
			return err
		}

		if err := c.cfg.Storage.StoreInit(ctx, header, caps.Init); err != nil {
			c.log.Error("store_init failed", slog.String("pad_id", padID), slog.String("error", err.Error()))
			c.manifest.RemoveTrack(padID)
			return err
		}

		c.pads[padID] = &pad{state: PadAwaitingStart}
		c.log.Info("pad transitioned", slog.String("pad_id", padID), slog.String("state", PadAwaitingStart.String()))
		return nil
	})
}

// StartOfStream handles stream-start for padID: it arms the pad for a
// one-time stream_playable notification, transitions to streaming, and
// issues the first unit of demand.
func (c *Controller) StartOfStream(padID string) error {
	return c.submit(func() error {
		p, ok := c.pads[padID]
		if !ok || p.state != PadAwaitingStart {
			return ErrInvalidTransition
		}
		p.state = PadStreaming
		p.demanded = true
		if c.cfg.OnDemand != nil {
			c.cfg.OnDemand(padID)
		}
		c.log.Info("pad transitioned", slog.String("pad_id", padID), slog.String("state", PadStreaming.String()))
		c.reportActiveTracks()
		return nil
	})
}

func (c *Controller) reportActiveTracks() {
	if c.cfg.Metrics == nil {
		return
	}
	n := 0
	for _, p := range c.pads {
		if p.state == PadStreaming {
			n++
		}
	}
	c.cfg.Metrics.SetActiveTracks(n)
}

// Discontinue marks padID's track for a discontinuity and writes the new
// init blob the host supplies, so that the next Write carries the
// discontinuity marker and the fresh header is already in place.
func (c *Controller) Discontinue(ctx context.Context, padID string, newInit []byte) error {
	return c.submit(func() error {
		p, ok := c.pads[padID]
		if !ok || p.state != PadStreaming {
			return ErrInvalidTransition
		}
		newHeader, err := c.manifest.DiscontinueTrack(padID)
		if err != nil {
			return err
		}
		if err := c.cfg.Storage.StoreInit(ctx, newHeader, newInit); err != nil {
			c.log.Error("store_init failed on discontinuity", slog.String("pad_id", padID), slog.String("error", err.Error()))
			return err
		}
		return nil
	})
}

// Write handles one upstream buffer on padID: it appends the fragment to
// the track, commits the resulting changeset to storage, republishes
// manifests in windowed mode, fires the pad's one-time stream_playable
// notification, and re-arms demand only if every prior step succeeded.
func (c *Controller) Write(ctx context.Context, padID string, buf Buffer) error {
	return c.submit(func() error {
		p, ok := c.pads[padID]
		if !ok || p.state != PadStreaming {
			return ErrInvalidTransition
		}
		p.demanded = false

		cs, err := c.manifest.AddChunk(padID, track.Chunk{
			Duration:    buf.Duration,
			ByteSize:    int64(len(buf.Payload)),
			Independent: buf.Independent,
			Complete:    true,
		})
		if err != nil {
			return err
		}

		for _, seg := range cs.SegmentsToAdd {
			if err := c.cfg.Storage.StoreSegment(ctx, seg.Name, buf.Payload); err != nil {
				c.log.Error("store_segment failed", slog.String("pad_id", padID), slog.String("segment", seg.Name), slog.String("error", err.Error()))
				c.emit(Notification{Kind: TrackError, TrackID: padID, Err: err})
				if c.cfg.Metrics != nil {
					c.cfg.Metrics.IncAdapterErrors()
				}
				return err
			}
			if c.cfg.Metrics != nil {
				c.cfg.Metrics.ObserveFragmentWritten(len(buf.Payload))
			}
		}

		if len(cs.SegmentsToRemove) > 0 {
			names := make([]string, len(cs.SegmentsToRemove))
			for i, seg := range cs.SegmentsToRemove {
				names[i] = seg.Name
			}
			if err := c.cfg.Storage.RemoveSegments(ctx, names); err != nil {
				c.log.Error("remove_segments failed", slog.String("pad_id", padID), slog.String("error", err.Error()))
				c.emit(Notification{Kind: TrackError, TrackID: padID, Err: err})
				if c.cfg.Metrics != nil {
					c.cfg.Metrics.IncAdapterErrors()
				}
				return err
			}
			if c.cfg.Metrics != nil {
				c.cfg.Metrics.AddSegmentsEvicted(len(names))
			}
		}

		if c.cfg.Windowed {
			if err := c.republishManifests(ctx); err != nil {
				c.emit(Notification{Kind: TrackError, TrackID: padID, Err: err})
				return err
			}
		}

		if !p.notified {
			p.notified = true
			c.emit(Notification{Kind: StreamPlayable, TrackID: padID})
			if c.cfg.Metrics != nil {
				c.cfg.Metrics.IncStreamPlayable()
			}
		}

		p.demanded = true
		if c.cfg.OnDemand != nil {
			c.cfg.OnDemand(padID)
		}
		return nil
	})
}

// EndOfStream handles end-of-stream for padID: it finishes the track and
// republishes manifests unconditionally, regardless of windowed mode.
func (c *Controller) EndOfStream(ctx context.Context, padID string) error {
	return c.submit(func() error {
		p, ok := c.pads[padID]
		if !ok || p.state != PadStreaming {
			return ErrInvalidTransition
		}
		if _, err := c.manifest.Finish(padID); err != nil {
			return err
		}
		if err := c.republishManifests(ctx); err != nil {
			return err
		}
		p.state = PadEnded
		p.demanded = false
		c.log.Info("pad transitioned", slog.String("pad_id", padID), slog.String("state", PadEnded.String()))
		c.reportActiveTracks()
		return nil
	})
}

func (c *Controller) republishManifests(ctx context.Context) error {
	out, err := c.cfg.Serializer.Serialize(c.manifest)
	if err != nil {
		return err
	}
	docs := make([]storage.NamedText, 0, 1+len(out.PerTrack))
	docs = append(docs, storage.NamedText{Name: out.Master.Name, Text: out.Master.Text})
	for _, pt := range out.PerTrack {
		docs = append(docs, storage.NamedText{Name: pt.Name, Text: pt.Text})
	}
	return c.cfg.Storage.StoreManifests(ctx, docs)
}

// StorageReader returns the configured Storage adapter as a
// storage.ManifestReader, if it implements that optional capability,
// for callers (the HTTP surface) that need to read back published
// manifest text rather than re-serialize it themselves.
func (c *Controller) StorageReader() (storage.ManifestReader, bool) {
	reader, ok := c.cfg.Storage.(storage.ManifestReader)
	return reader, ok
}

// Tracks returns a snapshot of every registered track, for tests and
// diagnostic endpoints that need to inspect track state directly. The
// call is routed through the dispatch loop so it never races with an
// in-flight mutation.
func (c *Controller) Tracks() []track.Track {
	var out []track.Track
	_ = c.submit(func() error {
		out = c.manifest.Tracks()
		return nil
	})
	return out
}

// Serialize runs the configured Serializer against the current manifest
// state, routed through the dispatch loop for the same reason as Tracks.
func (c *Controller) Serialize() (serialize.Manifests, error) {
	var out serialize.Manifests
	err := c.submit(func() error {
		var serErr error
		out, serErr = c.cfg.Serializer.Serialize(c.manifest)
		return serErr
	})
	return out, err
}
