// Package sinkhttp exposes the Sink Controller's caps/start/buffers/end
// pad lifecycle over HTTP, generalized from the teacher's
// (stream_id, rendition) routing shape to the spec's (sink, pad) shape.
// Each distinct {sink} path segment gets its own Controller, created on
// first use from a shared factory, so one process can host many
// independently-windowed manifests.
package sinkhttp

import (
	"sync"

	"hls-sink/internal/sink"
)

// Registry lazily creates and holds one Controller per sink name.
type Registry struct {
	mu      sync.Mutex
	sinks   map[string]*sink.Controller
	factory func(sinkName string) *sink.Controller
}

// NewRegistry returns a Registry that builds a fresh Controller, via
// factory, the first time a given sink name is addressed.
func NewRegistry(factory func(sinkName string) *sink.Controller) *Registry {
	return &Registry{
		sinks:   make(map[string]*sink.Controller),
		factory: factory,
	}
}

// Get returns the Controller for sinkName, creating it if this is the
// first request to address it.
func (reg *Registry) Get(sinkName string) *sink.Controller {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	c, ok := reg.sinks[sinkName]
	if !ok {
		c = reg.factory(sinkName)
		reg.sinks[sinkName] = c
	}
	return c
}

// CloseAll stops every Controller's dispatch loop. Intended for use
// during process shutdown.
func (reg *Registry) CloseAll() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, c := range reg.sinks {
		c.Close()
	}
}
