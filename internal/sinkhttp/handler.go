package sinkhttp

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hls-sink/internal/rtime"
	"hls-sink/internal/sink"
	"hls-sink/internal/storage"
	"hls-sink/internal/track"
)

// autoPad is the sentinel path segment a caller uses in place of a real
// pad id to ask the handler to mint one with uuid.NewString.
const autoPad = "new"

// Handler wires chi routes to a Registry of Sink Controllers, in the
// shape of the teacher's orchestrator Handler.
type Handler struct {
	registry *Registry
	log      *slog.Logger
}

// NewHandler returns a Handler serving every sink reachable through reg.
func NewHandler(reg *Registry, log *slog.Logger) *Handler {
	return &Handler{registry: reg, log: log}
}

// Routes mounts the pad lifecycle and manifest readback endpoints onto r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/sinks/{sink}", func(r chi.Router) {
		r.Route("/pads/{pad}", func(r chi.Router) {
			r.Post("/caps", h.caps)
			r.Post("/start", h.start)
			r.Post("/buffers", h.buffers)
			r.Post("/end", h.end)
		})
		r.Get("/manifests/{name}", h.manifest)
	})
}

func (h *Handler) padID(w http.ResponseWriter, r *http.Request) (string, bool) {
	padID := chi.URLParam(r, "pad")
	if padID == autoPad {
		padID = uuid.NewString()
	}
	if padID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return "", false
	}
	return padID, true
}

type capsRequest struct {
	ContentType       string `json:"content_type"`
	InitExtension     string `json:"init_extension"`
	FragmentExtension string `json:"fragment_extension"`
	Init              string `json:"init"` // base64
}

// caps handles POST /sinks/{sink}/pads/{pad}/caps.
func (h *Handler) caps(w http.ResponseWriter, r *http.Request) {
	sinkName := chi.URLParam(r, "sink")
	padID, ok := h.padID(w, r)
	if !ok {
		return
	}

	var body capsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.log.Debug("invalid caps body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	contentType := track.ContentType(strings.ToLower(body.ContentType))
	if contentType != track.ContentTypeAudio && contentType != track.ContentTypeVideo {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	init, err := base64.StdEncoding.DecodeString(body.Init)
	if err != nil {
		h.log.Debug("invalid caps init payload", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	c := h.registry.Get(sinkName)
	err = c.Caps(r.Context(), padID, sink.Caps{
		ContentType:       contentType,
		InitExtension:     body.InitExtension,
		FragmentExtension: body.FragmentExtension,
		Init:              init,
	})
	if err != nil {
		h.log.Info("caps rejected",
			slog.String("sink", sinkName), slog.String("pad_id", padID), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusConflict)
		return
	}

	w.Header().Set("Location", "/sinks/"+sinkName+"/pads/"+padID)
	w.WriteHeader(http.StatusCreated)
}

// start handles POST /sinks/{sink}/pads/{pad}/start.
func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	sinkName := chi.URLParam(r, "sink")
	padID := chi.URLParam(r, "pad")
	if padID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	c := h.registry.Get(sinkName)
	if err := c.StartOfStream(padID); err != nil {
		h.log.Info("start_of_stream rejected",
			slog.String("sink", sinkName), slog.String("pad_id", padID), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type bufferRequest struct {
	Payload         string  `json:"payload"` // base64
	DurationSeconds float64 `json:"duration_seconds"`
	Independent     bool    `json:"independent"`
}

// buffers handles POST /sinks/{sink}/pads/{pad}/buffers.
func (h *Handler) buffers(w http.ResponseWriter, r *http.Request) {
	sinkName := chi.URLParam(r, "sink")
	padID := chi.URLParam(r, "pad")
	if padID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var body bufferRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.log.Debug("invalid buffer body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	payload, err := base64.StdEncoding.DecodeString(body.Payload)
	if err != nil {
		h.log.Debug("invalid buffer payload", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	c := h.registry.Get(sinkName)
	err = c.Write(r.Context(), padID, sink.Buffer{
		Payload:     payload,
		Duration:    rtime.FromSeconds(body.DurationSeconds),
		Independent: body.Independent,
	})
	if err != nil {
		if errors.Is(err, sink.ErrInvalidTransition) {
			w.WriteHeader(http.StatusConflict)
			return
		}
		h.log.Error("write failed",
			slog.String("sink", sinkName), slog.String("pad_id", padID), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// end handles POST /sinks/{sink}/pads/{pad}/end.
func (h *Handler) end(w http.ResponseWriter, r *http.Request) {
	sinkName := chi.URLParam(r, "sink")
	padID := chi.URLParam(r, "pad")
	if padID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	c := h.registry.Get(sinkName)
	if err := c.EndOfStream(r.Context(), padID); err != nil {
		h.log.Info("end_of_stream rejected",
			slog.String("sink", sinkName), slog.String("pad_id", padID), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// manifest handles GET /sinks/{sink}/manifests/{name}, reading back
// whatever the sink's storage adapter currently holds for name rather
// than asking the controller to re-serialize, so the response reflects
// exactly what storage and playlist state agree on.
func (h *Handler) manifest(w http.ResponseWriter, r *http.Request) {
	sinkName := chi.URLParam(r, "sink")
	name := chi.URLParam(r, "name")

	c := h.registry.Get(sinkName)
	reader, ok := c.StorageReader()
	if !ok {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}

	text, err := reader.ReadManifest(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrManifestNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.log.Error("read manifest failed", slog.String("sink", sinkName), slog.String("name", name), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(name))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text))
}

func contentTypeFor(name string) string {
	switch {
	case strings.HasSuffix(name, ".m3u8"):
		return "application/vnd.apple.mpegurl"
	case strings.HasSuffix(name, ".mpd"):
		return "application/dash+xml"
	default:
		return "text/plain; charset=utf-8"
	}
}
