package api

import (
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pbaille/folksonomy/internal/cloud"
	"github.com/pbaille/folksonomy/internal/config"
	"github.com/pbaille/folksonomy/internal/corpus"
	"github.com/pbaille/folksonomy/internal/domain"
	"github.com/pbaille/folksonomy/internal/engine"
	"github.com/pbaille/folksonomy/internal/related"
	"github.com/pbaille/folksonomy/internal/render"
)

// Server exposes the folksonomy engine over HTTP
type Server struct {
	engine *engine.Engine
	render *render.Renderer
	addr   string
	logger *slog.Logger
}

// New creates a new API server
func New(e *engine.Engine, r *render.Renderer, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine: e,
		render: r,
		addr:   addr,
		logger: logger.With(slog.String("component", "api")),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.health)
	r.Post("/rebuild", s.rebuild)

	// Tags
	r.Get("/tags", s.listTags)
	r.Route("/tags/{tag}", func(r chi.Router) {
		r.Get("/", s.tagEntries)
		r.Get("/related", s.tagRelated)
	})

	// Entries are addressed by their path below the data directory.
	r.Get("/entries/*", s.entryRelated)

	// Clouds
	r.Get("/cloud", s.cloud)
	r.Get("/cloud/popular", s.popularCloud)

	return withCORS(r)
}

// Run starts the HTTP server
func (s *Server) Run() error {
	s.logger.Info("starting server", slog.String("addr", s.addr))
	return http.ListenAndServe(s.addr, s.Handler())
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Duration("took", time.Since(start)))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if snap := s.engine.Snapshot(); snap != nil {
		resp["snapshot"] = snap.ID
		resp["built_at"] = snap.BuiltAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) rebuild(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Rebuild()
	if errors.Is(err, config.ErrNoCachePath) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot": snap.ID,
		"tags":     snap.Matrix.Len(),
		"entries":  snap.EntryCount(),
	})
}

// TagSummary is one row of the tag listing
type TagSummary struct {
	Name     string `json:"name"`
	Untagged bool   `json:"untagged,omitempty"`
	Count    int    `json:"count"`
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, engine.ErrNotOpen.Error())
		return
	}

	tags := make([]TagSummary, 0, snap.Matrix.Len())
	for _, t := range snap.Matrix.Tags() {
		tags = append(tags, TagSummary{
			Name:     t.Name,
			Untagged: !t.Rankable(),
			Count:    len(snap.Index.Entries[t]),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tags": tags,
		"min":  snap.Index.Min,
		"max":  snap.Index.Max,
	})
}

// EntrySummary is an entry as listed on a tag page
type EntrySummary struct {
	ID      domain.EntryID `json:"id"`
	Title   string         `json:"title"`
	Tags    []string       `json:"tags"`
	ModTime time.Time      `json:"mod_time"`
}

func (s *Server) tagEntries(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")

	entries, ok := s.engine.EntriesForTag(tag)
	if !ok {
		writeError(w, http.StatusNotFound, "tag not found")
		return
	}

	out := make([]EntrySummary, len(entries))
	for i, e := range entries {
		out[i] = EntrySummary{ID: e.ID, Title: e.Title, Tags: e.Tags, ModTime: e.ModTime}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tag":     tag,
		"entries": out,
	})
}

func (s *Server) tagRelated(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")

	rel := s.engine.RelatedToTag(tag)
	if rel == nil {
		rel = []related.TagCount{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tag":     tag,
		"related": rel,
	})
}

// EntryResponse carries the related tags and stories of one entry, and the
// rendered fragments when format=html is requested.
type EntryResponse struct {
	Entry   *domain.Entry   `json:"entry"`
	Tags    []domain.Tag    `json:"related_tags"`
	Stories []related.Story `json:"related_stories"`

	StoryTags      template.HTML `json:"story_tags,omitempty"`
	RSSCategories  template.HTML `json:"rss_categories,omitempty"`
	RelatedTags    template.HTML `json:"related_tags_html,omitempty"`
	RelatedStories template.HTML `json:"related_stories_html,omitempty"`
}

func (s *Server) entryRelated(w http.ResponseWriter, r *http.Request) {
	id := domain.EntryID(chi.URLParam(r, "*"))

	rel, err := s.engine.Related(id)
	if errors.Is(err, corpus.ErrEntryNotFound) {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	if errors.Is(err, engine.ErrNotOpen) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := EntryResponse{Entry: rel.Entry, Tags: rel.Tags, Stories: rel.Stories}
	if resp.Tags == nil {
		resp.Tags = []domain.Tag{}
	}

	if wantHTML(r) {
		if err := s.renderEntry(&resp); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) renderEntry(resp *EntryResponse) error {
	var err error
	if resp.StoryTags, err = s.render.StoryTags(resp.Entry.Tags); err != nil {
		return err
	}
	if resp.RSSCategories, err = s.render.RSSCategories(resp.Entry.Tags); err != nil {
		return err
	}
	if resp.RelatedTags, err = s.render.RelatedTags(resp.Tags); err != nil {
		return err
	}
	resp.RelatedStories, err = s.render.RelatedStories(resp.Stories)
	return err
}

func (s *Server) cloud(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, engine.ErrNotOpen.Error())
		return
	}
	s.writeCloud(w, r, snap.Cloud)
}

func (s *Server) popularCloud(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, engine.ErrNotOpen.Error())
		return
	}
	s.writeCloud(w, r, snap.Popular)
}

func (s *Server) writeCloud(w http.ResponseWriter, r *http.Request, c cloud.Cloud) {
	if wantHTML(r) {
		out, err := s.render.Cloud(c)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(out))
		return
	}

	if c == nil {
		c = cloud.Cloud{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cloud": c})
}

func wantHTML(r *http.Request) bool {
	return r.URL.Query().Get("format") == "html"
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
