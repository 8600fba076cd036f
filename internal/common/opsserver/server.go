// Package opsserver serves the health, readiness and metrics endpoints of the
// worker manager along with read-only form previews.
package opsserver

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/ellaouzi/fos-app-sub002/internal/common/errors"
	"github.com/ellaouzi/fos-app-sub002/internal/common/logger"
	formrender "github.com/ellaouzi/fos-app-sub002/internal/forms/render"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/schema"
)

// CheckFunc checks one dependency for /ready.
type CheckFunc func(ctx context.Context) error

type Options struct {
	Address      string
	Loader       *schema.Loader
	Checks       map[string]CheckFunc
	CheckTimeout time.Duration
	// PreviewAction is the form action written into previews.
	PreviewAction string
}

type Server struct {
	opts   Options
	router chi.Router
	http   *http.Server
	logger logger.Logger
}

func New(opts Options, log logger.Logger) *Server {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 2 * time.Second
	}
	if opts.PreviewAction == "" {
		opts.PreviewAction = "/demandes"
	}
	s := &Server{
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"component": "ops-server"}),
	}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:              opts.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/forms/{key}", func(r chi.Router) {
		r.Get("/", s.formSchema)
		r.Get("/preview", s.formPreview)
	})
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens in the background. Listener errors other than a clean
// shutdown are logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info("ops server listening", map[string]interface{}{"address": s.opts.Address})
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ops server stopped", map[string]interface{}{"error": err.Error()})
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.CheckTimeout)
	defer cancel()

	names := make([]string, 0, len(s.opts.Checks))
	for name := range s.opts.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := readiness{Status: "ready", Checks: make(map[string]string, len(names))}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			result := "ok"
			if err := check(ctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			out.Checks[name] = result
			mu.Unlock()
		}(name, s.opts.Checks[name])
	}
	wg.Wait()

	for _, name := range names {
		if out.Checks[name] != "ok" {
			out.Status = "unavailable"
			s.logger.Warn("readiness check failed", map[string]interface{}{
				"check": name,
				"error": out.Checks[name],
			})
		}
	}
	if out.Status != "ready" {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, out)
}

type formResponse struct {
	Schema *schema.FormSchema      `json:"schema"`
	Fields []formrender.Descriptor `json:"fields"`
}

func (s *Server) formSchema(w http.ResponseWriter, r *http.Request) {
	form, sch, ok := s.buildForm(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, formResponse{Schema: sch, Fields: form.Describe()})
}

// formPreview renders the blank form. Query parameters prefill it.
func (s *Server) formPreview(w http.ResponseWriter, r *http.Request) {
	form, _, ok := s.buildForm(w, r)
	if !ok {
		return
	}
	if q := r.URL.Query(); len(q) > 0 {
		form.Bind(q)
	}

	var buf bytes.Buffer
	if err := form.Render(&buf, s.opts.PreviewAction); err != nil {
		s.fail(w, r, err)
		return
	}
	render.HTML(w, r, buf.String())
}

func (s *Server) buildForm(w http.ResponseWriter, r *http.Request) (*formrender.Form, *schema.FormSchema, bool) {
	if s.opts.Loader == nil {
		s.fail(w, r, apperrors.NewSchemaNotFoundError(chi.URLParam(r, "key")))
		return nil, nil, false
	}
	sch, err := s.opts.Loader.Load(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.fail(w, r, err)
		return nil, nil, false
	}
	form, err := formrender.Build(sch, nil)
	if err != nil {
		s.fail(w, r, err)
		return nil, nil, false
	}
	return form, sch, true
}

type errorResponse struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := apperrors.Normalize(err)
	status := http.StatusInternalServerError
	switch stdErr.Code {
	case apperrors.ErrCodeSchemaNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeSchemaMalformed, apperrors.ErrCodeUnsupportedFieldType:
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("ops request failed", map[string]interface{}{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Code: stdErr.Code, Message: stdErr.Message})
}
