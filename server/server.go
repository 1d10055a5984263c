package server

import (
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"tml-rank-card/config"
	"tml-rank-card/fetcher"
	"tml-rank-card/models"
	"tml-rank-card/parser"
	"tml-rank-card/pipeline"
	"tml-rank-card/publisher"
	"tml-rank-card/render"
	"tml-rank-card/selector"

	"github.com/rs/zerolog/log"
)

// Runner is the part of the pipeline the HTTP handlers use
type Runner interface {
	Run(ctx context.Context, id string) (*pipeline.Result, error)
	Records(ctx context.Context, id string) (models.RecordSet, error)
	RenderCardColor(ctx context.Context, id string, col color.Color) (*models.Artifact, error)
	Discard(art *models.Artifact)
}

// Options configures the listener
type Options struct {
	Addr         string
	CertPath     string // Both cert and key enable HTTPS
	KeyPath      string
	ArtifactsDir string // Served under /artifacts/ when set
}

// Server exposes the card pipeline over HTTP
type Server struct {
	runner Runner
	opts   Options
	mux    *http.ServeMux
}

// New creates a new Server instance
func New(runner Runner, opts Options) *Server {
	s := &Server{
		runner: runner,
		opts:   opts,
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /api", s.handleCard)
	s.mux.HandleFunc("GET /api/records", s.handleRecords)
	s.mux.HandleFunc("GET /card.png", s.handlePNG)
	if opts.ArtifactsDir != "" {
		s.mux.Handle("GET "+publisher.ArtifactsPath, http.StripPrefix(publisher.ArtifactsPath, noListing(http.FileServer(http.Dir(opts.ArtifactsDir)))))
	}
	return s
}

// Handler returns the routed handler with request logging
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if s.opts.CertPath != "" && s.opts.KeyPath != "" {
			log.Info().Str("addr", s.opts.Addr).Msg("Listening (HTTPS)")
			errCh <- srv.ListenAndServeTLS(s.opts.CertPath, s.opts.KeyPath)
			return
		}
		log.Info().Str("addr", s.opts.Addr).Msg("Listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// handleCard renders and publishes a card, then redirects to it
func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	id, err := identifierFromBody(w, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	res, err := s.runner.Run(r.Context(), id)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	http.Redirect(w, r, res.URL, http.StatusSeeOther)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.runner.Records(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	if records == nil {
		records = models.RecordSet{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handlePNG renders the card and returns the bitmap without publishing it.
// An optional text_color query overrides the configured color.
func (s *Server) handlePNG(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	art, err := s.runner.RenderCardColor(r.Context(), q.Get("id"), textColorOverride(q.Get("text_color")))
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	defer s.runner.Discard(art)

	data, err := os.ReadFile(art.Path)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, &render.IOError{Path: art.Path, Err: err})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Warn().Err(err).Msg("Failed to write card")
	}
}

// textColorOverride parses a requested text color; bad or missing values mean the default
func textColorOverride(s string) color.Color {
	if s == "" {
		return nil
	}
	col, err := config.ParseHexColor(s)
	if err != nil {
		log.Debug().Err(err).Str("text_color", s).Msg("Ignoring invalid text color")
		return nil
	}
	return col
}

// identifierFromBody reads "str" (or "id") from a form or JSON body
func identifierFromBody(w http.ResponseWriter, r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body struct {
			Str string `json:"str"`
			ID  string `json:"id"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
			return "", errors.New("invalid JSON body")
		}
		if body.Str != "" {
			return body.Str, nil
		}
		return body.ID, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", errors.New("invalid form body")
	}
	if v := r.PostForm.Get("str"); v != "" {
		return v, nil
	}
	if v := r.PostForm.Get("id"); v != "" {
		return v, nil
	}
	return r.URL.Query().Get("id"), nil
}

// statusFor maps pipeline failures to HTTP status codes
func statusFor(err error) int {
	var (
		fetchErr   *fetcher.FetchError
		parseErr   *parser.ParseError
		renderErr  *render.RenderError
		ioErr      *render.IOError
		publishErr *publisher.PublishError
	)

	switch {
	case errors.Is(err, fetcher.ErrInvalidIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, selector.ErrNoRecords):
		return http.StatusNotFound
	case errors.As(err, &fetchErr):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &publishErr):
		return http.StatusBadGateway
	case errors.As(err, &renderErr), errors.As(err, &ioErr):
		return http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	log.Error().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("Request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

// noListing hides directory indexes of the artifact directory
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("HTTP request")
	})
}
