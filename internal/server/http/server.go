// Package httpserver exposes the buyer pipeline and the account service over HTTP.
package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/bulk"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/metrics"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/service"
)

// Importer loads records from an uploaded spreadsheet.
type Importer interface {
	Import(ctx context.Context, actor uuid.UUID, fileName string, payload []byte) (bulk.Result, error)
}

// Options carries transport-level limits and probes.
type Options struct {
	// ImportMaxBytes caps the multipart body of an import.
	ImportMaxBytes int64
	// BodyMaxBytes caps JSON request bodies.
	BodyMaxBytes int64
	// Ready reports storage readiness for /healthz. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	auth     service.AuthService
	buyers   service.BuyerService
	importer Importer
	metrics  *metrics.Metrics
	log      *zap.Logger
	opts     Options
}

// New constructs the server. m may be nil.
func New(
	auth service.AuthService, buyers service.BuyerService, importer Importer,
	m *metrics.Metrics, log *zap.Logger, opts Options,
) *Server {
	if opts.ImportMaxBytes <= 0 {
		opts.ImportMaxBytes = 32 << 20
	}
	if opts.BodyMaxBytes <= 0 {
		opts.BodyMaxBytes = 1 << 20
	}
	return &Server{auth: auth, buyers: buyers, importer: importer, metrics: m, log: log, opts: opts}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests, s.recoverPanics)

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.register)
		r.Post("/auth/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Route("/buyers", func(r chi.Router) {
				r.Get("/", s.listBuyers)
				r.Post("/", s.createBuyer)
				r.Get("/export", s.exportBuyers)
				r.Post("/import", s.importBuyers)
				r.Get("/{id}", s.getBuyer)
				r.Put("/{id}", s.updateBuyer)
				r.Delete("/{id}", s.deleteBuyer)
				r.Get("/{id}/history", s.buyerHistory)
			})
		})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
