// Package chi is the HTTP adapter: routing, request binding and the mapping of
// domain errors onto status codes.
package chi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/kailas-cloud/astrocat/internal/domain"
	logpkg "github.com/kailas-cloud/astrocat/internal/logger"
	"github.com/kailas-cloud/astrocat/internal/metrics"
	healthuc "github.com/kailas-cloud/astrocat/internal/usecase/health"
)

// StatusClientClosedRequest reports a request abandoned by its caller.
const StatusClientClosedRequest = 499

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes = 32 << 20

// ErrorCode is the machine-readable error kind of a response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest          ErrorCode = "bad_request"
	CodeInvalidArgument     ErrorCode = "invalid_argument"
	CodeNotFound            ErrorCode = "not_found"
	CodeAlreadyExists       ErrorCode = "already_exists"
	CodeReferenced          ErrorCode = "referenced"
	CodeConstraintViolation ErrorCode = "constraint_violation"
	CodeStorageUnavailable  ErrorCode = "storage_unavailable"
	CodeCancelled           ErrorCode = "cancelled"
	CodeNotConfigured       ErrorCode = "not_configured"
	CodeInternal            ErrorCode = "internal_error"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Services are the use cases behind the routes. Nil optional services disable their routes.
type Services struct {
	Catalog       Catalog
	CrossMatch    CrossMatcher
	Ingest        Ingester
	Variability   VariabilityAnalyzer
	Quality       QualityAssessor
	Observations  Observations
	Workflows     Workflows
	Intermediates Intermediates // optional, needs a blob store
	Health        HealthChecker
}

// Server is the astrocat HTTP API.
type Server struct {
	svc           Services
	logger        *zap.Logger
	maxBodyBytes  int64
	now           func() time.Time
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(svc Services, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{svc: svc, logger: logger, maxBodyBytes: DefaultMaxBodyBytes, now: time.Now}
	s.errorHandlers = []errorHandler{
		invalidArgumentHandler,
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, CodeAlreadyExists),
		sentinelHandler(domain.ErrReferenced, http.StatusConflict, CodeReferenced),
		sentinelHandler(domain.ErrCancelled, StatusClientClosedRequest, CodeCancelled),
		sentinelHandler(domain.ErrStorageUnavailable, http.StatusServiceUnavailable, CodeStorageUnavailable),
	}
	return s
}

// WithMaxBodyBytes bounds request bodies.
func (s *Server) WithMaxBodyBytes(n int64) *Server {
	if n > 0 {
		s.maxBodyBytes = n
	}
	return s
}

// WithClock overrides the time source.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// Router builds the chi router with the middleware chain and every route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/statistics", s.GetStatistics)

		r.Route("/objects", func(r chi.Router) {
			r.Get("/cone", s.ConeSearch)
			r.Get("/box", s.BoxSearch)
			r.Get("/nearest", s.FindNearest)
			r.Get("/high-proper-motion", s.FindHighProperMotion)
			r.Get("/nearby", s.FindNearby)
			r.Get("/magnitude", s.FindByMagnitude)
			r.Get("/by-type", s.FindByType)
			r.Get("/follow-up", s.FindNeedingFollowUp)
			r.Delete("/transients", s.CleanupTransients)
			r.Post("/bulk", s.BulkImport)
			r.Route("/{objectId}", func(r chi.Router) {
				r.Get("/", s.GetObject)
				r.Put("/", s.PutObject)
				r.Delete("/", s.DeleteObject)
				r.Get("/crossmatches", s.ListCrossMatches)
				r.Get("/lightcurve", s.GetLightCurve)
				r.Post("/variability", s.AnalyzeVariability)
			})
		})

		r.Post("/crossmatch", s.CrossMatch)
		r.Post("/ingest", s.Ingest)
		r.Get("/quality", s.AssessQuality)
		r.Post("/quality", s.AssessQuality)

		r.Route("/observations", func(r chi.Router) {
			r.Post("/", s.CreateObservation)
			r.Get("/", s.ListObservations)
			r.Get("/{observationId}", s.GetObservation)
			r.Delete("/{observationId}", s.DeleteObservation)
			r.Post("/{observationId}/status", s.TransitionObservation)
			r.Post("/{observationId}/detections", s.AddDetections)
		})

		r.Route("/workflows", func(r chi.Router) {
			r.Post("/", s.RegisterWorkflow)
			r.Get("/active", s.ListActiveWorkflows)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.ListWorkflowVersions)
				r.Get("/active", s.GetActiveWorkflow)
				r.Get("/history", s.GetWorkflowHistory)
				r.Get("/compare", s.CompareWorkflows)
				r.Post("/promote", s.PromoteWorkflow)
				r.Post("/duplicate", s.DuplicateWorkflow)
				r.Post("/versions/{version}/{type}/activate", s.ActivateWorkflow)
				r.Post("/versions/{version}/{type}/deactivate", s.DeactivateWorkflow)
				r.Post("/versions/{version}/{type}/rollback", s.RollbackWorkflow)
			})
		})

		r.Route("/sessions/{sessionId}", func(r chi.Router) {
			r.Get("/", s.ListSession)
			r.Delete("/", s.DeleteSession)
			r.Put("/{stepType}/{filename}", s.PutIntermediate)
		})
		r.Get("/intermediates", s.GetIntermediate)
	})
	return r
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.svc.Health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Version: report.Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// decodeJSON reads a bounded JSON body, rejecting unknown fields.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// bindQuery binds a form-style query parameter the way generated OpenAPI servers do.
func bindQuery(r *http.Request, name string, required bool, dest any) error {
	if err := runtime.BindQueryParameter("form", true, required, name, r.URL.Query(), dest); err != nil {
		if required && !r.URL.Query().Has(name) {
			return domain.NewInvalidArgument(name, "is required")
		}
		return domain.NewInvalidArgument(name, "is malformed")
	}
	return nil
}

// invalidArgumentHandler reports the offending field; validation messages carry no internals.
func invalidArgumentHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrInvalidArgument) {
		return false
	}
	msg := domain.ErrInvalidArgument.Error()
	var iae *domain.InvalidArgumentError
	if errors.As(err, &iae) {
		msg = iae.Error()
	}
	writeError(w, http.StatusBadRequest, CodeInvalidArgument, msg)
	return true
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	if errors.Is(err, domain.ErrConstraintViolation) {
		log.Error("registry invariant breached", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeConstraintViolation, domain.ErrConstraintViolation.Error())
		return
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}

// safeMessage is the client-facing text of a row-level failure.
func safeMessage(err error) string {
	var iae *domain.InvalidArgumentError
	if errors.As(err, &iae) {
		return iae.Error()
	}
	for _, s := range []error{
		domain.ErrInvalidArgument, domain.ErrNotFound, domain.ErrAlreadyExists, domain.ErrReferenced,
		domain.ErrStorageUnavailable, domain.ErrCancelled, domain.ErrConstraintViolation,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func notConfigured(w http.ResponseWriter, feature string) {
	writeError(w, http.StatusServiceUnavailable, CodeNotConfigured, feature+" is not configured")
}
