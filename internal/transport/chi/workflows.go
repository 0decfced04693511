package chi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/astrocat/internal/domain/processing"
	wf "github.com/kailas-cloud/astrocat/internal/domain/workflow"
	workflowuc "github.com/kailas-cloud/astrocat/internal/usecase/workflow"
)

// DefaultHistoryLimit bounds history listings when the caller gives no limit.
const DefaultHistoryLimit = 50

// RegisterWorkflow handles POST /api/v1/workflows.
func (s *Server) RegisterWorkflow(w http.ResponseWriter, r *http.Request) {
	var body registerWorkflowRequest
	if !s.decodeJSON(w, r, &body) {
		return
	}
	typ, err := processing.ParseType(body.ProcessingType)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	spec := wf.Spec{
		Key:                wf.Key{Name: body.Name, Version: body.Version, Type: typ},
		AlgorithmConfig:    body.AlgorithmConfig,
		ParameterOverrides: body.ParameterOverrides,
		PerformanceMetrics: body.PerformanceMetrics,
		QualityMetrics:     body.QualityMetrics,
	}
	for _, d := range body.Dependencies {
		spec.Dependencies = append(spec.Dependencies, wf.Dependency{Name: d.Name, Version: d.Version, Optional: d.Optional})
	}

	v, err := s.svc.Workflows.Register(r.Context(), spec, body.By)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, versionToResponse(v))
}

// optionalType binds ?processingType=, empty when absent.
func optionalType(r *http.Request) (processing.Type, error) {
	var raw string
	if err := bindQuery(r, "processingType", false, &raw); err != nil {
		return "", err
	}
	if raw == "" {
		return "", nil
	}
	return processing.ParseType(raw)
}

// requiredType binds ?processingType=, defaulting to production.
func requiredType(r *http.Request) (processing.Type, error) {
	typ, err := optionalType(r)
	if err != nil || typ != "" {
		return typ, err
	}
	return processing.Production, nil
}

// pathKey reads the {name}/versions/{version}/{type} route parameters.
func pathKey(r *http.Request) (wf.Key, error) {
	typ, err := processing.ParseType(chi.URLParam(r, "type"))
	if err != nil {
		return wf.Key{}, err
	}
	return wf.Key{Name: chi.URLParam(r, "name"), Version: chi.URLParam(r, "version"), Type: typ}, nil
}

// ListActiveWorkflows handles GET /api/v1/workflows/active.
func (s *Server) ListActiveWorkflows(w http.ResponseWriter, r *http.Request) {
	typ, err := optionalType(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	vs, err := s.svc.Workflows.ListActive(r.Context(), typ)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": versionsToResponse(vs)})
}

// ListWorkflowVersions handles GET /api/v1/workflows/{name}.
func (s *Server) ListWorkflowVersions(w http.ResponseWriter, r *http.Request) {
	vs, err := s.svc.Workflows.List(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": versionsToResponse(vs)})
}

// GetActiveWorkflow handles GET /api/v1/workflows/{name}/active.
func (s *Server) GetActiveWorkflow(w http.ResponseWriter, r *http.Request) {
	typ, err := requiredType(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	v, err := s.svc.Workflows.GetActiveForProcessing(r.Context(), chi.URLParam(r, "name"), typ)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, versionToResponse(v))
}

// GetWorkflowHistory handles GET /api/v1/workflows/{name}/history.
func (s *Server) GetWorkflowHistory(w http.ResponseWriter, r *http.Request) {
	typ, err := requiredType(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	limit := DefaultHistoryLimit
	if err := bindQuery(r, "limit", false, &limit); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	h, err := s.svc.Workflows.History(r.Context(), chi.URLParam(r, "name"), typ, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": historyToResponse(h)})
}

// CompareWorkflows handles GET /api/v1/workflows/{name}/compare?baseline=&candidate=.
func (s *Server) CompareWorkflows(w http.ResponseWriter, r *http.Request) {
	var base, cand string
	if err := bindQuery(r, "baseline", true, &base); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if err := bindQuery(r, "candidate", true, &cand); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	typ, err := requiredType(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	c, err := s.svc.Workflows.Compare(r.Context(), chi.URLParam(r, "name"), base, cand, typ)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comparisonToResponse(c))
}

// PromoteWorkflow handles POST /api/v1/workflows/{name}/promote.
func (s *Server) PromoteWorkflow(w http.ResponseWriter, r *http.Request) {
	var body promoteRequest
	if !s.decodeJSON(w, r, &body) {
		return
	}
	v, err := s.svc.Workflows.Promote(r.Context(), workflowuc.PromoteRequest{
		Name:                chi.URLParam(r, "name"),
		ExperimentalVersion: body.ExperimentalVersion,
		NewVersion:          body.NewVersion,
		By:                  body.By,
		Reason:              body.Reason,
		Performance:         body.Performance,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, versionToResponse(v))
}

// DuplicateWorkflow handles POST /api/v1/workflows/{name}/duplicate.
func (s *Server) DuplicateWorkflow(w http.ResponseWriter, r *http.Request) {
	var body duplicateRequest
	if !s.decodeJSON(w, r, &body) {
		return
	}
	plan, err := s.svc.Workflows.Duplicate(r.Context(), chi.URLParam(r, "name"), body.ExperimentalVersion, wf.DuplicationRequest{
		Datasets:   body.Datasets,
		Researcher: body.Researcher,
		Hypothesis: body.Hypothesis,
		Priority:   body.Priority,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, plan)
}

// ActivateWorkflow handles POST /api/v1/workflows/{name}/versions/{version}/{type}/activate.
// An omitted traffic split activates at full traffic.
func (s *Server) ActivateWorkflow(w http.ResponseWriter, r *http.Request) {
	k, err := pathKey(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	var body activateRequest
	if r.ContentLength != 0 && !s.decodeJSON(w, r, &body) {
		return
	}
	split := wf.SplitFull
	if body.TrafficSplit != nil {
		split = *body.TrafficSplit
	}
	v, err := s.svc.Workflows.Activate(r.Context(), workflowuc.ActivateRequest{
		Key:              k,
		TrafficSplit:     split,
		By:               body.By,
		Reason:           body.Reason,
		DeactivateOthers: body.DeactivateOthers,
		SetDefault:       body.SetDefault,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, versionToResponse(v))
}

// DeactivateWorkflow handles POST /api/v1/workflows/{name}/versions/{version}/{type}/deactivate.
func (s *Server) DeactivateWorkflow(w http.ResponseWriter, r *http.Request) {
	s.actOnVersion(w, r, s.svc.Workflows.Deactivate)
}

// RollbackWorkflow handles POST /api/v1/workflows/{name}/versions/{version}/{type}/rollback.
func (s *Server) RollbackWorkflow(w http.ResponseWriter, r *http.Request) {
	s.actOnVersion(w, r, s.svc.Workflows.Rollback)
}

func (s *Server) actOnVersion(
	w http.ResponseWriter, r *http.Request,
	act func(ctx context.Context, k wf.Key, by, reason string) (wf.Version, error),
) {
	k, err := pathKey(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	var body actorRequest
	if r.ContentLength != 0 && !s.decodeJSON(w, r, &body) {
		return
	}
	v, err := act(r.Context(), k, body.By, body.Reason)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, versionToResponse(v))
}
