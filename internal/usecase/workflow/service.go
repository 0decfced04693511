// Package workflow manages processing workflow versions: registration, activation,
// promotion, rollback and the history of those changes.
package workflow

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/processing"
	wf "github.com/kailas-cloud/astrocat/internal/domain/workflow"
	"github.com/kailas-cloud/astrocat/internal/metrics"
	"github.com/kailas-cloud/astrocat/internal/storage/blob"
)

// Service is the workflow registry.
type Service struct {
	store  Store
	plans  PlanPublisher
	logger *zap.Logger
	now    func() time.Time
}

// New creates a registry over the given store.
func New(store Store) *Service {
	return &Service{store: store, logger: zap.NewNop(), now: time.Now}
}

// WithPlans publishes duplication plans through p.
func (s *Service) WithPlans(p PlanPublisher) *Service {
	s.plans = p
	return s
}

// WithLogger sets the logger.
func (s *Service) WithLogger(l *zap.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ActivateRequest describes one activation.
type ActivateRequest struct {
	Key              wf.Key
	TrafficSplit     float64
	By               string
	Reason           string
	DeactivateOthers bool
	SetDefault       bool
}

// PromoteRequest derives a production version from an experimental one.
type PromoteRequest struct {
	Name                string
	ExperimentalVersion string
	NewVersion          string
	By                  string
	Reason              string
	Performance         map[string]float64
}

// Register stores a new inactive version.
func (s *Service) Register(ctx context.Context, spec wf.Spec, by string) (wf.Version, error) {
	v, err := wf.New(spec, s.now())
	if err != nil {
		return wf.Version{}, err
	}
	_, err = s.store.Apply(ctx, v.Name(), func(current []wf.Version) (wf.Change, error) {
		if _, ok := wf.Find(current, v.Key()); ok {
			return wf.Change{}, fmt.Errorf("workflow %s: %w", v.Key(), domain.ErrAlreadyExists)
		}
		return wf.Change{
			Versions: []wf.Version{v},
			History:  []wf.HistoryEntry{s.entry(v.Key(), wf.ActionRegister, by, "registered")},
		}, nil
	})
	if err != nil {
		return wf.Version{}, fmt.Errorf("register workflow: %w", err)
	}
	s.count(wf.ActionRegister, v.Type())
	return v, nil
}

// Activate makes a version active. Activating a production version always deactivates
// every other production version of the workflow; other types do so only on request.
// Re-activating an already active version with the same settings changes nothing.
func (s *Service) Activate(ctx context.Context, req ActivateRequest) (wf.Version, error) {
	if err := req.Key.Validate(); err != nil {
		return wf.Version{}, err
	}
	var activated wf.Version
	_, err := s.store.Apply(ctx, req.Key.Name, func(current []wf.Version) (wf.Change, error) {
		target, ok := wf.Find(current, req.Key)
		if !ok {
			return wf.Change{}, fmt.Errorf("workflow %s: %w", req.Key, domain.ErrNotFound)
		}
		if err := wf.ValidateSplit(req.TrafficSplit); err != nil {
			return wf.Change{}, err
		}
		now := s.now()

		siblings := activeSiblings(current, target, req.DeactivateOthers || target.Type() == processing.Production)
		defaults := defaultSiblings(current, target, req.SetDefault, siblings)
		unchanged := target.IsActive() && target.TrafficSplit() == req.TrafficSplit &&
			len(siblings) == 0 && len(defaults) == 0 && (!req.SetDefault || target.IsDefault())
		if unchanged {
			activated = target
			return wf.Change{}, nil
		}

		var change wf.Change
		reason := "superseded by " + target.Version()
		for _, v := range siblings {
			d := v.Deactivate(req.By, reason, now)
			if req.SetDefault {
				d = d.WithDefault(false)
			}
			change.Versions = append(change.Versions, d)
			change.History = append(change.History, s.entry(v.Key(), wf.ActionDeactivate, req.By, reason))
		}
		for _, v := range defaults {
			change.Versions = append(change.Versions, v.WithDefault(false))
		}

		a, err := target.Activate(req.TrafficSplit, req.By, req.Reason, now)
		if err != nil {
			return wf.Change{}, err
		}
		if req.SetDefault {
			a = a.WithDefault(true)
		}
		activated = a
		change.Versions = append(change.Versions, a)
		change.History = append(change.History, s.entry(a.Key(), wf.ActionActivate, req.By, req.Reason))
		return change, nil
	})
	if err != nil {
		return wf.Version{}, fmt.Errorf("activate workflow: %w", err)
	}
	s.count(wf.ActionActivate, req.Key.Type)
	s.logger.Info("workflow activated",
		zap.String("workflow", req.Key.String()), zap.Float64("traffic_split", req.TrafficSplit),
		zap.String("by", req.By))
	return activated, nil
}

// Deactivate stops routing work to a version. Deactivating an inactive version is a no-op.
func (s *Service) Deactivate(ctx context.Context, k wf.Key, by, reason string) (wf.Version, error) {
	var out wf.Version
	_, err := s.store.Apply(ctx, k.Name, func(current []wf.Version) (wf.Change, error) {
		v, ok := wf.Find(current, k)
		if !ok {
			return wf.Change{}, fmt.Errorf("workflow %s: %w", k, domain.ErrNotFound)
		}
		if !v.IsActive() {
			out = v
			return wf.Change{}, nil
		}
		out = v.Deactivate(by, reason, s.now())
		return wf.Change{
			Versions: []wf.Version{out},
			History:  []wf.HistoryEntry{s.entry(k, wf.ActionDeactivate, by, reason)},
		}, nil
	})
	if err != nil {
		return wf.Version{}, fmt.Errorf("deactivate workflow: %w", err)
	}
	s.count(wf.ActionDeactivate, k.Type)
	return out, nil
}

// Promote creates a new active production version from an experimental one and
// deactivates the previous production version in the same step. The experimental
// version is left as it is.
func (s *Service) Promote(ctx context.Context, req PromoteRequest) (wf.Version, error) {
	expKey := wf.Key{Name: req.Name, Version: req.ExperimentalVersion, Type: processing.Experimental}
	prodKey := wf.Key{Name: req.Name, Version: req.NewVersion, Type: processing.Production}
	if err := prodKey.Validate(); err != nil {
		return wf.Version{}, err
	}
	var promoted wf.Version
	_, err := s.store.Apply(ctx, req.Name, func(current []wf.Version) (wf.Change, error) {
		exp, ok := wf.Find(current, expKey)
		if !ok {
			return wf.Change{}, fmt.Errorf("workflow %s: %w", expKey, domain.ErrNotFound)
		}
		if _, ok := wf.Find(current, prodKey); ok {
			return wf.Change{}, fmt.Errorf("workflow %s: %w", prodKey, domain.ErrAlreadyExists)
		}
		reason := req.Reason
		if reason == "" {
			reason = "promoted from " + exp.Version()
		}
		now := s.now()
		p, err := wf.Promote(exp, req.NewVersion, req.By, reason, req.Performance, now)
		if err != nil {
			return wf.Change{}, err
		}

		var change wf.Change
		for _, v := range activeSiblings(current, p, true) {
			r := "superseded by " + p.Version()
			change.Versions = append(change.Versions, v.Deactivate(req.By, r, now))
			change.History = append(change.History, s.entry(v.Key(), wf.ActionDeactivate, req.By, r))
		}
		promoted = p
		change.Versions = append(change.Versions, p)
		change.History = append(change.History, s.entry(p.Key(), wf.ActionPromote, req.By, reason))
		return change, nil
	})
	if err != nil {
		return wf.Version{}, fmt.Errorf("promote workflow: %w", err)
	}
	s.count(wf.ActionPromote, processing.Production)
	s.logger.Info("workflow promoted",
		zap.String("from", expKey.String()), zap.String("to", prodKey.String()), zap.String("by", req.By))
	return promoted, nil
}

// Rollback reactivates a historical version at full traffic and deactivates every other
// active version of the same (name, type).
func (s *Service) Rollback(ctx context.Context, target wf.Key, by, reason string) (wf.Version, error) {
	var restored wf.Version
	_, err := s.store.Apply(ctx, target.Name, func(current []wf.Version) (wf.Change, error) {
		v, ok := wf.Find(current, target)
		if !ok {
			return wf.Change{}, fmt.Errorf("workflow %s: %w", target, domain.ErrNotFound)
		}
		now := s.now()
		var change wf.Change
		for _, o := range activeSiblings(current, v, true) {
			r := "rolled back to " + v.Version()
			change.Versions = append(change.Versions, o.Deactivate(by, r, now))
			change.History = append(change.History, s.entry(o.Key(), wf.ActionDeactivate, by, r))
		}
		a, err := v.Activate(wf.SplitFull, by, reason, now)
		if err != nil {
			return wf.Change{}, err
		}
		restored = a
		change.Versions = append(change.Versions, a)
		change.History = append(change.History, s.entry(a.Key(), wf.ActionRollback, by, reason))
		return change, nil
	})
	if err != nil {
		return wf.Version{}, fmt.Errorf("rollback workflow: %w", err)
	}
	s.count(wf.ActionRollback, target.Type)
	s.logger.Warn("workflow rolled back", zap.String("workflow", target.String()), zap.String("by", by))
	return restored, nil
}

// Duplicate plans a side-by-side run of an active experimental version against the active
// production version. The plan is recorded in the history and, when a publisher is
// configured, published for the processing workers. No processing happens here.
func (s *Service) Duplicate(
	ctx context.Context, name, expVersion string, req wf.DuplicationRequest,
) (wf.DuplicationPlan, error) {
	exp, err := s.store.Get(ctx, wf.Key{Name: name, Version: expVersion, Type: processing.Experimental})
	if err != nil {
		return wf.DuplicationPlan{}, fmt.Errorf("load experimental version: %w", err)
	}
	prod, err := s.GetActiveForProcessing(ctx, name, processing.Production)
	if err != nil {
		return wf.DuplicationPlan{}, fmt.Errorf("load production version: %w", err)
	}
	plan, err := wf.NewDuplicationPlan(exp, prod, req, s.now())
	if err != nil {
		return wf.DuplicationPlan{}, err
	}

	if s.plans != nil {
		data, err := json.Marshal(plan)
		if err != nil {
			return wf.DuplicationPlan{}, fmt.Errorf("encode plan: %w", err)
		}
		if err := s.plans.Put(ctx, blob.BucketWorkflowPlans, PlanKey(plan), data); err != nil {
			return wf.DuplicationPlan{}, fmt.Errorf("publish plan: %w", err)
		}
	}

	reason := fmt.Sprintf("duplication %s against %s: %s", plan.ID, prod.Version(), req.Hypothesis)
	_, err = s.store.Apply(ctx, name, func([]wf.Version) (wf.Change, error) {
		return wf.Change{History: []wf.HistoryEntry{s.entry(exp.Key(), wf.ActionDuplicate, req.Researcher, reason)}}, nil
	})
	if err != nil {
		return wf.DuplicationPlan{}, fmt.Errorf("record duplication: %w", err)
	}
	s.count(wf.ActionDuplicate, processing.Experimental)
	s.logger.Info("duplication planned",
		zap.String("duplication_id", plan.ID), zap.String("workflow", name),
		zap.Int("datasets", len(plan.Datasets)), zap.Time("estimated_completion", plan.EstimatedCompletion))
	return plan, nil
}

// PlanKey is the blob key of a duplication plan.
func PlanKey(p wf.DuplicationPlan) string {
	return "plans/" + p.Name + "/" + p.ID + ".json"
}

// Compare diffs the metrics of two versions of the same workflow and type.
func (s *Service) Compare(ctx context.Context, name, baseVersion, candVersion string, typ processing.Type) (wf.Comparison, error) {
	base, err := s.store.Get(ctx, wf.Key{Name: name, Version: baseVersion, Type: typ})
	if err != nil {
		return wf.Comparison{}, fmt.Errorf("load baseline: %w", err)
	}
	cand, err := s.store.Get(ctx, wf.Key{Name: name, Version: candVersion, Type: typ})
	if err != nil {
		return wf.Comparison{}, fmt.Errorf("load candidate: %w", err)
	}
	return wf.Compare(base, cand), nil
}

// GetActiveForProcessing returns the version to process with. Several active versions
// break the registry invariants; the most recently activated one is used and a warning logged.
func (s *Service) GetActiveForProcessing(ctx context.Context, name string, typ processing.Type) (wf.Version, error) {
	all, err := s.store.ListByName(ctx, name)
	if err != nil {
		return wf.Version{}, fmt.Errorf("list workflow versions: %w", err)
	}
	var ofType []wf.Version
	for _, v := range all {
		if v.Type() == typ {
			ofType = append(ofType, v)
		}
	}
	v, ambiguous, ok := wf.SelectActive(ofType)
	if !ok {
		return wf.Version{}, fmt.Errorf("no active %s version of %s: %w", typ, name, domain.ErrNotFound)
	}
	if ambiguous {
		s.logger.Warn("multiple active workflow versions",
			zap.String("workflow", name), zap.String("type", string(typ)), zap.String("chosen", v.Version()))
	}
	return v, nil
}

// RecordUsage increments the usage counter of a version.
func (s *Service) RecordUsage(ctx context.Context, k wf.Key) (int64, error) {
	n, err := s.store.IncrementUsage(ctx, k)
	if err != nil {
		return 0, fmt.Errorf("record usage: %w", err)
	}
	return n, nil
}

// Get returns one version.
func (s *Service) Get(ctx context.Context, k wf.Key) (wf.Version, error) {
	v, err := s.store.Get(ctx, k)
	if err != nil {
		return wf.Version{}, fmt.Errorf("get workflow: %w", err)
	}
	return v, nil
}

// History returns up to limit activation history entries of (name, type), newest first.
func (s *Service) History(ctx context.Context, name string, typ processing.Type, limit int) ([]wf.HistoryEntry, error) {
	h, err := s.store.History(ctx, name, typ, limit)
	if err != nil {
		return nil, fmt.Errorf("workflow history: %w", err)
	}
	return h, nil
}

// List returns every version of a workflow, newest first.
func (s *Service) List(ctx context.Context, name string) ([]wf.Version, error) {
	vs, err := s.store.ListByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list workflow versions: %w", err)
	}
	return vs, nil
}

// ListActive returns the active versions of one processing type.
func (s *Service) ListActive(ctx context.Context, typ processing.Type) ([]wf.Version, error) {
	vs, err := s.store.ListActive(ctx, typ)
	if err != nil {
		return nil, fmt.Errorf("list active workflows: %w", err)
	}
	return vs, nil
}

func (s *Service) entry(k wf.Key, a wf.Action, by, reason string) wf.HistoryEntry {
	return wf.HistoryEntry{
		Name:        k.Name,
		Version:     k.Version,
		Type:        k.Type,
		Action:      a,
		PerformedAt: s.now(),
		PerformedBy: by,
		Reason:      reason,
	}
}

func (s *Service) count(a wf.Action, typ processing.Type) {
	metrics.WorkflowActionsTotal.WithLabelValues(string(a), string(typ)).Inc()
}

// activeSiblings returns the other active versions of target's (name, type) when enabled.
func activeSiblings(current []wf.Version, target wf.Version, enabled bool) []wf.Version {
	if !enabled {
		return nil
	}
	var out []wf.Version
	for _, v := range current {
		if v.Key() != target.Key() && v.Type() == target.Type() && v.IsActive() {
			out = append(out, v)
		}
	}
	return out
}

// defaultSiblings returns the other versions of target's (name, type) that hold the
// default flag and must give it up, skipping those already being deactivated.
func defaultSiblings(current []wf.Version, target wf.Version, setDefault bool, skip []wf.Version) []wf.Version {
	if !setDefault {
		return nil
	}
	skipped := make(map[wf.Key]bool, len(skip))
	for _, v := range skip {
		skipped[v.Key()] = true
	}
	var out []wf.Version
	for _, v := range current {
		if v.Key() != target.Key() && v.Type() == target.Type() && v.IsDefault() && !skipped[v.Key()] {
			out = append(out, v)
		}
	}
	return out
}
