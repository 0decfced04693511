// Package workflow defines versioned processing workflows and the activation
// invariants the registry enforces over them.
package workflow

import (
	"fmt"
	"maps"
	"regexp"
	"time"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/processing"
)

// Traffic split values an active version may carry.
const (
	SplitOff  = 0.0
	SplitFull = 100.0
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Key identifies a workflow version.
type Key struct {
	Name    string
	Version string
	Type    processing.Type
}

func (k Key) String() string {
	return fmt.Sprintf("%s_%s_%s", k.Name, k.Version, k.Type)
}

// Validate checks name, version and type.
func (k Key) Validate() error {
	if k.Name == "" || len(k.Name) > 128 || !nameRegex.MatchString(k.Name) {
		return domain.NewInvalidArgument("name", "must be 1-128 chars of [a-zA-Z0-9._-]")
	}
	if k.Version == "" || len(k.Version) > 64 || !nameRegex.MatchString(k.Version) {
		return domain.NewInvalidArgument("version", "must be 1-64 chars of [a-zA-Z0-9._-]")
	}
	if !k.Type.IsValid() {
		return domain.NewInvalidArgument("processingType", fmt.Sprintf("unknown type %q", k.Type))
	}
	return nil
}

// Dependency names another workflow a version needs.
type Dependency struct {
	Name     string
	Version  string
	Optional bool
}

// Spec describes a version to register.
type Spec struct {
	Key
	AlgorithmConfig    map[string]any
	ParameterOverrides map[string]any
	PerformanceMetrics map[string]float64
	QualityMetrics     map[string]float64
	Dependencies       []Dependency
}

// Version is the workflow version aggregate.
// Mutators return an updated copy; the receiver is left untouched.
type Version struct {
	key                Key
	active             bool
	isDefault          bool
	trafficSplit       float64
	algorithmConfig    map[string]any
	parameterOverrides map[string]any
	performanceMetrics map[string]float64
	qualityMetrics     map[string]float64
	dependencies       []Dependency
	usageCount         int64
	createdAt          time.Time
	activatedAt        time.Time
	deactivatedAt      time.Time
	activatedBy        string
	reason             string
}

// New validates a spec and creates an inactive version.
func New(s Spec, now time.Time) (Version, error) {
	if err := s.Key.Validate(); err != nil {
		return Version{}, err
	}
	for _, d := range s.Dependencies {
		if d.Name == "" || d.Version == "" {
			return Version{}, domain.NewInvalidArgument("dependencies", "name and version are required")
		}
		if d.Name == s.Name && d.Version == s.Version {
			return Version{}, domain.NewInvalidArgument("dependencies", "version cannot depend on itself")
		}
	}
	return Version{
		key:                s.Key,
		algorithmConfig:    maps.Clone(s.AlgorithmConfig),
		parameterOverrides: maps.Clone(s.ParameterOverrides),
		performanceMetrics: maps.Clone(s.PerformanceMetrics),
		qualityMetrics:     maps.Clone(s.QualityMetrics),
		dependencies:       append([]Dependency(nil), s.Dependencies...),
		createdAt:          now.UTC(),
	}, nil
}

// State is the mutable part of a stored version.
type State struct {
	Active        bool
	Default       bool
	TrafficSplit  float64
	UsageCount    int64
	CreatedAt     time.Time
	ActivatedAt   time.Time
	DeactivatedAt time.Time
	ActivatedBy   string
	Reason        string
}

// Reconstruct restores a version from storage without validation.
func Reconstruct(s Spec, st State) Version {
	return Version{
		key:                s.Key,
		active:             st.Active,
		isDefault:          st.Default,
		trafficSplit:       st.TrafficSplit,
		algorithmConfig:    s.AlgorithmConfig,
		parameterOverrides: s.ParameterOverrides,
		performanceMetrics: s.PerformanceMetrics,
		qualityMetrics:     s.QualityMetrics,
		dependencies:       s.Dependencies,
		usageCount:         st.UsageCount,
		createdAt:          st.CreatedAt,
		activatedAt:        st.ActivatedAt,
		deactivatedAt:      st.DeactivatedAt,
		activatedBy:        st.ActivatedBy,
		reason:             st.Reason,
	}
}

// Key returns the identifying triple.
func (v Version) Key() Key { return v.key }

// Name returns the workflow name.
func (v Version) Name() string { return v.key.Name }

// Version returns the version label.
func (v Version) Version() string { return v.key.Version }

// Type returns the processing type.
func (v Version) Type() processing.Type { return v.key.Type }

// IsActive reports whether the version serves processing.
func (v Version) IsActive() bool { return v.active }

// IsDefault reports whether the version is the default of its (name, type).
func (v Version) IsDefault() bool { return v.isDefault }

// TrafficSplit returns the percentage of traffic routed to the version.
func (v Version) TrafficSplit() float64 { return v.trafficSplit }

// AlgorithmConfig returns a copy of the algorithm configuration.
func (v Version) AlgorithmConfig() map[string]any { return maps.Clone(v.algorithmConfig) }

// ParameterOverrides returns a copy of the parameter overrides.
func (v Version) ParameterOverrides() map[string]any { return maps.Clone(v.parameterOverrides) }

// PerformanceMetrics returns a copy of the performance metrics.
func (v Version) PerformanceMetrics() map[string]float64 { return maps.Clone(v.performanceMetrics) }

// QualityMetrics returns a copy of the quality metrics.
func (v Version) QualityMetrics() map[string]float64 { return maps.Clone(v.qualityMetrics) }

// Dependencies returns a copy of the declared dependencies.
func (v Version) Dependencies() []Dependency { return append([]Dependency(nil), v.dependencies...) }

// UsageCount returns how many processing runs used the version.
func (v Version) UsageCount() int64 { return v.usageCount }

// CreatedAt returns the registration time.
func (v Version) CreatedAt() time.Time { return v.createdAt }

// ActivatedAt returns the last activation time (zero if never).
func (v Version) ActivatedAt() time.Time { return v.activatedAt }

// DeactivatedAt returns the last deactivation time (zero if never).
func (v Version) DeactivatedAt() time.Time { return v.deactivatedAt }

// ActivatedBy returns who last changed the activation state.
func (v Version) ActivatedBy() string { return v.activatedBy }

// Reason returns the reason recorded with the last state change.
func (v Version) Reason() string { return v.reason }

// State returns the mutable state for persistence.
func (v Version) State() State {
	return State{
		Active:        v.active,
		Default:       v.isDefault,
		TrafficSplit:  v.trafficSplit,
		UsageCount:    v.usageCount,
		CreatedAt:     v.createdAt,
		ActivatedAt:   v.activatedAt,
		DeactivatedAt: v.deactivatedAt,
		ActivatedBy:   v.activatedBy,
		Reason:        v.reason,
	}
}

// Spec returns the immutable part for persistence.
func (v Version) Spec() Spec {
	return Spec{
		Key:                v.key,
		AlgorithmConfig:    v.AlgorithmConfig(),
		ParameterOverrides: v.ParameterOverrides(),
		PerformanceMetrics: v.PerformanceMetrics(),
		QualityMetrics:     v.QualityMetrics(),
		Dependencies:       v.Dependencies(),
	}
}

// ValidateSplit rejects any split other than 0 or 100.
func ValidateSplit(split float64) error {
	if split != SplitOff && split != SplitFull {
		return domain.NewInvalidArgument("trafficSplit",
			fmt.Sprintf("%g is not allowed, processing is deterministic: use 0 or 100", split))
	}
	return nil
}

// Activate marks the version active at the given split.
func (v Version) Activate(split float64, by, reason string, now time.Time) (Version, error) {
	if err := ValidateSplit(split); err != nil {
		return Version{}, err
	}
	v.active = true
	v.trafficSplit = split
	v.activatedAt = now.UTC()
	v.activatedBy = by
	v.reason = reason
	return v, nil
}

// Deactivate marks the version inactive and drops its traffic.
func (v Version) Deactivate(by, reason string, now time.Time) Version {
	v.active = false
	v.trafficSplit = SplitOff
	v.deactivatedAt = now.UTC()
	if by != "" {
		v.activatedBy = by
	}
	if reason != "" {
		v.reason = reason
	}
	return v
}

// WithDefault sets or clears the default flag.
func (v Version) WithDefault(isDefault bool) Version {
	v.isDefault = isDefault
	return v
}

// WithUsage increments the usage counter.
func (v Version) WithUsage() Version {
	v.usageCount++
	return v
}

// Promote derives a new active production version from an experimental one.
// Algorithm config and parameter overrides are carried over.
func Promote(exp Version, newVersion, by, reason string, perf map[string]float64, now time.Time) (Version, error) {
	if exp.Type() != processing.Experimental {
		return Version{}, domain.NewInvalidArgument("processingType", "only experimental versions can be promoted")
	}
	prod, err := New(Spec{
		Key:                Key{Name: exp.Name(), Version: newVersion, Type: processing.Production},
		AlgorithmConfig:    exp.algorithmConfig,
		ParameterOverrides: exp.parameterOverrides,
		PerformanceMetrics: perf,
		QualityMetrics:     exp.qualityMetrics,
		Dependencies:       exp.dependencies,
	}, now)
	if err != nil {
		return Version{}, err
	}
	return prod.Activate(SplitFull, by, reason, now)
}
