package health

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/astrocat/internal/version"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component failed.
	Degraded Status = "degraded"
	// Unhealthy indicates a required component failed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DefaultTimeout bounds each component check.
const DefaultTimeout = 2 * time.Second

// Component is a named dependency to check.
type Component struct {
	Name     string
	Pinger   Pinger
	Required bool
}

// Report aggregates health check results.
type Report struct {
	Status  Status
	Checks  map[string]CheckResult
	Version string
}

// Service coordinates health checks.
type Service struct {
	components []Component
	timeout    time.Duration
	logger     *zap.Logger
}

// New creates a Service. Components with a nil Pinger are skipped.
func New(components ...Component) *Service {
	var cs []Component
	for _, c := range components {
		if c.Pinger != nil {
			cs = append(cs, c)
		}
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].Name < cs[j].Name })
	return &Service{components: cs, timeout: DefaultTimeout, logger: zap.NewNop()}
}

// WithTimeout sets the per-component timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// WithLogger sets the logger.
func (s *Service) WithLogger(l *zap.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.components))
	status := Healthy

	for _, c := range s.components {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := c.Pinger.Ping(cctx)
		cancel()
		if err == nil {
			checks[c.Name] = CheckOK
			continue
		}
		checks[c.Name] = CheckError
		s.logger.Warn("health check failed", zap.String("component", c.Name), zap.Error(err))
		if c.Required {
			status = Unhealthy
		} else if status == Healthy {
			status = Degraded
		}
	}

	return Report{Status: status, Checks: checks, Version: version.Version}
}
