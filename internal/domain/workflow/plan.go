package workflow

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/processing"
)

// PerDatasetEstimate is the processing time budgeted for each dataset of a duplication.
const PerDatasetEstimate = 15 * time.Minute

// PlanStatus is the lifecycle state of a duplication plan.
type PlanStatus string

// PlanInitiated is the only state the registry produces; workers advance the rest.
const PlanInitiated PlanStatus = "INITIATED"

// DuplicationRequest asks for production datasets to be reprocessed with an experimental version.
type DuplicationRequest struct {
	Datasets   []string
	Researcher string
	Hypothesis string
	Priority   string
}

// DuplicationPlan is a reified request for an external worker. It performs no processing.
type DuplicationPlan struct {
	ID                  string     `json:"duplicationId"`
	Name                string     `json:"workflowName"`
	ExperimentalVersion string     `json:"experimentalVersion"`
	ProductionVersion   string     `json:"productionVersion"`
	Researcher          string     `json:"researcherId"`
	Hypothesis          string     `json:"hypothesis"`
	Datasets            []string   `json:"datasets"`
	Priority            string     `json:"priority"`
	StartedAt           time.Time  `json:"startedAt"`
	EstimatedCompletion time.Time  `json:"estimatedCompletion"`
	Status              PlanStatus `json:"status"`
}

// NewDuplicationPlan builds a plan comparing an active experimental version against
// the active production version of the same workflow.
func NewDuplicationPlan(exp, prod Version, req DuplicationRequest, now time.Time) (DuplicationPlan, error) {
	if exp.Type() != processing.Experimental {
		return DuplicationPlan{}, domain.NewInvalidArgument("processingType", "duplication needs an experimental version")
	}
	if !exp.IsActive() {
		return DuplicationPlan{}, fmt.Errorf("%w: experimental %s is not active", domain.ErrInvalidArgument, exp.Key())
	}
	if prod.Type() != processing.Production || prod.Name() != exp.Name() {
		return DuplicationPlan{}, domain.NewInvalidArgument("production", "must be the production version of the same workflow")
	}
	if req.Researcher == "" {
		return DuplicationPlan{}, domain.NewInvalidArgument("researcherId", "is required")
	}
	id, err := processing.NewID(processing.Experimental, now)
	if err != nil {
		return DuplicationPlan{}, err
	}
	now = now.UTC()
	priority := req.Priority
	if priority == "" {
		priority = "normal"
	}
	return DuplicationPlan{
		ID:                  id.String(),
		Name:                exp.Name(),
		ExperimentalVersion: exp.Version(),
		ProductionVersion:   prod.Version(),
		Researcher:          req.Researcher,
		Hypothesis:          req.Hypothesis,
		Datasets:            append([]string{}, req.Datasets...),
		Priority:            priority,
		StartedAt:           now,
		EstimatedCompletion: now.Add(time.Duration(len(req.Datasets)) * PerDatasetEstimate),
		Status:              PlanInitiated,
	}, nil
}
