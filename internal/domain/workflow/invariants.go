package workflow

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/processing"
)

// CheckInvariants verifies the registry invariants over every version of one or more workflows:
// at most one active production version per name, active splits of 0 or 100 only,
// and at most one default per (name, type).
func CheckInvariants(versions []Version) error {
	activeProd := make(map[string][]string)
	defaults := make(map[string][]string)
	for _, v := range versions {
		if v.active && v.Type() == processing.Production {
			activeProd[v.Name()] = append(activeProd[v.Name()], v.Version())
		}
		if v.active && v.trafficSplit != SplitOff && v.trafficSplit != SplitFull {
			return fmt.Errorf("%w: %s active at split %g", domain.ErrConstraintViolation, v.key, v.trafficSplit)
		}
		if v.isDefault {
			k := v.Name() + "_" + string(v.Type())
			defaults[k] = append(defaults[k], v.Version())
		}
	}
	for name, vs := range activeProd {
		if len(vs) > 1 {
			sort.Strings(vs)
			return fmt.Errorf("%w: %s has %d active production versions %v",
				domain.ErrConstraintViolation, name, len(vs), vs)
		}
	}
	for k, vs := range defaults {
		if len(vs) > 1 {
			sort.Strings(vs)
			return fmt.Errorf("%w: %s has %d defaults %v", domain.ErrConstraintViolation, k, len(vs), vs)
		}
	}
	return nil
}

// SelectActive picks the version to process with from the active versions of one
// (name, type). With several candidates it returns the most recently activated one,
// then the highest version label, and reports ambiguous=true.
func SelectActive(versions []Version) (chosen Version, ambiguous, ok bool) {
	var active []Version
	for _, v := range versions {
		if v.active {
			active = append(active, v)
		}
	}
	if len(active) == 0 {
		return Version{}, false, false
	}
	sort.SliceStable(active, func(i, j int) bool {
		if !active[i].activatedAt.Equal(active[j].activatedAt) {
			return active[i].activatedAt.After(active[j].activatedAt)
		}
		return active[i].Version() > active[j].Version()
	})
	return active[0], len(active) > 1, true
}

// SortActive orders active versions by name, then descending traffic split, then version.
func SortActive(versions []Version) {
	sort.SliceStable(versions, func(i, j int) bool {
		a, b := versions[i], versions[j]
		if a.Name() != b.Name() {
			return a.Name() < b.Name()
		}
		if a.trafficSplit != b.trafficSplit {
			return a.trafficSplit > b.trafficSplit
		}
		return a.Version() < b.Version()
	})
}

// SortNewestFirst orders versions by descending creation time, then version label.
func SortNewestFirst(versions []Version) {
	sort.SliceStable(versions, func(i, j int) bool {
		if !versions[i].createdAt.Equal(versions[j].createdAt) {
			return versions[i].createdAt.After(versions[j].createdAt)
		}
		return versions[i].Version() < versions[j].Version()
	})
}
