package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/processing"
	wf "github.com/kailas-cloud/astrocat/internal/domain/workflow"
)

type historyKey struct {
	name string
	typ  processing.Type
}

// Memory is an in-process registry store. Mutations of one name are serialised by a
// per-name mutex; readers take a short read lock and never wait on a running mutation.
type Memory struct {
	mu         sync.RWMutex
	versions   map[string]map[wf.Key]wf.Version
	history    map[historyKey]*wf.History
	historyCap int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewMemory creates an empty in-memory store.
func NewMemory(historyCap int) *Memory {
	if historyCap <= 0 {
		historyCap = wf.HistoryCap
	}
	return &Memory{
		versions:   make(map[string]map[wf.Key]wf.Version),
		history:    make(map[historyKey]*wf.History),
		historyCap: historyCap,
		locks:      make(map[string]*sync.Mutex),
	}
}

func (m *Memory) nameLock(name string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[name]
	if !ok {
		l = &sync.Mutex{}
		m.locks[name] = l
	}
	return l
}

// Apply runs fn under the name lock and commits its change in one step.
func (m *Memory) Apply(ctx context.Context, name string, fn wf.Mutation) ([]wf.HistoryEntry, error) {
	l := m.nameLock(name)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}

	current := m.snapshot(name)
	change, err := fn(current)
	if err != nil {
		return nil, err
	}
	if err := wf.CheckInvariants(merge(current, change.Versions)); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	byKey, ok := m.versions[name]
	if !ok {
		byKey = make(map[wf.Key]wf.Version)
		m.versions[name] = byKey
	}
	for _, v := range change.Versions {
		if stored, ok := byKey[v.Key()]; ok {
			// Usage is counted outside the name lock; keep the live counter.
			st := v.State()
			st.UsageCount = stored.UsageCount()
			v = wf.Reconstruct(v.Spec(), st)
		}
		byKey[v.Key()] = v
	}
	recorded := make([]wf.HistoryEntry, 0, len(change.History))
	for _, e := range change.History {
		hk := historyKey{name: e.Name, typ: e.Type}
		h, ok := m.history[hk]
		if !ok {
			h = wf.NewHistory(m.historyCap)
			m.history[hk] = h
		}
		recorded = append(recorded, h.Append(e))
	}
	return recorded, nil
}

func (m *Memory) snapshot(name string) []wf.Version {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]wf.Version, 0, len(m.versions[name]))
	for _, v := range m.versions[name] {
		out = append(out, v)
	}
	return out
}

// Get loads one version.
func (m *Memory) Get(_ context.Context, k wf.Key) (wf.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.versions[k.Name][k]
	if !ok {
		return wf.Version{}, fmt.Errorf("workflow %s: %w", k, domain.ErrNotFound)
	}
	return v, nil
}

// ListByName returns every version of a workflow, newest first.
func (m *Memory) ListByName(_ context.Context, name string) ([]wf.Version, error) {
	out := m.snapshot(name)
	wf.SortNewestFirst(out)
	return out, nil
}

// ListActive returns active versions, optionally restricted to one processing type.
func (m *Memory) ListActive(_ context.Context, typ processing.Type) ([]wf.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []wf.Version
	for _, byKey := range m.versions {
		for _, v := range byKey {
			if v.IsActive() && (typ == "" || v.Type() == typ) {
				out = append(out, v)
			}
		}
	}
	wf.SortActive(out)
	return out, nil
}

// IncrementUsage bumps the usage counter of a version.
func (m *Memory) IncrementUsage(_ context.Context, k wf.Key) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[k.Name][k]
	if !ok {
		return 0, fmt.Errorf("workflow %s: %w", k, domain.ErrNotFound)
	}
	v = v.WithUsage()
	m.versions[k.Name][k] = v
	return v.UsageCount(), nil
}

// History returns up to limit entries for (name, type), newest first.
func (m *Memory) History(_ context.Context, name string, typ processing.Type, limit int) ([]wf.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.history[historyKey{name: name, typ: typ}]
	if !ok {
		return nil, nil
	}
	return h.Entries(limit), nil
}
