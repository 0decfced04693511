package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/processing"
	wf "github.com/kailas-cloud/astrocat/internal/domain/workflow"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newVersion(t *testing.T, name, version string, typ processing.Type) wf.Version {
	t.Helper()
	v, err := wf.New(wf.Spec{Key: wf.Key{Name: name, Version: version, Type: typ}}, t0)
	if err != nil {
		t.Fatalf("wf.New: %v", err)
	}
	return v
}

func register(t *testing.T, m *Memory, v wf.Version) {
	t.Helper()
	_, err := m.Apply(context.Background(), v.Name(), func([]wf.Version) (wf.Change, error) {
		return wf.Change{Versions: []wf.Version{v}}, nil
	})
	if err != nil {
		t.Fatalf("register %s: %v", v.Key(), err)
	}
}

func TestMemory_ApplyAndRead(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	v := newVersion(t, "dark-subtraction", "v1", processing.Production)
	register(t, m, v)

	got, err := m.Get(ctx, v.Key())
	if err != nil {
		t.Fatal(err)
	}
	if got.Key() != v.Key() {
		t.Errorf("Get = %s", got.Key())
	}

	_, err = m.Get(ctx, wf.Key{Name: "dark-subtraction", Version: "v9", Type: processing.Production})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	n, err := m.IncrementUsage(ctx, v.Key())
	if err != nil || n != 1 {
		t.Errorf("IncrementUsage = %d, %v", n, err)
	}
}

func TestMemory_RejectsInvariantBreach(t *testing.T) {
	m := NewMemory(0)
	a, _ := newVersion(t, "x", "v1", processing.Production).Activate(wf.SplitFull, "", "", t0)
	register(t, m, a)

	b, _ := newVersion(t, "x", "v2", processing.Production).Activate(wf.SplitFull, "", "", t0)
	_, err := m.Apply(context.Background(), "x", func([]wf.Version) (wf.Change, error) {
		return wf.Change{Versions: []wf.Version{b}}, nil
	})
	if !errors.Is(err, domain.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
	if _, err := m.Get(context.Background(), b.Key()); !errors.Is(err, domain.ErrNotFound) {
		t.Error("a rejected change must not be partially applied")
	}
}

func TestMemory_MutationErrorLeavesStateUntouched(t *testing.T) {
	m := NewMemory(0)
	want := errors.New("boom")
	_, err := m.Apply(context.Background(), "x", func([]wf.Version) (wf.Change, error) {
		return wf.Change{}, want
	})
	if !errors.Is(err, want) {
		t.Errorf("expected mutation error, got %v", err)
	}
	vs, _ := m.ListByName(context.Background(), "x")
	if len(vs) != 0 {
		t.Errorf("expected no versions, got %d", len(vs))
	}
}

func TestMemory_HistoryCap(t *testing.T) {
	m := NewMemory(5)
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		_, err := m.Apply(ctx, "x", func([]wf.Version) (wf.Change, error) {
			return wf.Change{History: []wf.HistoryEntry{{
				Name: "x", Version: fmt.Sprintf("v%d", i), Type: processing.Test,
				Action: wf.ActionActivate, PerformedAt: t0,
			}}}, nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	h, err := m.History(ctx, "x", processing.Test, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(h))
	}
	if h[0].Version != "v7" || h[0].Seq != 8 {
		t.Errorf("newest entry = %s seq %d", h[0].Version, h[0].Seq)
	}
	other, _ := m.History(ctx, "x", processing.Production, 0)
	if len(other) != 0 {
		t.Error("history is kept per (name, type)")
	}
}

func TestMemory_SerialisesPerName(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	register(t, m, newVersion(t, "x", "v1", processing.Test))

	var wg sync.WaitGroup
	inside := 0
	maxInside := 0
	var mu sync.Mutex
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Apply(ctx, "x", func(cur []wf.Version) (wf.Change, error) {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return wf.Change{}, nil
			})
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Errorf("mutations of one name overlapped: %d concurrent", maxInside)
	}
}

func TestMemory_ApplyKeepsUsageCountedMeanwhile(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	v := newVersion(t, "x", "v1", processing.Production)
	register(t, m, v)

	_, err := m.Apply(ctx, "x", func(cur []wf.Version) (wf.Change, error) {
		// Usage lands between the snapshot and the commit.
		if _, err := m.IncrementUsage(ctx, v.Key()); err != nil {
			return wf.Change{}, err
		}
		a, err := cur[0].Activate(wf.SplitFull, "ops", "", t0)
		if err != nil {
			return wf.Change{}, err
		}
		return wf.Change{Versions: []wf.Version{a}}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := m.Get(ctx, v.Key())
	if !got.IsActive() {
		t.Error("activation was not committed")
	}
	if got.UsageCount() != 1 {
		t.Errorf("usage = %d, want 1", got.UsageCount())
	}
}

func TestMemory_ListActive(t *testing.T) {
	m := NewMemory(0)
	a, _ := newVersion(t, "b-flow", "v1", processing.Production).Activate(wf.SplitFull, "", "", t0)
	b, _ := newVersion(t, "a-flow", "v1", processing.Experimental).Activate(wf.SplitOff, "", "", t0)
	register(t, m, a)
	register(t, m, b)
	register(t, m, newVersion(t, "a-flow", "v2", processing.Experimental))

	all, _ := m.ListActive(context.Background(), "")
	if len(all) != 2 || all[0].Name() != "a-flow" {
		t.Errorf("unexpected active list: %d", len(all))
	}
	prod, _ := m.ListActive(context.Background(), processing.Production)
	if len(prod) != 1 || prod[0].Name() != "b-flow" {
		t.Errorf("unexpected prod list: %d", len(prod))
	}
}
