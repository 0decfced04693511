package intermediate

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/storage/blob"
)

type memStore struct {
	objects   map[string][]byte
	failOn    string
	deletions int
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (m *memStore) Put(_ context.Context, bucket, key string, data []byte) error {
	m.objects[bucket+"|"+key] = data
	return nil
}

func (m *memStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	d, ok := m.objects[bucket+"|"+key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (m *memStore) List(_ context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for k := range m.objects {
		if b, key, _ := strings.Cut(k, "|"); b == bucket && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memStore) Delete(_ context.Context, bucket, key string) error {
	if key == m.failOn {
		return domain.ErrStorageUnavailable
	}
	m.deletions++
	delete(m.objects, bucket+"|"+key)
	return nil
}

var at = time.Date(2024, 6, 1, 23, 15, 7, 0, time.UTC)

func TestPutGetList(t *testing.T) {
	store := newMemStore()
	s := New(store)
	ctx := context.Background()

	key, err := s.Put(ctx, "n42", "bias", "frame_001.fits", []byte("raw"), at)
	if err != nil {
		t.Fatal(err)
	}
	if key != "sessions/n42/bias/20240601-231507/frame_001.fits" {
		t.Fatalf("unexpected key %q", key)
	}
	if _, err := s.Put(ctx, "n42", "flat", "frame_001.fits", []byte("flat"), at.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put(ctx, "n43", "bias", "x.fits", nil, at); err != nil {
		t.Fatal(err)
	}

	data, err := s.Get(ctx, key)
	if err != nil || string(data) != "raw" {
		t.Fatalf("get: %q %v", data, err)
	}
	if _, ok := store.objects[blob.BucketIntermediates+"|"+key]; !ok {
		t.Fatal("expected object in the intermediates bucket")
	}

	keys, err := s.ListSession(ctx, "n42")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != key {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestValidation(t *testing.T) {
	s := New(newMemStore())
	ctx := context.Background()
	if _, err := s.Put(ctx, "a/b", "bias", "f", nil, at); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("session with slash: %v", err)
	}
	if _, err := s.Put(ctx, "s", "", "f", nil, at); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("empty step: %v", err)
	}
	if _, err := s.Get(ctx, "plans/x.json"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("foreign key: %v", err)
	}
	if _, err := s.ListSession(ctx, ".."); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("dot session: %v", err)
	}
	if _, err := s.Get(ctx, "sessions/none/x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing: %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	store := newMemStore()
	s := New(store)
	ctx := context.Background()
	for _, step := range []string{"bias", "dark", "flat"} {
		if _, err := s.Put(ctx, "n1", step, "f.fits", []byte(step), at); err != nil {
			t.Fatal(err)
		}
	}
	other, _ := s.Put(ctx, "n2", "bias", "f.fits", nil, at)

	store.failOn = "sessions/n1/dark/20240601-231507/f.fits"
	n, err := s.DeleteSession(ctx, "n1")
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected partial failure, got %v", err)
	}
	if n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}

	store.failOn = ""
	n, err = s.DeleteSession(ctx, "n1")
	if err != nil || n != 1 {
		t.Fatalf("retry: %d %v", n, err)
	}
	if _, err := s.Get(ctx, other); err != nil {
		t.Fatalf("other session touched: %v", err)
	}
}

func TestDeleteSession_Cancelled(t *testing.T) {
	store := newMemStore()
	s := New(store)
	if _, err := s.Put(context.Background(), "n1", "bias", "f", nil, at); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.DeleteSession(ctx, "n1"); !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if store.deletions != 0 {
		t.Fatal("nothing should be deleted after cancellation")
	}
}
