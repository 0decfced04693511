package processing

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/kailas-cloud/astrocat/internal/domain"
)

var idPattern = regexp.MustCompile(`^(prod|exp|test|val|repr)-\d{8}-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestNewID_Format(t *testing.T) {
	now := time.Date(2024, 3, 7, 23, 59, 0, 0, time.UTC)
	for _, typ := range Types {
		id, err := NewID(typ, now)
		if err != nil {
			t.Fatalf("NewID(%q): %v", typ, err)
		}
		s := id.String()
		if !idPattern.MatchString(s) {
			t.Errorf("id %q does not match the processing id format", s)
		}
		if want := string(typ) + "-20240307-"; s[:len(want)] != want {
			t.Errorf("id %q, want prefix %q", s, want)
		}
	}
}

func TestNewID_Unique(t *testing.T) {
	now := time.Now()
	a, _ := NewID(Production, now)
	b, _ := NewID(Production, now)
	if a.String() == b.String() {
		t.Error("two ids minted at the same instant collide")
	}
}

func TestNewID_InvalidType(t *testing.T) {
	_, err := NewID("staging", time.Now())
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestParseID_RoundTrip(t *testing.T) {
	id, _ := NewID(Reprocessing, time.Date(2023, 12, 31, 8, 0, 0, 0, time.UTC))
	got, err := ParseID(id.String())
	if err != nil {
		t.Fatalf("ParseID: %v", err)
	}
	if got != id {
		t.Errorf("ParseID = %+v, want %+v", got, id)
	}
	if got.PartitionKey() != "repr_202312" {
		t.Errorf("PartitionKey = %q", got.PartitionKey())
	}
}

func TestParseID_Invalid(t *testing.T) {
	for _, s := range []string{
		"",
		"prod-20240101",
		"staging-20240101-2b1c6f3e-8a8e-4e56-9d0b-2f0b7c1d1a11",
		"prod-2024011-2b1c6f3e-8a8e-4e56-9d0b-2f0b7c1d1a11",
		"prod-20240101-not-a-uuid",
	} {
		if _, err := ParseID(s); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("ParseID(%q) err = %v, want ErrInvalidArgument", s, err)
		}
	}
}

func TestParseType(t *testing.T) {
	got, err := ParseType(" PROD ")
	if err != nil || got != Production {
		t.Errorf("ParseType = %q, %v", got, err)
	}
	if _, err := ParseType("beta"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestPartitionKey(t *testing.T) {
	at := time.Date(2025, 1, 31, 23, 0, 0, 0, time.FixedZone("x", -3*3600))
	if got := PartitionKey(Experimental, at); got != "exp_202502" {
		t.Errorf("PartitionKey = %q, want exp_202502 (UTC month)", got)
	}
}
