package core

import (
	"errors"
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestIDIsEmpty tests ID emptiness check
func TestIDIsEmpty(t *testing.T) {
	if !ID("").IsEmpty() {
		t.Error("Expected empty ID to be empty")
	}
	if ID("not-empty").IsEmpty() {
		t.Error("Expected non-empty ID to not be empty")
	}
}

func TestParseRunID(t *testing.T) {
	id := NewRunID()
	parsed, err := ParseRunID(" " + id.String() + " ")
	if err != nil {
		t.Fatalf("ParseRunID(%q) failed: %v", id, err)
	}
	if parsed != id {
		t.Errorf("Expected %s, got %s", id, parsed)
	}

	for _, bad := range []string{"", "   ", "not-a-uuid"} {
		if _, err := ParseRunID(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestHashFloats_BitExact(t *testing.T) {
	a := HashFloats([]float64{0.1, 0.2}, []float64{1})
	b := HashFloats([]float64{0.1, 0.2}, []float64{1})
	if a != b {
		t.Errorf("identical inputs hashed differently: %s vs %s", a, b)
	}

	// Same flattened values, different grouping
	c := HashFloats([]float64{0.1}, []float64{0.2, 1})
	if a == c {
		t.Error("different slice boundaries should change the hash")
	}

	if len(a.Short()) != 12 {
		t.Errorf("Short() should be 12 chars, got %q", a.Short())
	}
}

func TestDataIntegrityError_Unwraps(t *testing.T) {
	err := NewDataIntegrityError("bao", 3, "sigma", "must be > 0")
	if !errors.Is(err, ErrDataIntegrity) {
		t.Error("expected errors.Is(err, ErrDataIntegrity)")
	}
	if !IsDataIntegrityError(err) {
		t.Error("IsDataIntegrityError should be true")
	}

	var die *DataIntegrityError
	if !errors.As(err, &die) || die.Index != 3 || die.Field != "sigma" {
		t.Errorf("unexpected error details: %+v", die)
	}
}

func TestIntegrationError_Unwraps(t *testing.T) {
	err := &IntegrationError{Step: 12, A: 0.5, Reason: "non-finite state"}
	if !IsIntegrationFailure(err) {
		t.Error("expected integration failure to unwrap")
	}
}
