package core

import (
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

// TestParseModelID tests model ID parsing
func TestParseModelID(t *testing.T) {
	valid := NewModelID()

	tests := []struct {
		input    string
		expected ModelID
		hasError bool
	}{
		{valid.String(), valid, false},
		{"  " + valid.String() + " ", valid, false},
		{"", "", true},
		{"   ", "", true},
		{"not-a-uuid", "", true},
	}

	for _, test := range tests {
		result, err := ParseModelID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

// TestErrorHelpers tests sentinel classification helpers
func TestErrorHelpers(t *testing.T) {
	if !IsUnsupportedError(NewUnknownFunctionError("bogus")) {
		t.Error("Expected unknown function error to be unsupported")
	}
	if !IsUnsupportedError(ErrTooManyClasses) {
		t.Error("Expected too-many-classes error to be unsupported")
	}
	if !IsDataError(NewDimensionError("targets", 3, 2)) {
		t.Error("Expected dimension error to be a data error")
	}
	if IsNotTrainedError(ErrEmptyCalibration) {
		t.Error("Expected empty calibration not to be a not-trained error")
	}
}
