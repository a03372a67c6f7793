// Package uuid provides unit tests for UUID generation and temp ids.
package uuid

import (
	"regexp"
	"strings"
	"testing"
)

// TestNew tests that New() generates valid UUID v4 strings.
func TestNew(t *testing.T) {
	id := New()

	if id == "" {
		t.Fatal("Expected non-empty UUID string")
	}

	// UUID v4 format: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx
	uuidRegex := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	if !uuidRegex.MatchString(id) {
		t.Errorf("Generated UUID does not match v4 format: %s", id)
	}
}

// TestNewUniqueness tests that New() generates unique IDs.
func TestNewUniqueness(t *testing.T) {
	ids := make(map[string]bool)

	// Generate 1000 UUIDs and verify uniqueness
	for i := 0; i < 1000; i++ {
		id := New()
		if ids[id] {
			t.Errorf("Duplicate UUID generated: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != 1000 {
		t.Errorf("Expected 1000 unique UUIDs, got %d", len(ids))
	}
}

// TestNewTemp tests temporary id generation for offline creates.
func TestNewTemp(t *testing.T) {
	id := NewTemp()

	if !strings.HasPrefix(id, TempPrefix) {
		t.Errorf("Expected temp id to start with %q, got %s", TempPrefix, id)
	}

	if !IsTemp(id) {
		t.Errorf("IsTemp(%q) = false, want true", id)
	}

	if IsValid(strings.TrimPrefix(id, TempPrefix)) == false {
		t.Errorf("Temp id suffix is not a valid UUID v4: %s", id)
	}
}

// TestIsTemp tests detection of temporary ids.
func TestIsTemp(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"temp id", "temp-f47ac10b-58cc-4372-a567-0e02b2c3d479", true},
		{"server id", "f47ac10b-58cc-4372-a567-0e02b2c3d479", false},
		{"numeric server id", "10423", false},
		{"empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTemp(tt.id); got != tt.want {
				t.Errorf("IsTemp(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

// TestIsValid tests valid UUID v4 strings.
func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		uuid string
		want bool
	}{
		{
			name: "valid UUID v4",
			uuid: "f47ac10b-58cc-4372-a567-0e02b2c3d479",
			want: true,
		},
		{
			name: "valid UUID v4 with zeros",
			uuid: "00000000-0000-4000-8000-000000000000",
			want: true,
		},
		{
			name: "valid UUID v4 uppercase",
			uuid: "6BA7B810-9DAD-41D1-80B4-00C04FD430C8",
			want: true,
		},
		{
			name: "empty string",
			uuid: "",
			want: false,
		},
		{
			name: "too short",
			uuid: "f47ac10b-58cc-4372-a567",
			want: false,
		},
		{
			name: "invalid format - missing dashes",
			uuid: "f47ac10b58cc4372a5670e02b2c3d479",
			want: false,
		},
		{
			name: "invalid version - v1 instead of v4",
			uuid: "f47ac10b-58cc-1372-a567-0e02b2c3d479",
			want: false,
		},
		{
			name: "temp id is not a bare UUID",
			uuid: "temp-f47ac10b-58cc-4372-a567-0e02b2c3d479",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValid(tt.uuid)
			if got != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.uuid, got, tt.want)
			}
		})
	}
}

// TestValidate tests Validate() function.
func TestValidate(t *testing.T) {
	if err := Validate("f47ac10b-58cc-4372-a567-0e02b2c3d479"); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
	if err := Validate("not-a-uuid"); err == nil {
		t.Error("Validate() expected error for invalid input")
	}
}

// BenchmarkNew benchmarks the New() function.
func BenchmarkNew(b *testing.B) {
	for i := 0; i < b.N; i++ {
		New()
	}
}
