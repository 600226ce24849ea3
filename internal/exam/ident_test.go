package exam

import (
	"errors"
	"regexp"
	"testing"
)

var slugPattern = regexp.MustCompile(`^[0-9a-f]{8}$`)

func TestNewSlug(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		slug, err := NewSlug()
		if err != nil {
			t.Fatalf("NewSlug() error = %v", err)
		}
		if !slugPattern.MatchString(slug) {
			t.Fatalf("NewSlug() = %q, want 8 lowercase hex chars", slug)
		}
		if seen[slug] {
			t.Fatalf("NewSlug() repeated %q", slug)
		}
		seen[slug] = true
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", "65a1f0c2e4b0a1b2c3d4e5f6", false},
		{"empty", "", true},
		{"short", "65a1f0c2", true},
		{"not hex", "zzzzzzzzzzzzzzzzzzzzzzzz", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseID(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIdentifier) {
					t.Fatalf("ParseID(%q) error = %v, want ErrInvalidIdentifier", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseID(%q) error = %v", tt.raw, err)
			}
			if id.Hex() != tt.raw {
				t.Errorf("ParseID(%q).Hex() = %q", tt.raw, id.Hex())
			}
		})
	}
}
