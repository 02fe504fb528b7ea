package utils

import "testing"

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Acme Design Studio":  "acme-design-studio",
		"  Hello,  World!  ":  "hello-world",
		"already-a-slug":      "already-a-slug",
		"Café & Co.":          "caf-co",
	}

	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateSlug(t *testing.T) {
	if err := ValidateSlug("acme-studio"); err != nil {
		t.Errorf("expected valid slug, got %v", err)
	}
	for _, bad := range []string{"Acme", "a", "double--dash", "-lead"} {
		if err := ValidateSlug(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestValidateLength(t *testing.T) {
	if err := ValidateLength("ab", "name", 3, 10); err == nil || err.Error() != "name must be at least 3 characters" {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateLength("abcd", "name", 3, 10); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}
