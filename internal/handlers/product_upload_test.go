package handlers

import "testing"

func TestParseBoolValue(t *testing.T) {
	truthy := []string{"on", "true", "1", " TRUE "}
	for _, value := range truthy {
		parsed, err := parseBoolValue(value)
		if err != nil || !parsed {
			t.Fatalf("expected %q to parse as true (err=%v)", value, err)
		}
	}

	parsed, err := parseBoolValue("false")
	if err != nil || parsed {
		t.Fatalf("expected false, got %v (err=%v)", parsed, err)
	}

	if _, err := parseBoolValue("yes please"); err == nil {
		t.Fatal("expected parse error for junk input")
	}
}

func TestParsePaginationParamsDefaults(t *testing.T) {
	page, limit, err := parsePaginationParams("", "")
	if err != nil {
		t.Fatalf("defaults should not error: %v", err)
	}
	if page != 1 || limit != 20 {
		t.Fatalf("expected page=1 limit=20, got %d %d", page, limit)
	}
}

func TestParsePaginationParamsRejectsInvalid(t *testing.T) {
	if _, _, err := parsePaginationParams("0", "10"); err == nil {
		t.Fatal("page below 1 should be rejected")
	}
	if _, _, err := parsePaginationParams("1", "abc"); err == nil {
		t.Fatal("non-numeric limit should be rejected")
	}
}

func TestRegexEscape(t *testing.T) {
	got := regexEscape("C++ (v2)?")
	want := `C\+\+ \(v2\)\?`
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
