package handlers

import "testing"

func TestPhonePattern(t *testing.T) {
	valid := []string{"0912345678", "0281234567", "+84912345678"}
	for _, number := range valid {
		if !phonePattern.MatchString(number) {
			t.Fatalf("expected %q to be accepted", number)
		}
	}

	invalid := []string{"", "12345", "84912345678", "+8491234", "09 1234 5678", "0912345678901"}
	for _, number := range invalid {
		if phonePattern.MatchString(number) {
			t.Fatalf("expected %q to be rejected", number)
		}
	}
}
