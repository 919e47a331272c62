package phone

import (
	"errors"
	"testing"
)

func TestDigits(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"formatted international", "+55 11 98765-4321", "5511987654321", false},
		{"already clean", "5547999019008", "5547999019008", false},
		{"parentheses and dots", "(47) 9.9901-9008", "47999019008", false},
		{"letters only", "abc", "", true},
		{"empty", "", "", true},
		{"leading zero", "0047999019008", "", true},
		{"too long", "12345678901234567890", "", true},
	}

	for _, tc := range cases {
		got, err := Digits(tc.input)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidNumber) {
				t.Errorf("%s: Digits(%q) error = %v, want ErrInvalidNumber", tc.name, tc.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: Digits(%q) unexpected error: %v", tc.name, tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: Digits(%q) = %q, want %q", tc.name, tc.input, got, tc.want)
		}
	}
}

func TestNormalizeE164KeepsUnparseableInput(t *testing.T) {
	if got := NormalizeE164("not a number"); got != "not a number" {
		t.Errorf("NormalizeE164 fallback = %q, want input unchanged", got)
	}
	if got := NormalizeE164("  "); got != "" {
		t.Errorf("NormalizeE164 blank = %q, want empty", got)
	}
}

func TestNormalizeE164FormatsValidNumber(t *testing.T) {
	got := NormalizeE164("47 99901-9008")
	if got != "+5547999019008" {
		t.Errorf("NormalizeE164 = %q, want +5547999019008", got)
	}
}
