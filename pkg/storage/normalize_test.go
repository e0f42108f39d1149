package storage

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Café-Bar  ROMA!", "cafe bar roma"},
		{"  La Niña   Bonita ", "la nina bonita"},
		{"Restaurante \"El Rincón\"", "restaurante el rincon"},
		{"burger&fries", "burger fries"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := NormalizeName(tc.in); got != tc.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
