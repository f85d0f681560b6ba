package table

import "testing"

func TestParseNumber(t *testing.T) {
	valid := map[string]float64{
		"42":         42,
		" -3.5 ":     -3.5,
		"1e3":        1000,
		"1,500":      1500,
		"12,000.25":  12000.25,
		"-1,234,567": -1234567,
	}
	for in, want := range valid {
		got, ok := ParseNumber(in)
		if !ok || got != want {
			t.Fatalf("ParseNumber(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	for _, in := range []string{"", "abc", "1,2", "12,34,567", "NaN", "Inf", "1,500x"} {
		if got, ok := ParseNumber(in); ok {
			t.Fatalf("ParseNumber(%q) = %v, want not a number", in, got)
		}
	}
}
