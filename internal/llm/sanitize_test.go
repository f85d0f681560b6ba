package llm

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"```python\nStatus == 'Open'\n```", "Status == 'Open'"},
		{"```json\n[{\"x_col\": \"Status\"}]\n```\n", `[{"x_col": "Status"}]`},
		{"```\nnone", "none"},
		{"```Status == 'Open'```", "Status == 'Open'"},
		{"  `Status == 'Open'`  ", "Status == 'Open'"},
		{`"none"`, "none"},
		{"'Cost > 10'", "Cost > 10"},
		{"`Risk Level` == 'High'", "`Risk Level` == 'High'"},
		{`"a" == "b"`, `"a" == "b"`},
		{"Status == 'Open'", "Status == 'Open'"},
		{"\n\t\n", ""},
		{"'", "'"},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.raw); got != tt.want {
			t.Fatalf("Sanitize(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestSanitizeIsIdempotentOnCleanText(t *testing.T) {
	inputs := []string{
		"Status == 'Open'",
		"none",
		`[{"x_col": "Department", "aggregation": "count"}]`,
		"`Risk Level` in ['High', 'Medium']",
		"There are 12 open tickets in Finance.",
		"```python\nCost > 3\n```",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		if twice := Sanitize(once); twice != once {
			t.Fatalf("Sanitize(Sanitize(%q)) = %q, want %q", in, twice, once)
		}
	}
}
