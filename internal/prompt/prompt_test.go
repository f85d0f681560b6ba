package prompt

import (
	"strings"
	"testing"
)

func schema() Schema {
	return Schema{
		Columns: []string{"Status", "Risk Level", "Cost"},
		Samples: map[string][]string{
			"Status":     {"Open", "Closed"},
			"Risk Level": {"High"},
		},
	}
}

func TestFilterPromptListsColumnsAndSamples(t *testing.T) {
	got, err := Filter("  How many open tickets?  ", schema())
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	for _, want := range []string{
		"- Status (examples: \"Open\", \"Closed\")",
		"- `Risk Level` (examples: \"High\")",
		"- Cost\n",
		"single word none",
		"Question: How many open tickets?\nFilter:",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("Filter() missing %q in:\n%s", want, got)
		}
	}
}

func TestChartsPromptDescribesSchema(t *testing.T) {
	got, err := Charts("risk by department", schema())
	if err != nil {
		t.Fatalf("Charts() error = %v", err)
	}
	for _, want := range []string{`"x_col"`, `"aggregation": one of "count", "sum", "mean", "min", "max"`, "- Risk Level (examples", "between 1 and 8 charts", "Request: risk by department"} {
		if !strings.Contains(got, want) {
			t.Fatalf("Charts() missing %q in:\n%s", want, got)
		}
	}
}

func TestAnswerPromptMentionsTruncation(t *testing.T) {
	got, err := Answer("Which vendor is riskiest?", AnswerContext{
		SampleCSV:  "Vendor,Risk\nAcme,High\n",
		SampleRows: 50,
		TotalRows:  120,
		Summary:    "Risk Level counts: High=3",
	})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	for _, want := range []string{"first 50 of 120 rows", "Acme,High", "Risk Level counts: High=3", "rows that are not shown"} {
		if !strings.Contains(got, want) {
			t.Fatalf("Answer() missing %q in:\n%s", want, got)
		}
	}

	got, err = Answer("q", AnswerContext{SampleCSV: "a\n1\n", SampleRows: 1, TotalRows: 1})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !strings.Contains(got, "all 1 rows") || strings.Contains(got, "not shown") || strings.Contains(got, "Dataset summary") {
		t.Fatalf("Answer() = %s", got)
	}
}

func TestQuoteColumn(t *testing.T) {
	tests := map[string]string{
		"Status":       "Status",
		"cost_2024":    "cost_2024",
		"Risk Level":   "`Risk Level`",
		"2024 revenue": "`2024 revenue`",
		"in":           "`in`",
		"Cost ($)":     "`Cost ($)`",
	}
	for in, want := range tests {
		if got := QuoteColumn(in); got != want {
			t.Fatalf("QuoteColumn(%q) = %q, want %q", in, got, want)
		}
	}
}
