package migrations

import (
	"strings"
	"testing"
)

func TestCatalogMigrationsContainRequiredTables(t *testing.T) {
	required := map[string][]string{
		"sql/000001_catalog.up.sql": {
			"CREATE TABLE dataset",
			"name TEXT PRIMARY KEY",
			"columns_json JSONB",
			"CREATE UNIQUE INDEX idx_dataset_dataset_id",
		},
		"sql/000002_saved_chart.up.sql": {
			"CREATE TABLE saved_chart",
			"spec_json JSONB NOT NULL",
			"CONSTRAINT uq_saved_chart_dataset_position UNIQUE (dataset_name, position) DEFERRABLE",
		},
	}
	for file, snippets := range required {
		body, err := embeddedFS.ReadFile(file)
		if err != nil {
			t.Fatalf("ReadFile(%q) error = %v", file, err)
		}
		for _, snippet := range snippets {
			if !strings.Contains(string(body), snippet) {
				t.Fatalf("%s missing required snippet: %s", file, snippet)
			}
		}
	}
}
