package schema_test

import (
	"os"
	"path/filepath"
	"testing"

	"quill/internal/schema"
)

func TestDefaultRegistry(t *testing.T) {
	registry, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default: %v", err)
	}
	if registry.Len() != 13 {
		t.Fatalf("expected 13 fields, got %d", registry.Len())
	}
	if registry.RequiredCount() != 13 {
		t.Fatalf("expected all default fields required, got %d", registry.RequiredCount())
	}

	categories := registry.Categories()
	expected := []string{"demographics", "clinical_history", "functional_status", "goals_aspirations", "risk_assessment"}
	if len(categories) != len(expected) {
		t.Fatalf("expected %d categories, got %v", len(expected), categories)
	}
	for i, category := range expected {
		if categories[i] != category {
			t.Fatalf("category %d: expected %s, got %s", i, category, categories[i])
		}
	}

	field, ok := registry.Lookup("current_medications")
	if !ok {
		t.Fatal("expected current_medications in default registry")
	}
	if field.Category != "clinical_history" {
		t.Fatalf("unexpected category %q", field.Category)
	}
	if registry.CategoryOf("nope") != "" {
		t.Fatal("expected empty category for unknown field")
	}
}

func TestFieldIDsPreserveOrder(t *testing.T) {
	registry, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default: %v", err)
	}
	ids := registry.FieldIDs()
	if ids[0] != "name" {
		t.Fatalf("expected name first, got %s", ids[0])
	}
	if ids[len(ids)-1] != "nutritional_risks" {
		t.Fatalf("expected nutritional_risks last, got %s", ids[len(ids)-1])
	}
}

func TestLoadFileRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.toml")
	content := `
[[field]]
id = "name"
category = "demographics"
label = "Name"
required = true

[[field]]
id = "name"
category = "demographics"
label = "Name Again"
required = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	if _, err := schema.LoadFile(path); err == nil {
		t.Fatal("expected duplicate field id to be rejected")
	}
}

func TestLoadFileEmptyPathFallsBackToDefault(t *testing.T) {
	registry, err := schema.LoadFile("")
	if err != nil {
		t.Fatalf("schema.LoadFile: %v", err)
	}
	if !registry.Contains("goals") {
		t.Fatal("expected embedded default registry")
	}
}
