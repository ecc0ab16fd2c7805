package agent

import (
	"testing"

	"github.com/hrygo/hermes/store"
)

func TestExtractPatternsDetectsStructuralFeatures(t *testing.T) {
	prompts := []*store.Prompt{
		{ID: "p1", Content: "# Instructions\n1. Do this\n2. Do that\n\nExample: foo -> bar"},
		{ID: "p2", Content: "Plain sentence with no structure."},
		{ID: "p3", Content: "Fill in {{name}} and {{date}}."},
	}

	patterns := ExtractPatterns(prompts)

	counts := map[string]int{}
	for _, p := range patterns {
		counts[p.Name] = p.Count
	}
	if counts["step-list"] != 1 {
		t.Errorf("expected 1 prompt with a step list, got %d", counts["step-list"])
	}
	if counts["section-headers"] != 1 {
		t.Errorf("expected 1 prompt with a section header, got %d", counts["section-headers"])
	}
	if counts["worked-examples"] != 1 {
		t.Errorf("expected 1 prompt with a worked example, got %d", counts["worked-examples"])
	}
	if counts["placeholders"] != 1 {
		t.Errorf("expected 1 prompt with placeholders, got %d", counts["placeholders"])
	}
}

func TestSummarizePatternsFormatsAsKeyValuePairs(t *testing.T) {
	s := summarizePatterns([]Pattern{{Name: "step-list", Count: 2}, {Name: "placeholders", Count: 0}})
	if s != "step-list=2, placeholders=0" {
		t.Fatalf("unexpected summary: %q", s)
	}
}
