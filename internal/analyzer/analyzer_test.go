package analyzer

import (
	"context"
	"errors"
	"testing"
)

func TestMockAnalyzer_Deterministic(t *testing.T) {
	a := NewMockAnalyzer()
	ctx := context.Background()

	first, err := a.Describe(ctx, "uploads/sunset_beach_walk.jpg")
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.Describe(ctx, "uploads/sunset_beach_walk.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if first.Caption != second.Caption {
		t.Errorf("captions differ: %q vs %q", first.Caption, second.Caption)
	}
	if len(first.Tags) != 3 {
		t.Errorf("tags = %v, want the 3 filename words", first.Tags)
	}
	if first.Tags[0] != "sunset" || first.Tags[1] != "beach" || first.Tags[2] != "walk" {
		t.Errorf("tags = %v", first.Tags)
	}
}

func TestMockAnalyzer_EmptyName(t *testing.T) {
	a := NewMockAnalyzer()
	got, err := a.Describe(context.Background(), ".jpg")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Tags) == 0 {
		t.Error("expected fallback tag")
	}
}

func TestParseAnalysis(t *testing.T) {
	content := "Here you go:\n```json\n{\"tags\": [\"tiger\", \"forest\"], \"description\": \"A tiger walks.\", \"caption\": \"Tiger at dusk\"}\n```"
	got, err := parseAnalysis(content)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Tags) != 2 || got.Caption != "Tiger at dusk" {
		t.Errorf("got %+v", got)
	}
}

func TestParseAnalysis_NoJSON(t *testing.T) {
	_, err := parseAnalysis("the model rambled with no structure")
	if !errors.Is(err, ErrAnalyzer) {
		t.Errorf("got %v, want ErrAnalyzer", err)
	}
}
