package analyzer

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/cloudzy/photofind/internal/models"
)

var captionTemplates = []string{
	"A beautiful %s photograph",
	"Captured moment: %s",
	"Scenic view of %s",
	"Amazing %s scene",
}

// MockAnalyzer derives tags and a caption from the filename, deterministic
// for the same input. It stands in for the vision model in tests and local
// development.
type MockAnalyzer struct{}

// NewMockAnalyzer returns a filename-based analyzer.
func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{}
}

// Describe derives tags from the filename's words and picks a caption
// template by filename hash.
func (a *MockAnalyzer) Describe(ctx context.Context, imagePath string) (*models.Analysis, error) {
	name := filepath.Base(imagePath)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(name))

	tags := []string{}
	for _, w := range strings.Fields(name) {
		if w != "" {
			tags = append(tags, w)
		}
		if len(tags) == 5 {
			break
		}
	}
	if len(tags) == 0 {
		tags = []string{"photo"}
	}

	h := 0
	for _, c := range name {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	tpl := captionTemplates[h%len(captionTemplates)]
	caption := strings.Replace(tpl, "%s", tags[0], 1)

	return &models.Analysis{
		Tags:        tags,
		Caption:     caption,
		Description: caption + ", " + strings.Join(tags, ", "),
	}, nil
}

// Close is a no-op for MockAnalyzer.
func (a *MockAnalyzer) Close() error {
	return nil
}
