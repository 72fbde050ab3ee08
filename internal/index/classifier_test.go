package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_Indexable(t *testing.T) {
	tests := []struct {
		name       string
		classifier *Classifier
		category   string
		want       bool
	}{
		{"html is indexable", DefaultClassifier(), "html", true},
		{"containers are indexable", DefaultClassifier(), "vertical", true},
		{"openassessment is excluded", DefaultClassifier(), "openassessment", false},
		{"unknown categories are indexable", DefaultClassifier(), "drag-and-drop-v2", true},
		{"custom exclusion", NewClassifier("video"), "video", false},
		{"custom list replaces defaults", NewClassifier("video"), "openassessment", true},
		{"empty list excludes nothing", NewClassifier(), "openassessment", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.classifier.Indexable(tt.category))
		})
	}
}

func TestClassifier_Excluded(t *testing.T) {
	c := NewClassifier("video", "openassessment", "video")

	assert.Equal(t, []string{"openassessment", "video"}, c.Excluded())
}
