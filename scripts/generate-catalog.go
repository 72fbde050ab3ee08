//go:build ignore

// Package main generates a synthetic content catalog for load testing.
// Usage: go run scripts/generate-catalog.go -courses 50 -output testdata/catalog.yaml
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	numCourses   = flag.Int("courses", 20, "Number of courses to generate")
	numLibraries = flag.Int("libraries", 3, "Number of libraries to generate")
	chapters     = flag.Int("chapters", 4, "Chapters per course")
	units        = flag.Int("units", 3, "Units per lesson")
	outputPath   = flag.String("output", "testdata/catalog.yaml", "Output file")
	seed         = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var (
	subjects   = []string{"Biology", "Chemistry", "Physics", "History", "Economics", "Statistics", "Poetry", "Geology"}
	topics     = []string{"cells", "energy", "markets", "empires", "rocks", "sampling", "meter", "reactions", "orbits", "trade"}
	adjectives = []string{"Introductory", "Applied", "Advanced", "Practical", "Modern", "Classical"}
	leafTypes  = []string{"html", "problem", "video"}
)

type item struct {
	Category    string `yaml:"category"`
	DisplayName string `yaml:"display_name,omitempty"`
	Data        string `yaml:"data,omitempty"`
	Published   *bool  `yaml:"published,omitempty"`
	Children    []item `yaml:"children,omitempty"`
}

type course struct {
	ID          string            `yaml:"id"`
	DisplayName string            `yaml:"display_name"`
	Start       time.Time         `yaml:"start"`
	About       map[string]string `yaml:"about"`
	Modes       []map[string]any  `yaml:"modes"`
	Items       []item            `yaml:"items"`
}

type library struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	Items       []item `yaml:"items"`
}

type catalog struct {
	Courses   []course  `yaml:"courses"`
	Libraries []library `yaml:"libraries"`
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	var cat catalog
	for i := range *numCourses {
		cat.Courses = append(cat.Courses, generateCourse(rng, i))
	}
	for i := range *numLibraries {
		cat.Libraries = append(cat.Libraries, generateLibrary(rng, i))
	}

	data, err := yaml.Marshal(cat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode catalog: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(*outputPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outputPath, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *outputPath, err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d courses and %d libraries in %s\n", len(cat.Courses), len(cat.Libraries), *outputPath)
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func capitalize(s string) string {
	return strings.ToUpper(s[:1]) + s[1:]
}

func generateCourse(rng *rand.Rand, n int) course {
	subject := pick(rng, subjects)
	c := course{
		ID:          fmt.Sprintf("course-v1:Synth+%s%03d+2024", strings.ToUpper(subject[:3]), n),
		DisplayName: fmt.Sprintf("%s %s", pick(rng, adjectives), subject),
		Start:       time.Date(2020+rng.Intn(6), time.Month(1+rng.Intn(12)), 1, 0, 0, 0, 0, time.UTC),
		About: map[string]string{
			"short_description": fmt.Sprintf("A course about %s and %s.", pick(rng, topics), pick(rng, topics)),
			"effort":            fmt.Sprintf("%d:00", 2+rng.Intn(6)),
		},
		Modes: []map[string]any{{"slug": "audit"}, {"slug": "verified", "min_price": 49}},
	}

	for ch := range *chapters {
		chapter := item{Category: "chapter", DisplayName: fmt.Sprintf("Week %d", ch+1)}
		lesson := item{Category: "sequential", DisplayName: fmt.Sprintf("Lesson %d.1", ch+1)}
		for u := range *units {
			lesson.Children = append(lesson.Children, generateUnit(rng, u))
		}
		chapter.Children = []item{lesson}
		c.Items = append(c.Items, chapter)
	}
	return c
}

func generateUnit(rng *rand.Rand, n int) item {
	unit := item{Category: "vertical", DisplayName: fmt.Sprintf("Unit %d", n+1)}
	leaf := item{
		Category:    pick(rng, leafTypes),
		DisplayName: capitalize(pick(rng, topics)),
		Data:        fmt.Sprintf("<p>Notes on %s in %s.</p>", pick(rng, topics), pick(rng, subjects)),
	}
	// One leaf in ten stays unpublished so incremental runs have work to skip.
	if rng.Intn(10) == 0 {
		draft := false
		leaf.Published = &draft
	}
	unit.Children = []item{leaf}
	return unit
}

func generateLibrary(rng *rand.Rand, n int) library {
	lib := library{
		ID:          fmt.Sprintf("library-v1:Synth+Lib%02d", n),
		DisplayName: fmt.Sprintf("%s question bank", pick(rng, subjects)),
	}
	for i := range 5 + rng.Intn(10) {
		lib.Items = append(lib.Items, item{
			Category:    "problem",
			DisplayName: fmt.Sprintf("Question %d", i+1),
			Data:        fmt.Sprintf("<problem><p>Explain %s.</p></problem>", pick(rng, topics)),
		})
	}
	return lib
}
