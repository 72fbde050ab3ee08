package index

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/Aman-CERP/courseindex/internal/content"
)

// Content type labels stored on documents.
const (
	ContentTypeText       = "Text"
	ContentTypeDiscussion = "Discussion"
	ContentTypeCAPA       = "CAPA"
	ContentTypeVideo      = "Video"
	ContentTypeSequence   = "Sequence"
)

// Extraction is the category specific part of a document.
type Extraction struct {
	// Content is merged into the document's content map.
	Content     map[string]string
	ContentType string
}

// Extractor pulls searchable text out of one block.
type Extractor func(n *content.Node) (Extraction, error)

// Registry maps categories to extractors. Categories without an extractor
// contribute only their display name.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]Extractor)}
}

// DefaultRegistry knows html, problem, discussion, video and sequential.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("html", extractHTML)
	r.Register("problem", extractProblem)
	r.Register("discussion", extractDiscussion)
	r.Register("video", extractVideo)
	r.Register("sequential", func(*content.Node) (Extraction, error) {
		return Extraction{ContentType: ContentTypeSequence}, nil
	})
	return r
}

// Register sets the extractor for category, replacing any existing one.
func (r *Registry) Register(category string, fn Extractor) {
	r.extractors[category] = fn
}

// Lookup returns the extractor for category.
func (r *Registry) Lookup(category string) (Extractor, bool) {
	fn, ok := r.extractors[category]
	return fn, ok
}

func extractHTML(n *content.Node) (Extraction, error) {
	text, err := StripTags(n.Data)
	if err != nil {
		return Extraction{}, err
	}
	return Extraction{
		Content:     map[string]string{"html_content": text},
		ContentType: ContentTypeText,
	}, nil
}

func extractProblem(n *content.Node) (Extraction, error) {
	text, err := StripTags(n.Data)
	if err != nil {
		return Extraction{}, err
	}
	return Extraction{
		Content:     map[string]string{"capa_content": text},
		ContentType: ContentTypeCAPA,
	}, nil
}

func extractDiscussion(n *content.Node) (Extraction, error) {
	c := make(map[string]string, 2)
	if v := n.Field("discussion_category"); v != "" {
		c["discussion_category"] = v
	}
	if v := n.Field("discussion_target"); v != "" {
		c["discussion_target"] = v
	}
	return Extraction{Content: c, ContentType: ContentTypeDiscussion}, nil
}

func extractVideo(n *content.Node) (Extraction, error) {
	c := map[string]string{}
	if v := n.Field("transcript"); v != "" {
		c["transcript"] = v
	}
	return Extraction{Content: c, ContentType: ContentTypeVideo}, nil
}

// StripTags returns the text of an HTML fragment with whitespace collapsed.
// Script and style bodies are dropped.
func StripTags(fragment string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var (
		parts []string
		skip  int
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", err
			}
			return strings.Join(strings.Fields(strings.Join(parts, " ")), " "), nil
		case html.TextToken:
			if skip == 0 {
				parts = append(parts, string(z.Text()))
			}
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawText(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawText(name) && skip > 0 {
				skip--
			}
		}
	}
}

func isRawText(tag []byte) bool {
	s := string(tag)
	return s == "script" || s == "style"
}
