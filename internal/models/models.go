package models

import (
	"encoding/json"
)

// ElementCategory classifies one unit extracted from a source document.
type ElementCategory string

const (
	CategoryTitle ElementCategory = "title"
	CategoryText  ElementCategory = "text"
	CategoryTable ElementCategory = "table"
	CategoryImage ElementCategory = "image"
)

// Element is one extracted unit from a source PDF: a paragraph, a table
// (with its HTML structure preserved) or an embedded image payload.
// Immutable once produced by the partitioner.
type Element struct {
	Category  ElementCategory `json:"category"`
	Text      string          `json:"text"`
	TableHTML string          `json:"table_html,omitempty"`
	ImageB64  string          `json:"image_b64,omitempty"`
}

// Chunk is an ordered group of elements bounded by a character budget.
// Tables and images ride alongside the concatenated text so the summarizer
// can rebuild the full multimodal context.
type Chunk struct {
	Text   string
	Tables []string
	Images []string
}

// HasRichContent reports whether the chunk carries anything beyond text.
func (c Chunk) HasRichContent() bool {
	return len(c.Tables) > 0 || len(c.Images) > 0
}

// ContentTypes returns the set of content kinds present in the chunk.
func (c Chunk) ContentTypes() []string {
	types := []string{"text"}
	if len(c.Tables) > 0 {
		types = append(types, "table")
	}
	if len(c.Images) > 0 {
		types = append(types, "image")
	}
	return types
}

// OriginalContent is the sidecar bundle stored next to every persisted
// document. It carries the raw multimodal content so the retriever can
// reconstruct the full prompt at answer time, independent of whatever text
// was embedded.
type OriginalContent struct {
	RawText    string   `json:"raw_text"`
	TablesHTML []string `json:"tables_html"`
	ImagesB64  []string `json:"images_base64"`
}

// Serialize encodes the bundle for storage in vector-store metadata.
func (o OriginalContent) Serialize() (string, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseOriginalContent is the inverse of Serialize.
func ParseOriginalContent(s string) (OriginalContent, error) {
	var o OriginalContent
	if err := json.Unmarshal([]byte(s), &o); err != nil {
		return OriginalContent{}, err
	}
	return o, nil
}

// Document is the persisted vector-store record. PageContent is the text
// that actually gets embedded: either the raw chunk text or an AI-generated
// multimodal summary. Original always survives unchanged regardless of the
// summarization outcome.
type Document struct {
	ID          string
	PageContent string
	Original    OriginalContent
	Category    string
}

// Answer is the retriever's output: the model's text plus the raw base64
// image payloads collected from the retrieved chunks.
type Answer struct {
	Text   string
	Images []string
}

// PromptPart is one ordered part of a multimodal LLM request. Exactly one
// field is set: Text for a text part, ImageURI for an image given as a
// data URI or URL.
type PromptPart struct {
	Text     string
	ImageURI string
}

// TextPart builds a text prompt part.
func TextPart(s string) PromptPart { return PromptPart{Text: s} }

// ImagePart builds an image prompt part from a data URI or URL.
func ImagePart(uri string) PromptPart { return PromptPart{ImageURI: uri} }
