// Package schema is the single definition of how a post maps onto index
// fields. The builder and the query engine both construct their mapping
// from here, and the index records a fingerprint of it so a mismatch is
// caught when the index is opened.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Aman-CERP/postsearch/internal/post"
)

// Field names.
const (
	FieldID          = "id"
	FieldTitle       = "title"
	FieldURL         = "url"
	FieldNumPoints   = "num_points"
	FieldNumComments = "num_comments"
	FieldAuthor      = "author"
	FieldCreatedAt   = "created_at"
)

// DefaultField is the field unqualified query terms are matched against.
const DefaultField = FieldTitle

// TextAnalyzer lowercases unicode word tokens and keeps stop words, so every
// title word is searchable.
const TextAnalyzer = "post_text"

// Kind is the value type of a field.
type Kind string

const (
	KindText     Kind = "text"
	KindKeyword  Kind = "keyword"
	KindNumeric  Kind = "numeric"
	KindDisabled Kind = "disabled"
)

// Field describes one schema field and its capabilities.
type Field struct {
	Name    string
	Kind    Kind
	Indexed bool
	Stored  bool
}

// fields is ordered; the order feeds the fingerprint.
var fields = []Field{
	{Name: FieldID, Kind: KindKeyword, Indexed: true, Stored: true},
	{Name: FieldAuthor, Kind: KindText, Indexed: true, Stored: true},
	{Name: FieldTitle, Kind: KindText, Indexed: true, Stored: false},
	{Name: FieldNumPoints, Kind: KindNumeric, Indexed: true, Stored: true},
	{Name: FieldNumComments, Kind: KindNumeric, Indexed: true, Stored: true},
	{Name: FieldCreatedAt, Kind: KindText, Indexed: true, Stored: false},
	{Name: FieldURL, Kind: KindDisabled},
}

// Fields returns a copy of the field table.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// StoredFields returns the names of fields retrievable from the index.
func StoredFields() []string {
	var names []string
	for _, f := range fields {
		if f.Stored {
			names = append(names, f.Name)
		}
	}
	return names
}

// New builds the index mapping for posts.
func New() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	if err := m.AddCustomAnalyzer(TextAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("register analyzer: %w", err)
	}

	doc := bleve.NewDocumentStaticMapping()
	for _, f := range fields {
		switch f.Kind {
		case KindText, KindKeyword:
			fm := bleve.NewTextFieldMapping()
			fm.Analyzer = TextAnalyzer
			if f.Kind == KindKeyword {
				fm.Analyzer = keyword.Name
			}
			fm.Index = f.Indexed
			fm.Store = f.Stored
			fm.IncludeInAll = false
			fm.IncludeTermVectors = false
			doc.AddFieldMappingsAt(f.Name, fm)
		case KindNumeric:
			fm := bleve.NewNumericFieldMapping()
			fm.Index = f.Indexed
			fm.Store = f.Stored
			fm.IncludeInAll = false
			doc.AddFieldMappingsAt(f.Name, fm)
		case KindDisabled:
			doc.AddSubDocumentMapping(f.Name, bleve.NewDocumentDisabledMapping())
		}
	}

	m.DefaultMapping = doc
	m.DefaultAnalyzer = TextAnalyzer
	m.DefaultField = DefaultField
	m.IndexDynamic = false
	m.StoreDynamic = false
	m.DocValuesDynamic = false

	return m, nil
}

// Fingerprint identifies the schema. Any change to a field's name, kind or
// capabilities, or to the text analysis, changes it.
func Fingerprint() string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	write("v1")
	write(TextAnalyzer)
	write(DefaultField)
	for _, f := range fields {
		write(f.Name)
		write(string(f.Kind))
		write(fmt.Sprintf("%t/%t", f.Indexed, f.Stored))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Document maps a post onto schema fields. The post ID doubles as the index
// document ID, so indexing the same post again replaces it.
func Document(p *post.Post) map[string]interface{} {
	return map[string]interface{}{
		FieldID:          p.ID,
		FieldTitle:       p.Title,
		FieldURL:         p.URL,
		FieldNumPoints:   float64(p.NumPoints),
		FieldNumComments: float64(p.NumComments),
		FieldAuthor:      p.Author,
		FieldCreatedAt:   p.CreatedAt,
	}
}
