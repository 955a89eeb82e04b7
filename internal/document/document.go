// Package document defines the bibliographic record produced by document
// sources and consumed by the indexing pipeline.
package document

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/errors"
)

// PubmedIDType is the identifier type whose value becomes the document ID.
const PubmedIDType = "pubmed"

// Item is one text element of a field. Major marks a major-topic heading.
type Item struct {
	Text  string `json:"text"`
	Major bool   `json:"major,omitempty"`
}

// ArticleID is an external identifier such as ("pubmed", "31452104") or
// ("doi", "10.1000/xyz").
type ArticleID struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Document is an immutable bibliographic record.
type Document struct {
	IDs       []ArticleID `json:"ids"`
	Titles    []Item      `json:"titles,omitempty"`
	Abstracts []Item      `json:"abstracts,omitempty"`
	Keywords  []Item      `json:"keywords,omitempty"`
	Chemicals []Item      `json:"chemicals,omitempty"`
	Authors   []Item      `json:"authors,omitempty"`
	Languages []Item      `json:"languages,omitempty"`
}

// PubmedID returns the value of the pubmed-typed identifier.
func (d *Document) PubmedID() (string, error) {
	for _, id := range d.IDs {
		if id.Type == PubmedIDType && id.Value != "" {
			return id.Value, nil
		}
	}
	return "", fmt.Errorf("%w (ids: %v)", apperrors.ErrMissingPubmedID, d.IDs)
}

// IDMap returns the external identifiers keyed by type. Later duplicates win.
func (d *Document) IDMap() map[string]string {
	out := make(map[string]string, len(d.IDs))
	for _, id := range d.IDs {
		out[id.Type] = id.Value
	}
	return out
}

// Items returns the items of the given field.
func (d *Document) Items(f Field) []Item {
	switch f {
	case FieldTitle:
		return d.Titles
	case FieldAbstract:
		return d.Abstracts
	case FieldKeywords:
		return d.Keywords
	case FieldChemicals:
		return d.Chemicals
	case FieldAuthors:
		return d.Authors
	case FieldLanguage:
		return d.Languages
	default:
		return nil
	}
}

// FirstText returns the text of the first item of f, or "" with ok=false.
func (d *Document) FirstText(f Field) (string, bool) {
	items := d.Items(f)
	if len(items) == 0 {
		return "", false
	}
	return items[0].Text, true
}
