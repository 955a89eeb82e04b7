// Package metadata builds and stores the per-document record kept in the
// metadata namespace and returned in query reports.
package metadata

import (
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/document"
)

const articleURLTemplate = "https://pubmed.ncbi.nlm.nih.gov/%s/"

// Record is the stored metadata of one document. Title and Language are
// null when the document carried none. Cross-reference lists are omitted
// when they could not be fetched.
type Record struct {
	Title      *string           `json:"title"`
	Language   *string           `json:"language"`
	ArticleURL string            `json:"article_url,omitempty"`
	ArticleIDs map[string]string `json:"article_ids,omitempty"`
	CitedBy    []string          `json:"cited_by,omitempty"`
	References []string          `json:"references,omitempty"`
	Similar    []string          `json:"similar,omitempty"`
}

// ArticleURL returns the canonical PubMed URL for a document ID.
func ArticleURL(docID string) string {
	return fmt.Sprintf(articleURLTemplate, docID)
}

// NewRecord builds the base record for doc, without cross-references.
func NewRecord(docID string, doc *document.Document) Record {
	rec := Record{
		ArticleURL: ArticleURL(docID),
		ArticleIDs: doc.IDMap(),
	}
	if title, ok := doc.FirstText(document.FieldTitle); ok {
		rec.Title = &title
	}
	if lang, ok := doc.FirstText(document.FieldLanguage); ok {
		rec.Language = &lang
	}
	return rec
}

// Merge copies every fetched cross-reference category into rec.
func (r *Record) Merge(refs CrossRefs) {
	if refs.CitedBy != nil {
		r.CitedBy = refs.CitedBy
	}
	if refs.References != nil {
		r.References = refs.References
	}
	if refs.Similar != nil {
		r.Similar = refs.Similar
	}
}

func Encode(r Record) ([]byte, error) {
	return json.Marshal(r)
}

func Decode(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decoding metadata record: %w", err)
	}
	return r, nil
}
