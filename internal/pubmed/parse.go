package pubmed

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/document"
)

// richText is the whitespace-collapsed character data of an element and all
// its descendants, so inline markup such as <i> or <sup> in titles and
// abstracts keeps its text.
type richText struct {
	Text  string
	Major bool
}

func (t *richText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		if a.Name.Local == "MajorTopicYN" {
			t.Major = a.Value == "Y"
		}
	}
	var b strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch tk := tok.(type) {
		case xml.CharData:
			b.Write(tk)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				t.Text = strings.Join(strings.Fields(b.String()), " ")
				return nil
			}
			depth--
		}
	}
}

type articleID struct {
	Type  string `xml:"IdType,attr"`
	Value string `xml:",chardata"`
}

type author struct {
	LastName []richText `xml:"LastName"`
	ForeName []richText `xml:"ForeName"`
}

type meshHeading struct {
	Descriptors []richText `xml:"DescriptorName"`
	Qualifiers  []richText `xml:"QualifierName"`
}

type pubmedArticle struct {
	Citation struct {
		Article struct {
			Titles    []richText `xml:"ArticleTitle"`
			Languages []richText `xml:"Language"`
			Abstracts []richText `xml:"Abstract>AbstractText"`
			Authors   []author   `xml:"AuthorList>Author"`
		} `xml:"Article"`
		Chemicals    []richText    `xml:"ChemicalList>Chemical>NameOfSubstance"`
		Keywords     []richText    `xml:"KeywordList>Keyword"`
		MeshHeadings []meshHeading `xml:"MeshHeadingList>MeshHeading"`
	} `xml:"MedlineCitation"`
	Data struct {
		IDs []articleID `xml:"ArticleIdList>ArticleId"`
	} `xml:"PubmedData"`
}

func (a *pubmedArticle) document() document.Document {
	art := &a.Citation.Article
	doc := document.Document{
		Titles:    items(art.Titles),
		Languages: items(art.Languages),
		Abstracts: items(art.Abstracts),
		Chemicals: items(a.Citation.Chemicals),
		Keywords:  items(a.Citation.Keywords),
	}
	for _, id := range a.Data.IDs {
		v := strings.TrimSpace(id.Value)
		if v == "" {
			continue
		}
		doc.IDs = append(doc.IDs, document.ArticleID{Type: id.Type, Value: v})
	}
	for _, mh := range a.Citation.MeshHeadings {
		doc.Keywords = append(doc.Keywords, items(mh.Descriptors)...)
		doc.Keywords = append(doc.Keywords, items(mh.Qualifiers)...)
	}
	for _, au := range art.Authors {
		doc.Authors = append(doc.Authors, items(au.LastName)...)
		doc.Authors = append(doc.Authors, items(au.ForeName)...)
	}
	return doc
}

func items(ts []richText) []document.Item {
	var out []document.Item
	for _, t := range ts {
		if t.Text == "" {
			continue
		}
		out = append(out, document.Item{Text: t.Text, Major: t.Major})
	}
	return out
}

// DecodeArticles streams every PubmedArticle element of a baseline XML file
// to fn and returns how many were decoded. An error from fn stops decoding
// and is returned unchanged.
func DecodeArticles(r io.Reader, fn func(doc document.Document) error) (int, error) {
	dec := xml.NewDecoder(r)
	dec.Entity = xml.HTMLEntity
	n := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("reading xml after %d articles: %w", n, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "PubmedArticle" {
			continue
		}
		var art pubmedArticle
		if err := dec.DecodeElement(&art, &start); err != nil {
			return n, fmt.Errorf("decoding article %d: %w", n+1, err)
		}
		n++
		if err := fn(art.document()); err != nil {
			return n, err
		}
	}
}
