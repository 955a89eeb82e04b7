package pubmed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/errors"
)

const articleXML = `<?xml version="1.0" encoding="utf-8"?>
<!DOCTYPE PubmedArticleSet PUBLIC "-//NLM//DTD PubMedArticle, 1st January 2024//EN" "https://dtd.nlm.nih.gov/ncbi/pubmed/out/pubmed_240101.dtd">
<PubmedArticleSet>
<PubmedArticle>
  <MedlineCitation Status="MEDLINE" Owner="NLM">
    <PMID Version="1">%[1]s</PMID>
    <Article PubModel="Print">
      <ArticleTitle>Lactose <i>intolerance</i> in adults.</ArticleTitle>
      <Abstract>
        <AbstractText Label="BACKGROUND">Lactase deficiency is common.</AbstractText>
        <AbstractText Label="RESULTS">Symptoms &amp; outcomes vary.</AbstractText>
      </Abstract>
      <AuthorList CompleteYN="Y">
        <Author ValidYN="Y"><LastName>Smith</LastName><ForeName>Jane</ForeName></Author>
        <Author ValidYN="Y"><CollectiveName>Dairy Group</CollectiveName></Author>
      </AuthorList>
      <Language>eng</Language>
    </Article>
    <ChemicalList>
      <Chemical><RegistryNumber>J2B2A4N98G</RegistryNumber><NameOfSubstance UI="D007785">Lactose</NameOfSubstance></Chemical>
    </ChemicalList>
    <MeshHeadingList>
      <MeshHeading>
        <DescriptorName UI="D007787" MajorTopicYN="Y">Lactose Intolerance</DescriptorName>
        <QualifierName UI="Q000175" MajorTopicYN="N">diagnosis</QualifierName>
      </MeshHeading>
    </MeshHeadingList>
    <KeywordList Owner="NOTNLM">
      <Keyword MajorTopicYN="N">dairy</Keyword>
    </KeywordList>
  </MedlineCitation>
  <PubmedData>
    <ArticleIdList>
      <ArticleId IdType="pubmed">%[1]s</ArticleId>
      <ArticleId IdType="doi">10.1000/%[1]s</ArticleId>
    </ArticleIdList>
  </PubmedData>
</PubmedArticle>
</PubmedArticleSet>`

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testBuildConfig(baseURL string) config.BuildConfig {
	return config.BuildConfig{
		BaselineURL:  baseURL + "/baseline/",
		EUtilsURL:    baseURL + "/eutils/",
		FetchTimeout: 5 * time.Second,
		Retry:        config.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}
}

func collect(t *testing.T, src document.Source) []document.Document {
	t.Helper()
	var docs []document.Document
	err := src.Each(context.Background(), func(_ context.Context, doc document.Document) error {
		docs = append(docs, doc)
		return nil
	})
	require.NoError(t, err)
	return docs
}

func TestDecodeArticles(t *testing.T) {
	var docs []document.Document
	n, err := DecodeArticles(strings.NewReader(fmt.Sprintf(articleXML, "31452104")), func(doc document.Document) error {
		docs = append(docs, doc)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	doc := docs[0]

	id, err := doc.PubmedID()
	require.NoError(t, err)
	assert.Equal(t, "31452104", id)
	assert.Equal(t, map[string]string{"pubmed": "31452104", "doi": "10.1000/31452104"}, doc.IDMap())

	assert.Equal(t, []document.Item{{Text: "Lactose intolerance in adults."}}, doc.Titles)
	assert.Equal(t, []document.Item{{Text: "eng"}}, doc.Languages)
	assert.Equal(t, []document.Item{
		{Text: "Lactase deficiency is common."},
		{Text: "Symptoms & outcomes vary."},
	}, doc.Abstracts)
	assert.Equal(t, []document.Item{{Text: "Lactose"}}, doc.Chemicals)
	assert.Equal(t, []document.Item{
		{Text: "dairy"},
		{Text: "Lactose Intolerance", Major: true},
		{Text: "diagnosis"},
	}, doc.Keywords)
	assert.Equal(t, []document.Item{{Text: "Smith"}, {Text: "Jane"}}, doc.Authors)
}

func TestDecodeArticles_StopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	set := fmt.Sprintf(articleXML, "1")
	set = strings.Replace(set, "</PubmedArticleSet>", strings.SplitN(fmt.Sprintf(articleXML, "2"), "<PubmedArticleSet>", 2)[1], 1)

	calls := 0
	n, err := DecodeArticles(strings.NewReader(set), func(document.Document) error {
		calls++
		return stop
	})
	assert.Equal(t, stop, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, calls)
}

func TestDecodeArticles_Truncated(t *testing.T) {
	full := fmt.Sprintf(articleXML, "1")
	_, err := DecodeArticles(strings.NewReader(full[:len(full)/2]), func(document.Document) error { return nil })
	assert.Error(t, err)
}

func TestWindow(t *testing.T) {
	files := []string{"a", "b", "c", "d"}
	tests := []struct {
		name          string
		offset, limit int
		want          []string
	}{
		{"all", 0, 0, files},
		{"offset", 2, 0, []string{"c", "d"}},
		{"limit", 0, 3, []string{"a", "b", "c"}},
		{"both", 1, 2, []string{"b", "c"}},
		{"limit past end", 3, 10, []string{"d"}},
		{"offset past end", 4, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Window(files, tt.offset, tt.limit))
		})
	}
}

func TestArchiveLinks(t *testing.T) {
	base, err := url.Parse("https://ftp.ncbi.nlm.nih.gov/pubmed/baseline/")
	require.NoError(t, err)
	page := `<html><body><pre>
<a href="../">Parent</a>
<a href="pubmed24n0001.xml.gz">pubmed24n0001.xml.gz</a>
<a href="pubmed24n0001.xml.gz.md5">md5</a>
<a href="pubmed24n0002.xml.gz">pubmed24n0002.xml.gz</a>
<a href="pubmed24n0002.xml.gz">dup</a>
<a href="README.txt">README</a>
</pre></body></html>`

	assert.Equal(t, []string{
		"https://ftp.ncbi.nlm.nih.gov/pubmed/baseline/pubmed24n0001.xml.gz",
		"https://ftp.ncbi.nlm.nih.gov/pubmed/baseline/pubmed24n0002.xml.gz",
	}, archiveLinks(base, []byte(page)))
}

func TestSource_Each(t *testing.T) {
	var flaky atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/baseline/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/baseline/":
			fmt.Fprint(w, `<a href="pubmed24n0001.xml.gz">1</a>
<a href="pubmed24n0002.xml.gz">2</a>
<a href="pubmed24n0003.xml.gz">3</a>
<a href="pubmed24n0004.xml.gz">4</a>`)
		case "/baseline/pubmed24n0002.xml.gz":
			if flaky.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write(gzipped(t, fmt.Sprintf(articleXML, "200")))
		case "/baseline/pubmed24n0003.xml.gz":
			http.NotFound(w, r)
		case "/baseline/pubmed24n0004.xml.gz":
			w.Write(gzipped(t, fmt.Sprintf(articleXML, "400")))
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testBuildConfig(srv.URL)
	cfg.FilesOffset = 1
	docs := collect(t, NewSource(cfg, srv.Client(), nil))

	require.Len(t, docs, 2, "file 3 is abandoned, file 1 is skipped by the offset")
	ids := []string{}
	for _, d := range docs {
		id, err := d.PubmedID()
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"200", "400"}, ids)
	assert.Equal(t, int32(2), flaky.Load(), "503 is retried")
}

func TestSource_Each_MaxFiles(t *testing.T) {
	var fetched atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/baseline/" {
			fmt.Fprint(w, `<a href="pubmed24n0001.xml.gz">1</a><a href="pubmed24n0002.xml.gz">2</a>`)
			return
		}
		fetched.Add(1)
		w.Write(gzipped(t, fmt.Sprintf(articleXML, "1")))
	}))
	defer srv.Close()

	cfg := testBuildConfig(srv.URL)
	cfg.MaxFiles = 1
	docs := collect(t, NewSource(cfg, srv.Client(), nil))
	assert.Len(t, docs, 1)
	assert.Equal(t, int32(1), fetched.Load())
}

func TestSource_Each_CallbackErrorStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/baseline/" {
			fmt.Fprint(w, `<a href="pubmed24n0001.xml.gz">1</a><a href="pubmed24n0002.xml.gz">2</a>`)
			return
		}
		w.Write(gzipped(t, fmt.Sprintf(articleXML, "1")))
	}))
	defer srv.Close()

	stop := errors.New("stop")
	err := NewSource(testBuildConfig(srv.URL), srv.Client(), nil).Each(context.Background(),
		func(context.Context, document.Document) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestSource_ListingFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewSource(testBuildConfig(srv.URL), srv.Client(), nil).Each(context.Background(),
		func(context.Context, document.Document) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrFetchFailed)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&StatusError{Code: http.StatusServiceUnavailable}))
	assert.True(t, isTransient(&StatusError{Code: http.StatusTooManyRequests}))
	assert.False(t, isTransient(&StatusError{Code: http.StatusNotFound}))
	assert.False(t, isTransient(context.Canceled))
	assert.True(t, isTransient(errors.New("connection reset by peer")))
}

func TestLinkClient_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/eutils/elink.fcgi", r.URL.Path)
		assert.Equal(t, "31452104", q.Get("id"))
		assert.Equal(t, "json", q.Get("retmode"))
		assert.Equal(t, "secret", q.Get("api_key"))
		switch q.Get("linkname") {
		case LinkCitedBy:
			fmt.Fprintf(w, `{"linksets":[{"dbfrom":"pubmed","ids":["31452104"],"linksetdbs":[{"dbto":"pubmed","linkname":%q,"links":["1","2"]}]}]}`, LinkCitedBy)
		case LinkReferences:
			fmt.Fprint(w, `{"linksets":[{"dbfrom":"pubmed","ids":["31452104"]}]}`)
		case LinkSimilar:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := testBuildConfig(srv.URL)
	cfg.EUtilsAPIKey = "secret"
	refs, err := NewLinkClient(cfg, srv.Client(), nil).Lookup(context.Background(), "31452104")

	require.Error(t, err)
	assert.Contains(t, err.Error(), LinkSimilar)
	assert.Equal(t, []string{"1", "2"}, refs.CitedBy)
	assert.NotNil(t, refs.References)
	assert.Empty(t, refs.References)
	assert.Nil(t, refs.Similar)
}
