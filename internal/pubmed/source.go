// Package pubmed reads documents from the PubMed annual baseline and looks
// up article cross-references through NCBI E-utilities.
package pubmed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/net/html"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/metrics"
)

const articleLogEvery = 10000

// Source yields the articles of the baseline archive files selected by
// FilesOffset and MaxFiles, in listing order.
type Source struct {
	cfg     config.BuildConfig
	fetch   *fetcher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewSource creates a baseline source. A nil httpClient uses one bounded by
// cfg.FetchTimeout.
func NewSource(cfg config.BuildConfig, httpClient *http.Client, m *metrics.Metrics) *Source {
	return &Source{
		cfg:     cfg,
		fetch:   newFetcher("pubmed-baseline", cfg, httpClient, m),
		metrics: m,
		logger:  slog.Default().With("component", "pubmed-source"),
	}
}

// ListFiles returns the absolute URLs of the archive files linked from the
// baseline index page.
func (s *Source) ListFiles(ctx context.Context) ([]string, error) {
	base, err := url.Parse(s.cfg.BaselineURL)
	if err != nil {
		return nil, fmt.Errorf("%w: baseline url %q: %w", apperrors.ErrInvalidInput, s.cfg.BaselineURL, err)
	}
	s.logger.Info("listing baseline files", "url", s.cfg.BaselineURL)
	page, err := s.fetch.get(ctx, s.cfg.BaselineURL)
	if err != nil {
		return nil, err
	}
	return archiveLinks(base, page), nil
}

func archiveLinks(base *url.URL, page []byte) []string {
	var links []string
	seen := make(map[string]bool)
	z := html.NewTokenizer(bytes.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return links
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" {
				continue
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) != "href" {
					continue
				}
				href := string(val)
				if !strings.HasPrefix(href, "pubmed") || !strings.HasSuffix(href, ".xml.gz") {
					continue
				}
				ref, err := url.Parse(href)
				if err != nil {
					continue
				}
				abs := base.ResolveReference(ref).String()
				if !seen[abs] {
					seen[abs] = true
					links = append(links, abs)
				}
			}
		}
	}
}

// Window applies offset and maxFiles to files. maxFiles 0 means no limit.
func Window(files []string, offset, maxFiles int) []string {
	if offset >= len(files) {
		return nil
	}
	files = files[offset:]
	if maxFiles > 0 && maxFiles < len(files) {
		files = files[:maxFiles]
	}
	return files
}

// Each fetches every selected file and passes its articles to fn. A file
// that cannot be fetched or parsed is logged and skipped. Only an error from
// fn, a listing failure or cancellation stops the run.
func (s *Source) Each(ctx context.Context, fn func(ctx context.Context, doc document.Document) error) error {
	all, err := s.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("listing baseline: %w", err)
	}
	files := Window(all, s.cfg.FilesOffset, s.cfg.MaxFiles)
	s.logger.Info("baseline files selected",
		"available", len(all),
		"offset", s.cfg.FilesOffset,
		"max_files", s.cfg.MaxFiles,
		"selected", len(files),
	)

	articles := 0
	for _, fileURL := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.logger.Info("fetching archive", "url", fileURL)
		data, err := s.fetch.get(ctx, fileURL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.abandon(fileURL, "archive", err)
			continue
		}

		var stopErr error
		n, err := decodeArchive(data, func(doc document.Document) error {
			articles++
			if articles%articleLogEvery == 0 {
				s.logger.Info("articles read", "count", articles)
			}
			stopErr = fn(ctx, doc)
			return stopErr
		})
		if stopErr != nil {
			return stopErr
		}
		if err != nil {
			s.abandon(fileURL, "parse", err)
			continue
		}
		s.logger.Info("archive done", "url", fileURL, "articles", n)
	}
	return nil
}

func (s *Source) abandon(fileURL, kind string, err error) {
	s.logger.Error("abandoning archive", "url", fileURL, "kind", kind, "error", err)
	if s.metrics != nil {
		s.metrics.FetchFailuresTotal.WithLabelValues(kind).Inc()
	}
}

func decodeArchive(data []byte, fn func(doc document.Document) error) (int, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer zr.Close()
	return DecodeArticles(zr, fn)
}
