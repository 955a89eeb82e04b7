package pubmed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/metadata"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/metrics"
)

// E-utilities link names for each cross-reference category.
const (
	LinkCitedBy    = "pubmed_pubmed_citedin"
	LinkReferences = "pubmed_pubmed_refs"
	LinkSimilar    = "pubmed_pubmed"
)

type elinkResponse struct {
	LinkSets []struct {
		LinkSetDBs []struct {
			LinkName string   `json:"linkname"`
			Links    []string `json:"links"`
		} `json:"linksetdbs"`
	} `json:"linksets"`
}

// LinkClient looks up cross-references with the E-utilities elink service.
type LinkClient struct {
	baseURL string
	apiKey  string
	fetch   *fetcher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewLinkClient(cfg config.BuildConfig, httpClient *http.Client, m *metrics.Metrics) *LinkClient {
	return &LinkClient{
		baseURL: strings.TrimSuffix(cfg.EUtilsURL, "/") + "/elink.fcgi",
		apiKey:  cfg.EUtilsAPIKey,
		fetch:   newFetcher("eutils", cfg, httpClient, m),
		metrics: m,
		logger:  slog.Default().With("component", "eutils-elink"),
	}
}

// Lookup fetches the three categories concurrently, one request each. A
// category that fails stays nil in the result and its error is joined into
// the returned error, so callers can keep whatever succeeded.
func (c *LinkClient) Lookup(ctx context.Context, docID string) (metadata.CrossRefs, error) {
	var refs metadata.CrossRefs
	targets := []struct {
		linkName string
		dst      *[]string
	}{
		{LinkCitedBy, &refs.CitedBy},
		{LinkReferences, &refs.References},
		{LinkSimilar, &refs.Similar},
	}
	errs := make([]error, len(targets))

	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids, err := c.links(ctx, docID, t.linkName)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", t.linkName, err)
				if c.metrics != nil {
					c.metrics.FetchFailuresTotal.WithLabelValues("crossref").Inc()
				}
				return
			}
			*t.dst = ids
		}()
	}
	wg.Wait()
	return refs, errors.Join(errs...)
}

func (c *LinkClient) links(ctx context.Context, docID, linkName string) ([]string, error) {
	q := url.Values{}
	q.Set("dbfrom", "pubmed")
	q.Set("db", "pubmed")
	q.Set("id", docID)
	q.Set("linkname", linkName)
	q.Set("retmode", "json")
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	body, err := c.fetch.get(ctx, c.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var resp elinkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding elink response: %w", err)
	}
	ids := []string{}
	for _, ls := range resp.LinkSets {
		for _, db := range ls.LinkSetDBs {
			if db.LinkName == linkName {
				ids = append(ids, db.Links...)
			}
		}
	}
	c.logger.Debug("cross-references fetched", "doc_id", docID, "link", linkName, "count", len(ids))
	return ids, nil
}
