// Package catalog discovers published datasets through the national open-data
// SPARQL endpoint. Each document family is one dataset series; series members
// carry a Czech title with an embedded publication date and a distribution
// download URL.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/opendatalabcz/emissions-etl/internal/dataset"
)

// Endpoint is the national open-data portal's SPARQL endpoint.
const Endpoint = "https://data.gov.cz/sparql"

// Series IRIs of the two published document families.
const (
	SeriesInspections  = "https://data.gov.cz/zdroj/datové-sady/66003008/9c95ebdba1dc7a2fbcfc5b6c07d25705"
	SeriesMeasurements = "https://data.gov.cz/zdroj/datové-sady/66003008/e8e07fa264f3bd2179be03381ec324de"
)

// Dataset is one discovered dataset: the published title (which doubles as
// the document name throughout the pipeline), its distribution URL, and the
// date parsed out of the title.
type Dataset struct {
	Name        string
	DownloadURL string
	Date        time.Time
}

// Client queries a SPARQL endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient returns a Client for the given endpoint. An empty endpoint
// selects the production portal; a zero timeout defaults to 60s.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = Endpoint
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// seriesQuery selects the titles and download URLs of a series' members.
func seriesQuery(seriesIRI string) string {
	return fmt.Sprintf(`
PREFIX dcat: <http://www.w3.org/ns/dcat#>
PREFIX dcterms: <http://purl.org/dc/terms/>

SELECT ?title ?downloadURL
WHERE {
    <%s> dcat:seriesMember ?dataset.
    ?dataset dcat:distribution ?distribution.
    ?dataset dcterms:title ?title.
    ?distribution dcat:downloadURL ?downloadURL.

    FILTER(LANG(?title) = "cs")
}`, seriesIRI)
}

// sparqlResponse is the subset of the SPARQL JSON results format we read.
type sparqlResponse struct {
	Results struct {
		Bindings []map[string]struct {
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

// Datasets queries the series' members. Members whose title carries no
// parsable date token are dropped: without a date they cannot participate in
// ordering or resumability.
func (c *Client) Datasets(ctx context.Context, seriesIRI string) ([]Dataset, error) {
	u := c.endpoint + "?query=" + url.QueryEscape(seriesQuery(seriesIRI))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build query: %w", err)
	}
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: query series: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: query series: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("catalog: read response: %w", err)
	}
	var parsed sparqlResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("catalog: decode response: %w", err)
	}

	var out []Dataset
	for _, b := range parsed.Results.Bindings {
		name := b["title"].Value
		d, err := dataset.DateFromName(name)
		if err != nil {
			continue
		}
		out = append(out, Dataset{
			Name:        name,
			DownloadURL: b["downloadURL"].Value,
			Date:        d,
		})
	}
	return out, nil
}

// Filter keeps the datasets inside [since, until] whose date is not in done,
// and returns them sorted date-ascending (ties by name). A zero until means
// no upper bound.
func Filter(all []Dataset, since, until time.Time, done map[time.Time]struct{}) []Dataset {
	var out []Dataset
	for _, ds := range all {
		if ds.Date.Before(since) {
			continue
		}
		if !until.IsZero() && ds.Date.After(until) {
			continue
		}
		if _, ok := done[ds.Date]; ok {
			continue
		}
		out = append(out, ds)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Name < out[j].Name
	})
	return out
}
