package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

const searchPageLimit = 100

// Client is a thin STAC API search client. It covers exactly what the
// pipeline consumes: a collection + datetime + intersects search with
// next-link pagination.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	logger   *zap.Logger
}

// NewClient builds a Client for one catalog endpoint. token may be empty
// for catalogs that do not require authentication.
func NewClient(endpoint, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// SearchParams describe one catalog query.
type SearchParams struct {
	Collection string
	DateStart  string
	DateEnd    string
	Intersects *geojson.Geometry
}

type searchBody struct {
	Collections []string          `json:"collections"`
	Datetime    string            `json:"datetime,omitempty"`
	Intersects  *geojson.Geometry `json:"intersects,omitempty"`
	Limit       int               `json:"limit,omitempty"`
	Token       string            `json:"token,omitempty"`
}

type searchPage struct {
	Features []json.RawMessage `json:"features"`
	Links    []struct {
		Rel  string          `json:"rel"`
		Href string          `json:"href"`
		Body json.RawMessage `json:"body,omitempty"`
	} `json:"links"`
}

// Search runs the query and drains all result pages.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]*Item, error) {
	if params.Collection == "" {
		return nil, fmt.Errorf("search: collection is required")
	}
	body := searchBody{
		Collections: []string{params.Collection},
		Intersects:  params.Intersects,
		Limit:       searchPageLimit,
	}
	if params.DateStart != "" || params.DateEnd != "" {
		body.Datetime = fmt.Sprintf("%s/%s", params.DateStart, params.DateEnd)
	}

	searchURL := c.endpoint + "/search"
	var items []*Item
	for {
		page, err := c.fetchPage(ctx, searchURL, body)
		if err != nil {
			return nil, err
		}
		for _, feature := range page.Features {
			item := &Item{}
			if err := json.Unmarshal(feature, item); err != nil {
				return nil, fmt.Errorf("decode search result: %w", err)
			}
			items = append(items, item)
		}
		next, nextBody, ok := nextLink(page)
		if !ok {
			break
		}
		searchURL = next
		if nextBody != nil {
			if err := json.Unmarshal(nextBody, &body); err != nil {
				return nil, fmt.Errorf("decode next link body: %w", err)
			}
		}
	}
	c.logger.Debug("search complete",
		zap.String("collection", params.Collection),
		zap.Int("items", len(items)),
	)
	return items, nil
}

func (c *Client) fetchPage(ctx context.Context, searchURL string, body searchBody) (*searchPage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode search body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", searchURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("search %s: status %d: %s", searchURL, resp.StatusCode, strings.TrimSpace(string(text)))
	}
	page := &searchPage{}
	if err := json.NewDecoder(resp.Body).Decode(page); err != nil {
		return nil, fmt.Errorf("decode search page: %w", err)
	}
	return page, nil
}

func nextLink(page *searchPage) (string, json.RawMessage, bool) {
	for _, link := range page.Links {
		if link.Rel != "next" || link.Href == "" {
			continue
		}
		if _, err := url.Parse(link.Href); err != nil {
			continue
		}
		return link.Href, link.Body, true
	}
	return "", nil, false
}
