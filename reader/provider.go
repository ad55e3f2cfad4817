package reader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// HostedOptions configures a hosted reader-API provider.
type HostedOptions struct {
	// BaseURL is the provider's API root, e.g. "https://api.example.dev".
	BaseURL string
	// APIKey authenticates requests. Required.
	APIKey string
	// ProxyCountry, when set, asks the provider to route the render through
	// a location-based proxy (ISO country code).
	ProxyCountry string
	// ScrapeTimeout bounds a single rendered-page fetch. Default 60s.
	ScrapeTimeout time.Duration
	// MapTimeout bounds a site-map call. Default 30s.
	MapTimeout time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// HostedProvider calls a paid hosted reader API that fetches pages with a
// real browser and returns rendered content. Implements Fetcher, Mapper and
// ProxyToggler.
type HostedProvider struct {
	opts HostedOptions
	http *http.Client
}

// NewHostedProvider validates the options and builds a provider. A missing
// API key is a configuration error: fatal, never retried.
func NewHostedProvider(opts HostedOptions) (*HostedProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: hosted provider API key is empty", ErrConfiguration)
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: hosted provider base URL is empty", ErrConfiguration)
	}
	if opts.ScrapeTimeout == 0 {
		opts.ScrapeTimeout = 60 * time.Second
	}
	if opts.MapTimeout == 0 {
		opts.MapTimeout = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HostedProvider{opts: opts, http: httpClient}, nil
}

// Name identifies the provider in logs and metrics.
func (hp *HostedProvider) Name() string { return "hosted" }

// WithoutProxy returns a copy of the provider with the location proxy
// disabled, used for the single degraded retry after an HTTP 422.
func (hp *HostedProvider) WithoutProxy() Fetcher {
	opts := hp.opts
	opts.ProxyCountry = ""
	return &HostedProvider{opts: opts, http: hp.http}
}

// scrapeRequest is the wire format of the provider's scrape endpoint.
type scrapeRequest struct {
	URL      string          `json:"url"`
	Formats  []string        `json:"formats"`
	Location *scrapeLocation `json:"location,omitempty"`
}

type scrapeLocation struct {
	Country string `json:"country"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		Markdown string         `json:"markdown,omitempty"`
		HTML     string         `json:"html,omitempty"`
		Links    []string       `json:"links,omitempty"`
		Metadata scrapeMetadata `json:"metadata"`
	} `json:"data"`
}

type scrapeMetadata struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	PublishedTime string `json:"publishedTime"`
	StatusCode    int    `json:"statusCode"`
	SourceURL     string `json:"sourceURL"`
	CreditsUsed   int    `json:"creditsUsed"`
}

// Fetch retrieves url through the hosted API in the requested format.
func (hp *HostedProvider) Fetch(ctx context.Context, pageURL string, format Format) (*Result, error) {
	reqBody := scrapeRequest{
		URL:     pageURL,
		Formats: []string{string(format)},
	}
	if hp.opts.ProxyCountry != "" {
		reqBody.Location = &scrapeLocation{Country: hp.opts.ProxyCountry}
	}

	var parsed scrapeResponse
	if err := hp.post(ctx, "/v1/scrape", hp.opts.ScrapeTimeout, reqBody, &parsed); err != nil {
		return nil, err
	}
	if !parsed.Success {
		return nil, &ContentUnavailableError{Provider: hp.Name(), StatusCode: http.StatusOK, Reason: parsed.Error}
	}

	result := &Result{
		Links: parsed.Data.Links,
		Metadata: Metadata{
			Title:         parsed.Data.Metadata.Title,
			Description:   parsed.Data.Metadata.Description,
			PublishedTime: parsed.Data.Metadata.PublishedTime,
			StatusCode:    parsed.Data.Metadata.StatusCode,
			SourceURL:     parsed.Data.Metadata.SourceURL,
			Provider:      hp.Name(),
			CreditsUsed:   creditsOrDefault(parsed.Data.Metadata.CreditsUsed),
		},
	}
	switch format {
	case FormatHTML:
		result.Content = parsed.Data.HTML
	default:
		result.Content = parsed.Data.Markdown
	}

	if result.Content == "" && len(result.Links) == 0 {
		return nil, &ContentUnavailableError{Provider: hp.Name(), StatusCode: http.StatusOK, Reason: "empty body"}
	}
	return result, nil
}

// mapResponse is the wire format of the provider's site-map endpoint.
type mapResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`
	Links   []string `json:"links"`
}

// Map asks the provider for known URLs on the site. Costs one credit per
// call regardless of result size.
func (hp *HostedProvider) Map(ctx context.Context, baseURL string, limit int) ([]string, int, error) {
	reqBody := map[string]any{"url": baseURL}
	if limit > 0 {
		reqBody["limit"] = limit
	}

	var parsed mapResponse
	if err := hp.post(ctx, "/v1/map", hp.opts.MapTimeout, reqBody, &parsed); err != nil {
		return nil, 1, err
	}
	if !parsed.Success {
		return nil, 1, &ContentUnavailableError{Provider: hp.Name(), StatusCode: http.StatusOK, Reason: parsed.Error}
	}
	return parsed.Links, 1, nil
}

// post sends an authenticated JSON request and decodes the response,
// translating HTTP status codes into the reader error taxonomy.
func (hp *HostedProvider) post(ctx context.Context, path string, timeout time.Duration, body, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, hp.opts.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+hp.opts.APIKey)

	resp, err := hp.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: provider rejected API key (HTTP %d)", ErrConfiguration, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitedError{Provider: hp.Name(), RetryAfter: retryAfter(resp)}
	case resp.StatusCode == http.StatusUnprocessableEntity:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ContentUnavailableError{Provider: hp.Name(), StatusCode: resp.StatusCode, Reason: string(msg)}
	case resp.StatusCode >= 500:
		return &ServiceUnavailableError{Provider: hp.Name(), StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%s: unexpected HTTP status %d", hp.Name(), resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// retryAfter parses the Retry-After header if the provider sent one.
func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// creditsOrDefault assumes one credit when the provider omits the count.
func creditsOrDefault(reported int) int {
	if reported <= 0 {
		return 1
	}
	return reported
}
