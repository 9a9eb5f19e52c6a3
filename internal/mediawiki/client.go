// Package mediawiki is a minimal client for the MediaWiki action API,
// covering only the queries the media enricher needs.
package mediawiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "hashtagd (https://github.com/wikihashtags/hashtagd)"

	// The API caps prop=imageinfo at 50 titles per request.
	// See https://www.mediawiki.org/wiki/API:Query
	imageInfoBatchSize = 50
)

// Client talks to the action API of any Wikimedia project, selected
// per-request by domain.
type Client struct {
	httpClient *http.Client

	// endpointFor maps a project domain to its api.php URL. Overridable
	// so tests can point at a local server.
	endpointFor func(domain string) string
}

// Option customizes a Client.
type Option func(*Client)

// WithEndpoint overrides the api.php URL used for every domain.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpointFor = func(string) string { return endpoint }
	}
}

// NewClient builds a Client whose requests are bounded by timeout.
func NewClient(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpointFor: func(domain string) string {
			return fmt.Sprintf("https://%s/w/api.php", domain)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("mediawiki: api error %s: %s", e.Code, e.Info)
}

// RevisionMedia returns the filenames of all media embedded in the given
// revision.
func (c *Client) RevisionMedia(ctx context.Context, domain string, revID int64) ([]string, error) {
	params := url.Values{
		"action":        {"parse"},
		"prop":          {"images"},
		"oldid":         {strconv.FormatInt(revID, 10)},
		"format":        {"json"},
		"formatversion": {"2"},
	}

	var resp struct {
		Error *apiError `json:"error"`
		Parse struct {
			Images []string `json:"images"`
		} `json:"parse"`
	}
	if err := c.get(ctx, domain, params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		// nosuchrevid usually means a deleted page.
		return nil, resp.Error
	}

	return resp.Parse.Images, nil
}

// MediaTypes looks up the media type classification of each filename and
// returns the set of types found (e.g. BITMAP, DRAWING, VIDEO, AUDIO).
// Lookups are batched and continuation tokens are followed until exhausted.
func (c *Client) MediaTypes(ctx context.Context, domain string, filenames []string) (map[string]bool, error) {
	types := make(map[string]bool)

	for start := 0; start < len(filenames); start += imageInfoBatchSize {
		end := start + imageInfoBatchSize
		if end > len(filenames) {
			end = len(filenames)
		}

		titles := make([]string, 0, end-start)
		for _, f := range filenames[start:end] {
			titles = append(titles, "File:"+f)
		}

		if err := c.imageInfoBatch(ctx, domain, titles, types); err != nil {
			return nil, err
		}
	}

	return types, nil
}

// imageInfoBatch queries one batch of titles, following iistart continuation
// tokens, and accumulates the media types into out.
func (c *Client) imageInfoBatch(ctx context.Context, domain string, titles []string, out map[string]bool) error {
	iistart := ""
	for {
		params := url.Values{
			"action":        {"query"},
			"prop":          {"imageinfo"},
			"titles":        {strings.Join(titles, "|")},
			"iiprop":        {"mediatype|url"},
			"format":        {"json"},
			"formatversion": {"2"},
		}
		if iistart != "" {
			params.Set("iistart", iistart)
		}

		var resp struct {
			Error *apiError `json:"error"`
			Query struct {
				Pages []struct {
					Title     string `json:"title"`
					ImageInfo []struct {
						MediaType string `json:"mediatype"`
					} `json:"imageinfo"`
				} `json:"pages"`
			} `json:"query"`
			Continue struct {
				IIStart string `json:"iistart"`
			} `json:"continue"`
		}
		if err := c.get(ctx, domain, params, &resp); err != nil {
			return err
		}
		if resp.Error != nil {
			return resp.Error
		}

		for _, page := range resp.Query.Pages {
			// Pages without imageinfo are broken links; entries
			// without a mediatype are probably filehidden.
			if len(page.ImageInfo) == 0 {
				continue
			}
			if t := page.ImageInfo[0].MediaType; t != "" {
				out[t] = true
			}
		}

		if resp.Continue.IIStart == "" {
			return nil
		}
		iistart = resp.Continue.IIStart
	}
}

func (c *Client) get(ctx context.Context, domain string, params url.Values, v interface{}) error {
	endpoint := c.endpointFor(domain) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("mediawiki: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mediawiki: request %s: %w", domain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mediawiki: %s returned status %d", domain, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("mediawiki: decode response: %w", err)
	}
	return nil
}
