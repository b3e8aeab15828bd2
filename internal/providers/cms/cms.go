// Package cms implements the primary-cms content provider, a JSON client for
// a headless CMS.
//
// The CMS is expected to answer:
//
//	GET {base}/articles         {"data": [Article...]}
//	GET {base}/articles/{slug}  {"data": Article}
//	GET {base}/pages            {"data": [Page...]}
//	GET {base}/pages/{slug}     {"data": Page}
//
// A 404 on a by-slug endpoint means the item does not exist.
package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/conneroisu/apigateway/internal/content"
	"github.com/conneroisu/apigateway/internal/logging"
	"github.com/conneroisu/apigateway/internal/validation"
	"github.com/conneroisu/apigateway/internal/version"
)

// maxBodySize caps a single CMS response.
const maxBodySize = 8 << 20

// Options configures the CMS client.
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Provider fetches content from the CMS over HTTP.
type Provider struct {
	baseURL   *url.URL
	token     string
	client    *http.Client
	userAgent string
	logger    logging.Logger
}

var _ content.Provider = (*Provider)(nil)

// New creates a CMS provider. The timeout applies to each upstream call.
func New(opts Options, logger logging.Logger) (*Provider, error) {
	if err := validation.ValidateURL(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("cms base url: %w", err)
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("cms base url: %w", err)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Provider{
		baseURL:   base,
		token:     opts.Token,
		client:    client,
		userAgent: version.UserAgent(),
		logger:    logger.WithComponent("cms"),
	}, nil
}

func (p *Provider) Name() content.ProviderName { return content.ProviderCMS }

func (p *Provider) GetArticles(ctx context.Context) ([]content.Article, error) {
	var articles []content.Article
	if err := p.list(ctx, "articles", &articles); err != nil {
		return nil, err
	}
	for i := range articles {
		if err := checkArticle(&articles[i]); err != nil {
			return nil, err
		}
	}
	if articles == nil {
		articles = []content.Article{}
	}
	return articles, nil
}

func (p *Provider) GetArticleBySlug(ctx context.Context, slug string) (*content.Article, error) {
	var article content.Article
	found, err := p.get(ctx, "articles/"+url.PathEscape(slug), &article)
	if err != nil || !found {
		return nil, err
	}
	if err := checkArticle(&article); err != nil {
		return nil, err
	}
	return &article, nil
}

func (p *Provider) GetPages(ctx context.Context) ([]content.Page, error) {
	var pages []content.Page
	if err := p.list(ctx, "pages", &pages); err != nil {
		return nil, err
	}
	for i := range pages {
		if err := checkPage(&pages[i]); err != nil {
			return nil, err
		}
	}
	if pages == nil {
		pages = []content.Page{}
	}
	return pages, nil
}

func (p *Provider) GetPageBySlug(ctx context.Context, slug string) (*content.Page, error) {
	var page content.Page
	found, err := p.get(ctx, "pages/"+url.PathEscape(slug), &page)
	if err != nil || !found {
		return nil, err
	}
	if err := checkPage(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

// list fetches a collection endpoint. Unlike items, a missing collection is an
// upstream failure.
func (p *Provider) list(ctx context.Context, path string, out interface{}) error {
	found, err := p.get(ctx, path, out)
	if err != nil {
		return err
	}
	if !found {
		return &StatusError{Path: path, StatusCode: http.StatusNotFound}
	}
	return nil
}

// get fetches {base}/{path} and decodes the "data" member into out. It reports
// false with no error when the CMS answers 404.
func (p *Provider) get(ctx context.Context, path string, out interface{}) (bool, error) {
	endpoint := p.baseURL.String() + "/" + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("building cms request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.userAgent)
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("cms request %s: %w", path, err)
	}
	defer resp.Body.Close()

	p.logger.Debug(ctx, "CMS request completed",
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, &StatusError{Path: path, StatusCode: resp.StatusCode}
	}

	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&envelope); err != nil {
		return false, fmt.Errorf("decoding cms response for %s: %w", path, err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return false, fmt.Errorf("cms response for %s has no data", path)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return false, fmt.Errorf("decoding cms data for %s: %w", path, err)
	}

	return true, nil
}

// StatusError is returned when the CMS answers with an unexpected status.
type StatusError struct {
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cms returned status %d for %s", e.StatusCode, e.Path)
}

func checkArticle(a *content.Article) error {
	if a.Slug == "" || a.Title == "" {
		return fmt.Errorf("cms article missing slug or title")
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return nil
}

func checkPage(p *content.Page) error {
	if p.Slug == "" || p.Title == "" {
		return fmt.Errorf("cms page missing slug or title")
	}
	return nil
}
