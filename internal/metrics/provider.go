package metrics

import (
	"context"
	"io"
	"time"

	"github.com/conneroisu/apigateway/internal/content"
	gwerrors "github.com/conneroisu/apigateway/internal/errors"
)

const (
	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

// instrumentedProvider records every provider call. Results and errors pass
// through unchanged.
type instrumentedProvider struct {
	next    content.Provider
	metrics *Metrics
}

// InstrumentProvider wraps p so its operations are counted and timed. With nil
// metrics p is returned as is.
func InstrumentProvider(p content.Provider, m *Metrics) content.Provider {
	if m == nil {
		return p
	}
	return &instrumentedProvider{next: p, metrics: m}
}

// Close closes the wrapped provider when it holds resources.
func (ip *instrumentedProvider) Close() error {
	if c, ok := ip.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (ip *instrumentedProvider) Name() content.ProviderName { return ip.next.Name() }

func (ip *instrumentedProvider) observe(operation string, start time.Time, found bool, err error) {
	outcome := outcomeOK
	switch {
	case gwerrors.IsCode(err, gwerrors.CodeContentNotFound):
		outcome = outcomeNotFound
	case err != nil:
		outcome = outcomeError
	case !found:
		outcome = outcomeNotFound
	}
	ip.metrics.recordProviderOp(string(ip.next.Name()), operation, outcome, time.Since(start))
}

func (ip *instrumentedProvider) GetArticles(ctx context.Context) ([]content.Article, error) {
	start := time.Now()
	articles, err := ip.next.GetArticles(ctx)
	ip.observe("get_articles", start, true, err)
	return articles, err
}

func (ip *instrumentedProvider) GetArticleBySlug(ctx context.Context, slug string) (*content.Article, error) {
	start := time.Now()
	article, err := ip.next.GetArticleBySlug(ctx, slug)
	ip.observe("get_article_by_slug", start, article != nil, err)
	return article, err
}

func (ip *instrumentedProvider) GetPages(ctx context.Context) ([]content.Page, error) {
	start := time.Now()
	pages, err := ip.next.GetPages(ctx)
	ip.observe("get_pages", start, true, err)
	return pages, err
}

func (ip *instrumentedProvider) GetPageBySlug(ctx context.Context, slug string) (*content.Page, error) {
	start := time.Now()
	page, err := ip.next.GetPageBySlug(ctx, slug)
	ip.observe("get_page_by_slug", start, page != nil, err)
	return page, err
}
