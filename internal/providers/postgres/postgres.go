// Package postgres implements a content provider that reads from PostgreSQL
// through a pgx connection pool.
//
// Expected schema:
//
//	CREATE TABLE articles (
//	    slug         text PRIMARY KEY,
//	    title        text NOT NULL,
//	    excerpt      text,
//	    body         text NOT NULL,
//	    tags         text[] NOT NULL DEFAULT '{}',
//	    author       text,
//	    published_at timestamptz NOT NULL,
//	    updated_at   timestamptz
//	);
//
//	CREATE TABLE pages (
//	    slug       text PRIMARY KEY,
//	    title      text NOT NULL,
//	    body       text NOT NULL,
//	    updated_at timestamptz
//	);
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conneroisu/apigateway/internal/content"
	"github.com/conneroisu/apigateway/internal/logging"
)

const (
	articleColumns = `slug, title, excerpt, body, tags, author, published_at, updated_at`
	pageColumns    = `slug, title, body, updated_at`

	listArticlesSQL = `SELECT ` + articleColumns + ` FROM articles ORDER BY published_at DESC, slug`
	getArticleSQL   = `SELECT ` + articleColumns + ` FROM articles WHERE slug = $1`
	listPagesSQL    = `SELECT ` + pageColumns + ` FROM pages ORDER BY slug`
	getPageSQL      = `SELECT ` + pageColumns + ` FROM pages WHERE slug = $1`
)

// DB is the subset of *pgxpool.Pool the provider uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Options configures the connection pool.
type Options struct {
	DSN      string
	MaxConns int32
}

// Provider serves content from PostgreSQL.
type Provider struct {
	db     DB
	close  func()
	logger logging.Logger
}

var _ content.Provider = (*Provider)(nil)

// New opens a pool and checks connectivity.
func New(ctx context.Context, opts Options, logger logging.Logger) (*Provider, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	return NewWithDB(pool, pool.Close, logger), nil
}

// NewWithDB builds a provider over an existing connection. closeFn may be nil.
func NewWithDB(db DB, closeFn func(), logger logging.Logger) *Provider {
	if db == nil {
		panic("postgres db cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Provider{
		db:     db,
		close:  closeFn,
		logger: logger.WithComponent("postgres_provider"),
	}
}

// Close releases the pool.
func (p *Provider) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}

func (p *Provider) Name() content.ProviderName { return content.ProviderPostgres }

func (p *Provider) GetArticles(ctx context.Context) ([]content.Article, error) {
	rows, err := p.db.Query(ctx, listArticlesSQL)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	articles := []content.Article{}
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading articles: %w", err)
	}

	return articles, nil
}

func (p *Provider) GetArticleBySlug(ctx context.Context, slug string) (*content.Article, error) {
	article, err := scanArticle(p.db.QueryRow(ctx, getArticleSQL, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying article %q: %w", slug, err)
	}
	return article, nil
}

func (p *Provider) GetPages(ctx context.Context) ([]content.Page, error) {
	rows, err := p.db.Query(ctx, listPagesSQL)
	if err != nil {
		return nil, fmt.Errorf("querying pages: %w", err)
	}
	defer rows.Close()

	pages := []content.Page{}
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning page: %w", err)
		}
		pages = append(pages, *page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading pages: %w", err)
	}

	return pages, nil
}

func (p *Provider) GetPageBySlug(ctx context.Context, slug string) (*content.Page, error) {
	page, err := scanPage(p.db.QueryRow(ctx, getPageSQL, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying page %q: %w", slug, err)
	}
	return page, nil
}

func scanArticle(row pgx.Row) (*content.Article, error) {
	var (
		article content.Article
		excerpt *string
		author  *string
		updated *time.Time
	)
	if err := row.Scan(
		&article.Slug,
		&article.Title,
		&excerpt,
		&article.Body,
		&article.Tags,
		&author,
		&article.PublishedAt,
		&updated,
	); err != nil {
		return nil, err
	}

	if excerpt != nil {
		article.Excerpt = *excerpt
	}
	if author != nil {
		article.Author = *author
	}
	if article.Tags == nil {
		article.Tags = []string{}
	}
	article.UpdatedAt = updated

	return &article, nil
}

func scanPage(row pgx.Row) (*content.Page, error) {
	var page content.Page
	if err := row.Scan(&page.Slug, &page.Title, &page.Body, &page.UpdatedAt); err != nil {
		return nil, err
	}
	return &page, nil
}
