// Package content defines the provider contract for article and page retrieval
// and the service that route handlers depend on.
package content

import (
	"context"
	"time"
)

// ProviderName identifies a content backend.
type ProviderName string

const (
	ProviderStatic   ProviderName = "static"
	ProviderCMS      ProviderName = "primary-cms"
	ProviderFile     ProviderName = "file"
	ProviderPostgres ProviderName = "postgres"
)

var providerNames = []ProviderName{ProviderStatic, ProviderCMS, ProviderFile, ProviderPostgres}

// ProviderNames returns the closed set of provider identifiers.
func ProviderNames() []ProviderName {
	out := make([]ProviderName, len(providerNames))
	copy(out, providerNames)
	return out
}

// Valid reports whether n is a known provider.
func (n ProviderName) Valid() bool {
	for _, known := range providerNames {
		if n == known {
			return true
		}
	}
	return false
}

func (n ProviderName) String() string { return string(n) }

// Article is a published blog entry.
type Article struct {
	Slug        string     `json:"slug" yaml:"slug"`
	Title       string     `json:"title" yaml:"title"`
	Excerpt     string     `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`
	Body        string     `json:"body" yaml:"body"`
	Tags        []string   `json:"tags" yaml:"tags"`
	Author      string     `json:"author,omitempty" yaml:"author,omitempty"`
	PublishedAt time.Time  `json:"publishedAt" yaml:"publishedAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// Page is a standalone site page.
type Page struct {
	Slug      string     `json:"slug" yaml:"slug"`
	Title     string     `json:"title" yaml:"title"`
	Body      string     `json:"body" yaml:"body"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// Provider is a content backend. List operations return an empty, non-nil
// slice when there is nothing to return. By-slug operations return nil with a
// nil error when the item does not exist. Results are never partially populated.
type Provider interface {
	Name() ProviderName
	GetArticles(ctx context.Context) ([]Article, error)
	GetArticleBySlug(ctx context.Context, slug string) (*Article, error)
	GetPages(ctx context.Context) ([]Page, error)
	GetPageBySlug(ctx context.Context, slug string) (*Page, error)
}
