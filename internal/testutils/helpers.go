// Package testutils holds fixtures shared by the gateway's package tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/apigateway/internal/config"
	"github.com/conneroisu/apigateway/internal/content"
)

// CreateContentDir creates a content tree for the file provider. Keys are
// file names relative to the articles/ and pages/ directories.
func CreateContentDir(t *testing.T, articles, pages map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, body := range articles {
		WriteDocument(t, dir, "articles", name, body)
	}
	for name, body := range pages {
		WriteDocument(t, dir, "pages", name, body)
	}
	return dir
}

// WriteDocument writes one YAML document under root/kind, creating the
// directory as needed.
func WriteDocument(t *testing.T, root, kind, name, body string) string {
	t.Helper()

	dir := filepath.Join(root, kind)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// CreateTestConfig returns a default configuration listening on an
// ephemeral loopback port.
func CreateTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = time.Second
	return cfg
}

// SampleArticles returns articles ordered newest first.
func SampleArticles() []content.Article {
	updated := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	return []content.Article{
		{
			Slug:        "newer-post",
			Title:       "Newer",
			Excerpt:     "Short",
			Body:        "Second post",
			Tags:        []string{},
			Author:      "Conner",
			PublishedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
			UpdatedAt:   &updated,
		},
		{
			Slug:        "hello-world",
			Title:       "Hello",
			Body:        "First post",
			Tags:        []string{"go", "web"},
			PublishedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		},
	}
}

// SamplePages returns pages ordered by slug.
func SamplePages() []content.Page {
	return []content.Page{
		{Slug: "about", Title: "About", Body: "About us"},
		{Slug: "contact", Title: "Contact", Body: "Write to us"},
	}
}
