// Package file implements a content provider backed by YAML documents on disk.
//
// Layout:
//
//	<dir>/articles/<slug>.yaml
//	<dir>/pages/<slug>.yaml
//
// A document without a slug takes it from the file name. The whole tree is
// parsed into an immutable snapshot; a failed reload keeps the previous one.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/apigateway/internal/content"
	"github.com/conneroisu/apigateway/internal/logging"
	"github.com/conneroisu/apigateway/internal/validation"
	"github.com/conneroisu/apigateway/internal/watcher"
)

const (
	articlesDir = "articles"
	pagesDir    = "pages"

	defaultDebounce = 100 * time.Millisecond
)

var yamlExtensions = []string{".yaml", ".yml"}

// Options configures the file provider.
type Options struct {
	Dir      string
	Watch    bool
	Debounce time.Duration
}

type snapshot struct {
	articles      []content.Article
	articleBySlug map[string]int
	pages         []content.Page
	pageBySlug    map[string]int
}

// Provider serves content from a directory of YAML documents.
type Provider struct {
	dir     string
	logger  logging.Logger
	mu      sync.RWMutex
	snap    *snapshot
	watcher *watcher.FileWatcher
	cancel  context.CancelFunc
}

var _ content.Provider = (*Provider)(nil)

// New loads the directory and, when opts.Watch is set, starts reloading on
// change until Close is called.
func New(opts Options, logger logging.Logger) (*Provider, error) {
	if err := validation.ValidatePath(opts.Dir); err != nil {
		return nil, fmt.Errorf("content dir: %w", err)
	}
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("content dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content dir %s is not a directory", opts.Dir)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	p := &Provider{
		dir:    filepath.Clean(opts.Dir),
		logger: logger.WithComponent("file_provider"),
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}

	if opts.Watch {
		if err := p.watch(opts.Debounce); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *Provider) watch(debounce time.Duration) error {
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fw, err := watcher.NewFileWatcher(debounce, p.logger)
	if err != nil {
		return err
	}
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.YAMLFilter)
	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		p.logger.Info(context.Background(), "Content changed, reloading", "files", len(events))
		return p.Reload()
	})

	if err := fw.AddRecursive(p.dir); err != nil {
		_ = fw.Stop()
		return fmt.Errorf("watching %s: %w", p.dir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	fw.Start(ctx)

	p.watcher = fw
	p.cancel = cancel
	return nil
}

// Reload re-reads the directory and swaps in the new snapshot.
func (p *Provider) Reload() error {
	snap, err := load(p.dir)
	if err != nil {
		p.logger.Error(context.Background(), err, "Failed to load content", "dir", p.dir)
		return err
	}

	p.mu.Lock()
	p.snap = snap
	p.mu.Unlock()

	p.logger.Debug(context.Background(), "Content loaded",
		"articles", len(snap.articles),
		"pages", len(snap.pages))
	return nil
}

// Close stops watching the directory.
func (p *Provider) Close() error {
	if p.watcher == nil {
		return nil
	}
	p.cancel()
	return p.watcher.Stop()
}

func (p *Provider) current() *snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

func (p *Provider) Name() content.ProviderName { return content.ProviderFile }

func (p *Provider) GetArticles(context.Context) ([]content.Article, error) {
	snap := p.current()
	out := make([]content.Article, len(snap.articles))
	copy(out, snap.articles)
	return out, nil
}

func (p *Provider) GetArticleBySlug(_ context.Context, slug string) (*content.Article, error) {
	snap := p.current()
	i, ok := snap.articleBySlug[slug]
	if !ok {
		return nil, nil
	}
	article := snap.articles[i]
	return &article, nil
}

func (p *Provider) GetPages(context.Context) ([]content.Page, error) {
	snap := p.current()
	out := make([]content.Page, len(snap.pages))
	copy(out, snap.pages)
	return out, nil
}

func (p *Provider) GetPageBySlug(_ context.Context, slug string) (*content.Page, error) {
	snap := p.current()
	i, ok := snap.pageBySlug[slug]
	if !ok {
		return nil, nil
	}
	page := snap.pages[i]
	return &page, nil
}

func load(dir string) (*snapshot, error) {
	snap := &snapshot{
		articles:      []content.Article{},
		articleBySlug: map[string]int{},
		pages:         []content.Page{},
		pageBySlug:    map[string]int{},
	}

	err := readDocuments(filepath.Join(dir, articlesDir), func(path, stem string, data []byte) error {
		var article content.Article
		if err := yaml.Unmarshal(data, &article); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		if article.Slug == "" {
			article.Slug = stem
		}
		if err := checkDocument(path, article.Slug, article.Title); err != nil {
			return err
		}
		if _, dup := snap.articleBySlug[article.Slug]; dup {
			return fmt.Errorf("duplicate article slug %q in %s", article.Slug, path)
		}
		if article.Tags == nil {
			article.Tags = []string{}
		}
		snap.articleBySlug[article.Slug] = -1
		snap.articles = append(snap.articles, article)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = readDocuments(filepath.Join(dir, pagesDir), func(path, stem string, data []byte) error {
		var page content.Page
		if err := yaml.Unmarshal(data, &page); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		if page.Slug == "" {
			page.Slug = stem
		}
		if err := checkDocument(path, page.Slug, page.Title); err != nil {
			return err
		}
		if _, dup := snap.pageBySlug[page.Slug]; dup {
			return fmt.Errorf("duplicate page slug %q in %s", page.Slug, path)
		}
		snap.pageBySlug[page.Slug] = -1
		snap.pages = append(snap.pages, page)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// newest first, slug breaks ties
	sort.SliceStable(snap.articles, func(i, j int) bool {
		a, b := snap.articles[i], snap.articles[j]
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.Slug < b.Slug
	})
	sort.SliceStable(snap.pages, func(i, j int) bool {
		return snap.pages[i].Slug < snap.pages[j].Slug
	})

	for i, a := range snap.articles {
		snap.articleBySlug[a.Slug] = i
	}
	for i, pg := range snap.pages {
		snap.pageBySlug[pg.Slug] = i
	}

	return snap, nil
}

// readDocuments calls fn for every YAML file directly inside dir. A missing
// dir holds no documents.
func readDocuments(dir string, fn func(path, stem string, data []byte) error) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if validation.ValidateFileExtension(name, yamlExtensions) != nil {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if err := fn(path, stem, data); err != nil {
			return err
		}
	}

	return nil
}

func checkDocument(path, slug, title string) error {
	if err := validation.ValidateSlug(slug); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%s: title is required", path)
	}
	return nil
}
