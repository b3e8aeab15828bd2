package content

import "context"

// StaticProvider serves no content. It is bound when no backend is configured
// so the gateway stays servable.
type StaticProvider struct{}

var _ Provider = StaticProvider{}

// NewStaticProvider returns the fallback provider.
func NewStaticProvider() StaticProvider {
	return StaticProvider{}
}

func (StaticProvider) Name() ProviderName { return ProviderStatic }

func (StaticProvider) GetArticles(context.Context) ([]Article, error) {
	return []Article{}, nil
}

func (StaticProvider) GetArticleBySlug(context.Context, string) (*Article, error) {
	return nil, nil
}

func (StaticProvider) GetPages(context.Context) ([]Page, error) {
	return []Page{}, nil
}

func (StaticProvider) GetPageBySlug(context.Context, string) (*Page, error) {
	return nil, nil
}
