package content

import "context"

// Service exposes the bound provider to route handlers. It adds no caching,
// retries or timeouts, and returns provider failures unchanged.
type Service struct {
	provider Provider
}

// NewService binds the service to a provider for the life of the process.
func NewService(provider Provider) *Service {
	if provider == nil {
		panic("content provider cannot be nil")
	}
	return &Service{provider: provider}
}

// ProviderName returns the bound provider's identifier.
func (s *Service) ProviderName() ProviderName {
	return s.provider.Name()
}

// Provider returns the bound provider.
func (s *Service) Provider() Provider {
	return s.provider
}

func (s *Service) GetArticles(ctx context.Context) ([]Article, error) {
	return s.provider.GetArticles(ctx)
}

func (s *Service) GetArticleBySlug(ctx context.Context, slug string) (*Article, error) {
	return s.provider.GetArticleBySlug(ctx, slug)
}

func (s *Service) GetPages(ctx context.Context) ([]Page, error) {
	return s.provider.GetPages(ctx)
}

func (s *Service) GetPageBySlug(ctx context.Context, slug string) (*Page, error) {
	return s.provider.GetPageBySlug(ctx, slug)
}
