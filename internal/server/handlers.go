package server

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/conneroisu/apigateway/internal/content"
	gwerrors "github.com/conneroisu/apigateway/internal/errors"
	"github.com/conneroisu/apigateway/internal/response"
	"github.com/conneroisu/apigateway/internal/validation"
)

// Handlers implements the gateway's route handlers. Each handler either sends
// one envelope or returns an error for the router's boundary to send.
type Handlers struct {
	serviceName string
	content     *content.Service
}

// NewHandlers creates the route handlers.
//
// Panics if contentService is nil.
func NewHandlers(serviceName string, contentService *content.Service) *Handlers {
	if contentService == nil {
		panic("Handlers: content service cannot be nil")
	}
	return &Handlers{
		serviceName: serviceName,
		content:     contentService,
	}
}

type statusPayload struct {
	OK bool `json:"ok"`
}

type messagePayload struct {
	Message string `json:"message"`
}

// HandleStatus reports liveness.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) error {
	return response.SendSuccess(w, r, statusPayload{OK: true},
		response.WithMeta(response.Meta{"service": h.serviceName}))
}

// HandleMessage greets the name in the path.
func (h *Handlers) HandleMessage(w http.ResponseWriter, r *http.Request) error {
	raw, err := pathParam(r, "name")
	if err != nil {
		return err
	}

	name := validation.NormalizeName(raw)
	if err := validation.ValidateName(name); err != nil {
		return gwerrors.NewValidation("Invalid name", map[string]any{
			"field":  "name",
			"reason": err.Error(),
		})
	}

	return response.SendSuccess(w, r, messagePayload{Message: "hello " + name},
		response.WithMeta(response.Meta{"module": "message"}))
}

func (h *Handlers) HandleArticles(w http.ResponseWriter, r *http.Request) error {
	articles, err := h.content.GetArticles(r.Context())
	if err != nil {
		return err
	}
	if articles == nil {
		articles = []content.Article{}
	}
	return response.SendSuccess(w, r, articles, response.WithMeta(h.contentMeta()))
}

func (h *Handlers) HandleArticle(w http.ResponseWriter, r *http.Request) error {
	slug, err := slugParam(r)
	if err != nil {
		return err
	}

	article, err := h.content.GetArticleBySlug(r.Context(), slug)
	if err != nil {
		return err
	}
	if article == nil {
		return gwerrors.NewContentNotFound("article", slug)
	}
	return response.SendSuccess(w, r, article, response.WithMeta(h.contentMeta()))
}

func (h *Handlers) HandlePages(w http.ResponseWriter, r *http.Request) error {
	pages, err := h.content.GetPages(r.Context())
	if err != nil {
		return err
	}
	if pages == nil {
		pages = []content.Page{}
	}
	return response.SendSuccess(w, r, pages, response.WithMeta(h.contentMeta()))
}

func (h *Handlers) HandlePage(w http.ResponseWriter, r *http.Request) error {
	slug, err := slugParam(r)
	if err != nil {
		return err
	}

	page, err := h.content.GetPageBySlug(r.Context(), slug)
	if err != nil {
		return err
	}
	if page == nil {
		return gwerrors.NewContentNotFound("page", slug)
	}
	return response.SendSuccess(w, r, page, response.WithMeta(h.contentMeta()))
}

func (h *Handlers) contentMeta() response.Meta {
	return response.Meta{
		"module":   "content",
		"provider": h.content.ProviderName().String(),
	}
}

// slugParam reads and validates the {slug} path parameter.
func slugParam(r *http.Request) (string, error) {
	raw, err := pathParam(r, "slug")
	if err != nil {
		return "", err
	}

	slug := validation.NormalizeSlug(raw)
	if err := validation.ValidateSlug(slug); err != nil {
		return "", gwerrors.NewValidation("Invalid slug", map[string]any{
			"field":  "slug",
			"reason": err.Error(),
		})
	}
	return slug, nil
}

// pathParam returns the decoded value of a path parameter. chi matches on
// RawPath when it is set, leaving parameters escaped.
func pathParam(r *http.Request, key string) (string, error) {
	value := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return value, nil
	}

	decoded, err := url.PathUnescape(value)
	if err != nil {
		return "", gwerrors.NewValidation("Invalid "+key, map[string]any{
			"field":  key,
			"reason": err.Error(),
		})
	}
	return decoded, nil
}
