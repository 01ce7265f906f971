package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alhaqil/storefront/internal/backend"
	"github.com/alhaqil/storefront/internal/store"
	"github.com/alhaqil/storefront/internal/util"
)

// Backend is the read surface of the commerce API the catalog consumes.
type Backend interface {
	Products(ctx context.Context, f backend.ProductFilter) ([]backend.Product, int64, error)
	Product(ctx context.Context, id int, locale string) (*backend.Product, error)
	Categories(ctx context.Context, locale string) ([]backend.Category, error)
	Services(ctx context.Context, locale string) ([]backend.Service, error)
	BlogPosts(ctx context.Context, locale string) ([]backend.BlogPost, error)
	BlogPost(ctx context.Context, id int, locale string) (*backend.BlogPost, error)
}

// Page is one paginated product listing.
type Page struct {
	Data       []backend.Product `json:"data"`
	Page       int               `json:"page"`
	Size       int               `json:"size"`
	Total      int64             `json:"total"`
	TotalPages int64             `json:"total_pages"`
}

// Service is the request/response query layer over the backend catalog.
// No state machine here beyond the session's remembered filter toggles.
type Service struct {
	api   Backend
	cache Cache
	prefs *store.Store
	log   *slog.Logger
}

func NewService(api Backend, cache Cache, prefs *store.Store, log *slog.Logger) *Service {
	return &Service{api: api, cache: cache, prefs: prefs, log: log}
}

// Filter narrows the listing. A search query is remembered per session; a
// category toggle is remembered too, so reloading keeps the selection.
type Filter struct {
	SessionID  string
	CategoryID int
	Query      string
	Page       int
	Size       int
	Locale     string
}

func (s *Service) Products(ctx context.Context, f Filter) (*Page, error) {
	_, size := util.Calculate(f.Page, f.Size)
	page := f.Page
	if page < 1 {
		page = 1
	}

	s.rememberFilters(f)

	// Only unfiltered listings are cached; filtered reads are cheap and
	// personal enough not to bother.
	key := ""
	if f.Query == "" && f.CategoryID == 0 {
		key = fmt.Sprintf("products:%s:p%d:s%d", f.Locale, page, size)
		var cached Page
		if err := s.cacheGet(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	items, total, err := s.api.Products(ctx, backend.ProductFilter{
		CategoryID: f.CategoryID,
		Query:      f.Query,
		Page:       page,
		Size:       size,
		Locale:     f.Locale,
	})
	if err != nil {
		return nil, err
	}

	result := &Page{
		Data:       items,
		Page:       page,
		Size:       size,
		Total:      total,
		TotalPages: (total + int64(size) - 1) / int64(size),
	}
	if key != "" {
		s.cacheSet(ctx, key, result)
	}
	return result, nil
}

func (s *Service) Product(ctx context.Context, id int, locale string) (*backend.Product, error) {
	return s.api.Product(ctx, id, locale)
}

func (s *Service) Categories(ctx context.Context, locale string) ([]backend.Category, error) {
	key := "categories:" + locale
	var cached []backend.Category
	if err := s.cacheGet(ctx, key, &cached); err == nil {
		return cached, nil
	}
	cats, err := s.api.Categories(ctx, locale)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, cats)
	return cats, nil
}

func (s *Service) Services(ctx context.Context, locale string) ([]backend.Service, error) {
	return s.api.Services(ctx, locale)
}

func (s *Service) BlogPosts(ctx context.Context, locale string) ([]backend.BlogPost, error) {
	return s.api.BlogPosts(ctx, locale)
}

func (s *Service) BlogPost(ctx context.Context, id int, locale string) (*backend.BlogPost, error) {
	return s.api.BlogPost(ctx, id, locale)
}

// SelectedCategory returns the category remembered for the session, 0 if none.
func (s *Service) SelectedCategory(sessionID string) int {
	v, err := s.prefs.Preference(sessionID, store.PrefSelectedCategory)
	if err != nil {
		return 0
	}
	var id int
	fmt.Sscanf(v, "%d", &id)
	return id
}

// LastSearch returns the session's last search query.
func (s *Service) LastSearch(sessionID string) string {
	v, _ := s.prefs.Preference(sessionID, store.PrefLastSearch)
	return v
}

func (s *Service) rememberFilters(f Filter) {
	if f.SessionID == "" {
		return
	}
	if f.Query != "" {
		if err := s.prefs.SetPreference(f.SessionID, store.PrefLastSearch, f.Query); err != nil {
			s.log.Warn("preference_save_failed", "key", store.PrefLastSearch, "error", err)
		}
	}
	if f.CategoryID > 0 {
		if err := s.prefs.SetPreference(f.SessionID, store.PrefSelectedCategory, fmt.Sprintf("%d", f.CategoryID)); err != nil {
			s.log.Warn("preference_save_failed", "key", store.PrefSelectedCategory, "error", err)
		}
	}
}

func (s *Service) cacheGet(ctx context.Context, key string, v any) error {
	if s.cache == nil {
		return ErrCacheMiss
	}
	err := s.cache.Get(ctx, key, v)
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		s.log.Warn("catalog_cache_get_failed", "key", key, "error", err)
	}
	return err
}

func (s *Service) cacheSet(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, v); err != nil {
		s.log.Warn("catalog_cache_set_failed", "key", key, "error", err)
	}
}
