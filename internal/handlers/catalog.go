package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/alhaqil/storefront/internal/backend"
	"github.com/alhaqil/storefront/internal/catalog"
	"github.com/alhaqil/storefront/internal/logging"
	mw "github.com/alhaqil/storefront/internal/middleware"
)

type CatalogHandler struct {
	Catalog *catalog.Service
}

func (h *CatalogHandler) Products(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog_products")

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	categoryID, _ := strconv.Atoi(c.QueryParam("category_id"))

	res, err := h.Catalog.Products(ctx, catalog.Filter{
		SessionID:  mw.SessionID(c),
		CategoryID: categoryID,
		Query:      c.QueryParam("q"),
		Page:       page,
		Size:       size,
		Locale:     mw.Locale(c),
	})
	if err != nil {
		l.Error("products_fetch_failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, remoteMessage(err))
	}
	return c.JSON(http.StatusOK, res)
}

func (h *CatalogHandler) Product(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	product, err := h.Catalog.Product(ctx, id, mw.Locale(c))
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		logging.FromContext(ctx).Error("product_fetch_failed", "product_id", id, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, remoteMessage(err))
	}
	return c.JSON(http.StatusOK, product)
}

func (h *CatalogHandler) Categories(c echo.Context) error {
	ctx := c.Request().Context()

	cats, err := h.Catalog.Categories(ctx, mw.Locale(c))
	if err != nil {
		logging.FromContext(ctx).Error("categories_fetch_failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, remoteMessage(err))
	}
	return c.JSON(http.StatusOK, cats)
}

func (h *CatalogHandler) Services(c echo.Context) error {
	ctx := c.Request().Context()

	services, err := h.Catalog.Services(ctx, mw.Locale(c))
	if err != nil {
		logging.FromContext(ctx).Error("services_fetch_failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, remoteMessage(err))
	}
	return c.JSON(http.StatusOK, services)
}

func (h *CatalogHandler) BlogPosts(c echo.Context) error {
	ctx := c.Request().Context()

	posts, err := h.Catalog.BlogPosts(ctx, mw.Locale(c))
	if err != nil {
		logging.FromContext(ctx).Error("blog_fetch_failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, remoteMessage(err))
	}
	return c.JSON(http.StatusOK, posts)
}

func (h *CatalogHandler) BlogPost(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid post id")
	}

	post, err := h.Catalog.BlogPost(ctx, id, mw.Locale(c))
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "post not found")
		}
		logging.FromContext(ctx).Error("blog_post_fetch_failed", "post_id", id, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, remoteMessage(err))
	}
	return c.JSON(http.StatusOK, post)
}

// Filters returns the session's remembered search and category selection,
// restored when the storefront reloads.
func (h *CatalogHandler) Filters(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"last_search":       h.Catalog.LastSearch(mw.SessionID(c)),
		"selected_category": h.Catalog.SelectedCategory(mw.SessionID(c)),
	})
}
