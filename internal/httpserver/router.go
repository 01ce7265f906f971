package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/alhaqil/storefront/internal/auth"
	"github.com/alhaqil/storefront/internal/handlers"
	authhttp "github.com/alhaqil/storefront/internal/handlers/auth"
	carthttp "github.com/alhaqil/storefront/internal/handlers/cart"
	"github.com/alhaqil/storefront/internal/logging"
	mw "github.com/alhaqil/storefront/internal/middleware"
)

type Deps struct {
	Auth     *authhttp.AuthHandler
	Cart     *carthttp.CartHandler
	Checkout *handlers.CheckoutHandler
	Catalog  *handlers.CatalogHandler
	Account  *handlers.AccountHandler

	Sessions *auth.Manager
	Log      *slog.Logger
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.Use(requestLogger(d.Log))
	e.Use(mw.EnsureSession())

	api := e.Group("/api/v1")

	api.POST("/auth/login", d.Auth.Login)
	api.POST("/auth/register", d.Auth.Register)
	api.POST("/auth/logout", d.Auth.Logout)
	api.GET("/auth/session", d.Auth.Session)

	api.GET("/products", d.Catalog.Products)
	api.GET("/products/:id", d.Catalog.Product)
	api.GET("/categories", d.Catalog.Categories)
	api.GET("/services", d.Catalog.Services)
	api.GET("/blog", d.Catalog.BlogPosts)
	api.GET("/blog/:id", d.Catalog.BlogPost)
	api.GET("/filters", d.Catalog.Filters)

	// Cart routes serve guests too; remote writes only happen once a
	// session is authenticated.
	api.GET("/cart", d.Cart.GetCart)
	api.POST("/cart", d.Cart.AddToCart)
	api.PATCH("/cart/:id", d.Cart.UpdateQuantity)
	api.DELETE("/cart/:id", d.Cart.RemoveFromCart)
	api.DELETE("/cart", d.Cart.ClearCart)
	api.POST("/cart/sync", d.Cart.SyncCart)

	authed := api.Group("", mw.RequireAuth(d.Sessions))
	authed.POST("/checkout", d.Checkout.Submit)
	authed.GET("/checkout/confirm", d.Checkout.Confirm)
	authed.GET("/orders/last", d.Checkout.LastOrder)
	authed.POST("/coupon", d.Checkout.ApplyCoupon)
	authed.DELETE("/coupon", d.Checkout.RemoveCoupon)
	authed.GET("/addresses", d.Account.Addresses)
	authed.POST("/addresses", d.Account.CreateAddress)
	authed.DELETE("/addresses/:id", d.Account.DeleteAddress)
	authed.POST("/addresses/:id/default", d.Account.SetDefaultAddress)
	authed.GET("/orders", d.Account.Orders)
	authed.GET("/service-requests", d.Account.ServiceRequests)
}

// requestLogger seeds each request context with the service logger so
// handlers can pull it back out with logging.FromContext.
func requestLogger(l *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logging.IntoContext(c.Request().Context(), l)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
