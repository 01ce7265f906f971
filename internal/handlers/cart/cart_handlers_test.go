package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/alhaqil/storefront/internal/auth"
	"github.com/alhaqil/storefront/internal/backend"
	cartengine "github.com/alhaqil/storefront/internal/cart"
	mw "github.com/alhaqil/storefront/internal/middleware"
	"github.com/alhaqil/storefront/internal/models"
	"github.com/alhaqil/storefront/internal/store"
)

type fakeRemote struct {
	err     error
	updates int
}

func (f *fakeRemote) FetchCart(ctx context.Context, token string, customerID uint, locale string) ([]backend.CartEntry, error) {
	return nil, f.err
}

func (f *fakeRemote) UpdateCart(ctx context.Context, token string, customerID uint, productID int, quantity uint, locale string) error {
	f.updates++
	return f.err
}

func (f *fakeRemote) ClearCart(ctx context.Context, token string, customerID uint, locale string) error {
	return f.err
}

type testEnv struct {
	store   *store.Store
	remote  *fakeRemote
	handler *CartHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.CartLine{}, &models.Session{}))

	s := store.New(db)
	remote := &fakeRemote{}
	engine := cartengine.NewEngine(s, remote, nil, slog.Default())
	sessions := auth.NewManager(s, nil, engine, nil, slog.Default())

	return &testEnv{
		store:   s,
		remote:  remote,
		handler: &CartHandler{Engine: engine, Auth: sessions},
	}
}

// doJSON builds an echo context with the session cookie set and runs the
// handler behind the session middleware, like the real router does.
func (env *testEnv) doJSON(t *testing.T, method, target string, body any, h echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(&http.Cookie{Name: mw.SessionCookie, Value: "s1", Path: "/"})
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	return rec, mw.EnsureSession()(h)(c)
}

func (env *testEnv) authenticate(t *testing.T) {
	t.Helper()
	require.NoError(t, env.store.SaveSession(&models.Session{
		SessionID: "s1", Token: "tok", UserID: 7, IssuedAt: time.Now().Unix(),
	}))
}

func TestAddToCartGuest(t *testing.T) {
	env := newTestEnv(t)

	load := map[string]any{"product_id": 3, "name_en": "Dates", "price": "12.345"}
	rec, err := env.doJSON(t, http.MethodPost, "/api/v1/cart", load, env.handler.AddToCart)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.CartLine
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.ProductID)
	require.Equal(t, uint(1), resp.Quantity, "quantity defaults to one")
	require.Zero(t, env.remote.updates, "guest writes stay local")
}

func TestAddToCartIncrementsExistingLine(t *testing.T) {
	env := newTestEnv(t)

	load := map[string]any{"product_id": 3, "name_en": "Dates", "price": "12.345", "quantity": 2}
	_, err := env.doJSON(t, http.MethodPost, "/api/v1/cart", load, env.handler.AddToCart)
	require.NoError(t, err)
	rec, err := env.doJSON(t, http.MethodPost, "/api/v1/cart", load, env.handler.AddToCart)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.CartLine
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, uint(4), resp.Quantity)

	lines, err := env.store.CartLines("s1")
	require.NoError(t, err)
	require.Len(t, lines, 1, "one line per product")
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.doJSON(t, http.MethodPost, "/api/v1/cart",
		map[string]any{"product_id": 3, "price": "1.000", "quantity": 2}, env.handler.AddToCart)
	require.NoError(t, err)

	withParam := func(c echo.Context) error {
		c.SetParamNames("id")
		c.SetParamValues("3")
		return env.handler.UpdateQuantity(c)
	}
	rec, err := env.doJSON(t, http.MethodPatch, "/api/v1/cart/3", map[string]int{"quantity": 0}, withParam)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []models.CartLine
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp)
}

func TestRemoteFailureStillReturnsLocalState(t *testing.T) {
	env := newTestEnv(t)
	env.authenticate(t)
	env.remote.err = &backend.APIError{Status: 500, Message: "upstream down"}

	load := map[string]any{"product_id": 3, "price": "1.000"}
	rec, err := env.doJSON(t, http.MethodPost, "/api/v1/cart", load, env.handler.AddToCart)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	lines, err := env.store.CartLines("s1")
	require.NoError(t, err)
	require.Len(t, lines, 1, "local write stands when the remote one fails")
}

func TestRemoteUnauthorizedTearsDownSession(t *testing.T) {
	env := newTestEnv(t)
	env.authenticate(t)
	env.remote.err = backend.ErrUnauthorized

	load := map[string]any{"product_id": 3, "price": "1.000"}
	_, err := env.doJSON(t, http.MethodPost, "/api/v1/cart", load, env.handler.AddToCart)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusUnauthorized, he.Code)

	_, err = env.store.Session("s1")
	require.ErrorIs(t, err, store.ErrNotFound, "stale token must be dropped on 401")
}
