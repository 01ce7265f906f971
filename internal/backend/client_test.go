package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchCart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/cart", r.URL.Path)
		require.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

		var req struct {
			CustomerID uint `json:"customer_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, uint(42), req.CustomerID)

		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{
			{"product_id": 7, "name_en": "Dates", "price": "3.500", "quantity": 2},
		}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	entries, err := c.FetchCart(context.Background(), "token-1", 42, "en")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 7, entries[0].ProductID)
	require.Equal(t, uint(2), entries[0].Quantity)
}

func TestUnauthorizedIsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.ClearCart(context.Background(), "stale", 1, "en")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestServerMessagePreferred(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": "coupon expired"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.ApplyCoupon(context.Background(), "t", 1, "OLD", "10.000", "en")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	require.Equal(t, "coupon expired", apiErr.Message)
}

func TestGenericMessageFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("<html>boom</html>"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.UpdateCart(context.Background(), "t", 1, 2, 3, "en")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "request failed", apiErr.Message)
}

func TestLoginRejectsIncompleteResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"token": ""})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Login(context.Background(), "a@b.c", "pw", "en")
	require.Error(t, err)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL)
	for i := 0; i < 5; i++ {
		require.Error(t, c.ClearCart(context.Background(), "t", 1, "en"))
	}

	// Breaker is open now; the request never reaches the server.
	err := c.ClearCart(context.Background(), "t", 1, "en")
	require.Error(t, err)
	var apiErr *APIError
	require.False(t, errors.As(err, &apiErr))
}
