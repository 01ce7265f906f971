package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrUnauthorized marks a 401 from any authenticated endpoint. Callers must
// treat it as session expiry and tear the local session down.
var ErrUnauthorized = errors.New("backend: unauthorized")

// APIError is a normalized non-2xx response: the server-supplied message
// when one was present, a generic one otherwise.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %d %s", e.Status, e.Message)
}

// Client talks to the upstream commerce API. All calls go through a shared
// circuit breaker so a dead upstream fails fast instead of piling up
// in-flight requests.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func New(baseURL string) *Client {
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "commerce-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		breaker: cb,
	}
}

func (c *Client) do(ctx context.Context, method, path, token string, body any) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		var buf io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("backend: encode request: %w", err)
			}
			buf = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return nil, fmt.Errorf("backend: %s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("backend: read response: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &APIError{Status: resp.StatusCode, Message: serverMessage(data)}
		}
		return data, nil
	})
}

func serverMessage(data []byte) string {
	var e errorResponse
	if err := json.Unmarshal(data, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return "request failed"
}

func decode[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("backend: malformed response: %w", err)
	}
	return v, nil
}

// FetchCart returns the authoritative server-side cart for a customer.
func (c *Client) FetchCart(ctx context.Context, token string, customerID uint, locale string) ([]CartEntry, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/cart", token, cartRequest{CustomerID: customerID, Language: locale})
	if err != nil {
		return nil, err
	}
	resp, err := decode[cartResponse](data)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// UpdateCart is an absolute-quantity upsert; quantity 0 removes the line.
func (c *Client) UpdateCart(ctx context.Context, token string, customerID uint, productID int, quantity uint, locale string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/cart/update", token, cartUpdateRequest{
		CustomerID: customerID, ProductID: productID, Quantity: quantity, Language: locale,
	})
	return err
}

func (c *Client) ClearCart(ctx context.Context, token string, customerID uint, locale string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/cart/clear", token, cartRequest{CustomerID: customerID, Language: locale})
	return err
}

func (c *Client) Login(ctx context.Context, email, password, locale string) (*LoginResult, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/login", "", loginRequest{Email: email, Password: password, Language: locale})
	if err != nil {
		return nil, err
	}
	resp, err := decode[LoginResult](data)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" || resp.User.ID == 0 {
		return nil, &APIError{Status: http.StatusBadGateway, Message: "login response missing token or user"}
	}
	return &resp, nil
}

func (c *Client) Register(ctx context.Context, firstName, lastName, email, phone, password, locale string) (*LoginResult, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/register", "", registerRequest{
		FirstName: firstName, LastName: lastName, Email: email,
		Phone: phone, Password: password, Language: locale,
	})
	if err != nil {
		return nil, err
	}
	resp, err := decode[LoginResult](data)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/logout", token, nil)
	return err
}

func (c *Client) Checkout(ctx context.Context, token string, req CheckoutRequest) (*CheckoutResult, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/checkout", token, req)
	if err != nil {
		return nil, err
	}
	resp, err := decode[checkoutResponse](data)
	if err != nil {
		return nil, err
	}
	if resp.Data.OrderID == 0 {
		return nil, &APIError{Status: http.StatusBadGateway, Message: "checkout response missing order id"}
	}
	return &resp.Data, nil
}

func (c *Client) ApplyCoupon(ctx context.Context, token string, customerID uint, code, total, locale string) (*CouponResult, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/coupon/apply", token, couponRequest{
		CustomerID: customerID, Code: code, Total: total, Language: locale,
	})
	if err != nil {
		return nil, err
	}
	resp, err := decode[couponResponse](data)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// ProductFilter narrows the product listing. Zero values mean "no filter".
type ProductFilter struct {
	CategoryID int
	Query      string
	Page       int
	Size       int
	Locale     string
}

func (c *Client) Products(ctx context.Context, f ProductFilter) ([]Product, int64, error) {
	q := url.Values{}
	if f.CategoryID > 0 {
		q.Set("category_id", strconv.Itoa(f.CategoryID))
	}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Size > 0 {
		q.Set("size", strconv.Itoa(f.Size))
	}
	if f.Locale != "" {
		q.Set("language", f.Locale)
	}
	path := "/api/products"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	data, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := decode[productsResponse](data)
	if err != nil {
		return nil, 0, err
	}
	return resp.Data, resp.Total, nil
}

func (c *Client) Product(ctx context.Context, id int, locale string) (*Product, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/products/%d?language=%s", id, url.QueryEscape(locale)), "", nil)
	if err != nil {
		return nil, err
	}
	resp, err := decode[productResponse](data)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (c *Client) Categories(ctx context.Context, locale string) ([]Category, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/categories?language="+url.QueryEscape(locale), "", nil)
	if err != nil {
		return nil, err
	}
	resp, err := decode[categoriesResponse](data)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) Services(ctx context.Context, locale string) ([]Service, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/services?language="+url.QueryEscape(locale), "", nil)
	if err != nil {
		return nil, err
	}
	resp, err := decode[servicesResponse](data)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) ServiceRequests(ctx context.Context, token string, customerID uint) ([]ServiceRequest, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/service-requests?customer_id=%d", customerID), token, nil)
	if err != nil {
		return nil, err
	}
	resp, err := decode[serviceRequestsResponse](data)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) BlogPosts(ctx context.Context, locale string) ([]BlogPost, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/blog?language="+url.QueryEscape(locale), "", nil)
	if err != nil {
		return nil, err
	}
	resp, err := decode[blogResponse](data)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) BlogPost(ctx context.Context, id int, locale string) (*BlogPost, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/blog/%d?language=%s", id, url.QueryEscape(locale)), "", nil)
	if err != nil {
		return nil, err
	}
	resp, err := decode[blogPostResponse](data)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (c *Client) Addresses(ctx context.Context, token string, customerID uint) ([]Address, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/addresses?customer_id=%d", customerID), token, nil)
	if err != nil {
		return nil, err
	}
	resp, err := decode[addressesResponse](data)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) CreateAddress(ctx context.Context, token string, customerID uint, addr Address) (*Address, error) {
	body := map[string]any{
		"customer_id":  customerID,
		"title":        addr.Title,
		"country_id":   addr.CountryID,
		"city":         addr.City,
		"address_line": addr.AddressLine,
		"is_default":   addr.IsDefault,
	}
	data, err := c.do(ctx, http.MethodPost, "/api/addresses", token, body)
	if err != nil {
		return nil, err
	}
	resp, err := decode[addressResponse](data)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (c *Client) DeleteAddress(ctx context.Context, token string, customerID, addressID uint) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/addresses/%d?customer_id=%d", addressID, customerID), token, nil)
	return err
}

// SetDefaultAddress flips the default flag upstream; the backend keeps the
// at-most-one-default invariant.
func (c *Client) SetDefaultAddress(ctx context.Context, token string, customerID, addressID uint) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/addresses/%d/default", addressID), token, map[string]any{
		"customer_id": customerID,
	})
	return err
}

func (c *Client) Orders(ctx context.Context, token string, customerID uint) ([]Order, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/orders?customer_id=%d", customerID), token, nil)
	if err != nil {
		return nil, err
	}
	resp, err := decode[ordersResponse](data)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}
