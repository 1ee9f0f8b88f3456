package api

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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greenmart/storefront/pkg/config"
	pkgerrors "github.com/greenmart/storefront/pkg/errors"
	"github.com/greenmart/storefront/pkg/logger"
	"github.com/greenmart/storefront/pkg/metrics"
)

var errLoggerRequired = errors.New("api logger is required")

// Client talks to the storefront backend with centralized logging, metrics,
// and error mapping.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logg       *logger.Logger
	metrics    *metrics.RequestMetrics
}

// ClientParams wire up a backend client. Transport is optional; the session
// store supplies an authenticating one for seller operations.
type ClientParams struct {
	Config    config.APIConfig
	Logger    *logger.Logger
	Metrics   *metrics.RequestMetrics
	Transport http.RoundTripper
}

// NewClient validates the wiring and builds a backend client.
func NewClient(params ClientParams) (*Client, error) {
	if params.Logger == nil {
		return nil, errLoggerRequired
	}
	baseURL := params.Config.BaseURL()
	if baseURL == "" {
		return nil, errors.New("api base url is required")
	}

	httpClient := &http.Client{Timeout: params.Config.Timeout}
	if params.Transport != nil {
		httpClient.Transport = params.Transport
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		logg:       params.Logger,
		metrics:    params.Metrics,
	}, nil
}

// BaseURL reports where the client expects the backend to live.
func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}

// ListProducts fetches the catalog, optionally filtered by category slug.
func (c *Client) ListProducts(ctx context.Context, category string) ([]Product, error) {
	var query url.Values
	if category != "" {
		query = url.Values{"category": []string{category}}
	}
	var products []Product
	err := c.do(ctx, call{
		op:       "list_products",
		method:   http.MethodGet,
		path:     "/products",
		query:    query,
		fallback: "Failed to fetch products",
	}, &products)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) GetProduct(ctx context.Context, id int) (*Product, error) {
	var product Product
	err := c.do(ctx, call{
		op:       "get_product",
		method:   http.MethodGet,
		path:     "/products/" + strconv.Itoa(id),
		fallback: "Product not found",
	}, &product)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := c.do(ctx, call{
		op:       "list_categories",
		method:   http.MethodGet,
		path:     "/categories",
		fallback: "Failed to fetch categories",
	}, &categories)
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// CreateOrder submits an order. Each attempt carries a fresh idempotency key
// so a backend that honors the header can drop duplicates.
func (c *Client) CreateOrder(ctx context.Context, order OrderCreate) (*Order, error) {
	var created Order
	err := c.do(ctx, call{
		op:       "create_order",
		method:   http.MethodPost,
		path:     "/orders",
		body:     order,
		headers:  http.Header{"Idempotency-Key": []string{"order-" + uuid.NewString()}},
		fallback: "Failed to create order",
	}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, call{
		op:       "login",
		method:   http.MethodPost,
		path:     "/auth/login",
		body:     creds,
		fallback: "Login failed",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Signup(ctx context.Context, params SignupParams) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, call{
		op:       "signup",
		method:   http.MethodPost,
		path:     "/auth/signup",
		body:     params,
		fallback: "Signup failed",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Seller operations. These only succeed when the underlying transport
// attaches a seller bearer token; the client itself stays credential-free.

func (c *Client) SellerListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	err := c.do(ctx, call{
		op:       "seller_list_products",
		method:   http.MethodGet,
		path:     "/seller/products",
		fallback: "Failed to fetch products",
	}, &products)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) SellerCreateProduct(ctx context.Context, params ProductParams) (*Product, error) {
	var product Product
	err := c.do(ctx, call{
		op:       "seller_create_product",
		method:   http.MethodPost,
		path:     "/seller/products",
		body:     params,
		fallback: "Failed to create product",
	}, &product)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) SellerUpdateProduct(ctx context.Context, id int, params ProductParams) (*Product, error) {
	var product Product
	err := c.do(ctx, call{
		op:       "seller_update_product",
		method:   http.MethodPut,
		path:     "/seller/products/" + strconv.Itoa(id),
		body:     params,
		fallback: "Failed to update product",
	}, &product)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) SellerDeleteProduct(ctx context.Context, id int) error {
	return c.do(ctx, call{
		op:       "seller_delete_product",
		method:   http.MethodDelete,
		path:     "/seller/products/" + strconv.Itoa(id),
		fallback: "Failed to delete product",
	}, nil)
}

// Admin operations mirror the backend's dashboard plane: product CRUD across
// every seller, plus order and category listings.

func (c *Client) AdminListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	err := c.do(ctx, call{
		op:       "admin_list_products",
		method:   http.MethodGet,
		path:     "/admin/products",
		fallback: "Failed to fetch products",
	}, &products)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) AdminCreateProduct(ctx context.Context, params ProductParams) (*Product, error) {
	var product Product
	err := c.do(ctx, call{
		op:       "admin_create_product",
		method:   http.MethodPost,
		path:     "/admin/products",
		body:     params,
		fallback: "Failed to create product",
	}, &product)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) AdminUpdateProduct(ctx context.Context, id int, params ProductParams) (*Product, error) {
	var product Product
	err := c.do(ctx, call{
		op:       "admin_update_product",
		method:   http.MethodPut,
		path:     "/admin/products/" + strconv.Itoa(id),
		body:     params,
		fallback: "Product not found",
	}, &product)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) AdminDeleteProduct(ctx context.Context, id int) error {
	return c.do(ctx, call{
		op:       "admin_delete_product",
		method:   http.MethodDelete,
		path:     "/admin/products/" + strconv.Itoa(id),
		fallback: "Product not found",
	}, nil)
}

// AdminListOrders returns every order, newest first.
func (c *Client) AdminListOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	err := c.do(ctx, call{
		op:       "admin_list_orders",
		method:   http.MethodGet,
		path:     "/admin/orders",
		fallback: "Failed to fetch orders",
	}, &orders)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) AdminListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := c.do(ctx, call{
		op:       "admin_list_categories",
		method:   http.MethodGet,
		path:     "/admin/categories",
		fallback: "Failed to fetch categories",
	}, &categories)
	if err != nil {
		return nil, err
	}
	return categories, nil
}

type call struct {
	op       string
	method   string
	path     string
	query    url.Values
	headers  http.Header
	body     any
	fallback string
}

func (c *Client) do(ctx context.Context, spec call, out any) error {
	target := c.baseURL + spec.path
	if len(spec.query) > 0 {
		target += "?" + spec.query.Encode()
	}

	var reader io.Reader
	if spec.body != nil {
		payload, err := json.Marshal(spec.body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, spec.method, target, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if spec.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range spec.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	c.log(ctx, "request", spec.op, map[string]any{"method": spec.method, "path": spec.path})

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.Observe(spec.op, elapsed, metrics.OutcomeConnection)
		c.log(ctx, "error", spec.op, map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeConnection, err,
			fmt.Sprintf("Cannot connect to server. Make sure the backend is running at %s", c.baseURL))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.Observe(spec.op, elapsed, metrics.OutcomeError)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading response")
	}

	if resp.StatusCode >= 400 {
		failure := failureFromResponse(resp.StatusCode, raw, spec.fallback)
		c.metrics.Observe(spec.op, elapsed, outcomeForCode(failure.Code()))
		c.log(ctx, "rejected", spec.op, map[string]any{"status": resp.StatusCode, "message": failure.Message()})
		return failure
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			c.metrics.Observe(spec.op, elapsed, metrics.OutcomeError)
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding response")
		}
	}

	c.metrics.Observe(spec.op, elapsed, metrics.OutcomeSuccess)
	c.log(ctx, "response", spec.op, map[string]any{"status": resp.StatusCode})
	return nil
}

// failureFromResponse turns a non-2xx body into a coded error. The backend
// reports failures as {"detail": "..."} or, for request validation, as
// {"detail": [{"msg": "..."}, ...]}; the first human-readable message wins.
func failureFromResponse(status int, raw []byte, fallback string) *pkgerrors.Error {
	message := extractDetail(raw)
	if message == "" {
		message = fallback
	}
	return pkgerrors.New(codeForStatus(status), message).WithDetails(map[string]any{"status": status})
}

func extractDetail(raw []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var structured []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &structured); err == nil && len(structured) > 0 {
		return strings.TrimSpace(structured[0].Msg)
	}
	return ""
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeAuthRejected
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func outcomeForCode(code pkgerrors.Code) string {
	switch code {
	case pkgerrors.CodeAuthRejected:
		return metrics.OutcomeRejected
	case pkgerrors.CodeConnection:
		return metrics.OutcomeConnection
	default:
		return metrics.OutcomeError
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logg == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logg.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logg.Error(ctx, fmt.Sprintf("backend %s failed", op), nil)
	case "rejected":
		c.logg.Warn(ctx, fmt.Sprintf("backend rejected %s", op))
	default:
		c.logg.Debug(ctx, fmt.Sprintf("backend %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"password", "token", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
