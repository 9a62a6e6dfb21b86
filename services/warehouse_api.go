package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kendall-kelly/stockmaster-web/models"
	"github.com/kendall-kelly/stockmaster-web/orders"
)

// WarehouseAPI is a client of the upstream warehouse REST API. Every non-2xx
// response is returned as *orders.UpstreamError.
type WarehouseAPI struct {
	baseURL    string
	httpClient *http.Client
}

// NewWarehouseAPI creates a client for the API rooted at baseURL
func NewWarehouseAPI(baseURL string, timeout time.Duration) *WarehouseAPI {
	return &WarehouseAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type accessTokenKey struct{}

// WithAccessToken returns a context whose upstream calls carry the bearer token
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, accessTokenKey{}, token)
}

func accessTokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}

// Create posts a new record of kind k
func (w *WarehouseAPI) Create(ctx context.Context, k *orders.Kind, p *orders.Payload) (*orders.Record, error) {
	var raw json.RawMessage
	if err := w.do(ctx, http.MethodPost, k.Endpoint, nil, p, &raw); err != nil {
		return nil, err
	}
	return decodeRecord(raw)
}

// Update replaces the record with the given id
func (w *WarehouseAPI) Update(ctx context.Context, k *orders.Kind, id string, p *orders.Payload) (*orders.Record, error) {
	var raw json.RawMessage
	if err := w.do(ctx, http.MethodPut, recordPath(k, id), nil, p, &raw); err != nil {
		return nil, err
	}
	return decodeRecord(raw)
}

// GetRecord fetches an existing record for editing
func (w *WarehouseAPI) GetRecord(ctx context.Context, k *orders.Kind, id string) (*models.OrderRecord, error) {
	var record models.OrderRecord
	if err := w.do(ctx, http.MethodGet, recordPath(k, id), nil, nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ValidateRecord asks the server to validate (post) a ready record
func (w *WarehouseAPI) ValidateRecord(ctx context.Context, k *orders.Kind, id string) (*orders.Record, error) {
	var raw json.RawMessage
	if err := w.do(ctx, http.MethodPost, recordPath(k, id)+"/validate", nil, nil, &raw); err != nil {
		return nil, err
	}
	return decodeRecord(raw)
}

// ListProducts returns the product catalog
func (w *WarehouseAPI) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := w.do(ctx, http.MethodGet, "/products", nil, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// SearchProducts returns products whose name or SKU matches query
func (w *WarehouseAPI) SearchProducts(ctx context.Context, query string) ([]models.Product, error) {
	var products []models.Product
	if err := w.do(ctx, http.MethodGet, "/products/search", url.Values{"q": {query}}, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ListWarehouses returns all warehouses
func (w *WarehouseAPI) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	var warehouses []models.Warehouse
	if err := w.do(ctx, http.MethodGet, "/warehouses", nil, nil, &warehouses); err != nil {
		return nil, err
	}
	return warehouses, nil
}

// ListLocations returns the locations of a warehouse, or all locations when
// warehouseID is empty
func (w *WarehouseAPI) ListLocations(ctx context.Context, warehouseID string) ([]models.Location, error) {
	var query url.Values
	if warehouseID != "" {
		query = url.Values{"warehouse_id": {warehouseID}}
	}
	var locations []models.Location
	if err := w.do(ctx, http.MethodGet, "/locations", query, nil, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

// GetStock returns on-hand quantities per product and location
func (w *WarehouseAPI) GetStock(ctx context.Context, filter models.StockFilter) ([]models.StockItem, error) {
	query := url.Values{}
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	if filter.WarehouseID != "" {
		query.Set("warehouse_id", filter.WarehouseID)
	}
	if filter.LocationID != "" {
		query.Set("location_id", filter.LocationID)
	}
	var items []models.StockItem
	if err := w.do(ctx, http.MethodGet, "/stock", query, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetDashboardStats returns the dashboard counters
func (w *WarehouseAPI) GetDashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	if err := w.do(ctx, http.MethodGet, "/dashboard/stats", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (w *WarehouseAPI) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	endpoint := w.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := accessTokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return &orders.UpstreamError{Kind: orders.ErrorTransport, Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Printf("warning: failed to close response body: %v", closeErr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &orders.UpstreamError{Kind: orders.ErrorTransport, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeAPIError turns an error response into an UpstreamError. The body is
// expected to look like {"detail": <string | object>}; anything else is kept
// verbatim as the detail.
func decodeAPIError(status int, body []byte) *orders.UpstreamError {
	e := &orders.UpstreamError{Kind: orders.ErrorDetail, Status: status}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || isNull(envelope.Detail) {
		e.Detail = strings.TrimSpace(string(body))
		return e
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		e.Message = text
		return e
	}

	var structured struct {
		Message    string          `json:"message"`
		OutOfStock json.RawMessage `json:"out_of_stock"`
	}
	if err := json.Unmarshal(envelope.Detail, &structured); err == nil {
		e.Message = structured.Message
		if !isNull(structured.OutOfStock) {
			e.Kind = orders.ErrorOutOfStock
			e.OutOfStock = []orders.Annotation{}
			if err := json.Unmarshal(structured.OutOfStock, &e.OutOfStock); err != nil {
				log.Printf("warning: unreadable out_of_stock list: %v", err)
				e.OutOfStock = []orders.Annotation{}
			}
			return e
		}
		if e.Message != "" {
			return e
		}
	}

	e.Detail = compactJSON(envelope.Detail)
	return e
}

func decodeRecord(raw json.RawMessage) (*orders.Record, error) {
	record := &orders.Record{Body: raw}
	if len(raw) == 0 {
		return record, nil
	}
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return record, nil
}

func recordPath(k *orders.Kind, id string) string {
	return k.Endpoint + "/" + url.PathEscape(id)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return buf.String()
}
