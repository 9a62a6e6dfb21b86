package models

import (
	"encoding/json"

	"github.com/kendall-kelly/stockmaster-web/orders"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry of the warehouse API
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	CategoryID    *string         `json:"category_id"`
	UnitOfMeasure string          `json:"unit_of_measure"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
}

// Warehouse is a physical site
type Warehouse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortCode string `json:"short_code"`
	Address   string `json:"address"`
}

// Location is a storage area inside a warehouse
type Location struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ShortCode     string `json:"short_code"`
	WarehouseID   string `json:"warehouse_id"`
	WarehouseName string `json:"warehouse_name,omitempty"`
}

// StockItem is the on-hand quantity of a product at one location
type StockItem struct {
	ProductID  string          `json:"product_id"`
	Product    string          `json:"product"`
	SKU        string          `json:"sku"`
	LocationID string          `json:"location_id"`
	Location   string          `json:"location"`
	UnitCost   decimal.Decimal `json:"perUnitCost"`
	OnHand     decimal.Decimal `json:"onHand"`
	FreeToUse  decimal.Decimal `json:"freeToUse"`
}

// StockFilter narrows a stock listing
type StockFilter struct {
	Search      string
	WarehouseID string
	LocationID  string
}

// DashboardStats are the counters shown on the dashboard
type DashboardStats struct {
	TotalProducts      int `json:"totalProducts"`
	LowStockItems      int `json:"lowStockItems"`
	PendingReceipts    int `json:"pendingReceipts"`
	PendingDeliveries  int `json:"pendingDeliveries"`
	ScheduledTransfers int `json:"scheduledTransfers"`
}

// OrderItem is one product line of an upstream record
type OrderItem struct {
	ProductID   string           `json:"product_id"`
	ProductName string           `json:"product_name,omitempty"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitCost    *decimal.Decimal `json:"unit_cost,omitempty"`
}

// OrderRecord is a receipt, delivery or transfer as stored by the warehouse
// API. Header holds the kind-specific fields (receive_from, warehouse_id, ...).
type OrderRecord struct {
	ID           string            `json:"id"`
	Reference    string            `json:"reference"`
	Status       string            `json:"status"`
	ScheduleDate string            `json:"schedule_date"`
	Header       map[string]string `json:"-"`
	Items        []OrderItem       `json:"items"`
}

// UnmarshalJSON decodes the record and collects its string fields into Header
func (r *OrderRecord) UnmarshalJSON(data []byte) error {
	type plain OrderRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	p.Header = make(map[string]string)
	for name, value := range fields {
		if s, ok := value.(string); ok && s != "" {
			p.Header[name] = s
		}
	}

	*r = OrderRecord(p)
	return nil
}

// Draft converts the record into an editable draft of the given kind.
// Header fields the kind does not declare are dropped by Draft.Reset.
func (r *OrderRecord) Draft(kind string) *orders.Draft {
	header := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		header[k] = v
	}
	// the server sends naive or zoned timestamps; the calendar date is what the form edits
	if len(r.ScheduleDate) >= len(orders.DateLayout) {
		header["schedule_date"] = r.ScheduleDate[:len(orders.DateLayout)]
	}

	lines := make([]orders.Line, 0, len(r.Items))
	for _, item := range r.Items {
		line := orders.Line{ProductRef: item.ProductID, Quantity: item.Quantity.String()}
		if item.UnitCost != nil {
			line.UnitCost = item.UnitCost.String()
		}
		lines = append(lines, line)
	}

	return &orders.Draft{
		Kind:     kind,
		RecordID: r.ID,
		Header:   header,
		Lines:    lines,
	}
}
