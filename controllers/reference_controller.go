package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/stockmaster-web/models"
	"github.com/kendall-kelly/stockmaster-web/services"
)

// ListProducts handles GET /api/v1/products - all products, or those matching ?q=
func ListProducts(c *gin.Context) {
	svc := services.GetOrderServices()

	var (
		products []models.Product
		err      error
	)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		products, err = svc.Warehouse.SearchProducts(upstreamContext(c), q)
	} else {
		products, err = svc.Warehouse.ListProducts(upstreamContext(c))
	}
	if err != nil {
		respondUpstreamError(c, err, "Failed to retrieve products")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    products,
		"count":   len(products),
	})
}

// ListWarehouses handles GET /api/v1/warehouses
func ListWarehouses(c *gin.Context) {
	svc := services.GetOrderServices()
	warehouses, err := svc.Warehouse.ListWarehouses(upstreamContext(c))
	if err != nil {
		respondUpstreamError(c, err, "Failed to retrieve warehouses")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    warehouses,
		"count":   len(warehouses),
	})
}

// ListLocations handles GET /api/v1/locations?warehouse_id=
func ListLocations(c *gin.Context) {
	svc := services.GetOrderServices()
	locations, err := svc.Warehouse.ListLocations(upstreamContext(c), c.Query("warehouse_id"))
	if err != nil {
		respondUpstreamError(c, err, "Failed to retrieve locations")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    locations,
		"count":   len(locations),
	})
}

// GetStock handles GET /api/v1/stock
func GetStock(c *gin.Context) {
	filter := models.StockFilter{
		Search:      c.Query("search"),
		WarehouseID: c.Query("warehouse_id"),
		LocationID:  c.Query("location_id"),
	}

	svc := services.GetOrderServices()
	items, err := svc.Warehouse.GetStock(upstreamContext(c), filter)
	if err != nil {
		respondUpstreamError(c, err, "Failed to retrieve stock")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"count":   len(items),
	})
}

// GetDashboard handles GET /api/v1/dashboard
func GetDashboard(c *gin.Context) {
	svc := services.GetOrderServices()
	stats, err := svc.Warehouse.GetDashboardStats(upstreamContext(c))
	if err != nil {
		respondUpstreamError(c, err, "Failed to retrieve dashboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}
