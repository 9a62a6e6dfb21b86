package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/stockmaster-web/orders"
	"github.com/kendall-kelly/stockmaster-web/services"
)

// GetRecord handles GET /api/v1/records/:kind/:id - an existing receipt or delivery
func GetRecord(c *gin.Context) {
	k, ok := pathKind(c)
	if !ok {
		return
	}

	svc := services.GetOrderServices()
	record, err := svc.Warehouse.GetRecord(upstreamContext(c), k, c.Param("id"))
	if err != nil {
		respondUpstreamError(c, err, fmt.Sprintf("Failed to load %s", strings.ToLower(k.Label)))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    record,
	})
}

// ValidateRecord handles POST /api/v1/records/:kind/:id/validate - asks the
// warehouse API to confirm a record, moving its stock
func ValidateRecord(c *gin.Context) {
	k, ok := pathKind(c)
	if !ok {
		return
	}

	svc := services.GetOrderServices()
	record, err := svc.Warehouse.ValidateRecord(upstreamContext(c), k, c.Param("id"))
	if err != nil {
		var upstream *orders.UpstreamError
		if errors.As(err, &upstream) && upstream.Kind == orders.ErrorOutOfStock {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":        "OUT_OF_STOCK",
					"message":     upstream.UserMessage(""),
					"annotations": upstream.OutOfStock,
				},
			})
			return
		}
		respondUpstreamError(c, err, fmt.Sprintf("Failed to validate %s", strings.ToLower(k.Label)))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("%s validated", k.Label),
		"data":    record,
	})
}

func pathKind(c *gin.Context) (*orders.Kind, bool) {
	svc := services.GetOrderServices()
	k, found := svc.Catalog.Get(c.Param("kind"))
	if !found {
		respondError(c, http.StatusNotFound, "UNKNOWN_KIND", fmt.Sprintf("Unknown order kind %q", c.Param("kind")))
		return nil, false
	}
	return k, true
}
