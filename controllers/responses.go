package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/stockmaster-web/middleware"
	"github.com/kendall-kelly/stockmaster-web/orders"
	"github.com/kendall-kelly/stockmaster-web/services"
)

// respondError writes the standard error envelope
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondUpstreamError maps a warehouse API failure to a response. Upstream
// 404s stay 404s; everything else is a bad gateway.
func respondUpstreamError(c *gin.Context, err error, fallback string) {
	var upstream *orders.UpstreamError
	if !errors.As(err, &upstream) {
		log.Printf("Warehouse API call failed: %v", err)
		respondError(c, http.StatusBadGateway, "UPSTREAM_ERROR", fallback)
		return
	}

	if upstream.Status == http.StatusNotFound {
		respondError(c, http.StatusNotFound, "NOT_FOUND", upstream.UserMessage(fallback))
		return
	}

	log.Printf("Warehouse API call failed: %v", upstream)
	respondError(c, http.StatusBadGateway, "UPSTREAM_ERROR", upstream.UserMessage(fallback))
}

// upstreamContext carries the caller's bearer token to the warehouse API
func upstreamContext(c *gin.Context) context.Context {
	return services.WithAccessToken(c.Request.Context(), middleware.GetAccessToken(c))
}

// currentUser extracts the authenticated subject, writing a 401 when absent
func currentUser(c *gin.Context) (string, bool) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return "", false
	}
	return userID, true
}
