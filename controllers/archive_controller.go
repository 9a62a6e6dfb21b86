package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/stockmaster-web/services"
)

// GetArchivedSubmission handles GET /api/v1/archive/*key - returns a temporary
// download URL for an archived submission
func GetArchivedSubmission(c *gin.Context) {
	svc := services.GetOrderServices()
	if svc.Archive == nil {
		respondError(c, http.StatusNotFound, "ARCHIVE_DISABLED", "Submission archiving is not enabled")
		return
	}

	key := c.Param("key")
	url, err := svc.Archive.URL(c.Request.Context(), key)
	if errors.Is(err, services.ErrInvalidArchiveKey) {
		respondError(c, http.StatusBadRequest, "INVALID_KEY", "Not an archived submission key")
		return
	}
	if err != nil {
		log.Printf("Failed to presign archive key %s: %v", key, err)
		respondError(c, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to generate download URL")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"key": key,
			"url": url,
		},
	})
}
