package controllers

import "github.com/gin-gonic/gin"

// RegisterOrderRoutes mounts the order form, reference data and archive
// endpoints on an authenticated group
func RegisterOrderRoutes(rg *gin.RouterGroup) {
	rg.GET("/kinds", ListKinds)

	drafts := rg.Group("/drafts")
	{
		drafts.GET("", ListDrafts)
		drafts.POST("", CreateDraft)
		drafts.GET("/:id", GetDraft)
		drafts.DELETE("/:id", DeleteDraft)
		drafts.PATCH("/:id/header", UpdateDraftHeader)
		drafts.POST("/:id/lines", AddDraftLine)
		drafts.POST("/:id/lines/import", ImportDraftLines)
		drafts.PATCH("/:id/lines/:index", UpdateDraftLine)
		drafts.DELETE("/:id/lines/:index", RemoveDraftLine)
		drafts.POST("/:id/reset", ResetDraft)
		drafts.POST("/:id/check", CheckDraft)
		drafts.POST("/:id/submit", SubmitDraft)
	}

	rg.GET("/records/:kind/:id", GetRecord)
	rg.POST("/records/:kind/:id/validate", ValidateRecord)

	rg.GET("/products", ListProducts)
	rg.GET("/warehouses", ListWarehouses)
	rg.GET("/locations", ListLocations)
	rg.GET("/stock", GetStock)
	rg.GET("/dashboard", GetDashboard)

	rg.GET("/archive/*key", GetArchivedSubmission)
}
