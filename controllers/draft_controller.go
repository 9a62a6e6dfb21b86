package controllers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/stockmaster-web/models"
	"github.com/kendall-kelly/stockmaster-web/orders"
	"github.com/kendall-kelly/stockmaster-web/services"
	"github.com/kendall-kelly/stockmaster-web/utils"
)

// CreateDraftRequest represents the request body for opening an order form
type CreateDraftRequest struct {
	Kind     string `json:"kind" binding:"required"`
	RecordID string `json:"record_id"`
}

// UpdateHeaderRequest represents the request body for editing a header field
type UpdateHeaderRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// UpdateLineRequest represents the request body for editing a line field
type UpdateLineRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

type lineView struct {
	orders.Line
	Flagged bool `json:"flagged"`
}

type draftView struct {
	ID          string              `json:"id"`
	Kind        string              `json:"kind"`
	RecordID    string              `json:"record_id,omitempty"`
	Header      map[string]string   `json:"header"`
	Lines       []lineView          `json:"lines"`
	Annotations []orders.Annotation `json:"annotations"`
	Phase       orders.Phase        `json:"phase"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func newDraftView(session *models.DraftSession, d *orders.Draft, phase orders.Phase) draftView {
	lines := make([]lineView, len(d.Lines))
	for i, line := range d.Lines {
		lines[i] = lineView{Line: line, Flagged: d.Flagged(i)}
	}
	annotations := d.Annotations
	if annotations == nil {
		annotations = []orders.Annotation{}
	}
	return draftView{
		ID:          session.ID,
		Kind:        d.Kind,
		RecordID:    d.RecordID,
		Header:      d.Header,
		Lines:       lines,
		Annotations: annotations,
		Phase:       phase,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
	}
}

// ListKinds handles GET /api/v1/kinds - describes the order forms
func ListKinds(c *gin.Context) {
	svc := services.GetOrderServices()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    svc.Catalog.All(),
	})
}

// CreateDraft handles POST /api/v1/drafts - opens a new order form, optionally
// pre-filled from an existing record (edit mode)
func CreateDraft(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateDraftRequest
	if !bindJSON(c, &req) {
		return
	}

	svc := services.GetOrderServices()
	k, found := svc.Catalog.Get(req.Kind)
	if !found {
		respondError(c, http.StatusBadRequest, "UNKNOWN_KIND", fmt.Sprintf("Unknown order kind %q", req.Kind))
		return
	}

	d := orders.NewDraft(k, svc.Coordinator.Today())
	if req.RecordID != "" {
		if !k.Editable {
			respondError(c, http.StatusBadRequest, "NOT_EDITABLE", fmt.Sprintf("%s records cannot be edited", k.Label))
			return
		}
		record, err := svc.Warehouse.GetRecord(upstreamContext(c), k, req.RecordID)
		if err != nil {
			respondUpstreamError(c, err, fmt.Sprintf("Failed to load %s", strings.ToLower(k.Label)))
			return
		}
		d.Reset(k, record.Draft(k.Name), svc.Coordinator.Today())
	}

	session, err := svc.Drafts.Create(c.Request.Context(), userID, d)
	if err != nil {
		log.Printf("Failed to open %s draft: %v", k.Name, err)
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create draft")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    newDraftView(session, d, orders.PhaseIdle),
	})
}

// ListDrafts handles GET /api/v1/drafts - the caller's open order forms
func ListDrafts(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	svc := services.GetOrderServices()
	sessions, err := svc.Drafts.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		log.Printf("Failed to list drafts: %v", err)
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to retrieve drafts")
		return
	}

	views := make([]draftView, 0, len(sessions))
	for i := range sessions {
		views = append(views, newDraftView(&sessions[i], sessions[i].Draft(), svc.Coordinator.Phase(sessions[i].ID)))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    views,
		"count":   len(views),
	})
}

// GetDraft handles GET /api/v1/drafts/:id
func GetDraft(c *gin.Context) {
	session, ok := loadOwnedSession(c)
	if !ok {
		return
	}

	svc := services.GetOrderServices()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    newDraftView(session, session.Draft(), svc.Coordinator.Phase(session.ID)),
	})
}

// DeleteDraft handles DELETE /api/v1/drafts/:id - closes the order form. A
// submission still in flight for the draft will have its result discarded.
func DeleteDraft(c *gin.Context) {
	session, ok := loadOwnedSession(c)
	if !ok {
		return
	}

	svc := services.GetOrderServices()
	if err := svc.Drafts.Delete(c.Request.Context(), session.ID); err != nil && !errors.Is(err, orders.ErrDraftNotFound) {
		log.Printf("Failed to close draft %s: %v", session.ID, err)
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to close draft")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Draft closed",
	})
}

// UpdateDraftHeader handles PATCH /api/v1/drafts/:id/header
func UpdateDraftHeader(c *gin.Context) {
	var req UpdateHeaderRequest
	if !bindJSON(c, &req) {
		return
	}
	mutateDraft(c, func(k *orders.Kind, d *orders.Draft) error {
		return d.SetHeader(k, req.Field, req.Value)
	})
}

// AddDraftLine handles POST /api/v1/drafts/:id/lines
func AddDraftLine(c *gin.Context) {
	mutateDraft(c, func(k *orders.Kind, d *orders.Draft) error {
		d.AddLine()
		return nil
	})
}

// UpdateDraftLine handles PATCH /api/v1/drafts/:id/lines/:index
func UpdateDraftLine(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}
	var req UpdateLineRequest
	if !bindJSON(c, &req) {
		return
	}
	mutateDraft(c, func(k *orders.Kind, d *orders.Draft) error {
		return d.UpdateLine(k, index, req.Field, req.Value)
	})
}

// RemoveDraftLine handles DELETE /api/v1/drafts/:id/lines/:index
func RemoveDraftLine(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}
	mutateDraft(c, func(k *orders.Kind, d *orders.Draft) error {
		return d.RemoveLine(index)
	})
}

// ResetDraft handles POST /api/v1/drafts/:id/reset - discards the user's edits.
// Drafts in edit mode go back to the record's current values.
func ResetDraft(c *gin.Context) {
	svc := services.GetOrderServices()
	mutateDraft(c, func(k *orders.Kind, d *orders.Draft) error {
		if d.RecordID == "" {
			d.Reset(k, nil, svc.Coordinator.Today())
			return nil
		}
		record, err := svc.Warehouse.GetRecord(upstreamContext(c), k, d.RecordID)
		if err != nil {
			return err
		}
		d.Reset(k, record.Draft(k.Name), svc.Coordinator.Today())
		return nil
	})
}

// ImportDraftLines handles POST /api/v1/drafts/:id/lines/import - appends the
// lines of an uploaded XLSX sheet
func ImportDraftLines(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "NO_FILE", "No file was uploaded")
		return
	}
	if err := utils.ValidateSpreadsheetFile(fileHeader); err != nil {
		var fileErr *utils.FileUploadError
		if errors.As(err, &fileErr) {
			respondError(c, http.StatusBadRequest, fileErr.Code, fileErr.Message)
			return
		}
		respondError(c, http.StatusBadRequest, "INVALID_FILE", err.Error())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_FILE", "Uploaded file could not be opened")
		return
	}
	defer file.Close()

	rows, err := utils.ParseLineSheet(file)
	if err != nil {
		var fileErr *utils.FileUploadError
		if errors.As(err, &fileErr) {
			respondError(c, http.StatusUnprocessableEntity, fileErr.Code, fileErr.Message)
			return
		}
		respondError(c, http.StatusUnprocessableEntity, "INVALID_SPREADSHEET", err.Error())
		return
	}

	svc := services.GetOrderServices()
	products, err := svc.Warehouse.ListProducts(upstreamContext(c))
	if err != nil {
		respondUpstreamError(c, err, "Failed to load products")
		return
	}

	mutateDraftWith(c, func(k *orders.Kind, d *orders.Draft) (gin.H, error) {
		lines, unmatched := utils.MatchLines(rows, products, k.UnitCost)
		if unmatched == nil {
			unmatched = []utils.SheetRow{}
		}
		if len(lines) == 0 {
			return gin.H{"unmatched": unmatched}, errNoMatchingProducts
		}
		// a lone untouched placeholder is replaced rather than kept in front
		if len(d.Lines) == 1 && d.Lines[0].Placeholder() {
			d.Lines = nil
		}
		d.Lines = append(d.Lines, lines...)
		return gin.H{"unmatched": unmatched}, nil
	})
}

var errNoMatchingProducts = errors.New("no rows matched a product")

// CheckDraft handles POST /api/v1/drafts/:id/check - runs the validator
// without submitting
func CheckDraft(c *gin.Context) {
	session, ok := loadOwnedSession(c)
	if !ok {
		return
	}

	svc := services.GetOrderServices()
	k, found := svc.Catalog.Get(session.Kind)
	if !found {
		respondError(c, http.StatusInternalServerError, "UNKNOWN_KIND", "Draft has an unknown order kind")
		return
	}

	violations := orders.Validate(k, session.Draft())
	if violations == nil {
		violations = orders.Violations{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"valid":      violations.Valid(),
			"violations": violations,
		},
	})
}

// SubmitDraft handles POST /api/v1/drafts/:id/submit
func SubmitDraft(c *gin.Context) {
	session, ok := loadOwnedSession(c)
	if !ok {
		return
	}

	svc := services.GetOrderServices()
	outcome, err := svc.Coordinator.Submit(upstreamContext(c), session.ID)
	switch {
	case errors.Is(err, orders.ErrSubmitInFlight):
		respondError(c, http.StatusConflict, "SUBMIT_IN_FLIGHT", "This draft is already being submitted")
		return
	case errors.Is(err, orders.ErrDraftNotFound):
		respondError(c, http.StatusNotFound, "DRAFT_NOT_FOUND", "Draft not found")
		return
	case err != nil:
		log.Printf("Submission of draft %s failed: %v", session.ID, err)
		respondError(c, http.StatusInternalServerError, "SUBMIT_ERROR", "Failed to submit draft")
		return
	}

	var view *draftView
	if outcome.Draft != nil && !outcome.Close {
		v := newDraftView(session, outcome.Draft, orders.PhaseIdle)
		view = &v
	}

	switch outcome.Status {
	case orders.StatusCreated, orders.StatusUpdated:
		status := http.StatusCreated
		if outcome.Status == orders.StatusUpdated {
			status = http.StatusOK
		}
		c.JSON(status, gin.H{
			"success":      true,
			"message":      outcome.Notification.Message,
			"notification": outcome.Notification,
			"data": gin.H{
				"status":      outcome.Status,
				"record":      outcome.Record,
				"archive_key": outcome.ArchiveKey,
				"close":       outcome.Close,
				"draft":       outcome.Draft,
			},
		})
	case orders.StatusInvalid:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error": gin.H{
				"code":       "VALIDATION_ERROR",
				"message":    outcome.Notification.Message,
				"violations": outcome.Violations,
			},
			"notification": outcome.Notification,
			"data":         view,
		})
	case orders.StatusOutOfStock:
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":          "OUT_OF_STOCK",
				"message":       outcome.Notification.Message,
				"flagged_lines": outcome.FlaggedLines,
			},
			"notification": outcome.Notification,
			"data":         view,
		})
	case orders.StatusDiscarded:
		respondError(c, http.StatusGone, "DRAFT_CLOSED", "The draft was closed before the submission finished")
	default:
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UPSTREAM_ERROR",
				"message": outcome.Notification.Message,
			},
			"notification": outcome.Notification,
			"data":         view,
		})
	}
}

// loadOwnedSession loads the draft named by :id if it belongs to the caller.
// Sessions of other users are reported as missing.
func loadOwnedSession(c *gin.Context) (*models.DraftSession, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return nil, false
	}

	svc := services.GetOrderServices()
	session, err := svc.Drafts.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, orders.ErrDraftNotFound) || (err == nil && session.OwnerID != userID) {
		respondError(c, http.StatusNotFound, "DRAFT_NOT_FOUND", "Draft not found")
		return nil, false
	}
	if err != nil {
		log.Printf("Failed to load draft %s: %v", c.Param("id"), err)
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load draft")
		return nil, false
	}
	return session, true
}

// mutateDraft applies edit to the caller's draft and saves it. Drafts with a
// submission in flight cannot be edited.
func mutateDraft(c *gin.Context, edit func(k *orders.Kind, d *orders.Draft) error) {
	mutateDraftWith(c, func(k *orders.Kind, d *orders.Draft) (gin.H, error) {
		return nil, edit(k, d)
	})
}

// mutateDraftWith is mutateDraft for edits that add fields to the response
func mutateDraftWith(c *gin.Context, edit func(k *orders.Kind, d *orders.Draft) (gin.H, error)) {
	session, ok := loadOwnedSession(c)
	if !ok {
		return
	}

	svc := services.GetOrderServices()
	var (
		kind  *orders.Kind
		extra gin.H
	)
	d, err := svc.Coordinator.Edit(c.Request.Context(), session.ID, func(k *orders.Kind, d *orders.Draft) error {
		kind = k
		var editErr error
		extra, editErr = edit(k, d)
		return editErr
	})
	switch {
	case errors.Is(err, orders.ErrSubmitInFlight):
		respondError(c, http.StatusConflict, "SUBMIT_IN_FLIGHT", "This draft is being submitted and cannot be changed")
		return
	case errors.Is(err, orders.ErrDraftNotFound):
		respondError(c, http.StatusNotFound, "DRAFT_NOT_FOUND", "Draft not found")
		return
	case errors.Is(err, orders.ErrUnknownKind):
		respondError(c, http.StatusInternalServerError, "UNKNOWN_KIND", "Draft has an unknown order kind")
		return
	case err != nil && kind != nil && d != nil:
		respondDraftError(c, kind, err, extra)
		return
	case err != nil:
		log.Printf("Failed to save draft %s: %v", session.ID, err)
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to save draft")
		return
	}

	response := gin.H{
		"success": true,
		"data":    newDraftView(session, d, orders.PhaseIdle),
	}
	for key, value := range extra {
		response[key] = value
	}
	c.JSON(http.StatusOK, response)
}

func respondDraftError(c *gin.Context, k *orders.Kind, err error, extra gin.H) {
	var upstream *orders.UpstreamError
	switch {
	case errors.Is(err, orders.ErrLastLine):
		respondError(c, http.StatusConflict, "LAST_LINE", "A draft must keep at least one line")
	case errors.Is(err, orders.ErrLineIndex):
		respondError(c, http.StatusNotFound, "LINE_NOT_FOUND", "Line not found")
	case errors.Is(err, orders.ErrUnknownField):
		respondError(c, http.StatusBadRequest, "UNKNOWN_FIELD", err.Error())
	case errors.Is(err, orders.ErrDependencyUnset):
		respondError(c, http.StatusUnprocessableEntity, "DEPENDENCY_UNSET", err.Error())
	case errors.Is(err, orders.ErrInvalidOption):
		respondError(c, http.StatusUnprocessableEntity, "INVALID_OPTION", err.Error())
	case errors.Is(err, errNoMatchingProducts):
		body := gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NO_MATCHING_PRODUCTS",
				"message": "None of the spreadsheet rows matched a product",
			},
		}
		for key, value := range extra {
			body[key] = value
		}
		c.JSON(http.StatusUnprocessableEntity, body)
	case errors.As(err, &upstream):
		respondUpstreamError(c, err, fmt.Sprintf("Failed to load %s", strings.ToLower(k.Label)))
	default:
		log.Printf("Draft edit failed: %v", err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update draft")
	}
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return false
	}
	return true
}

func lineIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_INDEX", "Line index must be a number")
		return 0, false
	}
	return index, true
}
